package model

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ExecuteRequest is the body of POST /validate and POST /simulate.
type ExecuteRequest struct {
	Code           string    `json:"code"`
	GameName       string    `json:"game_name"`
	TeamName       string    `json:"team_name"`
	NumSimulations int       `json:"num_simulations"`
	CustomRewards  []float64 `json:"custom_rewards,omitempty"`
}

// SimulationResults is the aggregated batch outcome.
type SimulationResults struct {
	TotalPoints    map[string]float64 `json:"total_points"`
	NumSimulations int                `json:"num_simulations"`
	Table          map[string]any     `json:"table"`
}

// ExecuteResponse is returned with HTTP 200 for both outcomes; Status tells them apart.
type ExecuteResponse struct {
	Status            string             `json:"status"`
	Message           string             `json:"message,omitempty"`
	Feedback          string             `json:"feedback"`
	SimulationResults *SimulationResults `json:"simulation_results,omitempty"`
}

// ErrorResponse builds a terminal application error.
func ErrorResponse(message string) ExecuteResponse {
	return ExecuteResponse{Status: StatusError, Message: message}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
