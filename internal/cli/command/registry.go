package command

import (
	"encoding/json"
	"fmt"
	"net/http"

	"arena/internal/arena/model"
)

var executeFields = []Field{
	{Name: "game", Aliases: []string{"game_name"}, Prompt: "game", Type: FieldString, Required: true},
	{Name: "team", Aliases: []string{"team_name"}, Prompt: "team", Type: FieldString, Required: true},
	{Name: "file", Aliases: []string{"code_file", "source_file"}, Prompt: "strategy file", Type: FieldFile, Required: true},
	{Name: "n", Aliases: []string{"num_simulations"}, Prompt: "trials", Type: FieldInt},
	{Name: "rewards", Aliases: []string{"custom_rewards"}, Prompt: "rewards", Type: FieldFloatList},
}

// Registry returns all CLI commands keyed by name.
func Registry() map[string]Command {
	commands := []Command{
		{
			Name:    "validate",
			Method:  http.MethodPost,
			Path:    "/validate",
			Summary: "check a strategy and play a short traced batch",
			Fields:  executeFields,
		},
		{
			Name:    "simulate",
			Method:  http.MethodPost,
			Path:    "/simulate",
			Summary: "run a full simulation batch",
			Fields:  executeFields,
		},
		{
			Name:    "health",
			Method:  http.MethodGet,
			Path:    "/health",
			Summary: "probe the execution service",
		},
		{
			Name:    "services",
			Method:  http.MethodGet,
			Path:    "/services",
			Target:  TargetSupervisor,
			Summary: "show supervised service snapshots",
		},
	}

	result := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		result[cmd.Name] = cmd
	}
	return result
}

// BuildRequest turns parsed params into the request cmd describes.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	params.resolveAliases(cmd.Fields)

	var body []byte
	if cmd.Method != http.MethodGet {
		payload, err := buildExecutePayload(params)
		if err != nil {
			return RequestSpec{}, err
		}
		body, err = json.Marshal(payload)
		if err != nil {
			return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
		}
	}
	return RequestSpec{
		Method: cmd.Method,
		Path:   cmd.Path,
		Body:   body,
	}, nil
}

func buildExecutePayload(params Params) (model.ExecuteRequest, error) {
	req := model.ExecuteRequest{
		GameName: params.Get("game"),
		TeamName: params.Get("team"),
	}
	switch {
	case params.Get("code") != "":
		req.Code = params.Get("code")
	case params.Get("file") != "":
		code, err := readSource(params.Get("file"))
		if err != nil {
			return req, err
		}
		req.Code = code
	default:
		return req, fmt.Errorf("file or code is required")
	}
	if raw := params.Get("n"); raw != "" {
		n, err := parseInt(raw)
		if err != nil {
			return req, fmt.Errorf("invalid n: %w", err)
		}
		req.NumSimulations = n
	}
	if raw := params.Get("rewards"); raw != "" {
		rewards, err := parseFloatList(raw)
		if err != nil {
			return req, err
		}
		req.CustomRewards = rewards
	}
	return req, nil
}
