package simulation

import (
	"arena/internal/arena/game"
)

// AggregatedResult is the merged outcome of a batch.
type AggregatedResult struct {
	TotalPoints map[string]float64 `json:"total_points"`
	NumTrials   int                `json:"num_trials"`
	Table       map[string]any     `json:"table"`
}

// Aggregator merges trial results. Points and numeric table entries are
// summed; any other table entry keeps the value of the last trial added.
// It is not safe for concurrent use; the runner feeds it from one goroutine.
type Aggregator struct {
	points map[string]float64
	table  map[string]any
	trials int
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		points: make(map[string]float64),
		table:  make(map[string]any),
	}
}

// Add merges one successful trial.
func (a *Aggregator) Add(res game.TrialResult) {
	a.trials++
	for name, p := range res.Points {
		a.points[name] += p
	}
	for key, value := range res.Table {
		a.mergeValue(key, value)
	}
}

// Merge folds other into a.
func (a *Aggregator) Merge(other *Aggregator) {
	if other == nil {
		return
	}
	a.trials += other.trials
	for name, p := range other.points {
		a.points[name] += p
	}
	for key, value := range other.table {
		a.mergeValue(key, value)
	}
}

func (a *Aggregator) mergeValue(key string, value any) {
	incoming, ok := numeric(value)
	if !ok {
		a.table[key] = value
		return
	}
	if current, ok := a.table[key].(float64); ok {
		a.table[key] = current + incoming
		return
	}
	a.table[key] = incoming
}

// NumTrials returns the number of trials merged so far.
func (a *Aggregator) NumTrials() int {
	return a.trials
}

// Result returns a copy of the merged state.
func (a *Aggregator) Result() AggregatedResult {
	points := make(map[string]float64, len(a.points))
	for k, v := range a.points {
		points[k] = v
	}
	table := make(map[string]any, len(a.table))
	for k, v := range a.table {
		table[k] = v
	}
	return AggregatedResult{TotalPoints: points, NumTrials: a.trials, Table: table}
}

// numeric normalises every Go number type to float64.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
