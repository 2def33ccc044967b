// Package strategy loads decision-making code for one trial.
//
// A submitted program is compiled once per request into an immutable Program
// and instantiated into a fresh VM for every trial, so no strategy-local state
// survives from one trial to the next.
package strategy

import (
	"context"
	"fmt"
	"sync"
)

// Strategy decides the next action of one participant.
type Strategy interface {
	Name() string
	// Decide returns the participant's action for state. Anything the strategy
	// prints is written to out, which may be nil.
	Decide(ctx context.Context, state State, out *Output) (string, error)
}

// Closer is implemented by strategies that hold a VM.
type Closer interface {
	Close()
}

// CloseAll releases every strategy in roster that holds resources.
func CloseAll(roster []Strategy) {
	for _, s := range roster {
		if c, ok := s.(Closer); ok {
			c.Close()
		}
	}
}

// State is the view of the game handed to a strategy for one decision.
// Values are bool, int, float64, string, []string, []int, []float64 or
// nested State values.
type State map[string]any

// Int returns the integer stored at key, or 0.
func (s State) Int(key string) int {
	switch v := s[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// String returns the string stored at key, or "".
func (s State) String(key string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return ""
}

// Strings returns the string list stored at key.
func (s State) Strings(key string) []string {
	if v, ok := s[key].([]string); ok {
		return v
	}
	return nil
}

const defaultOutputLines = 200

// Output is the per-trial print buffer of a strategy. The game drains it after
// every decision. A nil *Output discards writes.
type Output struct {
	mu        sync.Mutex
	lines     []string
	limit     int
	truncated bool
}

// NewOutput creates a buffer that keeps at most limit lines between drains.
func NewOutput(limit int) *Output {
	if limit <= 0 {
		limit = defaultOutputLines
	}
	return &Output{limit: limit}
}

// Println appends one line.
func (o *Output) Println(line string) {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.lines) >= o.limit {
		o.truncated = true
		return
	}
	o.lines = append(o.lines, line)
}

// Printf appends one formatted line.
func (o *Output) Printf(format string, args ...any) {
	o.Println(fmt.Sprintf(format, args...))
}

// Drain returns and clears the buffered lines.
func (o *Output) Drain() []string {
	if o == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	lines := o.lines
	if o.truncated {
		lines = append(lines, "... output truncated")
		o.truncated = false
	}
	o.lines = nil
	return lines
}
