// Package game defines the contract between the execution core and the
// pluggable game rule sets, plus two small reference games.
package game

import (
	"context"
	"io"
	"sort"

	"arena/internal/arena/strategy"
	appErr "arena/pkg/errors"
)

// TrialResult is the outcome of one successful game.
type TrialResult struct {
	Points map[string]float64
	Table  map[string]any
}

// Engine plays one game with a fixed roster.
type Engine interface {
	PlayOne(ctx context.Context) (TrialResult, error)
}

// Options tune one engine.
type Options struct {
	// Rewards are placement rewards supplied by the caller. Empty means the
	// game's own defaults.
	Rewards []float64
	Seed    int64
	// Trace receives a human-readable log of the game. Nil disables tracing.
	Trace io.Writer
}

// Game is a pluggable rule set.
type Game interface {
	Name() string
	// Roster places team among the game's house participants.
	Roster(team strategy.Strategy, seed int64) ([]strategy.Strategy, error)
	NewEngine(roster []strategy.Strategy, opts Options) (Engine, error)
	// TrialCost is the work multiplier of one trial relative to a single game.
	TrialCost() int
	// Reserved lists participant names a team may not use.
	Reserved() []string
}

// Loader creates a fresh team strategy for one trial.
type Loader func(ctx context.Context, seed int64) (strategy.Strategy, error)

// PlayTrial builds a fresh roster and engine, plays one game and releases
// every strategy it created.
func PlayTrial(ctx context.Context, g Game, load Loader, trial int, opts Options) (TrialResult, error) {
	seed := opts.Seed + int64(trial)*7919
	team, err := load(ctx, seed)
	if err != nil {
		return TrialResult{}, err
	}
	roster, err := g.Roster(team, seed)
	if err != nil {
		strategy.CloseAll([]strategy.Strategy{team})
		return TrialResult{}, err
	}
	defer strategy.CloseAll(roster)

	opts.Seed = seed
	engine, err := g.NewEngine(roster, opts)
	if err != nil {
		return TrialResult{}, err
	}
	return engine.PlayOne(ctx)
}

// PlayMany plays n trials one after another and returns the successful
// results together with the number of failed trials.
func PlayMany(ctx context.Context, g Game, load Loader, n int, opts Options) ([]TrialResult, int) {
	results := make([]TrialResult, 0, n)
	failed := 0
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			failed += n - i
			break
		}
		res, err := PlayTrial(ctx, g, load, i, opts)
		if err != nil {
			failed++
			continue
		}
		results = append(results, res)
	}
	return results, failed
}

// Registry resolves games by name.
type Registry struct {
	games map[string]Game
}

// NewRegistry creates a registry holding games.
func NewRegistry(games ...Game) *Registry {
	r := &Registry{games: make(map[string]Game, len(games))}
	for _, g := range games {
		r.games[g.Name()] = g
	}
	return r
}

// DefaultRegistry returns the reference games with default settings.
func DefaultRegistry() *Registry {
	return NewRegistry(NewPig(PigConfig{}), NewDilemma(DilemmaConfig{}))
}

// Lookup returns the game registered under name.
func (r *Registry) Lookup(name string) (Game, error) {
	g, ok := r.games[name]
	if !ok {
		return nil, appErr.Newf(appErr.GameNotFound, "unknown game: %s", name)
	}
	return g, nil
}

// Names lists registered games in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.games))
	for name := range r.games {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// placementPoints awards rewards by rank. Tied scores share the better rank.
func placementPoints(names []string, scores map[string]int, rewards []float64) map[string]float64 {
	points := make(map[string]float64, len(names))
	for _, name := range names {
		rank := 0
		for _, other := range names {
			if scores[other] > scores[name] {
				rank++
			}
		}
		if rank < len(rewards) {
			points[name] = rewards[rank]
		} else {
			points[name] = 0
		}
	}
	return points
}

func houseRoster(team strategy.Strategy, seed int64, house []string) ([]strategy.Strategy, error) {
	roster := []strategy.Strategy{team}
	for i, name := range house {
		bot, err := strategy.NewBuiltin(name, seed+int64(i)+1)
		if err != nil {
			return nil, err
		}
		roster = append(roster, bot)
	}
	return roster, nil
}

func invalidAction(name, action string, allowed ...string) error {
	return appErr.Newf(appErr.TrialFailed, "%s returned invalid action %q (allowed: %v)", name, action, allowed)
}
