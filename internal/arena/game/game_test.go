package game

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"arena/internal/arena/strategy"
	appErr "arena/pkg/errors"
)

func scripted(name string, fn func(state strategy.State) string) Loader {
	return func(ctx context.Context, seed int64) (strategy.Strategy, error) {
		return strategy.Func{ID: name, Fn: func(ctx context.Context, state strategy.State, out *strategy.Output) (string, error) {
			return fn(state), nil
		}}, nil
	}
}

func alwaysBank(state strategy.State) string { return "bank" }

func TestRegistryLookup(t *testing.T) {
	r := DefaultRegistry()
	for _, name := range []string{"pig", "prisoners_dilemma"} {
		g, err := r.Lookup(name)
		if err != nil {
			t.Fatalf("lookup %s: %v", name, err)
		}
		if g.Name() != name {
			t.Fatalf("expected %s, got %s", name, g.Name())
		}
	}
	_, err := r.Lookup("chess")
	if appErr.GetCode(err) != appErr.GameNotFound {
		t.Fatalf("expected GameNotFound, got %v", err)
	}
	if err.Error() != "unknown game: chess" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	if names := r.Names(); len(names) != 2 || names[0] != "pig" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestPigAlwaysBank(t *testing.T) {
	g := NewPig(PigConfig{})
	res, err := PlayTrial(context.Background(), g, scripted("alpha", alwaysBank), 0, Options{Seed: 42})
	if err != nil {
		t.Fatalf("play trial: %v", err)
	}
	for _, name := range []string{"alpha", "cautious", "greedy"} {
		if _, ok := res.Points[name]; !ok {
			t.Fatalf("missing points for %s: %v", name, res.Points)
		}
	}
	if _, ok := res.Table["alpha_banks"]; !ok {
		t.Fatalf("missing alpha_banks in table: %v", res.Table)
	}
	if _, ok := res.Table["winner"].(string); !ok {
		t.Fatalf("winner must be a string, got %T", res.Table["winner"])
	}
	var sum float64
	for _, p := range res.Points {
		sum += p
	}
	if sum < 3 {
		t.Fatalf("expected at least the winner reward to be paid, got %v", res.Points)
	}
}

func TestPigCustomRewards(t *testing.T) {
	g := NewPig(PigConfig{})
	res, err := PlayTrial(context.Background(), g, scripted("alpha", alwaysBank), 0, Options{
		Seed:    1,
		Rewards: []float64{10, 5, 1},
	})
	if err != nil {
		t.Fatalf("play trial: %v", err)
	}
	for name, p := range res.Points {
		if p != 10 && p != 5 && p != 1 {
			t.Fatalf("%s got %v, expected one of the custom rewards", name, p)
		}
	}
}

func TestPigInvalidAction(t *testing.T) {
	g := NewPig(PigConfig{})
	_, err := PlayTrial(context.Background(), g, scripted("alpha", func(strategy.State) string { return "fold" }), 0, Options{Seed: 3})
	if appErr.GetCode(err) != appErr.TrialFailed {
		t.Fatalf("expected TrialFailed, got %v", err)
	}
}

func TestPigTrace(t *testing.T) {
	g := NewPig(PigConfig{})
	var trace bytes.Buffer
	load := func(ctx context.Context, seed int64) (strategy.Strategy, error) {
		return strategy.Func{ID: "alpha", Fn: func(ctx context.Context, state strategy.State, out *strategy.Output) (string, error) {
			out.Println("thinking")
			return "bank", nil
		}}, nil
	}
	if _, err := PlayTrial(context.Background(), g, load, 0, Options{Seed: 5, Trace: &trace}); err != nil {
		t.Fatalf("play trial: %v", err)
	}
	text := trace.String()
	if !strings.Contains(text, "round 1") || !strings.Contains(text, "winner:") {
		t.Fatalf("trace missing game events:\n%s", text)
	}
	if !strings.Contains(text, "[alpha] thinking") {
		t.Fatalf("trace missing strategy output:\n%s", text)
	}
}

func TestDilemmaRoundRobin(t *testing.T) {
	g := NewDilemma(DilemmaConfig{Rounds: 4})
	if g.TrialCost() != 6 {
		t.Fatalf("expected 6 pairings, got %d", g.TrialCost())
	}
	res, err := PlayTrial(context.Background(), g, scripted("alpha", func(strategy.State) string { return "cooperate" }), 0, Options{Seed: 9})
	if err != nil {
		t.Fatalf("play trial: %v", err)
	}
	if res.Table["rounds"] != 24 {
		t.Fatalf("expected 24 rounds, got %v", res.Table["rounds"])
	}
	if res.Table["alpha_cooperations"] != 12 {
		t.Fatalf("expected 12 cooperations, got %v", res.Table["alpha_cooperations"])
	}
	// always_defect earns 5 per round against a cooperator.
	if res.Points["always_defect"] < 20 {
		t.Fatalf("unexpected always_defect points: %v", res.Points)
	}
}

func TestDilemmaRewardScale(t *testing.T) {
	g := NewDilemma(DilemmaConfig{Rounds: 2, House: []string{"always_defect"}})
	res, err := PlayTrial(context.Background(), g, scripted("alpha", func(strategy.State) string { return "defect" }), 0, Options{Rewards: []float64{2}})
	if err != nil {
		t.Fatalf("play trial: %v", err)
	}
	if res.Points["alpha"] != 4 || res.Points["always_defect"] != 4 {
		t.Fatalf("expected scaled mutual defection payoff, got %v", res.Points)
	}
}

func TestPlayManyCountsFailures(t *testing.T) {
	g := NewPig(PigConfig{})
	calls := 0
	load := func(ctx context.Context, seed int64) (strategy.Strategy, error) {
		calls++
		if calls%3 == 0 {
			return nil, errors.New("broken")
		}
		return scripted("alpha", alwaysBank)(ctx, seed)
	}
	results, failed := PlayMany(context.Background(), g, load, 9, Options{})
	if failed != 3 || len(results) != 6 {
		t.Fatalf("expected 6 results and 3 failures, got %d and %d", len(results), failed)
	}
}

func TestPlacementPointsTies(t *testing.T) {
	points := placementPoints([]string{"a", "b", "c"}, map[string]int{"a": 10, "b": 10, "c": 2}, []float64{3, 1, 0})
	if points["a"] != 3 || points["b"] != 3 || points["c"] != 0 {
		t.Fatalf("unexpected tie handling: %v", points)
	}
}
