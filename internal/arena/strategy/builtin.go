package strategy

import (
	"context"
	"math/rand"
	"sort"

	appErr "arena/pkg/errors"
)

type builtinPolicy func(b *Builtin, state State) string

// builtinPolicies are the house bots games put in a roster next to the team.
var builtinPolicies = map[string]builtinPolicy{
	// cautious banks once the turn is worth 10 points or wins the game.
	"cautious": func(_ *Builtin, state State) string {
		return bankAt(state, 10)
	},
	// greedy keeps rolling until the turn is worth 20 points.
	"greedy": func(_ *Builtin, state State) string {
		return bankAt(state, 20)
	},
	"tit_for_tat": func(_ *Builtin, state State) string {
		if state.String("opponent_last") == "defect" {
			return "defect"
		}
		return "cooperate"
	},
	"always_defect": func(_ *Builtin, _ State) string {
		return "defect"
	},
	// random picks uniformly from the actions the game offers.
	"random": func(b *Builtin, state State) string {
		actions := state.Strings("actions")
		if len(actions) == 0 {
			return ""
		}
		return actions[b.rng.Intn(len(actions))]
	},
}

func bankAt(state State, threshold int) string {
	turn := state.Int("turn_total")
	if turn >= threshold || state.Int("score")+turn >= state.Int("target") {
		return "bank"
	}
	return "roll"
}

// Builtin is a house strategy implemented in Go.
type Builtin struct {
	name   string
	policy builtinPolicy
	rng    *rand.Rand
}

// NewBuiltin creates the house bot registered under name.
func NewBuiltin(name string, seed int64) (*Builtin, error) {
	policy, ok := builtinPolicies[name]
	if !ok {
		return nil, appErr.Newf(appErr.NotFound, "unknown house strategy: %s", name)
	}
	return &Builtin{name: name, policy: policy, rng: rand.New(rand.NewSource(seed))}, nil
}

// BuiltinNames lists the registered house bots in sorted order.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtinPolicies))
	for name := range builtinPolicies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Name implements Strategy.
func (b *Builtin) Name() string {
	return b.name
}

// Decide implements Strategy.
func (b *Builtin) Decide(ctx context.Context, state State, _ *Output) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return b.policy(b, state), nil
}

// Func adapts a plain function to Strategy. Tests and tools use it to script
// a participant without a VM.
type Func struct {
	ID string
	Fn func(ctx context.Context, state State, out *Output) (string, error)
}

// Name implements Strategy.
func (f Func) Name() string {
	return f.ID
}

// Decide implements Strategy.
func (f Func) Decide(ctx context.Context, state State, out *Output) (string, error) {
	return f.Fn(ctx, state, out)
}
