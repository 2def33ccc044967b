package game

import (
	"context"
	"fmt"
	"io"

	"arena/internal/arena/strategy"
	appErr "arena/pkg/errors"
)

// DilemmaConfig tunes the iterated prisoner's dilemma.
type DilemmaConfig struct {
	Rounds int      `yaml:"rounds"`
	House  []string `yaml:"house"`
}

func (c DilemmaConfig) withDefaults() DilemmaConfig {
	if c.Rounds <= 0 {
		c.Rounds = 10
	}
	if len(c.House) == 0 {
		c.House = []string{"tit_for_tat", "always_defect", "random"}
	}
	return c
}

// payoff[a][b] is what a earns when a plays a and the opponent plays b.
var payoff = map[string]map[string]float64{
	"cooperate": {"cooperate": 3, "defect": 0},
	"defect":    {"cooperate": 5, "defect": 1},
}

// Dilemma plays a round robin of iterated prisoner's dilemma matches between
// every pair of participants.
type Dilemma struct {
	cfg DilemmaConfig
}

// NewDilemma creates the game.
func NewDilemma(cfg DilemmaConfig) *Dilemma {
	return &Dilemma{cfg: cfg.withDefaults()}
}

// Name implements Game.
func (d *Dilemma) Name() string { return "prisoners_dilemma" }

// Reserved implements Game.
func (d *Dilemma) Reserved() []string { return d.cfg.House }

// TrialCost implements Game: one match per pairing.
func (d *Dilemma) TrialCost() int {
	n := len(d.cfg.House) + 1
	return n * (n - 1) / 2
}

// Roster implements Game.
func (d *Dilemma) Roster(team strategy.Strategy, seed int64) ([]strategy.Strategy, error) {
	return houseRoster(team, seed, d.cfg.House)
}

// NewEngine implements Game.
func (d *Dilemma) NewEngine(roster []strategy.Strategy, opts Options) (Engine, error) {
	if len(roster) < 2 {
		return nil, appErr.Newf(appErr.InvalidParams, "prisoners_dilemma needs at least 2 players, got %d", len(roster))
	}
	scale := 1.0
	if len(opts.Rewards) > 0 {
		scale = opts.Rewards[0]
	}
	return &dilemmaEngine{
		rounds: d.cfg.Rounds,
		roster: roster,
		scale:  scale,
		trace:  opts.Trace,
		out:    strategy.NewOutput(0),
	}, nil
}

type dilemmaEngine struct {
	rounds int
	roster []strategy.Strategy
	scale  float64
	trace  io.Writer
	out    *strategy.Output
}

func (e *dilemmaEngine) tracef(format string, args ...any) {
	if e.trace != nil {
		fmt.Fprintf(e.trace, format+"\n", args...)
	}
}

// PlayOne implements Engine.
func (e *dilemmaEngine) PlayOne(ctx context.Context) (TrialResult, error) {
	totals := make(map[string]float64, len(e.roster))
	cooperations := make(map[string]int, len(e.roster))
	for _, s := range e.roster {
		totals[s.Name()] = 0
		cooperations[s.Name()] = 0
	}

	played := 0
	lastMatchup := ""
	for i := 0; i < len(e.roster); i++ {
		for j := i + 1; j < len(e.roster); j++ {
			a, b := e.roster[i], e.roster[j]
			lastMatchup = a.Name() + " vs " + b.Name()
			e.tracef("match %s", lastMatchup)
			if err := e.match(ctx, a, b, totals, cooperations); err != nil {
				return TrialResult{}, err
			}
			played += e.rounds
		}
	}

	points := make(map[string]float64, len(totals))
	table := map[string]any{
		"rounds":       played,
		"last_matchup": lastMatchup,
	}
	for name, total := range totals {
		points[name] = total * e.scale
		table[name+"_cooperations"] = cooperations[name]
	}
	return TrialResult{Points: points, Table: table}, nil
}

func (e *dilemmaEngine) match(ctx context.Context, a, b strategy.Strategy, totals map[string]float64, cooperations map[string]int) error {
	var lastA, lastB string
	var scoreA, scoreB float64
	for round := 1; round <= e.rounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		actA, err := e.decide(ctx, a, b.Name(), round, lastA, lastB, scoreA)
		if err != nil {
			return err
		}
		actB, err := e.decide(ctx, b, a.Name(), round, lastB, lastA, scoreB)
		if err != nil {
			return err
		}
		scoreA += payoff[actA][actB]
		scoreB += payoff[actB][actA]
		if actA == "cooperate" {
			cooperations[a.Name()]++
		}
		if actB == "cooperate" {
			cooperations[b.Name()]++
		}
		e.tracef("  round %d: %s %s, %s %s", round, a.Name(), actA, b.Name(), actB)
		lastA, lastB = actA, actB
	}
	totals[a.Name()] += scoreA
	totals[b.Name()] += scoreB
	e.tracef("  result: %s %.0f, %s %.0f", a.Name(), scoreA, b.Name(), scoreB)
	return nil
}

func (e *dilemmaEngine) decide(ctx context.Context, s strategy.Strategy, opponent string, round int, mine, theirs string, score float64) (string, error) {
	action, err := s.Decide(ctx, strategy.State{
		"round":         round,
		"rounds":        e.rounds,
		"opponent":      opponent,
		"my_last":       mine,
		"opponent_last": theirs,
		"score":         score,
		"actions":       []string{"cooperate", "defect"},
	}, e.out)
	for _, line := range e.out.Drain() {
		e.tracef("  [%s] %s", s.Name(), line)
	}
	if err != nil {
		return "", err
	}
	if _, ok := payoff[action]; !ok {
		return "", invalidAction(s.Name(), action, "cooperate", "defect")
	}
	return action, nil
}
