package game

import (
	"context"
	"fmt"
	"io"
	"math/rand"

	"arena/internal/arena/strategy"
	appErr "arena/pkg/errors"
)

// PigConfig tunes the dice accumulation game.
type PigConfig struct {
	Target    int `yaml:"target"`
	MaxRounds int `yaml:"maxRounds"`
	// MaxRollsPerTurn ends a turn that never banks.
	MaxRollsPerTurn int       `yaml:"maxRollsPerTurn"`
	House           []string  `yaml:"house"`
	Rewards         []float64 `yaml:"rewards"`
}

func (c PigConfig) withDefaults() PigConfig {
	if c.Target <= 0 {
		c.Target = 50
	}
	if c.MaxRounds <= 0 {
		c.MaxRounds = 30
	}
	if c.MaxRollsPerTurn <= 0 {
		c.MaxRollsPerTurn = 100
	}
	if len(c.House) == 0 {
		c.House = []string{"cautious", "greedy"}
	}
	if len(c.Rewards) == 0 {
		c.Rewards = []float64{3, 1, 0}
	}
	return c
}

// Pig is a push-your-luck dice game. Every turn starts with a mandatory roll;
// a 1 loses the turn total, anything else lets the player roll again or bank.
type Pig struct {
	cfg PigConfig
}

// NewPig creates the game.
func NewPig(cfg PigConfig) *Pig {
	return &Pig{cfg: cfg.withDefaults()}
}

// Name implements Game.
func (p *Pig) Name() string { return "pig" }

// TrialCost implements Game.
func (p *Pig) TrialCost() int { return 1 }

// Reserved implements Game.
func (p *Pig) Reserved() []string { return p.cfg.House }

// Roster implements Game.
func (p *Pig) Roster(team strategy.Strategy, seed int64) ([]strategy.Strategy, error) {
	return houseRoster(team, seed, p.cfg.House)
}

// NewEngine implements Game.
func (p *Pig) NewEngine(roster []strategy.Strategy, opts Options) (Engine, error) {
	if len(roster) < 2 {
		return nil, appErr.Newf(appErr.InvalidParams, "pig needs at least 2 players, got %d", len(roster))
	}
	rewards := p.cfg.Rewards
	if len(opts.Rewards) > 0 {
		rewards = opts.Rewards
	}
	return &pigEngine{
		cfg:     p.cfg,
		roster:  roster,
		rewards: rewards,
		rng:     rand.New(rand.NewSource(opts.Seed)),
		trace:   opts.Trace,
		out:     strategy.NewOutput(0),
	}, nil
}

type pigEngine struct {
	cfg     PigConfig
	roster  []strategy.Strategy
	rewards []float64
	rng     *rand.Rand
	trace   io.Writer
	out     *strategy.Output
}

type pigStats struct {
	score int
	banks int
	busts int
}

func (e *pigEngine) tracef(format string, args ...any) {
	if e.trace != nil {
		fmt.Fprintf(e.trace, format+"\n", args...)
	}
}

// flush moves a strategy's prints into the trace.
func (e *pigEngine) flush(name string) {
	for _, line := range e.out.Drain() {
		e.tracef("  [%s] %s", name, line)
	}
}

// PlayOne implements Engine.
func (e *pigEngine) PlayOne(ctx context.Context) (TrialResult, error) {
	stats := make(map[string]*pigStats, len(e.roster))
	names := make([]string, 0, len(e.roster))
	for _, s := range e.roster {
		stats[s.Name()] = &pigStats{}
		names = append(names, s.Name())
	}

	winner := ""
	rounds := 0
	for rounds < e.cfg.MaxRounds && winner == "" {
		rounds++
		e.tracef("round %d", rounds)
		for _, player := range e.roster {
			st := stats[player.Name()]
			if err := e.playTurn(ctx, player, st); err != nil {
				return TrialResult{}, err
			}
			if st.score >= e.cfg.Target {
				winner = player.Name()
				break
			}
		}
	}

	scores := make(map[string]int, len(stats))
	table := map[string]any{"rounds": rounds}
	for name, st := range stats {
		scores[name] = st.score
		table[name+"_score"] = st.score
		table[name+"_banks"] = st.banks
		table[name+"_busts"] = st.busts
	}
	if winner == "" {
		best := -1
		for _, name := range names {
			if scores[name] > best {
				best, winner = scores[name], name
			}
		}
	}
	table["winner"] = winner
	e.tracef("winner: %s", winner)

	return TrialResult{
		Points: placementPoints(names, scores, e.rewards),
		Table:  table,
	}, nil
}

func (e *pigEngine) playTurn(ctx context.Context, player strategy.Strategy, st *pigStats) error {
	name := player.Name()
	turn := 0
	for rolls := 1; ; rolls++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		roll := e.rng.Intn(6) + 1
		if roll == 1 {
			st.busts++
			e.tracef("  %s rolled 1 and lost %d", name, turn)
			return nil
		}
		turn += roll
		e.tracef("  %s rolled %d (turn %d, score %d)", name, roll, turn, st.score)
		if rolls >= e.cfg.MaxRollsPerTurn {
			e.tracef("  %s hit the roll limit and lost %d", name, turn)
			st.busts++
			return nil
		}

		action, err := player.Decide(ctx, strategy.State{
			"turn_total": turn,
			"score":      st.score,
			"target":     e.cfg.Target,
			"last_roll":  roll,
			"actions":    []string{"roll", "bank"},
		}, e.out)
		e.flush(name)
		if err != nil {
			return err
		}
		switch action {
		case "roll":
			continue
		case "bank":
			st.score += turn
			st.banks++
			e.tracef("  %s banks %d -> %d", name, turn, st.score)
			return nil
		default:
			return invalidAction(name, action, "roll", "bank")
		}
	}
}
