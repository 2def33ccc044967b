package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"arena/internal/arena/analyzer"
	"arena/internal/arena/game"
	"arena/internal/arena/model"
	"arena/internal/arena/simulation"
)

const alwaysBank = `
function make_decision(state)
  return "bank"
end
`

func newTestService(t *testing.T, mutate func(*Config)) (*Service, string) {
	t.Helper()
	root := t.TempDir()
	cfg := Config{
		Analyzer:       analyzer.New(analyzer.DefaultPolicy()),
		Games:          game.DefaultRegistry(),
		Runner:         simulation.NewRunner(simulation.Config{PoolSize: 4, TrialTimeout: 2 * time.Second}),
		WorkRoot:       root,
		RequestTimeout: 20 * time.Second,
		TraceTimeout:   2 * time.Second,
		Seed:           1,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, root
}

func request(team, code string, n int) model.ExecuteRequest {
	return model.ExecuteRequest{Code: code, GameName: "pig", TeamName: team, NumSimulations: n}
}

func TestValidateAlwaysBank(t *testing.T) {
	svc, root := newTestService(t, nil)
	resp, err := svc.Validate(context.Background(), request("alpha", alwaysBank, 10))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if resp.Status != model.StatusSuccess {
		t.Fatalf("expected success, got %+v", resp)
	}
	if resp.SimulationResults.NumSimulations != 10 {
		t.Fatalf("expected 10 trials, got %d", resp.SimulationResults.NumSimulations)
	}
	if _, ok := resp.SimulationResults.TotalPoints["alpha"]; !ok {
		t.Fatalf("missing team in total_points: %v", resp.SimulationResults.TotalPoints)
	}
	if !strings.Contains(resp.Feedback, "alpha rolled") {
		t.Fatalf("feedback does not trace the team:\n%s", resp.Feedback)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read work root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("scratch files left behind: %d", len(entries))
	}
}

func TestRejectedSubmissions(t *testing.T) {
	svc, root := newTestService(t, nil)
	tests := []struct {
		name string
		req  model.ExecuteRequest
		want string
	}{
		{
			name: "os import",
			req:  request("alpha", "function make_decision(state)\n  os.execute('id')\n  return 'bank'\nend", 5),
			want: "unauthorized import: os",
		},
		{
			name: "require os",
			req:  request("alpha", `local os = require("os")`+alwaysBank, 5),
			want: "unauthorized import: os",
		},
		{
			name: "denied call",
			req:  request("alpha", `local f = loadstring("x")`+alwaysBank, 5),
			want: "unauthorized function call: loadstring",
		},
		{
			name: "unknown game",
			req:  model.ExecuteRequest{Code: alwaysBank, GameName: "chess", TeamName: "alpha"},
			want: "unknown game: chess",
		},
		{
			name: "missing entry point",
			req:  request("alpha", `function decide(state) return "bank" end`, 5),
			want: "make_decision",
		},
		{
			name: "load error",
			req:  request("alpha", `error("nope")`+alwaysBank, 5),
			want: "strategy failed to load",
		},
		{
			name: "missing team",
			req:  request("", alwaysBank, 5),
			want: "team_name is required",
		},
		{
			name: "negative trials",
			req:  request("alpha", alwaysBank, -1),
			want: "num_simulations must not be negative",
		},
		{
			name: "reserved team",
			req:  request("greedy", alwaysBank, 5),
			want: "reserved",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.Validate(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("unexpected service error: %v", err)
			}
			if resp.Status != model.StatusError {
				t.Fatalf("expected error status, got %+v", resp)
			}
			if !strings.Contains(resp.Message, tt.want) {
				t.Fatalf("expected message containing %q, got %q", tt.want, resp.Message)
			}
			if resp.SimulationResults != nil {
				t.Fatalf("error responses carry no partial results")
			}
		})
	}
	if entries, _ := os.ReadDir(root); len(entries) != 0 {
		t.Fatalf("scratch files left behind: %d", len(entries))
	}
}

func TestTrialCounts(t *testing.T) {
	svc, _ := newTestService(t, func(cfg *Config) {
		cfg.Validation = TrialLimits{Default: 3, Max: 6}
	})
	tests := []struct {
		requested int
		want      int
	}{
		{requested: 0, want: 3},
		{requested: 4, want: 4},
		{requested: 50, want: 6},
	}
	for _, tt := range tests {
		resp, err := svc.Validate(context.Background(), request("alpha", alwaysBank, tt.requested))
		if err != nil {
			t.Fatalf("validate: %v", err)
		}
		if resp.SimulationResults == nil || resp.SimulationResults.NumSimulations != tt.want {
			t.Fatalf("requested %d: expected %d trials, got %+v", tt.requested, tt.want, resp)
		}
	}
}

func TestSimulateUsesSimulationLimits(t *testing.T) {
	svc, _ := newTestService(t, func(cfg *Config) {
		cfg.Simulation = TrialLimits{Default: 2, Max: 4}
	})
	resp, err := svc.Simulate(context.Background(), model.ExecuteRequest{
		Code:          "function make_decision(state) return 'cooperate' end",
		GameName:      "prisoners_dilemma",
		TeamName:      "alpha",
		CustomRewards: []float64{2},
	})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if resp.Status != model.StatusSuccess || resp.SimulationResults.NumSimulations != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.SimulationResults.Table["alpha_cooperations"] == nil {
		t.Fatalf("missing team statistics: %v", resp.SimulationResults.Table)
	}
}

func TestFailingTrialsAreDropped(t *testing.T) {
	svc, _ := newTestService(t, nil)
	code := `
local rnd = require("arena.random")
function make_decision(state)
  if rnd.chance(0.3) then
    local x = nil
    return x.field
  end
  return "bank"
end`
	resp, err := svc.Validate(context.Background(), request("alpha", code, 20))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if resp.Status != model.StatusSuccess {
		t.Fatalf("trial failures must not fail the request: %+v", resp)
	}
	if resp.SimulationResults.NumSimulations > 20 {
		t.Fatalf("num_simulations exceeds request: %d", resp.SimulationResults.NumSimulations)
	}
}

func TestHostileLoopIsContained(t *testing.T) {
	svc, _ := newTestService(t, func(cfg *Config) {
		cfg.Runner = simulation.NewRunner(simulation.Config{PoolSize: 4, TrialTimeout: 50 * time.Millisecond})
		cfg.TraceTimeout = 50 * time.Millisecond
		cfg.RequestTimeout = 5 * time.Second
	})
	start := time.Now()
	req := request("alpha", "function make_decision(state) while true do end end", 4)
	req.GameName = "prisoners_dilemma"
	resp, err := svc.Validate(context.Background(), req)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("hostile loop was not contained, took %v", elapsed)
	}
	if resp.Status != model.StatusSuccess || resp.SimulationResults.NumSimulations != 0 {
		t.Fatalf("expected honest empty result, got %+v", resp)
	}
	if !strings.Contains(resp.Feedback, "traced game failed") {
		t.Fatalf("feedback must report the traced failure:\n%s", resp.Feedback)
	}
}

func TestConcurrentTeamsDoNotMix(t *testing.T) {
	svc, _ := newTestService(t, nil)
	teams := []string{"alpha", "beta", "gamma", "delta"}
	var wg sync.WaitGroup
	errs := make(chan error, len(teams))
	for _, team := range teams {
		wg.Add(1)
		go func(team string) {
			defer wg.Done()
			resp, err := svc.Validate(context.Background(), request(team, alwaysBank, 8))
			if err != nil {
				errs <- err
				return
			}
			if resp.Status != model.StatusSuccess {
				errs <- fmt.Errorf("%s: %s", team, resp.Message)
				return
			}
			for key := range resp.SimulationResults.TotalPoints {
				for _, other := range teams {
					if other != team && key == other {
						errs <- fmt.Errorf("%s response contains %s", team, other)
					}
				}
			}
			if _, ok := resp.SimulationResults.TotalPoints[team]; !ok {
				errs <- fmt.Errorf("%s missing from its own response", team)
			}
		}(team)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestPrintFeedback(t *testing.T) {
	svc, _ := newTestService(t, nil)
	code := `
print("hello from alpha")
function make_decision(state)
  print("deciding at", state.round)
  return "cooperate"
end`
	req := request("alpha", code, 1)
	req.GameName = "prisoners_dilemma"
	resp, err := svc.Validate(context.Background(), req)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(resp.Feedback, "[load] hello from alpha") {
		t.Fatalf("missing load output:\n%s", resp.Feedback)
	}
	if !strings.Contains(resp.Feedback, "[alpha] deciding at") {
		t.Fatalf("missing decision output:\n%s", resp.Feedback)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := truncate("0123456789", 4); !strings.HasPrefix(got, "0123\n... feedback truncated") {
		t.Fatalf("unexpected truncation: %q", got)
	}
	for max := 1; max < 8; max++ {
		got := truncate("hé→漢字ok", max)
		if !utf8.ValidString(got) {
			t.Fatalf("max %d split a rune: %q", max, got)
		}
	}
	if got := truncate("hé", 2); !strings.HasPrefix(got, "h\n") {
		t.Fatalf("expected cut before the split rune, got %q", got)
	}
}
