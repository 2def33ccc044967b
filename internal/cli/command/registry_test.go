package command

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"arena/internal/arena/model"
)

func TestBuildExecuteRequest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.lua")
	code := "function make_decision(state) return \"bank\" end\n"
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cmd := Registry()["simulate"]
	params := Params{}
	params.Set("game_name", "pig")
	params.Set("team", "alpha")
	params.Set("file", path)
	params.Set("n", "25")
	params.Set("rewards", "3, 1,0")

	req, err := BuildRequest(cmd, params)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if req.Method != "POST" || req.Path != "/simulate" {
		t.Fatalf("unexpected request line %s %s", req.Method, req.Path)
	}
	var body model.ExecuteRequest
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.GameName != "pig" || body.TeamName != "alpha" || body.Code != code || body.NumSimulations != 25 {
		t.Fatalf("unexpected body: %+v", body)
	}
	if len(body.CustomRewards) != 3 || body.CustomRewards[0] != 3 {
		t.Fatalf("unexpected rewards: %v", body.CustomRewards)
	}
}

func TestBuildRequestErrors(t *testing.T) {
	tests := []struct {
		name   string
		params Params
	}{
		{"no code", Params{"game": "pig", "team": "a"}},
		{"bad n", Params{"game": "pig", "team": "a", "code": "x", "n": "ten"}},
		{"bad rewards", Params{"game": "pig", "team": "a", "code": "x", "rewards": "3,x"}},
		{"missing file", Params{"game": "pig", "team": "a", "file": "/nonexistent/bot.lua"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := BuildRequest(Registry()["validate"], tt.params); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestBuildGetRequestHasNoBody(t *testing.T) {
	req, err := BuildRequest(Registry()["health"], Params{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if req.Body != nil || req.Path != "/health" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestParseParams(t *testing.T) {
	cmd := Registry()["simulate"]
	params, err := ParseParams(cmd, []string{"GAME_NAME=pig", "team=alpha", "code=x=1"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if params.Get("game") != "pig" || params.Get("team") != "alpha" || params.Get("code") != "x=1" {
		t.Fatalf("unexpected params: %v", params)
	}
	if _, err := ParseParams(cmd, []string{"team"}); err == nil {
		t.Fatalf("expected error for bare token")
	}
}
