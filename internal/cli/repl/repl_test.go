package repl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"arena/internal/arena/model"
	"arena/internal/cli/command"
	httpclient "arena/internal/cli/http"
)

type scriptedInput struct {
	lines   []string
	prompts []string
}

func (s *scriptedInput) Readline() (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptedInput) SetPrompt(p string) {
	s.prompts = append(s.prompts, p)
}

func newSession(t *testing.T, handler http.HandlerFunc, in *scriptedInput) (*Session, *bytes.Buffer) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	out := &bytes.Buffer{}
	exec := httpclient.New(srv.URL, time.Second)
	sup := httpclient.New(srv.URL, time.Second)
	return New(exec, sup, command.Registry(), true, in, out), out
}

func TestSessionValidatePromptsForMissingFields(t *testing.T) {
	var got model.ExecuteRequest
	handler := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/validate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(model.ExecuteResponse{Status: model.StatusSuccess, Feedback: "round 1\nwinner: alpha\n"})
	}
	in := &scriptedInput{lines: []string{"alpha"}}
	s, out := newSession(t, handler, in)

	if s.Execute(context.Background(), `validate game=pig code="function make_decision(s) return 'bank' end"`) {
		t.Fatalf("validate must not end the session")
	}
	if got.TeamName != "alpha" || got.GameName != "pig" || !strings.Contains(got.Code, "make_decision") {
		t.Fatalf("unexpected request: %+v", got)
	}
	if len(in.prompts) != 1 || in.prompts[0] != "team: " {
		t.Fatalf("expected one team prompt, got %v", in.prompts)
	}
	text := out.String()
	if !strings.Contains(text, "HTTP 200") || !strings.Contains(text, "winner: alpha") {
		t.Fatalf("unexpected output:\n%s", text)
	}
}

func TestSessionSystemCommands(t *testing.T) {
	s, out := newSession(t, func(w http.ResponseWriter, r *http.Request) {}, &scriptedInput{})
	ctx := context.Background()

	s.Execute(ctx, "set base http://arena:8080")
	s.Execute(ctx, "show config")
	s.Execute(ctx, "frobnicate")
	if !s.Execute(ctx, "exit") {
		t.Fatalf("exit must end the session")
	}
	text := out.String()
	for _, want := range []string{"base: http://arena:8080", "unknown command: frobnicate", "bye"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestSessionRunStopsAtEOF(t *testing.T) {
	var calls atomic.Int32
	s, _ := newSession(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}, &scriptedInput{lines: []string{"health", "", "health"}})
	s.Run(context.Background())
	if calls.Load() != 2 {
		t.Fatalf("expected 2 health calls, got %d", calls.Load())
	}
}
