package repl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"arena/internal/cli/command"
	httpclient "arena/internal/cli/http"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
)

// LineReader is the input side of a session.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

// Session holds REPL state.
type Session struct {
	execution  *httpclient.Client
	supervisor *httpclient.Client
	commands   map[string]command.Command
	prettyJSON bool
	in         LineReader
	out        io.Writer
}

func New(execution, supervisor *httpclient.Client, commands map[string]command.Command, prettyJSON bool, in LineReader, out io.Writer) *Session {
	return &Session{
		execution:  execution,
		supervisor: supervisor,
		commands:   commands,
		prettyJSON: prettyJSON,
		in:         in,
		out:        out,
	}
}

// NewReadline builds a line editor with history and command completion.
func NewReadline(historyFile string, commands map[string]command.Command) (*readline.Instance, error) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	items := make([]readline.PrefixCompleterInterface, 0, len(names)+4)
	for _, name := range names {
		items = append(items, readline.PcItem(name))
	}
	items = append(items,
		readline.PcItem("set", readline.PcItem("base"), readline.PcItem("supervisor"), readline.PcItem("timeout")),
		readline.PcItem("show", readline.PcItem("config")),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
	return readline.NewEx(&readline.Config{
		Prompt:          "arena> ",
		HistoryFile:     historyFile,
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
}

func (s *Session) Run(ctx context.Context) {
	for {
		s.in.SetPrompt("arena> ")
		line, err := s.in.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.printLine("read input failed: %v", err)
			}
			return
		}
		if s.Execute(ctx, line) {
			return
		}
	}
}

// Execute handles one input line and reports whether the session should end.
func (s *Session) Execute(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	switch line {
	case "exit", "quit":
		s.printLine("bye")
		return true
	case "help":
		s.printHelp()
		return false
	}
	if strings.HasPrefix(line, "set ") {
		s.handleSet(strings.TrimSpace(strings.TrimPrefix(line, "set ")))
		return false
	}
	if strings.HasPrefix(line, "show ") {
		s.handleShow(strings.TrimSpace(strings.TrimPrefix(line, "show ")))
		return false
	}
	if err := s.handleCommand(ctx, line); err != nil {
		s.printLine("error: %v", err)
	}
	return false
}

func (s *Session) handleSet(args string) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		s.printLine("usage: set base|supervisor|timeout <value>")
		return
	}
	switch parts[0] {
	case "base", "supervisor":
		if len(parts) < 2 {
			s.printLine("usage: set %s http://127.0.0.1:8080", parts[0])
			return
		}
		client := s.execution
		if parts[0] == "supervisor" {
			client = s.supervisor
		}
		client.SetBaseURL(parts[1])
		s.printLine("%s set to %s", parts[0], parts[1])
	case "timeout":
		if len(parts) < 2 {
			s.printLine("usage: set timeout 10s")
			return
		}
		dur, err := time.ParseDuration(parts[1])
		if err != nil {
			s.printLine("invalid duration: %v", err)
			return
		}
		s.execution.SetTimeout(dur)
		s.supervisor.SetTimeout(dur)
		s.printLine("timeout set to %s", dur)
	default:
		s.printLine("unknown set command")
	}
}

func (s *Session) handleShow(args string) {
	switch args {
	case "config":
		s.printLine("base: %s", s.execution.BaseURL())
		s.printLine("supervisor: %s", s.supervisor.BaseURL())
		s.printLine("pretty: %v", s.prettyJSON)
	default:
		s.printLine("usage: show config")
	}
}

func (s *Session) handleCommand(ctx context.Context, line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}
	cmd, ok := s.commands[tokens[0]]
	if !ok {
		return fmt.Errorf("unknown command: %s", tokens[0])
	}
	params, err := command.ParseParams(cmd, tokens[1:])
	if err != nil {
		return err
	}
	if err := s.promptMissing(cmd, params); err != nil {
		return err
	}

	req, err := command.BuildRequest(cmd, params)
	if err != nil {
		return err
	}
	client := s.execution
	if cmd.Target == command.TargetSupervisor {
		client = s.supervisor
	}
	resp, err := client.Do(ctx, req.Method, req.Path, req.Body)
	if err != nil {
		return err
	}
	s.renderResponse(resp)
	return nil
}

func (s *Session) promptMissing(cmd command.Command, params command.Params) error {
	for _, field := range cmd.Fields {
		if !field.Required || params.Get(field.Name) != "" {
			continue
		}
		if field.Type == command.FieldFile && params.Get("code") != "" {
			continue
		}
		s.in.SetPrompt(field.Prompt + ": ")
		value, err := s.in.Readline()
		if err != nil {
			return fmt.Errorf("read input failed: %w", err)
		}
		params.Set(field.Name, strings.TrimSpace(value))
	}
	return nil
}

func (s *Session) renderResponse(resp httpclient.ResponseInfo) {
	s.printLine("HTTP %d (%s) request_id=%s", resp.StatusCode, resp.Duration, resp.RequestID)
	if len(resp.Body) == 0 {
		return
	}
	var envelope struct {
		Feedback string `json:"feedback"`
	}
	if err := json.Unmarshal(resp.Body, &envelope); err == nil && envelope.Feedback != "" {
		s.printLine("--- feedback ---")
		s.printLine("%s", strings.TrimRight(envelope.Feedback, "\n"))
		s.printLine("----------------")
	}
	if s.prettyJSON {
		var raw any
		if err := json.Unmarshal(resp.Body, &raw); err == nil {
			if m, ok := raw.(map[string]any); ok {
				delete(m, "feedback")
			}
			formatted, _ := json.MarshalIndent(raw, "", "  ")
			s.printLine("%s", string(formatted))
			return
		}
	}
	s.printLine("%s", string(resp.Body))
}

func (s *Session) printHelp() {
	s.printLine("usage: <command> key=value ...")
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s.printLine("  %-9s %s", name, s.commands[name].Summary)
	}
	s.printLine("system: help | exit | set base|supervisor|timeout | show config")
	s.printLine("examples:")
	s.printLine("  validate game=pig team=alpha file=./bot.lua n=10")
	s.printLine("  simulate game=prisoners_dilemma team=alpha file=./bot.lua n=500 rewards=3,1,0")
}

func (s *Session) printLine(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format+"\n", args...)
}
