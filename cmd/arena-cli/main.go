package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"arena/internal/cli/command"
	"arena/internal/cli/config"
	httpclient "arena/internal/cli/http"
	"arena/internal/cli/repl"
)

func main() {
	configPath := flag.String("config", "configs/cli.yaml", "path to the cli config file")
	baseURL := flag.String("base", "", "execution service URL")
	supervisorURL := flag.String("supervisor", "", "supervisor URL")
	timeout := flag.Duration("timeout", 0, "HTTP timeout")
	pretty := flag.Bool("pretty", true, "pretty print JSON responses")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "arena-cli: %v\n", err)
		os.Exit(1)
	}
	// only flags given on the command line override the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "base":
			cfg.BaseURL = *baseURL
		case "supervisor":
			cfg.SupervisorURL = *supervisorURL
		case "timeout":
			cfg.Timeout = *timeout
		case "pretty":
			cfg.PrettyJSON = *pretty
		}
	})

	commands := command.Registry()
	rl, err := repl.NewReadline(cfg.HistoryFile, commands)
	if err != nil {
		fmt.Fprintf(os.Stderr, "arena-cli: init terminal: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = rl.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	session := repl.New(
		httpclient.New(cfg.BaseURL, cfg.Timeout),
		httpclient.New(cfg.SupervisorURL, cfg.Timeout),
		commands,
		cfg.PrettyJSON,
		rl,
		rl.Stdout(),
	)
	session.Run(ctx)
}
