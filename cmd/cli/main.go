package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"judgeboard/internal/cli/command"
	"judgeboard/internal/cli/config"
	httpclient "judgeboard/internal/cli/http"
	"judgeboard/internal/cli/repl"
	"judgeboard/internal/cli/state"
)

const defaultConfigPath = "configs/cli.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	baseURL := flag.String("base", "", "Override base URL")
	timeout := flag.Duration("timeout", 0, "Override HTTP timeout (e.g. 30s)")
	user := flag.String("user", "", "Override default user id")
	statePath := flag.String("state", "", "Override profile state path")
	pretty := flag.Bool("pretty", false, "Pretty print JSON response")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *statePath != "" {
		cfg.StatePath = *statePath
	}
	if *pretty {
		trueValue := true
		cfg.PrettyJSON = &trueValue
	}

	profile, err := state.Load(cfg.StatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load profile failed: %v\n", err)
		os.Exit(1)
	}
	if *user != "" {
		profile.UserID = *user
	}

	reader, err := repl.NewTerminalReader(cfg.HistoryFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open terminal failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = reader.Close() }()

	client := httpclient.New(cfg.BaseURL, cfg.Timeout, func() string {
		return profile.UserID
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	session := repl.New(repl.Options{
		Client:     client,
		Commands:   command.Registry(),
		Profile:    &profile,
		StatePath:  cfg.StatePath,
		PrettyJSON: cfg.PrettyJSON != nil && *cfg.PrettyJSON,
		Reader:     reader,
		Out:        reader.Stdout(),
	})
	session.Run(ctx)
}
