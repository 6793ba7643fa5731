package main

import (
	"flag"
	"fmt"
	"os"

	"GameForge/internal/app"
	"GameForge/internal/config"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "gameforge.yaml", "Path to YAML config file")

	cfg := config.Defaults()
	flag.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Agent service base URL")
	flag.StringVar(&cfg.Transport, "transport", cfg.Transport, "Event transport (sse|ws)")
	flag.StringVar(&cfg.WSURL, "ws-url", cfg.WSURL, "WebSocket endpoint when -transport=ws")
	flag.StringVar(&cfg.SessionID, "session-id", "", "Resume an existing conversation by ID")
	flag.StringVar(&cfg.UserID, "user", cfg.UserID, "User identifier sent with each request")
	flag.StringVar(&cfg.HistoryDB, "db", cfg.HistoryDB, "Path to the transcript database")
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	flag.Parse()

	fileCfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Flags the user set explicitly win over file and environment values.
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if !set["base-url"] {
		cfg.BaseURL = fileCfg.BaseURL
	}
	if !set["transport"] {
		cfg.Transport = fileCfg.Transport
	}
	if !set["ws-url"] {
		cfg.WSURL = fileCfg.WSURL
	}
	if !set["user"] {
		cfg.UserID = fileCfg.UserID
	}
	if !set["db"] {
		cfg.HistoryDB = fileCfg.HistoryDB
	}
	if !set["debug"] {
		cfg.Debug = fileCfg.Debug
	}

	a, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	if err := a.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
