// Package config resolves application configuration from an optional
// YAML file, environment variables (including a local .env file), and
// command-line flags, in increasing order of precedence.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v2"
)

const (
	TransportSSE = "sse"
	TransportWS  = "ws"
)

// Config holds application configuration.
type Config struct {
	BaseURL   string `yaml:"base_url"`  // agent service base URL
	Transport string `yaml:"transport"` // sse or ws
	WSURL     string `yaml:"ws_url"`    // websocket endpoint when transport=ws
	SessionID string `yaml:"-"`         // resume an existing conversation
	UserID    string `yaml:"user_id"`
	HistoryDB string `yaml:"history_db"` // path to the SQLite transcript store
	Debug     bool   `yaml:"debug"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		BaseURL:   "http://localhost:8000",
		Transport: TransportSSE,
		WSURL:     "ws://localhost:8000/generate-game-ws",
		UserID:    "terminal_user",
		HistoryDB: "gameforge.db",
	}
}

// Load builds the configuration from defaults, then the YAML file at
// path (if it exists), then environment variables. A missing .env file
// is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()

	_ = godotenv.Load()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if v := os.Getenv("GAMEFORGE_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("GAMEFORGE_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("GAMEFORGE_WS_URL"); v != "" {
		cfg.WSURL = v
	}
	if v := os.Getenv("GAMEFORGE_USER_ID"); v != "" {
		cfg.UserID = v
	}
	if v := os.Getenv("GAMEFORGE_HISTORY_DB"); v != "" {
		cfg.HistoryDB = v
	}

	return cfg, nil
}

// Validate rejects configurations the application cannot run with.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportSSE, TransportWS:
	default:
		return fmt.Errorf("unknown transport: %s", c.Transport)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	return nil
}
