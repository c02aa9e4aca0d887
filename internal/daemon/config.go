// Package daemon manages the tinkerd lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all daemon configuration.
type Config struct {
	API     APIConfig     `toml:"api"`
	Tinker  TinkerConfig  `toml:"tinker"`
	Store   StoreConfig   `toml:"store"`
	Logging LoggingConfig `toml:"logging"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	Metrics     bool     `toml:"metrics"`
}

// TinkerConfig controls the connection to the fine-tuning provider.
type TinkerConfig struct {
	BaseURL             string `toml:"base_url"`
	APIKey              string `toml:"api_key"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`

	// Mock forces the in-memory provider even when an API key is present.
	Mock bool `toml:"mock"`
}

// StoreConfig controls run persistence.
type StoreConfig struct {
	Dir string `toml:"dir"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	homeDir := Home()
	return Config{
		API: APIConfig{
			Host:        "127.0.0.1",
			Port:        11435,
			CORSOrigins: []string{"*"},
			Metrics:     true,
		},
		Tinker: TinkerConfig{
			PollIntervalSeconds: 3,
		},
		Store: StoreConfig{
			Dir: homeDir,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads config from ~/.tinker-voice/config.toml, falling back to
// defaults. TINKER_API_KEY in the environment overrides the file.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(Home(), "config.toml")

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if key := os.Getenv("TINKER_API_KEY"); key != "" {
		cfg.Tinker.APIKey = key
	}
	if cfg.Store.Dir == "" {
		cfg.Store.Dir = Home()
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.tinker-voice/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(Home(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// Home returns the tinker-voice data directory.
func Home() string {
	if env := os.Getenv("TINKER_VOICE_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tinker-voice")
}
