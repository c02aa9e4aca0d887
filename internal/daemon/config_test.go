package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 11435 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 11435)
	}
	if cfg.Tinker.PollIntervalSeconds != 3 {
		t.Errorf("Tinker.PollIntervalSeconds = %d, want 3", cfg.Tinker.PollIntervalSeconds)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TINKER_VOICE_HOME", dir)

	toml := `
[api]
port = 9999

[tinker]
base_url = "http://localhost:8080"
api_key = "tk-test"
poll_interval_seconds = 1
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 9999 {
		t.Errorf("API.Port = %d, want 9999", cfg.API.Port)
	}
	if cfg.Tinker.BaseURL != "http://localhost:8080" {
		t.Errorf("Tinker.BaseURL = %q", cfg.Tinker.BaseURL)
	}
	if cfg.Tinker.APIKey != "tk-test" {
		t.Errorf("Tinker.APIKey = %q", cfg.Tinker.APIKey)
	}
	// File values merge over defaults; untouched sections keep them.
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want default", cfg.API.Host)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("TINKER_VOICE_HOME", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != DefaultConfig().API.Port {
		t.Errorf("missing file must fall back to defaults")
	}
}

func TestEnvAPIKeyOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TINKER_VOICE_HOME", dir)
	t.Setenv("TINKER_API_KEY", "tk-env")

	toml := "[tinker]\napi_key = \"tk-file\"\n"
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Tinker.APIKey != "tk-env" {
		t.Errorf("APIKey = %q, want env override", cfg.Tinker.APIKey)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	t.Setenv("TINKER_VOICE_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.API.Port = 4242
	cfg.Tinker.Mock = true
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	got, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.API.Port != 4242 || !got.Tinker.Mock {
		t.Errorf("round trip lost values: %+v", got)
	}
}
