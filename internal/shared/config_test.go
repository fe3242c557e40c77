package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Upstream.BaseURL != "https://api.chessdojo.club" {
			t.Errorf("expected upstream base URL https://api.chessdojo.club, got %s", config.Upstream.BaseURL)
		}

		if config.Database.Path != "dojotap.db" {
			t.Errorf("expected database path dojotap.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8787 {
			t.Errorf("expected server port 8787, got %d", config.Server.Port)
		}

		if config.Sync.DebounceMillis != 400 {
			t.Errorf("expected debounce 400ms, got %d", config.Sync.DebounceMillis)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Upstream.BaseURL != defaultConfig.Upstream.BaseURL {
			t.Errorf("created config upstream base URL doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("expected error when config already exists")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		t.Run("Missing File", func(t *testing.T) {
			if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
				t.Error("expected error for missing file")
			}
		})

		t.Run("Invalid TOML", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.toml")
			if err := os.WriteFile(path, []byte("[upstream\nbroken"), 0644); err != nil {
				t.Fatalf("write failed: %v", err)
			}
			if _, err := LoadConfig(path); err == nil {
				t.Error("expected error for invalid TOML")
			}
		})

		t.Run("Valid File", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			content := `
[upstream]
base_url = "http://localhost:9999"
request_timeout_seconds = 3

[sync]
debounce_ms = 150
`
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatalf("write failed: %v", err)
			}

			config, err := LoadConfig(path)
			if err != nil {
				t.Fatalf("LoadConfig failed: %v", err)
			}
			if config.Upstream.BaseURL != "http://localhost:9999" {
				t.Errorf("expected overridden base URL, got %s", config.Upstream.BaseURL)
			}
			if config.BootstrapTimeout() != 3*time.Second {
				t.Errorf("expected 3s timeout, got %v", config.BootstrapTimeout())
			}
			if config.SyncDebounce() != 150*time.Millisecond {
				t.Errorf("expected 150ms debounce, got %v", config.SyncDebounce())
			}
		})
	})

	t.Run("Derived Durations Fall Back", func(t *testing.T) {
		var config Config
		if config.BootstrapTimeout() != 10*time.Second {
			t.Errorf("expected 10s default timeout, got %v", config.BootstrapTimeout())
		}
		if config.SyncDebounce() != 400*time.Millisecond {
			t.Errorf("expected 400ms default debounce, got %v", config.SyncDebounce())
		}
	})
}
