package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Upstream UpstreamConfig `toml:"upstream"`
	Auth     AuthConfig     `toml:"auth"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Sync     SyncConfig     `toml:"sync"`
}

// UpstreamConfig contains ChessDojo API settings.
type UpstreamConfig struct {
	BaseURL               string  `toml:"base_url"`
	RequestTimeoutSeconds int     `toml:"request_timeout_seconds"`
	RateLimitPerSecond    float64 `toml:"rate_limit_per_second"`
}

// AuthConfig contains the OAuth2 settings for the upstream identity provider.
type AuthConfig struct {
	TokenURL     string `toml:"token_url"`
	AuthorizeURL string `toml:"authorize_url"`
	ClientID     string `toml:"client_id"`
	RedirectURI  string `toml:"redirect_uri"`
}

// DatabaseConfig contains local cache database settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the local proxy HTTP server.
type ServerConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	AllowOrigin string `toml:"allow_origin"`
}

// SyncConfig contains preference sync tuning.
type SyncConfig struct {
	DebounceMillis int `toml:"debounce_ms"`
}

// BootstrapTimeout returns the bound on a single bootstrap fetch attempt.
func (c *Config) BootstrapTimeout() time.Duration {
	if c.Upstream.RequestTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Upstream.RequestTimeoutSeconds) * time.Second
}

// SyncDebounce returns the debounce window for preference edits.
func (c *Config) SyncDebounce() time.Duration {
	if c.Sync.DebounceMillis <= 0 {
		return 400 * time.Millisecond
	}
	return time.Duration(c.Sync.DebounceMillis) * time.Millisecond
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
