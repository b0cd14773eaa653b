// Package config loads the YAML configuration of the relay server and the
// board client.
//
// A file is optional: Default values are used as a base and the file, when
// given, is merged on top of them. Command-line flags are applied by the
// commands after loading, so the precedence is defaults < file < flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iudanet/boardsync/internal/validation"
)

// EnvConfig переменная окружения с путем к файлу конфигурации
const EnvConfig = "BOARDSYNC_CONFIG"

// ServerConfig configures the relay server.
type ServerConfig struct {
	// Addr is the HTTP listen address.
	// Default: :8080
	Addr string `yaml:"addr"`

	// DBPath is the sqlite database file.
	// Default: boardsync.db
	DBPath string `yaml:"db_path"`

	// JWTSecret signs and verifies access tokens. Required.
	JWTSecret string `yaml:"jwt_secret"`

	// TokenTTL is the lifetime of tokens minted by the token command.
	// Default: 24h
	TokenTTL time.Duration `yaml:"token_ttl"`

	// HistoryLimit is the number of messages kept per topic.
	// Default: 500
	HistoryLimit int `yaml:"history_limit"`

	// RateLimit configures the per-IP request limiter.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// MDNS configures LAN advertisement.
	MDNS MDNSConfig `yaml:"mdns"`
}

// RateLimitConfig configures the per-IP request limiter.
type RateLimitConfig struct {
	// Requests allowed per Window. Zero disables the limiter.
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// MDNSConfig configures LAN advertisement of the relay.
type MDNSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"` // Instance имя экземпляра, пустое - имя хоста
}

// ClientConfig configures the board client.
type ClientConfig struct {
	// ServerURL is the base URL of the relay.
	// Default: http://localhost:8080
	ServerURL string `yaml:"server_url"`

	// Token is the access token. Prompted for when empty.
	Token string `yaml:"token"`

	// BoardID is the board to open.
	BoardID string `yaml:"board_id"`

	// Name and Color identify the participant to others.
	Name  string `yaml:"name"`
	Color string `yaml:"color"`

	// CachePath is the bbolt file used as the offline snapshot cache.
	// Default: ${HOME}/.cache/boardsync/cache.db
	CachePath string `yaml:"cache_path"`

	// CursorInterval bounds how often the cursor is published.
	// Default: 50ms
	CursorInterval time.Duration `yaml:"cursor_interval"`

	// SnapshotDelay is the debounce of snapshot writes.
	// Default: 500ms
	SnapshotDelay time.Duration `yaml:"snapshot_delay"`

	// ExportPath is where the export command writes the PDF.
	// Default: board.pdf
	ExportPath string `yaml:"export_path"`
}

// DefaultServer returns the default server configuration.
func DefaultServer() *ServerConfig {
	return &ServerConfig{
		Addr:         ":8080",
		DBPath:       "boardsync.db",
		TokenTTL:     24 * time.Hour,
		HistoryLimit: 500,
		RateLimit: RateLimitConfig{
			Requests: 100,
			Window:   time.Minute,
		},
		MDNS: MDNSConfig{Enabled: true},
	}
}

// DefaultClient returns the default client configuration.
func DefaultClient() *ClientConfig {
	return &ClientConfig{
		ServerURL:      "http://localhost:8080",
		Color:          "#1E88E5",
		CachePath:      "${HOME}/.cache/boardsync/cache.db",
		CursorInterval: 50 * time.Millisecond,
		SnapshotDelay:  500 * time.Millisecond,
		ExportPath:     "board.pdf",
	}
}

// Path returns the config file named by flagValue, falling back to the
// BOARDSYNC_CONFIG environment variable. An empty result means no file.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvConfig)
}

// LoadServer loads the server configuration from path on top of the defaults.
// An empty path returns the defaults.
func LoadServer(path string) (*ServerConfig, error) {
	cfg := DefaultServer()
	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.DBPath = expandVars(cfg.DBPath)
	cfg.JWTSecret = expandVars(cfg.JWTSecret)
	return cfg, nil
}

// LoadClient loads the client configuration from path on top of the defaults.
// An empty path returns the defaults.
func LoadClient(path string) (*ClientConfig, error) {
	cfg := DefaultClient()
	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.CachePath = expandVars(cfg.CachePath)
	cfg.ExportPath = expandVars(cfg.ExportPath)
	return cfg, nil
}

func loadFile(path string, out any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the server configuration for errors.
func (c *ServerConfig) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	} else if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("jwt_secret must be at least 16 characters"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("token_ttl must be positive, got %s", c.TokenTTL))
	}
	if c.HistoryLimit <= 0 {
		errs = append(errs, fmt.Errorf("history_limit must be positive, got %d", c.HistoryLimit))
	}
	if c.RateLimit.Requests < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.requests must not be negative, got %d", c.RateLimit.Requests))
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit.window must be positive when the limiter is enabled"))
	}

	return errors.Join(errs...)
}

// Validate checks the client configuration for errors. The board id is only
// checked when set since not every command needs one.
func (c *ClientConfig) Validate() error {
	var errs []error

	if c.ServerURL == "" {
		errs = append(errs, errors.New("server_url is required"))
	} else if u, err := url.Parse(c.ServerURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("server_url must be an http(s) URL, got %q", c.ServerURL))
	}
	if c.BoardID != "" {
		if err := validation.ValidateBoardID(c.BoardID); err != nil {
			errs = append(errs, fmt.Errorf("board_id: %w", err))
		}
	}
	if c.Name != "" {
		if err := validation.ValidateDisplayName(c.Name); err != nil {
			errs = append(errs, fmt.Errorf("name: %w", err))
		}
	}
	if err := validation.ValidateColor(c.Color); err != nil {
		errs = append(errs, fmt.Errorf("color: %w", err))
	}
	if c.CachePath == "" {
		errs = append(errs, errors.New("cache_path is required"))
	}
	if c.CursorInterval <= 0 {
		errs = append(errs, fmt.Errorf("cursor_interval must be positive, got %s", c.CursorInterval))
	}
	if c.SnapshotDelay <= 0 {
		errs = append(errs, fmt.Errorf("snapshot_delay must be positive, got %s", c.SnapshotDelay))
	}

	return errors.Join(errs...)
}
