// Package file loads tap configuration from a TOML file, with
// environment variable overrides for the credentials that should not
// sit in a file.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/sentry-tap/internal/connectors/sentry"
	"github.com/custodia-labs/sentry-tap/internal/core/domain"
)

// State backends.
const (
	StateBackendFile   = "file"
	StateBackendSQLite = "sqlite"
	StateBackendMemory = "memory"
)

// Config is the full tap configuration.
type Config struct {
	Token             string   `toml:"token"`
	Organization      string   `toml:"organization"`
	BaseURL           string   `toml:"base_url"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	TimeoutSeconds    int      `toml:"timeout_seconds"`
	Streams           []string `toml:"streams"`

	State StateConfig `toml:"state"`
}

// StateConfig selects where bookmark state is persisted.
type StateConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// DefaultPath returns the default config file location,
// ~/.sentry-tap/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".sentry-tap", "config.toml"), nil
}

// Load reads the config file at path, or the default location when
// path is empty. A missing file is not an error: the zero config plus
// environment overrides may still be complete.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Fall through to environment overrides.
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv lets the environment override the file. SENTRY_TOKEN keeps
// credentials out of the config file entirely.
func (c *Config) applyEnv() {
	if token := os.Getenv("SENTRY_TOKEN"); token != "" {
		c.Token = token
	}
	if org := os.Getenv("SENTRY_ORGANIZATION"); org != "" {
		c.Organization = org
	}
	if base := os.Getenv("SENTRY_BASE_URL"); base != "" {
		c.BaseURL = base
	}
}

func (c *Config) validate() error {
	switch c.State.Backend {
	case "", StateBackendFile, StateBackendSQLite, StateBackendMemory:
	default:
		return fmt.Errorf("%w: unknown state backend %q", domain.ErrInvalidInput, c.State.Backend)
	}
	if c.State.Backend == "" {
		c.State.Backend = StateBackendFile
	}

	for _, name := range c.Streams {
		if _, err := domain.ParseStream(name); err != nil {
			return fmt.Errorf("stream %q: %w", name, err)
		}
	}
	return nil
}

// SelectedStreams resolves the configured stream names, in config
// order. An empty selection means every stream.
func (c *Config) SelectedStreams() ([]domain.Stream, error) {
	streams := make([]domain.Stream, 0, len(c.Streams))
	for _, name := range c.Streams {
		s, err := domain.ParseStream(name)
		if err != nil {
			return nil, fmt.Errorf("stream %q: %w", name, err)
		}
		streams = append(streams, s)
	}
	return streams, nil
}

// ClientConfig converts the tap configuration into the API client's
// configuration. Client-side validation of token and organization
// happens there.
func (c *Config) ClientConfig() sentry.Config {
	return sentry.Config{
		Token:             c.Token,
		Organization:      c.Organization,
		BaseURL:           c.BaseURL,
		Timeout:           time.Duration(c.TimeoutSeconds) * time.Second,
		RequestsPerSecond: c.RequestsPerSecond,
	}
}
