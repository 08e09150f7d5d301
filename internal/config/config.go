// Package config loads the YAML configuration shared by the reviewloop
// commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	yaml "go.yaml.in/yaml/v2"
)

// Config is the structure of the configuration YAML file.
type Config struct {
	Engine    Engine    `yaml:"engine"`
	Provider  Provider  `yaml:"provider"`
	Reviewer  Reviewer  `yaml:"reviewer"`
	Store     Store     `yaml:"store"`
	Log       Log       `yaml:"log"`
	Telemetry Telemetry `yaml:"telemetry"`
	Server    Server    `yaml:"server"`
}

// Engine holds the loop budgets.
type Engine struct {
	MaxTurns int `yaml:"max_turns"`

	// MaxSteps of 0 selects the engine default for MaxTurns.
	MaxSteps int `yaml:"max_steps"`

	// NodeTimeout of 0 leaves node execution unbounded.
	NodeTimeout time.Duration `yaml:"node_timeout"`
}

// Provider selects the Planner and Reviewer implementation.
//
// "reference" uses the deterministic planner and turn cadence; the others
// back both nodes with the named LLM.
type Provider struct {
	Name      string `yaml:"name"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// Reviewer tunes the reference turn cadence.
type Reviewer struct {
	Threshold   int `yaml:"threshold"`
	StrictExtra int `yaml:"strict_extra"`
}

// Store selects where steps are persisted. Password and DB apply to the redis
// driver when DSN is a bare host:port rather than a redis:// URL.
type Store struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Log selects the event log format.
type Log struct {
	Format string `yaml:"format"`
}

// Telemetry toggles tracing and the standalone metrics listener.
type Telemetry struct {
	Tracing     bool   `yaml:"tracing"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Server configures `reviewloop serve`.
type Server struct {
	Addr string `yaml:"addr"`
}

// Supported values.
var (
	Providers    = []string{"reference", "anthropic", "openai", "google"}
	StoreDrivers = []string{"memory", "sqlite", "mysql", "redis"}
	LogFormats   = []string{"text", "json"}
)

// defaultKeyEnv maps a provider to the environment variable holding its key.
var defaultKeyEnv = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"google":    "GOOGLE_API_KEY",
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Engine:   Engine{MaxTurns: 8},
		Provider: Provider{Name: "reference"},
		Reviewer: Reviewer{Threshold: 2},
		Store:    Store{Driver: "memory"},
		Log:      Log{Format: "text"},
		Server:   Server{Addr: ":8080"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults, and
// so does a path that does not exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	if c.Engine.MaxTurns <= 0 {
		return fmt.Errorf("engine.max_turns must be positive, got %d", c.Engine.MaxTurns)
	}
	if c.Engine.MaxSteps < 0 {
		return fmt.Errorf("engine.max_steps must not be negative, got %d", c.Engine.MaxSteps)
	}
	if c.Engine.NodeTimeout < 0 {
		return fmt.Errorf("engine.node_timeout must not be negative, got %v", c.Engine.NodeTimeout)
	}
	if !slices.Contains(Providers, c.Provider.Name) {
		return fmt.Errorf("provider.name %q is not one of %v", c.Provider.Name, Providers)
	}
	if c.Reviewer.Threshold < 0 || c.Reviewer.StrictExtra < 0 {
		return errors.New("reviewer.threshold and reviewer.strict_extra must not be negative")
	}
	if !slices.Contains(StoreDrivers, c.Store.Driver) {
		return fmt.Errorf("store.driver %q is not one of %v", c.Store.Driver, StoreDrivers)
	}
	if c.Store.DB < 0 {
		return fmt.Errorf("store.db must not be negative, got %d", c.Store.DB)
	}
	if c.Store.Driver == "mysql" && c.Store.DSN == "" {
		return errors.New("store.dsn is required for the mysql driver")
	}
	if !slices.Contains(LogFormats, c.Log.Format) {
		return fmt.Errorf("log.format %q is not one of %v", c.Log.Format, LogFormats)
	}
	return nil
}

// APIKey returns the provider key from the environment. The reference
// provider needs none.
func (c *Config) APIKey() (string, error) {
	if c.Provider.Name == "reference" {
		return "", nil
	}
	env := c.Provider.APIKeyEnv
	if env == "" {
		env = defaultKeyEnv[c.Provider.Name]
	}
	key := os.Getenv(env)
	if key == "" {
		return "", fmt.Errorf("provider %s: environment variable %s is not set", c.Provider.Name, env)
	}
	return key, nil
}
