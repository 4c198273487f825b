package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort       = 3001
	DefaultMaxAge         = 60 * time.Second
	DefaultReapInterval   = 30 * time.Second
	DefaultStreamInterval = 5 * time.Second
)

// EnvHTTPPort overrides server.http_port when set.
const EnvHTTPPort = "WEBHOOK_PORT"

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all relay server settings.
type ServerConfig struct {
	// HTTPPort is the port the webhook, poll, health, metrics and stream
	// endpoints listen on.
	HTTPPort int `yaml:"http_port"`

	// Answers controls pending answer retention.
	Answers AnswersConfig `yaml:"answers"`

	// StreamInterval is how often the WebSocket hub pushes health updates.
	StreamInterval time.Duration `yaml:"stream_interval"`

	CORS CORSConfig `yaml:"cors"`
}

// AnswersConfig controls in-memory answer retention.
type AnswersConfig struct {
	// MaxAge is how long an unclaimed answer stays pollable after arrival.
	MaxAge time.Duration `yaml:"max_age"`

	// ReapInterval is the period of the background eviction sweep.
	ReapInterval time.Duration `yaml:"reap_interval"`
}

// CORSConfig lists the origins allowed to call the relay from a browser.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Load reads and parses the config file at path, returning the server
// configuration. Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("server config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("server config: parse yaml: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			Answers: AnswersConfig{
				MaxAge:       DefaultMaxAge,
				ReapInterval: DefaultReapInterval,
			},
			StreamInterval: DefaultStreamInterval,
			CORS: CORSConfig{
				AllowedOrigins: []string{"*"},
			},
		},
	}
}

// applyEnv overlays environment variables on top of the file configuration.
func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvHTTPPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s=%q is not a port number", EnvHTTPPort, v)
		}
		cfg.Server.HTTPPort = port
	}
	return nil
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	if cfg.Server.Answers.MaxAge <= 0 {
		return fmt.Errorf("server.answers.max_age must be positive")
	}
	if cfg.Server.Answers.ReapInterval <= 0 {
		return fmt.Errorf("server.answers.reap_interval must be positive")
	}
	if cfg.Server.StreamInterval <= 0 {
		return fmt.Errorf("server.stream_interval must be positive")
	}
	return nil
}
