package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultRelayURL           = "http://localhost:3001"
	DefaultPollInterval       = 2 * time.Second
	DefaultPollTimeout        = 5 * time.Second
	DefaultMaxConcurrentPolls = 4
	DefaultHealthInterval     = 10 * time.Second
	DefaultBufferSize         = 64
)

// EnvRelayURL overrides client.relay_url when set.
const EnvRelayURL = "RELAY_URL"

// DefaultUsers is the user set polled when none is configured.
var DefaultUsers = []string{"user1", "user2", "user3"}

// Config is the top-level client configuration.
type Config struct {
	Client ClientConfig `yaml:"client"`
}

// ClientConfig holds all polling client settings.
type ClientConfig struct {
	// RelayURL is the base URL of relay-server.
	RelayURL string `yaml:"relay_url"`

	// Users is the set of user IDs polled on every tick.
	Users []string `yaml:"users"`

	// PollInterval is the period of the polling loop.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollTimeout bounds each individual poll request.
	PollTimeout time.Duration `yaml:"poll_timeout"`

	// MaxConcurrentPolls caps the number of in-flight polls within one tick.
	MaxConcurrentPolls int `yaml:"max_concurrent_polls"`

	// HealthInterval is how often relay connectivity is checked while connected.
	HealthInterval time.Duration `yaml:"health_interval"`

	// BufferSize is the capacity of the delivery channel between the poller
	// and the UI layer.
	BufferSize int `yaml:"buffer_size"`
}

// Load reads and parses the YAML config file at path. An empty path yields
// the defaults. Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if v := os.Getenv(EnvRelayURL); v != "" {
		cfg.Client.RelayURL = v
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Client: ClientConfig{
			RelayURL:           DefaultRelayURL,
			Users:              append([]string(nil), DefaultUsers...),
			PollInterval:       DefaultPollInterval,
			PollTimeout:        DefaultPollTimeout,
			MaxConcurrentPolls: DefaultMaxConcurrentPolls,
			HealthInterval:     DefaultHealthInterval,
			BufferSize:         DefaultBufferSize,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	c := cfg.Client

	u, err := url.Parse(c.RelayURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("client.relay_url %q must be an http(s) URL", c.RelayURL)
	}
	if len(c.Users) == 0 {
		return fmt.Errorf("client.users must list at least one user")
	}
	seen := make(map[string]struct{}, len(c.Users))
	for i, id := range c.Users {
		if id == "" {
			return fmt.Errorf("client.users[%d]: empty user id", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("client.users[%d]: duplicate user id %q", i, id)
		}
		seen[id] = struct{}{}
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("client.poll_interval must be positive")
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("client.poll_timeout must be positive")
	}
	if c.MaxConcurrentPolls <= 0 {
		return fmt.Errorf("client.max_concurrent_polls must be positive")
	}
	if c.HealthInterval <= 0 {
		return fmt.Errorf("client.health_interval must be positive")
	}
	if c.BufferSize < 0 {
		return fmt.Errorf("client.buffer_size must not be negative")
	}
	return nil
}
