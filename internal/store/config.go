package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration. Every field has a sensible
// default, and a missing config file is not an error: the client is usable
// with nothing but an API key.
type Config struct {
	FeedURL   string `yaml:"feed_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Session   struct {
		Backend   string `yaml:"backend"` // file, redis or none
		StateFile string `yaml:"state_file"`
		RedisAddr string `yaml:"redis_addr"`
		RedisDB   int    `yaml:"redis_db"`
	} `yaml:"session"`
}

func (c *Config) Validate() error {
	if c.FeedURL == "" {
		return fmt.Errorf("feed_url cannot be empty")
	}
	switch c.Session.Backend {
	case "file", "redis", "none":
	default:
		return fmt.Errorf("invalid session.backend '%s': must be 'file', 'redis' or 'none'", c.Session.Backend)
	}
	if c.Session.Backend == "file" && c.Session.StateFile == "" {
		return fmt.Errorf("session.state_file cannot be empty with the file backend")
	}
	if c.Session.Backend == "redis" && c.Session.RedisAddr == "" {
		return fmt.Errorf("session.redis_addr cannot be empty with the redis backend")
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// run on defaults
	default:
		return nil, err
	}

	if c.FeedURL == "" {
		c.FeedURL = "wss://ws.finnhub.io"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "FINNHUB_TOKEN"
	}
	if c.Session.Backend == "" {
		c.Session.Backend = "file"
	}
	if c.Session.StateFile == "" {
		c.Session.StateFile = "trade-watch-state.json"
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
