package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/opsbridge/internal/core/domain"
)

const (
	DefaultPort            = 8080
	DefaultSessionTTL      = 30 * time.Minute
	DefaultInstanceTimeout = 30 * time.Second
	DefaultRedisKeyPrefix  = "opsbridge"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding environment variables and
// applying defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Sessions.TTL <= 0 {
		cfg.Sessions.TTL = DefaultSessionTTL
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	for i := range cfg.Instances {
		if cfg.Instances[i].Timeout == 0 {
			cfg.Instances[i].Timeout = DefaultInstanceTimeout
		}
		if cfg.Instances[i].Auth == "" {
			cfg.Instances[i].Auth = cfg.Instances[i].Credential().Method()
		}
	}
}

// Validate checks the configuration for mistakes that would only surface
// later as confusing resolve failures.
func (c *AppConfig) Validate() error {
	seen := make(map[string]bool, len(c.Instances))
	for i, ic := range c.Instances {
		if ic.Alias == "" {
			return fmt.Errorf("instances[%d]: alias is required", i)
		}
		if seen[ic.Alias] {
			return fmt.Errorf("instances[%d]: duplicate alias %q", i, ic.Alias)
		}
		seen[ic.Alias] = true

		if ic.URL == "" {
			return fmt.Errorf("instance %q: url is required", ic.Alias)
		}

		switch ic.Auth {
		case domain.AuthBasic:
			if ic.Username == "" {
				return fmt.Errorf("instance %q: basic auth requires username", ic.Alias)
			}
		case domain.AuthOAuth:
			if ic.ClientID == "" || ic.ClientSecret == "" {
				return fmt.Errorf("instance %q: oauth requires client_id and client_secret", ic.Alias)
			}
		case domain.AuthToken:
			if ic.Token == "" {
				return fmt.Errorf("instance %q: token auth requires token", ic.Alias)
			}
		default:
			return fmt.Errorf("instance %q: unknown auth method %q", ic.Alias, ic.Auth)
		}
	}

	// Without an external store the default alias can only come from the file.
	if alias := c.Sessions.DefaultAlias; alias != "" && !seen[alias] && !c.HasExternalStore() {
		return fmt.Errorf("sessions.default_alias %q does not name a configured instance", alias)
	}
	return nil
}
