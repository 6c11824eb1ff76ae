package config

import (
	"time"

	"github.com/vietddude/opsbridge/internal/core/domain"
	redisclient "github.com/vietddude/opsbridge/internal/infra/redis"
	"github.com/vietddude/opsbridge/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Logging   LoggingConfig      `yaml:"logging"`
	Sessions  SessionConfig      `yaml:"sessions"`
	Instances []InstanceConfig   `yaml:"instances"`
	Redis     redisclient.Config `yaml:"redis"`
	Database  postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// SessionConfig controls the session cache.
type SessionConfig struct {
	TTL          time.Duration `yaml:"ttl"`
	DefaultAlias string        `yaml:"default_alias"`
}

// InstanceConfig declares one remote instance and its credential.
type InstanceConfig struct {
	Alias        string            `yaml:"alias"`
	URL          string            `yaml:"url"`
	Auth         domain.AuthMethod `yaml:"auth"` // basic, oauth, token
	Username     string            `yaml:"username"`
	Password     string            `yaml:"password"`
	ClientID     string            `yaml:"client_id"`
	ClientSecret string            `yaml:"client_secret"`
	Token        string            `yaml:"token"`
	Timeout      time.Duration     `yaml:"timeout"`
}

// Credential converts the instance block into a domain credential.
func (ic InstanceConfig) Credential() *domain.Credential {
	return &domain.Credential{
		Alias:        ic.Alias,
		URL:          ic.URL,
		Auth:         ic.Auth,
		Username:     ic.Username,
		Password:     ic.Password,
		ClientID:     ic.ClientID,
		ClientSecret: ic.ClientSecret,
		Token:        ic.Token,
		Timeout:      ic.Timeout,
	}
}

// Credentials returns the credentials of every configured instance.
func (c *AppConfig) Credentials() []*domain.Credential {
	creds := make([]*domain.Credential, 0, len(c.Instances))
	for _, ic := range c.Instances {
		creds = append(creds, ic.Credential())
	}
	return creds
}

// HasExternalStore reports whether credentials may come from Redis or Postgres.
func (c *AppConfig) HasExternalStore() bool {
	return c.Redis.URL != "" || c.Database.URL != ""
}
