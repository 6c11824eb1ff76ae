package domain

import "time"

// AuthMethod selects how a session authenticates against an instance.
type AuthMethod string

const (
	AuthBasic AuthMethod = "basic"
	AuthOAuth AuthMethod = "oauth"
	AuthToken AuthMethod = "token"
)

// Credential holds everything needed to open a session against one
// remote instance.
type Credential struct {
	Alias        string        `json:"alias"         yaml:"alias"`
	URL          string        `json:"url"           yaml:"url"`
	Auth         AuthMethod    `json:"auth"          yaml:"auth"`
	Username     string        `json:"username"      yaml:"username"`
	Password     string        `json:"password"      yaml:"password"`
	ClientID     string        `json:"client_id"     yaml:"client_id"`
	ClientSecret string        `json:"client_secret" yaml:"client_secret"`
	Token        string        `json:"token"         yaml:"token"`
	Timeout      time.Duration `json:"timeout"       yaml:"timeout"`
}

// Method returns the effective auth method, inferring one when unset.
func (c *Credential) Method() AuthMethod {
	if c.Auth != "" {
		return c.Auth
	}
	switch {
	case c.Token != "":
		return AuthToken
	case c.ClientID != "":
		return AuthOAuth
	default:
		return AuthBasic
	}
}

// Redacted returns a copy safe to log or print.
func (c Credential) Redacted() Credential {
	if c.Password != "" {
		c.Password = "***"
	}
	if c.ClientSecret != "" {
		c.ClientSecret = "***"
	}
	if c.Token != "" {
		c.Token = "***"
	}
	return c
}
