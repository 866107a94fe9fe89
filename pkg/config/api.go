package config

import (
	"fmt"
	"time"
)

const (
	// DefaultAPIListen is the default API server listen address.
	DefaultAPIListen = ":8080"

	// DefaultAPIShutdownTimeout bounds graceful HTTP server shutdown.
	DefaultAPIShutdownTimeout = 10 * time.Second

	// DefaultAPIRequestsPerMinute is the default per-IP rate limit.
	DefaultAPIRequestsPerMinute = 120
)

// APIConfig contains the read-only HTTP API server configuration.
type APIConfig struct {
	Listen          string          `yaml:"listen" mapstructure:"listen"`
	CORSOrigins     []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout,omitempty" mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
	Auth            APIAuthConfig   `yaml:"auth,omitempty" mapstructure:"auth"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute,omitempty" mapstructure:"requests_per_minute"`
}

// APIAuthConfig contains authentication settings.
type APIAuthConfig struct {
	Basic BasicAuthConfig `yaml:"basic,omitempty" mapstructure:"basic"`
}

// BasicAuthConfig configures username/password authentication. Passwords
// are stored as bcrypt hashes, never in the clear.
type BasicAuthConfig struct {
	Enabled bool            `yaml:"enabled" mapstructure:"enabled"`
	Users   []BasicAuthUser `yaml:"users,omitempty" mapstructure:"users"`
}

// BasicAuthUser defines a basic auth user from config.
type BasicAuthUser struct {
	Username     string `yaml:"username" mapstructure:"username"`
	PasswordHash string `yaml:"password_hash" mapstructure:"password_hash"`
}

// applyDefaults sets default values for unspecified API options.
func (c *APIConfig) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultAPIListen
	}

	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultAPIShutdownTimeout
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = DefaultAPIRequestsPerMinute
	}
}

// Validate checks the API configuration for errors.
func (c *APIConfig) Validate() error {
	if c.Auth.Basic.Enabled && len(c.Auth.Basic.Users) == 0 {
		return fmt.Errorf("basic auth is enabled but no users are configured")
	}

	seen := make(map[string]struct{}, len(c.Auth.Basic.Users))

	for i, user := range c.Auth.Basic.Users {
		if user.Username == "" {
			return fmt.Errorf("auth user %d: username is required", i)
		}

		if user.PasswordHash == "" {
			return fmt.Errorf("auth user %q: password_hash is required", user.Username)
		}

		if _, exists := seen[user.Username]; exists {
			return fmt.Errorf("auth user %d: duplicate username %q", i, user.Username)
		}

		seen[user.Username] = struct{}{}
	}

	return nil
}
