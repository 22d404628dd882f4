package collab

import (
	"errors"
	"time"
)

// Config holds collaborator endpoints and call policy
type Config struct {
	IdentityURL string
	RulesURL    string

	// Timeout bounds a single attempt
	Timeout time.Duration

	// MaxRetries is the number of extra attempts after a transport error or 5xx
	MaxRetries     uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// BreakerFailures consecutive failures open the breaker for BreakerCooldown
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// DefaultConfig returns sensible defaults for collaborator calls
func DefaultConfig() Config {
	return Config{
		IdentityURL:     "http://localhost:3001",
		RulesURL:        "http://localhost:3002",
		Timeout:         3 * time.Second,
		MaxRetries:      2,
		InitialBackoff:  100 * time.Millisecond,
		MaxBackoff:      time.Second,
		BreakerFailures: 5,
		BreakerCooldown: 10 * time.Second,
	}
}

// Validate checks the configuration is usable
func (c Config) Validate() error {
	if c.IdentityURL == "" {
		return errors.New("identity URL is required")
	}
	if c.RulesURL == "" {
		return errors.New("rules URL is required")
	}
	if c.Timeout <= 0 {
		return errors.New("collaborator timeout must be positive")
	}
	if c.BreakerFailures == 0 {
		return errors.New("breaker failure threshold must be positive")
	}
	return nil
}
