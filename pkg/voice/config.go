package voice

import (
	"errors"
	"time"
)

// Config holds interpreter settings.
type Config struct {
	// RestartDelay is the wait before reopening a failed session.
	RestartDelay time.Duration `yaml:"restart_delay"`
	// MaxRestartDelay caps the exponential backoff.
	MaxRestartDelay time.Duration `yaml:"max_restart_delay"`
	// IgnoreInterim drops non-final transcripts.
	IgnoreInterim bool `yaml:"ignore_interim"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		RestartDelay:    250 * time.Millisecond,
		MaxRestartDelay: 5 * time.Second,
		IgnoreInterim:   true,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.RestartDelay <= 0 {
		return errors.New("voice: restart_delay must be positive")
	}
	if c.MaxRestartDelay < c.RestartDelay {
		return errors.New("voice: max_restart_delay must be >= restart_delay")
	}
	return nil
}

// withDefaults fills unset delays from DefaultConfig so the backoff never
// reaches zero.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.RestartDelay <= 0 {
		c.RestartDelay = def.RestartDelay
	}
	if c.MaxRestartDelay <= 0 {
		c.MaxRestartDelay = def.MaxRestartDelay
	}
	if c.MaxRestartDelay < c.RestartDelay {
		c.MaxRestartDelay = c.RestartDelay
	}
	return c
}

// nextDelay doubles d up to the configured cap.
func (c *Config) nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > c.MaxRestartDelay {
		return c.MaxRestartDelay
	}
	return d
}
