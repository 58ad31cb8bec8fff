// Package config holds the coordinator's typed server configuration.
package config

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the configuration the protocol layer consumes. The username
// length bounds are deliberately reused for room-name validation; the two
// have always shared limits on the wire.
type Config struct {
	// AppID is the shared application identifier clients must present
	// during the handshake.
	AppID string

	// UsernameMinLength is the inclusive lower bound on username length.
	UsernameMinLength int

	// UsernameMaxLength is the exclusive upper bound on username length.
	UsernameMaxLength int

	// ChallengeTimeout bounds how long a handler waits for a client to
	// answer a password or room-configuration challenge.
	ChallengeTimeout time.Duration
}

// Default returns the configuration defaults; AppID has no default and must
// be supplied.
func Default() Config {
	return Config{
		UsernameMinLength: 3,
		UsernameMaxLength: 16,
		ChallengeTimeout:  10 * time.Second,
	}
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	if c.AppID == "" {
		return fmt.Errorf("%w: app id must be set", ErrInvalidConfig)
	}
	if c.UsernameMinLength < 1 {
		return fmt.Errorf("%w: username min length must be positive, got %d", ErrInvalidConfig, c.UsernameMinLength)
	}
	if c.UsernameMaxLength <= c.UsernameMinLength {
		return fmt.Errorf("%w: username max length (%d) must exceed min length (%d)",
			ErrInvalidConfig, c.UsernameMaxLength, c.UsernameMinLength)
	}
	if c.ChallengeTimeout <= 0 {
		return fmt.Errorf("%w: challenge timeout must be positive, got %s", ErrInvalidConfig, c.ChallengeTimeout)
	}
	return nil
}
