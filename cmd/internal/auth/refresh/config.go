package refresh

import (
	"os"
	"strconv"
	"time"
)

// Config defines runtime configuration for the refresh subsystem.
//
// It is environment-driven so deployments can tune lifetime and reuse policy
// without code changes.
type Config struct {
	// TTL is the refresh credential lifetime. Rotation issues the successor
	// with a fresh TTL.
	TTL time.Duration

	// SecretBytes is the entropy of generated secrets.
	SecretBytes int

	// RevokeAllOnReuse revokes every credential the owner holds when reuse
	// is detected, instead of rejecting only the presented one. Off by
	// default: a client racing itself (two tabs refreshing the same secret)
	// must end with its one rotated credential still live, and the store
	// cannot tell that race apart from a replayed theft.
	RevokeAllOnReuse bool

	// SweepInterval is how often the sweeper deletes expired rows.
	SweepInterval time.Duration
}

// DefaultConfig returns a secure default configuration suitable for
// development.
func DefaultConfig() Config {
	return Config{
		TTL:              14 * 24 * time.Hour,
		SecretBytes:      32,
		RevokeAllOnReuse: false,
		SweepInterval:    time.Hour,
	}
}

// LoadConfigFromEnv loads refresh configuration from environment variables.
//
// Optional (durations must be valid Go duration strings):
//   - AGORA_AUTH_REFRESH_TTL
//   - AGORA_AUTH_REFRESH_SECRET_BYTES
//   - AGORA_AUTH_REVOKE_ALL_ON_REUSE
//   - AGORA_AUTH_SWEEP_INTERVAL
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("AGORA_AUTH_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.TTL = d
	}

	if v := os.Getenv("AGORA_AUTH_REFRESH_SECRET_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 32 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.SecretBytes = n
	}

	if v := os.Getenv("AGORA_AUTH_REVOKE_ALL_ON_REUSE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.RevokeAllOnReuse = b
	}

	if v := os.Getenv("AGORA_AUTH_SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.SweepInterval = d
	}

	return cfg, nil
}
