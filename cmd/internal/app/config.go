package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// RedisURL enables the epoch read-through cache when set.
	RedisURL      string
	EpochCacheTTL time.Duration

	// Access token signing. JWTSecret must be at least 32 bytes.
	JWTSecret string
	JWTIssuer string
	AccessTTL time.Duration
	ClockSkew time.Duration

	// If true, /readyz returns 503 unless the database is configured and
	// reachable.
	ReadinessRequireDB bool

	// If true, AGORA_TOKEN_HMAC_KEY must be set (>= 32 bytes) and refresh
	// digests are HMAC-based.
	RequireTokenHMAC bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: envString("AGORA_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: envString("AGORA_LOG_LEVEL", "info"),

		ReadHeaderTimeout: envDuration("AGORA_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       envDuration("AGORA_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      envDuration("AGORA_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       envDuration("AGORA_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: envInt("AGORA_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: envString("AGORA_DATABASE_URL", ""),
		DBMaxConns:  envInt32("AGORA_DB_MAX_CONNS", 10),
		DBMinConns:  envInt32("AGORA_DB_MIN_CONNS", 0),

		RedisURL:      envString("AGORA_REDIS_URL", ""),
		EpochCacheTTL: envDuration("AGORA_EPOCH_CACHE_TTL", 5*time.Minute),

		JWTSecret: envString("AGORA_JWT_SECRET", ""),
		JWTIssuer: envString("AGORA_JWT_ISSUER", "agora"),
		AccessTTL: envDuration("AGORA_ACCESS_TTL", 15*time.Minute),
		ClockSkew: envDuration("AGORA_CLOCK_SKEW", 30*time.Second),

		ReadinessRequireDB: envBool("AGORA_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: envBool("AGORA_REQUIRE_TOKEN_HMAC", false),
	}
}
