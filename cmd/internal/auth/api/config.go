package api

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	// MinPasswordLength gates registration and password changes.
	MinPasswordLength int

	// Refresh cookie transport for browser clients. When enabled, refresh
	// secrets set via cookie never appear in JSON responses.
	RefreshCookieEnabled bool
	RefreshCookieName    string
	CookiePath           string
	CookieDomain         string
	CookieSecure         bool
	CookieSameSite       http.SameSite
}

// LoadConfigFromEnv loads auth API config from environment variables with
// safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		TrustProxy:           envBool("AGORA_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:         envInt64("AGORA_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		MinPasswordLength:    envInt("AGORA_AUTH_MIN_PASSWORD_LENGTH", 10),
		RefreshCookieEnabled: envBool("AGORA_AUTH_REFRESH_COOKIE_ENABLED", true),
		RefreshCookieName:    envString("AGORA_AUTH_REFRESH_COOKIE_NAME", "agora_refresh"),
		CookiePath:           envString("AGORA_AUTH_COOKIE_PATH", "/auth"),
		CookieDomain:         envString("AGORA_AUTH_COOKIE_DOMAIN", ""),
		CookieSecure:         envBool("AGORA_AUTH_COOKIE_SECURE", true),
		CookieSameSite:       envSameSite("AGORA_AUTH_COOKIE_SAMESITE", http.SameSiteStrictMode),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.MinPasswordLength < 8 {
		cfg.MinPasswordLength = 8
	}

	return cfg
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envSameSite(key string, def http.SameSite) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return def
	}
}
