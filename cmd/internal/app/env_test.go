package app

import (
	"testing"
	"time"
)

func TestEnvHelpersDefaults(t *testing.T) {
	t.Setenv("AGORA_TEST_UNSET", "")

	if got := envString("AGORA_TEST_UNSET", "fallback"); got != "fallback" {
		t.Fatalf("envString: %q", got)
	}
	if got := envBool("AGORA_TEST_UNSET", true); !got {
		t.Fatal("envBool default")
	}
	if got := envInt("AGORA_TEST_UNSET", 7); got != 7 {
		t.Fatalf("envInt: %d", got)
	}
	if got := envDuration("AGORA_TEST_UNSET", time.Minute); got != time.Minute {
		t.Fatalf("envDuration: %v", got)
	}
}

func TestEnvHelpersParse(t *testing.T) {
	t.Setenv("AGORA_TEST_SET", "30s")
	if got := envDuration("AGORA_TEST_SET", time.Minute); got != 30*time.Second {
		t.Fatalf("envDuration: %v", got)
	}

	t.Setenv("AGORA_TEST_SET", "true")
	if !envBool("AGORA_TEST_SET", false) {
		t.Fatal("envBool parse")
	}
}

func TestEnvHelpersFallBackOnMalformedValues(t *testing.T) {
	t.Setenv("AGORA_TEST_SET", "not-a-number")
	if got := envInt("AGORA_TEST_SET", 3); got != 3 {
		t.Fatalf("envInt fallback: %d", got)
	}

	t.Setenv("AGORA_TEST_SET", "-5")
	if got := envInt("AGORA_TEST_SET", 3); got != 3 {
		t.Fatalf("envInt negative: %d", got)
	}
	if got := envInt32("AGORA_TEST_SET", 9); got != 9 {
		t.Fatalf("envInt32 negative: %d", got)
	}

	t.Setenv("AGORA_TEST_SET", "-1h")
	if got := envDuration("AGORA_TEST_SET", time.Minute); got != time.Minute {
		t.Fatalf("envDuration non-positive: %v", got)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{
		"AGORA_HTTP_ADDR", "AGORA_LOG_LEVEL", "AGORA_DATABASE_URL",
		"AGORA_REDIS_URL", "AGORA_JWT_ISSUER", "AGORA_ACCESS_TTL",
	} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()
	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Fatalf("HTTPAddr %q", cfg.HTTPAddr)
	}
	if cfg.JWTIssuer != "agora" {
		t.Fatalf("JWTIssuer %q", cfg.JWTIssuer)
	}
	if cfg.AccessTTL != 15*time.Minute {
		t.Fatalf("AccessTTL %v", cfg.AccessTTL)
	}
	if cfg.DatabaseURL != "" || cfg.RedisURL != "" {
		t.Fatal("expected empty store URLs by default")
	}
}
