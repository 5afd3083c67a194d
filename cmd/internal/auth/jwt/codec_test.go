package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testCodec(t *testing.T, at time.Time) *Codec {
	t.Helper()
	c, err := NewCodec(Config{
		Secret:    testSecret,
		Issuer:    "agora-test",
		AccessTTL: 15 * time.Minute,
		Leeway:    30 * time.Second,
		TimeFunc:  func() time.Time { return at },
	})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestNewCodecRejectsBadConfig(t *testing.T) {
	if _, err := NewCodec(Config{Secret: []byte("short"), Issuer: "x"}); err == nil {
		t.Fatal("expected error for short secret")
	}
	if _, err := NewCodec(Config{Secret: testSecret}); err == nil {
		t.Fatal("expected error for empty issuer")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := testCodec(t, now)

	compact, expiresAt, err := c.Encode(now, "acct-42", 3, []string{"admin"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if want := now.Add(15 * time.Minute); !expiresAt.Equal(want) {
		t.Fatalf("expiresAt %v, want %v", expiresAt, want)
	}

	claims, err := c.Decode(compact)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.AccountID() != "acct-42" {
		t.Fatalf("subject %q, want acct-42", claims.AccountID())
	}
	if claims.Epoch != 3 {
		t.Fatalf("epoch %d, want 3", claims.Epoch)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "admin" {
		t.Fatalf("roles %v, want [admin]", claims.Roles)
	}
	if claims.Issuer != "agora-test" {
		t.Fatalf("issuer %q, want agora-test", claims.Issuer)
	}
}

func TestDecodeExpiryWindow(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	expires := issued.Add(15 * time.Minute)

	compact, _, err := testCodec(t, issued).Encode(issued, "acct-1", 0, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Just inside the window.
	if _, err := testCodec(t, expires.Add(-time.Second)).Decode(compact); err != nil {
		t.Fatalf("token should still verify 1s before expiry: %v", err)
	}

	// Past expiry but inside leeway.
	if _, err := testCodec(t, expires.Add(20*time.Second)).Decode(compact); err != nil {
		t.Fatalf("token should verify within leeway: %v", err)
	}

	// Past expiry and leeway.
	if _, err := testCodec(t, expires.Add(31*time.Second)).Decode(compact); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestDecodeRejectsTamperedSignature(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := testCodec(t, now)

	compact, _, err := c.Encode(now, "acct-1", 0, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Flip a character in the signature segment.
	i := strings.LastIndex(compact, ".") + 1
	sig := []byte(compact[i:])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := compact[:i] + string(sig)

	if _, err := c.Decode(tampered); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestDecodeRejectsWrongSecret(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	compact, _, err := testCodec(t, now).Encode(now, "acct-1", 0, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	other, err := NewCodec(Config{
		Secret:   []byte("ffffffffffffffffffffffffffffffff"),
		Issuer:   "agora-test",
		TimeFunc: func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	if _, err := other.Decode(compact); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestDecodeRejectsWrongIssuer(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	foreign, err := NewCodec(Config{
		Secret:   testSecret,
		Issuer:   "someone-else",
		TimeFunc: func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	compact, _, err := foreign.Encode(now, "acct-1", 0, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, err := testCodec(t, now).Decode(compact); !errors.Is(err, ErrIssuerMismatch) {
		t.Fatalf("expected ErrIssuerMismatch, got %v", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	c := testCodec(t, time.Now())
	for _, compact := range []string{"", "garbage", "a.b", "a.b.c.d", "!!.!!.!!"} {
		if _, err := c.Decode(compact); !errors.Is(err, ErrMalformed) {
			t.Fatalf("input %q: expected ErrMalformed, got %v", compact, err)
		}
	}
}

func TestEncodeRejectsEmptyAccountID(t *testing.T) {
	now := time.Now()
	if _, _, err := testCodec(t, now).Encode(now, "", 0, nil); err == nil {
		t.Fatal("expected error for empty account id")
	}
}
