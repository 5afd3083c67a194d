package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const (
	// MinSecretBytes and MaxSecretBytes bound refresh secret entropy.
	MinSecretBytes = 32
	MaxSecretBytes = 64
)

// NewOpaqueSecret returns a URL-safe random secret with n bytes of entropy.
// The encoded form carries no structure; its only server-side trace is the
// digest produced by a Hasher.
func NewOpaqueSecret(n int) (string, error) {
	if n < MinSecretBytes || n > MaxSecretBytes {
		return "", fmt.Errorf("token: secret size %d outside [%d, %d]", n, MinSecretBytes, MaxSecretBytes)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token: read entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
