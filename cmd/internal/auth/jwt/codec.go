package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultAccessTTL is the validity window applied when Config.AccessTTL
	// is zero.
	DefaultAccessTTL = 15 * time.Minute

	// DefaultLeeway absorbs clock skew between the issuing and verifying
	// hosts when Config.Leeway is zero.
	DefaultLeeway = 30 * time.Second

	// MinSecretBytes is the smallest accepted HS256 signing secret.
	MinSecretBytes = 32
)

// Claims is the complete access-token claim set. Epoch carries the account's
// revocation epoch at issue time; a token whose epoch trails the account's
// current value is rejected downstream even though it verifies here.
type Claims struct {
	Epoch int64    `json:"epoch"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// AccountID returns the subject claim.
func (c *Claims) AccountID() string { return c.Subject }

// Config carries everything a Codec needs. TimeFunc is for tests; leave it
// nil in production to use the wall clock.
type Config struct {
	Secret    []byte
	Issuer    string
	AccessTTL time.Duration
	Leeway    time.Duration
	TimeFunc  func() time.Time
}

// Codec signs and verifies access tokens with a single static HS256 secret.
type Codec struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	parser    *jwt.Parser
}

// NewCodec validates cfg and returns a ready Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < MinSecretBytes {
		return nil, fmt.Errorf("jwt: secret must be at least %d bytes", MinSecretBytes)
	}
	if cfg.Issuer == "" {
		return nil, errors.New("jwt: issuer must not be empty")
	}

	ttl := cfg.AccessTTL
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	leeway := cfg.Leeway
	if leeway <= 0 {
		leeway = DefaultLeeway
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithLeeway(leeway),
		jwt.WithExpirationRequired(),
	}
	if cfg.TimeFunc != nil {
		opts = append(opts, jwt.WithTimeFunc(cfg.TimeFunc))
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &Codec{
		secret:    secret,
		issuer:    cfg.Issuer,
		accessTTL: ttl,
		parser:    jwt.NewParser(opts...),
	}, nil
}

// Encode mints a signed access token for accountID at the given epoch. It
// returns the compact token and its expiry instant.
func (c *Codec) Encode(now time.Time, accountID string, epoch int64, roles []string) (string, time.Time, error) {
	if accountID == "" {
		return "", time.Time{}, errors.New("jwt: account id must not be empty")
	}

	expiresAt := now.Add(c.accessTTL)
	claims := Claims{
		Epoch: epoch,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, expiresAt, nil
}

// Decode verifies a compact token and returns its claims. Failures are
// collapsed into the package's sentinel errors; no partial claims escape.
func (c *Codec) Decode(compact string) (*Claims, error) {
	claims := &Claims{}
	tok, err := c.parser.ParseWithClaims(compact, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, mapParseError(err)
	}
	if !tok.Valid || claims.Subject == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}

// mapParseError folds the jwt library's error set into the four sentinels.
// Order matters: the library wraps several causes into one error chain, and
// signature and expiry findings outrank structural ones.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuerMismatch
	default:
		return ErrMalformed
	}
}
