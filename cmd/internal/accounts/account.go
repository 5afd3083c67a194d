package accounts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Account is Agora's canonical security principal.
// PasswordHash is the argon2id PHC string; the plain password never reaches
// this package.
type Account struct {
	ID           string
	Email        string
	EmailNorm    string
	DisplayName  string
	PasswordHash string
	Roles        []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateInput describes a registration request. Email is stored as given and
// additionally in normalized form for the uniqueness check.
type CreateInput struct {
	Email        string
	DisplayName  string
	PasswordHash string
	Roles        []string
	Now          time.Time
}

// Store is the account persistence boundary.
type Store interface {
	// Create inserts a new account and returns it with a fresh id.
	// Returns ErrConflict when the normalized email is already taken.
	Create(ctx context.Context, in CreateInput) (Account, error)

	// ByID returns the account with the given id, or ErrNotFound.
	ByID(ctx context.Context, id string) (Account, error)

	// ByEmail looks an account up by normalized email, or ErrNotFound.
	ByEmail(ctx context.Context, email string) (Account, error)

	// SetPasswordHash replaces the stored password hash.
	SetPasswordHash(ctx context.Context, id, hash string, now time.Time) error

	// Delete removes the account row. Dependent auth rows are cleaned up by
	// the caller (or by FK cascade in Postgres).
	Delete(ctx context.Context, id string) error
}

// NormalizeEmail lowercases and trims an email address for uniqueness checks
// and lookups. It does not validate deliverability.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewID returns a fresh account id.
func NewID() string {
	return uuid.NewString()
}

func validateCreate(in CreateInput) error {
	if strings.TrimSpace(in.Email) == "" {
		return ErrInvalidInput
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return ErrInvalidInput
	}
	return nil
}
