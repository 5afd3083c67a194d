package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
// The pgx pool is owned by the caller; this store must not close it.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPostgresStore builds a PostgresStore using the given schema
// (default "agora").
func NewPostgresStore(pool *pgxpool.Pool, schema string) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("accounts: nil pool")
	}
	if schema == "" {
		schema = "agora"
	}
	return &PostgresStore{pool: pool, schema: schema}, nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "accounts"}.Sanitize()
}

// Create inserts a new account row.
func (s *PostgresStore) Create(ctx context.Context, in CreateInput) (Account, error) {
	if err := validateCreate(in); err != nil {
		return Account{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	acct := Account{
		ID:           NewID(),
		Email:        in.Email,
		EmailNorm:    NormalizeEmail(in.Email),
		DisplayName:  in.DisplayName,
		PasswordHash: in.PasswordHash,
		Roles:        in.Roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (
		     id, email, email_norm, display_name, password_hash, roles, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		acct.ID, acct.Email, acct.EmailNorm, acct.DisplayName, acct.PasswordHash, acct.Roles, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Account{}, ErrConflict
		}
		return Account{}, err
	}
	return acct, nil
}

// ByID returns the account with the given id.
func (s *PostgresStore) ByID(ctx context.Context, id string) (Account, error) {
	return s.one(ctx, `WHERE id = $1`, id)
}

// ByEmail looks an account up by normalized email.
func (s *PostgresStore) ByEmail(ctx context.Context, email string) (Account, error) {
	return s.one(ctx, `WHERE email_norm = $1`, NormalizeEmail(email))
}

func (s *PostgresStore) one(ctx context.Context, where string, arg any) (Account, error) {
	var a Account
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, email_norm, display_name, password_hash, roles, created_at, updated_at
		   FROM `+s.table()+` `+where,
		arg,
	).Scan(&a.ID, &a.Email, &a.EmailNorm, &a.DisplayName, &a.PasswordHash, &a.Roles, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// SetPasswordHash replaces the stored password hash.
func (s *PostgresStore) SetPasswordHash(ctx context.Context, id, hash string, now time.Time) error {
	if id == "" || hash == "" {
		return ErrInvalidInput
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	ct, err := s.pool.Exec(ctx,
		`UPDATE `+s.table()+` SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		hash, now, id,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the account row. Refresh tokens and epochs cascade via FK.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidInput
	}
	ct, err := s.pool.Exec(ctx, `DELETE FROM `+s.table()+` WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
