package epoch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL. The pool is owned by the
// caller.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPostgresStore builds a PostgresStore using the given schema
// (default "agora").
func NewPostgresStore(pool *pgxpool.Pool, schema string) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("epoch: nil pool")
	}
	if schema == "" {
		schema = "agora"
	}
	return &PostgresStore{pool: pool, schema: schema}, nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "revocation_epochs"}.Sanitize()
}

// Current returns the account's epoch, 0 when no row exists.
func (s *PostgresStore) Current(ctx context.Context, accountID string) (int64, error) {
	if accountID == "" {
		return 0, ErrInvalidInput
	}

	var e int64
	err := s.pool.QueryRow(ctx,
		`SELECT epoch FROM `+s.table()+` WHERE account_id = $1`,
		accountID,
	).Scan(&e)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return e, nil
}

// Bump increments the account's epoch. The upsert makes the first bump
// create the row at epoch 1.
func (s *PostgresStore) Bump(ctx context.Context, now time.Time, accountID string) (int64, error) {
	if accountID == "" {
		return 0, ErrInvalidInput
	}

	var e int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO `+s.table()+` (account_id, epoch, updated_at)
		 VALUES ($1, 1, $2)
		 ON CONFLICT (account_id)
		 DO UPDATE SET epoch = `+s.table()+`.epoch + 1, updated_at = $2
		 RETURNING epoch`,
		accountID, now,
	).Scan(&e)
	if err != nil {
		return 0, err
	}
	return e, nil
}
