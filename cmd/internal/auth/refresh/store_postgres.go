package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (agora.refresh_tokens).
// The pool is owned by the caller.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPostgresStore creates a Postgres-backed refresh store using the given
// schema (default "agora").
func NewPostgresStore(pool *pgxpool.Pool, schema string) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("refresh: nil pool")
	}
	if schema == "" {
		schema = "agora"
	}
	return &PostgresStore{pool: pool, schema: schema}, nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "refresh_tokens"}.Sanitize()
}

const recordColumns = `id, owner_id, token_hash, created_at, last_used_at, expires_at, revoked_at, replaced_by_id`

// Insert adds a new record.
func (s *PostgresStore) Insert(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.table()+` (
			id, owner_id, token_hash,
			created_at, last_used_at, expires_at, revoked_at, replaced_by_id
		) VALUES ($1, $2, $3, $4, $5, $6, NULL, NULL)
	`, rec.ID, rec.OwnerID, rec.TokenHash, rec.CreatedAt, rec.LastUsedAt, rec.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateHash
		}
		return err
	}
	return nil
}

// ByHash loads a record by digest.
func (s *PostgresStore) ByHash(ctx context.Context, hash string) (Record, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM `+s.table()+`
		WHERE token_hash = $1
	`, hash))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// Rotate consumes the record matching currentHash inside a single
// transaction. The FOR UPDATE lock serializes concurrent rotations of the
// same digest: the loser observes the winner's revocation and reports reuse.
func (s *PostgresStore) Rotate(ctx context.Context, now time.Time, currentHash string, next Record, revokeAllOnReuse bool) (RotateOutcome, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return RotateOutcome{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	old, err := scanRecord(tx.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM `+s.table()+`
		WHERE token_hash = $1
		FOR UPDATE
	`, currentHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RotateOutcome{Status: RotateInvalid}, nil
		}
		return RotateOutcome{}, err
	}

	if old.RevokedAt != nil {
		if revokeAllOnReuse {
			if err := revokeAllForOwnerTx(ctx, tx, s.table(), now, old.OwnerID); err != nil {
				return RotateOutcome{}, err
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return RotateOutcome{}, err
		}
		return RotateOutcome{Status: RotateReuseDetected, Old: old}, nil
	}

	if !old.ExpiresAt.After(now) {
		return RotateOutcome{Status: RotateInvalid}, nil
	}

	next.OwnerID = old.OwnerID
	_, err = tx.Exec(ctx, `
		INSERT INTO `+s.table()+` (
			id, owner_id, token_hash,
			created_at, last_used_at, expires_at, revoked_at, replaced_by_id
		) VALUES ($1, $2, $3, $4, NULL, $5, NULL, NULL)
	`, next.ID, next.OwnerID, next.TokenHash, next.CreatedAt, next.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return RotateOutcome{}, ErrDuplicateHash
		}
		return RotateOutcome{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE `+s.table()+`
		SET revoked_at = $2,
		    last_used_at = $2,
		    replaced_by_id = $3
		WHERE id = $1
	`, old.ID, now, next.ID)
	if err != nil {
		return RotateOutcome{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return RotateOutcome{}, err
	}

	revoked := now
	old.RevokedAt = &revoked
	old.LastUsedAt = &revoked
	old.ReplacedByID = &next.ID
	return RotateOutcome{Status: RotateOK, Old: old, New: next}, nil
}

// Revoke revokes the record matching hash (idempotent).
func (s *PostgresStore) Revoke(ctx context.Context, now time.Time, hash string) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE `+s.table()+`
		SET revoked_at = COALESCE(revoked_at, $2)
		WHERE token_hash = $1
	`, hash, now)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeAllForOwner revokes every active record the owner holds.
func (s *PostgresStore) RevokeAllForOwner(ctx context.Context, now time.Time, ownerID string) (int64, error) {
	ct, err := s.pool.Exec(ctx, `
		UPDATE `+s.table()+`
		SET revoked_at = $2
		WHERE owner_id = $1
		  AND revoked_at IS NULL
	`, ownerID, now)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// ActiveByOwner lists the owner's live records, newest first.
func (s *PostgresStore) ActiveByOwner(ctx context.Context, now time.Time, ownerID string) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM `+s.table()+`
		WHERE owner_id = $1
		  AND revoked_at IS NULL
		  AND expires_at > $2
		ORDER BY id DESC
	`, ownerID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteExpired removes records past expiry, revoked or not.
func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ct, err := s.pool.Exec(ctx, `
		DELETE FROM `+s.table()+`
		WHERE expires_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func revokeAllForOwnerTx(ctx context.Context, tx pgx.Tx, table string, now time.Time, ownerID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE `+table+`
		SET revoked_at = COALESCE(revoked_at, $2)
		WHERE owner_id = $1
	`, ownerID, now)
	return err
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.TokenHash,
		&rec.CreatedAt,
		&rec.LastUsedAt,
		&rec.ExpiresAt,
		&rec.RevokedAt,
		&rec.ReplacedByID,
	)
	return rec, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
