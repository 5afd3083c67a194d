package refresh

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"agora/cmd/security/token"

	"github.com/oklog/ulid/v2"
)

// maxPresentedLen bounds client-supplied secrets before hashing.
const maxPresentedLen = 4096

// Service implements the high-level refresh operations: issue, validate,
// rotate, revoke. It owns secret generation and hashing; stores only ever
// see digests.
type Service struct {
	cfg    Config
	store  Store
	hasher token.Hasher
	log    *slog.Logger
}

// NewService constructs a Service. A nil logger falls back to slog.Default.
func NewService(cfg Config, store Store, hasher token.Hasher, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{cfg: cfg, store: store, hasher: hasher, log: log}
}

// Credential is a freshly issued refresh credential. Secret is the plain
// value, surfaced exactly once and never stored or logged.
type Credential struct {
	RecordID  string
	Secret    string
	ExpiresAt time.Time
}

// Rotated is the result of a successful rotation.
type Rotated struct {
	Credential
	OwnerID string
}

// ValidationStatus tags a Validate outcome.
type ValidationStatus int

const (
	// StatusValid means the secret matches a live record, returned alongside.
	StatusValid ValidationStatus = iota
	// StatusInvalid means the secret matches nothing usable.
	StatusInvalid
	// StatusReuse means the secret matches a revoked record.
	StatusReuse
)

// Validation is the tagged result of presenting a secret for inspection.
// Record is set only for StatusValid.
type Validation struct {
	Status ValidationStatus
	Record Record
}

// Issue creates a new refresh credential for ownerID.
func (s *Service) Issue(ctx context.Context, now time.Time, ownerID string) (Credential, error) {
	secret, err := token.NewOpaqueSecret(s.cfg.SecretBytes)
	if err != nil {
		return Credential{}, err
	}

	rec := Record{
		ID:        ulid.Make().String(),
		OwnerID:   ownerID,
		TokenHash: s.hasher.Hash(secret),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TTL),
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return Credential{}, err
	}

	issuedTotal.Inc()
	s.log.Debug("refresh credential issued",
		slog.String("record_id", rec.ID),
		slog.String("owner_id", ownerID))

	return Credential{RecordID: rec.ID, Secret: secret, ExpiresAt: rec.ExpiresAt}, nil
}

// Validate inspects a presented secret without consuming it. Reuse hits
// apply the configured reuse policy before returning.
func (s *Service) Validate(ctx context.Context, now time.Time, secret string) (Validation, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" || len(secret) > maxPresentedLen {
		return Validation{Status: StatusInvalid}, nil
	}

	rec, err := s.store.ByHash(ctx, s.hasher.Hash(secret))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			rejectedTotal.WithLabelValues("unknown").Inc()
			return Validation{Status: StatusInvalid}, nil
		}
		return Validation{}, err
	}

	if rec.RevokedAt != nil {
		if err := s.respondToReuse(ctx, now, rec); err != nil {
			return Validation{}, err
		}
		return Validation{Status: StatusReuse}, nil
	}
	if !rec.ExpiresAt.After(now) {
		rejectedTotal.WithLabelValues("expired").Inc()
		return Validation{Status: StatusInvalid}, nil
	}

	return Validation{Status: StatusValid, Record: rec}, nil
}

// Rotate consumes a presented secret and issues its successor atomically.
// Returns ErrInvalid for unknown or expired secrets and ErrReuseDetected
// when a revoked one is presented; the reuse policy has been applied by the
// time that error surfaces.
func (s *Service) Rotate(ctx context.Context, now time.Time, secret string) (Rotated, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" || len(secret) > maxPresentedLen {
		return Rotated{}, ErrInvalid
	}

	nextSecret, err := token.NewOpaqueSecret(s.cfg.SecretBytes)
	if err != nil {
		return Rotated{}, err
	}
	next := Record{
		ID:        ulid.Make().String(),
		TokenHash: s.hasher.Hash(nextSecret),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TTL),
	}

	outcome, err := s.store.Rotate(ctx, now, s.hasher.Hash(secret), next, s.cfg.RevokeAllOnReuse)
	if err != nil {
		return Rotated{}, err
	}

	switch outcome.Status {
	case RotateInvalid:
		rejectedTotal.WithLabelValues("invalid").Inc()
		return Rotated{}, ErrInvalid

	case RotateReuseDetected:
		reuseDetectedTotal.Inc()
		s.log.Warn("refresh reuse detected",
			slog.String("record_id", outcome.Old.ID),
			slog.String("owner_id", outcome.Old.OwnerID),
			slog.Bool("revoke_all", s.cfg.RevokeAllOnReuse))
		return Rotated{}, ErrReuseDetected

	default:
		rotatedTotal.Inc()
		issuedTotal.Inc()
		s.log.Debug("refresh credential rotated",
			slog.String("old_record_id", outcome.Old.ID),
			slog.String("new_record_id", outcome.New.ID),
			slog.String("owner_id", outcome.Old.OwnerID))
		return Rotated{
			Credential: Credential{
				RecordID:  outcome.New.ID,
				Secret:    nextSecret,
				ExpiresAt: outcome.New.ExpiresAt,
			},
			OwnerID: outcome.Old.OwnerID,
		}, nil
	}
}

// Revoke revokes the record matching the presented secret (logout).
// Revoking an already revoked record is a no-op; an unknown secret returns
// ErrNotFound.
func (s *Service) Revoke(ctx context.Context, now time.Time, secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" || len(secret) > maxPresentedLen {
		return ErrNotFound
	}
	if err := s.store.Revoke(ctx, now, s.hasher.Hash(secret)); err != nil {
		return err
	}
	revokedTotal.Inc()
	return nil
}

// RevokeAll revokes every credential ownerID holds (logout everywhere,
// password change, account deletion).
func (s *Service) RevokeAll(ctx context.Context, now time.Time, ownerID string) (int64, error) {
	n, err := s.store.RevokeAllForOwner(ctx, now, ownerID)
	if err != nil {
		return 0, err
	}
	revokedTotal.Add(float64(n))
	s.log.Info("revoked all refresh credentials",
		slog.String("owner_id", ownerID),
		slog.Int64("count", n))
	return n, nil
}

// Sessions lists the owner's live credentials.
func (s *Service) Sessions(ctx context.Context, now time.Time, ownerID string) ([]Record, error) {
	return s.store.ActiveByOwner(ctx, now, ownerID)
}

// respondToReuse applies the reuse policy outside the rotation transaction
// (the Validate path).
func (s *Service) respondToReuse(ctx context.Context, now time.Time, rec Record) error {
	reuseDetectedTotal.Inc()
	s.log.Warn("refresh reuse detected",
		slog.String("record_id", rec.ID),
		slog.String("owner_id", rec.OwnerID),
		slog.Bool("revoke_all", s.cfg.RevokeAllOnReuse))

	if !s.cfg.RevokeAllOnReuse {
		return nil
	}
	_, err := s.RevokeAll(ctx, now, rec.OwnerID)
	return err
}
