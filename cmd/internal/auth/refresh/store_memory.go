package refresh

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and local development. A
// single mutex serializes rotations, giving the same winner-loser behavior
// as the row lock in the Postgres store.
type MemoryStore struct {
	mu     sync.Mutex
	byHash map[string]*Record
	byID   map[string]*Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byHash: make(map[string]*Record),
		byID:   make(map[string]*Record),
	}
}

func (s *MemoryStore) Insert(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(rec)
}

func (s *MemoryStore) insertLocked(rec Record) error {
	if _, dup := s.byHash[rec.TokenHash]; dup {
		return ErrDuplicateHash
	}
	cp := rec
	s.byHash[rec.TokenHash] = &cp
	s.byID[rec.ID] = &cp
	return nil
}

func (s *MemoryStore) ByHash(_ context.Context, hash string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byHash[hash]
	if !ok {
		return Record{}, ErrNotFound
	}
	return *rec, nil
}

func (s *MemoryStore) Rotate(_ context.Context, now time.Time, currentHash string, next Record, revokeAllOnReuse bool) (RotateOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.byHash[currentHash]
	if !ok {
		return RotateOutcome{Status: RotateInvalid}, nil
	}

	if old.RevokedAt != nil {
		if revokeAllOnReuse {
			s.revokeAllLocked(now, old.OwnerID)
		}
		return RotateOutcome{Status: RotateReuseDetected, Old: *old}, nil
	}

	if !old.ExpiresAt.After(now) {
		return RotateOutcome{Status: RotateInvalid}, nil
	}

	next.OwnerID = old.OwnerID
	if err := s.insertLocked(next); err != nil {
		return RotateOutcome{}, err
	}

	revoked := now
	old.RevokedAt = &revoked
	old.LastUsedAt = &revoked
	old.ReplacedByID = &next.ID

	return RotateOutcome{Status: RotateOK, Old: *old, New: next}, nil
}

func (s *MemoryStore) Revoke(_ context.Context, now time.Time, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byHash[hash]
	if !ok {
		return ErrNotFound
	}
	if rec.RevokedAt == nil {
		revoked := now
		rec.RevokedAt = &revoked
	}
	return nil
}

func (s *MemoryStore) RevokeAllForOwner(_ context.Context, now time.Time, ownerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revokeAllLocked(now, ownerID), nil
}

func (s *MemoryStore) revokeAllLocked(now time.Time, ownerID string) int64 {
	var n int64
	for _, rec := range s.byID {
		if rec.OwnerID == ownerID && rec.RevokedAt == nil {
			revoked := now
			rec.RevokedAt = &revoked
			n++
		}
	}
	return n
}

func (s *MemoryStore) ActiveByOwner(_ context.Context, now time.Time, ownerID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, rec := range s.byID {
		if rec.OwnerID == ownerID && rec.Active(now) {
			out = append(out, *rec)
		}
	}
	// ULIDs sort chronologically; newest first matches the SQL ordering.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, rec := range s.byID {
		if !rec.ExpiresAt.After(now) {
			delete(s.byID, id)
			delete(s.byHash, rec.TokenHash)
			n++
		}
	}
	return n, nil
}
