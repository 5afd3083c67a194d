package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"agora/cmd/security/token"
)

func testService(cfg Config) (*Service, *MemoryStore) {
	st := NewMemoryStore()
	return NewService(cfg, st, token.Hasher{}, nil), st
}

func TestIssueAndValidate(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService(DefaultConfig())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cred, err := svc.Issue(ctx, now, "owner-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if cred.Secret == "" || cred.RecordID == "" {
		t.Fatal("expected secret and record id")
	}
	if want := now.Add(DefaultConfig().TTL); !cred.ExpiresAt.Equal(want) {
		t.Fatalf("expiry %v, want %v", cred.ExpiresAt, want)
	}

	v, err := svc.Validate(ctx, now, cred.Secret)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v.Status != StatusValid {
		t.Fatalf("status %v, want StatusValid", v.Status)
	}
	if v.Record.OwnerID != "owner-1" || v.Record.ID != cred.RecordID {
		t.Fatalf("unexpected record %+v", v.Record)
	}
}

func TestValidateUnknownAndExpired(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService(DefaultConfig())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	v, err := svc.Validate(ctx, now, "never-issued")
	if err != nil || v.Status != StatusInvalid {
		t.Fatalf("unknown secret: %v, %v; want StatusInvalid", v.Status, err)
	}

	cred, err := svc.Issue(ctx, now, "owner-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	past := now.Add(DefaultConfig().TTL).Add(time.Second)
	v, err = svc.Validate(ctx, past, cred.Secret)
	if err != nil || v.Status != StatusInvalid {
		t.Fatalf("expired secret: %v, %v; want StatusInvalid", v.Status, err)
	}
}

func TestRotateHandsOverCredential(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService(DefaultConfig())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cred, err := svc.Issue(ctx, now, "owner-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	later := now.Add(time.Hour)
	rotated, err := svc.Rotate(ctx, later, cred.Secret)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if rotated.OwnerID != "owner-1" {
		t.Fatalf("owner %q, want owner-1", rotated.OwnerID)
	}
	if rotated.Secret == cred.Secret {
		t.Fatal("rotation must produce a fresh secret")
	}
	if want := later.Add(DefaultConfig().TTL); !rotated.ExpiresAt.Equal(want) {
		t.Fatalf("successor expiry %v, want %v", rotated.ExpiresAt, want)
	}

	// The successor works; the consumed secret is now a reuse signal.
	v, err := svc.Validate(ctx, later, rotated.Secret)
	if err != nil || v.Status != StatusValid {
		t.Fatalf("successor: %v, %v; want StatusValid", v.Status, err)
	}
}

func TestRotateRejectsUnknownAndExpired(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService(DefaultConfig())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if _, err := svc.Rotate(ctx, now, "never-issued"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}

	cred, err := svc.Issue(ctx, now, "owner-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	past := now.Add(DefaultConfig().TTL).Add(time.Second)
	if _, err := svc.Rotate(ctx, past, cred.Secret); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for expired, got %v", err)
	}
}

func TestReuseRevokesEverythingWhenPolicyEnabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.RevokeAllOnReuse = true
	svc, _ := testService(cfg)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Two live credentials for the same owner, e.g. two devices.
	first, err := svc.Issue(ctx, now, "owner-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	second, err := svc.Issue(ctx, now, "owner-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	rotated, err := svc.Rotate(ctx, now.Add(time.Minute), first.Secret)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	// The consumed secret comes back: reuse. Everything the owner holds,
	// including the rotation's successor and the second device, dies.
	if _, err := svc.Rotate(ctx, now.Add(2*time.Minute), first.Secret); !errors.Is(err, ErrReuseDetected) {
		t.Fatalf("expected ErrReuseDetected, got %v", err)
	}

	at := now.Add(3 * time.Minute)
	for name, secret := range map[string]string{
		"successor":     rotated.Secret,
		"second device": second.Secret,
	} {
		v, err := svc.Validate(ctx, at, secret)
		if err != nil {
			t.Fatalf("Validate %s: %v", name, err)
		}
		if v.Status == StatusValid {
			t.Fatalf("%s still valid after reuse response", name)
		}
	}
}

func TestReuseDefaultKeepsOtherCredentials(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService(DefaultConfig())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first, err := svc.Issue(ctx, now, "owner-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	second, err := svc.Issue(ctx, now, "owner-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	rotated, err := svc.Rotate(ctx, now.Add(time.Minute), first.Secret)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	// Reuse still surfaces as its own signal, but nothing else dies.
	if _, err := svc.Rotate(ctx, now.Add(2*time.Minute), first.Secret); !errors.Is(err, ErrReuseDetected) {
		t.Fatalf("expected ErrReuseDetected, got %v", err)
	}

	at := now.Add(3 * time.Minute)
	for name, secret := range map[string]string{
		"successor":     rotated.Secret,
		"second device": second.Secret,
	} {
		v, err := svc.Validate(ctx, at, secret)
		if err != nil || v.Status != StatusValid {
			t.Fatalf("%s: %v, %v; want StatusValid", name, v.Status, err)
		}
	}
}

func TestConcurrentRotateSingleWinner(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService(DefaultConfig())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cred, err := svc.Issue(ctx, now, "owner-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	const attempts = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		reuses  int
		winners []Rotated
	)
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			rotated, err := svc.Rotate(ctx, now.Add(time.Minute), cred.Secret)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
				winners = append(winners, rotated)
			case errors.Is(err, ErrReuseDetected):
				reuses++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("%d rotations succeeded, want exactly 1", wins)
	}
	if reuses != attempts-1 {
		t.Fatalf("%d reuse signals, want %d", reuses, attempts-1)
	}

	// The losers got the reuse signal but the winner keeps its credential:
	// the account ends the race with exactly one live session, never zero.
	v, err := svc.Validate(ctx, now.Add(2*time.Minute), winners[0].Secret)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v.Status != StatusValid {
		t.Fatalf("winner credential status %v, want StatusValid", v.Status)
	}
	sessions, err := svc.Sessions(ctx, now.Add(2*time.Minute), "owner-1")
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != winners[0].RecordID {
		t.Fatalf("active credentials after race: %d, want exactly one (the winner's)", len(sessions))
	}
}

func TestRevokeAndRevokeAll(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService(DefaultConfig())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cred, err := svc.Issue(ctx, now, "owner-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := svc.Revoke(ctx, now, cred.Secret); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	// Idempotent.
	if err := svc.Revoke(ctx, now, cred.Secret); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
	if err := svc.Revoke(ctx, now, "never-issued"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.Issue(ctx, now, "owner-2"); err != nil {
			t.Fatalf("Issue: %v", err)
		}
	}
	n, err := svc.RevokeAll(ctx, now, "owner-2")
	if err != nil || n != 3 {
		t.Fatalf("RevokeAll: %d, %v; want 3", n, err)
	}
	sessions, err := svc.Sessions(ctx, now, "owner-2")
	if err != nil || len(sessions) != 0 {
		t.Fatalf("Sessions: %d, %v; want 0", len(sessions), err)
	}
}

func TestSessionsListsOnlyLiveCredentials(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService(DefaultConfig())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	live, err := svc.Issue(ctx, now, "owner-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	revoked, err := svc.Issue(ctx, now, "owner-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := svc.Revoke(ctx, now, revoked.Secret); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	sessions, err := svc.Sessions(ctx, now.Add(time.Minute), "owner-1")
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != live.RecordID {
		t.Fatalf("sessions %+v, want only %s", sessions, live.RecordID)
	}
}
