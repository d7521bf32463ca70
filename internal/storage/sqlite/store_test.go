package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lostclubtoys/vault/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "vault.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	record := storage.SessionRecord{
		PrincipalID: "w3gef-eqllq-zz",
		Delegation:  "delegation-token",
		ExpiresAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		CreatedAt:   time.Date(2026, 3, 1, 11, 30, 0, 0, time.UTC),
	}
	if err := store.PutSession(ctx, record); err != nil {
		t.Fatalf("put session: %v", err)
	}

	got, err := store.GetSession(ctx)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.PrincipalID != record.PrincipalID {
		t.Fatalf("expected principal %q, got %q", record.PrincipalID, got.PrincipalID)
	}
	if got.Delegation != record.Delegation {
		t.Fatalf("expected delegation to survive, got %q", got.Delegation)
	}
	if !got.ExpiresAt.Equal(record.ExpiresAt) {
		t.Fatalf("expected expiry %v, got %v", record.ExpiresAt, got.ExpiresAt)
	}
}

func TestPutSessionReplacesPrevious(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := storage.SessionRecord{PrincipalID: "first", Delegation: "a", ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now()}
	second := storage.SessionRecord{PrincipalID: "second", Delegation: "b", ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now()}

	if err := store.PutSession(ctx, first); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := store.PutSession(ctx, second); err != nil {
		t.Fatalf("put second: %v", err)
	}

	got, err := store.GetSession(ctx)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.PrincipalID != "second" {
		t.Fatalf("expected replacement, got %q", got.PrincipalID)
	}
}

func TestGetSessionMissing(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetSession(context.Background())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteSessionIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.DeleteSession(ctx); err != nil {
		t.Fatalf("delete absent session: %v", err)
	}

	record := storage.SessionRecord{PrincipalID: "p", Delegation: "d", ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now()}
	if err := store.PutSession(ctx, record); err != nil {
		t.Fatalf("put session: %v", err)
	}
	if err := store.DeleteSession(ctx); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := store.GetSession(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestRedirectTargetConsumeOnce(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.SetRedirectTarget(ctx, "/claim/42"); err != nil {
		t.Fatalf("set redirect target: %v", err)
	}

	target, err := store.ConsumeRedirectTarget(ctx)
	if err != nil {
		t.Fatalf("consume redirect target: %v", err)
	}
	if target != "/claim/42" {
		t.Fatalf("expected /claim/42, got %q", target)
	}

	if _, err := store.ConsumeRedirectTarget(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second consume, got %v", err)
	}
}

func TestAppendTelemetryEvent(t *testing.T) {
	store := openTestStore(t)

	event := storage.TelemetryEvent{
		Name:      "claim.succeeded",
		Severity:  "INFO",
		Principal: "w3gef-eqllq-zz",
		AssetID:   "42",
		Timestamp: time.Now(),
	}
	if err := store.AppendTelemetryEvent(context.Background(), event); err != nil {
		t.Fatalf("append telemetry event: %v", err)
	}
}

func TestStoreHonorsCancelledContext(t *testing.T) {
	store := openTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.DeleteSession(ctx); err == nil {
		t.Fatal("expected context error")
	}
}
