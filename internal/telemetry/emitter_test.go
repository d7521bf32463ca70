package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/lostclubtoys/vault/internal/storage"
)

type recordingStore struct {
	events []storage.TelemetryEvent
}

func (s *recordingStore) AppendTelemetryEvent(_ context.Context, event storage.TelemetryEvent) error {
	s.events = append(s.events, event)
	return nil
}

func TestEmitDefaultsTimestampAndSeverity(t *testing.T) {
	store := &recordingStore{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	emitter := &Emitter{store: store, clock: func() time.Time { return now }}

	err := emitter.Emit(context.Background(), storage.TelemetryEvent{
		Name:      EventClaimSucceeded,
		Principal: "w3gef-eqllq-zz",
		AssetID:   "42",
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	if len(store.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(store.events))
	}
	got := store.events[0]
	if !got.Timestamp.Equal(now) {
		t.Fatalf("expected timestamp %v, got %v", now, got.Timestamp)
	}
	if got.Severity != string(SeverityInfo) {
		t.Fatalf("expected default severity INFO, got %q", got.Severity)
	}
}

func TestEmitKeepsExplicitFields(t *testing.T) {
	store := &recordingStore{}
	emitter := NewEmitter(store)

	stamp := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	err := emitter.Emit(context.Background(), storage.TelemetryEvent{
		Name:      EventClaimFailed,
		Severity:  string(SeverityError),
		Timestamp: stamp,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	got := store.events[0]
	if got.Severity != string(SeverityError) {
		t.Fatalf("expected ERROR severity, got %q", got.Severity)
	}
	if !got.Timestamp.Equal(stamp) {
		t.Fatalf("expected timestamp %v, got %v", stamp, got.Timestamp)
	}
}

func TestEmitWithoutStoreIsNoOp(t *testing.T) {
	var emitter *Emitter
	if err := emitter.Emit(context.Background(), storage.TelemetryEvent{Name: EventSessionChecked}); err != nil {
		t.Fatalf("emit on nil emitter: %v", err)
	}

	emitter = NewEmitter(nil)
	if err := emitter.Emit(context.Background(), storage.TelemetryEvent{Name: EventSessionChecked}); err != nil {
		t.Fatalf("emit without store: %v", err)
	}
}
