// Package telemetry records operational events for the vault client.
package telemetry

import (
	"context"
	"time"

	"github.com/lostclubtoys/vault/internal/storage"
)

// Severity describes the telemetry severity level.
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// Event names emitted by the client core.
const (
	EventSessionChecked = "session.checked"
	EventSessionLogin   = "session.login"
	EventSessionLogout  = "session.logout"
	EventClaimSucceeded = "claim.succeeded"
	EventClaimFailed    = "claim.failed"
	EventTransferDone   = "transfer.succeeded"
	EventTransferFailed = "transfer.failed"
	EventFractionalized = "asset.fractionalized"
	EventDecodeDegraded = "decode.degraded"
)

// Emitter records operational telemetry events.
type Emitter struct {
	store storage.TelemetryStore
	clock func() time.Time
}

// NewEmitter creates a new telemetry emitter.
func NewEmitter(store storage.TelemetryStore) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// Emit records a telemetry event. It is a no-op when the store is nil.
func (e *Emitter) Emit(ctx context.Context, event storage.TelemetryEvent) error {
	if e == nil || e.store == nil {
		return nil
	}
	if event.Timestamp.IsZero() {
		if e.clock == nil {
			event.Timestamp = time.Now().UTC()
		} else {
			event.Timestamp = e.clock().UTC()
		}
	}
	if event.Severity == "" {
		event.Severity = string(SeverityInfo)
	}
	return e.store.AppendTelemetryEvent(ctx, event)
}
