// Package storage defines the persistence interfaces for the vault
// client. Persisted state is deliberately small: the identity provider's
// session record, the post-login redirect target, and the telemetry
// event log.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// SessionRecord is the durable identity session as issued by the
// provider. Everything else about the session lives in memory.
type SessionRecord struct {
	PrincipalID string
	Delegation  string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// SessionStore persists the single identity session record.
type SessionStore interface {
	PutSession(ctx context.Context, record SessionRecord) error
	GetSession(ctx context.Context) (SessionRecord, error)
	DeleteSession(ctx context.Context) error

	// Redirect target remembered across the login round trip.
	// ConsumeRedirectTarget clears the value it returns.
	SetRedirectTarget(ctx context.Context, target string) error
	ConsumeRedirectTarget(ctx context.Context) (string, error)
}

// TelemetryEvent records a single operational event.
type TelemetryEvent struct {
	Name      string
	Severity  string
	Principal string
	AssetID   string
	Detail    string
	Timestamp time.Time
}

// TelemetryStore appends operational telemetry events.
type TelemetryStore interface {
	AppendTelemetryEvent(ctx context.Context, event TelemetryEvent) error
}
