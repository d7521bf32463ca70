// Package sqlite provides the SQLite-backed vault client store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lostclubtoys/vault/internal/storage"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS identity_session (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	principal_id TEXT NOT NULL,
	delegation TEXT NOT NULL,
	expires_at INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS redirect_target (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	target TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS telemetry_event (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	severity TEXT NOT NULL,
	principal TEXT NOT NULL,
	asset_id TEXT NOT NULL,
	detail TEXT NOT NULL,
	ts INTEGER NOT NULL
);
`

// Store provides a SQLite-backed session and telemetry store.
type Store struct {
	db *sql.DB
}

// Open opens a SQLite-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := sql.Open("sqlite", cleanPath)
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}
	// modernc sqlite allows one writer; serialize access here instead of
	// surfacing SQLITE_BUSY to callers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply storage schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// PutSession persists the identity session record, replacing any
// previous session.
func (s *Store) PutSession(ctx context.Context, record storage.SessionRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO identity_session (id, principal_id, delegation, expires_at, created_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			principal_id = excluded.principal_id,
			delegation = excluded.delegation,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at`,
		record.PrincipalID, record.Delegation,
		record.ExpiresAt.UTC().Unix(), record.CreatedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// GetSession returns the persisted identity session record.
func (s *Store) GetSession(ctx context.Context) (storage.SessionRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SessionRecord{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT principal_id, delegation, expires_at, created_at
		FROM identity_session WHERE id = 1`)

	var record storage.SessionRecord
	var expiresAt, createdAt int64
	err := row.Scan(&record.PrincipalID, &record.Delegation, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("get session: %w", err)
	}
	record.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	record.CreatedAt = time.Unix(createdAt, 0).UTC()
	return record, nil
}

// DeleteSession removes the persisted session. Deleting an absent
// session is not an error.
func (s *Store) DeleteSession(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM identity_session WHERE id = 1`); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// SetRedirectTarget remembers a single redirect target across the login
// round trip.
func (s *Store) SetRedirectTarget(ctx context.Context, target string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO redirect_target (id, target) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET target = excluded.target`, target)
	if err != nil {
		return fmt.Errorf("set redirect target: %w", err)
	}
	return nil
}

// ConsumeRedirectTarget returns and clears the remembered redirect
// target.
func (s *Store) ConsumeRedirectTarget(ctx context.Context) (string, error) {
	if err := s.ready(ctx); err != nil {
		return "", err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("consume redirect target: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var target string
	err = tx.QueryRowContext(ctx, `SELECT target FROM redirect_target WHERE id = 1`).Scan(&target)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("consume redirect target: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM redirect_target WHERE id = 1`); err != nil {
		return "", fmt.Errorf("consume redirect target: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("consume redirect target: %w", err)
	}
	return target, nil
}

// AppendTelemetryEvent records an operational event.
func (s *Store) AppendTelemetryEvent(ctx context.Context, event storage.TelemetryEvent) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO telemetry_event (name, severity, principal, asset_id, detail, ts)
		VALUES (?, ?, ?, ?, ?, ?)`,
		event.Name, event.Severity, event.Principal, event.AssetID,
		event.Detail, event.Timestamp.UTC().Unix())
	if err != nil {
		return fmt.Errorf("append telemetry event: %w", err)
	}
	return nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}
