// Package identity manages the client's identity session: the
// persisted provider delegation, the interactive login flow, and the
// non-interactive session check performed at startup.
package identity

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/lostclubtoys/vault/internal/identity/provider"
	apperrors "github.com/lostclubtoys/vault/internal/platform/errors"
	"github.com/lostclubtoys/vault/internal/storage"
	"github.com/lostclubtoys/vault/internal/telemetry"
)

// Snapshot is an immutable view of the identity session.
type Snapshot struct {
	Authenticated bool
	PrincipalID   string
	Delegation    string
	ExpiresAt     time.Time
}

// Authorizer runs one interactive login round trip.
type Authorizer interface {
	Authorize(ctx context.Context) provider.Outcome
}

// Store manages the identity session.
type Store struct {
	authorizer Authorizer
	sessions   storage.SessionStore
	telemetry  *telemetry.Emitter
	verifier   VerifierConfig
	logf       func(format string, args ...any)
	clock      func() time.Time
}

// NewStore creates an identity store.
func NewStore(authorizer Authorizer, sessions storage.SessionStore, emitter *telemetry.Emitter, verifier VerifierConfig) *Store {
	return &Store{
		authorizer: authorizer,
		sessions:   sessions,
		telemetry:  emitter,
		verifier:   verifier,
		logf:       log.Printf,
		clock:      time.Now,
	}
}

// CheckSession reports the current identity session without user
// interaction. It never returns an error: any failure to load or
// verify the persisted delegation degrades to an unauthenticated
// snapshot so startup cannot be blocked by identity state.
func (s *Store) CheckSession(ctx context.Context) Snapshot {
	record, err := s.sessions.GetSession(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logf("identity: load session: %v", err)
		}
		return Snapshot{}
	}

	claims, err := VerifyDelegation(record.Delegation, s.verifierConfig())
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeSessionExpired) {
			if deleteErr := s.sessions.DeleteSession(ctx); deleteErr != nil {
				s.logf("identity: clear expired session: %v", deleteErr)
			}
		} else {
			s.logf("identity: verify delegation: %v", err)
		}
		return Snapshot{}
	}

	snapshot := Snapshot{
		Authenticated: true,
		PrincipalID:   claims.PrincipalID,
		Delegation:    record.Delegation,
		ExpiresAt:     claims.ExpiresAt,
	}
	s.emit(ctx, telemetry.EventSessionChecked, telemetry.SeverityInfo, snapshot.PrincipalID, "")
	return snapshot
}

// Login runs the interactive login flow and persists the resulting
// delegation. Each way the flow can end maps to a distinct error code
// so the caller can render cancellation, a blocked browser, and a
// broken flow differently.
func (s *Store) Login(ctx context.Context) (Snapshot, error) {
	outcome := s.authorizer.Authorize(ctx)

	switch outcome.Kind {
	case provider.OutcomeCompleted:
		// verified and persisted below
	case provider.OutcomeCancelled:
		return Snapshot{}, apperrors.New(apperrors.CodeLoginCancelled, "login was cancelled")
	case provider.OutcomePopupBlocked:
		err := outcome.Err
		if !apperrors.IsCode(err, apperrors.CodePopupBlocked) {
			err = apperrors.Wrap(apperrors.CodePopupBlocked, "authorize page could not be opened", err)
		}
		return Snapshot{}, err
	default:
		err := outcome.Err
		if apperrors.GetCode(err) == apperrors.CodeUnknown {
			err = apperrors.Wrap(apperrors.CodeLoginFailed, "login flow failed", err)
		}
		return Snapshot{}, err
	}

	claims, err := VerifyDelegation(outcome.Delegation.Token, s.verifierConfig())
	if err != nil {
		return Snapshot{}, apperrors.Wrap(apperrors.CodeLoginFailed, "provider issued an unusable delegation", err)
	}

	record := storage.SessionRecord{
		PrincipalID: claims.PrincipalID,
		Delegation:  outcome.Delegation.Token,
		ExpiresAt:   claims.ExpiresAt,
		CreatedAt:   s.clock().UTC(),
	}
	if err := s.sessions.PutSession(ctx, record); err != nil {
		return Snapshot{}, apperrors.Wrap(apperrors.CodeStorageFailure, "persist session", err)
	}

	snapshot := Snapshot{
		Authenticated: true,
		PrincipalID:   claims.PrincipalID,
		Delegation:    outcome.Delegation.Token,
		ExpiresAt:     claims.ExpiresAt,
	}
	s.emit(ctx, telemetry.EventSessionLogin, telemetry.SeverityInfo, snapshot.PrincipalID, "")
	return snapshot, nil
}

// Logout clears the persisted session. Logout is fail-open: a storage
// failure is logged but the caller always observes a signed-out state.
func (s *Store) Logout(ctx context.Context) {
	record, err := s.sessions.GetSession(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logf("identity: load session for logout: %v", err)
	}
	if err := s.sessions.DeleteSession(ctx); err != nil {
		s.logf("identity: clear session: %v", err)
	}
	s.emit(ctx, telemetry.EventSessionLogout, telemetry.SeverityInfo, record.PrincipalID, "")
}

// RememberRedirect stores the target to return to after the login
// round trip.
func (s *Store) RememberRedirect(ctx context.Context, target string) error {
	if err := s.sessions.SetRedirectTarget(ctx, target); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, "remember redirect target", err)
	}
	return nil
}

// TakeRedirect returns the remembered redirect target, clearing it.
// The second return reports whether a target was stored.
func (s *Store) TakeRedirect(ctx context.Context) (string, bool) {
	target, err := s.sessions.ConsumeRedirectTarget(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logf("identity: consume redirect target: %v", err)
		}
		return "", false
	}
	return target, true
}

func (s *Store) verifierConfig() VerifierConfig {
	cfg := s.verifier
	if cfg.Now == nil {
		cfg.Now = s.clock
	}
	return cfg
}

func (s *Store) emit(ctx context.Context, name string, severity telemetry.Severity, principal, detail string) {
	err := s.telemetry.Emit(ctx, storage.TelemetryEvent{
		Name:      name,
		Severity:  string(severity),
		Principal: principal,
		Detail:    detail,
	})
	if err != nil {
		s.logf("identity: emit %s: %v", name, err)
	}
}
