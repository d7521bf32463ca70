// Package session coordinates the identity snapshot and the registry
// client into a single consistent view. Consumers read one State and
// never observe a principal without its client or a client bound to a
// previous principal.
package session

import (
	"context"
	"sync"

	"github.com/lostclubtoys/vault/internal/agent"
	"github.com/lostclubtoys/vault/internal/identity"
)

// State is one consistent view of the session.
type State struct {
	Authenticated bool
	Principal     string
	Loading       bool
	Generation    uint64
	Client        *agent.Client
}

// IdentityStore is the identity surface the session depends on.
type IdentityStore interface {
	CheckSession(ctx context.Context) identity.Snapshot
	Login(ctx context.Context) (identity.Snapshot, error)
	Logout(ctx context.Context)
}

// ClientBuilder builds registry clients for identity snapshots.
type ClientBuilder interface {
	Build(ctx context.Context, snapshot identity.Snapshot) *agent.Client
}

// Session owns the authoritative session state. All mutations are
// ordered by a generation counter; a mutation that finishes after a
// newer one has started discards its result instead of clobbering the
// newer state.
type Session struct {
	ids     IdentityStore
	builder ClientBuilder

	mu         sync.Mutex
	state      State
	generation uint64
	inflight   chan struct{}
}

// New creates a session in the loading state. The state is not
// meaningful until the first Refresh completes.
func New(ids IdentityStore, builder ClientBuilder) *Session {
	return &Session{
		ids:     ids,
		builder: builder,
		state:   State{Loading: true},
	}
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Refresh re-derives the session state from the identity store.
// Concurrent refreshes coalesce: callers arriving while one is in
// flight wait for it instead of issuing another provider check.
func (s *Session) Refresh(ctx context.Context) State {
	s.mu.Lock()
	if s.inflight != nil {
		done := s.inflight
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return s.State()
	}
	done := make(chan struct{})
	s.inflight = done
	gen := s.begin()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inflight = nil
		s.clearLoading(gen)
		s.mu.Unlock()
		close(done)
	}()

	snapshot := s.ids.CheckSession(ctx)
	var client *agent.Client
	if snapshot.Authenticated {
		client = s.builder.Build(ctx, snapshot)
	}
	s.install(gen, snapshot, client)
	return s.State()
}

// Login runs the interactive login flow and installs the resulting
// session. A failed login leaves the session signed out; the error is
// returned for the caller to render.
func (s *Session) Login(ctx context.Context) (State, error) {
	s.mu.Lock()
	gen := s.begin()
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.clearLoading(gen)
		s.mu.Unlock()
	}()

	snapshot, err := s.ids.Login(ctx)
	if err != nil {
		s.install(gen, identity.Snapshot{}, nil)
		return s.State(), err
	}

	client := s.builder.Build(ctx, snapshot)
	s.install(gen, snapshot, client)
	return s.State(), nil
}

// Logout signs out and revokes the registry client. Logout always
// succeeds from the caller's perspective.
func (s *Session) Logout(ctx context.Context) State {
	s.mu.Lock()
	gen := s.begin()
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.clearLoading(gen)
		s.mu.Unlock()
	}()

	s.ids.Logout(ctx)
	s.install(gen, identity.Snapshot{}, nil)
	return s.State()
}

// begin starts a mutation. Callers must hold the lock.
func (s *Session) begin() uint64 {
	s.generation++
	s.state.Loading = true
	return s.generation
}

// clearLoading drops the loading flag if the mutation still owns the
// state. Callers must hold the lock.
func (s *Session) clearLoading(gen uint64) {
	if gen == s.generation {
		s.state.Loading = false
	}
}

// install publishes a mutation's result. A result arriving after a
// newer mutation has started is discarded and its client revoked so a
// stale delegation can never act for the current state.
func (s *Session) install(gen uint64, snapshot identity.Snapshot, client *agent.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		client.Revoke()
		return
	}

	previous := s.state.Client
	s.state = State{
		Authenticated: snapshot.Authenticated && client != nil,
		Generation:    gen,
	}
	if s.state.Authenticated {
		s.state.Principal = snapshot.PrincipalID
		s.state.Client = client
	} else if client != nil {
		// An unauthenticated state never carries a client.
		client.Revoke()
	}
	if previous != nil && previous != client {
		previous.Revoke()
	}
}
