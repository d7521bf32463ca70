package provider

import (
	"sync"
	"time"
)

// pendingFlow holds PKCE state for an in-flight login.
type pendingFlow struct {
	codeVerifier string
	createdAt    time.Time
}

// pendingFlowStore is a thread-safe store for in-flight PKCE flows.
type pendingFlowStore struct {
	mu    sync.Mutex
	flows map[string]*pendingFlow
	ttl   time.Duration
	now   func() time.Time
}

// newPendingFlowStore creates an empty pending flow store.
func newPendingFlowStore(ttl time.Duration) *pendingFlowStore {
	return &pendingFlowStore{
		flows: make(map[string]*pendingFlow),
		ttl:   ttl,
		now:   time.Now,
	}
}

// create stores a new pending flow and returns the state parameter.
func (s *pendingFlowStore) create(codeVerifier string) string {
	state := randomHex(16)
	s.mu.Lock()
	s.flows[state] = &pendingFlow{
		codeVerifier: codeVerifier,
		createdAt:    s.now(),
	}
	s.mu.Unlock()
	return state
}

// consume retrieves and removes a pending flow by state.
// Returns nil if missing or expired.
func (s *pendingFlowStore) consume(state string) *pendingFlow {
	s.mu.Lock()
	flow, ok := s.flows[state]
	if ok {
		delete(s.flows, state)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if s.now().Sub(flow.createdAt) > s.ttl {
		return nil
	}
	return flow
}
