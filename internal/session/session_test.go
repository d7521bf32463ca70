package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lostclubtoys/vault/internal/agent"
	"github.com/lostclubtoys/vault/internal/identity"
	apperrors "github.com/lostclubtoys/vault/internal/platform/errors"
)

// fakeIdentity scripts the identity store behavior.
type fakeIdentity struct {
	mu         sync.Mutex
	snapshot   identity.Snapshot
	loginErr   error
	checkGate  chan struct{}
	checkCalls atomic.Int64
}

func (f *fakeIdentity) CheckSession(context.Context) identity.Snapshot {
	f.checkCalls.Add(1)
	if f.checkGate != nil {
		<-f.checkGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *fakeIdentity) Login(context.Context) (identity.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return identity.Snapshot{}, f.loginErr
	}
	return f.snapshot, nil
}

func (f *fakeIdentity) Logout(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = identity.Snapshot{}
}

// countingBuilder builds detached clients and counts builds.
type countingBuilder struct {
	builds atomic.Int64
	fail   bool
}

func (b *countingBuilder) Build(_ context.Context, snapshot identity.Snapshot) *agent.Client {
	b.builds.Add(1)
	if b.fail || !snapshot.Authenticated {
		return nil
	}
	gen := uint64(b.builds.Load())
	return agent.NewClient(nil, snapshot.PrincipalID, snapshot.Delegation, gen)
}

func authSnapshot(principal string) identity.Snapshot {
	return identity.Snapshot{
		Authenticated: true,
		PrincipalID:   principal,
		Delegation:    "delegation-token",
		ExpiresAt:     time.Now().Add(time.Hour),
	}
}

func TestInitialStateIsLoading(t *testing.T) {
	s := New(&fakeIdentity{}, &countingBuilder{})
	state := s.State()
	if !state.Loading {
		t.Fatal("expected initial state to be loading")
	}
	if state.Authenticated {
		t.Fatal("expected initial state to be unauthenticated")
	}
}

func TestRefreshInstallsConsistentState(t *testing.T) {
	ids := &fakeIdentity{snapshot: authSnapshot("w3gef-eqllq-zz")}
	s := New(ids, &countingBuilder{})

	state := s.Refresh(context.Background())
	if state.Loading {
		t.Fatal("expected loading to clear after refresh")
	}
	if !state.Authenticated {
		t.Fatal("expected authenticated state")
	}
	if state.Principal != "w3gef-eqllq-zz" {
		t.Fatalf("unexpected principal %q", state.Principal)
	}
	if state.Client == nil {
		t.Fatal("expected client alongside principal")
	}
	if state.Client.Principal() != state.Principal {
		t.Fatalf("client principal %q does not match state principal %q",
			state.Client.Principal(), state.Principal)
	}
}

func TestRefreshWithoutSessionLeavesNoClient(t *testing.T) {
	s := New(&fakeIdentity{}, &countingBuilder{})

	state := s.Refresh(context.Background())
	if state.Authenticated || state.Client != nil || state.Principal != "" {
		t.Fatalf("expected signed-out state, got %+v", state)
	}
}

func TestRefreshDegradesWhenRegistryUnreachable(t *testing.T) {
	ids := &fakeIdentity{snapshot: authSnapshot("p")}
	s := New(ids, &countingBuilder{fail: true})

	state := s.Refresh(context.Background())
	if state.Authenticated {
		t.Fatal("expected unauthenticated state when no client can be built")
	}
	if state.Client != nil {
		t.Fatal("expected no client")
	}
}

func TestConcurrentRefreshesCoalesce(t *testing.T) {
	ids := &fakeIdentity{
		snapshot:  authSnapshot("p"),
		checkGate: make(chan struct{}),
	}
	s := New(ids, &countingBuilder{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Refresh(context.Background())
		}()
	}

	// Wait until the first refresh reaches the provider check, then
	// release it for everyone.
	deadline := time.Now().Add(2 * time.Second)
	for ids.checkCalls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("refresh never reached the provider check")
		}
		time.Sleep(time.Millisecond)
	}
	close(ids.checkGate)
	wg.Wait()

	if got := ids.checkCalls.Load(); got != 1 {
		t.Fatalf("expected a single coalesced provider check, got %d", got)
	}
}

func TestLoginFailureLeavesSignedOutState(t *testing.T) {
	ids := &fakeIdentity{loginErr: apperrors.New(apperrors.CodeLoginCancelled, "login was cancelled")}
	s := New(ids, &countingBuilder{})

	state, err := s.Login(context.Background())
	if !apperrors.IsCode(err, apperrors.CodeLoginCancelled) {
		t.Fatalf("expected LOGIN_CANCELLED, got %v", err)
	}
	if state.Authenticated || state.Client != nil {
		t.Fatalf("expected signed-out state, got %+v", state)
	}
	if state.Loading {
		t.Fatal("expected loading to clear after failed login")
	}
}

func TestLoginInstallsClient(t *testing.T) {
	ids := &fakeIdentity{snapshot: authSnapshot("p")}
	s := New(ids, &countingBuilder{})

	state, err := s.Login(context.Background())
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !state.Authenticated || state.Client == nil {
		t.Fatalf("expected authenticated state with client, got %+v", state)
	}
}

func TestLogoutRevokesClient(t *testing.T) {
	ids := &fakeIdentity{snapshot: authSnapshot("p")}
	s := New(ids, &countingBuilder{})

	state, err := s.Login(context.Background())
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	client := state.Client

	state = s.Logout(context.Background())
	if state.Authenticated || state.Client != nil {
		t.Fatalf("expected signed-out state, got %+v", state)
	}

	err = client.Call(context.Background(), "/vault.registry.Registry/Metadata", nil, nil)
	if !apperrors.IsCode(err, apperrors.CodeSessionExpired) {
		t.Fatalf("expected revoked client to fail with SESSION_EXPIRED, got %v", err)
	}
}

func TestStaleRefreshResultIsDiscarded(t *testing.T) {
	ids := &fakeIdentity{
		snapshot:  authSnapshot("p"),
		checkGate: make(chan struct{}),
	}
	s := New(ids, &countingBuilder{})

	refreshed := make(chan State, 1)
	go func() {
		refreshed <- s.Refresh(context.Background())
	}()

	deadline := time.Now().Add(2 * time.Second)
	for ids.checkCalls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("refresh never reached the provider check")
		}
		time.Sleep(time.Millisecond)
	}

	// The user signs out while the refresh is still in flight. The
	// refresh result must not resurrect the session.
	s.Logout(context.Background())
	close(ids.checkGate)
	<-refreshed

	state := s.State()
	if state.Authenticated || state.Client != nil {
		t.Fatalf("expected stale refresh to be discarded, got %+v", state)
	}
}

func TestGenerationGrowsAcrossMutations(t *testing.T) {
	ids := &fakeIdentity{snapshot: authSnapshot("p")}
	s := New(ids, &countingBuilder{})

	first := s.Refresh(context.Background())
	second, err := s.Login(context.Background())
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if second.Generation <= first.Generation {
		t.Fatalf("expected generation to grow, got %d then %d", first.Generation, second.Generation)
	}
}
