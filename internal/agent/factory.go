package agent

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/lostclubtoys/vault/internal/identity"
	platformgrpc "github.com/lostclubtoys/vault/internal/platform/grpc"
	gogrpc "google.golang.org/grpc"
)

// Factory builds authenticated registry clients for identity snapshots.
// The registry address is fixed at construction so every client built
// by one factory talks to the same registry.
type Factory struct {
	registryAddr string
	logf         func(format string, args ...any)
	dial         func(ctx context.Context, addr string, logf func(string, ...any)) (*gogrpc.ClientConn, error)
	generation   atomic.Uint64
}

// NewFactory creates a client factory for the given registry address.
func NewFactory(registryAddr string) *Factory {
	return &Factory{
		registryAddr: registryAddr,
		logf:         log.Printf,
		dial:         platformgrpc.DialRegistry,
	}
}

// Build returns a client bound to the snapshot's delegation, or nil
// when the snapshot is unauthenticated or the registry is unreachable.
// Build never fails loudly: an unusable client and an absent client are
// the same thing to callers, which check for nil before every use.
func (f *Factory) Build(ctx context.Context, snapshot identity.Snapshot) *Client {
	if !snapshot.Authenticated {
		return nil
	}
	conn, err := f.dial(ctx, f.registryAddr, f.logf)
	if err != nil {
		f.logf("agent: dial registry %s: %v", f.registryAddr, err)
		return nil
	}
	return NewClient(conn, snapshot.PrincipalID, snapshot.Delegation, f.generation.Add(1))
}
