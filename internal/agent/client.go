// Package agent binds an identity delegation to a registry connection.
// A Client is immutable once built: it carries one principal, one
// delegation, and one generation number for its whole lifetime, so a
// stale client can never silently act for a newer session.
package agent

import (
	"context"
	"sync/atomic"

	apperrors "github.com/lostclubtoys/vault/internal/platform/errors"
	"github.com/lostclubtoys/vault/internal/platform/id"
	"github.com/lostclubtoys/vault/internal/platform/timeouts"
	"github.com/lostclubtoys/vault/internal/wire"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// Metadata keys attached to every registry call.
const (
	delegationHeader = "x-vault-delegation"
	principalHeader  = "x-vault-principal"
	requestHeader    = "x-vault-request-id"
)

// Client is an authenticated registry caller bound to one delegation.
type Client struct {
	conn       *gogrpc.ClientConn
	principal  string
	delegation string
	generation uint64
	revoked    atomic.Bool
}

// NewClient binds a delegation to an established registry connection.
func NewClient(conn *gogrpc.ClientConn, principal, delegation string, generation uint64) *Client {
	return &Client{
		conn:       conn,
		principal:  principal,
		delegation: delegation,
		generation: generation,
	}
}

// Principal returns the principal this client acts for.
func (c *Client) Principal() string {
	if c == nil {
		return ""
	}
	return c.principal
}

// Generation returns the session generation this client was built for.
func (c *Client) Generation() uint64 {
	if c == nil {
		return 0
	}
	return c.generation
}

// Revoke permanently disables the client and releases its connection.
// Calls made after Revoke fail with SESSION_EXPIRED.
func (c *Client) Revoke() {
	if c == nil {
		return
	}
	if c.revoked.Swap(true) {
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Call invokes a unary registry method with the bound identity attached.
// Every call carries its own deadline; a nil or revoked client fails
// closed instead of issuing an anonymous request.
func (c *Client) Call(ctx context.Context, method string, in, out any) error {
	if c == nil {
		return apperrors.New(apperrors.CodeNotAuthenticated, "no authenticated registry client")
	}
	if c.revoked.Load() {
		return apperrors.New(apperrors.CodeSessionExpired, "registry client was revoked")
	}
	if c.conn == nil {
		return apperrors.New(apperrors.CodeNotAuthenticated, "no authenticated registry client")
	}

	requestID, err := id.NewID()
	if err != nil {
		return apperrors.Wrap(apperrors.CodeTransportFailure, "generate request id", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeouts.RegistryCall)
	defer cancel()
	callCtx = metadata.AppendToOutgoingContext(callCtx,
		delegationHeader, c.delegation,
		principalHeader, c.principal,
		requestHeader, requestID,
	)

	err = c.conn.Invoke(callCtx, method, in, out, gogrpc.CallContentSubtype(wire.Name))
	if err != nil {
		return apperrors.FromGRPCStatus(err)
	}
	return nil
}
