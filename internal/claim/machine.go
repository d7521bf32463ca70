// Package claim drives a per-asset claim attempt. The machine owns the
// awkward parts of claiming: disambiguating singular and fractional
// assets, refusing re-entrant attempts while one is in flight, staying
// idempotent after success, and riding out a not-yet-ready session by
// waiting for one refresh instead of failing.
package claim

import (
	"context"
	"sync"

	"github.com/lostclubtoys/vault/internal/ledger"
	apperrors "github.com/lostclubtoys/vault/internal/platform/errors"
)

// State is the machine's lifecycle position.
type State int

const (
	// StateInitializing means Prepare has not completed yet.
	StateInitializing State = iota
	// StateReady means the asset is loaded and a claim may be attempted.
	StateReady
	// StateClaiming means a claim call is in flight.
	StateClaiming
	// StateClaimed means the claim committed; the machine is terminal.
	StateClaimed
	// StateFailed means the last claim attempt failed.
	StateFailed
)

// String returns a readable state name.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateClaiming:
		return "claiming"
	case StateClaimed:
		return "claimed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Registry is the ledger surface the machine claims through.
type Registry interface {
	Metadata(ctx context.Context, assetID uint64) (ledger.Asset, error)
	OwnershipType(ctx context.Context, assetID uint64) (ledger.OwnershipType, error)
	Shareholders(ctx context.Context, assetID uint64) (ledger.ShareholderSet, error)
	ClaimSingular(ctx context.Context, assetID uint64) (uint64, error)
	ClaimShares(ctx context.Context, assetID uint64) (uint64, error)
}

// SessionGate reports and restores session readiness.
type SessionGate interface {
	// Ready reports whether an authenticated registry client exists.
	Ready() bool
	// Refresh re-derives the session and reports readiness after it.
	Refresh(ctx context.Context) bool
}

// Status is an immutable view of the machine.
type Status struct {
	State     State
	Asset     ledger.Asset
	Ownership ledger.OwnershipType
	Claimable bool
	TxID      uint64
	Err       error
}

// Machine orchestrates the claim flow for one asset.
type Machine struct {
	assetID   uint64
	registry  Registry
	gate      SessionGate
	custodial string

	mu     sync.Mutex
	status Status
}

// NewMachine creates a claim machine for one asset.
func NewMachine(assetID uint64, registry Registry, gate SessionGate, custodial string) *Machine {
	return &Machine{
		assetID:   assetID,
		registry:  registry,
		gate:      gate,
		custodial: custodial,
	}
}

// Status returns the machine's current view.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// awaitClient waits for a usable session, allowing one refresh to
// restore it. A session that stays unusable is a waiting condition for
// the caller, not a machine failure.
func (m *Machine) awaitClient(ctx context.Context) error {
	if m.gate.Ready() {
		return nil
	}
	if m.gate.Refresh(ctx) {
		return nil
	}
	return apperrors.New(apperrors.CodeNotAuthenticated, "no authenticated session for claiming")
}

// Prepare loads the asset and determines whether a claimable custodial
// balance exists. It moves the machine from Initializing to Ready.
func (m *Machine) Prepare(ctx context.Context) error {
	if err := m.awaitClient(ctx); err != nil {
		return err
	}

	asset, err := m.registry.Metadata(ctx, m.assetID)
	if err != nil {
		return err
	}
	ownership, err := m.registry.OwnershipType(ctx, m.assetID)
	if err != nil {
		return err
	}

	claimable := true
	if ownership == ledger.OwnershipFractional {
		set, err := m.registry.Shareholders(ctx, m.assetID)
		if err != nil {
			return err
		}
		claimable = set.SharesOf(m.custodial) > 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status.State == StateClaimed || m.status.State == StateClaiming {
		// Prepare must not regress a claim already under way.
		return nil
	}
	m.status = Status{
		State:     StateReady,
		Asset:     asset,
		Ownership: ownership,
		Claimable: claimable,
	}
	return nil
}

// Claim attempts the claim. It is idempotent after success, rejects
// concurrent attempts with CLAIM_IN_FLIGHT, and keeps the machine Ready
// when the only problem is a missing session.
func (m *Machine) Claim(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	switch m.status.State {
	case StateClaimed:
		txID := m.status.TxID
		m.mu.Unlock()
		return txID, nil
	case StateClaiming:
		m.mu.Unlock()
		return 0, apperrors.New(apperrors.CodeClaimInFlight, "a claim for this asset is already in flight")
	case StateInitializing:
		m.mu.Unlock()
		return 0, apperrors.New(apperrors.CodeInvalidState, "claim requires a prepared machine")
	}
	ownership := m.status.Ownership
	m.status.State = StateClaiming
	m.mu.Unlock()

	if err := m.awaitClient(ctx); err != nil {
		// Still waiting for a session; the claim may be retried.
		m.setState(StateReady, 0, nil)
		return 0, err
	}

	var txID uint64
	var err error
	if ownership == ledger.OwnershipFractional {
		txID, err = m.registry.ClaimShares(ctx, m.assetID)
	} else {
		txID, err = m.registry.ClaimSingular(ctx, m.assetID)
	}
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeNotAuthenticated) ||
			apperrors.IsCode(err, apperrors.CodeSessionExpired) {
			m.setState(StateReady, 0, nil)
		} else {
			m.setState(StateFailed, 0, err)
		}
		return 0, err
	}

	m.setState(StateClaimed, txID, nil)
	return txID, nil
}

func (m *Machine) setState(state State, txID uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.State = state
	m.status.TxID = txID
	m.status.Err = err
	if state == StateClaimed {
		m.status.Claimable = false
	}
}
