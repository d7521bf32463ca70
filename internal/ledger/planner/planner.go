// Package planner builds share distribution plans for fractionalizing
// an asset. A plan always accounts for every share: the custodial
// principal holds whatever the named owners do not, so the total is an
// invariant of every mutation rather than something validated at the
// end.
package planner

import (
	"math/bits"
	"strconv"
	"strings"

	apperrors "github.com/lostclubtoys/vault/internal/platform/errors"
)

// Entry is one principal's position in a plan.
type Entry struct {
	Principal string
	Shares    uint64
}

// Plan is a mutable share distribution. The custodial principal is
// always the first entry.
type Plan struct {
	total   uint64
	entries []Entry
}

// NewPlan creates a plan with the custodial principal holding every
// share.
func NewPlan(custodial string, totalShares uint64) (*Plan, error) {
	if strings.TrimSpace(custodial) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidPrincipal, "custodial principal is required")
	}
	if totalShares == 0 {
		return nil, apperrors.New(apperrors.CodeTotalSharesInvalid, "total shares must be positive")
	}
	return &Plan{
		total:   totalShares,
		entries: []Entry{{Principal: custodial, Shares: totalShares}},
	}, nil
}

// Total returns the plan's total share count.
func (p *Plan) Total() uint64 {
	return p.total
}

// Entries returns a copy of the plan's entries, custodial first.
func (p *Plan) Entries() []Entry {
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Custodial returns the custodial entry.
func (p *Plan) Custodial() Entry {
	return p.entries[0]
}

// Shares returns the named principal's position.
func (p *Plan) Shares(principal string) (uint64, bool) {
	for _, entry := range p.entries {
		if entry.Principal == principal {
			return entry.Shares, true
		}
	}
	return 0, false
}

// AddOwner adds a principal with zero shares.
func (p *Plan) AddOwner(principal string) error {
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return apperrors.New(apperrors.CodeInvalidPrincipal, "owner principal is required")
	}
	if _, ok := p.Shares(principal); ok {
		return apperrors.WithMetadata(apperrors.CodeInvalidPrincipal,
			"principal is already in the plan",
			map[string]string{"Principal": principal})
	}
	p.entries = append(p.entries, Entry{Principal: principal})
	return nil
}

// RemoveOwner removes a principal, returning its shares to the
// custodial principal. The custodial principal cannot be removed.
func (p *Plan) RemoveOwner(principal string) error {
	if principal == p.entries[0].Principal {
		return apperrors.New(apperrors.CodeInvalidPrincipal, "custodial principal cannot be removed")
	}
	for i, entry := range p.entries {
		if entry.Principal != principal {
			continue
		}
		p.entries[0].Shares += entry.Shares
		p.entries = append(p.entries[:i], p.entries[i+1:]...)
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodeInvalidPrincipal,
		"principal is not in the plan",
		map[string]string{"Principal": principal})
}

// ApplyAllocation sets a principal's position to the target share
// count. The difference moves against the custodial balance; an
// increase larger than that balance is rejected and the plan is left
// unchanged.
func (p *Plan) ApplyAllocation(principal string, shares uint64) error {
	if principal == p.entries[0].Principal {
		return apperrors.New(apperrors.CodeInvalidPrincipal, "custodial shares are derived, not allocated")
	}
	for i, entry := range p.entries {
		if entry.Principal != principal {
			continue
		}
		if shares > entry.Shares {
			needed := shares - entry.Shares
			if needed > p.entries[0].Shares {
				return apperrors.WithMetadata(apperrors.CodeInsufficientCustodialShares,
					"allocation exceeds the custodial balance",
					map[string]string{"Principal": principal})
			}
			p.entries[0].Shares -= needed
		} else {
			p.entries[0].Shares += entry.Shares - shares
		}
		p.entries[i].Shares = shares
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodeInvalidPrincipal,
		"principal is not in the plan",
		map[string]string{"Principal": principal})
}

// RescaleTotal changes the total share count, scaling every named
// owner's position down proportionally. Each owner keeps
// floor(shares * newTotal / oldTotal); the custodial principal absorbs
// the rounding remainder so the plan still accounts for every share.
func (p *Plan) RescaleTotal(newTotal uint64) error {
	if newTotal == 0 {
		return apperrors.New(apperrors.CodeTotalSharesInvalid, "total shares must be positive")
	}
	if newTotal == p.total {
		return nil
	}

	oldTotal := p.total
	var allocated uint64
	for i := range p.entries[1:] {
		entry := &p.entries[i+1]
		hi, lo := bits.Mul64(entry.Shares, newTotal)
		scaled, _ := bits.Div64(hi, lo, oldTotal)
		entry.Shares = scaled
		allocated += scaled
	}
	p.entries[0].Shares = newTotal - allocated
	p.total = newTotal
	return nil
}

// Validate checks that the plan accounts for exactly the total share
// count.
func (p *Plan) Validate() error {
	var sum uint64
	for _, entry := range p.entries {
		next := sum + entry.Shares
		if next < sum {
			return apperrors.New(apperrors.CodeInvariantViolation, "share sum overflows")
		}
		sum = next
	}
	if sum != p.total {
		return apperrors.WithMetadata(apperrors.CodeDistributionMismatch,
			"plan does not account for every share",
			map[string]string{
				"Total": strconv.FormatUint(p.total, 10),
				"Sum":   strconv.FormatUint(sum, 10),
			})
	}
	return nil
}
