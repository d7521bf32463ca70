// Package ledger exposes typed operations against the remote vault
// registry: metadata lookup, ownership classification, shareholder
// accounting, transfers, fractionalization, and claims. The registry is
// authoritative for all state; this package only keeps read caches that
// are invalidated after every successful write.
package ledger

import (
	"github.com/lostclubtoys/vault/internal/wire"
)

// OwnershipType classifies how an asset is held.
type OwnershipType int

const (
	// OwnershipUnknown means the type has not been fetched yet.
	OwnershipUnknown OwnershipType = iota
	// OwnershipSingular is a whole asset with a single owner.
	OwnershipSingular
	// OwnershipFractional is an asset split into shares.
	OwnershipFractional
)

// String returns the wire spelling of the ownership type.
func (t OwnershipType) String() string {
	switch t {
	case OwnershipSingular:
		return "singular"
	case OwnershipFractional:
		return "fractional"
	default:
		return "unknown"
	}
}

// Asset is the displayable identity of a registry asset.
type Asset struct {
	ID          uint64
	DisplayName string
	ImageURI    string
}

// ShareholderRecord is one principal's position in a fractional asset.
type ShareholderRecord struct {
	Owner  wire.Account
	Shares uint64
}

// ShareholderSet is the full share distribution of a fractional asset.
type ShareholderSet struct {
	Records     []ShareholderRecord
	TotalShares uint64
}

// SharesOf returns the named principal's total position across
// subaccounts.
func (s ShareholderSet) SharesOf(principal string) uint64 {
	var sum uint64
	for _, record := range s.Records {
		if record.Owner.Owner == principal {
			sum += record.Shares
		}
	}
	return sum
}

// Page bounds an asset listing.
type Page struct {
	Start  *uint64
	Length *uint64
}
