package ledger

import "github.com/lostclubtoys/vault/internal/wire"

// Registry method paths. The registry's interface definition is not
// compiled in; calls are made by path with the shared JSON codec.
const (
	methodTokenMetadata    = "/vault.registry.Registry/TokenMetadata"
	methodOwnershipType    = "/vault.registry.Registry/OwnershipType"
	methodShareholders     = "/vault.registry.Registry/Shareholders"
	methodTransfer         = "/vault.registry.Registry/Transfer"
	methodTransferShares   = "/vault.registry.Registry/TransferShares"
	methodCanFractionalize = "/vault.registry.Registry/CanFractionalize"
	methodFractionalize    = "/vault.registry.Registry/Fractionalize"
	methodClaim            = "/vault.registry.Registry/Claim"
	methodClaimShares      = "/vault.registry.Registry/ClaimShares"
	methodTokensOf         = "/vault.registry.Registry/TokensOf"
	methodMint             = "/vault.registry.Registry/Mint"
)

// tokenRequest addresses a single asset.
type tokenRequest struct {
	TokenID wire.Nat `json:"token_id"`
}

// assetMetadata is the registry's metadata record. Both fields are
// optional on the wire; absent fields degrade to placeholders.
type assetMetadata struct {
	Name  wire.Opt[string] `json:"name"`
	Image wire.Opt[string] `json:"image"`
}

// metadataResponse wraps the zero-or-one metadata record for a token.
type metadataResponse struct {
	Metadata wire.Opt[assetMetadata] `json:"metadata"`
}

// typeResponse carries the ownership classification.
type typeResponse struct {
	Result wire.Result[string] `json:"result"`
}

// shareholderEntry is one wire-level share position.
type shareholderEntry struct {
	Owner  wire.Account `json:"owner"`
	Shares wire.Nat     `json:"shares"`
}

// shareholderPayload is the ok arm of a Shareholders call.
type shareholderPayload struct {
	TotalShares  wire.Nat           `json:"total_shares"`
	Shareholders []shareholderEntry `json:"shareholders"`
}

// shareholdersResponse carries the share distribution or an error.
type shareholdersResponse struct {
	Result wire.Result[shareholderPayload] `json:"result"`
}

// transferRequest moves a whole asset.
type transferRequest struct {
	TokenID wire.Nat     `json:"token_id"`
	To      wire.Account `json:"to"`
}

// transferSharesRequest moves part of a fractional asset.
type transferSharesRequest struct {
	TokenID wire.Nat     `json:"token_id"`
	To      wire.Account `json:"to"`
	Shares  wire.Nat     `json:"shares"`
}

// txResponse carries a transaction id or an error.
type txResponse struct {
	Result wire.Result[wire.Nat] `json:"result"`
}

// boolResponse carries a probe answer or an error.
type boolResponse struct {
	Result wire.Result[bool] `json:"result"`
}

// fractionalizeRequest converts a singular asset to fractional form.
type fractionalizeRequest struct {
	TokenID      wire.Nat           `json:"token_id"`
	TotalShares  wire.Nat           `json:"total_shares"`
	Distribution []shareholderEntry `json:"distribution"`
}

// tokensOfRequest lists an owner's assets with optional paging.
type tokensOfRequest struct {
	Owner  wire.Account      `json:"owner"`
	Start  wire.Opt[wire.Nat] `json:"start"`
	Length wire.Opt[wire.Nat] `json:"length"`
}

// tokensOfResponse is the asset id listing.
type tokensOfResponse struct {
	TokenIDs []wire.Nat `json:"token_ids"`
}

// mintRequest creates a new singular asset.
type mintRequest struct {
	Name  string       `json:"name"`
	Image string       `json:"image"`
	To    wire.Account `json:"to"`
}
