package ledger

import (
	"context"
	"log"
	"strconv"
	"strings"

	"github.com/lostclubtoys/vault/internal/ledger/planner"
	apperrors "github.com/lostclubtoys/vault/internal/platform/errors"
	"github.com/lostclubtoys/vault/internal/storage"
	"github.com/lostclubtoys/vault/internal/telemetry"
	"github.com/lostclubtoys/vault/internal/wire"
)

// Caller issues authenticated unary registry calls.
type Caller interface {
	Call(ctx context.Context, method string, in, out any) error
	Principal() string
}

// Source provides the current authenticated caller, or nil while the
// session is not ready.
type Source interface {
	Current() Caller
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func() Caller

// Current implements Source for SourceFunc.
func (fn SourceFunc) Current() Caller {
	return fn()
}

// Client is the typed surface over the vault registry.
type Client struct {
	source    Source
	custodial string
	cache     *assetCache
	telemetry *telemetry.Emitter
	logf      func(format string, args ...any)
}

// New creates a registry client. The custodial principal identifies the
// registry-held balance used by claim eligibility checks.
func New(source Source, custodial string, emitter *telemetry.Emitter) *Client {
	return &Client{
		source:    source,
		custodial: custodial,
		cache:     newAssetCache(),
		telemetry: emitter,
		logf:      log.Printf,
	}
}

// caller returns the current authenticated caller or fails closed.
func (c *Client) caller() (Caller, error) {
	call := c.source.Current()
	if call == nil {
		return nil, apperrors.New(apperrors.CodeNotAuthenticated, "no registry client is ready")
	}
	return call, nil
}

// invokeRead performs a side-effect-free call, retrying once on a
// transport failure. Reads are safe to repeat; nothing else is.
func (c *Client) invokeRead(ctx context.Context, method string, in, out any) error {
	call, err := c.caller()
	if err != nil {
		return err
	}
	err = call.Call(ctx, method, in, out)
	if err != nil && apperrors.GetCode(err).Retryable() {
		c.logf("ledger: retrying %s after transport failure: %v", method, err)
		err = call.Call(ctx, method, in, out)
	}
	return err
}

// invokeWrite performs a mutating call. Writes are never retried here;
// a failed write surfaces so the caller decides, avoiding double
// transfers.
func (c *Client) invokeWrite(ctx context.Context, method string, in, out any) error {
	call, err := c.caller()
	if err != nil {
		return err
	}
	return call.Call(ctx, method, in, out)
}

// Metadata returns the display identity of an asset. A missing
// metadata record fails with NOT_FOUND; an ill-formed one degrades to
// a placeholder instead of failing the read.
func (c *Client) Metadata(ctx context.Context, assetID uint64) (Asset, error) {
	if asset, ok := c.cache.asset(assetID); ok {
		return asset, nil
	}

	var resp metadataResponse
	err := c.invokeRead(ctx, methodTokenMetadata, tokenRequest{TokenID: wire.NatFromUint64(assetID)}, &resp)
	if err != nil {
		return Asset{}, err
	}

	record, ok := resp.Metadata.Get()
	if !ok {
		return Asset{}, apperrors.WithMetadata(apperrors.CodeNotFound,
			"asset has no metadata",
			map[string]string{"AssetID": strconv.FormatUint(assetID, 10)})
	}

	asset := Asset{ID: assetID}
	name, nameOK := record.Name.Get()
	image, imageOK := record.Image.Get()
	if nameOK && strings.TrimSpace(name) != "" {
		asset.DisplayName = name
	} else {
		asset.DisplayName = "Asset #" + strconv.FormatUint(assetID, 10)
	}
	if imageOK {
		asset.ImageURI = image
	}
	if !nameOK || !imageOK {
		c.logf("ledger: metadata for asset %d is incomplete, using placeholders", assetID)
		c.emit(ctx, telemetry.EventDecodeDegraded, telemetry.SeverityWarn, assetID, "incomplete metadata")
	}

	c.cache.putAsset(assetID, asset)
	return asset, nil
}

// OwnershipType classifies an asset as singular or fractional.
func (c *Client) OwnershipType(ctx context.Context, assetID uint64) (OwnershipType, error) {
	if ownership, ok := c.cache.ownership(assetID); ok {
		return ownership, nil
	}

	var resp typeResponse
	err := c.invokeRead(ctx, methodOwnershipType, tokenRequest{TokenID: wire.NatFromUint64(assetID)}, &resp)
	if err != nil {
		return OwnershipUnknown, err
	}
	value, ok := resp.Result.Ok()
	if !ok {
		msg, _ := resp.Result.Err()
		return OwnershipUnknown, apperrors.WithMetadata(apperrors.CodeNotFound, msg,
			map[string]string{"AssetID": strconv.FormatUint(assetID, 10)})
	}

	var ownership OwnershipType
	switch value {
	case "singular":
		ownership = OwnershipSingular
	case "fractional":
		ownership = OwnershipFractional
	default:
		return OwnershipUnknown, apperrors.WithMetadata(apperrors.CodeRemoteDecode,
			"unknown ownership type",
			map[string]string{"Value": value})
	}
	c.cache.putOwnership(assetID, ownership)
	return ownership, nil
}

// Shareholders returns the share distribution of a fractional asset.
// Singular assets fail with INVALID_STATE.
func (c *Client) Shareholders(ctx context.Context, assetID uint64) (ShareholderSet, error) {
	if set, ok := c.cache.shareholders(assetID); ok {
		return set, nil
	}

	var resp shareholdersResponse
	err := c.invokeRead(ctx, methodShareholders, tokenRequest{TokenID: wire.NatFromUint64(assetID)}, &resp)
	if err != nil {
		return ShareholderSet{}, err
	}
	payload, ok := resp.Result.Ok()
	if !ok {
		msg, _ := resp.Result.Err()
		return ShareholderSet{}, apperrors.WithMetadata(apperrors.CodeInvalidState, msg,
			map[string]string{"AssetID": strconv.FormatUint(assetID, 10)})
	}

	total, err := payload.TotalShares.Uint64()
	if err != nil {
		return ShareholderSet{}, err
	}
	set := ShareholderSet{TotalShares: total}
	for _, entry := range payload.Shareholders {
		shares, err := entry.Shares.Uint64()
		if err != nil {
			return ShareholderSet{}, err
		}
		set.Records = append(set.Records, ShareholderRecord{Owner: entry.Owner, Shares: shares})
	}

	c.cache.putShareholders(assetID, set)
	return set, nil
}

// TransferSingular moves a whole asset to another principal.
func (c *Client) TransferSingular(ctx context.Context, assetID uint64, to string) (uint64, error) {
	if strings.TrimSpace(to) == "" {
		return 0, apperrors.New(apperrors.CodeInvalidPrincipal, "recipient principal is required")
	}

	var resp txResponse
	req := transferRequest{
		TokenID: wire.NatFromUint64(assetID),
		To:      wire.Account{Owner: to},
	}
	err := c.invokeWrite(ctx, methodTransfer, req, &resp)
	if err != nil {
		c.emit(ctx, telemetry.EventTransferFailed, telemetry.SeverityError, assetID, err.Error())
		return 0, err
	}
	txID, ok := resp.Result.Ok()
	if !ok {
		msg, _ := resp.Result.Err()
		c.emit(ctx, telemetry.EventTransferFailed, telemetry.SeverityError, assetID, msg)
		return 0, apperrors.New(apperrors.CodeTransferRejected, msg)
	}

	id, err := txID.Uint64()
	if err != nil {
		return 0, err
	}
	c.cache.markDirty(assetID)
	c.emit(ctx, telemetry.EventTransferDone, telemetry.SeverityInfo, assetID, "")
	return id, nil
}

// TransferShares moves part of a fractional asset to another principal.
// When a fresh shareholder read is cached, an over-balance transfer
// fails fast with INSUFFICIENT_SHARES before touching the wire; the
// registry remains the authority either way.
func (c *Client) TransferShares(ctx context.Context, assetID uint64, to string, shares uint64) (uint64, error) {
	if strings.TrimSpace(to) == "" {
		return 0, apperrors.New(apperrors.CodeInvalidPrincipal, "recipient principal is required")
	}
	if shares == 0 {
		return 0, apperrors.New(apperrors.CodeTotalSharesInvalid, "share count must be positive")
	}

	call, err := c.caller()
	if err != nil {
		return 0, err
	}
	if set, ok := c.cache.shareholders(assetID); ok {
		if balance := set.SharesOf(call.Principal()); balance < shares {
			return 0, apperrors.WithMetadata(apperrors.CodeInsufficientShares,
				"transfer exceeds the visible share balance",
				map[string]string{
					"Balance":   strconv.FormatUint(balance, 10),
					"Requested": strconv.FormatUint(shares, 10),
				})
		}
	}

	var resp txResponse
	req := transferSharesRequest{
		TokenID: wire.NatFromUint64(assetID),
		To:      wire.Account{Owner: to},
		Shares:  wire.NatFromUint64(shares),
	}
	err = c.invokeWrite(ctx, methodTransferShares, req, &resp)
	if err != nil {
		c.emit(ctx, telemetry.EventTransferFailed, telemetry.SeverityError, assetID, err.Error())
		return 0, err
	}
	txID, ok := resp.Result.Ok()
	if !ok {
		msg, _ := resp.Result.Err()
		c.emit(ctx, telemetry.EventTransferFailed, telemetry.SeverityError, assetID, msg)
		return 0, apperrors.New(apperrors.CodeTransferRejected, msg)
	}

	id, err := txID.Uint64()
	if err != nil {
		return 0, err
	}
	c.cache.markDirty(assetID)
	c.emit(ctx, telemetry.EventTransferDone, telemetry.SeverityInfo, assetID, "")
	return id, nil
}

// CanFractionalize probes whether an asset is eligible for conversion.
func (c *Client) CanFractionalize(ctx context.Context, assetID uint64) (bool, error) {
	var resp boolResponse
	err := c.invokeRead(ctx, methodCanFractionalize, tokenRequest{TokenID: wire.NatFromUint64(assetID)}, &resp)
	if err != nil {
		return false, err
	}
	eligible, ok := resp.Result.Ok()
	if !ok {
		msg, _ := resp.Result.Err()
		return false, apperrors.New(apperrors.CodeRemoteRejected, msg)
	}
	return eligible, nil
}

// Fractionalize converts a singular asset into fractional form using
// the given share plan. The plan is validated locally first: an
// unbalanced plan must never reach the registry.
func (c *Client) Fractionalize(ctx context.Context, assetID uint64, plan *planner.Plan) error {
	if err := plan.Validate(); err != nil {
		return apperrors.Wrap(apperrors.CodeInvariantViolation,
			"share plan does not account for every share", err)
	}

	ownership, err := c.OwnershipType(ctx, assetID)
	if err != nil {
		return err
	}
	if ownership == OwnershipFractional {
		return apperrors.New(apperrors.CodeAlreadyFractional, "asset is already fractional")
	}
	eligible, err := c.CanFractionalize(ctx, assetID)
	if err != nil {
		return err
	}
	if !eligible {
		return apperrors.New(apperrors.CodeNotEligible, "asset is not eligible for fractionalization")
	}

	req := fractionalizeRequest{
		TokenID:     wire.NatFromUint64(assetID),
		TotalShares: wire.NatFromUint64(plan.Total()),
	}
	for _, entry := range plan.Entries() {
		req.Distribution = append(req.Distribution, shareholderEntry{
			Owner:  wire.Account{Owner: entry.Principal},
			Shares: wire.NatFromUint64(entry.Shares),
		})
	}

	var resp boolResponse
	if err := c.invokeWrite(ctx, methodFractionalize, req, &resp); err != nil {
		return err
	}
	if _, ok := resp.Result.Ok(); !ok {
		msg, _ := resp.Result.Err()
		return apperrors.New(apperrors.CodeNotEligible, msg)
	}

	c.cache.markDirty(assetID)
	c.emit(ctx, telemetry.EventFractionalized, telemetry.SeverityInfo, assetID, "")
	return nil
}

// ClaimSingular claims a whole custodial asset for the caller.
func (c *Client) ClaimSingular(ctx context.Context, assetID uint64) (uint64, error) {
	return c.claim(ctx, methodClaim, assetID)
}

// ClaimShares claims the caller's custodial share balance.
func (c *Client) ClaimShares(ctx context.Context, assetID uint64) (uint64, error) {
	return c.claim(ctx, methodClaimShares, assetID)
}

func (c *Client) claim(ctx context.Context, method string, assetID uint64) (uint64, error) {
	var resp txResponse
	err := c.invokeWrite(ctx, method, tokenRequest{TokenID: wire.NatFromUint64(assetID)}, &resp)
	if err != nil {
		c.emit(ctx, telemetry.EventClaimFailed, telemetry.SeverityError, assetID, err.Error())
		return 0, err
	}
	txID, ok := resp.Result.Ok()
	if !ok {
		msg, _ := resp.Result.Err()
		c.emit(ctx, telemetry.EventClaimFailed, telemetry.SeverityWarn, assetID, msg)
		return 0, apperrors.New(apperrors.CodeNothingToClaim, msg)
	}

	id, err := txID.Uint64()
	if err != nil {
		return 0, err
	}
	c.cache.markDirty(assetID)
	c.emit(ctx, telemetry.EventClaimSucceeded, telemetry.SeverityInfo, assetID, "")
	return id, nil
}

// OwnedAssets lists the asset ids held by a principal.
func (c *Client) OwnedAssets(ctx context.Context, owner string, page Page) ([]uint64, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidPrincipal, "owner principal is required")
	}

	req := tokensOfRequest{Owner: wire.Account{Owner: owner}}
	if page.Start != nil {
		req.Start = wire.Some(wire.NatFromUint64(*page.Start))
	}
	if page.Length != nil {
		req.Length = wire.Some(wire.NatFromUint64(*page.Length))
	}

	var resp tokensOfResponse
	if err := c.invokeRead(ctx, methodTokensOf, req, &resp); err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(resp.TokenIDs))
	for _, raw := range resp.TokenIDs {
		id, err := raw.Uint64()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ClaimableAssets lists the custodial assets that still carry a
// claimable balance: every singular custodial asset plus each
// fractional asset where the custodial principal still holds shares.
func (c *Client) ClaimableAssets(ctx context.Context) ([]uint64, error) {
	held, err := c.OwnedAssets(ctx, c.custodial, Page{})
	if err != nil {
		return nil, err
	}

	var claimable []uint64
	for _, id := range held {
		ownership, err := c.OwnershipType(ctx, id)
		if err != nil {
			return nil, err
		}
		if ownership == OwnershipSingular {
			claimable = append(claimable, id)
			continue
		}
		set, err := c.Shareholders(ctx, id)
		if err != nil {
			return nil, err
		}
		if set.SharesOf(c.custodial) > 0 {
			claimable = append(claimable, id)
		}
	}
	return claimable, nil
}

// Mint creates a new singular asset held by the given principal.
func (c *Client) Mint(ctx context.Context, name, image, to string) (uint64, error) {
	if strings.TrimSpace(to) == "" {
		return 0, apperrors.New(apperrors.CodeInvalidPrincipal, "recipient principal is required")
	}

	var resp txResponse
	req := mintRequest{Name: name, Image: image, To: wire.Account{Owner: to}}
	if err := c.invokeWrite(ctx, methodMint, req, &resp); err != nil {
		return 0, err
	}
	id, ok := resp.Result.Ok()
	if !ok {
		msg, _ := resp.Result.Err()
		return 0, apperrors.New(apperrors.CodeRemoteRejected, msg)
	}
	return id.Uint64()
}

func (c *Client) emit(ctx context.Context, name string, severity telemetry.Severity, assetID uint64, detail string) {
	var principal string
	if call := c.source.Current(); call != nil {
		principal = call.Principal()
	}
	err := c.telemetry.Emit(ctx, storage.TelemetryEvent{
		Name:      name,
		Severity:  string(severity),
		Principal: principal,
		AssetID:   strconv.FormatUint(assetID, 10),
		Detail:    detail,
	})
	if err != nil {
		c.logf("ledger: emit %s: %v", name, err)
	}
}
