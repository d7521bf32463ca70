package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session / identity errors
	CodeNotAuthenticated Code = "NOT_AUTHENTICATED"
	CodeSessionExpired   Code = "SESSION_EXPIRED"
	CodePopupBlocked     Code = "POPUP_BLOCKED"
	CodeLoginCancelled   Code = "LOGIN_CANCELLED"
	CodeLoginFailed      Code = "LOGIN_FAILED"

	// Transport / boundary errors
	CodeTransportFailure Code = "TRANSPORT_FAILURE"
	CodeRemoteRejected   Code = "REMOTE_REJECTED"
	CodeRemoteDecode     Code = "REMOTE_DECODE"

	// Registry errors
	CodeNotFound          Code = "NOT_FOUND"
	CodeInvalidState      Code = "INVALID_STATE"
	CodeInvalidPrincipal  Code = "INVALID_PRINCIPAL"
	CodeTransferRejected  Code = "TRANSFER_REJECTED"
	CodeAlreadyFractional Code = "ALREADY_FRACTIONAL"
	CodeNotEligible       Code = "NOT_ELIGIBLE"
	CodeNothingToClaim    Code = "NOTHING_TO_CLAIM"
	CodeClaimInFlight     Code = "CLAIM_IN_FLIGHT"

	// Share accounting errors
	CodeInsufficientShares          Code = "INSUFFICIENT_SHARES"
	CodeInsufficientCustodialShares Code = "INSUFFICIENT_CUSTODIAL_SHARES"
	CodeDistributionMismatch        Code = "DISTRIBUTION_MISMATCH"
	CodeTotalSharesInvalid          Code = "TOTAL_SHARES_INVALID"
	CodeInvariantViolation          Code = "INVARIANT_VIOLATION"

	// Storage errors
	CodeStorageFailure Code = "STORAGE_FAILURE"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeInvalidPrincipal,
		CodeTotalSharesInvalid,
		CodeDistributionMismatch:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow the operation
	case CodeInvalidState,
		CodeAlreadyFractional,
		CodeNotEligible,
		CodeNothingToClaim,
		CodeClaimInFlight,
		CodeInsufficientShares,
		CodeInsufficientCustodialShares,
		CodeInvariantViolation:
		return codes.FailedPrecondition

	// Unauthenticated - no usable identity session
	case CodeNotAuthenticated,
		CodeSessionExpired:
		return codes.Unauthenticated

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return codes.NotFound

	// Unavailable - transport-level failures, retryable for reads
	case CodeTransportFailure,
		CodePopupBlocked:
		return codes.Unavailable

	// Canceled - the user abandoned the flow
	case CodeLoginCancelled:
		return codes.Canceled

	// Aborted - the remote service explicitly rejected the operation
	case CodeRemoteRejected,
		CodeTransferRejected:
		return codes.Aborted

	default:
		return codes.Internal
	}
}

// Retryable reports whether an operation failing with this code may be
// retried without risking a duplicate side effect. Only transport
// failures qualify; remote rejections are never retried automatically.
func (c Code) Retryable() bool {
	return c == CodeTransportFailure
}
