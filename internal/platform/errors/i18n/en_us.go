package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
const (
	CodeUnknown                     = "UNKNOWN"
	CodeNotAuthenticated            = "NOT_AUTHENTICATED"
	CodeSessionExpired              = "SESSION_EXPIRED"
	CodePopupBlocked                = "POPUP_BLOCKED"
	CodeLoginCancelled              = "LOGIN_CANCELLED"
	CodeLoginFailed                 = "LOGIN_FAILED"
	CodeTransportFailure            = "TRANSPORT_FAILURE"
	CodeRemoteRejected              = "REMOTE_REJECTED"
	CodeRemoteDecode                = "REMOTE_DECODE"
	CodeNotFound                    = "NOT_FOUND"
	CodeInvalidState                = "INVALID_STATE"
	CodeInvalidPrincipal            = "INVALID_PRINCIPAL"
	CodeTransferRejected            = "TRANSFER_REJECTED"
	CodeAlreadyFractional           = "ALREADY_FRACTIONAL"
	CodeNotEligible                 = "NOT_ELIGIBLE"
	CodeNothingToClaim              = "NOTHING_TO_CLAIM"
	CodeClaimInFlight               = "CLAIM_IN_FLIGHT"
	CodeInsufficientShares          = "INSUFFICIENT_SHARES"
	CodeInsufficientCustodialShares = "INSUFFICIENT_CUSTODIAL_SHARES"
	CodeDistributionMismatch        = "DISTRIBUTION_MISMATCH"
	CodeTotalSharesInvalid          = "TOTAL_SHARES_INVALID"
	CodeInvariantViolation          = "INVARIANT_VIOLATION"
	CodeStorageFailure              = "STORAGE_FAILURE"
)

const fallbackCode = CodeUnknown

var enUSCatalog = &Catalog{
	locale: "en-US",
	messages: map[string]string{
		CodeUnknown: "An unexpected error occurred",

		// Session / identity
		CodeNotAuthenticated: "You are not signed in yet. Please wait for the session to finish loading or sign in again",
		CodeSessionExpired:   "Your session has expired. Please sign in again",
		CodePopupBlocked:     "The sign-in window could not be opened. Allow pop-ups for this site (or open {{.AuthorizeURL}} manually) and try again",
		CodeLoginCancelled:   "Sign-in was cancelled",
		CodeLoginFailed:      "Sign-in failed. Please try again",

		// Transport / boundary
		CodeTransportFailure: "Could not reach the vault service. Check your connection and try again",
		CodeRemoteRejected:   "The vault service rejected the request: {{.Reason}}",
		CodeRemoteDecode:     "The vault service returned an unreadable response",

		// Registry
		CodeNotFound:          "Asset #{{.AssetID}} was not found",
		CodeInvalidState:      "Asset #{{.AssetID}} does not support this operation",
		CodeInvalidPrincipal:  "{{.Principal}} is not a valid principal id",
		CodeTransferRejected:  "The transfer was rejected",
		CodeAlreadyFractional: "Asset #{{.AssetID}} is already fractional",
		CodeNotEligible:       "Asset #{{.AssetID}} must be held by the custodian before it can be fractionalized",
		CodeNothingToClaim:    "There is nothing left to claim for asset #{{.AssetID}}",
		CodeClaimInFlight:     "A claim for asset #{{.AssetID}} is already in progress",

		// Share accounting
		CodeInsufficientShares:          "You hold {{.Held}} shares but tried to transfer {{.Requested}}",
		CodeInsufficientCustodialShares: "Not enough shares available from the custodial allocation",
		CodeDistributionMismatch:        "Share distribution doesn't match total shares",
		CodeTotalSharesInvalid:          "Total shares must be at least 1",
		CodeInvariantViolation:          "The share plan is inconsistent and was not submitted",

		// Storage
		CodeStorageFailure: "Local session storage failed",
	},
}
