package errors

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodeNothingToClaim, "custodial balance is zero")
	target := New(CodeNothingToClaim, "different message")

	if !errors.Is(err, target) {
		t.Fatal("expected errors with the same code to match")
	}
	if errors.Is(err, New(CodeNotFound, "custodial balance is zero")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(CodeTransportFailure, "registry call failed", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable via errors.Is")
	}
	if GetCode(err) != CodeTransportFailure {
		t.Fatalf("expected TRANSPORT_FAILURE, got %q", GetCode(err))
	}
}

func TestGetCodeUnknownForPlainErrors(t *testing.T) {
	if got := GetCode(fmt.Errorf("boom")); got != CodeUnknown {
		t.Fatalf("expected UNKNOWN, got %q", got)
	}
	if got := GetCode(nil); got != CodeUnknown {
		t.Fatalf("expected UNKNOWN for nil, got %q", got)
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	cases := []struct {
		code Code
		want codes.Code
	}{
		{CodeNotAuthenticated, codes.Unauthenticated},
		{CodeSessionExpired, codes.Unauthenticated},
		{CodeNothingToClaim, codes.FailedPrecondition},
		{CodeInsufficientCustodialShares, codes.FailedPrecondition},
		{CodeDistributionMismatch, codes.InvalidArgument},
		{CodeTransportFailure, codes.Unavailable},
		{CodeTransferRejected, codes.Aborted},
		{CodeNotFound, codes.NotFound},
		{CodeLoginCancelled, codes.Canceled},
		{CodeUnknown, codes.Internal},
	}
	for _, tc := range cases {
		if got := tc.code.GRPCCode(); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.code, tc.want, got)
		}
	}
}

func TestRetryable(t *testing.T) {
	if !CodeTransportFailure.Retryable() {
		t.Fatal("expected transport failures to be retryable")
	}
	if CodeRemoteRejected.Retryable() {
		t.Fatal("remote rejections must never be retried automatically")
	}
	if CodeTransferRejected.Retryable() {
		t.Fatal("write rejections must never be retried automatically")
	}
}

func TestStatusRoundTrip(t *testing.T) {
	original := WithMetadata(CodeNothingToClaim, "custodial balance is zero", map[string]string{
		"AssetID": "42",
	})

	grpcErr := HandleError(original, "")
	st, ok := status.FromError(grpcErr)
	if !ok {
		t.Fatal("expected a gRPC status error")
	}
	if st.Code() != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", st.Code())
	}

	recovered := FromGRPCStatus(grpcErr)
	if recovered.Code != CodeNothingToClaim {
		t.Fatalf("expected NOTHING_TO_CLAIM, got %q", recovered.Code)
	}
	if recovered.Metadata["AssetID"] != "42" {
		t.Fatalf("expected metadata to survive the round trip, got %v", recovered.Metadata)
	}
}

func TestFromGRPCStatusForeignError(t *testing.T) {
	foreign := status.Error(codes.PermissionDenied, "caller is not the token owner")
	recovered := FromGRPCStatus(foreign)
	if recovered.Code != CodeRemoteRejected {
		t.Fatalf("expected REMOTE_REJECTED for foreign status, got %q", recovered.Code)
	}
}

func TestUserMessageTemplating(t *testing.T) {
	err := WithMetadata(CodeInsufficientShares, "balance too low", map[string]string{
		"Held":      "200",
		"Requested": "300",
	})
	msg := UserMessage(err, "en-US")
	if msg != "You hold 200 shares but tried to transfer 300" {
		t.Fatalf("unexpected message %q", msg)
	}
}
