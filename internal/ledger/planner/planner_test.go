package planner

import (
	"testing"

	apperrors "github.com/lostclubtoys/vault/internal/platform/errors"
)

const custodial = "vault-custodial"

func newTestPlan(t *testing.T, total uint64) *Plan {
	t.Helper()
	plan, err := NewPlan(custodial, total)
	if err != nil {
		t.Fatalf("new plan: %v", err)
	}
	return plan
}

func checkValid(t *testing.T, plan *Plan) {
	t.Helper()
	if err := plan.Validate(); err != nil {
		t.Fatalf("plan should account for every share: %v", err)
	}
}

func TestNewPlanGivesCustodialEveryShare(t *testing.T) {
	plan := newTestPlan(t, 1000)

	if got := plan.Custodial(); got.Principal != custodial || got.Shares != 1000 {
		t.Fatalf("unexpected custodial entry %+v", got)
	}
	if plan.Total() != 1000 {
		t.Fatalf("unexpected total %d", plan.Total())
	}
	checkValid(t, plan)
}

func TestNewPlanRejectsZeroTotal(t *testing.T) {
	_, err := NewPlan(custodial, 0)
	if !apperrors.IsCode(err, apperrors.CodeTotalSharesInvalid) {
		t.Fatalf("expected TOTAL_SHARES_INVALID, got %v", err)
	}
}

func TestAddOwnerStartsAtZero(t *testing.T) {
	plan := newTestPlan(t, 1000)
	if err := plan.AddOwner("alice"); err != nil {
		t.Fatalf("add owner: %v", err)
	}

	shares, ok := plan.Shares("alice")
	if !ok || shares != 0 {
		t.Fatalf("expected alice at zero shares, got %d (ok=%v)", shares, ok)
	}
	checkValid(t, plan)
}

func TestAddOwnerRejectsDuplicates(t *testing.T) {
	plan := newTestPlan(t, 1000)
	if err := plan.AddOwner("alice"); err != nil {
		t.Fatalf("add owner: %v", err)
	}
	if err := plan.AddOwner("alice"); !apperrors.IsCode(err, apperrors.CodeInvalidPrincipal) {
		t.Fatalf("expected INVALID_PRINCIPAL, got %v", err)
	}
	if err := plan.AddOwner(custodial); !apperrors.IsCode(err, apperrors.CodeInvalidPrincipal) {
		t.Fatalf("expected INVALID_PRINCIPAL for custodial, got %v", err)
	}
}

func TestApplyAllocationMovesSharesAgainstCustodial(t *testing.T) {
	plan := newTestPlan(t, 1000)
	if err := plan.AddOwner("alice"); err != nil {
		t.Fatalf("add owner: %v", err)
	}

	if err := plan.ApplyAllocation("alice", 300); err != nil {
		t.Fatalf("apply allocation: %v", err)
	}
	if shares, _ := plan.Shares("alice"); shares != 300 {
		t.Fatalf("expected alice at 300, got %d", shares)
	}
	if plan.Custodial().Shares != 700 {
		t.Fatalf("expected custodial at 700, got %d", plan.Custodial().Shares)
	}

	// Shrinking returns shares to the custodial balance.
	if err := plan.ApplyAllocation("alice", 100); err != nil {
		t.Fatalf("apply allocation: %v", err)
	}
	if plan.Custodial().Shares != 900 {
		t.Fatalf("expected custodial at 900, got %d", plan.Custodial().Shares)
	}
	checkValid(t, plan)
}

func TestApplyAllocationRejectsOverdraw(t *testing.T) {
	plan := newTestPlan(t, 1000)
	if err := plan.AddOwner("alice"); err != nil {
		t.Fatalf("add owner: %v", err)
	}
	if err := plan.ApplyAllocation("alice", 300); err != nil {
		t.Fatalf("apply allocation: %v", err)
	}

	err := plan.ApplyAllocation("alice", 1001)
	if !apperrors.IsCode(err, apperrors.CodeInsufficientCustodialShares) {
		t.Fatalf("expected INSUFFICIENT_CUSTODIAL_SHARES, got %v", err)
	}

	// A rejected allocation leaves the plan untouched.
	if shares, _ := plan.Shares("alice"); shares != 300 {
		t.Fatalf("expected alice unchanged at 300, got %d", shares)
	}
	if plan.Custodial().Shares != 700 {
		t.Fatalf("expected custodial unchanged at 700, got %d", plan.Custodial().Shares)
	}
	checkValid(t, plan)
}

func TestApplyAllocationRejectsCustodial(t *testing.T) {
	plan := newTestPlan(t, 1000)
	err := plan.ApplyAllocation(custodial, 500)
	if !apperrors.IsCode(err, apperrors.CodeInvalidPrincipal) {
		t.Fatalf("expected INVALID_PRINCIPAL, got %v", err)
	}
}

func TestRemoveOwnerReturnsSharesToCustodial(t *testing.T) {
	plan := newTestPlan(t, 1000)
	if err := plan.AddOwner("alice"); err != nil {
		t.Fatalf("add owner: %v", err)
	}
	if err := plan.ApplyAllocation("alice", 250); err != nil {
		t.Fatalf("apply allocation: %v", err)
	}

	if err := plan.RemoveOwner("alice"); err != nil {
		t.Fatalf("remove owner: %v", err)
	}
	if _, ok := plan.Shares("alice"); ok {
		t.Fatal("expected alice to be removed")
	}
	if plan.Custodial().Shares != 1000 {
		t.Fatalf("expected custodial at 1000, got %d", plan.Custodial().Shares)
	}
	checkValid(t, plan)
}

func TestRemoveOwnerRejectsCustodial(t *testing.T) {
	plan := newTestPlan(t, 1000)
	if err := plan.RemoveOwner(custodial); !apperrors.IsCode(err, apperrors.CodeInvalidPrincipal) {
		t.Fatalf("expected INVALID_PRINCIPAL, got %v", err)
	}
}

func TestRescaleTotalFloorsOwnersAndCustodialAbsorbsRemainder(t *testing.T) {
	plan := newTestPlan(t, 1000)
	if err := plan.AddOwner("alice"); err != nil {
		t.Fatalf("add owner: %v", err)
	}
	if err := plan.ApplyAllocation("alice", 300); err != nil {
		t.Fatalf("apply allocation: %v", err)
	}

	// floor(300 * 333 / 1000) = 99, custodial takes 333 - 99 = 234.
	if err := plan.RescaleTotal(333); err != nil {
		t.Fatalf("rescale: %v", err)
	}
	if shares, _ := plan.Shares("alice"); shares != 99 {
		t.Fatalf("expected alice at 99, got %d", shares)
	}
	if plan.Custodial().Shares != 234 {
		t.Fatalf("expected custodial at 234, got %d", plan.Custodial().Shares)
	}
	if plan.Total() != 333 {
		t.Fatalf("expected total 333, got %d", plan.Total())
	}
	checkValid(t, plan)
}

func TestRescaleTotalSurvivesLargeValues(t *testing.T) {
	plan := newTestPlan(t, 1<<40)
	if err := plan.AddOwner("alice"); err != nil {
		t.Fatalf("add owner: %v", err)
	}
	if err := plan.ApplyAllocation("alice", 1<<39); err != nil {
		t.Fatalf("apply allocation: %v", err)
	}

	// shares * newTotal overflows 64 bits; the scale must still be exact.
	if err := plan.RescaleTotal(1 << 41); err != nil {
		t.Fatalf("rescale: %v", err)
	}
	if shares, _ := plan.Shares("alice"); shares != 1<<40 {
		t.Fatalf("expected alice at %d, got %d", uint64(1)<<40, shares)
	}
	checkValid(t, plan)
}

func TestRescaleTotalRejectsZero(t *testing.T) {
	plan := newTestPlan(t, 1000)
	if err := plan.RescaleTotal(0); !apperrors.IsCode(err, apperrors.CodeTotalSharesInvalid) {
		t.Fatalf("expected TOTAL_SHARES_INVALID, got %v", err)
	}
	if plan.Total() != 1000 {
		t.Fatalf("expected total unchanged, got %d", plan.Total())
	}
}

func TestValidateFlagsMismatch(t *testing.T) {
	plan := newTestPlan(t, 1000)
	// Corrupt the plan directly to simulate a missed update.
	plan.entries[0].Shares = 999

	err := plan.Validate()
	if !apperrors.IsCode(err, apperrors.CodeDistributionMismatch) {
		t.Fatalf("expected DISTRIBUTION_MISMATCH, got %v", err)
	}
}
