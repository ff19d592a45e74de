package ledger_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/munirev/revenue-engine/ledger"
)

// =============================================================================
// AMOUNT PAYABLE CALCULATION
// =============================================================================

func TestComputeAmountPayable_StandardCase(t *testing.T) {
	// GIVEN: old bill 50, arrears 20, current bill 100, previous payments 30
	// WHEN: Computing the amount payable
	// THEN: Result is 50 + 20 + 100 - 30 = 140.00

	got, err := ledger.ComputeAmountPayable(
		ledger.MustMoney("50"),
		ledger.MustMoney("20"),
		ledger.MustMoney("100"),
		ledger.MustMoney("30"),
	)
	require.NoError(t, err)
	assert.Equal(t, "140.00", got.StringFixed(2))
}

func TestComputeAmountPayable_AllZero(t *testing.T) {
	got, err := ledger.ComputeAmountPayable(
		decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestComputeAmountPayable_Overpayment_YieldsCredit(t *testing.T) {
	// GIVEN: Previous payments exceed everything owed
	// WHEN: Computing the amount payable
	// THEN: The result is negative (a credit), not an error

	got, err := ledger.ComputeAmountPayable(
		ledger.MustMoney("10"),
		decimal.Zero,
		ledger.MustMoney("5"),
		ledger.MustMoney("40"),
	)
	require.NoError(t, err)
	assert.Equal(t, "-25.00", got.StringFixed(2))
}

func TestComputeAmountPayable_NegativeInput_Rejected(t *testing.T) {
	// GIVEN: A negative arrears figure
	// WHEN: Computing the amount payable
	// THEN: The calculation is rejected with the offending field named

	_, err := ledger.ComputeAmountPayable(
		ledger.MustMoney("50"),
		ledger.MustMoney("-1"),
		ledger.MustMoney("100"),
		ledger.MustMoney("30"),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	var amtErr *ledger.InvalidAmountError
	require.ErrorAs(t, err, &amtErr)
	assert.Equal(t, "arrears", amtErr.Field)
}

func TestComputeAmountPayable_RoundsToTwoDecimals(t *testing.T) {
	got, err := ledger.ComputeAmountPayable(
		ledger.MustMoney("0.005"),
		decimal.Zero,
		ledger.MustMoney("10.001"),
		decimal.Zero,
	)
	require.NoError(t, err)
	assert.Equal(t, "10.01", got.StringFixed(2))
}

// =============================================================================
// LEDGER FIELD HELPERS
// =============================================================================

func TestLedgerFields_AmountPayable_MatchesComputation(t *testing.T) {
	f := ledger.LedgerFields{
		OldBill:          ledger.MustMoney("50"),
		PreviousPayments: ledger.MustMoney("30"),
		Arrears:          ledger.MustMoney("20"),
		CurrentBill:      ledger.MustMoney("100"),
	}
	got, err := f.AmountPayable()
	require.NoError(t, err)
	assert.Equal(t, "140.00", got.StringFixed(2))
}

func TestLedgerFields_Validate_ReportsEveryNegativeField(t *testing.T) {
	// GIVEN: Two negative ledger figures
	// WHEN: Validating
	// THEN: Both are reported, not just the first

	f := ledger.LedgerFields{
		OldBill:     ledger.MustMoney("-5"),
		CurrentBill: ledger.MustMoney("-1"),
	}
	ferrs := f.Validate()
	require.Len(t, ferrs, 2)

	fields := []string{ferrs[0].Field, ferrs[1].Field}
	assert.Contains(t, fields, "old_bill")
	assert.Contains(t, fields, "current_bill")
}

func TestRound2_BankersVsHalfUp(t *testing.T) {
	// Half-up rounding: 2.345 -> 2.35
	assert.Equal(t, "2.35", ledger.Round2(ledger.MustMoney("2.345")).StringFixed(2))
	assert.Equal(t, "2.34", ledger.Round2(ledger.MustMoney("2.344")).StringFixed(2))
}

func TestMustMoney_PanicsOnGarbage(t *testing.T) {
	assert.Panics(t, func() { ledger.MustMoney("not-a-number") })
}

// =============================================================================
// ACCOUNT NUMBERS
// =============================================================================

func TestFormatAccountNumber(t *testing.T) {
	assert.Equal(t, "BUS-000001", ledger.FormatAccountNumber(ledger.KindBusiness, 1))
	assert.Equal(t, "PRP-000042", ledger.FormatAccountNumber(ledger.KindProperty, 42))
	assert.Equal(t, "BUS-1000000", ledger.FormatAccountNumber(ledger.KindBusiness, 1000000))
}

// =============================================================================
// SUMMARIES
// =============================================================================

func TestRelationshipSummary_Describe(t *testing.T) {
	s := ledger.RelationshipSummary{
		BillCount:       3,
		PaymentCount:    2,
		PaymentTotal:    ledger.MustMoney("75.50"),
		AdjustmentCount: 1,
	}
	assert.Equal(t, "3 bill record(s), 2 payment record(s), 1 bill adjustment(s)", s.Describe())
	assert.True(t, s.HasRelationships())
	assert.False(t, ledger.RelationshipSummary{}.HasRelationships())
}

func TestRelationshipSummary_Equal_IgnoresPaymentTotalPrecision(t *testing.T) {
	a := ledger.RelationshipSummary{BillCount: 1, PaymentTotal: ledger.MustMoney("10.5")}
	b := ledger.RelationshipSummary{BillCount: 1, PaymentTotal: ledger.MustMoney("10.50")}
	assert.True(t, a.Equal(b))

	c := ledger.RelationshipSummary{BillCount: 2, PaymentTotal: ledger.MustMoney("10.50")}
	assert.False(t, a.Equal(c))
}

func TestConflictError_UnwrapsToSentinel(t *testing.T) {
	err := &ledger.ConflictError{
		Expected: ledger.RelationshipSummary{BillCount: 1},
		Actual:   ledger.RelationshipSummary{BillCount: 2},
	}
	assert.True(t, errors.Is(err, ledger.ErrConflict))
}
