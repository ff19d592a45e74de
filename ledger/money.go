/*
money.go - Ledger calculator

PURPOSE:
  The one formula the whole system hangs off:

    amount_payable = old_bill + arrears + current_bill - previous_payments

  Pure functions over fixed-point (2 decimal place) monetary values.
  Inputs must be non-negative; the result MAY be negative - a credit
  balance - and is stored as computed rather than clamped, so overpayments
  stay visible. Defaulter reporting uses Payer.IsDefaulter instead.
*/
package ledger

import "github.com/shopspring/decimal"

// Zero is the canonical zero monetary amount.
var Zero = decimal.Zero

// Round2 normalizes a monetary value to 2 decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MustMoney parses a monetary literal. Panics on malformed input; use only
// for constants and tests.
func MustMoney(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// ComputeAmountPayable derives the payable balance from the four stored
// ledger fields. Negative inputs are rejected before any arithmetic runs.
func ComputeAmountPayable(oldBill, arrears, currentBill, previousPayments decimal.Decimal) (decimal.Decimal, error) {
	for _, in := range []struct {
		field string
		value decimal.Decimal
	}{
		{"old_bill", oldBill},
		{"arrears", arrears},
		{"current_bill", currentBill},
		{"previous_payments", previousPayments},
	} {
		if in.value.IsNegative() {
			return decimal.Zero, &InvalidAmountError{Field: in.field, Value: in.value.String()}
		}
	}

	return Round2(oldBill.Add(arrears).Add(currentBill).Sub(previousPayments)), nil
}

// AmountPayable applies ComputeAmountPayable to a LedgerFields bundle.
func (f LedgerFields) AmountPayable() (decimal.Decimal, error) {
	return ComputeAmountPayable(f.OldBill, f.Arrears, f.CurrentBill, f.PreviousPayments)
}

// Normalize rounds every field to 2 decimal places.
func (f LedgerFields) Normalize() LedgerFields {
	return LedgerFields{
		OldBill:          Round2(f.OldBill),
		PreviousPayments: Round2(f.PreviousPayments),
		Arrears:          Round2(f.Arrears),
		CurrentBill:      Round2(f.CurrentBill),
	}
}

// Validate accumulates an InvalidAmount failure for every negative field.
func (f LedgerFields) Validate() []FieldError {
	var errs []FieldError
	for _, in := range []struct {
		field string
		value decimal.Decimal
	}{
		{"old_bill", f.OldBill},
		{"previous_payments", f.PreviousPayments},
		{"arrears", f.Arrears},
		{"current_bill", f.CurrentBill},
	} {
		if in.value.IsNegative() {
			errs = append(errs, FieldError{Field: in.field, Message: "must not be negative"})
		}
	}
	return errs
}
