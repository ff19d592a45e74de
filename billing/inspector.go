/*
inspector.go - Relationship inspection before destructive operations

PURPOSE:
  Reports, for a payer, the count and monetary total of dependent bills,
  payments, and adjustments. The result is shown to an operator before
  they confirm a deletion.

FRESHNESS:
  The summary is computed from the store on every call and never cached:
  state may change between the operator seeing the summary and confirming
  the delete. The deletion executor re-inspects inside its own transaction
  and compares against the summary the operator saw (see executor.go).

COUNTING RULES:
  - bills:    rows referencing the payer
  - payments: joined through those bills, Successful status only
  - total:    sum of Successful payment amounts
  - adjustments: rows targeting the payer
*/
package billing

import (
	"context"

	"github.com/munirev/revenue-engine/ledger"
)

// InspectRelationships returns a fresh dependent-record summary for the
// payer, or ErrNotFound if it does not exist.
func (s *Service) InspectRelationships(ctx context.Context, ref ledger.PayerRef) (ledger.RelationshipSummary, error) {
	p, err := s.Store.GetPayer(ctx, ref)
	if err != nil {
		return ledger.RelationshipSummary{}, err
	}
	if p == nil {
		return ledger.RelationshipSummary{}, ledger.ErrNotFound
	}

	return inspect(ctx, s.Store, ref)
}

// inspect gathers the summary through tx so the executor can reuse it
// inside the deletion transaction.
func inspect(ctx context.Context, tx Tx, ref ledger.PayerRef) (ledger.RelationshipSummary, error) {
	var sum ledger.RelationshipSummary

	bills, err := tx.CountBills(ctx, ref)
	if err != nil {
		return sum, err
	}
	payments, total, err := tx.SuccessfulPayments(ctx, ref)
	if err != nil {
		return sum, err
	}
	adjustments, err := tx.CountAdjustments(ctx, ref)
	if err != nil {
		return sum, err
	}

	sum.BillCount = bills
	sum.PaymentCount = payments
	sum.PaymentTotal = total
	sum.AdjustmentCount = adjustments
	return sum, nil
}
