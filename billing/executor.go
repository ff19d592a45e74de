/*
executor.go - Cascading transactional deletion

PURPOSE:
  Hard-deletes a payer and every dependent record in one transaction.
  Partial deletion is never observable: any step failure rolls the whole
  transaction back.

DELETION ORDER:
  payments -> adjustments -> bills -> payer

  The order satisfies referential constraints and is preserved even when
  the underlying store does not enforce foreign keys.

STALE-SUMMARY PROTECTION:
  Inspection and deletion are separate round trips; a payment can land in
  between. The executor therefore re-inspects inside the deletion
  transaction, and when the caller passes the summary it showed the
  operator, a mismatch aborts with ConflictError before anything is
  deleted. Callers that pass nil get the legacy best-effort behavior.

AUDIT:
  Exactly one HARD_DELETE entry carrying the full pre-delete payer
  snapshot and the per-step removal counts. Audit failure does not abort
  the deletion (see audit.go).
*/
package billing

import (
	"context"

	"github.com/munirev/revenue-engine/ledger"
)

// DeletePayer removes the payer and all dependent records. expected, when
// non-nil, is the relationship summary the operator confirmed; if the
// state no longer matches, nothing is deleted and a ConflictError is
// returned.
func (s *Service) DeletePayer(ctx context.Context, ref ledger.PayerRef, actor ledger.Actor, origin ledger.Origin, expected *ledger.RelationshipSummary) (ledger.DeletionSummary, error) {
	var result ledger.DeletionSummary

	err := s.Store.WithTx(ctx, func(tx Tx) error {
		p, err := tx.GetPayer(ctx, ref)
		if err != nil {
			return err
		}
		if p == nil {
			return ledger.ErrNotFound
		}

		current, err := inspect(ctx, tx, ref)
		if err != nil {
			return err
		}
		if expected != nil && !expected.Equal(current) {
			return &ledger.ConflictError{Expected: *expected, Actual: current}
		}

		payments, err := tx.DeletePayments(ctx, ref)
		if err != nil {
			return err
		}
		adjustments, err := tx.DeleteAdjustments(ctx, ref)
		if err != nil {
			return err
		}
		bills, err := tx.DeleteBills(ctx, ref)
		if err != nil {
			return err
		}
		if _, err := tx.DeletePayer(ctx, ref); err != nil {
			return err
		}

		result = ledger.DeletionSummary{
			Payer:              ref,
			AccountNumber:      p.AccountNumber,
			BillsRemoved:       bills,
			PaymentsRemoved:    payments,
			AdjustmentsRemoved: adjustments,
		}

		s.Audit.Record(ctx, tx, ledger.AuditEntry{
			ActorID:   actor.ID,
			ActorName: actor.Name,
			Action:    ledger.AuditHardDelete,
			Table:     payerTable(ref.Kind),
			RecordID:  p.ID,
			OldValues: snapshotJSON(p),
			NewValues: snapshotJSON(result),
			IP:        origin.IP,
			UserAgent: origin.UserAgent,
			CreatedAt: s.Now(),
		})

		return nil
	})
	if err != nil {
		return ledger.DeletionSummary{}, err
	}

	s.InfoLog.Printf("deleted %s %s: %s", ref.Kind, result.AccountNumber, result.Describe())
	return result, nil
}
