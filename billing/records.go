/*
records.go - Dependent-record entry (bills, payments, adjustments)

PURPOSE:
  The billing and payment entry screens reduced to data operations: each
  creates one dependent record against an existing payer (or bill), inside
  a transaction, with a CREATE audit entry. These are what the relationship
  inspector later counts and the deletion executor later cascades over.
*/
package billing

import (
	"context"

	"github.com/munirev/revenue-engine/ledger"
)

// RecordBill issues a bill against an existing payer.
func (s *Service) RecordBill(ctx context.Context, actor ledger.Actor, origin ledger.Origin, b *ledger.Bill) error {
	if b.Amount.IsNegative() {
		return &ledger.InvalidAmountError{Field: "amount", Value: b.Amount.String()}
	}
	if b.Status == "" {
		b.Status = ledger.BillPending
	}
	if !b.Status.Valid() {
		verr := &ledger.ValidationError{}
		verr.Add("status", "is not a valid bill status")
		return verr
	}

	return s.Store.WithTx(ctx, func(tx Tx) error {
		p, err := tx.GetPayer(ctx, b.Payer)
		if err != nil {
			return err
		}
		if p == nil {
			return ledger.ErrNotFound
		}

		b.Amount = ledger.Round2(b.Amount)
		b.CreatedAt = s.Now()
		if err := tx.InsertBill(ctx, b); err != nil {
			return err
		}

		s.Audit.Record(ctx, tx, ledger.AuditEntry{
			ActorID:   actor.ID,
			ActorName: actor.Name,
			Action:    ledger.AuditCreate,
			Table:     "bills",
			RecordID:  b.ID,
			NewValues: snapshotJSON(b),
			IP:        origin.IP,
			UserAgent: origin.UserAgent,
			CreatedAt: b.CreatedAt,
		})
		return nil
	})
}

// RecordPayment records a payment against an existing bill.
func (s *Service) RecordPayment(ctx context.Context, actor ledger.Actor, origin ledger.Origin, p *ledger.Payment) error {
	if p.AmountPaid.IsNegative() {
		return &ledger.InvalidAmountError{Field: "amount_paid", Value: p.AmountPaid.String()}
	}
	if p.Status == "" {
		p.Status = ledger.PaymentPending
	}
	if !p.Status.Valid() {
		verr := &ledger.ValidationError{}
		verr.Add("payment_status", "is not a valid payment status")
		return verr
	}

	return s.Store.WithTx(ctx, func(tx Tx) error {
		bill, err := tx.GetBill(ctx, p.BillID)
		if err != nil {
			return err
		}
		if bill == nil {
			return ledger.ErrBillNotFound
		}

		p.AmountPaid = ledger.Round2(p.AmountPaid)
		if p.PaymentDate.IsZero() {
			p.PaymentDate = s.Now()
		}
		if err := tx.InsertPayment(ctx, p); err != nil {
			return err
		}

		s.Audit.Record(ctx, tx, ledger.AuditEntry{
			ActorID:   actor.ID,
			ActorName: actor.Name,
			Action:    ledger.AuditCreate,
			Table:     "payments",
			RecordID:  p.ID,
			NewValues: snapshotJSON(p),
			IP:        origin.IP,
			UserAgent: origin.UserAgent,
			CreatedAt: s.Now(),
		})
		return nil
	})
}

// RecordAdjustment records a billing correction against an existing payer.
func (s *Service) RecordAdjustment(ctx context.Context, actor ledger.Actor, origin ledger.Origin, a *ledger.Adjustment) error {
	if !a.Kind.Valid() {
		verr := &ledger.ValidationError{}
		verr.Add("kind", "must be fixed or percent")
		return verr
	}

	return s.Store.WithTx(ctx, func(tx Tx) error {
		p, err := tx.GetPayer(ctx, a.Target)
		if err != nil {
			return err
		}
		if p == nil {
			return ledger.ErrNotFound
		}

		a.Delta = ledger.Round2(a.Delta)
		a.CreatedAt = s.Now()
		if err := tx.InsertAdjustment(ctx, a); err != nil {
			return err
		}

		s.Audit.Record(ctx, tx, ledger.AuditEntry{
			ActorID:   actor.ID,
			ActorName: actor.Name,
			Action:    ledger.AuditCreate,
			Table:     "bill_adjustments",
			RecordID:  a.ID,
			NewValues: snapshotJSON(a),
			IP:        origin.IP,
			UserAgent: origin.UserAgent,
			CreatedAt: a.CreatedAt,
		})
		return nil
	})
}

// AuditTrail returns the immutable history for one record, oldest first.
func (s *Service) AuditTrail(ctx context.Context, table string, recordID int64) ([]ledger.AuditEntry, error) {
	return s.Store.ListAuditEntries(ctx, table, recordID)
}
