/*
payer.go - Payer record lifecycle (create/update)

PURPOSE:
  Owns the create/update path for businesses and properties: three-phase
  validation with full error accumulation, sequential account numbering,
  amount-payable recomputation, and audit entries with before/after
  snapshots.

VALIDATION PHASES:
  1. required  - pure, ledger.ValidateInput
  2. format    - pure, ledger.ValidateInput
  3. cross-field - zone existence, sub-zone membership, name uniqueness;
     needs store reads, so it runs inside the same transaction that would
     persist the record. Any failure rolls back with nothing written.

  Phase 3 checks are skipped for fields that already failed phase 1, the
  messages would be noise (no point reporting "zone not found" for a zone
  the caller never supplied).

ACCOUNT NUMBERS:
  Assigned from a per-kind high-water-mark counter inside the creating
  transaction. Sequential, immutable, never reused - a hard delete does
  not return its number to the pool.
*/
package billing

import (
	"context"
	"fmt"

	"github.com/munirev/revenue-engine/ledger"
)

// CreatePayer validates the input, assigns the next account number for the
// kind, computes amount_payable, persists, and writes a CREATE audit entry.
func (s *Service) CreatePayer(ctx context.Context, kind ledger.PayerKind, actor ledger.Actor, origin ledger.Origin, in ledger.PayerInput) (*ledger.Payer, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown payer kind %q", kind)
	}

	verr := &ledger.ValidationError{Fields: ledger.ValidateInput(in)}

	var created *ledger.Payer
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		if err := s.crossFieldChecks(ctx, tx, kind, in, 0, verr); err != nil {
			return err
		}
		if verr.HasErrors() {
			return verr
		}

		fields := in.Ledger.Normalize()
		payable, err := fields.AmountPayable()
		if err != nil {
			return err
		}

		number, err := tx.NextAccountNumber(ctx, kind)
		if err != nil {
			return err
		}

		now := s.Now()
		status := in.Status
		if status == "" {
			status = ledger.StatusActive
		}

		p := &ledger.Payer{
			Kind:          kind,
			AccountNumber: number,
			Name:          in.Name,
			OwnerName:     in.OwnerName,
			Telephone:     in.Telephone,
			Type:          in.Type,
			Category:      in.Category,
			LocationText:  in.LocationText,
			Latitude:      in.Latitude,
			Longitude:     in.Longitude,
			Ledger:        fields,
			AmountPayable: payable,
			Status:        status,
			ZoneID:        in.ZoneID,
			SubZoneID:     in.SubZoneID,
			CreatedBy:     actor.ID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.InsertPayer(ctx, p); err != nil {
			return err
		}

		s.Audit.Record(ctx, tx, ledger.AuditEntry{
			ActorID:   actor.ID,
			ActorName: actor.Name,
			Action:    ledger.AuditCreate,
			Table:     payerTable(kind),
			RecordID:  p.ID,
			NewValues: snapshotJSON(p),
			IP:        origin.IP,
			UserAgent: origin.UserAgent,
			CreatedAt: now,
		})

		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.InfoLog.Printf("created %s %s (%s)", created.Kind, created.AccountNumber, created.Name)
	return created, nil
}

// UpdatePayer applies the same validation as CreatePayer (uniqueness
// excludes the record's own id), recomputes amount_payable, persists, and
// writes an UPDATE audit entry with before/after snapshots. The account
// number, creator, and creation time are immutable.
func (s *Service) UpdatePayer(ctx context.Context, ref ledger.PayerRef, actor ledger.Actor, origin ledger.Origin, in ledger.PayerInput) (*ledger.Payer, error) {
	verr := &ledger.ValidationError{Fields: ledger.ValidateInput(in)}

	var updated *ledger.Payer
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		existing, err := tx.GetPayer(ctx, ref)
		if err != nil {
			return err
		}
		if existing == nil {
			return ledger.ErrNotFound
		}

		if err := s.crossFieldChecks(ctx, tx, ref.Kind, in, existing.ID, verr); err != nil {
			return err
		}
		if verr.HasErrors() {
			return verr
		}

		fields := in.Ledger.Normalize()
		payable, err := fields.AmountPayable()
		if err != nil {
			return err
		}

		before := *existing
		now := s.Now()
		status := in.Status
		if status == "" {
			status = existing.Status
		}

		existing.Name = in.Name
		existing.OwnerName = in.OwnerName
		existing.Telephone = in.Telephone
		existing.Type = in.Type
		existing.Category = in.Category
		existing.LocationText = in.LocationText
		existing.Latitude = in.Latitude
		existing.Longitude = in.Longitude
		existing.Ledger = fields
		existing.AmountPayable = payable
		existing.Status = status
		existing.ZoneID = in.ZoneID
		existing.SubZoneID = in.SubZoneID
		existing.UpdatedAt = now

		if err := tx.UpdatePayer(ctx, existing); err != nil {
			return err
		}

		s.Audit.Record(ctx, tx, ledger.AuditEntry{
			ActorID:   actor.ID,
			ActorName: actor.Name,
			Action:    ledger.AuditUpdate,
			Table:     payerTable(ref.Kind),
			RecordID:  existing.ID,
			OldValues: snapshotJSON(&before),
			NewValues: snapshotJSON(existing),
			IP:        origin.IP,
			UserAgent: origin.UserAgent,
			CreatedAt: now,
		})

		updated = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.InfoLog.Printf("updated %s %s (%s)", updated.Kind, updated.AccountNumber, updated.Name)
	return updated, nil
}

// GetPayer loads a single payer.
func (s *Service) GetPayer(ctx context.Context, ref ledger.PayerRef) (*ledger.Payer, error) {
	p, err := s.Store.GetPayer(ctx, ref)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ledger.ErrNotFound
	}
	return p, nil
}

// ListPayers returns all payers of a kind, for listings and defaulter
// reports.
func (s *Service) ListPayers(ctx context.Context, kind ledger.PayerKind) ([]ledger.Payer, error) {
	return s.Store.ListPayers(ctx, kind)
}

// crossFieldChecks runs phase 3 and appends failures to verr. A returned
// error is a storage failure, not a validation outcome.
func (s *Service) crossFieldChecks(ctx context.Context, tx Tx, kind ledger.PayerKind, in ledger.PayerInput, selfID int64, verr *ledger.ValidationError) error {
	if in.ZoneID != 0 {
		ok, err := tx.ZoneExists(ctx, in.ZoneID)
		if err != nil {
			return err
		}
		if !ok {
			verr.Add("zone_id", "zone does not exist")
		} else if in.SubZoneID != nil {
			ok, err := tx.SubZoneInZone(ctx, *in.SubZoneID, in.ZoneID)
			if err != nil {
				return err
			}
			if !ok {
				verr.Add("sub_zone_id", "sub-zone does not belong to the selected zone")
			}
		}
	}

	if in.Name != "" {
		taken, err := tx.ActiveNameTaken(ctx, kind, in.Name, selfID)
		if err != nil {
			return err
		}
		if taken {
			verr.Add("name", "is already registered")
		}
	}

	return nil
}

func payerTable(kind ledger.PayerKind) string {
	if kind == ledger.KindProperty {
		return "properties"
	}
	return "businesses"
}
