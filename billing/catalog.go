/*
catalog.go - Fee resolution and reference-data administration

PURPOSE:
  ResolveFee is the core lookup: callers must be able to tell "no fee
  configured" (ErrFeeNotFound) apart from "fee is zero", so a missing or
  inactive row never defaults to zero. The save/list operations are the
  administrator surface that refreshes the catalog and the zone tree.
*/
package billing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/munirev/revenue-engine/ledger"
)

// ResolveFee looks up the active fee for a (type, category) pair.
func (s *Service) ResolveFee(ctx context.Context, entityType, category string) (decimal.Decimal, error) {
	amount, ok, err := s.Store.ActiveFee(ctx, entityType, category)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, ledger.ErrFeeNotFound
	}
	return amount, nil
}

// SaveFee creates or replaces a fee catalog row.
func (s *Service) SaveFee(ctx context.Context, f *ledger.Fee) error {
	f.Amount = ledger.Round2(f.Amount)
	if f.Amount.IsNegative() {
		return &ledger.InvalidAmountError{Field: "amount", Value: f.Amount.String()}
	}
	return s.Store.SaveFee(ctx, f)
}

// ListFees returns the whole catalog, active and inactive.
func (s *Service) ListFees(ctx context.Context) ([]ledger.Fee, error) {
	return s.Store.ListFees(ctx)
}

// SaveZone creates or renames a zone.
func (s *Service) SaveZone(ctx context.Context, z *ledger.Zone) error {
	return s.Store.SaveZone(ctx, z)
}

// SaveSubZone creates or renames a sub-zone under an existing zone.
func (s *Service) SaveSubZone(ctx context.Context, sz *ledger.SubZone) error {
	ok, err := s.Store.ZoneExists(ctx, sz.ZoneID)
	if err != nil {
		return err
	}
	if !ok {
		return ledger.ErrZoneNotFound
	}
	return s.Store.SaveSubZone(ctx, sz)
}

// ListZones returns all zones.
func (s *Service) ListZones(ctx context.Context) ([]ledger.Zone, error) {
	return s.Store.ListZones(ctx)
}

// ListSubZones returns the sub-zones of one zone.
func (s *Service) ListSubZones(ctx context.Context, zoneID int64) ([]ledger.SubZone, error) {
	return s.Store.ListSubZones(ctx, zoneID)
}
