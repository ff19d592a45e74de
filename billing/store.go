/*
store.go - Persistence interfaces consumed by the billing service

PURPOSE:
  The service is written against these interfaces; store/sqlite implements
  them for production and billing/store provides an in-memory version for
  tests. Tx is the full operation surface; Store adds transaction scoping.

TRANSACTION MODEL:
  Every mutating sequence (create/update/delete) runs inside one WithTx
  call. If fn returns an error the transaction rolls back and no partial
  state is observable. Reads outside WithTx see committed state only.

LOOKUP CONVENTION:
  Get* methods return (nil, nil) when the row is absent, as the callers
  decide whether absence is an error. Count/Sum methods never fail on
  empty sets, they return zero.
*/
package billing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/munirev/revenue-engine/ledger"
)

// Tx is the set of storage operations the billing service composes.
type Tx interface {
	// Payers
	GetPayer(ctx context.Context, ref ledger.PayerRef) (*ledger.Payer, error)
	ActiveNameTaken(ctx context.Context, kind ledger.PayerKind, name string, excludeID int64) (bool, error)
	ListPayers(ctx context.Context, kind ledger.PayerKind) ([]ledger.Payer, error)
	NextAccountNumber(ctx context.Context, kind ledger.PayerKind) (string, error)
	InsertPayer(ctx context.Context, p *ledger.Payer) error
	UpdatePayer(ctx context.Context, p *ledger.Payer) error
	DeletePayer(ctx context.Context, ref ledger.PayerRef) (int64, error)

	// Reference data
	ZoneExists(ctx context.Context, id int64) (bool, error)
	SubZoneInZone(ctx context.Context, subZoneID, zoneID int64) (bool, error)
	SaveZone(ctx context.Context, z *ledger.Zone) error
	SaveSubZone(ctx context.Context, sz *ledger.SubZone) error
	ListZones(ctx context.Context) ([]ledger.Zone, error)
	ListSubZones(ctx context.Context, zoneID int64) ([]ledger.SubZone, error)

	// Fee catalog
	ActiveFee(ctx context.Context, entityType, category string) (decimal.Decimal, bool, error)
	SaveFee(ctx context.Context, f *ledger.Fee) error
	ListFees(ctx context.Context) ([]ledger.Fee, error)

	// Dependent records
	GetBill(ctx context.Context, id int64) (*ledger.Bill, error)
	InsertBill(ctx context.Context, b *ledger.Bill) error
	InsertPayment(ctx context.Context, p *ledger.Payment) error
	InsertAdjustment(ctx context.Context, a *ledger.Adjustment) error
	CountBills(ctx context.Context, ref ledger.PayerRef) (int, error)
	SuccessfulPayments(ctx context.Context, ref ledger.PayerRef) (count int, total decimal.Decimal, err error)
	CountAdjustments(ctx context.Context, ref ledger.PayerRef) (int, error)
	DeletePayments(ctx context.Context, ref ledger.PayerRef) (int64, error)
	DeleteAdjustments(ctx context.Context, ref ledger.PayerRef) (int64, error)
	DeleteBills(ctx context.Context, ref ledger.PayerRef) (int64, error)

	// Audit log (append-only; never updated or deleted)
	AppendAudit(ctx context.Context, e *ledger.AuditEntry) error
	ListAuditEntries(ctx context.Context, table string, recordID int64) ([]ledger.AuditEntry, error)
}

// Store is a Tx that can also scope a sequence of operations into one
// all-or-nothing transaction.
type Store interface {
	Tx

	// WithTx runs fn inside a transaction. A non-nil error from fn rolls
	// everything back and is returned unchanged.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}
