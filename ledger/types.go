/*
Package ledger contains the core data model and pure rules of the revenue
billing ledger.

PURPOSE:
  Everything in this package is side-effect free: the payer/bill/payment
  model, the amount-payable computation, input validation, and the error
  taxonomy. Persistence and orchestration live in the billing and store
  packages.

KEY CONCEPTS IN THIS FILE (types.go):
  - Payer: a Business or Property that owes money under bills
  - PayerRef: typed (kind, id) reference replacing the stringly-typed
    polymorphic join the legacy schema used
  - Bill/Payment/Adjustment: dependent records hanging off a payer
  - AuditEntry: immutable record of every mutating operation

DESIGN PRINCIPLES:
  1. Precision: all monetary values are decimal.Decimal, never float
  2. Type safety: payer kind is an enum, not a free-form string
  3. Derived-but-stored: AmountPayable is persisted, recomputed on every
     write path, and never accepted from a caller

SEE ALSO:
  - money.go:    amount-payable computation
  - validate.go: payer input validation
  - errors.go:   error taxonomy
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYER
// =============================================================================

// PayerKind distinguishes the two concrete payer shapes. Both share the
// ledger fields; only classification and reporting differ.
type PayerKind string

const (
	KindBusiness PayerKind = "business"
	KindProperty PayerKind = "property"
)

// Valid reports whether k is one of the known kinds.
func (k PayerKind) Valid() bool {
	return k == KindBusiness || k == KindProperty
}

// AccountPrefix returns the prefix used for sequential account numbers.
func (k PayerKind) AccountPrefix() string {
	if k == KindProperty {
		return "PRP"
	}
	return "BUS"
}

// FormatAccountNumber renders the nth sequential account number for a
// kind, e.g. BUS-000042.
func FormatAccountNumber(kind PayerKind, n int64) string {
	return fmt.Sprintf("%s-%06d", kind.AccountPrefix(), n)
}

// PayerStatus is the operator-visible lifecycle state. Deleted is not a
// status: a deleted payer has no row at all.
type PayerStatus string

const (
	StatusActive    PayerStatus = "Active"
	StatusInactive  PayerStatus = "Inactive"
	StatusSuspended PayerStatus = "Suspended"
)

func (s PayerStatus) Valid() bool {
	return s == StatusActive || s == StatusInactive || s == StatusSuspended
}

// PayerRef identifies a payer by kind and row id. Bills and adjustments
// reference payers through this pair rather than a plain foreign key, so
// one bill table serves both payer kinds without a stringly-typed join.
type PayerRef struct {
	Kind PayerKind
	ID   int64
}

func (r PayerRef) String() string {
	return fmt.Sprintf("%s/%d", r.Kind, r.ID)
}

// LedgerFields are the four stored monetary inputs of a payer's balance.
// AmountPayable is derived from them; see ComputeAmountPayable.
type LedgerFields struct {
	OldBill          decimal.Decimal
	PreviousPayments decimal.Decimal
	Arrears          decimal.Decimal
	CurrentBill      decimal.Decimal
}

// Payer is a Business or Property record with its ledger state.
type Payer struct {
	ID            int64
	Kind          PayerKind
	AccountNumber string // immutable, assigned at creation, never reused
	Name          string
	OwnerName     string
	Telephone     string
	Type          string // classification type, resolves a fee with Category
	Category      string
	LocationText  string
	Latitude      *float64
	Longitude     *float64
	Ledger        LedgerFields
	AmountPayable decimal.Decimal // derived, recomputed on every write
	Status        PayerStatus
	ZoneID        int64
	SubZoneID     *int64
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Ref returns the typed reference dependent records use.
func (p *Payer) Ref() PayerRef {
	return PayerRef{Kind: p.Kind, ID: p.ID}
}

// IsDefaulter reports whether the payer still owes money. Credit balances
// (negative amount payable) are not defaulters.
func (p *Payer) IsDefaulter() bool {
	return p.AmountPayable.IsPositive()
}

// =============================================================================
// DEPENDENT RECORDS
// =============================================================================

type BillStatus string

const (
	BillPending       BillStatus = "Pending"
	BillServed        BillStatus = "Served"
	BillPartiallyPaid BillStatus = "Partially Paid"
	BillPaid          BillStatus = "Paid"
	BillOverdue       BillStatus = "Overdue"
)

func (s BillStatus) Valid() bool {
	switch s {
	case BillPending, BillServed, BillPartiallyPaid, BillPaid, BillOverdue:
		return true
	}
	return false
}

// Bill is issued against a payer for a billing period.
type Bill struct {
	ID        int64
	Payer     PayerRef
	Status    BillStatus
	Amount    decimal.Decimal
	DueDate   *time.Time
	CreatedAt time.Time
}

type PaymentStatus string

const (
	PaymentSuccessful PaymentStatus = "Successful"
	PaymentFailed     PaymentStatus = "Failed"
	PaymentPending    PaymentStatus = "Pending"
)

func (s PaymentStatus) Valid() bool {
	return s == PaymentSuccessful || s == PaymentFailed || s == PaymentPending
}

// Payment settles part or all of a single bill. Only Successful payments
// count toward balance reduction and relationship totals.
type Payment struct {
	ID          int64
	BillID      int64
	AmountPaid  decimal.Decimal
	Method      string
	Status      PaymentStatus
	PaymentDate time.Time
}

// AdjustmentKind says how an adjustment delta applies to a bill.
type AdjustmentKind string

const (
	AdjustmentFixed   AdjustmentKind = "fixed"
	AdjustmentPercent AdjustmentKind = "percent"
)

func (k AdjustmentKind) Valid() bool {
	return k == AdjustmentFixed || k == AdjustmentPercent
}

// Adjustment records a correction applied to a payer's billing.
type Adjustment struct {
	ID        int64
	Target    PayerRef
	Kind      AdjustmentKind
	Delta     decimal.Decimal
	Reason    string
	CreatedAt time.Time
}

// =============================================================================
// INSPECTION AND DELETION SUMMARIES
// =============================================================================

// RelationshipSummary is shown to an operator before a destructive action.
// It must be computed fresh immediately before use, never cached.
type RelationshipSummary struct {
	BillCount       int
	PaymentCount    int
	PaymentTotal    decimal.Decimal
	AdjustmentCount int
}

// HasRelationships reports whether any dependent record exists.
func (s RelationshipSummary) HasRelationships() bool {
	return s.BillCount > 0 || s.PaymentCount > 0 || s.AdjustmentCount > 0
}

// Equal compares counts and the payment total. Used by the deletion
// executor to detect state changes between inspection and deletion.
func (s RelationshipSummary) Equal(o RelationshipSummary) bool {
	return s.BillCount == o.BillCount &&
		s.PaymentCount == o.PaymentCount &&
		s.AdjustmentCount == o.AdjustmentCount &&
		s.PaymentTotal.Equal(o.PaymentTotal)
}

// Describe renders the operator-facing summary line, e.g.
// "3 bill record(s), 2 payment record(s), 1 bill adjustment(s)".
func (s RelationshipSummary) Describe() string {
	return fmt.Sprintf("%d bill record(s), %d payment record(s), %d bill adjustment(s)",
		s.BillCount, s.PaymentCount, s.AdjustmentCount)
}

// DeletionSummary reports what a cascading delete removed.
type DeletionSummary struct {
	Payer              PayerRef
	AccountNumber      string
	BillsRemoved       int64
	PaymentsRemoved    int64
	AdjustmentsRemoved int64
}

func (s DeletionSummary) Describe() string {
	return fmt.Sprintf("%d bill record(s), %d payment record(s), %d bill adjustment(s)",
		s.BillsRemoved, s.PaymentsRemoved, s.AdjustmentsRemoved)
}

// =============================================================================
// AUDIT
// =============================================================================

// Actor is the already-authenticated identity performing an operation.
// Session lifecycle belongs to the auth collaborator; the core only
// records attribution.
type Actor struct {
	ID   string
	Name string
}

// Origin captures where a request came from, for audit attribution.
type Origin struct {
	IP        string
	UserAgent string
}

type AuditAction string

const (
	AuditCreate     AuditAction = "CREATE"
	AuditUpdate     AuditAction = "UPDATE"
	AuditHardDelete AuditAction = "HARD_DELETE"
)

// AuditEntry is an immutable record of a mutating operation. The
// application never updates or deletes entries.
type AuditEntry struct {
	ID        string // uuid
	ActorID   string
	ActorName string
	Action    AuditAction
	Table     string
	RecordID  int64
	OldValues string // json snapshot, empty for CREATE
	NewValues string // json snapshot, empty for HARD_DELETE row removal
	IP        string
	UserAgent string
	CreatedAt time.Time
}
