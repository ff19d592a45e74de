/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for the CRUD collaborator surface. These decouple the
  internal domain model from the wire contract.

MONETARY FIELDS:
  Sent and received as decimal strings ("140.00"), never floats - the
  ledger is fixed-point and JSON numbers round-trip through float64.

NAMING CONVENTION:
  - *Request: request body types from clients
  - *DTO:     response types returned to clients
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/munirev/revenue-engine/ledger"
)

// =============================================================================
// PAYERS
// =============================================================================

// PayerRequest is the create/update body for a business or property.
type PayerRequest struct {
	Name             string   `json:"name"`
	OwnerName        string   `json:"owner_name"`
	Type             string   `json:"type"`
	Category         string   `json:"category"`
	Telephone        string   `json:"telephone"`
	LocationText     string   `json:"location_text"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	ZoneID           int64    `json:"zone_id"`
	SubZoneID        *int64   `json:"sub_zone_id"`
	Status           string   `json:"status"`
	OldBill          string   `json:"old_bill"`
	PreviousPayments string   `json:"previous_payments"`
	Arrears          string   `json:"arrears"`
	CurrentBill      string   `json:"current_bill"`
}

// PayerDTO is a payer in API responses.
type PayerDTO struct {
	ID               int64    `json:"id"`
	Kind             string   `json:"kind"`
	AccountNumber    string   `json:"account_number"`
	Name             string   `json:"name"`
	OwnerName        string   `json:"owner_name"`
	Type             string   `json:"type"`
	Category         string   `json:"category"`
	Telephone        string   `json:"telephone,omitempty"`
	LocationText     string   `json:"location_text,omitempty"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
	ZoneID           int64    `json:"zone_id"`
	SubZoneID        *int64   `json:"sub_zone_id,omitempty"`
	Status           string   `json:"status"`
	OldBill          string   `json:"old_bill"`
	PreviousPayments string   `json:"previous_payments"`
	Arrears          string   `json:"arrears"`
	CurrentBill      string   `json:"current_bill"`
	AmountPayable    string   `json:"amount_payable"`
	Defaulter        bool     `json:"defaulter"`
	CreatedAt        string   `json:"created_at,omitempty"`
	UpdatedAt        string   `json:"updated_at,omitempty"`
}

func payerDTO(p *ledger.Payer) PayerDTO {
	return PayerDTO{
		ID:               p.ID,
		Kind:             string(p.Kind),
		AccountNumber:    p.AccountNumber,
		Name:             p.Name,
		OwnerName:        p.OwnerName,
		Type:             p.Type,
		Category:         p.Category,
		Telephone:        p.Telephone,
		LocationText:     p.LocationText,
		Latitude:         p.Latitude,
		Longitude:        p.Longitude,
		ZoneID:           p.ZoneID,
		SubZoneID:        p.SubZoneID,
		Status:           string(p.Status),
		OldBill:          p.Ledger.OldBill.StringFixed(2),
		PreviousPayments: p.Ledger.PreviousPayments.StringFixed(2),
		Arrears:          p.Ledger.Arrears.StringFixed(2),
		CurrentBill:      p.Ledger.CurrentBill.StringFixed(2),
		AmountPayable:    p.AmountPayable.StringFixed(2),
		Defaulter:        p.IsDefaulter(),
		CreatedAt:        p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        p.UpdatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// RELATIONSHIPS AND DELETION
// =============================================================================

// RelationshipSummaryDTO mirrors ledger.RelationshipSummary on the wire.
type RelationshipSummaryDTO struct {
	Bills            int    `json:"bills"`
	Payments         int    `json:"payments"`
	PaymentTotal     string `json:"payment_total"`
	Adjustments      int    `json:"adjustments"`
	HasRelationships bool   `json:"has_relationships"`
	Summary          string `json:"summary"`
}

func relationshipDTO(s ledger.RelationshipSummary) RelationshipSummaryDTO {
	return RelationshipSummaryDTO{
		Bills:            s.BillCount,
		Payments:         s.PaymentCount,
		PaymentTotal:     s.PaymentTotal.StringFixed(2),
		Adjustments:      s.AdjustmentCount,
		HasRelationships: s.HasRelationships(),
		Summary:          s.Describe(),
	}
}

func (d RelationshipSummaryDTO) toSummary() (ledger.RelationshipSummary, error) {
	total, err := decimal.NewFromString(d.PaymentTotal)
	if err != nil {
		return ledger.RelationshipSummary{}, err
	}
	return ledger.RelationshipSummary{
		BillCount:       d.Bills,
		PaymentCount:    d.Payments,
		PaymentTotal:    total,
		AdjustmentCount: d.Adjustments,
	}, nil
}

// DeleteRequest optionally carries the summary the operator confirmed;
// when present, the deletion aborts with 409 if state changed since.
type DeleteRequest struct {
	Expected *RelationshipSummaryDTO `json:"expected,omitempty"`
}

// DeletionSummaryDTO reports what a cascading delete removed.
type DeletionSummaryDTO struct {
	AccountNumber      string `json:"account_number"`
	BillsRemoved       int64  `json:"bills_removed"`
	PaymentsRemoved    int64  `json:"payments_removed"`
	AdjustmentsRemoved int64  `json:"adjustments_removed"`
	Summary            string `json:"summary"`
}

// =============================================================================
// DEPENDENT RECORDS AND REFERENCE DATA
// =============================================================================

// BillRequest issues a bill against the payer in the URL.
type BillRequest struct {
	Amount  string `json:"amount"`
	Status  string `json:"status,omitempty"`
	DueDate string `json:"due_date,omitempty"` // RFC 3339
}

// PaymentRequest records a payment against the bill in the URL.
type PaymentRequest struct {
	AmountPaid string `json:"amount_paid"`
	Method     string `json:"method,omitempty"`
	Status     string `json:"status,omitempty"`
}

// AdjustmentRequest records a correction against a payer.
type AdjustmentRequest struct {
	TargetKind string `json:"target_kind"`
	TargetID   int64  `json:"target_id"`
	Kind       string `json:"kind"` // fixed | percent
	Delta      string `json:"delta"`
	Reason     string `json:"reason,omitempty"`
}

// FeeRequest creates or replaces a fee catalog row.
type FeeRequest struct {
	EntityType string `json:"entity_type"`
	Category   string `json:"category"`
	Amount     string `json:"amount"`
	Active     bool   `json:"active"`
}

// FeeDTO is a fee catalog row in responses.
type FeeDTO struct {
	ID         int64  `json:"id"`
	EntityType string `json:"entity_type"`
	Category   string `json:"category"`
	Amount     string `json:"amount"`
	Active     bool   `json:"active"`
}

// ZoneRequest creates a zone or sub-zone.
type ZoneRequest struct {
	Name string `json:"name"`
}

// AuditEntryDTO is one immutable history record.
type AuditEntryDTO struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	ActorName string `json:"actor_name"`
	Action    string `json:"action"`
	Table     string `json:"table"`
	RecordID  int64  `json:"record_id"`
	OldValues string `json:"old_values,omitempty"`
	NewValues string `json:"new_values,omitempty"`
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	CreatedAt string `json:"created_at"`
}

// =============================================================================
// ERRORS
// =============================================================================

// FieldErrorDTO is one field-level validation message.
type FieldErrorDTO struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is the uniform error envelope. Fields is set only for
// validation failures and carries the complete accumulated list.
type ErrorResponse struct {
	Error  string          `json:"error"`
	Fields []FieldErrorDTO `json:"fields,omitempty"`
}
