/*
handlers.go - HTTP handlers for the revenue billing ledger

PURPOSE:
  Exposes the billing service to the admin CRUD frontend. Handles HTTP
  request/response and JSON serialization, then delegates to the service;
  no business rules live here.

ENDPOINTS:
  Payers (x2, businesses and properties):
    GET    /api/{kind}                     List payers
    POST   /api/{kind}                     Create payer
    GET    /api/{kind}/{id}                Get payer
    PUT    /api/{kind}/{id}                Update payer
    DELETE /api/{kind}/{id}                Cascading delete
    GET    /api/{kind}/{id}/relationships  Pre-delete summary
    POST   /api/{kind}/{id}/bills          Issue bill
    GET    /api/{kind}/{id}/audit          History

  Other:
    POST   /api/bills/{id}/payments        Record payment
    POST   /api/adjustments                Record adjustment
    GET    /api/fees                       List fee catalog
    POST   /api/fees                       Upsert fee
    GET    /api/fees/resolve               Resolve (type, category)
    GET/POST /api/zones and /api/zones/{id}/subzones

ACTOR ATTRIBUTION:
  Authentication is a collaborator; this layer only reads the identity it
  established from X-Actor-Id / X-Actor-Name and forwards it, with the
  request origin, for audit attribution.

ERROR HANDLING:
  - 400: validation errors (complete accumulated field list), bad JSON
  - 404: payer/bill/zone/fee not found
  - 409: relationship state changed between inspection and deletion
  - 500: storage failures, surfaced as a generic "try again"
*/
package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/munirev/revenue-engine/billing"
	"github.com/munirev/revenue-engine/ledger"
)

// Handler holds the handler dependencies.
type Handler struct {
	Service *billing.Service
}

// NewHandler creates a handler over the billing service.
func NewHandler(svc *billing.Service) *Handler {
	return &Handler{Service: svc}
}

// =============================================================================
// PAYER HANDLERS
// =============================================================================

func (h *Handler) createPayer(kind ledger.PayerKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PayerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		in, ferrs := payerInput(req)
		if len(ferrs) > 0 {
			writeValidation(w, ferrs)
			return
		}

		p, err := h.Service.CreatePayer(r.Context(), kind, actorFrom(r), originFrom(r), in)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payerDTO(p))
	}
}

func (h *Handler) updatePayer(kind ledger.PayerKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		var req PayerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		in, ferrs := payerInput(req)
		if len(ferrs) > 0 {
			writeValidation(w, ferrs)
			return
		}

		ref := ledger.PayerRef{Kind: kind, ID: id}
		p, err := h.Service.UpdatePayer(r.Context(), ref, actorFrom(r), originFrom(r), in)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payerDTO(p))
	}
}

func (h *Handler) getPayer(kind ledger.PayerKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		p, err := h.Service.GetPayer(r.Context(), ledger.PayerRef{Kind: kind, ID: id})
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payerDTO(p))
	}
}

func (h *Handler) listPayers(kind ledger.PayerKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payers, err := h.Service.ListPayers(r.Context(), kind)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		dtos := make([]PayerDTO, len(payers))
		for i := range payers {
			dtos[i] = payerDTO(&payers[i])
		}
		writeJSON(w, http.StatusOK, dtos)
	}
}

func (h *Handler) inspectRelationships(kind ledger.PayerKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		sum, err := h.Service.InspectRelationships(r.Context(), ledger.PayerRef{Kind: kind, ID: id})
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, relationshipDTO(sum))
	}
}

func (h *Handler) deletePayer(kind ledger.PayerKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}

		// The confirmed summary is optional; an empty body means the
		// legacy best-effort delete.
		var expected *ledger.RelationshipSummary
		var req DeleteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Expected != nil {
			sum, err := req.Expected.toSummary()
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid expected summary")
				return
			}
			expected = &sum
		}

		ref := ledger.PayerRef{Kind: kind, ID: id}
		result, err := h.Service.DeletePayer(r.Context(), ref, actorFrom(r), originFrom(r), expected)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, DeletionSummaryDTO{
			AccountNumber:      result.AccountNumber,
			BillsRemoved:       result.BillsRemoved,
			PaymentsRemoved:    result.PaymentsRemoved,
			AdjustmentsRemoved: result.AdjustmentsRemoved,
			Summary:            result.Describe(),
		})
	}
}

func (h *Handler) payerAudit(kind ledger.PayerKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		table := "businesses"
		if kind == ledger.KindProperty {
			table = "properties"
		}
		entries, err := h.Service.AuditTrail(r.Context(), table, id)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		dtos := make([]AuditEntryDTO, len(entries))
		for i, e := range entries {
			dtos[i] = AuditEntryDTO{
				ID:        e.ID,
				ActorID:   e.ActorID,
				ActorName: e.ActorName,
				Action:    string(e.Action),
				Table:     e.Table,
				RecordID:  e.RecordID,
				OldValues: e.OldValues,
				NewValues: e.NewValues,
				IP:        e.IP,
				UserAgent: e.UserAgent,
				CreatedAt: e.CreatedAt.Format(time.RFC3339),
			}
		}
		writeJSON(w, http.StatusOK, dtos)
	}
}

// =============================================================================
// DEPENDENT RECORD HANDLERS
// =============================================================================

func (h *Handler) recordBill(kind ledger.PayerKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		var req BillRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			writeValidation(w, []ledger.FieldError{{Field: "amount", Message: "must be a decimal amount"}})
			return
		}

		b := &ledger.Bill{
			Payer:  ledger.PayerRef{Kind: kind, ID: id},
			Status: ledger.BillStatus(req.Status),
			Amount: amount,
		}
		if req.DueDate != "" {
			due, err := time.Parse(time.RFC3339, req.DueDate)
			if err != nil {
				writeValidation(w, []ledger.FieldError{{Field: "due_date", Message: "must be an RFC 3339 timestamp"}})
				return
			}
			b.DueDate = &due
		}

		if err := h.Service.RecordBill(r.Context(), actorFrom(r), originFrom(r), b); err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int64{"id": b.ID})
	}
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	billID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bill id")
		return
	}
	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	amount, err := decimal.NewFromString(req.AmountPaid)
	if err != nil {
		writeValidation(w, []ledger.FieldError{{Field: "amount_paid", Message: "must be a decimal amount"}})
		return
	}

	p := &ledger.Payment{
		BillID:     billID,
		AmountPaid: amount,
		Method:     req.Method,
		Status:     ledger.PaymentStatus(req.Status),
	}
	if err := h.Service.RecordPayment(r.Context(), actorFrom(r), originFrom(r), p); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": p.ID})
}

func (h *Handler) recordAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	delta, err := decimal.NewFromString(req.Delta)
	if err != nil {
		writeValidation(w, []ledger.FieldError{{Field: "delta", Message: "must be a decimal amount"}})
		return
	}

	a := &ledger.Adjustment{
		Target: ledger.PayerRef{Kind: ledger.PayerKind(req.TargetKind), ID: req.TargetID},
		Kind:   ledger.AdjustmentKind(req.Kind),
		Delta:  delta,
		Reason: req.Reason,
	}
	if !a.Target.Kind.Valid() {
		writeValidation(w, []ledger.FieldError{{Field: "target_kind", Message: "must be business or property"}})
		return
	}
	if err := h.Service.RecordAdjustment(r.Context(), actorFrom(r), originFrom(r), a); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": a.ID})
}

// =============================================================================
// FEE CATALOG AND ZONE HANDLERS
// =============================================================================

func (h *Handler) resolveFee(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("type")
	category := r.URL.Query().Get("category")
	if entityType == "" || category == "" {
		writeError(w, http.StatusBadRequest, "type and category query parameters are required")
		return
	}

	fee, err := h.Service.ResolveFee(r.Context(), entityType, category)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"fee": fee.StringFixed(2)})
}

func (h *Handler) saveFee(w http.ResponseWriter, r *http.Request) {
	var req FeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeValidation(w, []ledger.FieldError{{Field: "amount", Message: "must be a decimal amount"}})
		return
	}

	f := &ledger.Fee{
		EntityType: req.EntityType,
		Category:   req.Category,
		Amount:     amount,
		Active:     req.Active,
	}
	if err := h.Service.SaveFee(r.Context(), f); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FeeDTO{
		ID: f.ID, EntityType: f.EntityType, Category: f.Category,
		Amount: f.Amount.StringFixed(2), Active: f.Active,
	})
}

func (h *Handler) listFees(w http.ResponseWriter, r *http.Request) {
	fees, err := h.Service.ListFees(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	dtos := make([]FeeDTO, len(fees))
	for i, f := range fees {
		dtos[i] = FeeDTO{
			ID: f.ID, EntityType: f.EntityType, Category: f.Category,
			Amount: f.Amount.StringFixed(2), Active: f.Active,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) createZone(w http.ResponseWriter, r *http.Request) {
	var req ZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	z := &ledger.Zone{Name: req.Name}
	if err := h.Service.SaveZone(r.Context(), z); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, z)
}

func (h *Handler) listZones(w http.ResponseWriter, r *http.Request) {
	zones, err := h.Service.ListZones(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, zones)
}

func (h *Handler) createSubZone(w http.ResponseWriter, r *http.Request) {
	zoneID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid zone id")
		return
	}
	var req ZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	sz := &ledger.SubZone{ZoneID: zoneID, Name: req.Name}
	if err := h.Service.SaveSubZone(r.Context(), sz); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sz)
}

func (h *Handler) listSubZones(w http.ResponseWriter, r *http.Request) {
	zoneID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid zone id")
		return
	}
	subZones, err := h.Service.ListSubZones(r.Context(), zoneID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subZones)
}

// =============================================================================
// HELPERS
// =============================================================================

// payerInput maps the wire request to the domain input. Monetary strings
// that do not parse are reported as field errors before the service runs.
func payerInput(req PayerRequest) (ledger.PayerInput, []ledger.FieldError) {
	var ferrs []ledger.FieldError
	parse := func(field, value string) decimal.Decimal {
		if value == "" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(value)
		if err != nil {
			ferrs = append(ferrs, ledger.FieldError{Field: field, Message: "must be a decimal amount"})
			return decimal.Zero
		}
		return d
	}

	in := ledger.PayerInput{
		Name:         req.Name,
		OwnerName:    req.OwnerName,
		Type:         req.Type,
		Category:     req.Category,
		Telephone:    req.Telephone,
		LocationText: req.LocationText,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		ZoneID:       req.ZoneID,
		SubZoneID:    req.SubZoneID,
		Status:       ledger.PayerStatus(req.Status),
		Ledger: ledger.LedgerFields{
			OldBill:          parse("old_bill", req.OldBill),
			PreviousPayments: parse("previous_payments", req.PreviousPayments),
			Arrears:          parse("arrears", req.Arrears),
			CurrentBill:      parse("current_bill", req.CurrentBill),
		},
	}
	return in, ferrs
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func actorFrom(r *http.Request) ledger.Actor {
	return ledger.Actor{
		ID:   r.Header.Get("X-Actor-Id"),
		Name: r.Header.Get("X-Actor-Name"),
	}
}

func originFrom(r *http.Request) ledger.Origin {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip, _, _ = net.SplitHostPort(r.RemoteAddr)
	}
	return ledger.Origin{IP: ip, UserAgent: r.UserAgent()}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var verr *ledger.ValidationError
	if errors.As(err, &verr) {
		writeValidation(w, verr.Fields)
		return
	}

	switch {
	case errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, ledger.ErrBillNotFound),
		errors.Is(err, ledger.ErrZoneNotFound),
		errors.Is(err, ledger.ErrFeeNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrStorageTimeout):
		writeError(w, http.StatusServiceUnavailable, "storage timed out, please retry")
	default:
		// Storage details stay in the server log.
		h.Service.ErrorLog.Printf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "operation failed, please try again")
	}
}

func writeValidation(w http.ResponseWriter, ferrs []ledger.FieldError) {
	fields := make([]FieldErrorDTO, len(ferrs))
	for i, f := range ferrs {
		fields[i] = FieldErrorDTO{Field: f.Field, Message: f.Message}
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: fields})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
