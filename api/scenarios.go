/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the registry with realistic
	data for testing and demos. Each scenario creates zones, fee catalog
	rows, payers, and dependent records that demonstrate specific features
	of the admin frontend.

AVAILABLE SCENARIOS:

	starter-zones:    Zones, sub-zones, and a fee catalog, no payers yet
	market-district:  Businesses with bills, payments, and an adjustment
	defaulters-review: Mixed businesses and properties, several defaulters

HOW SCENARIOS WORK:
 1. Create zones and sub-zones
 2. Create fee catalog rows
 3. Register payers through the normal create path (so account numbers
    and audit entries behave exactly as in production)
 4. Optionally issue bills, payments, and adjustments

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "market-district"}

NOTE:

	Scenarios add records on top of whatever exists. Load them against an
	empty development database only.

SEE ALSO:
  - server.go: scenario routes
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/munirev/revenue-engine/ledger"
)

// ScenarioDTO describes one loadable demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "starter-zones",
		Name:        "Starter Zones",
		Description: "Zones, sub-zones, and a fee catalog with no payers registered yet",
	},
	{
		ID:          "market-district",
		Name:        "Market District",
		Description: "Registered businesses with bills, payments, and a waiver adjustment",
	},
	{
		ID:          "defaulters-review",
		Name:        "Defaulters Review",
		Description: "Mixed businesses and properties, several carrying arrears",
	},
}

var scenarioActor = ledger.Actor{ID: "demo-loader", Name: "Demo Loader"}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario populates the registry with the named scenario's data.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var err error
	switch req.ScenarioID {
	case "starter-zones":
		_, err = h.loadStarterZones(r.Context())
	case "market-district":
		err = h.loadMarketDistrict(r.Context())
	case "defaulters-review":
		err = h.loadDefaultersReview(r.Context())
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown scenario %q", req.ScenarioID))
		return
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadStarterZones creates the reference data every other scenario builds
// on and returns the created zone ids in declaration order.
func (h *Handler) loadStarterZones(ctx context.Context) ([]int64, error) {
	zones := []struct {
		name string
		subs []string
	}{
		{"Central Market", []string{"Stalls A", "Stalls B"}},
		{"Riverside", []string{"North Bank", "South Bank"}},
		{"Industrial", nil},
	}

	var zoneIDs []int64
	for _, def := range zones {
		z := &ledger.Zone{Name: def.name}
		if err := h.Service.SaveZone(ctx, z); err != nil {
			return nil, err
		}
		zoneIDs = append(zoneIDs, z.ID)
		for _, sub := range def.subs {
			if err := h.Service.SaveSubZone(ctx, &ledger.SubZone{ZoneID: z.ID, Name: sub}); err != nil {
				return nil, err
			}
		}
	}

	fees := []ledger.Fee{
		{EntityType: "shop", Category: "retail", Amount: ledger.MustMoney("25.00"), Active: true},
		{EntityType: "shop", Category: "wholesale", Amount: ledger.MustMoney("60.00"), Active: true},
		{EntityType: "kiosk", Category: "informal", Amount: ledger.MustMoney("5.00"), Active: true},
		{EntityType: "residential", Category: "standard", Amount: ledger.MustMoney("12.50"), Active: true},
		{EntityType: "commercial", Category: "standard", Amount: ledger.MustMoney("40.00"), Active: true},
	}
	for i := range fees {
		if err := h.Service.SaveFee(ctx, &fees[i]); err != nil {
			return nil, err
		}
	}
	return zoneIDs, nil
}

// loadMarketDistrict registers businesses and runs them through a billing
// cycle so the relationship and deletion screens have something to show.
func (h *Handler) loadMarketDistrict(ctx context.Context) error {
	zoneIDs, err := h.loadStarterZones(ctx)
	if err != nil {
		return err
	}
	marketZone := zoneIDs[0]

	demo := func(name, owner, category, oldBill, prevPaid, arrears, current string) ledger.PayerInput {
		return ledger.PayerInput{
			Name:      name,
			OwnerName: owner,
			Type:      "shop",
			Category:  category,
			Telephone: "+250 788 000 111",
			ZoneID:    marketZone,
			Ledger: ledger.LedgerFields{
				OldBill:          ledger.MustMoney(oldBill),
				PreviousPayments: ledger.MustMoney(prevPaid),
				Arrears:          ledger.MustMoney(arrears),
				CurrentBill:      ledger.MustMoney(current),
			},
		}
	}

	inputs := []ledger.PayerInput{
		demo("Central Grocery", "J. Mukamana", "retail", "50", "30", "20", "100"),
		demo("Nyarugenge Textiles", "P. Habimana", "wholesale", "0", "0", "0", "60"),
		demo("Corner Pharmacy", "C. Uwase", "retail", "25", "25", "0", "25"),
	}

	origin := ledger.Origin{IP: "127.0.0.1", UserAgent: "scenario-loader"}
	var first *ledger.Payer
	for _, in := range inputs {
		p, err := h.Service.CreatePayer(ctx, ledger.KindBusiness, scenarioActor, origin, in)
		if err != nil {
			return err
		}
		if first == nil {
			first = p
		}

		bill := &ledger.Bill{Payer: p.Ref(), Amount: p.Ledger.CurrentBill, Status: ledger.BillServed}
		if err := h.Service.RecordBill(ctx, scenarioActor, origin, bill); err != nil {
			return err
		}
		payment := &ledger.Payment{
			BillID:     bill.ID,
			AmountPaid: bill.Amount.Div(ledger.MustMoney("2")).Round(2),
			Method:     "mobile-money",
			Status:     ledger.PaymentSuccessful,
		}
		if err := h.Service.RecordPayment(ctx, scenarioActor, origin, payment); err != nil {
			return err
		}
	}

	// One waiver on the first business
	adj := &ledger.Adjustment{
		Target: first.Ref(),
		Kind:   ledger.AdjustmentFixed,
		Delta:  ledger.MustMoney("-10.00"),
		Reason: "hardship waiver",
	}
	return h.Service.RecordAdjustment(ctx, scenarioActor, origin, adj)
}

// loadDefaultersReview mixes payers with and without outstanding balances
// so the defaulter listing has both kinds.
func (h *Handler) loadDefaultersReview(ctx context.Context) error {
	zoneIDs, err := h.loadStarterZones(ctx)
	if err != nil {
		return err
	}
	riverside := zoneIDs[1]

	origin := ledger.Origin{IP: "127.0.0.1", UserAgent: "scenario-loader"}
	create := func(kind ledger.PayerKind, name, category, arrears, current, paid string) error {
		in := ledger.PayerInput{
			Name:      name,
			OwnerName: "Registry Import",
			Type:      "commercial",
			Category:  category,
			ZoneID:    riverside,
			Ledger: ledger.LedgerFields{
				Arrears:          ledger.MustMoney(arrears),
				CurrentBill:      ledger.MustMoney(current),
				PreviousPayments: ledger.MustMoney(paid),
			},
		}
		_, err := h.Service.CreatePayer(ctx, kind, scenarioActor, origin, in)
		return err
	}

	steps := []error{
		create(ledger.KindBusiness, "Riverside Depot", "standard", "120", "40", "0"),
		create(ledger.KindBusiness, "Paid-Up Traders", "standard", "0", "40", "40"),
		create(ledger.KindProperty, "Plot 17 Riverside", "standard", "75", "12.50", "0"),
		create(ledger.KindProperty, "Plot 18 Riverside", "standard", "0", "12.50", "12.50"),
	}
	for _, err := range steps {
		if err != nil {
			return err
		}
	}
	return nil
}
