package billing_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/munirev/revenue-engine/billing"
	"github.com/munirev/revenue-engine/billing/store"
	"github.com/munirev/revenue-engine/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	testActor  = ledger.Actor{ID: "clerk-1", Name: "A. Clerk"}
	testOrigin = ledger.Origin{IP: "10.0.0.9", UserAgent: "test"}
	fixedNow   = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
)

func newTestService(t *testing.T) (*billing.Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	svc := billing.NewService(mem)
	svc.Now = func() time.Time { return fixedNow }
	svc.InfoLog = log.New(io.Discard, "", 0)
	svc.ErrorLog = log.New(io.Discard, "", 0)
	svc.Audit = billing.NewRecorder(svc.ErrorLog)

	// Every test payer lives in zone 1
	z := &ledger.Zone{Name: "Central"}
	require.NoError(t, svc.SaveZone(context.Background(), z))
	require.Equal(t, int64(1), z.ID)
	return svc, mem
}

func payerInput(name string) ledger.PayerInput {
	return ledger.PayerInput{
		Name:      name,
		OwnerName: "J. Owner",
		Type:      "shop",
		Category:  "retail",
		ZoneID:    1,
		Ledger: ledger.LedgerFields{
			OldBill:          ledger.MustMoney("50"),
			PreviousPayments: ledger.MustMoney("30"),
			Arrears:          ledger.MustMoney("20"),
			CurrentBill:      ledger.MustMoney("100"),
		},
	}
}

func mustCreate(t *testing.T, svc *billing.Service, kind ledger.PayerKind, name string) *ledger.Payer {
	t.Helper()
	p, err := svc.CreatePayer(context.Background(), kind, testActor, testOrigin, payerInput(name))
	require.NoError(t, err)
	return p
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreatePayer_ComputesAmountPayable(t *testing.T) {
	// GIVEN: old bill 50, previous payments 30, arrears 20, current bill 100
	// WHEN: Creating the payer
	// THEN: amount_payable is derived as 140.00, never taken from input

	svc, _ := newTestService(t)
	p := mustCreate(t, svc, ledger.KindBusiness, "Central Grocery")

	assert.Equal(t, "140.00", p.AmountPayable.StringFixed(2))
	assert.True(t, p.IsDefaulter())
	assert.Equal(t, ledger.StatusActive, p.Status)
	assert.Equal(t, fixedNow, p.CreatedAt)
}

func TestCreatePayer_SequentialAccountNumbersPerKind(t *testing.T) {
	// GIVEN: An empty registry
	// WHEN: Creating two businesses and a property
	// THEN: Each kind numbers independently from 1

	svc, _ := newTestService(t)

	b1 := mustCreate(t, svc, ledger.KindBusiness, "First Shop")
	b2 := mustCreate(t, svc, ledger.KindBusiness, "Second Shop")
	p1 := mustCreate(t, svc, ledger.KindProperty, "Plot 12")

	assert.Equal(t, "BUS-000001", b1.AccountNumber)
	assert.Equal(t, "BUS-000002", b2.AccountNumber)
	assert.Equal(t, "PRP-000001", p1.AccountNumber)
}

func TestCreatePayer_AccountNumberNotReusedAfterDelete(t *testing.T) {
	// GIVEN: A created then hard-deleted business
	// WHEN: Creating the next business
	// THEN: The deleted record's number is not handed out again

	svc, _ := newTestService(t)
	ctx := context.Background()

	p := mustCreate(t, svc, ledger.KindBusiness, "Ephemeral")
	_, err := svc.DeletePayer(ctx, p.Ref(), testActor, testOrigin, nil)
	require.NoError(t, err)

	next := mustCreate(t, svc, ledger.KindBusiness, "Successor")
	assert.Equal(t, "BUS-000002", next.AccountNumber)
}

func TestCreatePayer_DuplicateActiveName_Rejected(t *testing.T) {
	// GIVEN: An active business named "Central Grocery"
	// WHEN: Creating another business with the same name
	// THEN: The create fails with a name uniqueness error and nothing persists

	svc, mem := newTestService(t)
	ctx := context.Background()
	mustCreate(t, svc, ledger.KindBusiness, "Central Grocery")

	_, err := svc.CreatePayer(ctx, ledger.KindBusiness, testActor, testOrigin, payerInput("Central Grocery"))
	require.Error(t, err)

	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "name", verr.Fields[0].Field)

	payers, err := mem.ListPayers(ctx, ledger.KindBusiness)
	require.NoError(t, err)
	assert.Len(t, payers, 1)
}

func TestCreatePayer_InactiveRecordDoesNotShadowActiveDuplicate(t *testing.T) {
	// GIVEN: An inactive business "Shadow" and an active business "Shadow"
	// WHEN: Creating a third business with the same name
	// THEN: The active duplicate is found behind the inactive row and the
	//       create fails; the name is not registered a second time

	svc, mem := newTestService(t)
	ctx := context.Background()

	first := mustCreate(t, svc, ledger.KindBusiness, "Shadow")
	retired := payerInput("Shadow")
	retired.Status = ledger.StatusInactive
	_, err := svc.UpdatePayer(ctx, first.Ref(), testActor, testOrigin, retired)
	require.NoError(t, err)

	// An inactive holder releases the name.
	mustCreate(t, svc, ledger.KindBusiness, "Shadow")

	_, err = svc.CreatePayer(ctx, ledger.KindBusiness, testActor, testOrigin, payerInput("Shadow"))
	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "name", verr.Fields[0].Field)

	payers, err := mem.ListPayers(ctx, ledger.KindBusiness)
	require.NoError(t, err)
	assert.Len(t, payers, 2)
}

func TestCreatePayer_SameNameDifferentKind_Allowed(t *testing.T) {
	// Uniqueness is scoped per kind: a property may share a business's name.
	svc, _ := newTestService(t)
	mustCreate(t, svc, ledger.KindBusiness, "Riverside")
	mustCreate(t, svc, ledger.KindProperty, "Riverside")
}

func TestCreatePayer_UnknownZone_Rejected(t *testing.T) {
	svc, _ := newTestService(t)
	in := payerInput("Zoned Out")
	in.ZoneID = 99

	_, err := svc.CreatePayer(context.Background(), ledger.KindBusiness, testActor, testOrigin, in)
	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "zone_id", verr.Fields[0].Field)
}

func TestCreatePayer_SubZoneOutsideZone_Rejected(t *testing.T) {
	// GIVEN: Sub-zone 3 belongs to zone 2, not zone 1
	// WHEN: Creating a payer in zone 1 with sub-zone 3
	// THEN: The membership check fails

	svc, _ := newTestService(t)
	ctx := context.Background()

	z2 := &ledger.Zone{Name: "North"}
	require.NoError(t, svc.SaveZone(ctx, z2))
	sz := &ledger.SubZone{ZoneID: z2.ID, Name: "North-A"}
	require.NoError(t, svc.SaveSubZone(ctx, sz))

	in := payerInput("Misfiled")
	in.SubZoneID = &sz.ID

	_, err := svc.CreatePayer(ctx, ledger.KindBusiness, testActor, testOrigin, in)
	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "sub_zone_id", verr.Fields[0].Field)
}

func TestCreatePayer_AccumulatesValidationAndCrossFieldErrors(t *testing.T) {
	// GIVEN: A bad telephone AND an unknown zone
	// WHEN: Creating
	// THEN: Both failures come back in one ValidationError

	svc, _ := newTestService(t)
	in := payerInput("Messy Input")
	in.Telephone = "bad"
	in.ZoneID = 99

	_, err := svc.CreatePayer(context.Background(), ledger.KindBusiness, testActor, testOrigin, in)
	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)

	var fields []string
	for _, fe := range verr.Fields {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"telephone", "zone_id"}, fields)
}

func TestCreatePayer_WritesCreateAuditEntry(t *testing.T) {
	svc, mem := newTestService(t)
	p := mustCreate(t, svc, ledger.KindBusiness, "Audited")

	entries := mem.AuditEntries()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, ledger.AuditCreate, e.Action)
	assert.Equal(t, "businesses", e.Table)
	assert.Equal(t, p.ID, e.RecordID)
	assert.Equal(t, testActor.ID, e.ActorID)
	assert.Equal(t, testOrigin.IP, e.IP)
	assert.Empty(t, e.OldValues)
	assert.Contains(t, e.NewValues, "Audited")
}

// =============================================================================
// UPDATE
// =============================================================================

func TestUpdatePayer_RecomputesAmountPayable(t *testing.T) {
	// GIVEN: A payer owing 140.00
	// WHEN: Updating with previous payments raised to 140
	// THEN: amount_payable is recomputed to 30.00

	svc, _ := newTestService(t)
	ctx := context.Background()
	p := mustCreate(t, svc, ledger.KindBusiness, "Recompute Me")

	in := payerInput("Recompute Me")
	in.Ledger.PreviousPayments = ledger.MustMoney("140")

	updated, err := svc.UpdatePayer(ctx, p.Ref(), testActor, testOrigin, in)
	require.NoError(t, err)
	assert.Equal(t, "30.00", updated.AmountPayable.StringFixed(2))
}

func TestUpdatePayer_KeepingOwnName_Allowed(t *testing.T) {
	// Uniqueness must exclude the record's own id or no-op updates fail.
	svc, _ := newTestService(t)
	p := mustCreate(t, svc, ledger.KindBusiness, "Keeper")

	_, err := svc.UpdatePayer(context.Background(), p.Ref(), testActor, testOrigin, payerInput("Keeper"))
	assert.NoError(t, err)
}

func TestUpdatePayer_TakingAnotherActiveName_Rejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustCreate(t, svc, ledger.KindBusiness, "Original")
	other := mustCreate(t, svc, ledger.KindBusiness, "Other")

	_, err := svc.UpdatePayer(ctx, other.Ref(), testActor, testOrigin, payerInput("Original"))
	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Fields[0].Field)
}

func TestUpdatePayer_PreservesImmutableFields(t *testing.T) {
	// Account number, creator, and creation time survive every update.
	svc, _ := newTestService(t)
	p := mustCreate(t, svc, ledger.KindBusiness, "Immutable")

	updated, err := svc.UpdatePayer(context.Background(), p.Ref(), ledger.Actor{ID: "clerk-2"}, testOrigin, payerInput("Immutable"))
	require.NoError(t, err)
	assert.Equal(t, p.AccountNumber, updated.AccountNumber)
	assert.Equal(t, p.CreatedBy, updated.CreatedBy)
	assert.Equal(t, p.CreatedAt, updated.CreatedAt)
}

func TestUpdatePayer_Missing_ReturnsNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ref := ledger.PayerRef{Kind: ledger.KindBusiness, ID: 404}
	_, err := svc.UpdatePayer(context.Background(), ref, testActor, testOrigin, payerInput("Ghost"))
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestUpdatePayer_WritesUpdateAuditWithSnapshots(t *testing.T) {
	svc, mem := newTestService(t)
	p := mustCreate(t, svc, ledger.KindBusiness, "Before Name")

	in := payerInput("After Name")
	_, err := svc.UpdatePayer(context.Background(), p.Ref(), testActor, testOrigin, in)
	require.NoError(t, err)

	entries := mem.AuditEntries()
	require.Len(t, entries, 2) // CREATE then UPDATE
	e := entries[1]
	assert.Equal(t, ledger.AuditUpdate, e.Action)
	assert.Contains(t, e.OldValues, "Before Name")
	assert.Contains(t, e.NewValues, "After Name")
}

// =============================================================================
// READ
// =============================================================================

func TestGetPayer_Missing_ReturnsNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GetPayer(context.Background(), ledger.PayerRef{Kind: ledger.KindProperty, ID: 7})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestListPayers_FiltersByKind(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreate(t, svc, ledger.KindBusiness, "Biz One")
	mustCreate(t, svc, ledger.KindBusiness, "Biz Two")
	mustCreate(t, svc, ledger.KindProperty, "Plot One")

	businesses, err := svc.ListPayers(context.Background(), ledger.KindBusiness)
	require.NoError(t, err)
	assert.Len(t, businesses, 2)

	properties, err := svc.ListPayers(context.Background(), ledger.KindProperty)
	require.NoError(t, err)
	assert.Len(t, properties, 1)
}
