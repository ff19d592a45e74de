package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/munirev/revenue-engine/billing"
	"github.com/munirev/revenue-engine/ledger"
	"github.com/munirev/revenue-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func floatPtr(f float64) *float64 { return &f }

func testPayer(name, number string) *ledger.Payer {
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	return &ledger.Payer{
		Kind:          ledger.KindBusiness,
		AccountNumber: number,
		Name:          name,
		OwnerName:     "J. Owner",
		Telephone:     "+250 788 123 456",
		Type:          "shop",
		Category:      "retail",
		LocationText:  "Market St 4",
		Latitude:      floatPtr(-1.95),
		Longitude:     floatPtr(30.06),
		Ledger: ledger.LedgerFields{
			OldBill:          ledger.MustMoney("50.00"),
			PreviousPayments: ledger.MustMoney("30.00"),
			Arrears:          ledger.MustMoney("20.00"),
			CurrentBill:      ledger.MustMoney("100.00"),
		},
		AmountPayable: ledger.MustMoney("140.00"),
		Status:        ledger.StatusActive,
		ZoneID:        1,
		CreatedBy:     "clerk-1",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// =============================================================================
// PAYER ROUNDTRIP
// =============================================================================

func TestPayer_InsertAndGet_Roundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := testPayer("Roundtrip Shop", "BUS-000001")
	require.NoError(t, store.InsertPayer(ctx, p))
	require.NotZero(t, p.ID)

	got, err := store.GetPayer(ctx, p.Ref())
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.AccountNumber, got.AccountNumber)
	assert.Equal(t, p.Telephone, got.Telephone)
	require.NotNil(t, got.Latitude)
	assert.InDelta(t, -1.95, *got.Latitude, 1e-9)
	assert.True(t, got.Ledger.OldBill.Equal(p.Ledger.OldBill))
	assert.True(t, got.AmountPayable.Equal(p.AmountPayable))
	assert.Equal(t, p.CreatedAt, got.CreatedAt)
	assert.Nil(t, got.SubZoneID)
}

func TestPayer_GetMissing_ReturnsNil(t *testing.T) {
	store := newTestStore(t)
	got, err := store.GetPayer(context.Background(), ledger.PayerRef{Kind: ledger.KindBusiness, ID: 404})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPayer_KindSeparatesNamespaces(t *testing.T) {
	// A business and a property can carry the same row id space; lookups
	// must always match on kind as well.
	store := newTestStore(t)
	ctx := context.Background()

	b := testPayer("Twin", "BUS-000001")
	require.NoError(t, store.InsertPayer(ctx, b))

	got, err := store.GetPayer(ctx, ledger.PayerRef{Kind: ledger.KindProperty, ID: b.ID})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPayer_ActiveNameTaken_MatchesKindAndStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := testPayer("Named Shop", "BUS-000001")
	require.NoError(t, store.InsertPayer(ctx, p))

	taken, err := store.ActiveNameTaken(ctx, ledger.KindBusiness, "Named Shop", 0)
	require.NoError(t, err)
	assert.True(t, taken)

	// Other kind, own id, and inactive rows never block a name.
	taken, err = store.ActiveNameTaken(ctx, ledger.KindProperty, "Named Shop", 0)
	require.NoError(t, err)
	assert.False(t, taken)

	taken, err = store.ActiveNameTaken(ctx, ledger.KindBusiness, "Named Shop", p.ID)
	require.NoError(t, err)
	assert.False(t, taken)

	p.Status = ledger.StatusInactive
	require.NoError(t, store.UpdatePayer(ctx, p))
	taken, err = store.ActiveNameTaken(ctx, ledger.KindBusiness, "Named Shop", 0)
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestPayer_ActiveNameTaken_SeesThroughInactiveShadow(t *testing.T) {
	// An inactive row with the name must not hide an active one that also
	// carries it.
	store := newTestStore(t)
	ctx := context.Background()

	inactive := testPayer("Shadow", "BUS-000001")
	inactive.Status = ledger.StatusInactive
	require.NoError(t, store.InsertPayer(ctx, inactive))

	active := testPayer("Shadow", "BUS-000002")
	require.NoError(t, store.InsertPayer(ctx, active))

	taken, err := store.ActiveNameTaken(ctx, ledger.KindBusiness, "Shadow", 0)
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestPayer_Update_Persists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := testPayer("Before", "BUS-000001")
	require.NoError(t, store.InsertPayer(ctx, p))

	p.Name = "After"
	p.AmountPayable = ledger.MustMoney("10.00")
	p.SubZoneID = nil
	require.NoError(t, store.UpdatePayer(ctx, p))

	got, err := store.GetPayer(ctx, p.Ref())
	require.NoError(t, err)
	assert.Equal(t, "After", got.Name)
	assert.Equal(t, "10.00", got.AmountPayable.StringFixed(2))
}

// =============================================================================
// ACCOUNT COUNTERS
// =============================================================================

func TestNextAccountNumber_SequentialPerKind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	n1, err := store.NextAccountNumber(ctx, ledger.KindBusiness)
	require.NoError(t, err)
	n2, err := store.NextAccountNumber(ctx, ledger.KindBusiness)
	require.NoError(t, err)
	p1, err := store.NextAccountNumber(ctx, ledger.KindProperty)
	require.NoError(t, err)

	assert.Equal(t, "BUS-000001", n1)
	assert.Equal(t, "BUS-000002", n2)
	assert.Equal(t, "PRP-000001", p1)
}

func TestNextAccountNumber_CounterSurvivesDeletes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	n1, err := store.NextAccountNumber(ctx, ledger.KindBusiness)
	require.NoError(t, err)
	p := testPayer("Short Lived", n1)
	require.NoError(t, store.InsertPayer(ctx, p))

	removed, err := store.DeletePayer(ctx, p.Ref())
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	n2, err := store.NextAccountNumber(ctx, ledger.KindBusiness)
	require.NoError(t, err)
	assert.Equal(t, "BUS-000002", n2)
}

// =============================================================================
// DEPENDENT RECORDS AND RELATIONSHIP QUERIES
// =============================================================================

func seedDependents(t *testing.T, store *sqlite.Store, ref ledger.PayerRef) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	var billIDs []int64
	for _, amount := range []string{"40.00", "60.00", "25.00"} {
		b := &ledger.Bill{Payer: ref, Status: ledger.BillPending, Amount: ledger.MustMoney(amount), CreatedAt: now}
		require.NoError(t, store.InsertBill(ctx, b))
		billIDs = append(billIDs, b.ID)
	}

	pay := func(billID int64, amount string, status ledger.PaymentStatus) {
		p := &ledger.Payment{BillID: billID, AmountPaid: ledger.MustMoney(amount), Status: status, PaymentDate: now}
		require.NoError(t, store.InsertPayment(ctx, p))
	}
	pay(billIDs[0], "40.00", ledger.PaymentSuccessful)
	pay(billIDs[1], "35.50", ledger.PaymentSuccessful)
	pay(billIDs[1], "99.99", ledger.PaymentFailed)

	a := &ledger.Adjustment{Target: ref, Kind: ledger.AdjustmentFixed, Delta: ledger.MustMoney("-5.00"), Reason: "waiver", CreatedAt: now}
	require.NoError(t, store.InsertAdjustment(ctx, a))
}

func TestRelationshipQueries_CountsAndSuccessfulTotal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := testPayer("Connected", "BUS-000001")
	require.NoError(t, store.InsertPayer(ctx, p))
	seedDependents(t, store, p.Ref())

	bills, err := store.CountBills(ctx, p.Ref())
	require.NoError(t, err)
	assert.Equal(t, 3, bills)

	count, total, err := store.SuccessfulPayments(ctx, p.Ref())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, "75.50", total.StringFixed(2))

	adjustments, err := store.CountAdjustments(ctx, p.Ref())
	require.NoError(t, err)
	assert.Equal(t, 1, adjustments)
}

func TestRelationshipQueries_ScopedToPayer(t *testing.T) {
	// Another payer's records must never leak into the counts.
	store := newTestStore(t)
	ctx := context.Background()

	p1 := testPayer("Mine", "BUS-000001")
	require.NoError(t, store.InsertPayer(ctx, p1))
	p2 := testPayer("Theirs", "BUS-000002")
	require.NoError(t, store.InsertPayer(ctx, p2))
	seedDependents(t, store, p2.Ref())

	bills, err := store.CountBills(ctx, p1.Ref())
	require.NoError(t, err)
	assert.Zero(t, bills)

	count, total, err := store.SuccessfulPayments(ctx, p1.Ref())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.True(t, total.IsZero())
}

func TestCascadeDeletes_RemoveOnlyTargetRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	victim := testPayer("Victim", "BUS-000001")
	require.NoError(t, store.InsertPayer(ctx, victim))
	seedDependents(t, store, victim.Ref())

	bystander := testPayer("Bystander", "BUS-000002")
	require.NoError(t, store.InsertPayer(ctx, bystander))
	seedDependents(t, store, bystander.Ref())

	payments, err := store.DeletePayments(ctx, victim.Ref())
	require.NoError(t, err)
	assert.Equal(t, int64(3), payments)
	adjustments, err := store.DeleteAdjustments(ctx, victim.Ref())
	require.NoError(t, err)
	assert.Equal(t, int64(1), adjustments)
	bills, err := store.DeleteBills(ctx, victim.Ref())
	require.NoError(t, err)
	assert.Equal(t, int64(3), bills)
	removed, err := store.DeletePayer(ctx, victim.Ref())
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	// Bystander untouched
	count, total, err := store.SuccessfulPayments(ctx, bystander.Ref())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, "75.50", total.StringFixed(2))
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_ErrorRollsBackEverything(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := testPayer("Rollback", "BUS-000001")
	require.NoError(t, store.InsertPayer(ctx, p))
	seedDependents(t, store, p.Ref())

	boom := errors.New("late failure")
	err := store.WithTx(ctx, func(tx billing.Tx) error {
		if _, err := tx.DeletePayments(ctx, p.Ref()); err != nil {
			return err
		}
		if _, err := tx.DeleteBills(ctx, p.Ref()); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	bills, err := store.CountBills(ctx, p.Ref())
	require.NoError(t, err)
	assert.Equal(t, 3, bills)
	count, _, err := store.SuccessfulPayments(ctx, p.Ref())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestWithTx_CommitPersists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx billing.Tx) error {
		number, err := tx.NextAccountNumber(ctx, ledger.KindBusiness)
		if err != nil {
			return err
		}
		return tx.InsertPayer(ctx, testPayer("Committed", number))
	})
	require.NoError(t, err)

	payers, err := store.ListPayers(ctx, ledger.KindBusiness)
	require.NoError(t, err)
	require.Len(t, payers, 1)
	assert.Equal(t, "Committed", payers[0].Name)
	assert.Equal(t, "BUS-000001", payers[0].AccountNumber)
}

func TestDirectRead_ExpiredDeadline_ReportsStorageTimeout(t *testing.T) {
	// The timeout mapping applies outside WithTx as well.
	store := newTestStore(t)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := store.GetPayer(ctx, ledger.PayerRef{Kind: ledger.KindBusiness, ID: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrStorageTimeout)
}

// =============================================================================
// REFERENCE DATA AND FEES
// =============================================================================

func TestZones_SaveAndMembership(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	z := &ledger.Zone{Name: "Central"}
	require.NoError(t, store.SaveZone(ctx, z))
	require.NotZero(t, z.ID)

	sz := &ledger.SubZone{ZoneID: z.ID, Name: "Central-A"}
	require.NoError(t, store.SaveSubZone(ctx, sz))

	ok, err := store.ZoneExists(ctx, z.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.SubZoneInZone(ctx, sz.ID, z.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.SubZoneInZone(ctx, sz.ID, z.ID+1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestActiveFee_UpsertAndInactive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	f := &ledger.Fee{EntityType: "shop", Category: "retail", Amount: ledger.MustMoney("25.00"), Active: true}
	require.NoError(t, store.SaveFee(ctx, f))

	amount, ok, err := store.ActiveFee(ctx, "shop", "retail")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "25.00", amount.StringFixed(2))

	// Replace with an inactive row; the fee no longer resolves
	f.Active = false
	require.NoError(t, store.SaveFee(ctx, f))
	_, ok, err = store.ActiveFee(ctx, "shop", "retail")
	require.NoError(t, err)
	assert.False(t, ok)

	fees, err := store.ListFees(ctx)
	require.NoError(t, err)
	assert.Len(t, fees, 1)
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func TestAuditLog_AppendAndListByRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	for i, action := range []ledger.AuditAction{ledger.AuditCreate, ledger.AuditUpdate} {
		e := &ledger.AuditEntry{
			ID:        "entry-" + string(rune('a'+i)),
			ActorID:   "clerk-1",
			ActorName: "A. Clerk",
			Action:    action,
			Table:     "businesses",
			RecordID:  7,
			NewValues: `{"Name":"X"}`,
			IP:        "10.0.0.9",
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.AppendAudit(ctx, e))
	}

	// Unrelated record
	require.NoError(t, store.AppendAudit(ctx, &ledger.AuditEntry{
		ID: "other", Action: ledger.AuditCreate, Table: "businesses", RecordID: 8, CreatedAt: now,
	}))

	entries, err := store.ListAuditEntries(ctx, "businesses", 7)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ledger.AuditCreate, entries[0].Action)
	assert.Equal(t, ledger.AuditUpdate, entries[1].Action)
	assert.Equal(t, "clerk-1", entries[0].ActorID)
	assert.Equal(t, now, entries[0].CreatedAt)
}
