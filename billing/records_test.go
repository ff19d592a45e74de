package billing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/munirev/revenue-engine/ledger"
)

func TestRecordBill_DefaultsToPending(t *testing.T) {
	svc, _ := newTestService(t)
	p := mustCreate(t, svc, ledger.KindBusiness, "Billed")

	b := &ledger.Bill{Payer: p.Ref(), Amount: ledger.MustMoney("45.5")}
	require.NoError(t, svc.RecordBill(context.Background(), testActor, testOrigin, b))

	assert.NotZero(t, b.ID)
	assert.Equal(t, ledger.BillPending, b.Status)
	assert.Equal(t, "45.50", b.Amount.StringFixed(2))
}

func TestRecordBill_MissingPayer_ReturnsNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	b := &ledger.Bill{Payer: ledger.PayerRef{Kind: ledger.KindBusiness, ID: 404}, Amount: ledger.MustMoney("10")}
	err := svc.RecordBill(context.Background(), testActor, testOrigin, b)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestRecordBill_NegativeAmount_Rejected(t *testing.T) {
	svc, _ := newTestService(t)
	p := mustCreate(t, svc, ledger.KindBusiness, "Cheap")
	b := &ledger.Bill{Payer: p.Ref(), Amount: ledger.MustMoney("-10")}
	err := svc.RecordBill(context.Background(), testActor, testOrigin, b)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestRecordPayment_MissingBill_ReturnsBillNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	pay := &ledger.Payment{BillID: 404, AmountPaid: ledger.MustMoney("10")}
	err := svc.RecordPayment(context.Background(), testActor, testOrigin, pay)
	assert.ErrorIs(t, err, ledger.ErrBillNotFound)
}

func TestRecordAdjustment_InvalidKind_Rejected(t *testing.T) {
	svc, _ := newTestService(t)
	p := mustCreate(t, svc, ledger.KindBusiness, "Adjusted")

	a := &ledger.Adjustment{Target: p.Ref(), Kind: "sliding", Delta: ledger.MustMoney("1")}
	err := svc.RecordAdjustment(context.Background(), testActor, testOrigin, a)

	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "kind", verr.Fields[0].Field)
}

func TestRecords_EachWriteAppendsAudit(t *testing.T) {
	// CREATE entries for the payer, the bill, the payment, the adjustment.
	svc, mem := newTestService(t)
	ctx := context.Background()
	p := mustCreate(t, svc, ledger.KindBusiness, "Busy")

	b := &ledger.Bill{Payer: p.Ref(), Amount: ledger.MustMoney("30")}
	require.NoError(t, svc.RecordBill(ctx, testActor, testOrigin, b))
	pay := &ledger.Payment{BillID: b.ID, AmountPaid: ledger.MustMoney("30"), Status: ledger.PaymentSuccessful}
	require.NoError(t, svc.RecordPayment(ctx, testActor, testOrigin, pay))
	a := &ledger.Adjustment{Target: p.Ref(), Kind: ledger.AdjustmentPercent, Delta: ledger.MustMoney("10")}
	require.NoError(t, svc.RecordAdjustment(ctx, testActor, testOrigin, a))

	var tables []string
	for _, e := range mem.AuditEntries() {
		tables = append(tables, e.Table)
	}
	assert.Equal(t, []string{"businesses", "bills", "payments", "bill_adjustments"}, tables)
}

func TestAuditTrail_ScopedToRecord(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p1 := mustCreate(t, svc, ledger.KindBusiness, "First")
	p2 := mustCreate(t, svc, ledger.KindBusiness, "Second")

	_, err := svc.UpdatePayer(ctx, p1.Ref(), testActor, testOrigin, payerInput("First Renamed"))
	require.NoError(t, err)

	trail, err := svc.AuditTrail(ctx, "businesses", p1.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, ledger.AuditCreate, trail[0].Action)
	assert.Equal(t, ledger.AuditUpdate, trail[1].Action)

	other, err := svc.AuditTrail(ctx, "businesses", p2.ID)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}
