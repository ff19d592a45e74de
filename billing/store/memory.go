/*
Package store provides an in-memory billing.Store for tests and local
development.

TRANSACTIONS:
  WithTx snapshots the whole state up front and restores it when fn fails,
  so rollback semantics match the SQL store closely enough for the
  atomicity tests to mean something.

FAILURE INJECTION:
  The Fail* fields force individual cascade steps to fail, which is how
  the tests prove that a failure mid-delete leaves every row in place.
*/
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/munirev/revenue-engine/billing"
	"github.com/munirev/revenue-engine/ledger"
)

// Memory implements billing.Store entirely in process.
type Memory struct {
	mu          sync.RWMutex
	payers      map[ledger.PayerRef]ledger.Payer
	bills       map[int64]ledger.Bill
	payments    map[int64]ledger.Payment
	adjustments map[int64]ledger.Adjustment
	zones       map[int64]ledger.Zone
	subZones    map[int64]ledger.SubZone
	fees        map[int64]ledger.Fee
	audit       []ledger.AuditEntry
	counters    map[ledger.PayerKind]int64
	nextID      int64

	// Forced step failures, for atomicity tests.
	FailDeletePayments    error
	FailDeleteAdjustments error
	FailDeleteBills       error
	FailDeletePayer       error
	FailAppendAudit       error
}

var _ billing.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		payers:      make(map[ledger.PayerRef]ledger.Payer),
		bills:       make(map[int64]ledger.Bill),
		payments:    make(map[int64]ledger.Payment),
		adjustments: make(map[int64]ledger.Adjustment),
		zones:       make(map[int64]ledger.Zone),
		subZones:    make(map[int64]ledger.SubZone),
		fees:        make(map[int64]ledger.Fee),
		counters:    make(map[ledger.PayerKind]int64),
	}
}

// WithTx snapshots the state, runs fn, and restores the snapshot if fn
// returns an error.
func (m *Memory) WithTx(_ context.Context, fn func(tx billing.Tx) error) error {
	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	payers      map[ledger.PayerRef]ledger.Payer
	bills       map[int64]ledger.Bill
	payments    map[int64]ledger.Payment
	adjustments map[int64]ledger.Adjustment
	zones       map[int64]ledger.Zone
	subZones    map[int64]ledger.SubZone
	fees        map[int64]ledger.Fee
	audit       []ledger.AuditEntry
	counters    map[ledger.PayerKind]int64
	nextID      int64
}

func (m *Memory) snapshot() memSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memSnapshot{
		payers:      cloneMap(m.payers),
		bills:       cloneMap(m.bills),
		payments:    cloneMap(m.payments),
		adjustments: cloneMap(m.adjustments),
		zones:       cloneMap(m.zones),
		subZones:    cloneMap(m.subZones),
		fees:        cloneMap(m.fees),
		audit:       append([]ledger.AuditEntry(nil), m.audit...),
		counters:    cloneMap(m.counters),
		nextID:      m.nextID,
	}
}

func (m *Memory) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payers = s.payers
	m.bills = s.bills
	m.payments = s.payments
	m.adjustments = s.adjustments
	m.zones = s.zones
	m.subZones = s.subZones
	m.fees = s.fees
	m.audit = s.audit
	m.counters = s.counters
	m.nextID = s.nextID
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (m *Memory) nextRowID() int64 {
	m.nextID++
	return m.nextID
}

// =============================================================================
// PAYERS
// =============================================================================

func (m *Memory) GetPayer(_ context.Context, ref ledger.PayerRef) (*ledger.Payer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payers[ref]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) ActiveNameTaken(_ context.Context, kind ledger.PayerKind, name string, excludeID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payers {
		if p.Kind == kind && p.Name == name && p.Status == ledger.StatusActive && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) ListPayers(_ context.Context, kind ledger.PayerKind) ([]ledger.Payer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Payer
	for _, p := range m.payers {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) NextAccountNumber(_ context.Context, kind ledger.PayerKind) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[kind]++
	return ledger.FormatAccountNumber(kind, m.counters[kind]), nil
}

func (m *Memory) InsertPayer(_ context.Context, p *ledger.Payer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.nextRowID()
	m.payers[p.Ref()] = *p
	return nil
}

func (m *Memory) UpdatePayer(_ context.Context, p *ledger.Payer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payers[p.Ref()]; !ok {
		return ledger.ErrNotFound
	}
	m.payers[p.Ref()] = *p
	return nil
}

func (m *Memory) DeletePayer(_ context.Context, ref ledger.PayerRef) (int64, error) {
	if m.FailDeletePayer != nil {
		return 0, m.FailDeletePayer
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payers[ref]; !ok {
		return 0, nil
	}
	delete(m.payers, ref)
	return 1, nil
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func (m *Memory) ZoneExists(_ context.Context, id int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.zones[id]
	return ok, nil
}

func (m *Memory) SubZoneInZone(_ context.Context, subZoneID, zoneID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sz, ok := m.subZones[subZoneID]
	return ok && sz.ZoneID == zoneID, nil
}

func (m *Memory) SaveZone(_ context.Context, z *ledger.Zone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if z.ID == 0 {
		z.ID = m.nextRowID()
	}
	m.zones[z.ID] = *z
	return nil
}

func (m *Memory) SaveSubZone(_ context.Context, sz *ledger.SubZone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sz.ID == 0 {
		sz.ID = m.nextRowID()
	}
	m.subZones[sz.ID] = *sz
	return nil
}

func (m *Memory) ListZones(_ context.Context) ([]ledger.Zone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Zone, 0, len(m.zones))
	for _, z := range m.zones {
		out = append(out, z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListSubZones(_ context.Context, zoneID int64) ([]ledger.SubZone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.SubZone
	for _, sz := range m.subZones {
		if sz.ZoneID == zoneID {
			out = append(out, sz)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// FEE CATALOG
// =============================================================================

func (m *Memory) ActiveFee(_ context.Context, entityType, category string) (decimal.Decimal, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.fees {
		if f.Active && f.EntityType == entityType && f.Category == category {
			return f.Amount, true, nil
		}
	}
	return decimal.Zero, false, nil
}

func (m *Memory) SaveFee(_ context.Context, f *ledger.Fee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Upsert on (entity_type, category)
	for id, existing := range m.fees {
		if existing.EntityType == f.EntityType && existing.Category == f.Category {
			f.ID = id
			m.fees[id] = *f
			return nil
		}
	}
	f.ID = m.nextRowID()
	m.fees[f.ID] = *f
	return nil
}

func (m *Memory) ListFees(_ context.Context) ([]ledger.Fee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Fee, 0, len(m.fees))
	for _, f := range m.fees {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// DEPENDENT RECORDS
// =============================================================================

func (m *Memory) GetBill(_ context.Context, id int64) (*ledger.Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bills[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *Memory) InsertBill(_ context.Context, b *ledger.Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = m.nextRowID()
	m.bills[b.ID] = *b
	return nil
}

func (m *Memory) InsertPayment(_ context.Context, p *ledger.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.nextRowID()
	m.payments[p.ID] = *p
	return nil
}

func (m *Memory) InsertAdjustment(_ context.Context, a *ledger.Adjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.nextRowID()
	m.adjustments[a.ID] = *a
	return nil
}

func (m *Memory) CountBills(_ context.Context, ref ledger.PayerRef) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, b := range m.bills {
		if b.Payer == ref {
			n++
		}
	}
	return n, nil
}

func (m *Memory) SuccessfulPayments(_ context.Context, ref ledger.PayerRef) (int, decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	billIDs := m.billIDsLocked(ref)
	count, total := 0, decimal.Zero
	for _, p := range m.payments {
		if billIDs[p.BillID] && p.Status == ledger.PaymentSuccessful {
			count++
			total = total.Add(p.AmountPaid)
		}
	}
	return count, total, nil
}

func (m *Memory) CountAdjustments(_ context.Context, ref ledger.PayerRef) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, a := range m.adjustments {
		if a.Target == ref {
			n++
		}
	}
	return n, nil
}

func (m *Memory) DeletePayments(_ context.Context, ref ledger.PayerRef) (int64, error) {
	if m.FailDeletePayments != nil {
		return 0, m.FailDeletePayments
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	billIDs := m.billIDsLocked(ref)
	var removed int64
	for id, p := range m.payments {
		if billIDs[p.BillID] {
			delete(m.payments, id)
			removed++
		}
	}
	return removed, nil
}

func (m *Memory) DeleteAdjustments(_ context.Context, ref ledger.PayerRef) (int64, error) {
	if m.FailDeleteAdjustments != nil {
		return 0, m.FailDeleteAdjustments
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, a := range m.adjustments {
		if a.Target == ref {
			delete(m.adjustments, id)
			removed++
		}
	}
	return removed, nil
}

func (m *Memory) DeleteBills(_ context.Context, ref ledger.PayerRef) (int64, error) {
	if m.FailDeleteBills != nil {
		return 0, m.FailDeleteBills
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, b := range m.bills {
		if b.Payer == ref {
			delete(m.bills, id)
			removed++
		}
	}
	return removed, nil
}

// billIDsLocked returns the ids of the payer's bills. Caller holds mu.
func (m *Memory) billIDsLocked(ref ledger.PayerRef) map[int64]bool {
	ids := make(map[int64]bool)
	for id, b := range m.bills {
		if b.Payer == ref {
			ids[id] = true
		}
	}
	return ids
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (m *Memory) AppendAudit(_ context.Context, e *ledger.AuditEntry) error {
	if m.FailAppendAudit != nil {
		return m.FailAppendAudit
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, *e)
	return nil
}

func (m *Memory) ListAuditEntries(_ context.Context, table string, recordID int64) ([]ledger.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.AuditEntry
	for _, e := range m.audit {
		if e.Table == table && e.RecordID == recordID {
			out = append(out, e)
		}
	}
	return out, nil
}

// AuditEntries returns the whole audit log, for tests.
func (m *Memory) AuditEntries() []ledger.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ledger.AuditEntry(nil), m.audit...)
}
