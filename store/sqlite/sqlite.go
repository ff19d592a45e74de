/*
Package sqlite provides the SQLite-backed implementation of billing.Store.

PURPOSE:
  Implements the full storage surface the billing service consumes. In
  production the same patterns apply to MySQL/PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  payers:           business and property records with ledger fields
  bills:            dependent bills, referenced by (bill_type, reference_id)
  payments:         payments against bills
  bill_adjustments: corrections targeting a payer
  fee_catalog:      active (entity_type, category) -> fee rows
  zones/sub_zones:  collection areas
  audit_log:        append-only mutation trail
  account_counters: per-kind high-water mark for account numbers

TRANSACTIONS:
  WithTx wraps a *sql.Tx in the same query helpers the direct methods use,
  so every mutating sequence in the billing service is all-or-nothing. A
  deadline that expires mid-transaction rolls back and surfaces as
  ledger.ErrStorageTimeout.

APPEND-ONLY ENFORCEMENT:
  There is no UPDATE or DELETE statement against audit_log anywhere in
  this package.

CONCURRENCY:
  Uses sync.RWMutex for write serialization on top of WAL mode, same as
  a single-writer SQLite deployment wants.

SEE ALSO:
  - queries.go: the query helpers shared by Store and txSession
  - billing/store.go: interface definitions
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/munirev/revenue-engine/billing"
	"github.com/munirev/revenue-engine/ledger"
)

// Store implements billing.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ billing.Store = (*Store)(nil)

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS payers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		account_number TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		owner_name TEXT NOT NULL,
		telephone TEXT NOT NULL DEFAULT '',
		payer_type TEXT NOT NULL,
		category TEXT NOT NULL,
		location_text TEXT NOT NULL DEFAULT '',
		latitude REAL,
		longitude REAL,
		old_bill TEXT NOT NULL,
		previous_payments TEXT NOT NULL,
		arrears TEXT NOT NULL,
		current_bill TEXT NOT NULL,
		amount_payable TEXT NOT NULL,
		status TEXT NOT NULL,
		zone_id INTEGER NOT NULL,
		sub_zone_id INTEGER,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payers_kind_name ON payers(kind, name);
	CREATE INDEX IF NOT EXISTS idx_payers_zone ON payers(zone_id);

	CREATE TABLE IF NOT EXISTS zones (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS sub_zones (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		zone_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		UNIQUE(zone_id, name)
	);

	CREATE TABLE IF NOT EXISTS fee_catalog (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_type TEXT NOT NULL,
		category TEXT NOT NULL,
		amount TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		UNIQUE(entity_type, category)
	);

	CREATE TABLE IF NOT EXISTS bills (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bill_type TEXT NOT NULL,
		reference_id INTEGER NOT NULL,
		status TEXT NOT NULL,
		amount TEXT NOT NULL,
		due_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bills_payer ON bills(bill_type, reference_id);

	CREATE TABLE IF NOT EXISTS payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bill_id INTEGER NOT NULL,
		amount_paid TEXT NOT NULL,
		payment_method TEXT NOT NULL DEFAULT '',
		payment_status TEXT NOT NULL,
		payment_date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_bill ON payments(bill_id);

	CREATE TABLE IF NOT EXISTS bill_adjustments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target_type TEXT NOT NULL,
		target_id INTEGER NOT NULL,
		delta_kind TEXT NOT NULL,
		delta_value TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_adjustments_target ON bill_adjustments(target_type, target_id);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		actor_id TEXT NOT NULL DEFAULT '',
		actor_name TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		table_name TEXT NOT NULL,
		record_id INTEGER NOT NULL,
		old_values TEXT NOT NULL DEFAULT '',
		new_values TEXT NOT NULL DEFAULT '',
		ip TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_record ON audit_log(table_name, record_id);

	CREATE TABLE IF NOT EXISTS account_counters (
		kind TEXT PRIMARY KEY,
		last INTEGER NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is the common surface of *sql.DB and *sql.Tx the query helpers use.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTION SCOPE
// =============================================================================

// WithTx executes fn within a database transaction. A deadline expiring
// mid-transaction is reported as ledger.ErrStorageTimeout after rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx billing.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txSession{tx: sqlTx}); err != nil {
		return storageErr(err)
	}
	return storageErr(sqlTx.Commit())
}

// storageErr maps driver/context failures onto the ledger taxonomy.
// Errors that already belong to the domain pass through untouched.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ledger.ErrStorageTimeout, err)
	}
	var driverErr sqlite3.Error
	if errors.As(err, &driverErr) {
		return fmt.Errorf("%w: %v", ledger.ErrStorageFailure, err)
	}
	return err
}

// txSession adapts a *sql.Tx to billing.Tx.
type txSession struct {
	tx *sql.Tx
}

var _ billing.Tx = (*txSession)(nil)

func (t *txSession) GetPayer(ctx context.Context, ref ledger.PayerRef) (*ledger.Payer, error) {
	return getPayer(ctx, t.tx, ref)
}
func (t *txSession) ActiveNameTaken(ctx context.Context, kind ledger.PayerKind, name string, excludeID int64) (bool, error) {
	return activeNameTaken(ctx, t.tx, kind, name, excludeID)
}
func (t *txSession) ListPayers(ctx context.Context, kind ledger.PayerKind) ([]ledger.Payer, error) {
	return listPayers(ctx, t.tx, kind)
}
func (t *txSession) NextAccountNumber(ctx context.Context, kind ledger.PayerKind) (string, error) {
	return nextAccountNumber(ctx, t.tx, kind)
}
func (t *txSession) InsertPayer(ctx context.Context, p *ledger.Payer) error {
	return insertPayer(ctx, t.tx, p)
}
func (t *txSession) UpdatePayer(ctx context.Context, p *ledger.Payer) error {
	return updatePayer(ctx, t.tx, p)
}
func (t *txSession) DeletePayer(ctx context.Context, ref ledger.PayerRef) (int64, error) {
	return deletePayer(ctx, t.tx, ref)
}
func (t *txSession) ZoneExists(ctx context.Context, id int64) (bool, error) {
	return zoneExists(ctx, t.tx, id)
}
func (t *txSession) SubZoneInZone(ctx context.Context, subZoneID, zoneID int64) (bool, error) {
	return subZoneInZone(ctx, t.tx, subZoneID, zoneID)
}
func (t *txSession) SaveZone(ctx context.Context, z *ledger.Zone) error {
	return saveZone(ctx, t.tx, z)
}
func (t *txSession) SaveSubZone(ctx context.Context, sz *ledger.SubZone) error {
	return saveSubZone(ctx, t.tx, sz)
}
func (t *txSession) ListZones(ctx context.Context) ([]ledger.Zone, error) {
	return listZones(ctx, t.tx)
}
func (t *txSession) ListSubZones(ctx context.Context, zoneID int64) ([]ledger.SubZone, error) {
	return listSubZones(ctx, t.tx, zoneID)
}
func (t *txSession) ActiveFee(ctx context.Context, entityType, category string) (decimal.Decimal, bool, error) {
	return activeFee(ctx, t.tx, entityType, category)
}
func (t *txSession) SaveFee(ctx context.Context, f *ledger.Fee) error {
	return saveFee(ctx, t.tx, f)
}
func (t *txSession) ListFees(ctx context.Context) ([]ledger.Fee, error) {
	return listFees(ctx, t.tx)
}
func (t *txSession) GetBill(ctx context.Context, id int64) (*ledger.Bill, error) {
	return getBill(ctx, t.tx, id)
}
func (t *txSession) InsertBill(ctx context.Context, b *ledger.Bill) error {
	return insertBill(ctx, t.tx, b)
}
func (t *txSession) InsertPayment(ctx context.Context, p *ledger.Payment) error {
	return insertPayment(ctx, t.tx, p)
}
func (t *txSession) InsertAdjustment(ctx context.Context, a *ledger.Adjustment) error {
	return insertAdjustment(ctx, t.tx, a)
}
func (t *txSession) CountBills(ctx context.Context, ref ledger.PayerRef) (int, error) {
	return countBills(ctx, t.tx, ref)
}
func (t *txSession) SuccessfulPayments(ctx context.Context, ref ledger.PayerRef) (int, decimal.Decimal, error) {
	return successfulPayments(ctx, t.tx, ref)
}
func (t *txSession) CountAdjustments(ctx context.Context, ref ledger.PayerRef) (int, error) {
	return countAdjustments(ctx, t.tx, ref)
}
func (t *txSession) DeletePayments(ctx context.Context, ref ledger.PayerRef) (int64, error) {
	return deletePayments(ctx, t.tx, ref)
}
func (t *txSession) DeleteAdjustments(ctx context.Context, ref ledger.PayerRef) (int64, error) {
	return deleteAdjustments(ctx, t.tx, ref)
}
func (t *txSession) DeleteBills(ctx context.Context, ref ledger.PayerRef) (int64, error) {
	return deleteBills(ctx, t.tx, ref)
}
func (t *txSession) AppendAudit(ctx context.Context, e *ledger.AuditEntry) error {
	return appendAudit(ctx, t.tx, e)
}
func (t *txSession) ListAuditEntries(ctx context.Context, table string, recordID int64) ([]ledger.AuditEntry, error) {
	return listAuditEntries(ctx, t.tx, table, recordID)
}

// =============================================================================
// DIRECT (AUTO-COMMIT) METHODS
// =============================================================================

// Direct reads and single-statement writes route through storageErr too, so
// a deadline expiring outside WithTx surfaces as the same taxonomy error.

func (s *Store) GetPayer(ctx context.Context, ref ledger.PayerRef) (*ledger.Payer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := getPayer(ctx, s.db, ref)
	return p, storageErr(err)
}

func (s *Store) ActiveNameTaken(ctx context.Context, kind ledger.PayerKind, name string, excludeID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	taken, err := activeNameTaken(ctx, s.db, kind, name, excludeID)
	return taken, storageErr(err)
}

func (s *Store) ListPayers(ctx context.Context, kind ledger.PayerKind) ([]ledger.Payer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payers, err := listPayers(ctx, s.db, kind)
	return payers, storageErr(err)
}

func (s *Store) NextAccountNumber(ctx context.Context, kind ledger.PayerKind) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	number, err := nextAccountNumber(ctx, s.db, kind)
	return number, storageErr(err)
}

func (s *Store) InsertPayer(ctx context.Context, p *ledger.Payer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return storageErr(insertPayer(ctx, s.db, p))
}

func (s *Store) UpdatePayer(ctx context.Context, p *ledger.Payer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return storageErr(updatePayer(ctx, s.db, p))
}

func (s *Store) DeletePayer(ctx context.Context, ref ledger.PayerRef) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := deletePayer(ctx, s.db, ref)
	return n, storageErr(err)
}

func (s *Store) ZoneExists(ctx context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ok, err := zoneExists(ctx, s.db, id)
	return ok, storageErr(err)
}

func (s *Store) SubZoneInZone(ctx context.Context, subZoneID, zoneID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ok, err := subZoneInZone(ctx, s.db, subZoneID, zoneID)
	return ok, storageErr(err)
}

func (s *Store) SaveZone(ctx context.Context, z *ledger.Zone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return storageErr(saveZone(ctx, s.db, z))
}

func (s *Store) SaveSubZone(ctx context.Context, sz *ledger.SubZone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return storageErr(saveSubZone(ctx, s.db, sz))
}

func (s *Store) ListZones(ctx context.Context) ([]ledger.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	zones, err := listZones(ctx, s.db)
	return zones, storageErr(err)
}

func (s *Store) ListSubZones(ctx context.Context, zoneID int64) ([]ledger.SubZone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subZones, err := listSubZones(ctx, s.db, zoneID)
	return subZones, storageErr(err)
}

func (s *Store) ActiveFee(ctx context.Context, entityType, category string) (decimal.Decimal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fee, ok, err := activeFee(ctx, s.db, entityType, category)
	return fee, ok, storageErr(err)
}

func (s *Store) SaveFee(ctx context.Context, f *ledger.Fee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return storageErr(saveFee(ctx, s.db, f))
}

func (s *Store) ListFees(ctx context.Context) ([]ledger.Fee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fees, err := listFees(ctx, s.db)
	return fees, storageErr(err)
}

func (s *Store) GetBill(ctx context.Context, id int64) (*ledger.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, err := getBill(ctx, s.db, id)
	return b, storageErr(err)
}

func (s *Store) InsertBill(ctx context.Context, b *ledger.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return storageErr(insertBill(ctx, s.db, b))
}

func (s *Store) InsertPayment(ctx context.Context, p *ledger.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return storageErr(insertPayment(ctx, s.db, p))
}

func (s *Store) InsertAdjustment(ctx context.Context, a *ledger.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return storageErr(insertAdjustment(ctx, s.db, a))
}

func (s *Store) CountBills(ctx context.Context, ref ledger.PayerRef) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, err := countBills(ctx, s.db, ref)
	return n, storageErr(err)
}

func (s *Store) SuccessfulPayments(ctx context.Context, ref ledger.PayerRef) (int, decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count, total, err := successfulPayments(ctx, s.db, ref)
	return count, total, storageErr(err)
}

func (s *Store) CountAdjustments(ctx context.Context, ref ledger.PayerRef) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, err := countAdjustments(ctx, s.db, ref)
	return n, storageErr(err)
}

func (s *Store) DeletePayments(ctx context.Context, ref ledger.PayerRef) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := deletePayments(ctx, s.db, ref)
	return n, storageErr(err)
}

func (s *Store) DeleteAdjustments(ctx context.Context, ref ledger.PayerRef) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := deleteAdjustments(ctx, s.db, ref)
	return n, storageErr(err)
}

func (s *Store) DeleteBills(ctx context.Context, ref ledger.PayerRef) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := deleteBills(ctx, s.db, ref)
	return n, storageErr(err)
}

func (s *Store) AppendAudit(ctx context.Context, e *ledger.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return storageErr(appendAudit(ctx, s.db, e))
}

func (s *Store) ListAuditEntries(ctx context.Context, table string, recordID int64) ([]ledger.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := listAuditEntries(ctx, s.db, table, recordID)
	return entries, storageErr(err)
}
