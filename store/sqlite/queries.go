// queries.go - Query helpers shared by the direct methods and txSession.
//
// Every helper takes a dbtx so the same SQL runs identically inside and
// outside a transaction. Get* helpers return (nil, nil) on sql.ErrNoRows
// per the billing.Tx convention.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/munirev/revenue-engine/ledger"
)

const timeLayout = time.RFC3339

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// PAYERS
// =============================================================================

const payerColumns = `id, kind, account_number, name, owner_name, telephone,
	payer_type, category, location_text, latitude, longitude,
	old_bill, previous_payments, arrears, current_bill, amount_payable,
	status, zone_id, sub_zone_id, created_by, created_at, updated_at`

func getPayer(ctx context.Context, db dbtx, ref ledger.PayerRef) (*ledger.Payer, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+payerColumns+` FROM payers WHERE kind = ? AND id = ?`,
		string(ref.Kind), ref.ID)
	return scanPayerRow(row)
}

// activeNameTaken reports whether another Active payer of the kind already
// uses the name. Inactive and suspended rows never block a name.
func activeNameTaken(ctx context.Context, db dbtx, kind ledger.PayerKind, name string, excludeID int64) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payers
		 WHERE kind = ? AND name = ? AND status = ? AND id <> ?`,
		string(kind), name, string(ledger.StatusActive), excludeID).Scan(&count)
	return count > 0, err
}

func listPayers(ctx context.Context, db dbtx, kind ledger.PayerKind) ([]ledger.Payer, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+payerColumns+` FROM payers WHERE kind = ? ORDER BY id`,
		string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payers []ledger.Payer
	for rows.Next() {
		p, err := scanPayer(rows)
		if err != nil {
			return nil, err
		}
		payers = append(payers, p)
	}
	return payers, rows.Err()
}

func scanPayerRow(row *sql.Row) (*ledger.Payer, error) {
	p, err := scanPayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPayer(sc scanner) (ledger.Payer, error) {
	var (
		p                  ledger.Payer
		kind               string
		lat, lon           sql.NullFloat64
		oldBill, prevPay   string
		arrears, current   string
		payable            string
		status             string
		subZoneID          sql.NullInt64
		createdAt, updated string
	)

	err := sc.Scan(
		&p.ID, &kind, &p.AccountNumber, &p.Name, &p.OwnerName, &p.Telephone,
		&p.Type, &p.Category, &p.LocationText, &lat, &lon,
		&oldBill, &prevPay, &arrears, &current, &payable,
		&status, &p.ZoneID, &subZoneID, &p.CreatedBy, &createdAt, &updated,
	)
	if err != nil {
		return p, err
	}

	p.Kind = ledger.PayerKind(kind)
	p.Status = ledger.PayerStatus(status)
	if lat.Valid {
		p.Latitude = &lat.Float64
	}
	if lon.Valid {
		p.Longitude = &lon.Float64
	}
	if subZoneID.Valid {
		p.SubZoneID = &subZoneID.Int64
	}
	if p.Ledger.OldBill, err = parseMoney("old_bill", oldBill); err != nil {
		return p, err
	}
	if p.Ledger.PreviousPayments, err = parseMoney("previous_payments", prevPay); err != nil {
		return p, err
	}
	if p.Ledger.Arrears, err = parseMoney("arrears", arrears); err != nil {
		return p, err
	}
	if p.Ledger.CurrentBill, err = parseMoney("current_bill", current); err != nil {
		return p, err
	}
	if p.AmountPayable, err = parseMoney("amount_payable", payable); err != nil {
		return p, err
	}
	p.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	p.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return p, nil
}

func nextAccountNumber(ctx context.Context, db dbtx, kind ledger.PayerKind) (string, error) {
	if _, err := db.ExecContext(ctx,
		`INSERT INTO account_counters (kind, last) VALUES (?, 0)
		 ON CONFLICT(kind) DO NOTHING`, string(kind)); err != nil {
		return "", err
	}
	if _, err := db.ExecContext(ctx,
		`UPDATE account_counters SET last = last + 1 WHERE kind = ?`, string(kind)); err != nil {
		return "", err
	}

	var last int64
	if err := db.QueryRowContext(ctx,
		`SELECT last FROM account_counters WHERE kind = ?`, string(kind)).Scan(&last); err != nil {
		return "", err
	}
	return ledger.FormatAccountNumber(kind, last), nil
}

func insertPayer(ctx context.Context, db dbtx, p *ledger.Payer) error {
	res, err := db.ExecContext(ctx, `
		INSERT INTO payers
		(kind, account_number, name, owner_name, telephone, payer_type, category,
		 location_text, latitude, longitude,
		 old_bill, previous_payments, arrears, current_bill, amount_payable,
		 status, zone_id, sub_zone_id, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(p.Kind), p.AccountNumber, p.Name, p.OwnerName, p.Telephone,
		p.Type, p.Category, p.LocationText,
		nullFloat(p.Latitude), nullFloat(p.Longitude),
		p.Ledger.OldBill.String(), p.Ledger.PreviousPayments.String(),
		p.Ledger.Arrears.String(), p.Ledger.CurrentBill.String(),
		p.AmountPayable.String(),
		string(p.Status), p.ZoneID, nullInt(p.SubZoneID), p.CreatedBy,
		p.CreatedAt.Format(timeLayout), p.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return err
	}
	p.ID, err = res.LastInsertId()
	return err
}

func updatePayer(ctx context.Context, db dbtx, p *ledger.Payer) error {
	_, err := db.ExecContext(ctx, `
		UPDATE payers SET
			name = ?, owner_name = ?, telephone = ?, payer_type = ?, category = ?,
			location_text = ?, latitude = ?, longitude = ?,
			old_bill = ?, previous_payments = ?, arrears = ?, current_bill = ?,
			amount_payable = ?, status = ?, zone_id = ?, sub_zone_id = ?, updated_at = ?
		WHERE kind = ? AND id = ?`,
		p.Name, p.OwnerName, p.Telephone, p.Type, p.Category,
		p.LocationText, nullFloat(p.Latitude), nullFloat(p.Longitude),
		p.Ledger.OldBill.String(), p.Ledger.PreviousPayments.String(),
		p.Ledger.Arrears.String(), p.Ledger.CurrentBill.String(),
		p.AmountPayable.String(), string(p.Status), p.ZoneID, nullInt(p.SubZoneID),
		p.UpdatedAt.Format(timeLayout),
		string(p.Kind), p.ID,
	)
	return err
}

func deletePayer(ctx context.Context, db dbtx, ref ledger.PayerRef) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM payers WHERE kind = ? AND id = ?`, string(ref.Kind), ref.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// =============================================================================
// ZONES
// =============================================================================

func zoneExists(ctx context.Context, db dbtx, id int64) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM zones WHERE id = ?`, id).Scan(&count)
	return count > 0, err
}

func subZoneInZone(ctx context.Context, db dbtx, subZoneID, zoneID int64) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sub_zones WHERE id = ? AND zone_id = ?`,
		subZoneID, zoneID).Scan(&count)
	return count > 0, err
}

func saveZone(ctx context.Context, db dbtx, z *ledger.Zone) error {
	if z.ID != 0 {
		_, err := db.ExecContext(ctx,
			`UPDATE zones SET name = ? WHERE id = ?`, z.Name, z.ID)
		return err
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO zones (name) VALUES (?)`, z.Name)
	if err != nil {
		return err
	}
	z.ID, err = res.LastInsertId()
	return err
}

func saveSubZone(ctx context.Context, db dbtx, sz *ledger.SubZone) error {
	if sz.ID != 0 {
		_, err := db.ExecContext(ctx,
			`UPDATE sub_zones SET zone_id = ?, name = ? WHERE id = ?`,
			sz.ZoneID, sz.Name, sz.ID)
		return err
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO sub_zones (zone_id, name) VALUES (?, ?)`, sz.ZoneID, sz.Name)
	if err != nil {
		return err
	}
	sz.ID, err = res.LastInsertId()
	return err
}

func listZones(ctx context.Context, db dbtx) ([]ledger.Zone, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name FROM zones ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []ledger.Zone
	for rows.Next() {
		var z ledger.Zone
		if err := rows.Scan(&z.ID, &z.Name); err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

func listSubZones(ctx context.Context, db dbtx, zoneID int64) ([]ledger.SubZone, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, zone_id, name FROM sub_zones WHERE zone_id = ? ORDER BY name`, zoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subZones []ledger.SubZone
	for rows.Next() {
		var sz ledger.SubZone
		if err := rows.Scan(&sz.ID, &sz.ZoneID, &sz.Name); err != nil {
			return nil, err
		}
		subZones = append(subZones, sz)
	}
	return subZones, rows.Err()
}

// =============================================================================
// FEE CATALOG
// =============================================================================

func activeFee(ctx context.Context, db dbtx, entityType, category string) (decimal.Decimal, bool, error) {
	var amount string
	err := db.QueryRowContext(ctx,
		`SELECT amount FROM fee_catalog WHERE entity_type = ? AND category = ? AND active = 1`,
		entityType, category).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	fee, err := parseMoney("amount", amount)
	if err != nil {
		return decimal.Zero, false, err
	}
	return fee, true, nil
}

func saveFee(ctx context.Context, db dbtx, f *ledger.Fee) error {
	res, err := db.ExecContext(ctx, `
		INSERT INTO fee_catalog (entity_type, category, amount, active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entity_type, category) DO UPDATE SET
			amount = excluded.amount,
			active = excluded.active`,
		f.EntityType, f.Category, f.Amount.String(), boolInt(f.Active))
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil && f.ID == 0 {
		f.ID = id
	}
	return nil
}

func listFees(ctx context.Context, db dbtx) ([]ledger.Fee, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, entity_type, category, amount, active FROM fee_catalog
		 ORDER BY entity_type, category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fees []ledger.Fee
	for rows.Next() {
		var (
			f      ledger.Fee
			amount string
			active int
		)
		if err := rows.Scan(&f.ID, &f.EntityType, &f.Category, &amount, &active); err != nil {
			return nil, err
		}
		if f.Amount, err = parseMoney("amount", amount); err != nil {
			return nil, err
		}
		f.Active = active != 0
		fees = append(fees, f)
	}
	return fees, rows.Err()
}

// =============================================================================
// BILLS, PAYMENTS, ADJUSTMENTS
// =============================================================================

func getBill(ctx context.Context, db dbtx, id int64) (*ledger.Bill, error) {
	var (
		b         ledger.Bill
		billType  string
		amount    string
		status    string
		dueDate   sql.NullString
		createdAt string
	)
	err := db.QueryRowContext(ctx,
		`SELECT id, bill_type, reference_id, status, amount, due_date, created_at
		 FROM bills WHERE id = ?`, id).
		Scan(&b.ID, &billType, &b.Payer.ID, &status, &amount, &dueDate, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	b.Payer.Kind = ledger.PayerKind(billType)
	b.Status = ledger.BillStatus(status)
	if b.Amount, err = parseMoney("amount", amount); err != nil {
		return nil, err
	}
	if dueDate.Valid {
		t, _ := time.Parse(timeLayout, dueDate.String)
		b.DueDate = &t
	}
	b.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &b, nil
}

func insertBill(ctx context.Context, db dbtx, b *ledger.Bill) error {
	var dueDate *string
	if b.DueDate != nil {
		d := b.DueDate.Format(timeLayout)
		dueDate = &d
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO bills (bill_type, reference_id, status, amount, due_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(b.Payer.Kind), b.Payer.ID, string(b.Status), b.Amount.String(),
		dueDate, b.CreatedAt.Format(timeLayout))
	if err != nil {
		return err
	}
	b.ID, err = res.LastInsertId()
	return err
}

func insertPayment(ctx context.Context, db dbtx, p *ledger.Payment) error {
	res, err := db.ExecContext(ctx, `
		INSERT INTO payments (bill_id, amount_paid, payment_method, payment_status, payment_date)
		VALUES (?, ?, ?, ?, ?)`,
		p.BillID, p.AmountPaid.String(), p.Method, string(p.Status),
		p.PaymentDate.Format(timeLayout))
	if err != nil {
		return err
	}
	p.ID, err = res.LastInsertId()
	return err
}

func insertAdjustment(ctx context.Context, db dbtx, a *ledger.Adjustment) error {
	res, err := db.ExecContext(ctx, `
		INSERT INTO bill_adjustments (target_type, target_id, delta_kind, delta_value, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(a.Target.Kind), a.Target.ID, string(a.Kind), a.Delta.String(),
		a.Reason, a.CreatedAt.Format(timeLayout))
	if err != nil {
		return err
	}
	a.ID, err = res.LastInsertId()
	return err
}

func countBills(ctx context.Context, db dbtx, ref ledger.PayerRef) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bills WHERE bill_type = ? AND reference_id = ?`,
		string(ref.Kind), ref.ID).Scan(&count)
	return count, err
}

// successfulPayments counts and totals Successful payments joined through
// the payer's bills. Amounts are summed in Go with decimals; SQLite SUM
// over TEXT would fall back to float arithmetic.
func successfulPayments(ctx context.Context, db dbtx, ref ledger.PayerRef) (int, decimal.Decimal, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT p.amount_paid
		FROM payments p
		JOIN bills b ON p.bill_id = b.id
		WHERE b.bill_type = ? AND b.reference_id = ? AND p.payment_status = ?`,
		string(ref.Kind), ref.ID, string(ledger.PaymentSuccessful))
	if err != nil {
		return 0, decimal.Zero, err
	}
	defer rows.Close()

	count, total := 0, decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return 0, decimal.Zero, err
		}
		d, err := parseMoney("amount_paid", amount)
		if err != nil {
			return 0, decimal.Zero, err
		}
		count++
		total = total.Add(d)
	}
	return count, total, rows.Err()
}

func countAdjustments(ctx context.Context, db dbtx, ref ledger.PayerRef) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bill_adjustments WHERE target_type = ? AND target_id = ?`,
		string(ref.Kind), ref.ID).Scan(&count)
	return count, err
}

func deletePayments(ctx context.Context, db dbtx, ref ledger.PayerRef) (int64, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM payments WHERE bill_id IN
			(SELECT id FROM bills WHERE bill_type = ? AND reference_id = ?)`,
		string(ref.Kind), ref.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func deleteAdjustments(ctx context.Context, db dbtx, ref ledger.PayerRef) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM bill_adjustments WHERE target_type = ? AND target_id = ?`,
		string(ref.Kind), ref.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func deleteBills(ctx context.Context, db dbtx, ref ledger.PayerRef) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM bills WHERE bill_type = ? AND reference_id = ?`,
		string(ref.Kind), ref.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func appendAudit(ctx context.Context, db dbtx, e *ledger.AuditEntry) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO audit_log
		(id, actor_id, actor_name, action, table_name, record_id,
		 old_values, new_values, ip, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ActorID, e.ActorName, string(e.Action), e.Table, e.RecordID,
		e.OldValues, e.NewValues, e.IP, e.UserAgent,
		e.CreatedAt.Format(timeLayout))
	return err
}

func listAuditEntries(ctx context.Context, db dbtx, table string, recordID int64) ([]ledger.AuditEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, actor_id, actor_name, action, table_name, record_id,
		       old_values, new_values, ip, user_agent, created_at
		FROM audit_log
		WHERE table_name = ? AND record_id = ?
		ORDER BY created_at ASC, id ASC`,
		table, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ledger.AuditEntry
	for rows.Next() {
		var (
			e         ledger.AuditEntry
			action    string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorName, &action, &e.Table,
			&e.RecordID, &e.OldValues, &e.NewValues, &e.IP, &e.UserAgent, &createdAt); err != nil {
			return nil, err
		}
		e.Action = ledger.AuditAction(action)
		e.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func parseMoney(column, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed monetary value in %s: %q", column, value)
	}
	return d, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
