/*
audit.go - Best-effort audit recorder

PURPOSE:
  Appends immutable audit entries for every mutating operation. Audit
  failure is non-fatal to the business operation: the deletion or update is
  primary and the trail is best-effort secondary. A failed write is logged,
  counted, and reported through an optional hook so silent loss of the
  trail stays observable - it never propagates to the caller.
*/
package billing

import (
	"context"
	"encoding/json"
	"log"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/munirev/revenue-engine/ledger"
)

// Recorder appends audit entries and swallows write failures.
type Recorder struct {
	// OnFailure, when set, is invoked with every swallowed audit error.
	// Wire an alert or metric here; losing audit trail silently is a
	// compliance risk.
	OnFailure func(error)

	errorLog *log.Logger
	failures atomic.Int64
}

// NewRecorder creates a recorder that reports failures to errorLog.
func NewRecorder(errorLog *log.Logger) *Recorder {
	return &Recorder{errorLog: errorLog}
}

// Record assigns the entry an id and appends it through tx. Never returns
// an error; failures are logged, counted, and passed to OnFailure.
func (r *Recorder) Record(ctx context.Context, tx Tx, e ledger.AuditEntry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if err := tx.AppendAudit(ctx, &e); err != nil {
		r.failures.Add(1)
		if r.errorLog != nil {
			r.errorLog.Printf("audit write failed (action=%s table=%s record=%d): %v",
				e.Action, e.Table, e.RecordID, err)
		}
		if r.OnFailure != nil {
			r.OnFailure(err)
		}
	}
}

// Failures returns how many audit writes have been swallowed.
func (r *Recorder) Failures() int64 {
	return r.failures.Load()
}

// snapshotJSON serializes a record for old_values/new_values columns.
// Marshal failures degrade to an empty snapshot rather than blocking the
// operation, same policy as the write path.
func snapshotJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
