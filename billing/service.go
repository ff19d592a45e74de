/*
Package billing orchestrates the revenue ledger's five core operations
over a transactional store:

  CreatePayer          validate, number, compute, persist, audit
  UpdatePayer          validate, recompute, persist, audit
  InspectRelationships count dependent records before destructive actions
  DeletePayer          cascading transactional delete with audit
  ResolveFee           fee catalog lookup

Each operation is request-scoped and synchronous: no background workers,
no in-process caching of ledger state. Concurrency control is the store's
transaction isolation; operations against different payers do not
coordinate.

SEE ALSO:
  - payer.go:     create/update lifecycle
  - inspector.go: relationship inspection
  - executor.go:  cascading deletion
  - audit.go:     best-effort audit recording
*/
package billing

import (
	"log"
	"os"
	"time"
)

// Service exposes the ledger core to CRUD collaborators. The zero value is
// not usable; construct with NewService.
type Service struct {
	Store Store
	Audit *Recorder

	// Now supplies all created_at/updated_at/audit timestamps. Tests
	// substitute a fixed clock.
	Now func() time.Time

	InfoLog  *log.Logger
	ErrorLog *log.Logger
}

// NewService wires a service with default loggers and the wall clock.
func NewService(store Store) *Service {
	errorLog := log.New(os.Stderr, "ERROR\t", log.Ldate|log.Ltime|log.Lshortfile)
	return &Service{
		Store:    store,
		Audit:    NewRecorder(errorLog),
		Now:      func() time.Time { return time.Now().UTC() },
		InfoLog:  log.New(os.Stdout, "INFO\t", log.Ldate|log.Ltime),
		ErrorLog: errorLog,
	}
}
