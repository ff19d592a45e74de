// catalog.go - Fee catalog and zone reference data.
//
// Both tables are read-mostly from the ledger's perspective: administrators
// refresh them, the billing paths only look rows up.
package ledger

import "github.com/shopspring/decimal"

// Fee maps a (entity type, category) classification to a fee amount.
// Only Active rows participate in fee resolution.
type Fee struct {
	ID         int64
	EntityType string
	Category   string
	Amount     decimal.Decimal
	Active     bool
}

// Zone is a top-level collection area. Every payer belongs to one.
type Zone struct {
	ID   int64
	Name string
}

// SubZone subdivides a zone. A payer's sub-zone must belong to its zone.
type SubZone struct {
	ID     int64
	ZoneID int64
	Name   string
}
