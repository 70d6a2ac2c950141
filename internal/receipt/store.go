package receipt

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Store defines the interface for the local ledger.
// It owns three collections: receipts, the paycheck singleton and the budget singleton.
type Store interface {
	// Initialize creates the collections if they do not exist. Safe to call repeatedly.
	Initialize() error

	// InsertReceipt validates and stores a new receipt under a fresh identifier
	InsertReceipt(n NewReceipt) (*Receipt, error)

	// ListReceipts returns non-recurring receipts before recurring ones,
	// newest date_scanned first within each group
	ListReceipts() ([]*Receipt, error)

	// ListReceiptsSince returns receipts with date_scanned on or after cutoff
	ListReceiptsSince(cutoff civil.Date) ([]*Receipt, error)

	// GetPaycheck returns the configured paycheck, or zero when unset
	GetPaycheck() (decimal.Decimal, error)
	// SetPaycheck overwrites the paycheck singleton
	SetPaycheck(amount decimal.Decimal) error

	// GetBudget returns the configured savings goal, or zero when unset
	GetBudget() (decimal.Decimal, error)
	// SetBudget overwrites the budget singleton
	SetBudget(amount decimal.Decimal) error

	// DropReceipts, DropPaycheck and DropBudget destroy a collection.
	// Administrative only; never called during ingestion or queries.
	DropReceipts() error
	DropPaycheck() error
	DropBudget() error

	// Close closes the underlying database
	Close() error
}

// singletonID is the fixed identifier of the paycheck and budget records
const singletonID = 1
