package receipt

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// RecurrenceType says which date a recurring charge is attributed to each period
type RecurrenceType string

const (
	RecurrenceCurrentDate      RecurrenceType = "current_date"
	RecurrenceBeginningOfMonth RecurrenceType = "beginning_of_month"
)

// Valid reports whether t is one of the known recurrence types
func (t RecurrenceType) Valid() bool {
	return t == RecurrenceCurrentDate || t == RecurrenceBeginningOfMonth
}

// Receipt represents one persisted purchase
type Receipt struct {
	ID             int64           `json:"id"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	DateScanned    civil.Date      `json:"date_scanned"`
	Category       string          `json:"category"`
	IsRecurring    bool            `json:"is_recurring"`
	RecurrenceType RecurrenceType  `json:"recurrence_type,omitempty"`
}

// NewReceipt holds the fields supplied when creating a receipt.
// A zero Date means "today" in the local calendar.
type NewReceipt struct {
	TotalPrice     decimal.Decimal `json:"total_price"`
	Category       string          `json:"category"`
	IsRecurring    bool            `json:"is_recurring"`
	RecurrenceType RecurrenceType  `json:"recurrence_type,omitempty"`
	Date           civil.Date      `json:"date_scanned"`
}

// Validate checks the receipt invariants. recurrence_type must be set iff is_recurring.
func (n NewReceipt) Validate() error {
	if n.TotalPrice.IsNegative() {
		return fmt.Errorf("%w: total price must not be negative", ErrInvalidReceipt)
	}
	if strings.TrimSpace(n.Category) == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidReceipt)
	}
	if n.IsRecurring && n.RecurrenceType == "" {
		return fmt.Errorf("%w: recurring receipts need a recurrence type", ErrInvalidReceipt)
	}
	if !n.IsRecurring && n.RecurrenceType != "" {
		return fmt.Errorf("%w: recurrence type set on a non-recurring receipt", ErrInvalidReceipt)
	}
	if n.RecurrenceType != "" && !n.RecurrenceType.Valid() {
		return fmt.Errorf("%w: unknown recurrence type %q", ErrInvalidReceipt, n.RecurrenceType)
	}
	if !n.Date.IsZero() && !n.Date.IsValid() {
		return fmt.Errorf("%w: invalid date %s", ErrInvalidReceipt, n.Date)
	}
	return nil
}

// receipt builds the stored form of n, filling a missing date from today
func (n NewReceipt) receipt(id int64, today civil.Date) *Receipt {
	date := n.Date
	if date.IsZero() {
		date = today
	}
	return &Receipt{
		ID:             id,
		TotalPrice:     n.TotalPrice,
		DateScanned:    date,
		Category:       strings.TrimSpace(n.Category),
		IsRecurring:    n.IsRecurring,
		RecurrenceType: n.RecurrenceType,
	}
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultTimeSource provides the current local time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// today returns the current calendar date in the time source's location
func today(ts TimeSource) civil.Date {
	return civil.DateOf(ts.Now())
}
