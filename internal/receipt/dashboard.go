package receipt

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// windowDays is the length of the dashboard's spending window
const windowDays = 30

// Status summarizes spending against income and savings goal
type Status string

const (
	StatusWithinBudget Status = "within_budget"
	StatusOverBudget   Status = "over_budget"
	StatusOverIncome   Status = "over_income"
)

// Summary holds every figure the dashboard shows
type Summary struct {
	Total         decimal.Decimal   `json:"total"`
	DailyTotals   []decimal.Decimal `json:"daily_totals"`
	Paycheck      decimal.Decimal   `json:"paycheck"`
	Budget        decimal.Decimal   `json:"budget"`
	SpendingRatio float64           `json:"spending_ratio"`
	SavingsRatio  float64           `json:"savings_ratio"`
	Status        Status            `json:"status"`
	Overspend     decimal.Decimal   `json:"overspend"`
}

// Dashboard derives spending figures from the store.
// Nothing is cached; every call re-reads the store.
type Dashboard struct {
	store      Store
	timeSource TimeSource
}

// NewDashboard creates a Dashboard with the default time source
func NewDashboard(store Store) *Dashboard {
	return NewDashboardWithDeps(store, &defaultTimeSource{})
}

// NewDashboardWithDeps creates a Dashboard with a custom time source for testing
func NewDashboardWithDeps(store Store, timeSrc TimeSource) *Dashboard {
	return &Dashboard{store: store, timeSource: timeSrc}
}

// recent returns the receipts inside the window along with today's date
func (d *Dashboard) recent() ([]*Receipt, civil.Date, error) {
	now := today(d.timeSource)
	receipts, err := d.store.ListReceiptsSince(now.AddDays(-windowDays))
	if err != nil {
		return nil, now, fmt.Errorf("listing recent receipts: %w", err)
	}
	return receipts, now, nil
}

// TotalLast30Days sums total_price over receipts dated within the last 30 days
func (d *Dashboard) TotalLast30Days() (decimal.Decimal, error) {
	receipts, _, err := d.recent()
	if err != nil {
		return decimal.Zero, err
	}
	return sumReceipts(receipts), nil
}

// DailyTotals returns 30 buckets, oldest first; today is the last bucket
func (d *Dashboard) DailyTotals() ([]decimal.Decimal, error) {
	receipts, now, err := d.recent()
	if err != nil {
		return nil, err
	}
	return dailyTotals(receipts, now), nil
}

// SpendingRatio is the 30-day total divided by the paycheck, or 0 without a paycheck
func (d *Dashboard) SpendingRatio() (float64, error) {
	total, err := d.TotalLast30Days()
	if err != nil {
		return 0, err
	}
	paycheck, err := d.store.GetPaycheck()
	if err != nil {
		return 0, fmt.Errorf("getting paycheck: %w", err)
	}
	return spendingRatio(total, paycheck), nil
}

// SavingsRatio is the share of the paycheck left after the savings goal, or 0 when
// either the paycheck or the goal is not set
func (d *Dashboard) SavingsRatio() (float64, error) {
	paycheck, err := d.store.GetPaycheck()
	if err != nil {
		return 0, fmt.Errorf("getting paycheck: %w", err)
	}
	budget, err := d.store.GetBudget()
	if err != nil {
		return 0, fmt.Errorf("getting budget: %w", err)
	}
	return savingsRatio(paycheck, budget), nil
}

// Summary computes every dashboard figure from a single read of the store
func (d *Dashboard) Summary() (*Summary, error) {
	receipts, now, err := d.recent()
	if err != nil {
		return nil, err
	}
	paycheck, err := d.store.GetPaycheck()
	if err != nil {
		return nil, fmt.Errorf("getting paycheck: %w", err)
	}
	budget, err := d.store.GetBudget()
	if err != nil {
		return nil, fmt.Errorf("getting budget: %w", err)
	}

	total := sumReceipts(receipts)
	status, overspend := spendingStatus(total, paycheck, budget)

	return &Summary{
		Total:         total,
		DailyTotals:   dailyTotals(receipts, now),
		Paycheck:      paycheck,
		Budget:        budget,
		SpendingRatio: spendingRatio(total, paycheck),
		SavingsRatio:  savingsRatio(paycheck, budget),
		Status:        status,
		Overspend:     overspend,
	}, nil
}

func sumReceipts(receipts []*Receipt) decimal.Decimal {
	total := decimal.Zero
	for _, r := range receipts {
		total = total.Add(r.TotalPrice)
	}
	return total
}

// dailyTotals buckets receipts by age in days; receipts outside the window are dropped
func dailyTotals(receipts []*Receipt, now civil.Date) []decimal.Decimal {
	totals := make([]decimal.Decimal, windowDays)
	for i := range totals {
		totals[i] = decimal.Zero
	}
	for _, r := range receipts {
		idx := windowDays - 1 - now.DaysSince(r.DateScanned)
		if idx < 0 || idx >= windowDays {
			continue
		}
		totals[idx] = totals[idx].Add(r.TotalPrice)
	}
	return totals
}

func spendingRatio(total, paycheck decimal.Decimal) float64 {
	if !paycheck.IsPositive() {
		return 0
	}
	return total.Div(paycheck).InexactFloat64()
}

func savingsRatio(paycheck, budget decimal.Decimal) float64 {
	if !paycheck.IsPositive() || !budget.IsPositive() {
		return 0
	}
	return paycheck.Sub(budget).Div(paycheck).InexactFloat64()
}

// spendingStatus compares the total against income first, then against income minus the savings goal
func spendingStatus(total, paycheck, budget decimal.Decimal) (Status, decimal.Decimal) {
	allowance := paycheck.Sub(budget)
	switch {
	case total.GreaterThan(paycheck):
		return StatusOverIncome, total.Sub(paycheck)
	case total.GreaterThan(allowance):
		return StatusOverBudget, total.Sub(allowance)
	default:
		return StatusWithinBudget, decimal.Zero
	}
}
