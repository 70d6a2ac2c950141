package receipt

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS receipts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		total_price REAL NOT NULL,
		date_scanned TEXT NOT NULL,
		category TEXT NOT NULL,
		is_recurring INTEGER NOT NULL DEFAULT 0,
		recurrence_type TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_receipts_date_scanned ON receipts(date_scanned)`,
	`CREATE TABLE IF NOT EXISTS paycheck (
		id INTEGER PRIMARY KEY,
		amount REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS budget (
		id INTEGER PRIMARY KEY,
		amount REAL NOT NULL
	)`,
}

const receiptColumns = `id, total_price, date_scanned, category, is_recurring, recurrence_type`

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db         *sql.DB
	timeSource TimeSource
}

// NewSQLiteStore opens (creating if needed) the SQLite database at path and initializes its tables
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithDeps(path, &defaultTimeSource{})
}

// NewSQLiteStoreWithDeps creates a SQLiteStore with a custom time source for testing
func NewSQLiteStoreWithDeps(path string, timeSrc TimeSource) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	// One connection gives a single writer and keeps DDL visible to every query
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}

	s := &SQLiteStore{db: db, timeSource: timeSrc}
	if err := s.Initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Initialize creates the receipts, paycheck and budget tables if they are missing
func (s *SQLiteStore) Initialize() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning schema transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range sqliteSchema {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema: %w", err)
	}
	return nil
}

// InsertReceipt saves a new receipt and returns it with its assigned ID
func (s *SQLiteStore) InsertReceipt(n NewReceipt) (*Receipt, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	r := n.receipt(0, today(s.timeSource))

	res, err := s.db.Exec(
		`INSERT INTO receipts (total_price, date_scanned, category, is_recurring, recurrence_type) VALUES (?, ?, ?, ?, ?)`,
		r.TotalPrice, r.DateScanned.String(), r.Category, r.IsRecurring,
		sql.NullString{String: string(r.RecurrenceType), Valid: r.RecurrenceType != ""},
	)
	if err != nil {
		return nil, fmt.Errorf("inserting receipt: %w", err)
	}

	r.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading receipt id: %w", err)
	}
	return r, nil
}

// ListReceipts returns all receipts, recurring ones last
func (s *SQLiteStore) ListReceipts() ([]*Receipt, error) {
	return s.queryReceipts(`SELECT ` + receiptColumns + ` FROM receipts ORDER BY is_recurring ASC, date_scanned DESC, id DESC`)
}

// ListReceiptsSince returns receipts dated on or after cutoff
func (s *SQLiteStore) ListReceiptsSince(cutoff civil.Date) ([]*Receipt, error) {
	return s.queryReceipts(`SELECT `+receiptColumns+` FROM receipts WHERE date_scanned >= ? ORDER BY id`, cutoff.String())
}

func (s *SQLiteStore) queryReceipts(query string, args ...any) ([]*Receipt, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying receipts: %w", err)
	}
	defer rows.Close()

	receipts := make([]*Receipt, 0)
	for rows.Next() {
		var (
			r          Receipt
			date       string
			recurrence sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.TotalPrice, &date, &r.Category, &r.IsRecurring, &recurrence); err != nil {
			return nil, fmt.Errorf("scanning receipt: %w", err)
		}
		r.DateScanned, err = civil.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("parsing date of receipt %d: %w", r.ID, err)
		}
		r.RecurrenceType = RecurrenceType(recurrence.String)
		receipts = append(receipts, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating receipts: %w", err)
	}
	return receipts, nil
}

// GetPaycheck returns the paycheck amount, zero when none was saved
func (s *SQLiteStore) GetPaycheck() (decimal.Decimal, error) {
	return s.getSingleton("paycheck")
}

// SetPaycheck overwrites the paycheck amount
func (s *SQLiteStore) SetPaycheck(amount decimal.Decimal) error {
	return s.setSingleton("paycheck", amount)
}

// GetBudget returns the budget amount, zero when none was saved
func (s *SQLiteStore) GetBudget() (decimal.Decimal, error) {
	return s.getSingleton("budget")
}

// SetBudget overwrites the budget amount
func (s *SQLiteStore) SetBudget(amount decimal.Decimal) error {
	return s.setSingleton("budget", amount)
}

// table is always one of the constant singleton table names
func (s *SQLiteStore) getSingleton(table string) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := s.db.QueryRow(fmt.Sprintf(`SELECT amount FROM %s WHERE id = ?`, table), singletonID).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("reading %s: %w", table, err)
	}
	return amount, nil
}

func (s *SQLiteStore) setSingleton(table string, amount decimal.Decimal) error {
	_, err := s.db.Exec(
		fmt.Sprintf(`INSERT INTO %s (id, amount) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET amount = excluded.amount`, table),
		singletonID, amount,
	)
	if err != nil {
		return fmt.Errorf("writing %s: %w", table, err)
	}
	return nil
}

// DropReceipts drops the receipts table
func (s *SQLiteStore) DropReceipts() error {
	return s.dropTable("receipts")
}

// DropPaycheck drops the paycheck table
func (s *SQLiteStore) DropPaycheck() error {
	return s.dropTable("paycheck")
}

// DropBudget drops the budget table
func (s *SQLiteStore) DropBudget() error {
	return s.dropTable("budget")
}

func (s *SQLiteStore) dropTable(table string) error {
	if _, err := s.db.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)); err != nil {
		return fmt.Errorf("dropping %s: %w", table, err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
