package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/zombor/spend-tracker/internal/scanning"
)

// Service handles receipt operations
type Service struct {
	store         Store
	extractor     scanning.TextExtractor
	classifier    scanning.Classifier
	categoryMatch scanning.CategoryMatch
	timeSource    TimeSource

	// mu serializes store writes; OCR and classification run outside it
	mu sync.Mutex
}

// NewService creates a new Service with the default time source
func NewService(store Store, extractor scanning.TextExtractor, classifier scanning.Classifier, match scanning.CategoryMatch) *Service {
	return NewServiceWithDeps(store, extractor, classifier, match, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with a custom time source for testing
func NewServiceWithDeps(store Store, extractor scanning.TextExtractor, classifier scanning.Classifier, match scanning.CategoryMatch, timeSrc TimeSource) *Service {
	return &Service{
		store:         store,
		extractor:     extractor,
		classifier:    classifier,
		categoryMatch: match,
		timeSource:    timeSrc,
	}
}

// Ingest turns one captured image into one persisted receipt.
// Steps run strictly in order: OCR, classification, parsing, insert. Any failure aborts
// without writing and returns an error wrapping ErrExtractionFailed, ErrClassificationFailed
// or ErrPersistenceFailed. Cancelling ctx does not abort an ingestion once it has started.
// Only the final insert is serialized, so a slow model call never holds up manual entry.
func (s *Service) Ingest(ctx context.Context, data []byte, contentType string) (*Receipt, error) {
	ctx = context.WithoutCancel(ctx)

	text, err := s.extractor.ExtractText(ctx, data, contentType)
	if err == nil && strings.TrimSpace(text) == "" {
		err = scanning.ErrNoText
	}
	if err != nil {
		slog.Error("Failed to extract receipt text",
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	completion, err := s.classifier.Complete(ctx, scanning.ClassificationPrompt(text))
	if err != nil {
		slog.Error("Failed to classify receipt", "text_length", len(text), "error", err)
		return nil, fmt.Errorf("%w: %w", ErrClassificationFailed, err)
	}

	parsed := scanning.ParseCompletion(completion, s.categoryMatch)
	if parsed.PriceDefaulted || parsed.CategoryDefaulted {
		slog.Warn("Completion missing expected markers, using defaults",
			"price_defaulted", parsed.PriceDefaulted,
			"category_defaulted", parsed.CategoryDefaulted,
			"completion", completion,
		)
	}

	s.mu.Lock()
	receipt, err := s.store.InsertReceipt(NewReceipt{
		TotalPrice: parsed.TotalPrice,
		Category:   parsed.Category,
		Date:       today(s.timeSource),
	})
	s.mu.Unlock()
	if err != nil {
		slog.Error("Failed to save receipt", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}

	slog.Info("Ingested receipt",
		"id", receipt.ID,
		"total_price", receipt.TotalPrice.StringFixed(2),
		"category", receipt.Category,
	)
	return receipt, nil
}

// AddReceipt stores a manually entered receipt.
// Recurring entries without a recurrence type default to RecurrenceCurrentDate.
func (s *Service) AddReceipt(n NewReceipt) (*Receipt, error) {
	if n.IsRecurring && n.RecurrenceType == "" {
		n.RecurrenceType = RecurrenceCurrentDate
	}
	if n.Date.IsZero() {
		n.Date = today(s.timeSource)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	receipt, err := s.store.InsertReceipt(n)
	if errors.Is(err, ErrInvalidReceipt) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}
	return receipt, nil
}

// ListReceipts returns all receipts in display order
func (s *Service) ListReceipts() ([]*Receipt, error) {
	receipts, err := s.store.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// GetPaycheck returns the configured monthly income
func (s *Service) GetPaycheck() (decimal.Decimal, error) {
	amount, err := s.store.GetPaycheck()
	if err != nil {
		return decimal.Zero, fmt.Errorf("getting paycheck: %w", err)
	}
	return amount, nil
}

// SetPaycheck overwrites the monthly income; negative amounts are stored as zero
func (s *Service) SetPaycheck(amount decimal.Decimal) (decimal.Decimal, error) {
	amount = clampAmount(amount)
	if err := s.store.SetPaycheck(amount); err != nil {
		return decimal.Zero, fmt.Errorf("setting paycheck: %w", err)
	}
	return amount, nil
}

// GetBudget returns the configured savings goal
func (s *Service) GetBudget() (decimal.Decimal, error) {
	amount, err := s.store.GetBudget()
	if err != nil {
		return decimal.Zero, fmt.Errorf("getting budget: %w", err)
	}
	return amount, nil
}

// SetBudget overwrites the savings goal; negative amounts are stored as zero
func (s *Service) SetBudget(amount decimal.Decimal) (decimal.Decimal, error) {
	amount = clampAmount(amount)
	if err := s.store.SetBudget(amount); err != nil {
		return decimal.Zero, fmt.Errorf("setting budget: %w", err)
	}
	return amount, nil
}

// Categories returns the closed list of categories offered for classification
func (s *Service) Categories() []string {
	return append([]string(nil), scanning.Categories...)
}

func clampAmount(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

var nonAmountChars = regexp.MustCompile(`[^0-9.\-]+`)

// ParseAmount reads a user-typed amount such as "$1,500.00".
// Anything that is not a positive number after stripping currency formatting becomes zero.
func ParseAmount(text string) decimal.Decimal {
	cleaned := nonAmountChars.ReplaceAllString(text, "")
	amount, err := decimal.NewFromString(cleaned)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero
	}
	return amount
}
