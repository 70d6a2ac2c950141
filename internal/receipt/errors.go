package receipt

import "errors"

// Ingestion failure taxonomy. Pipeline errors wrap one of these and the underlying cause,
// so errors.Is works for both.
var (
	ErrExtractionFailed     = errors.New("extraction failed")
	ErrClassificationFailed = errors.New("classification failed")
	ErrPersistenceFailed    = errors.New("persistence failed")
)

var (
	// ErrInvalidReceipt is returned when a new receipt breaks the data model invariants
	ErrInvalidReceipt = errors.New("invalid receipt")
	// ErrNotInitialized is returned by BoltStore when a collection was dropped and not recreated
	ErrNotInitialized = errors.New("collection not initialized")
)

// Error kinds reported to API clients
const (
	KindExtractionFailed     = "extraction_failed"
	KindClassificationFailed = "classification_failed"
	KindPersistenceFailed    = "persistence_failed"
	KindInvalidReceipt       = "invalid_receipt"
	KindInternal             = "internal"
)

// ErrorKind maps an error returned by Service onto a stable kind string
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrExtractionFailed):
		return KindExtractionFailed
	case errors.Is(err, ErrClassificationFailed):
		return KindClassificationFailed
	case errors.Is(err, ErrPersistenceFailed):
		return KindPersistenceFailed
	case errors.Is(err, ErrInvalidReceipt):
		return KindInvalidReceipt
	default:
		return KindInternal
	}
}
