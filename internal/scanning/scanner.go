package scanning

import (
	"context"
	"errors"
)

// ErrNoText is returned when the OCR service finds no text block in an image
var ErrNoText = errors.New("no text found in image")

// ErrUnsupportedImage is returned when an upload is empty or cannot be decoded
var ErrUnsupportedImage = errors.New("unsupported image")

// TextExtractor defines the interface for OCR services
type TextExtractor interface {
	// ExtractText returns the raw text found in a receipt image
	ExtractText(ctx context.Context, imageData []byte, contentType string) (string, error)
	// Close releases any resources held by the extractor
	Close() error
}

// Classifier defines the interface for language-model completion services
type Classifier interface {
	// Complete sends a prompt and returns the raw completion text
	Complete(ctx context.Context, prompt string) (string, error)
	// Close releases any resources held by the classifier
	Close() error
}
