package scanning

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/avast/retry-go"
)

// RetryPolicy bounds how often an external call is attempted.
// Attempts of 0 or 1 means a single attempt, which is the default.
type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
}

func (p RetryPolicy) enabled() bool {
	return p.Attempts > 1
}

func (p RetryPolicy) do(ctx context.Context, operation string, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(p.Attempts),
		retry.Delay(p.Delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrNoText) && !errors.Is(err, ErrUnsupportedImage)
		}),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("External call failed, retrying",
				"operation", operation,
				"attempt", n+1,
				"max_attempts", p.Attempts,
				"error", err,
			)
		}),
	)
}

// WithExtractorRetry wraps e so failed extractions are retried with exponential backoff.
// A single-attempt policy returns e unchanged.
func WithExtractorRetry(e TextExtractor, p RetryPolicy) TextExtractor {
	if !p.enabled() {
		return e
	}
	return &retryingExtractor{next: e, policy: p}
}

// WithClassifierRetry wraps c so failed completions are retried with exponential backoff.
// A single-attempt policy returns c unchanged.
func WithClassifierRetry(c Classifier, p RetryPolicy) Classifier {
	if !p.enabled() {
		return c
	}
	return &retryingClassifier{next: c, policy: p}
}

type retryingExtractor struct {
	next   TextExtractor
	policy RetryPolicy
}

func (r *retryingExtractor) ExtractText(ctx context.Context, imageData []byte, contentType string) (string, error) {
	var text string
	err := r.policy.do(ctx, "extract_text", func() error {
		var err error
		text, err = r.next.ExtractText(ctx, imageData, contentType)
		return err
	})
	return text, err
}

func (r *retryingExtractor) Close() error {
	return r.next.Close()
}

type retryingClassifier struct {
	next   Classifier
	policy RetryPolicy
}

func (r *retryingClassifier) Complete(ctx context.Context, prompt string) (string, error) {
	var completion string
	err := r.policy.do(ctx, "complete", func() error {
		var err error
		completion, err = r.next.Complete(ctx, prompt)
		return err
	})
	return completion, err
}

func (r *retryingClassifier) Close() error {
	return r.next.Close()
}
