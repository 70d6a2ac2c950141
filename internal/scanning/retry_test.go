package scanning

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// flakyExtractor fails until failures runs out, then returns text
type flakyExtractor struct {
	failures int
	err      error
	calls    int
	closed   bool
}

func (f *flakyExtractor) ExtractText(ctx context.Context, imageData []byte, contentType string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", f.err
	}
	return "receipt text", nil
}

func (f *flakyExtractor) Close() error {
	f.closed = true
	return nil
}

// flakyClassifier fails until failures runs out, then returns a completion
type flakyClassifier struct {
	failures int
	calls    int
}

func (f *flakyClassifier) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("service unavailable")
	}
	return "TOTAL_PRICE: $1.00", nil
}

func (f *flakyClassifier) Close() error {
	return nil
}

var _ = Describe("Retry", func() {
	var policy RetryPolicy

	BeforeEach(func() {
		policy = RetryPolicy{Attempts: 3, Delay: time.Millisecond}
	})

	Describe("WithExtractorRetry", func() {
		var inner *flakyExtractor

		BeforeEach(func() {
			inner = &flakyExtractor{err: errors.New("connection reset")}
		})

		When("the policy allows a single attempt", func() {
			It("should return the extractor unchanged", func() {
				Expect(WithExtractorRetry(inner, RetryPolicy{Attempts: 1})).To(BeIdenticalTo(inner))
				Expect(WithExtractorRetry(inner, RetryPolicy{})).To(BeIdenticalTo(inner))
			})
		})

		When("the call succeeds on the last attempt", func() {
			BeforeEach(func() {
				inner.failures = 2
			})

			It("should return the text", func() {
				text, err := WithExtractorRetry(inner, policy).ExtractText(context.Background(), []byte("x"), "image/png")
				Expect(err).NotTo(HaveOccurred())
				Expect(text).To(Equal("receipt text"))
				Expect(inner.calls).To(Equal(3))
			})
		})

		When("every attempt fails", func() {
			BeforeEach(func() {
				inner.failures = 10
			})

			It("should stop after the configured attempts and return the last error", func() {
				_, err := WithExtractorRetry(inner, policy).ExtractText(context.Background(), []byte("x"), "image/png")
				Expect(err).To(MatchError("connection reset"))
				Expect(inner.calls).To(Equal(3))
			})
		})

		When("the image has no text", func() {
			BeforeEach(func() {
				inner.failures = 10
				inner.err = ErrNoText
			})

			It("should not retry", func() {
				_, err := WithExtractorRetry(inner, policy).ExtractText(context.Background(), []byte("x"), "image/png")
				Expect(err).To(MatchError(ErrNoText))
				Expect(inner.calls).To(Equal(1))
			})
		})

		When("the image cannot be decoded", func() {
			BeforeEach(func() {
				inner.failures = 10
				inner.err = fmt.Errorf("%w: decoding image: unexpected EOF", ErrUnsupportedImage)
			})

			It("should not retry", func() {
				_, err := WithExtractorRetry(inner, policy).ExtractText(context.Background(), []byte("x"), "image/jpeg")
				Expect(err).To(MatchError(ErrUnsupportedImage))
				Expect(inner.calls).To(Equal(1))
			})
		})

		It("should close the wrapped extractor", func() {
			Expect(WithExtractorRetry(inner, policy).Close()).To(Succeed())
			Expect(inner.closed).To(BeTrue())
		})
	})

	Describe("WithClassifierRetry", func() {
		It("should retry failed completions", func() {
			inner := &flakyClassifier{failures: 1}
			completion, err := WithClassifierRetry(inner, policy).Complete(context.Background(), "prompt")
			Expect(err).NotTo(HaveOccurred())
			Expect(completion).To(Equal("TOTAL_PRICE: $1.00"))
			Expect(inner.calls).To(Equal(2))
		})

		It("should return the classifier unchanged for a single attempt", func() {
			inner := &flakyClassifier{}
			Expect(WithClassifierRetry(inner, RetryPolicy{Attempts: 1})).To(BeIdenticalTo(inner))
		})
	})
})
