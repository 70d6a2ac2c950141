package scanning

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/vision/v1"
)

const textDetectionFeature = "TEXT_DETECTION"

// Vision implements TextExtractor using Google Cloud Vision text detection
type Vision struct {
	service *vision.Service
	timeout time.Duration
}

// NewVision creates a new Vision extractor authenticated with an API key.
// Extra client options (endpoint, HTTP client) are appended after the key.
func NewVision(apiKey string, opts ...option.ClientOption) (*Vision, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("vision api key is required")
	}

	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := vision.NewService(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("creating vision client: %w", err)
	}

	return &Vision{
		service: service,
		timeout: 30 * time.Second,
	}, nil
}

// ExtractText runs TEXT_DETECTION on the image and returns the full text annotation
func (v *Vision) ExtractText(ctx context.Context, imageData []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	finalImageData, err := prepareVisionImage(imageData, contentType)
	if err != nil {
		return "", err
	}

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{
			{
				Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(finalImageData)},
				Features: []*vision.Feature{{Type: textDetectionFeature}},
			},
		},
	}

	resp, err := v.service.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("calling vision API: %w", err)
	}

	if len(resp.Responses) == 0 {
		return "", ErrNoText
	}
	result := resp.Responses[0]
	if result.Error != nil {
		return "", fmt.Errorf("vision API error (code %d): %s", result.Error.Code, result.Error.Message)
	}
	if result.FullTextAnnotation == nil || strings.TrimSpace(result.FullTextAnnotation.Text) == "" {
		return "", ErrNoText
	}

	return result.FullTextAnnotation.Text, nil
}

// Close is a no-op; the Vision REST client holds no open connections of its own
func (v *Vision) Close() error {
	return nil
}
