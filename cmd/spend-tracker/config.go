package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/spend-tracker/internal/receipt"
	"github.com/zombor/spend-tracker/internal/scanning"
)

// config holds the flags shared by every subcommand
type config struct {
	flags *ff.FlagSet

	dbPath    *string
	storeType *string

	ocrType        *string
	classifierType *string
	categoryMatch  *string

	visionKey   *string
	geminiKey   *string
	geminiModel *string
	ollamaURL   *string
	ollamaModel *string
	openaiKey   *string
	openaiModel *string
	openaiURL   *string

	retryAttempts *int
	retryDelay    *time.Duration

	logLevel *string
	logJSON  *bool
}

func (c *config) register(fs *ff.FlagSet) {
	c.flags = fs
	c.dbPath = fs.StringLong("db", "spend-tracker.db", "Database file path")
	c.storeType = fs.StringLong("store", "sqlite", "Store backend: 'sqlite' or 'bolt'")
	c.ocrType = fs.StringLong("ocr", "vision", "OCR backend: 'vision', 'gemini' or 'ollama'")
	c.classifierType = fs.StringLong("classifier", "openai", "Classifier backend: 'openai', 'gemini' or 'ollama'")
	c.categoryMatch = fs.StringLong("category-match", "word", "Category parsing: 'word' (first token) or 'line' (whole label)")
	c.visionKey = fs.StringLong("vision-key", "", "Google Cloud Vision API key (or set GOOGLE_VISION_API_KEY env var)")
	c.geminiKey = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
	c.geminiModel = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
	c.ollamaURL = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
	c.ollamaModel = fs.StringLong("ollama-model", "llava", "Ollama model name (must accept images when used for OCR)")
	c.openaiKey = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
	c.openaiModel = fs.StringLong("openai-model", "gpt-4o-mini", "OpenAI chat model name")
	c.openaiURL = fs.StringLong("openai-url", "https://api.openai.com/v1", "OpenAI-compatible API base URL")
	c.retryAttempts = fs.IntLong("retry-attempts", 1, "Attempts per OCR or classification call (1 disables retry)")
	c.retryDelay = fs.DurationLong("retry-delay", 500*time.Millisecond, "Initial delay between retries, doubled each attempt")
	c.logLevel = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
	c.logJSON = fs.BoolLong("log-json", "Write logs as JSON lines")
}

// envFallback returns value, or the named environment variable when value is empty
func envFallback(value, name string) string {
	if value != "" {
		return value
	}
	return os.Getenv(name)
}

// openStore opens the configured store backend
func (c *config) openStore() (receipt.Store, error) {
	slog.Debug("Opening store", "type", *c.storeType, "path", *c.dbPath)
	switch *c.storeType {
	case "sqlite":
		return receipt.NewSQLiteStore(*c.dbPath)
	case "bolt":
		return receipt.NewBoltStore(*c.dbPath)
	default:
		return nil, fmt.Errorf("invalid store type %q: want sqlite or bolt", *c.storeType)
	}
}

func (c *config) retryPolicy() scanning.RetryPolicy {
	attempts := *c.retryAttempts
	if attempts < 1 {
		attempts = 1
	}
	return scanning.RetryPolicy{Attempts: uint(attempts), Delay: *c.retryDelay}
}

// newExtractor builds the configured OCR backend
func (c *config) newExtractor() (scanning.TextExtractor, error) {
	var (
		extractor scanning.TextExtractor
		err       error
	)
	switch *c.ocrType {
	case "vision":
		apiKey := envFallback(*c.visionKey, "GOOGLE_VISION_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("vision API key is required: set --vision-key or GOOGLE_VISION_API_KEY")
		}
		slog.Info("Initializing Cloud Vision OCR...")
		extractor, err = scanning.NewVision(apiKey)
	case "gemini":
		apiKey := envFallback(*c.geminiKey, "GEMINI_API_KEY")
		slog.Info("Initializing Gemini OCR...", "model", *c.geminiModel)
		extractor, err = scanning.NewGemini(apiKey, *c.geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama OCR...", "url", *c.ollamaURL, "model", *c.ollamaModel)
		extractor, err = scanning.NewOllama(*c.ollamaURL, *c.ollamaModel)
	default:
		return nil, fmt.Errorf("invalid OCR type %q: want vision, gemini or ollama", *c.ocrType)
	}
	if err != nil {
		return nil, err
	}
	return scanning.WithExtractorRetry(extractor, c.retryPolicy()), nil
}

// newClassifier builds the configured language-model backend
func (c *config) newClassifier() (scanning.Classifier, error) {
	var (
		classifier scanning.Classifier
		err        error
	)
	switch *c.classifierType {
	case "openai":
		apiKey := envFallback(*c.openaiKey, "OPENAI_API_KEY")
		slog.Info("Initializing OpenAI classifier...", "model", *c.openaiModel)
		classifier, err = scanning.NewOpenAI(apiKey, *c.openaiModel, *c.openaiURL)
	case "gemini":
		apiKey := envFallback(*c.geminiKey, "GEMINI_API_KEY")
		slog.Info("Initializing Gemini classifier...", "model", *c.geminiModel)
		classifier, err = scanning.NewGemini(apiKey, *c.geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama classifier...", "url", *c.ollamaURL, "model", *c.ollamaModel)
		classifier, err = scanning.NewOllama(*c.ollamaURL, *c.ollamaModel)
	default:
		return nil, fmt.Errorf("invalid classifier type %q: want openai, gemini or ollama", *c.classifierType)
	}
	if err != nil {
		return nil, err
	}
	return scanning.WithClassifierRetry(classifier, c.retryPolicy()), nil
}

// app bundles the opened store and the services built on it
type app struct {
	store     receipt.Store
	service   *receipt.Service
	dashboard *receipt.Dashboard
	closers   []func() error
}

// Close releases the clients and the store, store last
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("Error closing resource", "error", err)
		}
	}
}

// openApp opens the store and, when withClients is set, the OCR and classifier backends.
// Commands that never ingest skip the clients so they need no API keys.
func (c *config) openApp(withClients bool) (*app, error) {
	match, err := scanning.ParseCategoryMatch(*c.categoryMatch)
	if err != nil {
		return nil, err
	}

	store, err := c.openStore()
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	a := &app{store: store, closers: []func() error{store.Close}}

	var (
		extractor  scanning.TextExtractor = unconfiguredClient{}
		classifier scanning.Classifier    = unconfiguredClient{}
	)
	if withClients {
		extractor, err = c.newExtractor()
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, extractor.Close)

		classifier, err = c.newClassifier()
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, classifier.Close)
	}

	a.service = receipt.NewService(store, extractor, classifier, match)
	a.dashboard = receipt.NewDashboard(store)
	return a, nil
}
