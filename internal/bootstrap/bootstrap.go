package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/plainlaw/internal/config"
	"github.com/kirillkom/plainlaw/internal/core/ports"
	"github.com/kirillkom/plainlaw/internal/core/usecase"
	"github.com/kirillkom/plainlaw/internal/infrastructure/extractor"
	"github.com/kirillkom/plainlaw/internal/infrastructure/extractor/ocr"
	"github.com/kirillkom/plainlaw/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/plainlaw/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/plainlaw/internal/infrastructure/llm/openai"
	"github.com/kirillkom/plainlaw/internal/infrastructure/queue/nats"
	"github.com/kirillkom/plainlaw/internal/infrastructure/resilience"
)

// Hooks connect process-specific observability to the shared wiring. Both are optional.
type Hooks struct {
	Observer      ports.PipelineObserver
	OnBreakerTrip func(operation, from, to string)
}

type App struct {
	Config config.Config

	// Processor runs the pipeline in this process.
	Processor ports.DocumentProcessor
	// Queue is set by NewRemote and by NewWorker.
	Queue *nats.Queue

	closeFn func()
}

// New wires the in-process pipeline: completion backend, extractor chain and
// the orchestrating use case.
func New(cfg config.Config, hooks Hooks) (*App, error) {
	executor := newExecutor(cfg, hooks.OnBreakerTrip)

	llm, err := newCompletionService(cfg, executor)
	if err != nil {
		return nil, err
	}
	processor := usecase.NewProcessDocumentUseCase(newExtractor(cfg, executor), llm, pipelineOptions(cfg), hooks.Observer)

	return &App{
		Config:    cfg,
		Processor: processor,
	}, nil
}

// NewWorker is New plus a NATS connection for serving queued requests.
func NewWorker(cfg config.Config, hooks Hooks) (*App, error) {
	app, err := New(cfg, hooks)
	if err != nil {
		return nil, err
	}
	queue, err := newQueue(cfg, nil)
	if err != nil {
		return nil, err
	}
	app.Queue = queue
	app.closeFn = queue.Close
	return app, nil
}

// NewRemote forwards every document to workers over NATS instead of running
// the pipeline locally.
func NewRemote(cfg config.Config, hooks Hooks) (*App, error) {
	queue, err := newQueue(cfg, newExecutor(cfg, hooks.OnBreakerTrip))
	if err != nil {
		return nil, err
	}
	return &App{
		Config:    cfg,
		Processor: queue,
		Queue:     queue,
		closeFn:   queue.Close,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func newExecutor(cfg config.Config, onStateChange func(operation, from, to string)) *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:        cfg.ResilienceRetryMaxAttempts,
		RetryInitialBackoff:     time.Duration(cfg.ResilienceRetryInitialBackoffMS) * time.Millisecond,
		RetryMaxBackoff:         time.Duration(cfg.ResilienceRetryMaxBackoffMS) * time.Millisecond,
		RetryMultiplier:         2.0,
		BreakerEnabled:          cfg.BreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.BreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.BreakerFailureRatio,
		BreakerOpenTimeout:      time.Duration(cfg.BreakerOpenTimeoutSeconds) * time.Second,
		BreakerHalfOpenMaxCalls: uint32(max(cfg.BreakerHalfOpenMaxCalls, 0)),
		OnStateChange:           onStateChange,
	})
}

func newCompletionService(cfg config.Config, executor *resilience.Executor) (ports.CompletionService, error) {
	switch cfg.LLMProvider {
	case "", "openai", "deepseek":
		slog.Info("completion_backend", "provider", "openai", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModel)
		return openai.New(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, executor), nil
	case "ollama":
		slog.Info("completion_backend", "provider", "ollama", "base_url", cfg.OllamaURL, "model", cfg.OllamaGenModel)
		return ollama.NewWithResilience(cfg.OllamaURL, cfg.OllamaGenModel, executor), nil
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

// newExtractor reads PDF text layers locally and adds OCR when an OCR
// endpoint or key is configured.
func newExtractor(cfg config.Config, executor *resilience.Executor) *extractor.Extractor {
	if cfg.OCRURL == "" && cfg.OCRAPIKey == "" {
		slog.Warn("ocr_disabled", "reason", "OCR_URL and OCR_API_KEY are empty; scanned PDFs and images will fail")
		return extractor.New(pdftext.NewExtractor(), nil, cfg.OCRMinQuality)
	}
	client := ocr.New(ocr.Config{
		BaseURL:           cfg.OCRURL,
		APIKey:            cfg.OCRAPIKey,
		Model:             cfg.OCRModel,
		Timeout:           time.Duration(cfg.OCRTimeoutSeconds) * time.Second,
		RequestsPerSecond: cfg.OCRRateLimitRPS,
	}, executor)
	return extractor.New(pdftext.NewExtractor(), client, cfg.OCRMinQuality)
}

func newQueue(cfg config.Config, executor *resilience.Executor) (*nats.Queue, error) {
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		QueueGroup:         cfg.NATSQueueGroup,
		RequestTimeout:     time.Duration(cfg.NATSRequestTimeoutSeconds) * time.Second,
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	return queue, nil
}

func pipelineOptions(cfg config.Config) usecase.PipelineOptions {
	return usecase.PipelineOptions{
		CallTimeout:               time.Duration(cfg.LLMCallTimeoutSeconds) * time.Second,
		PipelineTimeout:           time.Duration(cfg.PipelineTimeoutSeconds) * time.Second,
		RetryBackoff:              time.Duration(cfg.RetryBackoffMS) * time.Millisecond,
		ClassificationTemperature: float32(cfg.ClassificationTemperature),
		SimplificationTemperature: float32(cfg.SimplificationTemperature),
		GuideTemperature:          float32(cfg.GuideTemperature),
		SafetyTemperature:         float32(cfg.SafetyTemperature),
		ChunkChars:                cfg.SimplifyChunkChars,
		HardChunkChars:            cfg.SimplifyHardChunkChars,
	}
}
