package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	APIPort  string
	LogLevel string

	// LLMProvider selects the completion backend: "openai" for any
	// OpenAI-compatible API (DeepSeek by default) or "ollama".
	LLMProvider    string
	LLMBaseURL     string
	LLMAPIKey      string
	LLMModel       string
	OllamaURL      string
	OllamaGenModel string

	LLMCallTimeoutSeconds  int
	PipelineTimeoutSeconds int
	RetryBackoffMS         int

	ClassificationTemperature float64
	SimplificationTemperature float64
	GuideTemperature          float64
	SafetyTemperature         float64

	SimplifyChunkChars     int
	SimplifyHardChunkChars int

	OCRURL            string
	OCRAPIKey         string
	OCRModel          string
	OCRMinQuality     float64
	OCRRateLimitRPS   float64
	OCRTimeoutSeconds int

	NATSURL                   string
	NATSSubject               string
	NATSQueueGroup            string
	NATSRequestTimeoutSeconds int
	WorkerConcurrency         int
	WorkerMetricsPort         string
	// APIProcessViaNATS makes the API forward documents to workers instead of
	// running the pipeline in-process.
	APIProcessViaNATS bool

	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int
	APIMaxUploadBytes int64

	ResilienceRetryMaxAttempts      int
	ResilienceRetryInitialBackoffMS int
	ResilienceRetryMaxBackoffMS     int
	BreakerEnabled                  bool
	BreakerMinRequests              int
	BreakerFailureRatio             float64
	BreakerOpenTimeoutSeconds       int
	BreakerHalfOpenMaxCalls         int
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		LLMProvider:    strings.ToLower(mustEnv("LLM_PROVIDER", "openai")),
		LLMBaseURL:     mustEnv("LLM_BASE_URL", "https://api.deepseek.com/v1"),
		LLMAPIKey:      mustEnv("LLM_API_KEY", ""),
		LLMModel:       mustEnv("LLM_MODEL", "deepseek-chat"),
		OllamaURL:      mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel: mustEnv("OLLAMA_GEN_MODEL", "llama3.1:8b"),

		LLMCallTimeoutSeconds:  mustEnvInt("LLM_CALL_TIMEOUT_SECONDS", 60),
		PipelineTimeoutSeconds: mustEnvInt("PIPELINE_TIMEOUT_SECONDS", 300),
		RetryBackoffMS:         mustEnvInt("RETRY_BACKOFF_MS", 500),

		ClassificationTemperature: mustEnvFloat("CLASSIFICATION_TEMPERATURE", 0.0),
		SimplificationTemperature: mustEnvFloat("SIMPLIFICATION_TEMPERATURE", 0.3),
		GuideTemperature:          mustEnvFloat("GUIDE_TEMPERATURE", 0.25),
		SafetyTemperature:         mustEnvFloat("SAFETY_TEMPERATURE", 0.0),

		SimplifyChunkChars:     mustEnvInt("SIMPLIFY_CHUNK_CHARS", 12000),
		SimplifyHardChunkChars: mustEnvInt("SIMPLIFY_HARD_CHUNK_CHARS", 16000),

		OCRURL:            mustEnv("OCR_URL", ""),
		OCRAPIKey:         mustEnv("OCR_API_KEY", ""),
		OCRModel:          mustEnv("OCR_MODEL", "mistral-ocr-latest"),
		OCRMinQuality:     mustEnvFloat("OCR_MIN_QUALITY", 0.6),
		OCRRateLimitRPS:   mustEnvFloat("OCR_RATE_LIMIT_RPS", 6),
		OCRTimeoutSeconds: mustEnvInt("OCR_TIMEOUT_SECONDS", 120),

		NATSURL:                   mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubject:               mustEnv("NATS_SUBJECT", "plainlaw.documents.process"),
		NATSQueueGroup:            mustEnv("NATS_QUEUE_GROUP", "plainlaw-workers"),
		NATSRequestTimeoutSeconds: mustEnvInt("NATS_REQUEST_TIMEOUT_SECONDS", 330),
		WorkerConcurrency:         mustEnvInt("WORKER_CONCURRENCY", 4),
		WorkerMetricsPort:         mustEnv("WORKER_METRICS_PORT", "9090"),
		APIProcessViaNATS:         mustEnvBool("API_PROCESS_VIA_NATS", false),

		APIRateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", 5),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 10),
		APIMaxInFlight:    mustEnvInt("API_MAX_IN_FLIGHT", 16),
		APIMaxUploadBytes: int64(mustEnvInt("API_MAX_UPLOAD_BYTES", 20<<20)),

		ResilienceRetryMaxAttempts:      mustEnvInt("RESILIENCE_RETRY_MAX_ATTEMPTS", 1),
		ResilienceRetryInitialBackoffMS: mustEnvInt("RESILIENCE_RETRY_INITIAL_BACKOFF_MS", 200),
		ResilienceRetryMaxBackoffMS:     mustEnvInt("RESILIENCE_RETRY_MAX_BACKOFF_MS", 2000),
		BreakerEnabled:                  mustEnvBool("BREAKER_ENABLED", true),
		BreakerMinRequests:              mustEnvInt("BREAKER_MIN_REQUESTS", 5),
		BreakerFailureRatio:             mustEnvFloat("BREAKER_FAILURE_RATIO", 0.6),
		BreakerOpenTimeoutSeconds:       mustEnvInt("BREAKER_OPEN_TIMEOUT_SECONDS", 30),
		BreakerHalfOpenMaxCalls:         mustEnvInt("BREAKER_HALF_OPEN_MAX_CALLS", 1),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
