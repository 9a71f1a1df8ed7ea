package config

import "testing"

func TestLoadDefaultsToDeepSeek(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("LLM_BASE_URL", "")
	t.Setenv("LLM_MODEL", "")
	t.Setenv("SIMPLIFY_CHUNK_CHARS", "")
	t.Setenv("CLASSIFICATION_TEMPERATURE", "")

	cfg := Load()
	if cfg.LLMProvider != "openai" {
		t.Fatalf("expected default provider openai, got %q", cfg.LLMProvider)
	}
	if cfg.LLMBaseURL != "https://api.deepseek.com/v1" || cfg.LLMModel != "deepseek-chat" {
		t.Fatalf("unexpected default endpoint %q model %q", cfg.LLMBaseURL, cfg.LLMModel)
	}
	if cfg.SimplifyChunkChars != 12000 {
		t.Fatalf("expected default chunk chars 12000, got %d", cfg.SimplifyChunkChars)
	}
	if cfg.ClassificationTemperature != 0 {
		t.Fatalf("expected deterministic classification, got %v", cfg.ClassificationTemperature)
	}
	if cfg.ResilienceRetryMaxAttempts != 1 {
		t.Fatalf("expected single adapter attempt, got %d", cfg.ResilienceRetryMaxAttempts)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "Ollama")
	t.Setenv("SIMPLIFICATION_TEMPERATURE", "0.45")
	t.Setenv("API_MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("BREAKER_ENABLED", "false")
	t.Setenv("OCR_MIN_QUALITY", "0.75")

	cfg := Load()
	if cfg.LLMProvider != "ollama" {
		t.Fatalf("expected provider override, got %q", cfg.LLMProvider)
	}
	if cfg.SimplificationTemperature != 0.45 {
		t.Fatalf("expected temperature 0.45, got %v", cfg.SimplificationTemperature)
	}
	if cfg.APIMaxUploadBytes != 1<<20 {
		t.Fatalf("expected upload limit 1MiB, got %d", cfg.APIMaxUploadBytes)
	}
	if cfg.BreakerEnabled {
		t.Fatalf("expected breaker disabled")
	}
	if cfg.OCRMinQuality != 0.75 {
		t.Fatalf("expected ocr min quality 0.75, got %v", cfg.OCRMinQuality)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("PIPELINE_TIMEOUT_SECONDS", "five minutes")
	t.Setenv("GUIDE_TEMPERATURE", "warm")

	cfg := Load()
	if cfg.PipelineTimeoutSeconds != 300 {
		t.Fatalf("expected fallback 300, got %d", cfg.PipelineTimeoutSeconds)
	}
	if cfg.GuideTemperature != 0.25 {
		t.Fatalf("expected fallback 0.25, got %v", cfg.GuideTemperature)
	}
}
