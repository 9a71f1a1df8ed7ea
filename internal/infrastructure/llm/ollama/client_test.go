package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/plainlaw/internal/core/domain"
	"github.com/kirillkom/plainlaw/internal/core/ports"
	"github.com/kirillkom/plainlaw/internal/infrastructure/resilience"
)

func TestCompleteSendsSystemPromptAndJSONFormat(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"  {\"doc_type\":\"resolution\"}\n","done":true}`))
	}))
	defer server.Close()

	client := New(server.URL, "llama3.1")
	out, err := client.Complete(context.Background(), ports.CompletionRequest{
		Operation:   "classify",
		System:      "You classify court documents.",
		Prompt:      "SENTENCIA",
		Temperature: 0.2,
		JSON:        true,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != `{"doc_type":"resolution"}` {
		t.Fatalf("unexpected output %q", out)
	}
	if payload["model"] != "llama3.1" || payload["system"] != "You classify court documents." || payload["format"] != "json" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	options, _ := payload["options"].(map[string]any)
	if temp, _ := options["temperature"].(float64); temp < 0.19 || temp > 0.21 {
		t.Fatalf("unexpected temperature in %v", options)
	}
}

func TestCompleteMapsStatusToUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(server.URL, "gen")
	_, err := client.Complete(context.Background(), ports.CompletionRequest{Operation: "simplify", Prompt: "x"})
	if !domain.IsKind(err, domain.ErrCompletionUnavailable) {
		t.Fatalf("Complete() error = %v, want ErrCompletionUnavailable", err)
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestCompleteEmptyResponseIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"   ","done":true}`))
	}))
	defer server.Close()

	_, err := New(server.URL, "gen").Complete(context.Background(), ports.CompletionRequest{Operation: "build_guide", Prompt: "x"})
	if !domain.IsKind(err, domain.ErrMalformedCompletion) {
		t.Fatalf("Complete() error = %v, want ErrMalformedCompletion", err)
	}
}

func TestCompleteDeadlineIsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := New(server.URL, "gen").Complete(ctx, ports.CompletionRequest{Operation: "verify", Prompt: "x"})
	if !domain.IsKind(err, domain.ErrCompletionTimeout) {
		t.Fatalf("Complete() error = %v, want ErrCompletionTimeout", err)
	}
}

func TestCompleteOpenCircuitIsUnavailable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := resilience.DefaultConfig()
	cfg.BreakerMinRequests = 2
	cfg.BreakerFailureRatio = 0.5
	client := NewWithResilience(server.URL, "gen", resilience.NewExecutor(cfg))

	for i := 0; i < 3; i++ {
		_, err := client.Complete(context.Background(), ports.CompletionRequest{Operation: "classify", Prompt: "x"})
		if !domain.IsKind(err, domain.ErrCompletionUnavailable) {
			t.Fatalf("call %d: Complete() error = %v", i, err)
		}
	}
	if calls.Load() != 2 {
		t.Fatalf("expected the breaker to stop the third call, got %d calls", calls.Load())
	}
}
