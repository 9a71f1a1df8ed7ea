package httpadapter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kirillkom/plainlaw/internal/config"
	"github.com/kirillkom/plainlaw/internal/core/domain"
)

type processorFake struct {
	result *domain.ProcessDocumentResult
	err    error
}

func (f processorFake) Process(context.Context, domain.RawInput) (*domain.ProcessDocumentResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := *f.result
	return &out, nil
}

type recordingProcessor struct {
	mu     sync.Mutex
	inputs []domain.RawInput
}

func (p *recordingProcessor) Process(_ context.Context, input domain.RawInput) (*domain.ProcessDocumentResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputs = append(p.inputs, input)
	return sampleResult(), nil
}

func sampleResult() *domain.ProcessDocumentResult {
	return &domain.ProcessDocumentResult{
		DocType:        domain.DocTypeResolution,
		DocSubtype:     domain.SubtypeJudgment,
		SimplifiedText: "The court rejected your claim.",
		LegalGuide: domain.LegalGuide{
			MeaningForYou:     "You lost the case.",
			WhatToDoNow:       "Talk to your lawyer about an appeal.",
			WhatHappensNext:   "The judgment becomes final if nobody appeals.",
			DeadlinesAndRisks: "You have 20 days to appeal.",
		},
	}
}

func textRequest(text string) *http.Request {
	payload, _ := json.Marshal(map[string]string{"sourceType": "text", "plainText": text})
	req := httptest.NewRequest(http.MethodPost, "/v1/documents/process", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealthzEndpoint(t *testing.T) {
	handler := NewRouter(config.Config{}, &recordingProcessor{}, nil).Handler()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestProcessTextReturnsResultContract(t *testing.T) {
	processor := &recordingProcessor{}
	handler := NewRouter(config.Config{}, processor, nil).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, textRequest("SENTENCIA 12/2024"))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	for _, key := range []string{"docType", "docSubtype", "simplifiedText", "legalGuide", "safetyFindings"} {
		if _, ok := body[key]; !ok {
			t.Fatalf("response missing %q: %v", key, body)
		}
	}
	guide, _ := body["legalGuide"].(map[string]any)
	for _, key := range []string{"meaningForYou", "whatToDoNow", "whatHappensNext", "deadlinesAndRisks"} {
		if s, _ := guide[key].(string); s == "" {
			t.Fatalf("legalGuide.%s is empty", key)
		}
	}
	if findings, ok := body["safetyFindings"].([]any); !ok || len(findings) != 0 {
		t.Fatalf("safetyFindings must be an empty array, got %v", body["safetyFindings"])
	}
	if len(processor.inputs) != 1 || processor.inputs[0].Text != "SENTENCIA 12/2024" {
		t.Fatalf("unexpected processor input %+v", processor.inputs)
	}
}

func TestProcessJSONFileContentIsBase64(t *testing.T) {
	processor := &recordingProcessor{}
	handler := NewRouter(config.Config{}, processor, nil).Handler()

	payload := `{"sourceType":"pdf","fileContent":"` + base64.StdEncoding.EncodeToString([]byte("%PDF-1.7")) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/documents/process", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if got := processor.inputs[0]; got.SourceKind != domain.SourcePDF || string(got.Data) != "%PDF-1.7" {
		t.Fatalf("unexpected processor input %+v", got)
	}
}

func TestProcessMultipartImage(t *testing.T) {
	processor := &recordingProcessor{}
	handler := NewRouter(config.Config{}, processor, nil).Handler()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("sourceType", "image"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	part, err := writer.CreateFormFile("file", "notice.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte{0x89, 'P', 'N', 'G'})
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/process", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	got := processor.inputs[0]
	if got.SourceKind != domain.SourceImage || got.Filename != "notice.png" || len(got.Data) != 4 {
		t.Fatalf("unexpected processor input %+v", got)
	}
}

func TestProcessMultipartTextFileIsDecoded(t *testing.T) {
	processor := &recordingProcessor{}
	handler := NewRouter(config.Config{}, processor, nil).Handler()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	_ = writer.WriteField("sourceType", "text")
	part, _ := writer.CreateFormFile("file", "auto.txt")
	_, _ = part.Write([]byte{'A', 'U', 'T', 'O', ' ', 'n', 0xBA, ' ', '5'})
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/process", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if got := processor.inputs[0].Text; got != "AUTO nº 5" {
		t.Fatalf("expected Windows-1252 upload decoded, got %q", got)
	}
}

func TestProcessInfersSourceTypeFromUpload(t *testing.T) {
	cases := []struct {
		filename string
		content  []byte
		want     domain.SourceKind
	}{
		{filename: "notice.pdf", content: []byte("%PDF-1.7"), want: domain.SourcePDF},
		{filename: "scan.JPG", content: []byte{0xFF, 0xD8, 0xFF}, want: domain.SourceImage},
		{filename: "notice.txt", content: []byte("Pay within 10 days."), want: domain.SourceText},
	}
	for _, tc := range cases {
		t.Run(tc.filename, func(t *testing.T) {
			processor := &recordingProcessor{}
			handler := NewRouter(config.Config{}, processor, nil).Handler()

			body := &bytes.Buffer{}
			writer := multipart.NewWriter(body)
			part, err := writer.CreateFormFile("file", tc.filename)
			if err != nil {
				t.Fatalf("create form file: %v", err)
			}
			_, _ = part.Write(tc.content)
			_ = writer.Close()

			req := httptest.NewRequest(http.MethodPost, "/v1/documents/process", body)
			req.Header.Set("Content-Type", writer.FormDataContentType())
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)

			if res.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
			}
			got := processor.inputs[0]
			if got.SourceKind != tc.want || got.Filename != tc.filename {
				t.Fatalf("unexpected processor input %+v", got)
			}
			if tc.want == domain.SourceText && got.Text != string(tc.content) {
				t.Fatalf("text upload not decoded: %q", got.Text)
			}
		})
	}
}

func TestProcessJSONInfersSourceTypeFromFilename(t *testing.T) {
	processor := &recordingProcessor{}
	handler := NewRouter(config.Config{}, processor, nil).Handler()

	payload := `{"filename":"notice.pdf","fileContent":"` + base64.StdEncoding.EncodeToString([]byte("%PDF-1.7")) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/documents/process", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if got := processor.inputs[0]; got.SourceKind != domain.SourcePDF || string(got.Data) != "%PDF-1.7" {
		t.Fatalf("unexpected processor input %+v", got)
	}
}
