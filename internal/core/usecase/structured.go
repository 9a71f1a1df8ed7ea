package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const classificationSchemaJSON = `{
  "type": "object",
  "required": ["doc_type"],
  "properties": {
    "doc_type": {"type": "string"},
    "doc_subtype": {"type": ["string", "null"]},
    "confidence": {"type": "number"}
  }
}`

const guideSchemaJSON = `{
  "type": "object",
  "required": ["meaning_for_you", "what_to_do_now", "what_happens_next", "deadlines_and_risks"],
  "properties": {
    "meaning_for_you": {"type": "string"},
    "what_to_do_now": {"type": "string"},
    "what_happens_next": {"type": "string"},
    "deadlines_and_risks": {"type": "string"}
  }
}`

const semanticFindingsSchemaJSON = `{
  "type": "object",
  "required": ["findings"],
  "properties": {
    "findings": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["code", "message"],
        "properties": {
          "code": {"type": "string", "minLength": 1},
          "message": {"type": "string", "minLength": 1},
          "contradicts_disposition": {"type": "boolean"},
          "original_span": {"type": "string"},
          "simplified_span": {"type": "string"}
        }
      }
    }
  }
}`

var (
	classificationSchema   = mustCompileSchema("classification.json", classificationSchemaJSON)
	guideSchema            = mustCompileSchema("guide.json", guideSchemaJSON)
	semanticFindingsSchema = mustCompileSchema("semantic_findings.json", semanticFindingsSchemaJSON)
)

func mustCompileSchema(name, raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("load schema %s: %v", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return schema
}

// decodeStructured parses model output as JSON, validates it against schema and
// decodes it into out.
func decodeStructured(content string, schema *jsonschema.Schema, out any) error {
	parsed, err := parseStructuredJSON(content)
	if err != nil {
		return err
	}

	var doc any
	if err := json.Unmarshal(parsed, &doc); err != nil {
		return fmt.Errorf("decode structured output: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("structured output does not match schema: %w", err)
	}

	if err := json.Unmarshal(parsed, out); err != nil {
		return fmt.Errorf("decode structured output: %w", err)
	}
	return nil
}

// parseStructuredJSON parses JSON from model output, recovering from markdown
// code fences and surrounding prose.
func parseStructuredJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.New("empty structured output")
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractJSONObject(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	for _, candidate := range candidates {
		var parsed any
		if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
			continue
		}
		normalized, err := json.Marshal(parsed)
		if err != nil {
			return nil, fmt.Errorf("normalize structured output: %w", err)
		}
		return normalized, nil
	}
	return nil, errors.New("failed to parse structured JSON")
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractJSONObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return ""
	}
	return strings.TrimSpace(content[start : end+1])
}
