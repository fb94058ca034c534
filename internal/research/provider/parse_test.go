package provider

import (
	"errors"
	"testing"

	"polyresearch/internal/research"
)

func TestParseResult_PlainJSON(t *testing.T) {
	raw := `{"summary":"the summary","key_facts":["a"],"contradictions":[],"sources":[{"url":"https://x.example","title":"X","domain_authority":0.7,"published_at":"2026-01-15","relevance":0.9}]}`
	result, err := parseResult("openai", raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.Summary != "the summary" {
		t.Fatalf("summary=%q", result.Summary)
	}
	if len(result.Sources) != 1 || result.Sources[0].PublishedAt == nil {
		t.Fatalf("sources=%+v", result.Sources)
	}
}

func TestParseResult_FencedAndWrapped(t *testing.T) {
	raw := "Here are my findings.\n```json\n{\"summary\":\"fenced\",\"key_facts\":[]}\n```"
	result, err := parseResult("openai", raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.Summary != "fenced" {
		t.Fatalf("summary=%q", result.Summary)
	}
}

func TestParseResult_NoJSON(t *testing.T) {
	_, err := parseResult("openai", "I could not find anything relevant.")
	if err == nil {
		t.Fatalf("want error for missing JSON")
	}
	var esErr *research.ExternalServiceError
	if !errors.As(err, &esErr) {
		t.Fatalf("err=%T want ExternalServiceError", err)
	}
}

func TestParseResult_MissingSummary(t *testing.T) {
	if _, err := parseResult("openai", `{"key_facts":["a"]}`); err == nil {
		t.Fatalf("payload without summary must be rejected")
	}
}

func TestParseResult_BadDateIgnored(t *testing.T) {
	raw := `{"summary":"ok","sources":[{"url":"https://x.example","published_at":"last Tuesday"}]}`
	result, err := parseResult("openai", raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.Sources[0].PublishedAt != nil {
		t.Fatalf("unparseable date should map to nil, got %v", result.Sources[0].PublishedAt)
	}
}
