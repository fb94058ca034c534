package provider

import (
	"encoding/json"
	"strings"
	"time"

	"polyresearch/internal/research"
)

// researchInstructions is appended to every query so providers return a
// machine-readable payload alongside their narrative work.
const researchInstructions = `

Respond with a single JSON object and nothing else, using this shape:
{
  "summary": "narrative summary of findings",
  "key_facts": ["fact", ...],
  "contradictions": ["conflicting evidence", ...],
  "sources": [
    {
      "url": "https://...",
      "title": "page title",
      "domain_authority": 0.0,
      "published_at": "2025-01-31",
      "relevance": 0.0
    }
  ]
}
domain_authority and relevance are your own estimates in [0,1].
published_at may be omitted when unknown. Do not wrap the JSON in markdown.`

type resultPayload struct {
	Summary        string          `json:"summary"`
	KeyFacts       []string        `json:"key_facts"`
	Contradictions []string        `json:"contradictions"`
	Sources        []sourcePayload `json:"sources"`
}

type sourcePayload struct {
	URL             string  `json:"url"`
	Title           string  `json:"title"`
	DomainAuthority float64 `json:"domain_authority"`
	PublishedAt     string  `json:"published_at"`
	Relevance       float64 `json:"relevance"`
}

// parseResult extracts the JSON payload from model output. Models wrap JSON
// in prose or fences often enough that we scan for the outermost object
// rather than unmarshalling the raw text.
func parseResult(providerName, raw string) (*research.Result, error) {
	doc := extractJSONObject(raw)
	if doc == "" {
		return nil, &research.ExternalServiceError{
			Provider: providerName,
			Msg:      "response contained no JSON object",
		}
	}
	var payload resultPayload
	if err := json.Unmarshal([]byte(doc), &payload); err != nil {
		return nil, &research.ExternalServiceError{
			Provider: providerName,
			Msg:      "malformed result payload: " + err.Error(),
		}
	}
	if strings.TrimSpace(payload.Summary) == "" {
		return nil, &research.ExternalServiceError{
			Provider: providerName,
			Msg:      "result payload missing summary",
		}
	}
	out := &research.Result{
		Summary:        strings.TrimSpace(payload.Summary),
		KeyFacts:       payload.KeyFacts,
		Contradictions: payload.Contradictions,
	}
	for _, s := range payload.Sources {
		finding := research.SourceFinding{
			URL:             strings.TrimSpace(s.URL),
			Title:           strings.TrimSpace(s.Title),
			DomainAuthority: s.DomainAuthority,
			Relevance:       s.Relevance,
		}
		if ts := parseSourceTime(s.PublishedAt); ts != nil {
			finding.PublishedAt = ts
		}
		out.Sources = append(out.Sources, finding)
	}
	return out, nil
}

func extractJSONObject(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		if idx := strings.LastIndex(raw, "```"); idx >= 0 {
			raw = raw[:idx]
		}
		raw = strings.TrimSpace(raw)
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

func parseSourceTime(val string) *time.Time {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, val); err == nil {
			ts = ts.UTC()
			return &ts
		}
	}
	return nil
}
