package research

import (
	"strings"
	"testing"

	"gorm.io/datatypes"

	"polyresearch/internal/models"
)

func TestRenderPrompt_Substitution(t *testing.T) {
	out, err := RenderPrompt("Q: {{question}} ({{ outcomes }})", PromptVars{
		Question: "Will it rain?",
		Outcomes: "Yes, No",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "Q: Will it rain? (Yes, No)" {
		t.Fatalf("out=%q", out)
	}
}

func TestRenderPrompt_UnknownPlaceholderRejected(t *testing.T) {
	_, err := RenderPrompt("{{question}} {{bankroll}}", PromptVars{Question: "x"})
	if err == nil {
		t.Fatalf("unknown placeholder must be rejected")
	}
	if !strings.Contains(err.Error(), "bankroll") {
		t.Fatalf("err=%v want to name the offending placeholder", err)
	}
}

func TestDefaultQuery(t *testing.T) {
	market := models.Market{
		ID:            "mkt-1",
		Question:      "Will turnout exceed 60%?",
		Outcomes:      datatypes.JSON(`["Yes","No"]`),
		OutcomePrices: datatypes.JSON(`["0.3","0.7"]`),
	}
	out, err := DefaultQuery(market)
	if err != nil {
		t.Fatalf("default query: %v", err)
	}
	if !strings.Contains(out, "Will turnout exceed 60%?") {
		t.Fatalf("question missing from query: %q", out)
	}
	if !strings.Contains(out, "0.300, 0.700") {
		t.Fatalf("prices missing from query: %q", out)
	}
	if strings.Contains(out, "{{") {
		t.Fatalf("unreplaced placeholder in query: %q", out)
	}
}
