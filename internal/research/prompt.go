package research

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"polyresearch/internal/models"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-z_]+)\s*\}\}`)

// PromptVars is the fixed, validated variable set for research prompts.
// Templates referencing anything outside this set are rejected at call time
// rather than silently left unreplaced.
type PromptVars struct {
	Question  string
	Outcomes  string
	Prices    string
	EndDate   string
	Volume    string
	Liquidity string
}

func (v PromptVars) lookup(name string) (string, bool) {
	switch name {
	case "question":
		return v.Question, true
	case "outcomes":
		return v.Outcomes, true
	case "prices":
		return v.Prices, true
	case "end_date":
		return v.EndDate, true
	case "volume":
		return v.Volume, true
	case "liquidity":
		return v.Liquidity, true
	}
	return "", false
}

// RenderPrompt substitutes {{placeholder}} occurrences from vars.
func RenderPrompt(tmpl string, vars PromptVars) (string, error) {
	var unknown []string
	out := placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		val, ok := vars.lookup(name)
		if !ok {
			unknown = append(unknown, name)
			return match
		}
		return val
	})
	if len(unknown) > 0 {
		return "", fmt.Errorf("unknown prompt placeholders: %s", strings.Join(unknown, ", "))
	}
	return out, nil
}

const defaultQueryTemplate = `Research the prediction market question below and report your findings.

Question: {{question}}
Outcomes: {{outcomes}}
Current market-implied probabilities: {{prices}}
Market resolves by: {{end_date}}

Investigate primary sources, recent reporting, and any base rates that bear on
the question. Note where credible sources disagree.`

// DefaultQuery renders the standard research query for a market snapshot.
func DefaultQuery(market models.Market) (string, error) {
	endDate := "unknown"
	if market.EndDate != nil {
		endDate = market.EndDate.UTC().Format(time.RFC3339)
	}
	return RenderPrompt(defaultQueryTemplate, PromptVars{
		Question:  market.Question,
		Outcomes:  strings.Join(market.OutcomeList(), ", "),
		Prices:    formatPrices(market.PriceList()),
		EndDate:   endDate,
		Volume:    formatDecimalPtr(market.Volume),
		Liquidity: formatDecimalPtr(market.Liquidity),
	})
}

func formatPrices(prices []decimal.Decimal) string {
	if len(prices) == 0 {
		return "unknown"
	}
	parts := make([]string, 0, len(prices))
	for _, p := range prices {
		parts = append(parts, p.StringFixed(3))
	}
	return strings.Join(parts, ", ")
}

func formatDecimalPtr(d *decimal.Decimal) string {
	if d == nil {
		return "unknown"
	}
	return d.StringFixed(2)
}
