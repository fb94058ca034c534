package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/shopspring/decimal"

	"polyresearch/internal/models"
	"polyresearch/internal/research"
)

// Estimate is the structured verdict of one probability-estimation call.
// The default stance is no trade: RecommendTrade requires an explicit
// information advantage and thesis, which the engine re-validates.
type Estimate struct {
	Probability    decimal.Decimal
	Direction      string
	Advantage      string
	Thesis         string
	Reasoning      string
	RecommendTrade bool
}

// Estimator turns a market plus its completed research into an Estimate.
type Estimator interface {
	Estimate(ctx context.Context, market models.Market, tasks []models.ResearchTask, sources []models.ResearchSource) (*Estimate, error)
}

const estimatorSystem = `You are a disciplined prediction-market analyst. Your default stance is NO TRADE.
Only recommend a trade when the research below reveals a concrete information advantage
over the current market price; a probability that merely differs from the price is not
an advantage. Respond with a single JSON object and nothing else:
{
  "probability": 0.0,
  "direction": "yes" | "no",
  "information_advantage": "none" | "weak" | "moderate" | "strong",
  "thesis": "one sentence, empty string if no advantage",
  "reasoning": "free text",
  "recommend_trade": false
}
probability is always your estimate that the FIRST listed outcome resolves true.`

// AnthropicEstimator implements Estimator over the Anthropic messages API.
type AnthropicEstimator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func NewAnthropicEstimator(apiKey, baseURL, model string, maxTokens int64) *AnthropicEstimator {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &AnthropicEstimator{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (e *AnthropicEstimator) Estimate(ctx context.Context, market models.Market, tasks []models.ResearchTask, sources []models.ResearchSource) (*Estimate, error) {
	msg, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: e.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: estimatorSystem},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(estimatorPrompt(market, tasks, sources))),
		},
	})
	if err != nil {
		return nil, &research.ExternalServiceError{Provider: "anthropic", Msg: "estimator call: " + err.Error()}
	}
	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return parseEstimate(text.String())
}

type estimatePayload struct {
	Probability    float64 `json:"probability"`
	Direction      string  `json:"direction"`
	Advantage      string  `json:"information_advantage"`
	Thesis         string  `json:"thesis"`
	Reasoning      string  `json:"reasoning"`
	RecommendTrade bool    `json:"recommend_trade"`
}

func parseEstimate(raw string) (*Estimate, error) {
	raw = strings.TrimSpace(raw)
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, &research.ExternalServiceError{Provider: "anthropic", Msg: "estimator returned no JSON object"}
	}
	var payload estimatePayload
	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
		return nil, &research.ExternalServiceError{Provider: "anthropic", Msg: "malformed estimate payload: " + err.Error()}
	}
	if payload.Probability < 0 || payload.Probability > 1 {
		return nil, &research.ExternalServiceError{Provider: "anthropic", Msg: fmt.Sprintf("estimate probability %v out of range", payload.Probability)}
	}
	switch payload.Advantage {
	case models.AdvantageNone, models.AdvantageWeak, models.AdvantageModerate, models.AdvantageStrong:
	default:
		payload.Advantage = models.AdvantageNone
	}
	return &Estimate{
		Probability:    decimal.NewFromFloat(payload.Probability),
		Direction:      strings.ToLower(strings.TrimSpace(payload.Direction)),
		Advantage:      payload.Advantage,
		Thesis:         strings.TrimSpace(payload.Thesis),
		Reasoning:      strings.TrimSpace(payload.Reasoning),
		RecommendTrade: payload.RecommendTrade,
	}, nil
}

func estimatorPrompt(market models.Market, tasks []models.ResearchTask, sources []models.ResearchSource) string {
	var sb strings.Builder
	sb.WriteString("Market: " + market.Question + "\n")
	sb.WriteString("Outcomes: " + strings.Join(market.OutcomeList(), ", ") + "\n")
	if price, ok := market.YesPrice(); ok {
		sb.WriteString("Current price for first outcome: " + price.StringFixed(4) + "\n")
	}
	if market.EndDate != nil {
		sb.WriteString("Resolves by: " + market.EndDate.Format("2006-01-02") + "\n")
	}
	sb.WriteString("\nCompleted research:\n")
	for i, t := range tasks {
		fmt.Fprintf(&sb, "\n[%d] technique=%s\nSummary: %s\n", i+1, t.Technique, t.Summary)
		for _, f := range t.KeyFactList() {
			sb.WriteString("- fact: " + f + "\n")
		}
		for _, c := range t.ContradictionList() {
			sb.WriteString("- contradiction: " + c + "\n")
		}
	}
	if len(sources) > 0 {
		sb.WriteString("\nSources:\n")
		for _, s := range sources {
			fmt.Fprintf(&sb, "- %s (%s, relevance %.2f)\n", s.Title, s.URL, s.Relevance)
		}
	}
	return sb.String()
}
