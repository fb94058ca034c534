package provider

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"polyresearch/internal/research"
)

const synthesisSystem = "You are a research synthesist for prediction markets. " +
	"Reconcile the provided evidence, weigh conflicting claims, and produce a balanced synthesis."

// Synthesis combines prior findings into a single reconciled view via one
// Anthropic messages call.
type Synthesis struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func NewSynthesis(apiKey, baseURL, model string, maxTokens int64) *Synthesis {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Synthesis{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (p *Synthesis) Name() string { return "anthropic" }

func (p *Synthesis) Execute(ctx context.Context, query string) (*research.Result, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: synthesisSystem},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(query + researchInstructions)),
		},
	})
	if err != nil {
		return nil, &research.ExternalServiceError{Provider: p.Name(), Msg: "messages call: " + err.Error()}
	}
	text := messageText(msg)
	if text == "" {
		return nil, &research.ExternalServiceError{Provider: p.Name(), Msg: "messages call returned no text"}
	}
	return parseResult(p.Name(), text)
}

func messageText(msg *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}
