package provider

import (
	"context"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"

	"polyresearch/internal/research"
)

func newOpenAIClient(apiKey, baseURL string) openai.Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return openai.NewClient(opts...)
}

// DeepResearch runs long-form investigations through the background
// responses API: one create call yields a durable response id, then the
// orchestrator polls it to completion.
type DeepResearch struct {
	client openai.Client
	model  string
}

func NewDeepResearch(apiKey, baseURL, model string) *DeepResearch {
	return &DeepResearch{
		client: newOpenAIClient(apiKey, baseURL),
		model:  model,
	}
}

func (p *DeepResearch) Name() string { return "openai" }

func (p *DeepResearch) CreateInteraction(ctx context.Context, query string) (string, error) {
	resp, err := p.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:      shared.ResponsesModel(p.model),
		Background: openai.Bool(true),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(query + researchInstructions),
		},
		Tools: []responses.ToolUnionParam{
			{
				OfWebSearchPreview: &responses.WebSearchPreviewToolParam{
					Type: responses.WebSearchPreviewToolTypeWebSearchPreview,
				},
			},
		},
	})
	if err != nil {
		return "", &research.ExternalServiceError{Provider: p.Name(), Msg: "create background response: " + err.Error()}
	}
	if resp.ID == "" {
		return "", &research.ExternalServiceError{Provider: p.Name(), Msg: "background response missing id"}
	}
	return resp.ID, nil
}

func (p *DeepResearch) PollInteraction(ctx context.Context, ref string) (*research.PollStatus, error) {
	resp, err := p.client.Responses.Get(ctx, ref, responses.ResponseGetParams{})
	if err != nil {
		return nil, &research.ExternalServiceError{Provider: p.Name(), Msg: "poll background response: " + err.Error()}
	}
	switch resp.Status {
	case responses.ResponseStatusCompleted:
		result, perr := parseResult(p.Name(), resp.OutputText())
		if perr != nil {
			return nil, perr
		}
		return &research.PollStatus{Done: true, Result: result}, nil
	case responses.ResponseStatusFailed:
		msg := resp.Error.Message
		if msg == "" {
			msg = "background response failed"
		}
		return &research.PollStatus{Done: true, Err: msg}, nil
	case responses.ResponseStatusCancelled, responses.ResponseStatusIncomplete:
		return &research.PollStatus{Done: true, Err: "background response ended with status " + string(resp.Status)}, nil
	default:
		// queued / in_progress
		return &research.PollStatus{}, nil
	}
}

// Execute exists so DeepResearch satisfies the base interface; dispatch
// always routes it through the multi-step protocol.
func (p *DeepResearch) Execute(ctx context.Context, query string) (*research.Result, error) {
	ref, err := p.CreateInteraction(ctx, query)
	if err != nil {
		return nil, err
	}
	status, err := p.PollInteraction(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !status.Done {
		return nil, &research.ExternalServiceError{Provider: p.Name(), Msg: "background response not ready"}
	}
	if status.Err != "" {
		return nil, &research.ExternalServiceError{Provider: p.Name(), Msg: status.Err}
	}
	return status.Result, nil
}

// QuickSearch is the fast single-call technique backed by a web-capable
// chat model.
type QuickSearch struct {
	client openai.Client
	model  string
}

func NewQuickSearch(apiKey, baseURL, model string) *QuickSearch {
	return &QuickSearch{
		client: newOpenAIClient(apiKey, baseURL),
		model:  model,
	}
}

func (p *QuickSearch) Name() string { return "openai" }

func (p *QuickSearch) Execute(ctx context.Context, query string) (*research.Result, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are a rapid market research assistant. Gather the latest relevant evidence for the question."),
			openai.UserMessage(query + researchInstructions),
		},
	})
	if err != nil {
		return nil, &research.ExternalServiceError{Provider: p.Name(), Msg: "chat completion: " + err.Error()}
	}
	if len(resp.Choices) == 0 {
		return nil, &research.ExternalServiceError{Provider: p.Name(), Msg: "chat completion returned no choices"}
	}
	return parseResult(p.Name(), resp.Choices[0].Message.Content)
}
