package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mentorix/backend/internal/apperr"
)

type AnthropicProvider struct {
	defaultKey string
}

func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{defaultKey: apiKey}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) client(overrideKey string) anthropic.Client {
	key := p.defaultKey
	if overrideKey != "" {
		key = overrideKey
	}
	return anthropic.NewClient(option.WithAPIKey(key))
}

func (p *AnthropicProvider) Generate(ctx context.Context, req GenerateRequest) (*Completion, error) {
	start := time.Now()

	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Question)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.SystemPrompt},
		}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	client := p.client(req.APIKey)
	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyAnthropicError(err)
	}

	content := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	inputTokens := int(resp.Usage.InputTokens)
	outputTokens := int(resp.Usage.OutputTokens)

	return &Completion{
		Content:      content,
		Model:        string(resp.Model),
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		CostUSD:      CalculateCost(req.Model, inputTokens, outputTokens),
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func (p *AnthropicProvider) Embed(_ context.Context, _ EmbedRequest) (*EmbedResponse, error) {
	return nil, apperr.New(apperr.KindInvalidModel, "anthropic does not serve embeddings")
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500:
			return apperr.Transient(err, "anthropic chat")
		case apiErr.StatusCode == http.StatusNotFound:
			return apperr.Wrap(apperr.KindInvalidModel, err, "anthropic chat: model not found")
		default:
			return apperr.Wrap(apperr.KindProvider, err, "anthropic chat")
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Transient(err, "anthropic chat timed out")
	}
	return apperr.Transient(err, "anthropic chat")
}
