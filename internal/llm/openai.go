package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mentorix/backend/internal/apperr"
)

type OpenAIProvider struct {
	defaultKey string
}

func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{defaultKey: apiKey}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) client(overrideKey string) *openai.Client {
	key := p.defaultKey
	if overrideKey != "" {
		key = overrideKey
	}
	return openai.NewClient(key)
}

func (p *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (*Completion, error) {
	start := time.Now()

	oReq := openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.Question},
		},
	}
	if req.Temperature > 0 {
		oReq.Temperature = float32(req.Temperature)
	}
	if req.MaxTokens > 0 {
		oReq.MaxTokens = req.MaxTokens
	}

	resp, err := p.client(req.APIKey).CreateChatCompletion(ctx, oReq)
	if err != nil {
		return nil, classifyOpenAIError(err, "openai chat")
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	return &Completion{
		Content:      content,
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
		CostUSD:      CalculateCost(req.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func (p *OpenAIProvider) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	oReq := openai.EmbeddingRequest{
		Input: req.Input,
		Model: openai.EmbeddingModel(req.Model),
	}
	if req.Dimensions > 0 {
		oReq.Dimensions = req.Dimensions
	}

	resp, err := p.client(req.APIKey).CreateEmbeddings(ctx, oReq)
	if err != nil {
		return nil, classifyOpenAIError(err, "openai embedding")
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		embeddings[i] = d.Embedding
	}

	return &EmbedResponse{
		Embeddings: embeddings,
		Tokens:     resp.Usage.TotalTokens,
		CostUSD:    CalculateCost(req.Model, resp.Usage.PromptTokens, 0),
	}, nil
}

// classifyOpenAIError separates errors worth a retry (rate limits, 5xx,
// timeouts) from hard rejections like a bad model name or revoked key.
func classifyOpenAIError(err error, op string) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500:
			return apperr.Transient(err, "%s", op)
		case apiErr.HTTPStatusCode == http.StatusNotFound:
			return apperr.Wrap(apperr.KindInvalidModel, err, "%s: model not found", op)
		default:
			return apperr.Wrap(apperr.KindProvider, err, "%s", op)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Transient(err, "%s timed out", op)
	}
	return apperr.Transient(err, "%s", op)
}
