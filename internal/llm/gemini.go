package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/mentorix/backend/internal/apperr"
	"github.com/mentorix/backend/pkg/tokenizer"
)

type GeminiProvider struct {
	defaultKey string
}

func NewGeminiProvider(apiKey string) *GeminiProvider {
	return &GeminiProvider{defaultKey: apiKey}
}

func (p *GeminiProvider) Name() string { return "gemini" }

// newClient builds a short-lived client so per-tenant keys can override
// the server key. The genai client holds no connection pool worth keeping.
func (p *GeminiProvider) newClient(ctx context.Context, overrideKey string) (*genai.Client, error) {
	key := p.defaultKey
	if overrideKey != "" {
		key = overrideKey
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProvider, err, "gemini client")
	}
	return client, nil
}

func (p *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (*Completion, error) {
	start := time.Now()

	client, err := p.newClient(ctx, req.APIKey)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	model := client.GenerativeModel(req.Model)
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemPrompt)},
		}
	}
	if req.Temperature > 0 {
		model.SetTemperature(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Question))
	if err != nil {
		return nil, classifyGeminiError(err, "gemini chat")
	}

	var sb strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				sb.WriteString(string(txt))
			}
		}
	}
	content := sb.String()

	var inputTokens, outputTokens int
	if resp.UsageMetadata != nil {
		inputTokens = int(resp.UsageMetadata.PromptTokenCount)
		outputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	} else {
		inputTokens = tokenizer.Estimate(req.SystemPrompt) + tokenizer.Estimate(req.Question)
		outputTokens = tokenizer.Estimate(content)
	}

	return &Completion{
		Content:      content,
		Model:        req.Model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		CostUSD:      CalculateCost(req.Model, inputTokens, outputTokens),
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func (p *GeminiProvider) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	client, err := p.newClient(ctx, req.APIKey)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	em := client.EmbeddingModel(req.Model)
	batch := em.NewBatch()
	for _, text := range req.Input {
		batch.AddContent(genai.Text(text))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, classifyGeminiError(err, "gemini embedding")
	}

	embeddings := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		embeddings[i] = e.Values
	}

	return &EmbedResponse{
		Embeddings: embeddings,
		Tokens:     tokenizer.EstimateAll(req.Input),
		CostUSD:    CalculateCost(req.Model, tokenizer.EstimateAll(req.Input), 0),
	}, nil
}

func classifyGeminiError(err error, op string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500:
			return apperr.Transient(err, "%s", op)
		case apiErr.Code == http.StatusNotFound:
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
