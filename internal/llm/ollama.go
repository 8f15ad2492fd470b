package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mentorix/backend/internal/apperr"
	"github.com/mentorix/backend/pkg/tokenizer"
)

// OllamaProvider talks to a local Ollama daemon. Models must be pulled
// onto the host before they can serve requests.
type OllamaProvider struct {
	baseURL    string
	httpClient *http.Client
}

func NewOllamaProvider(baseURL string) *OllamaProvider {
	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

func (p *OllamaProvider) Name() string { return "ollama" }

type ollamaChatReq struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResp struct {
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

func (p *OllamaProvider) Generate(ctx context.Context, req GenerateRequest) (*Completion, error) {
	start := time.Now()

	oReq := ollamaChatReq{
		Model: req.Model,
		Messages: []ollamaMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.Question},
		},
		Stream: false,
	}
	if req.Temperature > 0 || req.MaxTokens > 0 {
		oReq.Options = &ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		}
	}

	var oResp ollamaChatResp
	if err := p.post(ctx, "/api/chat", oReq, &oResp); err != nil {
		return nil, err
	}

	inputTokens := oResp.PromptEvalCount
	outputTokens := oResp.EvalCount
	if inputTokens == 0 {
		inputTokens = tokenizer.Estimate(req.SystemPrompt) + tokenizer.Estimate(req.Question)
	}
	if outputTokens == 0 {
		outputTokens = tokenizer.Estimate(oResp.Message.Content)
	}

	return &Completion{
		Content:      oResp.Message.Content,
		Model:        req.Model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		CostUSD:      0, // local models are free
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

type ollamaEmbedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResp struct {
	Embeddings      [][]float32 `json:"embeddings"`
	PromptEvalCount int         `json:"prompt_eval_count"`
}

func (p *OllamaProvider) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	oReq := ollamaEmbedReq{
		Model: req.Model,
		Input: req.Input,
	}

	var oResp ollamaEmbedResp
	if err := p.post(ctx, "/api/embed", oReq, &oResp); err != nil {
		return nil, err
	}

	tokens := oResp.PromptEvalCount
	if tokens == 0 {
		tokens = tokenizer.EstimateAll(req.Input)
	}

	return &EmbedResponse{
		Embeddings: oResp.Embeddings,
		Tokens:     tokens,
		CostUSD:    0,
	}, nil
}

// OllamaModel is one entry from the daemon's local model list.
type OllamaModel struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

type ollamaTagsResp struct {
	Models []OllamaModel `json:"models"`
}

// Tags lists the models pulled onto the Ollama host.
func (p *OllamaProvider) Tags(ctx context.Context) ([]OllamaModel, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("ollama tags request: %w", err)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperr.Transient(err, "ollama tags")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Transient(fmt.Errorf("status %d", resp.StatusCode), "ollama tags")
	}

	var tResp ollamaTagsResp
	if err := json.NewDecoder(resp.Body).Decode(&tResp); err != nil {
		return nil, fmt.Errorf("ollama tags decode: %w", err)
	}
	return tResp.Models, nil
}

// Pull downloads a model onto the Ollama host. It blocks until the pull
// completes, which can take minutes for large models.
func (p *OllamaProvider) Pull(ctx context.Context, model string) error {
	body := map[string]any{"name": model, "stream": false}
	var status struct {
		Status string `json:"status"`
	}
	if err := p.post(ctx, "/api/pull", body, &status); err != nil {
		return err
	}
	if status.Status != "success" {
		return apperr.New(apperr.KindProvider, "ollama pull %s: %s", model, status.Status)
	}
	return nil
}

func (p *OllamaProvider) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("ollama marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return apperr.Transient(err, "ollama %s canceled", path)
		}
		return apperr.Transient(err, "ollama %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classifyOllamaStatus(resp, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ollama %s decode: %w", path, err)
	}
	return nil
}

func classifyOllamaStatus(resp *http.Response, path string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var errBody struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(raw, &errBody)
	msg := errBody.Error
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || strings.Contains(msg, "not found"):
		return apperr.New(apperr.KindModelNotPulled, "ollama %s: %s", path, msg)
	case resp.StatusCode >= 500:
		return apperr.Transient(fmt.Errorf("status %d: %s", resp.StatusCode, msg), "ollama %s", path)
	default:
		return apperr.New(apperr.KindProvider, "ollama %s: status %d: %s", path, resp.StatusCode, msg)
	}
}
