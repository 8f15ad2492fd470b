package llm

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mentorix/backend/internal/apperr"
	"github.com/mentorix/backend/internal/config"
)

const (
	// OllamaPrefix marks a model as local: "ollama:llama3" runs llama3
	// on the configured Ollama host.
	OllamaPrefix = "ollama:"

	// DefaultEmbeddingAlias is the stored embedding model value that maps
	// to OpenAI text-embedding-3-small.
	DefaultEmbeddingAlias = "openai"

	openAIEmbeddingModel = "text-embedding-3-small"
	geminiEmbeddingModel = "text-embedding-004"

	retryBackoff = 500 * time.Millisecond
)

// Gateway routes requests to a provider by model name and retries
// transient upstream failures exactly once.
type Gateway struct {
	providers map[string]Provider
	timeout   time.Duration
}

func NewGateway(cfg config.LLMConfig) *Gateway {
	g := &Gateway{
		providers: make(map[string]Provider),
		timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
	}

	g.providers["openai"] = NewOpenAIProvider(cfg.OpenAIKey)
	g.providers["anthropic"] = NewAnthropicProvider(cfg.AnthropicKey)
	g.providers["gemini"] = NewGeminiProvider(cfg.GoogleKey)
	if cfg.OllamaURL != "" {
		g.providers["ollama"] = NewOllamaProvider(cfg.OllamaURL)
	}

	return g
}

// Ollama returns the local-model provider, or nil when no Ollama host
// is configured.
func (g *Gateway) Ollama() *OllamaProvider {
	p, ok := g.providers["ollama"].(*OllamaProvider)
	if !ok {
		return nil
	}
	return p
}

func (g *Gateway) provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, apperr.New(apperr.KindInvalidModel, "provider %q not configured", name)
	}
	return p, nil
}

// chatRoute picks a provider from the chat model name. Unprefixed names
// fall through to OpenAI.
func (g *Gateway) chatRoute(model string) (Provider, string, error) {
	switch {
	case strings.HasPrefix(model, OllamaPrefix):
		p, err := g.provider("ollama")
		return p, strings.TrimPrefix(model, OllamaPrefix), err
	case strings.HasPrefix(model, "claude-"):
		p, err := g.provider("anthropic")
		return p, model, err
	case strings.HasPrefix(model, "gemini-"):
		p, err := g.provider("gemini")
		return p, model, err
	default:
		p, err := g.provider("openai")
		return p, model, err
	}
}

// embedRoute is stricter than chatRoute: an embedding model that maps to
// no provider is a tenant configuration error, not an OpenAI fallthrough.
func (g *Gateway) embedRoute(model string) (Provider, string, error) {
	switch {
	case model == DefaultEmbeddingAlias:
		p, err := g.provider("openai")
		return p, openAIEmbeddingModel, err
	case strings.HasPrefix(model, "text-embedding-3"):
		p, err := g.provider("openai")
		return p, model, err
	case strings.HasPrefix(model, OllamaPrefix):
		p, err := g.provider("ollama")
		return p, strings.TrimPrefix(model, OllamaPrefix), err
	case model == geminiEmbeddingModel || strings.HasPrefix(model, "gemini-embedding"):
		p, err := g.provider("gemini")
		return p, model, err
	default:
		return nil, "", apperr.New(apperr.KindInvalidModel, "unknown embedding model %q", model)
	}
}

func (g *Gateway) Generate(ctx context.Context, req GenerateRequest) (*Completion, error) {
	p, localModel, err := g.chatRoute(req.Model)
	if err != nil {
		return nil, err
	}
	req.Model = localModel

	return withRetry(ctx, g.timeout, p.Name(), func(ctx context.Context) (*Completion, error) {
		return p.Generate(ctx, req)
	})
}

func (g *Gateway) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	p, localModel, err := g.embedRoute(req.Model)
	if err != nil {
		return nil, err
	}
	req.Model = localModel

	return withRetry(ctx, g.timeout, p.Name(), func(ctx context.Context) (*EmbedResponse, error) {
		return p.Embed(ctx, req)
	})
}

// withRetry bounds the call and retries once after a backoff, but only
// for errors the provider marked transient.
func withRetry[T any](ctx context.Context, timeout time.Duration, providerName string, call func(context.Context) (*T, error)) (*T, error) {
	attempt := func() (*T, error) {
		callCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return call(callCtx)
	}

	resp, err := attempt()
	if err == nil || !apperr.IsRetryable(err) {
		return resp, err
	}

	slog.Warn("transient provider error, retrying once", "provider", providerName, "error", err)
	select {
	case <-ctx.Done():
		return nil, apperr.Transient(ctx.Err(), "%s call canceled", providerName)
	case <-time.After(retryBackoff):
	}

	return attempt()
}
