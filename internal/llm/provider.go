package llm

import "context"

// GenerateRequest is a single-turn completion request. Model is the
// provider-local model name, with any routing prefix already stripped.
type GenerateRequest struct {
	Model        string
	SystemPrompt string
	Question     string
	Temperature  float64
	MaxTokens    int
	// APIKey overrides the server-wide key when a tenant brings its own.
	APIKey string
}

type Completion struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	CostUSD      float64
	LatencyMs    int64
}

type EmbedRequest struct {
	Model string
	Input []string
	// Dimensions asks the provider for fixed-size vectors where supported.
	Dimensions int
	APIKey     string
}

type EmbedResponse struct {
	Embeddings [][]float32
	Tokens     int
	CostUSD    float64
}

// Provider is one upstream model API normalized to a common shape.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (*Completion, error)
	Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error)
}
