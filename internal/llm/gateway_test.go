package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorix/backend/internal/apperr"
)

type fakeProvider struct {
	name      string
	calls     int
	failures  int
	failWith  error
	lastModel string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(_ context.Context, req GenerateRequest) (*Completion, error) {
	f.calls++
	f.lastModel = req.Model
	if f.calls <= f.failures {
		return nil, f.failWith
	}
	return &Completion{Content: "ok", Model: req.Model, TotalTokens: 10}, nil
}

func (f *fakeProvider) Embed(_ context.Context, req EmbedRequest) (*EmbedResponse, error) {
	f.calls++
	f.lastModel = req.Model
	if f.calls <= f.failures {
		return nil, f.failWith
	}
	return &EmbedResponse{Embeddings: [][]float32{{0.1}}}, nil
}

func newTestGateway(fakes ...*fakeProvider) *Gateway {
	g := &Gateway{providers: make(map[string]Provider), timeout: time.Second}
	for _, f := range fakes {
		g.providers[f.name] = f
	}
	return g
}

func TestChatRouting(t *testing.T) {
	tests := []struct {
		model        string
		wantProvider string
		wantModel    string
	}{
		{"gpt-4o-mini", "openai", "gpt-4o-mini"},
		{"claude-3-haiku-20240307", "anthropic", "claude-3-haiku-20240307"},
		{"gemini-1.5-flash", "gemini", "gemini-1.5-flash"},
		{"ollama:llama3", "ollama", "llama3"},
		{"some-custom-model", "openai", "some-custom-model"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			fakes := map[string]*fakeProvider{
				"openai":    {name: "openai"},
				"anthropic": {name: "anthropic"},
				"gemini":    {name: "gemini"},
				"ollama":    {name: "ollama"},
			}
			g := newTestGateway(fakes["openai"], fakes["anthropic"], fakes["gemini"], fakes["ollama"])

			_, err := g.Generate(context.Background(), GenerateRequest{Model: tt.model, Question: "hi"})
			require.NoError(t, err)

			assert.Equal(t, 1, fakes[tt.wantProvider].calls)
			assert.Equal(t, tt.wantModel, fakes[tt.wantProvider].lastModel)
			for name, f := range fakes {
				if name != tt.wantProvider {
					assert.Zero(t, f.calls, "provider %s should not be called", name)
				}
			}
		})
	}
}

func TestEmbedRouting(t *testing.T) {
	openaiFake := &fakeProvider{name: "openai"}
	ollamaFake := &fakeProvider{name: "ollama"}
	geminiFake := &fakeProvider{name: "gemini"}
	g := newTestGateway(openaiFake, ollamaFake, geminiFake)

	_, err := g.Embed(context.Background(), EmbedRequest{Model: "openai", Input: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", openaiFake.lastModel)

	_, err = g.Embed(context.Background(), EmbedRequest{Model: "ollama:nomic-embed-text", Input: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", ollamaFake.lastModel)

	_, err = g.Embed(context.Background(), EmbedRequest{Model: "text-embedding-004", Input: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-004", geminiFake.lastModel)
}

func TestEmbedUnknownModel(t *testing.T) {
	g := newTestGateway(&fakeProvider{name: "openai"})

	_, err := g.Embed(context.Background(), EmbedRequest{Model: "made-up-embedder", Input: []string{"a"}})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidModel, apperr.KindOf(err))
}

func TestGenerateRetriesTransientOnce(t *testing.T) {
	fake := &fakeProvider{
		name:     "openai",
		failures: 1,
		failWith: apperr.Transient(assert.AnError, "upstream hiccup"),
	}
	g := newTestGateway(fake)

	resp, err := g.Generate(context.Background(), GenerateRequest{Model: "gpt-4o", Question: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 2, fake.calls)
}

func TestGenerateGivesUpAfterSecondTransientFailure(t *testing.T) {
	fake := &fakeProvider{
		name:     "openai",
		failures: 5,
		failWith: apperr.Transient(assert.AnError, "upstream down"),
	}
	g := newTestGateway(fake)

	_, err := g.Generate(context.Background(), GenerateRequest{Model: "gpt-4o", Question: "hi"})
	require.Error(t, err)
	assert.Equal(t, 2, fake.calls, "exactly one retry")
}

func TestGenerateDoesNotRetryHardErrors(t *testing.T) {
	fake := &fakeProvider{
		name:     "openai",
		failures: 5,
		failWith: apperr.New(apperr.KindInvalidModel, "no such model"),
	}
	g := newTestGateway(fake)

	_, err := g.Generate(context.Background(), GenerateRequest{Model: "gpt-nope", Question: "hi"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidModel, apperr.KindOf(err))
	assert.Equal(t, 1, fake.calls)
}

func TestGenerateUnconfiguredProvider(t *testing.T) {
	g := newTestGateway(&fakeProvider{name: "openai"})

	_, err := g.Generate(context.Background(), GenerateRequest{Model: "ollama:llama3", Question: "hi"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidModel, apperr.KindOf(err))
}
