package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorix/backend/internal/apperr"
	"github.com/mentorix/backend/internal/llm"
)

type stubGateway struct {
	calls   []llm.EmbedRequest
	respond func(req llm.EmbedRequest) (*llm.EmbedResponse, error)
}

func (s *stubGateway) Embed(_ context.Context, req llm.EmbedRequest) (*llm.EmbedResponse, error) {
	s.calls = append(s.calls, req)
	return s.respond(req)
}

func vecOf(dim int, fill float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = fill
	}
	return v
}

func echoVectors(dim int) func(req llm.EmbedRequest) (*llm.EmbedResponse, error) {
	return func(req llm.EmbedRequest) (*llm.EmbedResponse, error) {
		out := make([][]float32, len(req.Input))
		for i := range req.Input {
			out[i] = vecOf(dim, float32(i))
		}
		return &llm.EmbedResponse{Embeddings: out, Tokens: len(req.Input) * 7}, nil
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	svc := NewService(&stubGateway{}, 768)

	vecs, tokens, err := svc.Embed(context.Background(), "openai", "", nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
	assert.Zero(t, tokens)
}

func TestEmbedBatchesOfAtMostOneHundred(t *testing.T) {
	gw := &stubGateway{respond: echoVectors(768)}
	svc := NewService(gw, 768)

	texts := make([]string, 250)
	for i := range texts {
		texts[i] = "chunk"
	}

	vecs, tokens, err := svc.Embed(context.Background(), "openai", "", texts)
	require.NoError(t, err)
	assert.Len(t, vecs, 250)
	assert.Equal(t, 250*7, tokens)

	require.Len(t, gw.calls, 3)
	assert.Len(t, gw.calls[0].Input, 100)
	assert.Len(t, gw.calls[1].Input, 100)
	assert.Len(t, gw.calls[2].Input, 50)
	assert.Equal(t, 768, gw.calls[0].Dimensions)
}

func TestEmbedPreservesOrder(t *testing.T) {
	gw := &stubGateway{respond: echoVectors(768)}
	svc := NewService(gw, 768)

	vecs, _, err := svc.Embed(context.Background(), "openai", "", []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, float32(0), vecs[0][0])
	assert.Equal(t, float32(1), vecs[1][0])
	assert.Equal(t, float32(2), vecs[2][0])
}

func TestEmbedTruncatesWiderVectors(t *testing.T) {
	gw := &stubGateway{respond: echoVectors(1536)}
	svc := NewService(gw, 768)

	vecs, _, err := svc.Embed(context.Background(), "text-embedding-3-large", "", []string{"a"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Len(t, vecs[0], 768)
}

func TestEmbedRejectsNarrowerVectors(t *testing.T) {
	gw := &stubGateway{respond: echoVectors(384)}
	svc := NewService(gw, 768)

	_, _, err := svc.Embed(context.Background(), "ollama:all-minilm", "", []string{"a"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindDimensionMismatch, apperr.KindOf(err))
}

func TestEmbedCountMismatchIsProviderError(t *testing.T) {
	gw := &stubGateway{respond: func(req llm.EmbedRequest) (*llm.EmbedResponse, error) {
		return &llm.EmbedResponse{Embeddings: [][]float32{vecOf(768, 1)}}, nil
	}}
	svc := NewService(gw, 768)

	_, _, err := svc.Embed(context.Background(), "openai", "", []string{"a", "b"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindProvider, apperr.KindOf(err))
}

func TestEmbedQuery(t *testing.T) {
	gw := &stubGateway{respond: echoVectors(768)}
	svc := NewService(gw, 768)

	vec, err := svc.EmbedQuery(context.Background(), "openai", "sk-tenant", "what is pricing?")
	require.NoError(t, err)
	assert.Len(t, vec, 768)
	assert.Equal(t, "sk-tenant", gw.calls[0].APIKey)
}
