package embedding

import (
	"context"
	"fmt"

	"github.com/mentorix/backend/internal/apperr"
	"github.com/mentorix/backend/internal/llm"
)

// batchSize is the per-request input cap shared by the supported
// embedding APIs.
const batchSize = 100

// Embedder turns text into fixed-size vectors through the model gateway.
// Vectors wider than dim are truncated; narrower ones are rejected, never
// padded, so stored vectors stay comparable.
type Embedder interface {
	Embed(ctx context.Context, model, apiKey string, texts []string) ([][]float32, int, error)
	EmbedQuery(ctx context.Context, model, apiKey, text string) ([]float32, error)
	Dim() int
}

// ModelGateway is the slice of the LLM gateway this service needs.
type ModelGateway interface {
	Embed(ctx context.Context, req llm.EmbedRequest) (*llm.EmbedResponse, error)
}

type Service struct {
	gateway ModelGateway
	dim     int
}

func NewService(gw ModelGateway, dim int) *Service {
	return &Service{gateway: gw, dim: dim}
}

func (s *Service) Dim() int { return s.dim }

// Embed vectorizes texts in order, batching the upstream calls. The
// returned token count covers all batches.
func (s *Service) Embed(ctx context.Context, model, apiKey string, texts []string) ([][]float32, int, error) {
	if len(texts) == 0 {
		return nil, 0, nil
	}

	embeddings := make([][]float32, 0, len(texts))
	totalTokens := 0

	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := s.gateway.Embed(ctx, llm.EmbedRequest{
			Model:      model,
			Input:      texts[i:end],
			Dimensions: s.dim,
			APIKey:     apiKey,
		})
		if err != nil {
			return nil, 0, fmt.Errorf("embed batch %d: %w", i/batchSize, err)
		}
		if len(resp.Embeddings) != end-i {
			return nil, 0, apperr.New(apperr.KindProvider,
				"embed batch %d: got %d vectors for %d inputs", i/batchSize, len(resp.Embeddings), end-i)
		}

		for j, vec := range resp.Embeddings {
			fitted, err := s.fit(vec)
			if err != nil {
				return nil, 0, fmt.Errorf("embed input %d: %w", i+j, err)
			}
			embeddings = append(embeddings, fitted)
		}
		totalTokens += resp.Tokens
	}

	return embeddings, totalTokens, nil
}

func (s *Service) EmbedQuery(ctx context.Context, model, apiKey, text string) ([]float32, error) {
	embeddings, _, err := s.Embed(ctx, model, apiKey, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, apperr.New(apperr.KindProvider, "no embedding returned")
	}
	return embeddings[0], nil
}

func (s *Service) fit(vec []float32) ([]float32, error) {
	switch {
	case len(vec) == s.dim:
		return vec, nil
	case len(vec) > s.dim:
		return vec[:s.dim], nil
	default:
		return nil, apperr.New(apperr.KindDimensionMismatch,
			"embedding has %d dimensions, need %d", len(vec), s.dim)
	}
}
