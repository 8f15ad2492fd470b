package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mentorix/backend/internal/embedding"
	"github.com/mentorix/backend/internal/models"
	"github.com/mentorix/backend/internal/vectorstore"
)

const (
	// smallCorpusMax is the chunk count under which retrieval skips
	// similarity ranking and sends the whole corpus. Tiny knowledge
	// bases fit in the prompt anyway, and skipping the query embedding
	// saves a provider round trip.
	smallCorpusMax = 20

	// maxPerDoc caps one document's share of the result window.
	maxPerDoc = 4

	// keywordSupplementMax is how many keyword-matched chunks may be
	// appended after the vector results.
	keywordSupplementMax = 4
)

type Retriever struct {
	store    vectorstore.Store
	embedder embedding.Embedder
	topK     int
}

func NewRetriever(store vectorstore.Store, embedder embedding.Embedder, topK int) *Retriever {
	if topK <= 0 {
		topK = 12
	}
	return &Retriever{store: store, embedder: embedder, topK: topK}
}

// Retrieve returns the chunks to ground an answer on. Small corpora are
// returned whole; larger ones get a cosine top-K with a per-document cap,
// topped up with literal keyword matches the embedding may have missed.
func (r *Retriever) Retrieve(ctx context.Context, ten *models.Tenant, question string) ([]vectorstore.SearchResult, error) {
	ready, err := r.store.CountReady(ctx, ten.ID)
	if err != nil {
		return nil, fmt.Errorf("count corpus: %w", err)
	}
	if ready == 0 {
		return nil, nil
	}
	if ready <= smallCorpusMax {
		return r.store.FetchAll(ctx, ten.ID)
	}

	queryVec, err := r.embedder.EmbedQuery(ctx, ten.EmbeddingModel, ten.EmbeddingKey(), question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	results, err := r.store.Search(ctx, queryVec, vectorstore.SearchOptions{
		TenantID:  ten.ID,
		TopK:      r.topK,
		MaxPerDoc: maxPerDoc,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	stems := extractKeywords(question)
	if len(stems) == 0 {
		return results, nil
	}

	seen := make([]uuid.UUID, len(results))
	for i, res := range results {
		seen[i] = res.ChunkID
	}

	extra, err := r.store.SearchKeywords(ctx, ten.ID, stems, keywordSupplementMax, seen)
	if err != nil {
		// The vector results alone still make a usable answer.
		slog.Warn("keyword supplement failed", "tenant_id", ten.ID, "error", err)
		return results, nil
	}

	return append(results, extra...), nil
}
