package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/mentorix/backend/internal/document"
	"github.com/mentorix/backend/internal/embedding"
	"github.com/mentorix/backend/internal/models"
	"github.com/mentorix/backend/internal/queue"
	"github.com/mentorix/backend/internal/tenant"
	"github.com/mentorix/backend/internal/usage"
	"github.com/mentorix/backend/internal/vectorstore"
	"github.com/mentorix/backend/pkg/chunker"
	"github.com/mentorix/backend/pkg/textextract"
	"github.com/mentorix/backend/pkg/tokenizer"
)

// IngestWorker turns an uploaded file into searchable chunks:
// extract text, chunk, embed, swap the chunk set in one transaction.
type IngestWorker struct {
	docs      *document.Service
	tenants   *tenant.Service
	embedder  embedding.Embedder
	store     vectorstore.Store
	ledger    *usage.Ledger
	chunkOpts chunker.Options
}

func NewIngestWorker(docs *document.Service, tenants *tenant.Service, emb embedding.Embedder, store vectorstore.Store, ledger *usage.Ledger, chunkOpts chunker.Options) *IngestWorker {
	return &IngestWorker{
		docs:      docs,
		tenants:   tenants,
		embedder:  emb,
		store:     store,
		ledger:    ledger,
		chunkOpts: chunkOpts,
	}
}

// ProcessTask always returns nil for document-level failures: the
// document carries its own error state and the retry endpoint is the
// only path back, so asynq must not redeliver.
func (w *IngestWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.DocumentIngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	docID, err := uuid.Parse(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("parse document ID: %w", err)
	}
	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return fmt.Errorf("parse tenant ID: %w", err)
	}

	claimed, err := w.docs.Claim(ctx, docID)
	if err != nil {
		return err
	}
	if !claimed {
		// Another delivery won the claim, or the document is gone.
		slog.Info("skipping ingest, document not pending", "document_id", docID)
		return nil
	}

	slog.Info("ingesting document", "document_id", docID, "tenant_id", tenantID)

	if err := w.ingest(ctx, tenantID, docID); err != nil {
		slog.Error("document ingest failed", "document_id", docID, "error", err)
		w.docs.MarkError(ctx, docID, err)
		return nil
	}
	return nil
}

func (w *IngestWorker) ingest(ctx context.Context, tenantID, docID uuid.UUID) error {
	doc, err := w.docs.Get(ctx, tenantID, docID)
	if err != nil {
		return err
	}

	ten, err := w.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}

	chunkCount, embedTokens, err := reindexDocument(ctx, w.docs, w.embedder, w.store, ten, doc, w.chunkOpts)
	if err != nil {
		return err
	}

	if err := w.docs.MarkDone(ctx, docID, chunkCount); err != nil {
		return err
	}

	if embedTokens > 0 {
		if err := w.ledger.RecordDaily(ctx, tenantID, usage.DailyRecord{EmbeddingTokens: int64(embedTokens)}); err != nil {
			slog.Warn("could not record embedding usage", "tenant_id", tenantID, "error", err)
		}
	}

	slog.Info("document ingested", "document_id", docID, "chunks", chunkCount)
	return nil
}

// reindexDocument re-derives a document's chunk set from its stored file
// and swaps it into the vector store. Shared by first ingest and tenant
// reindex.
func reindexDocument(ctx context.Context, docs *document.Service, embedder embedding.Embedder, store vectorstore.Store, ten *models.Tenant, doc *models.Document, opts chunker.Options) (chunkCount, embedTokens int, err error) {
	data, err := docs.ReadFile(doc)
	if err != nil {
		return 0, 0, err
	}

	kind := doc.MimeType
	if !textextract.Supported(kind, "") {
		kind = filepath.Ext(doc.Name)
	}
	text, err := textextract.Extract(data, kind)
	if err != nil {
		return 0, 0, err
	}

	pieces := chunker.Chunk(text, opts)
	if len(pieces) == 0 {
		// Legitimately empty, e.g. a blank page. Done with zero chunks.
		if err := store.DeleteDocument(ctx, ten.ID, doc.ID); err != nil {
			return 0, 0, err
		}
		return 0, 0, nil
	}

	vectors, tokens, err := embedder.Embed(ctx, ten.EmbeddingModel, ten.EmbeddingKey(), pieces)
	if err != nil {
		return 0, 0, err
	}

	chunks := make([]vectorstore.Chunk, len(pieces))
	for i, content := range pieces {
		chunks[i] = vectorstore.Chunk{
			TenantID:   ten.ID,
			DocumentID: doc.ID,
			ChunkIndex: i,
			Content:    content,
			Embedding:  vectors[i],
			TokenCount: tokenizer.Estimate(content),
		}
	}

	if err := store.Replace(ctx, ten.ID, doc.ID, chunks); err != nil {
		return 0, 0, err
	}
	return len(chunks), tokens, nil
}
