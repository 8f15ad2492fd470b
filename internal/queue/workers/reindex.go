package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/mentorix/backend/internal/document"
	"github.com/mentorix/backend/internal/embedding"
	"github.com/mentorix/backend/internal/queue"
	"github.com/mentorix/backend/internal/tenant"
	"github.com/mentorix/backend/internal/vectorstore"
	"github.com/mentorix/backend/pkg/chunker"
)

// reindexConcurrency bounds parallel re-embeds so one tenant's reindex
// cannot saturate the embedding provider.
const reindexConcurrency = 3

// ReindexWorker re-embeds a tenant's whole corpus with its current
// embedding model. Switching models makes old vectors incomparable, so
// every finished document is rebuilt from its stored file.
type ReindexWorker struct {
	docs      *document.Service
	tenants   *tenant.Service
	embedder  embedding.Embedder
	store     vectorstore.Store
	chunkOpts chunker.Options
}

func NewReindexWorker(docs *document.Service, tenants *tenant.Service, emb embedding.Embedder, store vectorstore.Store, chunkOpts chunker.Options) *ReindexWorker {
	return &ReindexWorker{
		docs:      docs,
		tenants:   tenants,
		embedder:  emb,
		store:     store,
		chunkOpts: chunkOpts,
	}
}

func (w *ReindexWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.TenantReindexPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return fmt.Errorf("parse tenant ID: %w", err)
	}

	ten, err := w.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}

	ids, err := w.docs.ListDone(ctx, tenantID)
	if err != nil {
		return err
	}

	slog.Info("reindexing tenant", "tenant_id", tenantID, "documents", len(ids), "model", ten.EmbeddingModel)

	// Wipe first: after a model switch the old vectors are useless, and
	// a wiped corpus is strictly better than one mixing embedding spaces
	// if the rebuild dies halfway.
	if err := w.store.DeleteTenant(ctx, tenantID); err != nil {
		return fmt.Errorf("clear tenant chunks: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reindexConcurrency)
	for _, docID := range ids {
		g.Go(func() error {
			doc, err := w.docs.Get(gctx, tenantID, docID)
			if err != nil {
				return err
			}
			chunkCount, _, err := reindexDocument(gctx, w.docs, w.embedder, w.store, ten, doc, w.chunkOpts)
			if err != nil {
				// A single broken document should not sink the rest of
				// the corpus; flag it and keep going.
				slog.Error("reindex failed for document", "document_id", docID, "error", err)
				w.docs.MarkError(gctx, docID, err)
				return nil
			}
			return w.docs.MarkDone(gctx, docID, chunkCount)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("tenant reindex complete", "tenant_id", tenantID)
	return nil
}

// interface checks
var (
	_ asynq.Handler = (*IngestWorker)(nil)
	_ asynq.Handler = (*ReindexWorker)(nil)
)
