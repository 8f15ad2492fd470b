package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/mentorix/backend/internal/config"
	"github.com/mentorix/backend/internal/database"
	"github.com/mentorix/backend/internal/document"
	"github.com/mentorix/backend/internal/embedding"
	"github.com/mentorix/backend/internal/llm"
	"github.com/mentorix/backend/internal/queue"
	"github.com/mentorix/backend/internal/queue/workers"
	"github.com/mentorix/backend/internal/tenant"
	"github.com/mentorix/backend/internal/usage"
	"github.com/mentorix/backend/internal/vectorstore"
	"github.com/mentorix/backend/pkg/chunker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	qc := queue.NewClient(cfg.Redis)
	defer qc.Close()

	tenants := tenant.NewService(db)
	docs := document.NewService(db, qc, cfg.Upload.Dir, cfg.Upload.MaxSizeMB)
	gw := llm.NewGateway(cfg.LLM)
	embedder := embedding.NewService(gw, cfg.RAG.EmbeddingDim)
	store := vectorstore.NewPgVectorStore(db, cfg.RAG.EmbeddingDim)
	ledger := usage.NewLedger(db)
	chunkOpts := chunker.Options{Size: cfg.RAG.ChunkSize, Overlap: cfg.RAG.ChunkOverlap}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	registry := queue.NewHandlersRegistry()

	ingestWorker := workers.NewIngestWorker(docs, tenants, embedder, store, ledger, chunkOpts)
	reindexWorker := workers.NewReindexWorker(docs, tenants, embedder, store, chunkOpts)

	registry.Register(queue.TypeDocumentIngest, ingestWorker)
	registry.Register(queue.TypeTenantReindex, reindexWorker)

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
