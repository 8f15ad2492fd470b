package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mentorix/backend/internal/api/handlers"
	"github.com/mentorix/backend/internal/api/middleware"
	"github.com/mentorix/backend/internal/auth"
	"github.com/mentorix/backend/internal/cache"
	"github.com/mentorix/backend/internal/chat"
	"github.com/mentorix/backend/internal/config"
	"github.com/mentorix/backend/internal/document"
	"github.com/mentorix/backend/internal/embedding"
	"github.com/mentorix/backend/internal/guard"
	"github.com/mentorix/backend/internal/llm"
	"github.com/mentorix/backend/internal/queue"
	"github.com/mentorix/backend/internal/rag"
	"github.com/mentorix/backend/internal/tenant"
	"github.com/mentorix/backend/internal/usage"
	"github.com/mentorix/backend/internal/vectorstore"
)

type Router struct {
	mux    *chi.Mux
	db     *pgxpool.Pool
	redis  *redis.Client
	cfg    *config.Config
	ts     *tenant.Service
	apikey *auth.APIKeyMiddleware
	admin  *auth.AdminJWT
	llmGW  *llm.Gateway
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	ts := tenant.NewService(db)
	return &Router{
		mux:    chi.NewRouter(),
		db:     db,
		redis:  rdb,
		cfg:    cfg,
		ts:     ts,
		apikey: auth.NewAPIKeyMiddleware(cfg.Auth.APIKeyHeader, ts),
		admin:  auth.NewAdminJWT(cfg.Auth.AdminJWTSecret),
		llmGW:  llm.NewGateway(cfg.LLM),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Initialize services
	queueClient := queue.NewClient(rt.cfg.Redis)
	docSvc := document.NewService(rt.db, queueClient, rt.cfg.Upload.Dir, rt.cfg.Upload.MaxSizeMB)

	vs := vectorstore.NewPgVectorStore(rt.db, rt.cfg.RAG.EmbeddingDim)
	embedSvc := embedding.NewService(rt.llmGW, rt.cfg.RAG.EmbeddingDim)
	retriever := rag.NewRetriever(vs, embedSvc, rt.cfg.RAG.TopK)
	pipeline := rag.NewPipeline(retriever, rt.llmGW)

	ledger := usage.NewLedger(rt.db)
	chatStore := chat.NewStore(rt.db)
	injectionGuard := guard.New(rt.cfg.Chat.QuestionMaxChars)
	chatSvc := chat.NewService(rt.ts, chatStore, injectionGuard, ledger, pipeline, rt.cfg.Chat.IPHashSalt)

	appCache := cache.NewCache(rt.redis)

	// Public widget endpoints. These are the routes the embedded chat
	// widget hits from end-user browsers, so no API key is required.
	chatH := handlers.NewChatHandler(chatSvc, rt.ts, appCache)
	r.Route("/chat/{tenantID}", func(r chi.Router) {
		r.Get("/config", chatH.Config)
		r.Get("/history", chatH.History)
		r.Post("/message", chatH.Message)
	})

	// Tenant management API (API key auth)
	r.Route("/api/v1/tenants/{tenantID}", func(r chi.Router) {
		r.Use(rt.apikey.Authenticate)

		docH := handlers.NewDocumentHandler(docSvc)
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", docH.Upload)
			r.Get("/", docH.List)
			r.Get("/{id}", docH.Get)
			r.Delete("/{id}", docH.Delete)
			r.Post("/{id}/retry", docH.Retry)
		})
	})

	// Admin API (JWT auth)
	adminH := handlers.NewAdminHandler(rt.ts, ledger, queueClient, rt.llmGW, appCache)
	r.Route("/admin", func(r chi.Router) {
		r.Use(rt.admin.Authenticate)

		r.Post("/tenants", adminH.CreateTenant)
		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			r.Get("/", adminH.GetTenant)
			r.Patch("/", adminH.UpdateTenant)
			r.Post("/reindex", adminH.Reindex)
			r.Get("/usage", adminH.Usage)
		})

		r.Route("/ollama", func(r chi.Router) {
			r.Get("/models", adminH.OllamaModels)
			r.Post("/pull", adminH.OllamaPull)
		})
	})

	return r
}
