package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/PulseInsights-Org/pulse-application-layer/internal/api/handlers"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/api/middleware"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/cache"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/config"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/embedding"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/intake"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/memory"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/storage"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
	auth  *middleware.OrgAuth
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
		auth:  middleware.NewOrgAuth(cfg.Auth.JWTSecret, cfg.Auth.OrgHeader),
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

	c := cache.New(rt.redis)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, c)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Services
	objects := storage.NewSupabaseStore(rt.cfg.Storage.SupabaseURL, rt.cfg.Storage.SupabaseKey, rt.cfg.Storage.Bucket)
	intakes := intake.NewPostgresStore(rt.db)
	memories := memory.NewPostgresStore(rt.db)
	intakeSvc := intake.NewService(intakes, objects)

	var embedder embedding.Embedder
	if rt.cfg.Embedding.Enabled && rt.cfg.Embedding.OpenAIKey != "" {
		embedder = embedding.NewOpenAIEmbedder(rt.cfg.Embedding.OpenAIKey, rt.cfg.Embedding.Model)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.auth.Authenticate)

		intakeH := handlers.NewIntakeHandler(intakeSvc)
		r.Route("/intakes", func(r chi.Router) {
			r.Post("/init", intakeH.Init)
			r.Post("/{id}/upload", intakeH.Upload)
			r.Post("/{id}/upload/text", intakeH.UploadText)
			r.Post("/{id}/finalize", intakeH.Finalize)
			r.Get("/{id}", intakeH.Get)
		})

		memoryH := handlers.NewMemoryHandler(memories, embedder, c)
		r.Route("/memories", func(r chi.Router) {
			r.Get("/", memoryH.List)
			r.Get("/{id}", memoryH.Get)
			r.Post("/search", memoryH.Search)
		})

		adminH := handlers.NewAdminHandler(intakes, memories, c)
		r.Route("/admin", func(r chi.Router) {
			r.Get("/stats", adminH.Stats)
		})
	})

	return r
}
