package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"hadiqa-go/internal/auth"
	"hadiqa-go/internal/hq"
	"hadiqa-go/internal/oracle"
	"hadiqa-go/internal/ratelimit"
)

// DefaultMaxUploadBytes bounds multipart uploads to the admin and oracle endpoints.
const DefaultMaxUploadBytes = 512 << 20

const shutdownTimeout = 10 * time.Second

type Config struct {
	Service        *hq.HQService
	Media          hq.MediaManager
	History        *oracle.History
	Usage          *oracle.UsageCounter
	JWTSecret      string
	RateLimit      float64
	RateBurst      int
	MaxUploadBytes int64
	TempDir        string
	Logger         *slog.Logger
}

type Server struct {
	router         chi.Router
	svc            *hq.HQService
	media          hq.MediaManager
	history        *oracle.History
	usage          *oracle.UsageCounter
	gate           *auth.Gate
	limiter        *ratelimit.Limiter
	maxUploadBytes int64
	tempDir        string
	logger         *slog.Logger
}

func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	rate, burst := cfg.RateLimit, cfg.RateBurst
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = 5
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(slogMiddleware(logger))

	s := &Server{
		router:         r,
		svc:            cfg.Service,
		media:          cfg.Media,
		history:        cfg.History,
		usage:          cfg.Usage,
		gate:           auth.NewGate(cfg.JWTSecret),
		limiter:        ratelimit.NewLimiter(rate, burst),
		maxUploadBytes: maxUpload,
		tempDir:        cfg.TempDir,
		logger:         logger,
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)

	s.router.Get("/api/feeds", s.handleFeeds)
	s.router.Get("/api/feeds/{view}", s.handleFeed)
	s.router.Get("/api/search", s.handleSearch)
	s.router.Post("/api/refresh", s.handleRefresh)
	s.router.Get("/api/cache", s.handleCacheStatus)
	s.router.Get("/api/media/{id}", s.handleOfflineMedia)

	s.router.Route("/api/videos/{id}", func(r chi.Router) {
		r.Post("/like", s.interaction(s.svc.Like))
		r.Post("/unlike", s.interaction(s.svc.Unlike))
		r.Post("/dislike", s.interaction(s.svc.Dislike))
		r.Post("/save", s.interaction(s.svc.Save))
		r.Post("/unsave", s.interaction(s.svc.Unsave))
		r.Post("/restore", s.interaction(s.svc.Restore))
		r.Post("/progress", s.handleProgress)
	})

	s.router.Route("/api/router", func(r chi.Router) {
		r.Get("/", s.handleRouterState)
		r.Post("/view", s.handleNavigate)
		r.Post("/overlay/short", s.handleOpenShort)
		r.Post("/overlay/short/scroll", s.handleScrollShort)
		r.Post("/overlay/short/next", s.handleStepShort(1))
		r.Post("/overlay/short/previous", s.handleStepShort(-1))
		r.Delete("/overlay/short", s.handleCloseShort)
		r.Post("/overlay/long", s.handleOpenLong)
		r.Post("/overlay/long/ended", s.handleLongEnded)
		r.Post("/overlay/long/switch", s.handleSwitchLong)
		r.Delete("/overlay/long", s.handleCloseLong)
	})
	s.router.Get("/api/toast", s.handleToast)

	s.router.Route("/api/admin", func(r chi.Router) {
		r.Use(s.gate.RequireAdmin)
		r.Get("/session", s.handleAdminSession)
		r.Delete("/videos/{id}", s.handleDeleteVideo)
		r.Post("/videos/{id}/undelete", s.handleUndeleteVideo)
		r.Get("/categories", s.handleCategories)
		r.Post("/categories", s.handleAddCategory)
		r.Delete("/categories/{name}", s.handleRemoveCategory)
		r.Post("/uploads", s.handleUpload)
		r.Post("/cache/warm", s.handleWarmCache)
		r.Delete("/cache", s.handleClearCache)
	})

	s.router.Route("/api/oracle", func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/history", s.handleHistory)
		r.Get("/usage", s.handleUsage)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
