// Package server exposes the match engine over a chi HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/chainreactions/screener/internal/config"
	"github.com/chainreactions/screener/internal/match"
	"github.com/chainreactions/screener/internal/model"
)

// drainTimeout bounds how long shutdown waits for in-flight requests.
const drainTimeout = 10 * time.Second

// Engine is the matching surface the API serves; satisfied by
// *match.Engine.
type Engine interface {
	MatchSingle(ctx context.Context, query, location string, opts model.Options) (*model.MatchResult, error)
	MatchBatch(ctx context.Context, queries []string, opts model.Options) (*model.BatchResult, error)
	MatchAffiliated(ctx context.Context, primary string, affiliated []model.AffiliatedInput, opts model.Options) (*model.AffiliatedResult, error)
	Dataset() *model.DatasetInfo
	Stats() match.EngineStats
	ClearCache()
	Warmup(ctx context.Context, queries []string) (int, error)
}

// Server wires the engine into an HTTP router.
type Server struct {
	engine Engine
	cfg    config.ServeConfig
	router http.Handler
}

// New creates a Server with routing and middleware configured.
func New(engine Engine, cfg config.ServeConfig) *Server {
	s := &Server{engine: engine, cfg: cfg}
	s.router = s.routes()
	return s
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(recoverPanics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	if s.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/match", s.handleMatch)
		r.Post("/match/batch", s.handleMatchBatch)
		r.Post("/match/affiliated", s.handleMatchAffiliated)
		r.Get("/stats", s.handleStats)
		r.Post("/cache/clear", s.handleCacheClear)
		r.Post("/cache/warmup", s.handleCacheWarmup)
	})

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log := zap.L().With(zap.String("component", "server"))
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return eris.Wrap(err, "server: listen")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	log.Info("http server stopped")
	return nil
}
