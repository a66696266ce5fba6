// Package site serves the static web map and a small JSON API over the
// recorded runs and output layers.
package site

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/urban95/accessmap-cli/internal/config"
	"github.com/urban95/accessmap-cli/internal/model"
	"github.com/urban95/accessmap-cli/internal/store"
)

// Server hosts the map site, the layer files and the runs API.
type Server struct {
	cfg    *config.Config
	store  store.Store
	router chi.Router
}

// New creates a Server with all routes registered.
func New(cfg *config.Config, st store.Store) *Server {
	s := &Server{cfg: cfg, store: st}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	if s.cfg.Server.RateRPS > 0 {
		burst := s.cfg.Server.RateBurst
		if burst <= 0 {
			burst = 10
		}
		r.Use(newIPLimiter(s.cfg.Server.RateRPS, burst).middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/layers", s.handleLayers)
		r.Get("/runs", s.handleRuns)
		r.Get("/runs/{id}", s.handleRun)
	})

	// Output layers for the map.
	dataDir := s.cfg.Data.WebDataDir
	if dataDir == "" {
		dataDir = s.cfg.Data.OutputDir
	}
	r.Handle("/data/*", http.StripPrefix("/data/", http.FileServer(http.Dir(dataDir))))

	// The static site itself.
	if s.cfg.Server.StaticDir != "" {
		r.NotFound(staticHandler(s.cfg.Server.StaticDir))
	}

	return r
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("serving map site", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "site: listen")
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return eris.Wrap(srv.Shutdown(shutdownCtx), "site: shutdown")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"driver": s.cfg.Store.Driver,
	})
}

func (s *Server) handleLayers(w http.ResponseWriter, r *http.Request) {
	layers, err := s.store.ListLayerChecksums(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, layers)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{
		Command: r.URL.Query().Get("command"),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = model.RunStatus(status)
	}
	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	respondJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		zap.L().Debug("run lookup failed", zap.Error(err))
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// staticHandler serves the site files, falling back to index.html so
// the map loads on any unknown path.
func staticHandler(dir string) http.HandlerFunc {
	fs := http.FileServer(http.Dir(dir))
	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if _, err := os.Stat(path); err != nil {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		fs.ServeHTTP(w, r)
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("site: encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, err error) {
	zap.L().Error("site: request failed", zap.Error(err))
	respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

// requestLogger logs each request with zap at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
