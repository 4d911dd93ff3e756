// Package api exposes the read-only HTTP interface over the case store:
// health, store statistics, checkpoint history, and single-case lookup.
package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ngm-data/causelist/internal/model"
	"github.com/ngm-data/causelist/internal/sources"
	"github.com/ngm-data/causelist/internal/store"
)

// Server wires HTTP handlers to the store and court registry.
type Server struct {
	router   chi.Router
	store    store.Store
	registry *sources.Registry
	log      *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(st store.Store, registry *sources.Registry, log *zap.Logger) *Server {
	s := &Server{
		store:    st,
		registry: registry,
		log:      log.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/health", s.health)
	r.Get("/status", s.status)
	r.Get("/courts", s.courts)
	r.Get("/courts/{court_id}/checkpoints", s.checkpoints)
	r.Get("/courts/{court_id}/cases/{case_number}", s.getCase)
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// shutdownGrace is how long in-flight requests get to drain on shutdown.
const shutdownGrace = 10 * time.Second

// Serve listens on addr until ctx is cancelled, then drains in-flight
// requests before forcing connections closed. The signal context is
// already dead by then, so the drain runs on its own deadline.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return eris.Wrapf(err, "api: listen on %s", addr)
	}
	srv := &http.Server{Handler: s.router}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("server listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return eris.Wrap(err, "api: serve")
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "api: shutdown")
	}
	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "api: serve")
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.log.Error("stats query failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) courts(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = string(sources.KindHigh)
	}
	k, err := sources.ParseKind(kind)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, s.registry.ByKind(k))
}

func (s *Server) checkpoints(w http.ResponseWriter, r *http.Request) {
	courtID := chi.URLParam(r, "court_id")
	if _, err := s.registry.Lookup(courtID); err != nil {
		s.writeError(w, http.StatusNotFound, "unknown court")
		return
	}
	limit := 30
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := s.store.Checkpoints(r.Context(), courtID, limit)
	if err != nil {
		s.log.Error("checkpoint query failed", zap.String("court", courtID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "checkpoints unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) getCase(w http.ResponseWriter, r *http.Request) {
	key := model.CaseKey{
		Number:  chi.URLParam(r, "case_number"),
		CourtID: chi.URLParam(r, "court_id"),
	}
	c, err := s.store.GetCase(r.Context(), key)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "case not found")
			return
		}
		s.log.Error("case lookup failed",
			zap.String("court", key.CourtID),
			zap.String("case", key.Number),
			zap.Error(err),
		)
		s.writeError(w, http.StatusInternalServerError, "case unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
