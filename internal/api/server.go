// Package api exposes the HTTP interface for the enrichment service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radarhq/enrichd/internal/config"
	"github.com/radarhq/enrichd/internal/entity"
	"github.com/radarhq/enrichd/internal/metrics"
)

// EnrichmentRunner runs one enrichment for a tracked entity.
type EnrichmentRunner interface {
	Run(ctx context.Context, entityID, rawURL string) (entity.Entity, error)
}

// Server wires HTTP handlers to the store and the enrichment pipeline.
type Server struct {
	router chi.Router
	store  entity.Store
	runner EnrichmentRunner
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(store entity.Store, runner EnrichmentRunner, cfg config.Config, logger *zap.Logger) *Server {
	s := &Server{
		store:  store,
		runner: runner,
		cfg:    cfg,
		logger: logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(cfg.RequestTimeout()))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/entities", func(r chi.Router) {
			r.Post("/", s.trackEntity)
			r.Route("/{entity_id}", func(r chi.Router) {
				r.Get("/", s.getEntity)
				r.Post("/enrich", s.enrichEntity)
				r.Get("/similar", s.similarEntities)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, s.logger)
}

type trackRequest struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	Sector      string `json:"sector"`
	Stage       string `json:"stage"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

func (s *Server) trackEntity(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", s.logger)
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required", s.logger)
		return
	}
	_, domain := entity.NormalizeTarget(req.URL)
	name := req.Name
	if name == "" {
		name = domain
	}

	e, created, err := s.store.CreateShell(r.Context(), entity.Entity{
		Name:        name,
		Domain:      domain,
		Sector:      req.Sector,
		Stage:       req.Stage,
		Location:    req.Location,
		Description: req.Description,
	})
	if err != nil {
		s.writeKindError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, e, s.logger)
}

type enrichRequest struct {
	URL string `json:"url"`
}

func (s *Server) enrichEntity(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entity_id")

	var req enrichRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", s.logger)
		return
	}

	e, err := s.runner.Run(r.Context(), entityID, req.URL)
	if err != nil {
		s.writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e, s.logger)
}

func (s *Server) getEntity(w http.ResponseWriter, r *http.Request) {
	e, err := s.store.Get(r.Context(), chi.URLParam(r, "entity_id"))
	if err != nil {
		s.writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e, s.logger)
}

func (s *Server) similarEntities(w http.ResponseWriter, r *http.Request) {
	e, err := s.store.Get(r.Context(), chi.URLParam(r, "entity_id"))
	if err != nil {
		s.writeKindError(w, err)
		return
	}
	if len(e.Embedding) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"similar": []entity.SimilarEntity{}}, s.logger)
		return
	}

	threshold := s.cfg.Similarity.Threshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < -1 || parsed >= 1 {
			writeError(w, http.StatusBadRequest, "threshold must be a number in [-1, 1)", s.logger)
			return
		}
		threshold = parsed
	}
	limit := s.cfg.Similarity.Limit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", s.logger)
			return
		}
		limit = parsed
	}

	similar, err := s.store.Similar(r.Context(), entity.SimilarityQuery{
		Embedding: e.Embedding,
		Threshold: threshold,
		Limit:     limit,
		ExcludeID: e.ID,
	})
	if err != nil {
		s.writeKindError(w, err)
		return
	}
	if similar == nil {
		similar = []entity.SimilarEntity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"similar": similar}, s.logger)
}

// writeKindError maps the domain error taxonomy onto HTTP statuses.
func (s *Server) writeKindError(w http.ResponseWriter, err error) {
	var enrichErr *entity.Error
	if errors.As(err, &enrichErr) && enrichErr.Kind == entity.KindRateLimited {
		w.Header().Set("Retry-After", strconv.Itoa(int(enrichErr.RetryAfter.Round(time.Second).Seconds())))
	}

	status := http.StatusInternalServerError
	switch entity.KindOf(err) {
	case entity.KindValidation:
		status = http.StatusBadRequest
	case entity.KindRateLimited:
		status = http.StatusTooManyRequests
	case entity.KindNotFound:
		status = http.StatusNotFound
	case entity.KindExtraction:
		status = http.StatusInternalServerError
	case entity.KindUpstream:
		status = http.StatusBadGateway
	}
	writeError(w, status, err.Error(), s.logger)
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string, logger *zap.Logger) {
	writeJSON(w, status, map[string]string{"error": msg}, logger)
}
