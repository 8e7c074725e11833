// Package api exposes the HTTP interface for the tracking service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sellermetrics/position-tracker/internal/catalog"
	"github.com/sellermetrics/position-tracker/internal/combinator"
	"github.com/sellermetrics/position-tracker/internal/config"
	"github.com/sellermetrics/position-tracker/internal/scheduler"
)

// Server wires HTTP handlers to the tracking scheduler and stores.
type Server struct {
	router    chi.Router
	tracker   *scheduler.Service
	snapshots catalog.SnapshotStore
	cfg       config.Config
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	tracker *scheduler.Service,
	snapshots catalog.SnapshotStore,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		tracker:   tracker,
		snapshots: snapshots,
		cfg:       cfg,
		logger:    logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(120 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/positions/search", s.runSearch)
		r.Post("/tracking/run", s.runTracking)
		r.Get("/users/{user_id}/snapshots", s.listSnapshots)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type searchRequest struct {
	UserID  string `json:"user_id"`
	Query   string `json:"query"`
	Mode    string `json:"mode"`
	Brand   string `json:"brand"`
	Article int64  `json:"article"`
	City    string `json:"city"`
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	search, err := s.toSearch(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := s.tracker.RunSearch(r.Context(), req.UserID, search)
	if err != nil {
		var exhausted *catalog.ExhaustedError
		if errors.As(err, &exhausted) {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusGatewayTimeout, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type trackingRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) runTracking(w http.ResponseWriter, r *http.Request) {
	var req trackingRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	if req.UserID != "" {
		if err := s.tracker.RunUser(r.Context(), req.UserID); err != nil {
			if errors.Is(err, scheduler.ErrAlreadyRunning) {
				writeError(w, http.StatusConflict, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"user_id": req.UserID, "status": "done"})
		return
	}

	// A full tick can span many users; run it detached from the request.
	go func() {
		if err := s.tracker.RunAll(context.Background()); err != nil {
			s.logger.Error("manual tracking tick failed", zap.Error(err))
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	snaps, err := s.snapshots.ListSnapshots(r.Context(), userID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch snapshots")
		return
	}
	if snaps == nil {
		snaps = []catalog.Snapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
}

func (s *Server) toSearch(req searchRequest) (catalog.Search, error) {
	if req.UserID == "" {
		return catalog.Search{}, errors.New("user_id required")
	}
	if strings.TrimSpace(req.Query) == "" {
		return catalog.Search{}, errors.New("query required")
	}
	search := catalog.Search{
		Query: strings.TrimSpace(req.Query),
		City:  req.City,
		Dest:  combinator.DestForCity(req.City),
	}
	switch catalog.Mode(req.Mode) {
	case catalog.ModeArticle:
		if req.Article <= 0 {
			return catalog.Search{}, errors.New("article required for article mode")
		}
		search.Mode = catalog.ModeArticle
		search.Article = req.Article
	case catalog.ModeBrand, "":
		if req.Brand == "" {
			return catalog.Search{}, errors.New("brand required for brand mode")
		}
		search.Mode = catalog.ModeBrand
		search.Brand = req.Brand
	default:
		return catalog.Search{}, errors.New("mode must be brand or article")
	}
	return search, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
