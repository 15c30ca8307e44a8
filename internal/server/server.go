// Package server exposes the HTTP API: check execution, source discovery,
// sample records, health, and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agrotrace/agrocheck/internal/auth"
	"github.com/agrotrace/agrocheck/internal/checker"
	"github.com/agrotrace/agrocheck/internal/checker/checkers"
	"github.com/agrotrace/agrocheck/internal/config"
	"github.com/agrotrace/agrocheck/internal/db"
	"github.com/agrotrace/agrocheck/internal/health"
	"github.com/agrotrace/agrocheck/internal/model"
	"github.com/agrotrace/agrocheck/internal/orchestrator"
)

// Server is the HTTP front end.
type Server struct {
	cfg           config.ServerConfig
	orchestrator  *orchestrator.Orchestrator
	registry      *checker.Registry
	authenticator *auth.Authenticator
	monitor       *health.Monitor
	pool          db.Pool
}

// New assembles the Server.
func New(
	cfg config.ServerConfig,
	orch *orchestrator.Orchestrator,
	registry *checker.Registry,
	authenticator *auth.Authenticator,
	monitor *health.Monitor,
	pool db.Pool,
) *Server {
	return &Server{
		cfg:           cfg,
		orchestrator:  orch,
		registry:      registry,
		authenticator: authenticator,
		monitor:       monitor,
		pool:          pool,
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.requireHealthy)
		r.Use(s.requireAPIKey("read"))
		r.Post("/check", s.handleCheck)
		r.Get("/sources", s.handleSources)
		r.Get("/sources/{category}", s.handleSourcesByCategory)
		r.Get("/samples/{source}", s.handleSamples)
	})

	return r
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", s.cfg.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

// requireHealthy rejects requests while critical infrastructure is down. It
// runs before authentication: with the database unreachable a key lookup
// would misreport the outage as an invalid key.
func (s *Server) requireHealthy(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.monitor.Report(r.Context()).Status == health.StatusDown {
			writeError(w, http.StatusServiceUnavailable, "service unavailable")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAPIKey authenticates the X-API-Key header and enforces the given
// permission.
func (s *Server) requireAPIKey(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := s.authenticator.Authenticate(r.Context(), r.Header.Get("X-API-Key"))
			if err != nil {
				writeAuthError(w, err)
				return
			}
			if !key.Can(perm) {
				writeError(w, http.StatusForbidden, "insufficient permission")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req model.CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.orchestrator.Execute(r.Context(), req)
	if err != nil {
		if ve, ok := model.AsValidationError(err); ok {
			writeError(w, http.StatusBadRequest, ve.Error())
			return
		}
		if _, ok := model.AsGeocodingError(err); ok {
			writeError(w, http.StatusInternalServerError, "address could not be resolved")
			return
		}
		zap.L().Error("check failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// sourceInfo is the /sources projection of a checker descriptor.
type sourceInfo struct {
	Name                string            `json:"name"`
	Category            model.Category    `json:"category"`
	Description         string            `json:"description"`
	Enabled             bool              `json:"enabled"`
	Priority            int               `json:"priority"`
	SupportedInputTypes []model.InputType `json:"supportedInputTypes"`
	CacheTTLSeconds     int               `json:"cacheTTLSeconds"`
	TimeoutMs           int64             `json:"timeoutMs"`
}

func describeSources(cs []checker.Checker) []sourceInfo {
	out := make([]sourceInfo, 0, len(cs))
	for _, c := range cs {
		d := c.Descriptor()
		out = append(out, sourceInfo{
			Name:                d.Name,
			Category:            d.Category,
			Description:         d.Description,
			Enabled:             d.Enabled,
			Priority:            d.Priority,
			SupportedInputTypes: d.SupportedInputTypes,
			CacheTTLSeconds:     int(d.CacheTTL.Seconds()),
			TimeoutMs:           d.Timeout.Milliseconds(),
		})
	}
	return out
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sources": describeSources(s.registry.All()),
	})
}

func (s *Server) handleSourcesByCategory(w http.ResponseWriter, r *http.Request) {
	category := model.Category(chi.URLParam(r, "category"))
	if !category.Valid() {
		writeError(w, http.StatusNotFound, "unknown category")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category": category,
		"sources":  describeSources(s.registry.ByCategory(category)),
	})
}

func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	records, known, err := checkers.SampleRecords(r.Context(), s.pool, source, 10)
	if err != nil {
		zap.L().Error("sample query failed", zap.String("source", source), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !known {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source":  source,
		"records": records,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.Report(r.Context())
	status := http.StatusOK
	if report.Status == health.StatusDown {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrMissingAPIKey):
		writeError(w, http.StatusUnauthorized, "missing API key")
	case errors.Is(err, model.ErrInvalidAPIKey):
		writeError(w, http.StatusUnauthorized, "invalid API key")
	case errors.Is(err, model.ErrInsufficientPermission):
		writeError(w, http.StatusForbidden, "insufficient permission")
	case errors.Is(err, model.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
