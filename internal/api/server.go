// File path: internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/nicodishanthj/planbuilder/internal/common"
	"github.com/nicodishanthj/planbuilder/internal/data/orchestrator"
	"github.com/nicodishanthj/planbuilder/internal/ingest"
	"github.com/nicodishanthj/planbuilder/internal/plan"
	"github.com/nicodishanthj/planbuilder/internal/planstore"
)

type Server struct {
	router chi.Router
	plans  *planstore.Service
	cfg    Config

	orchestrator *orchestrator.Orchestrator
}

// Config controls request handling.
type Config struct {
	CORSOrigins    []string
	MaxUploadBytes int64
	Opener         ingest.Opener
}

// DefaultMaxUploadBytes bounds multipart upload bodies.
const DefaultMaxUploadBytes = 32 << 20

// DefaultConfig returns the standard configuration used when no overrides are
// provided.
func DefaultConfig() Config {
	return Config{
		CORSOrigins:    []string{"*"},
		MaxUploadBytes: DefaultMaxUploadBytes,
		Opener:         ingest.ExcelOpener,
	}
}

// Merge overlays the set fields of override onto the base configuration.
func (c Config) Merge(override Config) Config {
	result := c
	if len(override.CORSOrigins) > 0 {
		result.CORSOrigins = append([]string(nil), override.CORSOrigins...)
	}
	if override.MaxUploadBytes > 0 {
		result.MaxUploadBytes = override.MaxUploadBytes
	}
	if override.Opener != nil {
		result.Opener = override.Opener
	}
	return result
}

// LoadConfig reads CORS_ORIGINS and PLANS_MAX_UPLOAD_BYTES.
func LoadConfig() (Config, error) {
	cfg := Config{}
	if value := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); value != "" {
		for _, origin := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, trimmed)
			}
		}
	}
	if value := strings.TrimSpace(os.Getenv("PLANS_MAX_UPLOAD_BYTES")); value != "" {
		size, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("parse PLANS_MAX_UPLOAD_BYTES: %w", err)
		}
		cfg.MaxUploadBytes = size
	}
	return DefaultConfig().Merge(cfg), nil
}

func NewServer(ctx context.Context, orch *orchestrator.Orchestrator, cfg *Config) (*Server, error) {
	logger := common.Logger()
	if orch == nil {
		return nil, fmt.Errorf("orchestrator required")
	}
	collection := orch.Plans()
	if collection == nil {
		return nil, fmt.Errorf("plan collection unavailable")
	}
	configuration := DefaultConfig()
	if cfg != nil {
		configuration = configuration.Merge(*cfg)
	}
	if err := collection.Ping(ctx); err != nil {
		logger.Warn("api: store ping failed", "collection", collection.Name(), "error", err)
	}
	srv := &Server{
		router:       chi.NewRouter(),
		plans:        planstore.New(collection),
		cfg:          configuration,
		orchestrator: orch,
	}
	srv.routes()
	logger.Info("api: server ready", "collection", collection.Name(), "cors_origins", configuration.CORSOrigins)
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr, "request_id", middleware.GetReqID(r.Context()))
		})
	})
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions, http.MethodPatch, http.MethodHead},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/debug/vars", expvar.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, messageResponse{Message: "Project Plan Management API"})
		})
		r.Get("/logs", s.handleLogs)
		r.Route("/plans", func(r chi.Router) {
			r.Post("/", s.handleCreatePlan)
			r.Get("/", s.handleListPlans)
			r.Post("/upload", s.handleUploadPlan)
			r.Get("/{planID}", s.handleGetPlan)
			r.Put("/{planID}", s.handleUpdatePlan)
			r.Delete("/{planID}", s.handleDeletePlan)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.orchestrator.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("store unavailable: %w", err))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("api: request failed", "status", status, "error", err)
	} else {
		logger.Warn("api: request failed", "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Detail: err.Error()})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, planstore.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ingest.ErrInvalidWorkbook),
		errors.Is(err, plan.ErrInvalidUpdate),
		errors.Is(err, plan.ErrUnknownSection):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
