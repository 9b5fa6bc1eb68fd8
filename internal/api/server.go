package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/beacon/internal/features"
	"github.com/MikeSquared-Agency/beacon/internal/narrative"
	"github.com/MikeSquared-Agency/beacon/internal/processor"
	"github.com/MikeSquared-Agency/beacon/internal/trend"
)

// Pipeline is the processor surface the API exposes. *processor.Processor
// satisfies it.
type Pipeline interface {
	StartSession(ctx context.Context, code, activityKind string) (uuid.UUID, error)
	AppendEvents(ctx context.Context, code string, sessionID uuid.UUID, events []features.Event) (int, error)
	CompleteSession(ctx context.Context, code string, sessionID uuid.UUID) (processor.Completion, error)
	Trends(ctx context.Context, learnerID uuid.UUID) (trend.Result, error)
	GenerateReport(ctx context.Context, key narrative.Key) (narrative.Report, error)
	GetReport(ctx context.Context, id uuid.UUID) (narrative.Report, error)
	Ping(ctx context.Context) error
}

const maxBodyBytes = 1 << 20

type Server struct {
	router   *chi.Mux
	pipeline Pipeline
	logger   *slog.Logger
	http     *http.Server
}

func NewServer(port int, apiToken string, pipeline Pipeline, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		pipeline: pipeline,
		logger:   logger,
	}

	router.Get("/health", s.health)

	// Learner-facing ingestion authenticates with the learner code in the body.
	router.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/", s.startSession)
		r.Post("/{id}/events", s.appendEvents)
		r.Post("/{id}/complete", s.completeSession)
	})

	router.Group(func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Post("/api/v1/reports/generate", s.generateReport)
		r.Get("/api/v1/reports/{id}", s.getReport)
		r.Get("/api/v1/learners/{id}/trends", s.trends)
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start blocks until the server fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func pathUUID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id", errBadRequest)
	}
	return id, nil
}
