package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/client"
	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/engine"
	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/middleware"
	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/store"
	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

// Scorer is the engine surface the HTTP API drives
type Scorer interface {
	StartInnings(ctx context.Context, key models.InningsKey, ictx models.InningsContext) (models.DerivedInningsState, error)
	Recalculate(ctx context.Context, key models.InningsKey, d *models.Delivery) (models.DerivedInningsState, error)
	SetTarget(ctx context.Context, key models.InningsKey, target int) (models.DerivedInningsState, error)
	Archive(ctx context.Context, key models.InningsKey) (models.DerivedInningsState, error)
	State(ctx context.Context, key models.InningsKey) (models.DerivedInningsState, error)
	Deliveries(ctx context.Context, key models.InningsKey) ([]models.Delivery, error)
	Innings(ctx context.Context, matchID string) ([]int, error)
}

// Hub is the subscription hub surface used by websocket clients and health
type Hub interface {
	client.Subscriber
	GetMetrics() map[string]interface{}
}

// Pinger is a dependency checked by the health endpoint
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the HTTP layer settings
type Config struct {
	CORSOrigins     []string
	SubmitRateLimit float64
	SubmitRateBurst int
	ClientBuffer    int
}

// Handler manages HTTP endpoints
type Handler struct {
	scorer  Scorer
	hub     Hub
	checks  map[string]Pinger
	metrics *metrics.Metrics
	logger  *slog.Logger
	cfg     Config
	limiter *middleware.RateLimiter

	// ctx outlives single requests; websocket pumps stop when it ends
	ctx context.Context
}

// NewHandler creates a new handler instance. checks names the dependencies
// reported by /health.
func NewHandler(ctx context.Context, s Scorer, h Hub, checks map[string]Pinger, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		scorer:  s,
		hub:     h,
		checks:  checks,
		metrics: m,
		logger:  logger,
		cfg:     cfg,
		limiter: middleware.NewRateLimiter(cfg.SubmitRateLimit, cfg.SubmitRateBurst),
		ctx:     ctx,
	}
}

// Routes builds the router
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(h.logger, h.metrics))
	r.Use(chimiddleware.Recoverer)

	origins := h.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HandleHealth)
	r.Get("/ws", h.HandleWebSocket)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(30 * time.Second))

		r.Get("/matches/{matchID}/innings", h.ListInnings)

		r.Route("/matches/{matchID}/innings/{inning}", func(r chi.Router) {
			r.Post("/", h.StartInnings)
			r.Get("/", h.GetState)
			r.Get("/deliveries", h.GetDeliveries)
			r.With(h.limiter.Handler).Post("/deliveries", h.SubmitDelivery)
			r.Post("/recalculate", h.Recalculate)
			r.Put("/target", h.SetTarget)
			r.Post("/archive", h.Archive)
			r.Get("/timeline", h.GetTimeline)
			r.Get("/commentary", h.GetCommentary)
			r.Get("/projection", h.GetProjection)
			r.Get("/scorecard", h.GetScorecard)
		})
	})

	return r
}

// HandleHealth reports the state of every dependency
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string, len(h.checks))
	healthy := true
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			deps[name] = err.Error()
			healthy = false
			continue
		}
		deps[name] = "ok"
	}

	status := http.StatusOK
	body := map[string]interface{}{
		"status":       "healthy",
		"service":      "live-scoring",
		"timestamp":    time.Now().UTC(),
		"dependencies": deps,
	}
	if h.hub != nil {
		body["hub"] = h.hub.GetMetrics()
	}
	if !healthy {
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
	}
	respondJSON(w, status, body)
}

// inningsKey reads the innings from the route
func inningsKey(r *http.Request) (models.InningsKey, error) {
	n, err := strconv.Atoi(chi.URLParam(r, "inning"))
	if err != nil {
		return models.InningsKey{}, models.NewValidationError("inning", "must be a number")
	}
	key := models.InningsKey{MatchID: chi.URLParam(r, "matchID"), Inning: n}
	if err := key.Validate(); err != nil {
		return models.InningsKey{}, err
	}
	return key, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return decode(w, r, v, false)
}

// decodeOptionalBody leaves v untouched for an empty body
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return decode(w, r, v, true)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	err := dec.Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return nil
	}
	return models.NewValidationError("body", "malformed JSON: "+err.Error())
}

// statusFor maps engine and store errors onto HTTP status codes
func statusFor(err error) int {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrInningsNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInningsExists),
		errors.Is(err, engine.ErrInningsArchived),
		errors.Is(err, engine.ErrConflictExhausted):
		return http.StatusConflict
	case errors.Is(err, engine.ErrArchiveDisabled):
		return http.StatusNotImplemented
	}
	return http.StatusServiceUnavailable
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"path", r.URL.Path,
			"status", status,
			"request_id", chimiddleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	respondError(w, status, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Warn("error encoding response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}
