// Package server implements the HTTP server that exposes the curio answer
// engine via a JSON REST API. The server is started by the `curio serve`
// CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/curio-ai/curio-go/internal/ingestion"
	"github.com/curio-ai/curio-go/internal/logging"
	"github.com/curio-ai/curio-go/internal/rag"
	"github.com/curio-ai/curio-go/internal/session"
	"github.com/curio-ai/curio-go/internal/topic"
)

// New constructs a Server from the provided engine and config.
func New(eng AnswerEngine, cfg *Config) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("server: engine must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full research run: five sequential
		// searches with inter-request delays plus embedding every chunk.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	s := &Server{
		engine:  eng,
		cfg:     cfg,
		log:     log,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}

	if cfg.APIKey == "" {
		log.Warn("server: API key not configured — authentication is disabled")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	// Protected routes get auth and per-IP rate limiting; health, readiness
	// and metrics stay open so probes and scrapers need no credentials.
	protected := func(h http.HandlerFunc) http.Handler {
		return rl.middleware(authMiddleware(cfg.APIKey, h))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/research", s.instrument("research", protected(s.handleResearch)))
	mux.Handle("POST /api/ask", s.instrument("ask", protected(s.handleAsk)))
	mux.Handle("GET /api/topics", s.instrument("topics", protected(s.handleTopics)))
	mux.Handle("GET /api/topics/{id}", s.instrument("topic_stats", protected(s.handleTopicStats)))
	mux.Handle("DELETE /api/topics/{id}", s.instrument("topic_delete", protected(s.handleTopicDelete)))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("curio server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleResearch handles POST /api/research. It runs the full ingestion
// pipeline for the requested topic and reports what was indexed.
func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req researchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Topic == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}

	start := time.Now()
	report, err := s.engine.IngestTopic(r.Context(), req.Topic)
	if err != nil {
		s.metrics.researchRequestsTotal.WithLabelValues("error").Inc()
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.metrics.researchRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.researchDurationSeconds.Observe(time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, researchResponse{
		TopicID: report.TopicID,
		Chunks:  report.Chunks,
		Sources: report.Sources,
	})
}

// handleAsk handles POST /api/ask. The request may name a topic to switch
// to; otherwise the server's current active topic is used. Switching topics
// resets the conversation history.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	if req.Topic != "" && req.Topic != s.engine.ActiveTopic() {
		if err := s.engine.SetActiveTopic(r.Context(), req.Topic); err != nil {
			s.metrics.askRequestsTotal.WithLabelValues("error").Inc()
			writeError(w, statusFor(err), err.Error())
			return
		}
	}

	start := time.Now()
	result, err := s.engine.Answer(r.Context(), req.Question)
	if err != nil {
		s.metrics.askRequestsTotal.WithLabelValues("error").Inc()
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.metrics.askRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.askDurationSeconds.Observe(time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, result)
}

// handleTopics handles GET /api/topics.
func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := s.engine.ListTopics(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if topics == nil {
		topics = []string{}
	}
	writeJSON(w, http.StatusOK, topicsResponse{Topics: topics})
}

// handleTopicStats handles GET /api/topics/{id}.
func (s *Server) handleTopicStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.TopicStats(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleTopicDelete handles DELETE /api/topics/{id}.
func (s *Server) handleTopicDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteTopic(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// statusFor maps domain errors to HTTP status codes. Validation problems are
// the caller's fault; missing data is 404; collaborator failures surface as
// 502 so operators can tell them apart from bugs in this server.
func statusFor(err error) int {
	var vErr *topic.ValidationError
	var uErr *rag.UpstreamError
	switch {
	case errors.As(err, &vErr), errors.Is(err, session.ErrNoTopic):
		return http.StatusBadRequest
	case errors.Is(err, ingestion.ErrNoDataFound):
		return http.StatusNotFound
	case errors.As(err, &uErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
