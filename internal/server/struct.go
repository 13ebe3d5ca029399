package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/curio-ai/curio-go/internal/engine"
	"github.com/curio-ai/curio-go/internal/ingestion"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// Research requests run the full ingestion pipeline, so this must cover
	// several sequential searches and embedding calls.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry is where server metrics are registered.
	// If nil, prometheus.DefaultRegisterer is used.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer serves GET /metrics. If nil, prometheus.DefaultGatherer
	// is used. Tests inject a fresh registry as both to stay hermetic.
	MetricsGatherer prometheus.Gatherer
}

// AnswerEngine is the interface the handlers call. *engine.Engine satisfies
// it; tests inject a fake.
type AnswerEngine interface {
	// IngestTopic researches a topic and indexes its chunks.
	IngestTopic(ctx context.Context, name string) (*ingestion.Report, error)
	// SetActiveTopic switches the conversation to an already-researched topic.
	SetActiveTopic(ctx context.Context, topicID string) error
	// ActiveTopic returns the current topic id, or "" when none is set.
	ActiveTopic() string
	// Answer answers a question against the active topic's index.
	Answer(ctx context.Context, question string) (*engine.AnswerResult, error)
	// ListTopics returns the ids of every researched topic.
	ListTopics(ctx context.Context) ([]string, error)
	// TopicStats summarises one topic's collection.
	TopicStats(ctx context.Context, topicID string) (*engine.TopicStats, error)
	// DeleteTopic removes a topic's collection.
	DeleteTopic(ctx context.Context, topicID string) error
}

// Server is the HTTP server that exposes the answer engine as a JSON API.
type Server struct {
	// engine handles all research and question-answering requests.
	engine AnswerEngine
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server instance.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// researchRequest is the JSON body for POST /api/research.
type researchRequest struct {
	// Topic is the display name of the topic to research.
	Topic string `json:"topic"`
}

// researchResponse is the JSON response for POST /api/research.
type researchResponse struct {
	// TopicID is the normalised id the topic was indexed under.
	TopicID string `json:"topic_id"`
	// Chunks is the number of chunks indexed.
	Chunks int `json:"chunks"`
	// Sources is the distinct set of sources the chunks came from.
	Sources []string `json:"sources"`
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Topic is the topic id to answer against. Optional when a previous
	// request on this server already set the active topic.
	Topic string `json:"topic,omitempty"`
	// Question is the user's natural language question.
	Question string `json:"question"`
}

// topicsResponse is the JSON response for GET /api/topics.
type topicsResponse struct {
	// Topics is the sorted list of researched topic ids.
	Topics []string `json:"topics"`
}

// errorResponse is the JSON body for all non-2xx API responses.
type errorResponse struct {
	// Error is the human-readable failure reason.
	Error string `json:"error"`
}
