// Package engine wires the research-and-answer pipeline behind the
// caller-facing operations the CLI and HTTP server consume: ingest a topic,
// set the active topic, answer a question, inspect or delete topics. The
// engine owns the session value explicitly; there is no hidden global state.
package engine

import (
	"context"
	"fmt"

	"github.com/curio-ai/curio-go/internal/answer"
	"github.com/curio-ai/curio-go/internal/ingestion"
	"github.com/curio-ai/curio-go/internal/logging"
	"github.com/curio-ai/curio-go/internal/rag"
	"github.com/curio-ai/curio-go/internal/session"
	"github.com/curio-ai/curio-go/internal/store"
	"github.com/curio-ai/curio-go/internal/topic"
)

// AnswerResult is the outcome of one answered question.
type AnswerResult struct {
	// Answer is the synthesized answer text.
	Answer string `json:"answer"`
	// Sources is the distinct set of chunk sources backing the answer.
	Sources []string `json:"sources"`
	// ChunksUsed is how many retrieved chunks informed the answer.
	ChunksUsed int `json:"chunks_used"`
	// Confidence is the 0–100 reliability estimate.
	Confidence int `json:"confidence"`
	// Topic is the active topic id.
	Topic string `json:"topic"`
	// Warnings carries the analyzer's non-fatal findings, if any.
	Warnings []string `json:"warnings,omitempty"`
}

// TopicStats summarises one topic's collection.
type TopicStats struct {
	// TopicID is the topic's slug.
	TopicID string `json:"topic_id"`
	// TotalChunks is the number of stored chunks.
	TotalChunks uint64 `json:"total_chunks"`
	// Sources is the distinct set of chunk sources.
	Sources []string `json:"sources"`
}

// Config holds the engine's tunables.
type Config struct {
	// MaxContextChars bounds the assembled context block.
	// Defaults to rag.DefaultMaxContextChars.
	MaxContextChars int
	// MaxHistoryTokens bounds the full prompt during history trimming.
	// Non-positive uses the budget default.
	MaxHistoryTokens int
	// TrustedSources is the allowlist feeding the confidence quality boost.
	// Defaults to rag.DefaultTrustedSources.
	TrustedSources []string
	// HistoryCap bounds the in-memory conversation history.
	HistoryCap int
}

// Engine coordinates the collaborators for one interactive session. It is
// not safe for concurrent use; the HTTP server serialises access.
type Engine struct {
	vectors   rag.VectorStore
	retriever *rag.Retriever
	analyzer  *rag.Analyzer
	synth     *answer.Synthesizer
	pipeline  *ingestion.Pipeline
	sess      *session.Session
	// archive persists exchanges across runs; may be nil.
	archive store.HistoryStore
	cfg     Config
}

// New constructs an Engine. archive may be nil to disable cross-run history
// persistence.
func New(vectors rag.VectorStore, retriever *rag.Retriever, analyzer *rag.Analyzer, synth *answer.Synthesizer, pipeline *ingestion.Pipeline, archive store.HistoryStore, cfg Config) (*Engine, error) {
	if vectors == nil {
		return nil, fmt.Errorf("engine: vector store must not be nil")
	}
	if retriever == nil {
		return nil, fmt.Errorf("engine: retriever must not be nil")
	}
	if synth == nil {
		return nil, fmt.Errorf("engine: synthesizer must not be nil")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("engine: ingestion pipeline must not be nil")
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = rag.DefaultMaxContextChars
	}
	if len(cfg.TrustedSources) == 0 {
		cfg.TrustedSources = rag.DefaultTrustedSources
	}
	return &Engine{
		vectors:   vectors,
		retriever: retriever,
		analyzer:  analyzer,
		synth:     synth,
		pipeline:  pipeline,
		sess:      session.New(cfg.HistoryCap),
		archive:   archive,
		cfg:       cfg,
	}, nil
}

// Session exposes the engine's conversation state for inspection.
func (e *Engine) Session() *session.Session { return e.sess }

// ActiveTopic returns the session's current topic id, or "" when none is set.
func (e *Engine) ActiveTopic() string { return e.sess.TopicID() }

// IngestTopic researches a topic by display name and indexes it. The
// returned report carries the derived topic id.
func (e *Engine) IngestTopic(ctx context.Context, name string) (*ingestion.Report, error) {
	t, err := topic.New(name)
	if err != nil {
		return nil, err
	}
	return e.pipeline.Ingest(ctx, t)
}

// SetActiveTopic activates a topic for answering. The transition happens only
// after the vector store confirms the topic's collection exists; the in-memory
// history is reset and, when an archive is configured, reseeded with the
// topic's most recent archived exchanges.
func (e *Engine) SetActiveTopic(ctx context.Context, topicID string) error {
	exists, err := e.vectors.CollectionExists(ctx, topicID)
	if err != nil {
		return &rag.UpstreamError{Collaborator: "store", Err: err}
	}
	if !exists {
		return &topic.ValidationError{Field: "topic", Reason: fmt.Sprintf("topic %q has not been researched", topicID)}
	}
	e.sess.SetTopic(topicID)
	e.seedHistory(ctx, topicID)
	return nil
}

// seedHistory restores the tail of the topic's archived conversation into the
// session. Archive failures are logged, never surfaced; the session simply
// starts empty.
func (e *Engine) seedHistory(ctx context.Context, topicID string) {
	if e.archive == nil {
		return
	}
	entries, err := e.archive.Recent(ctx, topicID, e.sess.Cap())
	if err != nil {
		logging.FromContext(ctx).Warn("history archive read failed", "topic", topicID, "error", err)
		return
	}
	e.sess.SeedHistory(entries)
}

// Answer runs the full retrieve → analyze → score → synthesize flow for one
// question and records the exchange in the conversation history.
func (e *Engine) Answer(ctx context.Context, question string) (*AnswerResult, error) {
	if err := topic.ValidateQuestion(question); err != nil {
		return nil, err
	}
	topicID, err := e.sess.RequireTopic()
	if err != nil {
		return nil, err
	}
	// Retrieval degrades to an empty set on collaborator failure.
	chunks := e.retriever.Retrieve(ctx, topicID, question)
	rag.SortForContext(chunks)
	contextBlock := rag.BuildContext(chunks, e.cfg.MaxContextChars)

	var warnings []string
	if e.analyzer != nil {
		warnings = e.analyzer.Analyze(ctx, topicID, question, chunks)
	}
	confidence := rag.Confidence(chunks, e.cfg.TrustedSources)

	text, err := e.synth.Synthesize(ctx, question, contextBlock, len(chunks), e.sess.RecentEntries())
	if err != nil {
		return nil, err
	}

	e.sess.RecordExchange(question, text)
	e.persistExchange(ctx, topicID, question, text)

	return &AnswerResult{
		Answer:     text,
		Sources:    rag.Sources(chunks),
		ChunksUsed: len(chunks),
		Confidence: confidence,
		Topic:      topicID,
		Warnings:   warnings,
	}, nil
}

// persistExchange mirrors the exchange into the archive. Archive failures are
// logged, never surfaced; the in-memory session already holds the exchange.
func (e *Engine) persistExchange(ctx context.Context, topicID, question, text string) {
	if e.archive == nil {
		return
	}
	log := logging.FromContext(ctx)
	if err := e.archive.Append(ctx, topicID, session.Entry{Role: session.RoleUser, Content: question}); err != nil {
		log.Warn("history archive write failed", "topic", topicID, "error", err)
		return
	}
	if err := e.archive.Append(ctx, topicID, session.Entry{Role: session.RoleAssistant, Content: text}); err != nil {
		log.Warn("history archive write failed", "topic", topicID, "error", err)
	}
}

// ClearHistory empties the conversation history for the active topic, both
// in memory and in the archive.
func (e *Engine) ClearHistory(ctx context.Context) error {
	topicID := e.sess.TopicID()
	e.sess.ClearHistory()
	if e.archive != nil && topicID != "" {
		if err := e.archive.Clear(ctx, topicID); err != nil {
			return fmt.Errorf("engine: clear archived history: %w", err)
		}
	}
	return nil
}

// ListTopics returns the ids of all researched topics.
func (e *Engine) ListTopics(ctx context.Context) ([]string, error) {
	topics, err := e.vectors.ListTopics(ctx)
	if err != nil {
		return nil, &rag.UpstreamError{Collaborator: "store", Err: err}
	}
	return topics, nil
}

// TopicStats reports the chunk count and distinct sources for a topic.
func (e *Engine) TopicStats(ctx context.Context, topicID string) (*TopicStats, error) {
	count, err := e.vectors.Count(ctx, topicID)
	if err != nil {
		return nil, &rag.UpstreamError{Collaborator: "store", Err: err}
	}
	chunks, err := e.vectors.GetAll(ctx, topicID)
	if err != nil {
		return nil, &rag.UpstreamError{Collaborator: "store", Err: err}
	}
	seen := make(map[string]struct{}, len(chunks))
	var sources []string
	for _, c := range chunks {
		if _, ok := seen[c.Source]; ok {
			continue
		}
		seen[c.Source] = struct{}{}
		sources = append(sources, c.Source)
	}
	return &TopicStats{TopicID: topicID, TotalChunks: count, Sources: sources}, nil
}

// DeleteTopic removes a topic's collection. Deleting the active topic resets
// the session to the NO_TOPIC phase.
func (e *Engine) DeleteTopic(ctx context.Context, topicID string) error {
	if err := e.vectors.DeleteTopic(ctx, topicID); err != nil {
		return &rag.UpstreamError{Collaborator: "store", Err: err}
	}
	if e.sess.TopicID() == topicID {
		e.sess.Reset()
	}
	return nil
}
