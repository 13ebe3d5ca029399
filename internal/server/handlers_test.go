package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/curio-ai/curio-go/internal/engine"
	"github.com/curio-ai/curio-go/internal/ingestion"
	"github.com/curio-ai/curio-go/internal/rag"
	"github.com/curio-ai/curio-go/internal/session"
	"github.com/curio-ai/curio-go/internal/topic"
)

// ---------------------------------------------------------------------------
// Fake engine for handler tests
// ---------------------------------------------------------------------------

// fakeEngine implements the AnswerEngine interface for tests.
type fakeEngine struct {
	// report is returned by IngestTopic on success.
	report *ingestion.Report
	// ingestErr is returned by IngestTopic.
	ingestErr error
	// setErr is returned by SetActiveTopic.
	setErr error
	// active is the current topic id; SetActiveTopic updates it.
	active string
	// result is returned by Answer on success.
	result *engine.AnswerResult
	// answerErr is returned by Answer.
	answerErr error
	// topics is returned by ListTopics.
	topics []string
	// stats is returned by TopicStats.
	stats *engine.TopicStats
	// deleteErr is returned by DeleteTopic.
	deleteErr error
	// deleted records every topic id passed to DeleteTopic.
	deleted []string
	// switches records every topic id passed to SetActiveTopic.
	switches []string
}

func (f *fakeEngine) IngestTopic(_ context.Context, name string) (*ingestion.Report, error) {
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	return f.report, nil
}

func (f *fakeEngine) SetActiveTopic(_ context.Context, topicID string) error {
	f.switches = append(f.switches, topicID)
	if f.setErr != nil {
		return f.setErr
	}
	f.active = topicID
	return nil
}

func (f *fakeEngine) ActiveTopic() string { return f.active }

func (f *fakeEngine) Answer(_ context.Context, _ string) (*engine.AnswerResult, error) {
	if f.answerErr != nil {
		return nil, f.answerErr
	}
	return f.result, nil
}

func (f *fakeEngine) ListTopics(_ context.Context) ([]string, error) {
	return f.topics, nil
}

func (f *fakeEngine) TopicStats(_ context.Context, _ string) (*engine.TopicStats, error) {
	return f.stats, nil
}

func (f *fakeEngine) DeleteTopic(_ context.Context, topicID string) error {
	f.deleted = append(f.deleted, topicID)
	return f.deleteErr
}

// newTestServer builds a *Server with a zero-value fake engine and an
// isolated metrics registry.
func newTestServer() *Server {
	return newHandlerTestServer(&fakeEngine{})
}

// newHandlerTestServer builds a *Server wired with the given engine fake.
func newHandlerTestServer(eng AnswerEngine) *Server {
	return &Server{
		engine:  eng,
		cfg:     &Config{Port: 8080},
		log:     slog.Default(),
		metrics: newServerMetrics(prometheus.NewRegistry()),
	}
}

// ---------------------------------------------------------------------------
// POST /api/research
// ---------------------------------------------------------------------------

func TestHandleResearch_OK(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{report: &ingestion.Report{
		TopicID: "rust_programming_language",
		Chunks:  3,
		Sources: []string{"doc.rust-lang.org", "knowledge_graph"},
	}}
	s := newHandlerTestServer(eng)

	req := httptest.NewRequest(http.MethodPost, "/api/research",
		strings.NewReader(`{"topic":"Rust (programming language)"}`))
	w := httptest.NewRecorder()

	s.handleResearch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	var resp researchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TopicID != "rust_programming_language" {
		t.Errorf("topic_id: expected rust_programming_language, got %q", resp.TopicID)
	}
	if resp.Chunks != 3 {
		t.Errorf("chunks: expected 3, got %d", resp.Chunks)
	}
	if len(resp.Sources) != 2 {
		t.Errorf("sources: expected 2, got %v", resp.Sources)
	}
}

func TestHandleResearch_MissingTopic(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/research", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	s.handleResearch(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleResearch_InvalidBody(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/research", strings.NewReader(`{not json`))
	w := httptest.NewRecorder()

	s.handleResearch(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleResearch_NoDataFound(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{
		ingestErr: fmt.Errorf("%w: Xyzzy", ingestion.ErrNoDataFound),
	}
	s := newHandlerTestServer(eng)

	req := httptest.NewRequest(http.MethodPost, "/api/research",
		strings.NewReader(`{"topic":"Xyzzy"}`))
	w := httptest.NewRecorder()

	s.handleResearch(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for no data found, got %d", w.Code)
	}
}

func TestHandleResearch_UpstreamFailure(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{
		ingestErr: &rag.UpstreamError{Collaborator: "search", Err: errors.New("connection refused")},
	}
	s := newHandlerTestServer(eng)

	req := httptest.NewRequest(http.MethodPost, "/api/research",
		strings.NewReader(`{"topic":"Rust"}`))
	w := httptest.NewRecorder()

	s.handleResearch(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502 for upstream failure, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /api/ask
// ---------------------------------------------------------------------------

func TestHandleAsk_OK(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{result: &engine.AnswerResult{
		Answer:     "Rust is a systems programming language.",
		Sources:    []string{"doc.rust-lang.org"},
		ChunksUsed: 2,
		Confidence: 85,
		Topic:      "rust_programming_language",
	}}
	s := newHandlerTestServer(eng)

	req := httptest.NewRequest(http.MethodPost, "/api/ask",
		strings.NewReader(`{"topic":"rust_programming_language","question":"What is Rust?"}`))
	w := httptest.NewRecorder()

	s.handleAsk(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	var resp engine.AnswerResult
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != "Rust is a systems programming language." {
		t.Errorf("unexpected answer: %q", resp.Answer)
	}
	if resp.Confidence != 85 {
		t.Errorf("confidence: expected 85, got %d", resp.Confidence)
	}
	if len(eng.switches) != 1 || eng.switches[0] != "rust_programming_language" {
		t.Errorf("expected one topic switch, got %v", eng.switches)
	}
}

func TestHandleAsk_NoSwitchWhenTopicActive(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{
		active: "rust_programming_language",
		result: &engine.AnswerResult{Answer: "yes", Topic: "rust_programming_language"},
	}
	s := newHandlerTestServer(eng)

	req := httptest.NewRequest(http.MethodPost, "/api/ask",
		strings.NewReader(`{"topic":"rust_programming_language","question":"Is it fast?"}`))
	w := httptest.NewRecorder()

	s.handleAsk(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(eng.switches) != 0 {
		t.Errorf("expected no topic switch for already-active topic, got %v", eng.switches)
	}
}

func TestHandleAsk_MissingQuestion(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/ask",
		strings.NewReader(`{"topic":"rust_programming_language"}`))
	w := httptest.NewRecorder()

	s.handleAsk(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleAsk_UnknownTopic(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{
		setErr: &topic.ValidationError{Field: "topic", Reason: `topic "nope" has not been researched`},
	}
	s := newHandlerTestServer(eng)

	req := httptest.NewRequest(http.MethodPost, "/api/ask",
		strings.NewReader(`{"topic":"nope","question":"What?"}`))
	w := httptest.NewRecorder()

	s.handleAsk(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown topic, got %d", w.Code)
	}
	var resp errorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == "" {
		t.Error("expected non-empty error body")
	}
}

func TestHandleAsk_NoActiveTopic(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{answerErr: session.ErrNoTopic}
	s := newHandlerTestServer(eng)

	req := httptest.NewRequest(http.MethodPost, "/api/ask",
		strings.NewReader(`{"question":"What is Rust?"}`))
	w := httptest.NewRecorder()

	s.handleAsk(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 when no topic is set, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// GET /api/topics, GET /api/topics/{id}, DELETE /api/topics/{id}
// ---------------------------------------------------------------------------

func TestHandleTopics_OK(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{topics: []string{"go_language", "rust_programming_language"}}
	s := newHandlerTestServer(eng)

	req := httptest.NewRequest(http.MethodGet, "/api/topics", nil)
	w := httptest.NewRecorder()

	s.handleTopics(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp topicsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Topics) != 2 {
		t.Errorf("expected 2 topics, got %v", resp.Topics)
	}
}

func TestHandleTopics_EmptyIsArray(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/topics", nil)
	w := httptest.NewRecorder()

	s.handleTopics(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"topics":[]`) {
		t.Errorf("expected empty array, got %s", w.Body.String())
	}
}

func TestHandleTopicStats_OK(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{stats: &engine.TopicStats{
		TopicID:     "rust_programming_language",
		TotalChunks: 3,
		Sources:     []string{"doc.rust-lang.org", "knowledge_graph"},
	}}
	s := newHandlerTestServer(eng)

	req := httptest.NewRequest(http.MethodGet, "/api/topics/rust_programming_language", nil)
	req.SetPathValue("id", "rust_programming_language")
	w := httptest.NewRecorder()

	s.handleTopicStats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp engine.TopicStats
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalChunks != 3 {
		t.Errorf("total_chunks: expected 3, got %d", resp.TotalChunks)
	}
}

func TestHandleTopicDelete_OK(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{}
	s := newHandlerTestServer(eng)

	req := httptest.NewRequest(http.MethodDelete, "/api/topics/go_language", nil)
	req.SetPathValue("id", "go_language")
	w := httptest.NewRecorder()

	s.handleTopicDelete(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if len(eng.deleted) != 1 || eng.deleted[0] != "go_language" {
		t.Errorf("expected delete of go_language, got %v", eng.deleted)
	}
}

func TestHandleTopicDelete_StoreFailure(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{
		deleteErr: &rag.UpstreamError{Collaborator: "store", Err: errors.New("unavailable")},
	}
	s := newHandlerTestServer(eng)

	req := httptest.NewRequest(http.MethodDelete, "/api/topics/go_language", nil)
	req.SetPathValue("id", "go_language")
	w := httptest.NewRecorder()

	s.handleTopicDelete(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// statusFor
// ---------------------------------------------------------------------------

func TestStatusFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &topic.ValidationError{Field: "question", Reason: "must not be empty"}, http.StatusBadRequest},
		{"no topic", session.ErrNoTopic, http.StatusBadRequest},
		{"wrapped no topic", fmt.Errorf("engine: %w", session.ErrNoTopic), http.StatusBadRequest},
		{"no data", ingestion.ErrNoDataFound, http.StatusNotFound},
		{"upstream", &rag.UpstreamError{Collaborator: "embed", Err: errors.New("down")}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := statusFor(tc.err); got != tc.want {
				t.Errorf("statusFor(%v): expected %d, got %d", tc.err, tc.want, got)
			}
		})
	}
}
