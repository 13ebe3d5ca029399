package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/curio-ai/curio-go/internal/answer"
	"github.com/curio-ai/curio-go/internal/ingestion"
	"github.com/curio-ai/curio-go/internal/rag"
	"github.com/curio-ai/curio-go/internal/search"
	"github.com/curio-ai/curio-go/internal/session"
	"github.com/curio-ai/curio-go/internal/store"
	"github.com/curio-ai/curio-go/internal/topic"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type fakeModel struct {
	calls int
	reply string
}

func (f *fakeModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.calls++
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported in tests")
}

type fakeSearch struct {
	results map[string]*search.Result
}

func (f *fakeSearch) Search(_ context.Context, query string, _ int) (*search.Result, error) {
	if r, ok := f.results[query]; ok {
		return r, nil
	}
	return &search.Result{}, nil
}

// newTestEngine builds an engine over in-memory collaborators.
func newTestEngine(t *testing.T, m *fakeModel, provider search.Provider, mode answer.Mode) (*Engine, *rag.MemoryStore) {
	t.Helper()

	vectors := rag.NewMemoryStore()
	retriever, err := rag.NewRetriever(fakeEmbedder{}, vectors, 5)
	if err != nil {
		t.Fatalf("retriever: %v", err)
	}
	synth, err := answer.NewSynthesizer(m, mode, 0)
	if err != nil {
		t.Fatalf("synthesizer: %v", err)
	}
	if provider == nil {
		provider = &fakeSearch{}
	}
	pipeline, err := ingestion.NewPipeline(provider, nil, fakeEmbedder{}, vectors, &ingestion.Config{
		RequestDelay: time.Millisecond,
		EmbedDelay:   time.Millisecond,
	})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	eng, err := New(vectors, retriever, nil, synth, pipeline, nil, Config{})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return eng, vectors
}

// seedTopic stores aligned chunks directly in the vector store.
func seedTopic(t *testing.T, vectors *rag.MemoryStore, topicID string, contents, srcs []string) {
	t.Helper()
	ctx := context.Background()
	if err := vectors.EnsureCollection(ctx, topicID); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	batch := &rag.Batch{}
	for i, c := range contents {
		batch.IDs = append(batch.IDs, c)
		batch.Vectors = append(batch.Vectors, []float32{1, 0})
		batch.Documents = append(batch.Documents, c)
		batch.Metadatas = append(batch.Metadatas, rag.Meta{Source: srcs[i], Kind: rag.KindSearchResult})
	}
	if err := vectors.Upsert(ctx, topicID, batch); err != nil {
		t.Fatalf("upsert: %v", err)
	}
}

func Test_Answer_RequiresTopic(t *testing.T) {
	t.Parallel()

	eng, _ := newTestEngine(t, &fakeModel{reply: "x"}, nil, answer.ModeStrict)
	_, err := eng.Answer(context.Background(), "what is rust")
	if !errors.Is(err, session.ErrNoTopic) {
		t.Fatalf("err = %v, want ErrNoTopic", err)
	}
}

func Test_Answer_ValidatesQuestion(t *testing.T) {
	t.Parallel()

	eng, vectors := newTestEngine(t, &fakeModel{reply: "x"}, nil, answer.ModeStrict)
	seedTopic(t, vectors, "rust", []string{"rust is fast"}, []string{"wikipedia.org"})
	if err := eng.SetActiveTopic(context.Background(), "rust"); err != nil {
		t.Fatalf("set topic: %v", err)
	}

	_, err := eng.Answer(context.Background(), "   ")
	var verr *topic.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func Test_SetActiveTopic_UnknownTopic(t *testing.T) {
	t.Parallel()

	eng, _ := newTestEngine(t, &fakeModel{reply: "x"}, nil, answer.ModeStrict)
	err := eng.SetActiveTopic(context.Background(), "never_researched")
	var verr *topic.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func Test_Answer_HappyPath(t *testing.T) {
	t.Parallel()

	m := &fakeModel{reply: "Rust is a systems language."}
	eng, vectors := newTestEngine(t, m, nil, answer.ModeStrict)
	seedTopic(t, vectors, "rust",
		[]string{"rust is fast", "rust is safe"},
		[]string{"wikipedia.org", "rust-lang.org"})
	ctx := context.Background()
	if err := eng.SetActiveTopic(ctx, "rust"); err != nil {
		t.Fatalf("set topic: %v", err)
	}

	res, err := eng.Answer(ctx, "what is rust")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if res.Answer != "Rust is a systems language." {
		t.Errorf("answer = %q", res.Answer)
	}
	if res.Topic != "rust" {
		t.Errorf("topic = %q", res.Topic)
	}
	if res.ChunksUsed != 2 {
		t.Errorf("chunks used = %d, want 2", res.ChunksUsed)
	}
	if len(res.Sources) != 2 {
		t.Errorf("sources = %v, want 2", res.Sources)
	}
	if res.Confidence <= 0 || res.Confidence > 100 {
		t.Errorf("confidence = %d, want (0,100]", res.Confidence)
	}
	if got := len(eng.Session().History()); got != 2 {
		t.Errorf("history length = %d, want 2", got)
	}
}

func Test_Answer_StrictNoChunksReturnsSentinel(t *testing.T) {
	t.Parallel()

	m := &fakeModel{reply: "should not be called"}
	eng, vectors := newTestEngine(t, m, nil, answer.ModeStrict)
	ctx := context.Background()
	if err := vectors.EnsureCollection(ctx, "empty_topic"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := eng.SetActiveTopic(ctx, "empty_topic"); err != nil {
		t.Fatalf("set topic: %v", err)
	}

	res, err := eng.Answer(ctx, "anything at all")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if res.Answer != answer.Sentinel {
		t.Errorf("answer = %q, want the sentinel", res.Answer)
	}
	if res.ChunksUsed != 0 || len(res.Sources) != 0 {
		t.Errorf("chunksUsed=%d sources=%v, want 0 and empty", res.ChunksUsed, res.Sources)
	}
	if m.calls != 0 {
		t.Errorf("model called %d times, want 0", m.calls)
	}
}

func Test_IngestTopic_ReportsStats(t *testing.T) {
	t.Parallel()

	provider := &fakeSearch{results: map[string]*search.Result{
		"what is Rust programming language": {Organic: []search.Organic{
			{Title: "Rust", Description: "A language empowering everyone.", DisplayLink: "wikipedia.org", Link: "https://en.wikipedia.org/wiki/Rust"},
			{Title: "Rust history", Description: "Started at Mozilla.", DisplayLink: "wikipedia.org", Link: "https://en.wikipedia.org/wiki/History"},
		}},
		"Rust programming language key facts": {Organic: []search.Organic{
			{Title: "Rust Book", Description: "The official guide.", DisplayLink: "rust-lang.org", Link: "https://doc.rust-lang.org/book/"},
		}},
	}}
	eng, _ := newTestEngine(t, &fakeModel{reply: "x"}, provider, answer.ModeStrict)
	ctx := context.Background()

	report, err := eng.IngestTopic(ctx, "Rust programming language")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if report.TopicID != "rust_programming_language" {
		t.Errorf("topic id = %q", report.TopicID)
	}

	stats, err := eng.TopicStats(ctx, report.TopicID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalChunks != 3 {
		t.Errorf("total chunks = %d, want 3", stats.TotalChunks)
	}
	if len(stats.Sources) != 2 {
		t.Errorf("sources = %v, want 2 distinct", stats.Sources)
	}

	topics, err := eng.ListTopics(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(topics) != 1 || topics[0] != "rust_programming_language" {
		t.Errorf("topics = %v", topics)
	}
}

func Test_DeleteTopic_ResetsActiveSession(t *testing.T) {
	t.Parallel()

	eng, vectors := newTestEngine(t, &fakeModel{reply: "x"}, nil, answer.ModeStrict)
	seedTopic(t, vectors, "rust", []string{"rust is fast"}, []string{"wikipedia.org"})
	ctx := context.Background()
	if err := eng.SetActiveTopic(ctx, "rust"); err != nil {
		t.Fatalf("set topic: %v", err)
	}

	if err := eng.DeleteTopic(ctx, "rust"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if eng.Session().Phase() != session.PhaseNoTopic {
		t.Error("deleting the active topic should reset the session")
	}
	if exists, _ := vectors.CollectionExists(ctx, "rust"); exists {
		t.Error("collection should be gone")
	}
}

func Test_SetActiveTopic_SeedsHistoryFromArchive(t *testing.T) {
	t.Parallel()

	vectors := rag.NewMemoryStore()
	retriever, err := rag.NewRetriever(fakeEmbedder{}, vectors, 5)
	if err != nil {
		t.Fatalf("retriever: %v", err)
	}
	synth, err := answer.NewSynthesizer(&fakeModel{reply: "a"}, answer.ModeStrict, 0)
	if err != nil {
		t.Fatalf("synthesizer: %v", err)
	}
	pipeline, err := ingestion.NewPipeline(&fakeSearch{}, nil, fakeEmbedder{}, vectors, &ingestion.Config{
		RequestDelay: time.Millisecond,
		EmbedDelay:   time.Millisecond,
	})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	archive, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	defer archive.Close()

	ctx := context.Background()
	// Exchanges archived by an earlier run.
	for _, e := range []session.Entry{
		{Role: session.RoleUser, Content: "what is rust"},
		{Role: session.RoleAssistant, Content: "a systems language"},
	} {
		if err := archive.Append(ctx, "rust", e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	eng, err := New(vectors, retriever, nil, synth, pipeline, archive, Config{})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	seedTopic(t, vectors, "rust", []string{"rust is fast"}, []string{"wikipedia.org"})

	if err := eng.SetActiveTopic(ctx, "rust"); err != nil {
		t.Fatalf("set topic: %v", err)
	}
	h := eng.Session().History()
	if len(h) != 2 {
		t.Fatalf("history length = %d, want 2 restored entries", len(h))
	}
	if h[0].Role != session.RoleUser || h[0].Content != "what is rust" {
		t.Errorf("first restored entry = %+v", h[0])
	}
	if h[1].Role != session.RoleAssistant || h[1].Content != "a systems language" {
		t.Errorf("second restored entry = %+v", h[1])
	}
	if eng.Session().Phase() != session.PhaseTopicSet {
		t.Error("session should be in the topic-set phase")
	}
}

func Test_ClearHistory_AlsoClearsArchive(t *testing.T) {
	t.Parallel()

	vectors := rag.NewMemoryStore()
	retriever, err := rag.NewRetriever(fakeEmbedder{}, vectors, 5)
	if err != nil {
		t.Fatalf("retriever: %v", err)
	}
	synth, err := answer.NewSynthesizer(&fakeModel{reply: "a"}, answer.ModeStrict, 0)
	if err != nil {
		t.Fatalf("synthesizer: %v", err)
	}
	pipeline, err := ingestion.NewPipeline(&fakeSearch{}, nil, fakeEmbedder{}, vectors, &ingestion.Config{
		RequestDelay: time.Millisecond,
		EmbedDelay:   time.Millisecond,
	})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	archive, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	defer archive.Close()

	eng, err := New(vectors, retriever, nil, synth, pipeline, archive, Config{})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	seedTopic(t, vectors, "rust", []string{"rust is fast"}, []string{"wikipedia.org"})
	ctx := context.Background()
	if err := eng.SetActiveTopic(ctx, "rust"); err != nil {
		t.Fatalf("set topic: %v", err)
	}
	if _, err := eng.Answer(ctx, "what is rust"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	archived, err := archive.Recent(ctx, "rust", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(archived) != 2 {
		t.Fatalf("archived = %d entries, want 2", len(archived))
	}

	if err := eng.ClearHistory(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(eng.Session().History()) != 0 {
		t.Error("session history should be empty")
	}
	archived, err = archive.Recent(ctx, "rust", 10)
	if err != nil {
		t.Fatalf("recent after clear: %v", err)
	}
	if len(archived) != 0 {
		t.Errorf("archive should be empty, got %d", len(archived))
	}
}
