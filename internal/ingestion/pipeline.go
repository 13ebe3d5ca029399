// Package ingestion implements the topic research pipeline. It drives the
// search provider across a fixed set of query templates, converts the
// responses into chunks, deduplicates the aggregate, embeds each chunk, and
// upserts the batch into the topic's vector store collection. This pipeline
// is invoked by the `curio research` CLI command.
package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/curio-ai/curio-go/internal/cache"
	"github.com/curio-ai/curio-go/internal/chunker"
	"github.com/curio-ai/curio-go/internal/logging"
	"github.com/curio-ai/curio-go/internal/rag"
	"github.com/curio-ai/curio-go/internal/search"
	"github.com/curio-ai/curio-go/internal/topic"
)

// ErrNoDataFound indicates that every query template came back empty and the
// topic has nothing to index.
var ErrNoDataFound = errors.New("ingestion: no data found for topic")

// Config holds the configuration for the research pipeline.
type Config struct {
	// ChunkSize is the maximum number of words per chunk. Defaults to 80.
	ChunkSize int

	// ChunkOverlap is the number of words shared between consecutive chunks.
	// Defaults to 10.
	ChunkOverlap int

	// ResultCount is how many organic results to request per query.
	// Defaults to 5.
	ResultCount int

	// RequestDelay is the pause between consecutive search queries.
	// Defaults to 1s.
	RequestDelay time.Duration

	// EmbedDelay is the pause between consecutive embedding calls.
	// Defaults to 100ms.
	EmbedDelay time.Duration

	// CacheTTL is how long raw search responses stay cached.
	// Defaults to cache.DefaultTTL.
	CacheTTL time.Duration
}

// Report summarises a completed ingestion run.
type Report struct {
	// TopicID is the slug of the researched topic.
	TopicID string
	// Chunks is the number of chunks stored after deduplication.
	Chunks int
	// Sources is the distinct set of chunk sources, in first-seen order.
	Sources []string
}

// Pipeline orchestrates the search → parse → dedupe → embed → upsert flow
// for a single topic.
type Pipeline struct {
	provider search.Provider
	cache    cache.QueryCache
	embedder rag.Embedder
	store    rag.VectorStore
	cfg      *Config
}

// NewPipeline constructs a Pipeline from the provided collaborators. The
// cache may be nil, in which case every query hits the search provider.
func NewPipeline(provider search.Provider, qc cache.QueryCache, embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if provider == nil {
		return nil, fmt.Errorf("ingestion: search provider must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 80
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 10
	}
	if cfg.ResultCount <= 0 {
		cfg.ResultCount = 5
	}
	if cfg.RequestDelay <= 0 {
		cfg.RequestDelay = time.Second
	}
	if cfg.EmbedDelay <= 0 {
		cfg.EmbedDelay = 100 * time.Millisecond
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}

	return &Pipeline{
		provider: provider,
		cache:    qc,
		embedder: embedder,
		store:    store,
		cfg:      cfg,
	}, nil
}

// Ingest researches a topic and indexes the results into the topic's
// collection. Per-template search failures are logged and skipped; the run
// fails only when every template yields nothing (ErrNoDataFound) or when a
// downstream collaborator (embedder, store) fails.
func (p *Pipeline) Ingest(ctx context.Context, t topic.Topic) (*Report, error) {
	log := logging.FromContext(ctx)

	if err := p.store.EnsureCollection(ctx, t.ID); err != nil {
		return nil, fmt.Errorf("ingestion: ensure collection %s: %w", t.ID, err)
	}

	var all []rag.Chunk
	for i, tmpl := range queryTemplates {
		if i > 0 {
			if err := sleep(ctx, p.cfg.RequestDelay); err != nil {
				return nil, fmt.Errorf("ingestion: %w", err)
			}
		}

		query := tmpl.render(t.DisplayName)
		result, err := p.searchCached(ctx, query)
		if err != nil {
			log.Warn("search query failed, skipping template",
				"topic", t.ID, "template", tmpl.Key, "error", err)
			continue
		}

		chunks := p.parse(tmpl.Key, result)
		log.Debug("template parsed", "topic", t.ID, "template", tmpl.Key, "chunks", len(chunks))
		all = append(all, chunks...)
	}

	all = chunker.Dedupe(all, func(c rag.Chunk) string { return c.Content })
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDataFound, t.DisplayName)
	}

	batch, err := p.embedBatch(ctx, all)
	if err != nil {
		return nil, err
	}
	if err := p.store.Upsert(ctx, t.ID, batch); err != nil {
		return nil, fmt.Errorf("ingestion: upsert %s: %w", t.ID, err)
	}

	report := &Report{TopicID: t.ID, Chunks: len(all), Sources: sources(all)}
	log.Info("topic ingested", "topic", t.ID, "chunks", report.Chunks, "sources", len(report.Sources))
	return report, nil
}

// searchCached consults the cache for the rendered query before calling the
// search provider. Cache failures are logged and treated as misses.
func (p *Pipeline) searchCached(ctx context.Context, query string) (*search.Result, error) {
	log := logging.FromContext(ctx)

	if p.cache != nil {
		payload, ok, err := p.cache.Get(ctx, query)
		if err != nil {
			log.Warn("cache read failed", "query", query, "error", err)
		} else if ok {
			var result search.Result
			if err := json.Unmarshal(payload, &result); err != nil {
				log.Warn("cache entry corrupt, refetching", "query", query, "error", err)
			} else {
				log.Debug("cache hit", "query", query)
				return &result, nil
			}
		}
	}

	result, err := p.provider.Search(ctx, query, p.cfg.ResultCount)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		payload, err := json.Marshal(result)
		if err == nil {
			err = p.cache.Put(ctx, query, payload, p.cfg.CacheTTL)
		}
		if err != nil {
			log.Warn("cache write failed", "query", query, "error", err)
		}
	}
	return result, nil
}

// parse converts one search response into chunks. Organic results missing a
// title or description are skipped; long results are split by the chunker.
// A knowledge-graph panel becomes a single KnowledgeGraph-typed chunk.
func (p *Pipeline) parse(templateKey string, result *search.Result) []rag.Chunk {
	var chunks []rag.Chunk
	idx := 0

	for _, o := range result.Organic {
		if o.Title == "" || o.Description == "" {
			continue
		}
		content := o.Title + ". " + o.Description
		src := o.DisplayLink
		if src == "" {
			src = o.Link
		}
		for piece := range chunker.Chunks(content, p.cfg.ChunkSize, p.cfg.ChunkOverlap) {
			chunks = append(chunks, rag.Chunk{
				ID:      chunkID(templateKey, idx, o.Link, piece),
				Content: piece,
				Source:  src,
				URL:     o.Link,
				Kind:    rag.KindSearchResult,
			})
			idx++
		}
	}

	if kg := result.Knowledge; kg != nil {
		var b strings.Builder
		b.WriteString(kg.Description)
		for _, f := range kg.Facts {
			b.WriteString("\n")
			b.WriteString(f.Key)
			b.WriteString(": ")
			b.WriteString(f.Value)
		}
		content := strings.TrimSpace(b.String())
		if content != "" {
			chunks = append(chunks, rag.Chunk{
				ID:      chunkID(templateKey, idx, "", content),
				Content: content,
				Source:  "knowledge_graph",
				Kind:    rag.KindKnowledgeGraph,
			})
		}
	}
	return chunks
}

// embedBatch requests one embedding per chunk, sequentially with a short
// delay, and assembles the aligned batch for the store write.
func (p *Pipeline) embedBatch(ctx context.Context, chunks []rag.Chunk) (*rag.Batch, error) {
	batch := &rag.Batch{
		IDs:       make([]string, 0, len(chunks)),
		Vectors:   make([][]float32, 0, len(chunks)),
		Documents: make([]string, 0, len(chunks)),
		Metadatas: make([]rag.Meta, 0, len(chunks)),
	}
	for i, c := range chunks {
		if i > 0 {
			if err := sleep(ctx, p.cfg.EmbedDelay); err != nil {
				return nil, fmt.Errorf("ingestion: %w", err)
			}
		}
		vectors, err := p.embedder.Embed(ctx, []string{c.Content})
		if err != nil {
			return nil, &rag.UpstreamError{Collaborator: "embed", Err: err}
		}
		if len(vectors) != 1 {
			return nil, &rag.UpstreamError{
				Collaborator: "embed",
				Err:          fmt.Errorf("got %d embeddings for one input", len(vectors)),
			}
		}
		batch.IDs = append(batch.IDs, c.ID)
		batch.Vectors = append(batch.Vectors, vectors[0])
		batch.Documents = append(batch.Documents, c.Content)
		batch.Metadatas = append(batch.Metadatas, rag.Meta{Source: c.Source, URL: c.URL, Kind: c.Kind})
	}
	return batch, nil
}

// chunkID builds a deterministic id from the template key, a per-template
// index, and a short hash of the source URL (or the content when there is no
// URL). The hash component keeps ids distinct across templates that surface
// the same result.
func chunkID(templateKey string, index int, url, content string) string {
	basis := url
	if basis == "" {
		basis = content
	}
	h := sha256.Sum256([]byte(basis))
	return fmt.Sprintf("%s_%d_%x", templateKey, index, h[:4])
}

// sources returns the distinct chunk sources in first-seen order.
func sources(chunks []rag.Chunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	var out []string
	for _, c := range chunks {
		if _, ok := seen[c.Source]; ok {
			continue
		}
		seen[c.Source] = struct{}{}
		out = append(out, c.Source)
	}
	return out
}

// sleep pauses for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
