package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/curio-ai/curio-go/internal/chunker"
	"github.com/curio-ai/curio-go/internal/logging"
)

// Default retrieval bounds, used when the caller passes zero values.
const (
	// DefaultMaxChunks is the nearest-neighbour count per question.
	DefaultMaxChunks = 5
	// DefaultMaxContextChars bounds the assembled context passed to the
	// generation collaborator.
	DefaultMaxContextChars = 4000
)

// Retriever is the retrieval engine: it embeds a question, queries the
// per-topic collection, drops near-duplicates, and orders the survivors for
// context assembly.
type Retriever struct {
	// embedder converts the question to a dense vector.
	embedder Embedder
	// store performs the nearest-neighbour search.
	store VectorStore
	// maxChunks is the neighbour count requested per query.
	maxChunks int
}

// NewRetriever constructs a Retriever. maxChunks <= 0 falls back to
// DefaultMaxChunks.
func NewRetriever(embedder Embedder, store VectorStore, maxChunks int) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}
	return &Retriever{embedder: embedder, store: store, maxChunks: maxChunks}, nil
}

// Retrieve returns the deduplicated, ordered chunk set for a question.
// Collaborator failures degrade to an empty result rather than propagating:
// a broken embedder or store means "no context found", not a hard error, and
// the synthesizer's no-context fallback takes over.
func (r *Retriever) Retrieve(ctx context.Context, topicID, question string) []RetrievedChunk {
	log := logging.FromContext(ctx)

	embeddings, err := r.embedder.Embed(ctx, []string{question})
	if err != nil || len(embeddings) == 0 {
		log.Warn("retrieval: question embedding failed, returning no context",
			slog.String("topic", topicID), slog.Any("error", err))
		return nil
	}

	chunks, err := r.store.Query(ctx, topicID, embeddings[0], r.maxChunks)
	if err != nil {
		log.Warn("retrieval: vector query failed, returning no context",
			slog.String("topic", topicID), slog.Any("error", err))
		return nil
	}

	chunks = chunker.Dedupe(chunks, func(c RetrievedChunk) string { return c.Content })
	SortForContext(chunks)
	return chunks
}

// SortForContext orders chunks for prompt assembly: knowledge-graph chunks
// always precede search-result chunks regardless of distance; within the
// same kind, ascending distance breaks ties.
func SortForContext(chunks []RetrievedChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		ki, kj := chunks[i].Kind, chunks[j].Kind
		if ki != kj {
			return ki == KindKnowledgeGraph
		}
		return chunks[i].Distance < chunks[j].Distance
	})
}

// BuildContext assembles the prompt context from an ordered chunk list.
// Each chunk contributes a "Source: <source>\n<content>\n\n" block; assembly
// stops at the first chunk whose block would push the total past maxChars.
// Chunks are never truncated mid-content, so the output contains only
// complete blocks.
func BuildContext(chunks []RetrievedChunk, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxContextChars
	}

	var b strings.Builder
	for _, c := range chunks {
		block := fmt.Sprintf("Source: %s\n%s\n\n", c.Source, c.Content)
		if b.Len()+len(block) > maxChars {
			break
		}
		b.WriteString(block)
	}
	return b.String()
}

// Sources returns the distinct chunk sources in first-seen order.
func Sources(chunks []RetrievedChunk) []string {
	seen := make(map[string]bool, len(chunks))
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.Source == "" || seen[c.Source] {
			continue
		}
		seen[c.Source] = true
		out = append(out, c.Source)
	}
	return out
}
