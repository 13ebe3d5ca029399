// Package rag defines the retrieval-augmented generation core: the chunk data
// model, the per-topic vector store and embedder contracts, the retrieval
// engine, and the relevance/confidence heuristics layered on top of it.
// Concrete stores (Qdrant, in-memory) satisfy these interfaces so the engine
// layer never depends on a specific backend.
package rag

import (
	"context"
	"fmt"
	"math"
)

// ChunkKind is the closed set of chunk provenance kinds. The kind drives the
// retrieval sort order: knowledge-graph chunks always outrank search-result
// chunks regardless of distance.
type ChunkKind int

const (
	// KindSearchResult marks a chunk derived from an organic search snippet.
	KindSearchResult ChunkKind = iota
	// KindKnowledgeGraph marks a chunk derived from structured facts.
	KindKnowledgeGraph
)

// String returns the payload representation of the kind.
func (k ChunkKind) String() string {
	if k == KindKnowledgeGraph {
		return "knowledge_graph"
	}
	return "search_result"
}

// KindFromString parses a stored kind label, defaulting to KindSearchResult
// for unknown values so old payloads never break reads.
func KindFromString(s string) ChunkKind {
	if s == "knowledge_graph" {
		return KindKnowledgeGraph
	}
	return KindSearchResult
}

// Chunk is a unit of retrievable text plus provenance. Chunks are created
// during ingestion and immutable once stored; IDs are unique within a topic.
type Chunk struct {
	// ID is the deterministic chunk identifier (unique per topic).
	ID string
	// Content is the raw text of the chunk.
	Content string
	// Source is the human-readable origin (display link or provider name).
	Source string
	// URL is the full origin URL, when known.
	URL string
	// Kind classifies the chunk's provenance.
	Kind ChunkKind
}

// RetrievedChunk is a Chunk annotated with its query-time cosine distance.
// Distance is transient and never persisted.
type RetrievedChunk struct {
	Chunk
	// Distance is the cosine distance to the query (1 - cosine similarity,
	// so lower is closer). Bounded to [0, 2] for normalised embeddings.
	Distance float32
}

// Meta is the metadata record stored alongside each chunk document.
type Meta struct {
	// Source is the human-readable origin of the chunk.
	Source string
	// URL is the full origin URL.
	URL string
	// Kind classifies the chunk's provenance.
	Kind ChunkKind
}

// Batch is a parallel-array upsert payload. All four slices must have equal
// length; Validate enforces this before any store write is attempted.
type Batch struct {
	// IDs are the per-topic unique chunk identifiers.
	IDs []string
	// Vectors are the pre-computed embeddings, parallel to IDs.
	Vectors [][]float32
	// Documents are the chunk texts, parallel to IDs.
	Documents []string
	// Metadatas are the chunk metadata records, parallel to IDs.
	Metadatas []Meta
}

// Validate returns a ConsistencyError if the four parallel arrays disagree in
// length. Store implementations must call this before writing anything, so a
// misaligned batch is never partially indexed.
func (b *Batch) Validate() error {
	n := len(b.IDs)
	if len(b.Vectors) != n || len(b.Documents) != n || len(b.Metadatas) != n {
		return &ConsistencyError{
			IDs:       len(b.IDs),
			Vectors:   len(b.Vectors),
			Documents: len(b.Documents),
			Metadatas: len(b.Metadatas),
		}
	}
	return nil
}

// ConsistencyError reports a parallel-array length mismatch detected before a
// vector store write. The write is never attempted when this is returned.
type ConsistencyError struct {
	// IDs, Vectors, Documents, Metadatas are the observed slice lengths.
	IDs, Vectors, Documents, Metadatas int
}

// Error implements the error interface.
func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("rag: batch arrays misaligned: ids=%d vectors=%d documents=%d metadatas=%d",
		e.IDs, e.Vectors, e.Documents, e.Metadatas)
}

// UpstreamError wraps a failed collaborator call (search provider, embedding
// service, generation service, vector store) so callers can distinguish
// infrastructure failures from domain errors.
type UpstreamError struct {
	// Collaborator names the failed dependency ("search", "embed", "generate", "store").
	Collaborator string
	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("rag: %s collaborator failed: %v", e.Collaborator, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *UpstreamError) Unwrap() error { return e.Err }

// VectorStore is the per-topic vector index contract. Each topic id maps to
// its own isolated collection. Implementations must be safe to call from
// multiple goroutines.
type VectorStore interface {
	// EnsureCollection creates the topic's collection if it does not exist.
	EnsureCollection(ctx context.Context, topicID string) error

	// CollectionExists reports whether the topic's collection exists.
	CollectionExists(ctx context.Context, topicID string) (bool, error)

	// Upsert writes a validated batch into the topic's collection as a single
	// write. A Batch that fails Validate is rejected with ConsistencyError
	// and nothing is written.
	Upsert(ctx context.Context, topicID string, batch *Batch) error

	// Query returns the k nearest chunks to the embedding by cosine distance,
	// closest first.
	Query(ctx context.Context, topicID string, embedding []float32, k int) ([]RetrievedChunk, error)

	// ListTopics returns the topic ids that have collections.
	ListTopics(ctx context.Context) ([]string, error)

	// DeleteTopic removes the topic's collection and all its chunks.
	DeleteTopic(ctx context.Context, topicID string) error

	// GetAll returns every chunk stored for the topic, in unspecified order.
	GetAll(ctx context.Context, topicID string) ([]Chunk, error)

	// Count returns the number of chunks stored for the topic.
	Count(ctx context.Context, topicID string) (uint64, error)

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vector embeddings. The returned slice is
// parallel to the input. Implementations must be safe to call from multiple
// goroutines.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// CosineSimilarity returns the cosine of the angle between a and b: the dot
// product over the product of the norms. Returns 0 when either vector has
// zero norm, guarding against division by zero.
func CosineSimilarity(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, normA, normB float64
	for i := range n {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
