// Package search defines the web search provider contract used by topic
// ingestion, plus the Serper.dev HTTP implementation. The provider is an
// external collaborator: only its call contract matters to the core, and all
// failures surface as rag.UpstreamError for the pipeline to skip past.
package search

import (
	"context"

	"github.com/curio-ai/curio-go/internal/rag"
)

// Organic is a single free-text search result. Results missing a title or
// description are skipped during ingestion.
type Organic struct {
	// Title is the result's headline.
	Title string
	// Description is the snippet text under the headline.
	Description string
	// DisplayLink is the human-readable origin (e.g. "en.wikipedia.org").
	DisplayLink string
	// Link is the full result URL.
	Link string
}

// Fact is one key/value attribute from a knowledge-graph panel.
type Fact struct {
	Key   string
	Value string
}

// KnowledgeGraph is the structured side panel a search engine returns for
// well-known entities. It becomes a single high-priority chunk.
type KnowledgeGraph struct {
	// Title is the entity name.
	Title string
	// Description is the entity summary.
	Description string
	// Facts are the panel's key/value attributes, in response order.
	Facts []Fact
}

// Result is a parsed search response.
type Result struct {
	// Organic holds the free-text results, in rank order.
	Organic []Organic
	// Knowledge holds the knowledge-graph panel, when present.
	Knowledge *KnowledgeGraph
}

// Provider is the search collaborator contract. Implementations must be safe
// to call from multiple goroutines and should wrap transport failures in
// rag.UpstreamError.
type Provider interface {
	// Search runs a query and returns up to resultCount organic results.
	Search(ctx context.Context, query string, resultCount int) (*Result, error)
}

// upstream wraps err as a search-collaborator failure.
func upstream(err error) error {
	return &rag.UpstreamError{Collaborator: "search", Err: err}
}
