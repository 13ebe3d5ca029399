package rag

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is a brute-force in-memory VectorStore. It backs unit tests and
// lets the CLI run end-to-end without a Qdrant instance (QDRANT_HOST unset),
// at the cost of losing the index on exit.
type MemoryStore struct {
	mu     sync.RWMutex
	topics map[string]*memoryCollection
}

// memoryCollection holds the parallel chunk/vector slices for one topic.
type memoryCollection struct {
	chunks  []Chunk
	vectors [][]float32
	byID    map[string]int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{topics: make(map[string]*memoryCollection)}
}

// EnsureCollection creates the topic's collection if it does not exist.
func (s *MemoryStore) EnsureCollection(_ context.Context, topicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topics[topicID]; !ok {
		s.topics[topicID] = &memoryCollection{byID: make(map[string]int)}
	}
	return nil
}

// CollectionExists reports whether the topic's collection exists.
func (s *MemoryStore) CollectionExists(_ context.Context, topicID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.topics[topicID]
	return ok, nil
}

// Upsert writes a validated batch, replacing chunks that share an id.
func (s *MemoryStore) Upsert(_ context.Context, topicID string, batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.topics[topicID]
	if !ok {
		col = &memoryCollection{byID: make(map[string]int)}
		s.topics[topicID] = col
	}

	for i, id := range batch.IDs {
		meta := batch.Metadatas[i]
		chunk := Chunk{
			ID:      id,
			Content: batch.Documents[i],
			Source:  meta.Source,
			URL:     meta.URL,
			Kind:    meta.Kind,
		}
		if at, seen := col.byID[id]; seen {
			col.chunks[at] = chunk
			col.vectors[at] = batch.Vectors[i]
			continue
		}
		col.byID[id] = len(col.chunks)
		col.chunks = append(col.chunks, chunk)
		col.vectors = append(col.vectors, batch.Vectors[i])
	}
	return nil
}

// Query returns the k nearest chunks by cosine distance, closest first.
func (s *MemoryStore) Query(_ context.Context, topicID string, embedding []float32, k int) ([]RetrievedChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.topics[topicID]
	if !ok {
		return nil, &UpstreamError{Collaborator: "store", Err: fmt.Errorf("no collection for topic %q", topicID)}
	}

	out := make([]RetrievedChunk, 0, len(col.chunks))
	for i, c := range col.chunks {
		dist := 1 - float32(CosineSimilarity(embedding, col.vectors[i]))
		out = append(out, RetrievedChunk{Chunk: c, Distance: dist})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// ListTopics returns the ids of all collections, in unspecified order.
func (s *MemoryStore) ListTopics(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.topics))
	for id := range s.topics {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteTopic removes the topic's collection.
func (s *MemoryStore) DeleteTopic(_ context.Context, topicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.topics, topicID)
	return nil
}

// GetAll returns every chunk stored for the topic in insertion order.
func (s *MemoryStore) GetAll(_ context.Context, topicID string) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.topics[topicID]
	if !ok {
		return nil, nil
	}
	out := make([]Chunk, len(col.chunks))
	copy(out, col.chunks)
	return out, nil
}

// Count returns the number of chunks stored for the topic.
func (s *MemoryStore) Count(_ context.Context, topicID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.topics[topicID]
	if !ok {
		return 0, nil
	}
	return uint64(len(col.chunks)), nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
