package rag

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// collectionPrefix namespaces curio collections inside a shared Qdrant
// instance. Topic ids never contain characters outside [a-z0-9_], so the
// prefix round-trips cleanly.
const collectionPrefix = "curio_"

// scrollPageSize bounds a single GetAll read. Topics are built from a handful
// of search queries, so a single page covers them comfortably.
const scrollPageSize = 4096

// QdrantConfig holds connection parameters for a Qdrant instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string
	// Port is the Qdrant gRPC port (default: 6334).
	Port int
	// VectorSize is the dimensionality of the embeddings stored per topic.
	VectorSize uint64
	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string
	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore with one Qdrant collection per topic.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client
	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore connects to Qdrant and returns a ready-to-use VectorStore.
// Collections are created lazily per topic via EnsureCollection.
func NewQdrantStore(cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantStore{client: client, cfg: cfg}, nil
}

// Client exposes the underlying gRPC client for health probes.
func (s *QdrantStore) Client() *qdrant.Client { return s.client }

// collectionName maps a topic id to its namespaced Qdrant collection.
func collectionName(topicID string) string { return collectionPrefix + topicID }

// EnsureCollection creates the topic's collection if it does not already exist.
func (s *QdrantStore) EnsureCollection(ctx context.Context, topicID string) error {
	name := collectionName(topicID)
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return &UpstreamError{Collaborator: "store", Err: fmt.Errorf("check collection %q: %w", name, err)}
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return &UpstreamError{Collaborator: "store", Err: fmt.Errorf("create collection %q: %w", name, err)}
	}
	return nil
}

// CollectionExists reports whether the topic's collection exists.
func (s *QdrantStore) CollectionExists(ctx context.Context, topicID string) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, collectionName(topicID))
	if err != nil {
		return false, &UpstreamError{Collaborator: "store", Err: err}
	}
	return exists, nil
}

// Upsert writes a validated batch into the topic's collection. Qdrant point
// ids must be UUIDs or integers, so each chunk id is mapped to a
// deterministic UUID and the original id is kept in the payload.
func (s *QdrantStore) Upsert(ctx context.Context, topicID string, batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(batch.IDs))
	for i, id := range batch.IDs {
		meta := batch.Metadatas[i]
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointUUID(topicID, id)),
			Vectors: qdrant.NewVectors(batch.Vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"chunk_id": id,
				"content":  batch.Documents[i],
				"source":   meta.Source,
				"url":      meta.URL,
				"kind":     meta.Kind.String(),
			}),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName(topicID),
		Points:         points,
	})
	if err != nil {
		return &UpstreamError{Collaborator: "store", Err: fmt.Errorf("upsert: %w", err)}
	}
	return nil
}

// Query returns the k nearest chunks by cosine distance, closest first.
// Qdrant reports cosine similarity; the score is converted to a distance
// (1 - similarity) at this boundary so every downstream heuristic sees a
// distance where lower means closer.
func (s *QdrantStore) Query(ctx context.Context, topicID string, embedding []float32, k int) ([]RetrievedChunk, error) {
	limit := uint64(k) //nolint:gosec // k is a small positive retrieval bound
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collectionName(topicID),
		Query:          qdrant.NewQuery(embedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, &UpstreamError{Collaborator: "store", Err: fmt.Errorf("query: %w", err)}
	}

	chunks := make([]RetrievedChunk, 0, len(results))
	for _, r := range results {
		rc := RetrievedChunk{Distance: 1 - r.Score}
		fillFromPayload(&rc.Chunk, r.Payload)
		chunks = append(chunks, rc)
	}
	return chunks, nil
}

// ListTopics returns the topic ids behind every curio-prefixed collection.
func (s *QdrantStore) ListTopics(ctx context.Context) ([]string, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, &UpstreamError{Collaborator: "store", Err: fmt.Errorf("list collections: %w", err)}
	}
	topics := make([]string, 0, len(names))
	for _, name := range names {
		if rest, ok := strings.CutPrefix(name, collectionPrefix); ok {
			topics = append(topics, rest)
		}
	}
	return topics, nil
}

// DeleteTopic removes the topic's collection and all its chunks.
func (s *QdrantStore) DeleteTopic(ctx context.Context, topicID string) error {
	if err := s.client.DeleteCollection(ctx, collectionName(topicID)); err != nil {
		return &UpstreamError{Collaborator: "store", Err: fmt.Errorf("delete collection: %w", err)}
	}
	return nil
}

// GetAll returns every stored chunk for the topic.
func (s *QdrantStore) GetAll(ctx context.Context, topicID string) ([]Chunk, error) {
	limit := uint32(scrollPageSize)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collectionName(topicID),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, &UpstreamError{Collaborator: "store", Err: fmt.Errorf("scroll: %w", err)}
	}

	chunks := make([]Chunk, 0, len(points))
	for _, p := range points {
		var c Chunk
		fillFromPayload(&c, p.Payload)
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// Count returns the number of chunks stored for the topic.
func (s *QdrantStore) Count(ctx context.Context, topicID string) (uint64, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collectionName(topicID),
	})
	if err != nil {
		return 0, &UpstreamError{Collaborator: "store", Err: fmt.Errorf("count: %w", err)}
	}
	return n, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// fillFromPayload populates a Chunk from a Qdrant point payload.
func fillFromPayload(c *Chunk, payload map[string]*qdrant.Value) {
	if payload == nil {
		return
	}
	if v, ok := payload["chunk_id"]; ok {
		c.ID = v.GetStringValue()
	}
	if v, ok := payload["content"]; ok {
		c.Content = v.GetStringValue()
	}
	if v, ok := payload["source"]; ok {
		c.Source = v.GetStringValue()
	}
	if v, ok := payload["url"]; ok {
		c.URL = v.GetStringValue()
	}
	if v, ok := payload["kind"]; ok {
		c.Kind = KindFromString(v.GetStringValue())
	}
}

// pointUUID derives a deterministic UUID-formatted point id from the topic
// and chunk id, so re-ingesting the same chunk overwrites rather than
// duplicates it.
func pointUUID(topicID, chunkID string) string {
	sum := sha256.Sum256([]byte(topicID + "/" + chunkID))
	return fmt.Sprintf("%x-%x-%x-%x-%x", sum[0:4], sum[4:6], sum[6:8], sum[8:10], sum[10:16])
}
