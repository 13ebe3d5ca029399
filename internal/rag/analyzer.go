package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/curio-ai/curio-go/internal/logging"
)

// AnalyzerConfig toggles and tunes the two post-retrieval relevance checks.
// Both checks are advisory: they log and return warnings but never block or
// fail a question.
type AnalyzerConfig struct {
	// SimilarityWarning enables the low-similarity check over the retrieved set.
	SimilarityWarning bool
	// SimilarityThreshold is the similarity floor below which the retrieved
	// set is flagged as weakly related (default 0.3).
	SimilarityThreshold float64
	// TopicCheck enables the question-vs-topic embedding comparison.
	TopicCheck bool
	// TopicThreshold is the cosine similarity floor below which the question
	// is flagged as off-topic (default 0.35).
	TopicThreshold float64
}

// DefaultAnalyzerConfig returns the analyzer defaults with both checks on.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		SimilarityWarning:   true,
		SimilarityThreshold: 0.3,
		TopicCheck:          true,
		TopicThreshold:      0.35,
	}
}

// Analyzer runs non-fatal relevance heuristics over a retrieved chunk set.
// Every internal failure is swallowed and treated as "no warning produced" —
// a broken embedder must never turn an answerable question into an error.
type Analyzer struct {
	// embedder is used by the topic-mismatch check.
	embedder Embedder
	// cfg holds thresholds and toggles.
	cfg AnalyzerConfig
}

// NewAnalyzer constructs an Analyzer. Zero thresholds fall back to defaults.
func NewAnalyzer(embedder Embedder, cfg AnalyzerConfig) *Analyzer {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.3
	}
	if cfg.TopicThreshold <= 0 {
		cfg.TopicThreshold = 0.35
	}
	return &Analyzer{embedder: embedder, cfg: cfg}
}

// Analyze runs the enabled checks and returns any warnings produced. The
// warnings are also logged so they surface without the caller forwarding them.
func (a *Analyzer) Analyze(ctx context.Context, topicID, question string, chunks []RetrievedChunk) []string {
	var warnings []string

	if a.cfg.SimilarityWarning {
		if w := a.checkSimilarity(chunks); w != "" {
			warnings = append(warnings, w)
		}
	}
	if a.cfg.TopicCheck {
		if w := a.checkTopicMismatch(ctx, topicID, question); w != "" {
			warnings = append(warnings, w)
		}
	}

	log := logging.FromContext(ctx)
	for _, w := range warnings {
		log.Warn("analyzer: "+w, slog.String("topic", topicID))
	}
	return warnings
}

// checkSimilarity flags a retrieved set where every chunk's similarity
// (1 - distance) falls below the threshold. Returns "" when any chunk clears
// the floor or the set is empty.
func (a *Analyzer) checkSimilarity(chunks []RetrievedChunk) string {
	if len(chunks) == 0 {
		return ""
	}

	best := -1.0
	for _, c := range chunks {
		if sim := 1 - float64(c.Distance); sim > best {
			best = sim
		}
	}
	if best >= a.cfg.SimilarityThreshold {
		return ""
	}
	return fmt.Sprintf("retrieved passages are only weakly related to the question (best similarity %.2f)", best)
}

// checkTopicMismatch embeds a canonical phrase for the topic and the raw
// question, and flags the question when the cosine similarity between the two
// falls below the threshold. Embedding failures produce no warning.
func (a *Analyzer) checkTopicMismatch(ctx context.Context, topicID, question string) string {
	if a.embedder == nil {
		return ""
	}

	phrase := "what is " + strings.ReplaceAll(topicID, "_", " ")
	vecs, err := a.embedder.Embed(ctx, []string{phrase, question})
	if err != nil || len(vecs) != 2 {
		return ""
	}

	sim := CosineSimilarity(vecs[0], vecs[1])
	if sim >= a.cfg.TopicThreshold {
		return ""
	}
	return fmt.Sprintf("question may be unrelated to the active topic (topic similarity %.2f)", sim)
}
