package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"

	"github.com/curio-ai/curio-go/internal/answer"
	"github.com/curio-ai/curio-go/internal/budget"
	"github.com/curio-ai/curio-go/internal/cache"
	"github.com/curio-ai/curio-go/internal/embedder"
	"github.com/curio-ai/curio-go/internal/engine"
	"github.com/curio-ai/curio-go/internal/ingestion"
	"github.com/curio-ai/curio-go/internal/provider"
	"github.com/curio-ai/curio-go/internal/rag"
	"github.com/curio-ai/curio-go/internal/search"
	"github.com/curio-ai/curio-go/internal/store"
)

// getEnvOrDefault returns the environment variable value or def if unset.
func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the environment variable parsed as int, or def if unset
// or unparsable.
func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// getEnvFloat returns the environment variable parsed as float64, or def if
// unset or unparsable.
func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// getEnvBool returns the environment variable parsed as bool, or def if unset
// or unparsable.
func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// app bundles the wired engine with the collaborators the serve command
// needs for dependency probes.
type app struct {
	// engine is the fully wired answer engine.
	engine *engine.Engine
	// chatModel is the generation backend, probed by GET /api/ready.
	chatModel model.ToolCallingChatModel
	// vectors is the vector store; a *rag.QdrantStore gets a readiness probe.
	vectors rag.VectorStore
}

// buildApp wires every collaborator the answer engine needs from the
// environment: embedder, vector store, search provider, query cache,
// ingestion pipeline, retriever, analyzer, chat model, synthesizer, and the
// optional cross-run history archive. The returned cleanup function closes
// everything that was opened, in reverse order.
func buildApp(ctx context.Context, log *slog.Logger) (*app, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*app, func(), error) {
		cleanup()
		return nil, nil, err
	}

	if err := embedder.Preflight(log); err != nil {
		return fail(err)
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return fail(fmt.Errorf("failed to initialise embedder: %w", err))
	}
	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))

	// QDRANT_HOST selects the persistent index. Without it the index lives
	// in process memory and every run starts from scratch.
	var vectors rag.VectorStore
	if os.Getenv("QDRANT_HOST") == "" {
		log.Warn("qdrant: QDRANT_HOST not set — using in-memory index, nothing is persisted")
		vectors = rag.NewMemoryStore()
	} else {
		qs, qErr := rag.NewQdrantStore(&rag.QdrantConfig{
			Host:       os.Getenv("QDRANT_HOST"),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			VectorSize: uint64(embedder.DefaultDimensions(embBackend)),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})
		if qErr != nil {
			return fail(fmt.Errorf("failed to connect to Qdrant: %w", qErr))
		}
		closers = append(closers, func() { _ = qs.Close() })
		vectors = qs
		log.Info("qdrant store ready",
			slog.String("host", os.Getenv("QDRANT_HOST")),
			slog.Int("port", getEnvInt("QDRANT_PORT", 6334)),
		)
	}

	searchProv, err := search.NewSerperProvider(&search.SerperConfig{
		APIKey: os.Getenv("SERPER_API_KEY"),
	})
	if err != nil {
		return fail(err)
	}

	// Query cache. CACHE_DB overrides the default path (~/.curio/cache.db).
	// Set to "disabled" to turn caching off.
	var qc cache.QueryCache
	cachePath := os.Getenv("CACHE_DB")
	if cachePath != "disabled" {
		if cachePath == "" {
			cachePath, err = cache.DefaultDBPath()
			if err != nil {
				log.Warn("cache: could not resolve default DB path, disabling", slog.Any("error", err))
				cachePath = ""
			}
		}
		if cachePath != "" {
			c, cErr := cache.Open(cachePath)
			if cErr != nil {
				log.Warn("cache: failed to open, continuing without", slog.Any("error", cErr))
			} else {
				qc = c
				closers = append(closers, func() { _ = c.Close() })
				if swept, sErr := c.SweepExpired(ctx); sErr == nil && swept > 0 {
					log.Info("cache: swept expired entries", slog.Int64("count", swept))
				}
			}
		}
	} else {
		log.Info("cache: disabled via CACHE_DB=disabled")
	}

	pipeline, err := ingestion.NewPipeline(searchProv, qc, emb, vectors, &ingestion.Config{
		ResultCount:  getEnvInt("SEARCH_RESULT_COUNT", 0),
		RequestDelay: time.Duration(getEnvInt("SEARCH_REQUEST_DELAY_MS", 0)) * time.Millisecond,
		CacheTTL:     time.Duration(getEnvInt("CACHE_TTL_HOURS", 0)) * time.Hour,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to create ingestion pipeline: %w", err))
	}

	retriever, err := rag.NewRetriever(emb, vectors, getEnvInt("RETRIEVAL_TOP_K", 0))
	if err != nil {
		return fail(err)
	}

	analyzer := rag.NewAnalyzer(emb, rag.AnalyzerConfig{
		SimilarityWarning:   getEnvBool("RETRIEVAL_SIMILARITY_WARNING", true),
		SimilarityThreshold: getEnvFloat("RETRIEVAL_SIMILARITY_THRESHOLD", 0),
		TopicCheck:          getEnvBool("RETRIEVAL_TOPIC_CHECK", true),
		TopicThreshold:      getEnvFloat("RETRIEVAL_TOPIC_THRESHOLD", 0),
	})

	chatModel, err := provider.NewFromEnv(ctx)
	if err != nil {
		return fail(fmt.Errorf("failed to initialise model provider: %w", err))
	}

	mode := answer.ParseMode(os.Getenv("ANSWER_MODE"))
	synth, err := answer.NewSynthesizer(chatModel, mode, budget.DefaultMaxContextTokens)
	if err != nil {
		return fail(err)
	}
	log.Info("synthesizer ready", slog.String("mode", mode.String()))

	// Conversation archive. CURIO_HISTORY_DB overrides the default path
	// (~/.curio/history.db). Set to "disabled" to keep history in memory only.
	var archive store.HistoryStore
	dbPath := os.Getenv("CURIO_HISTORY_DB")
	if dbPath != "disabled" {
		if dbPath == "" {
			dbPath, err = store.DefaultDBPath()
			if err != nil {
				log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
				dbPath = ""
			}
		}
		if dbPath != "" {
			hs, hsErr := store.Open(dbPath)
			if hsErr != nil {
				log.Warn("history: failed to open store, disabling", slog.Any("error", hsErr))
			} else {
				archive = hs
				closers = append(closers, func() { _ = hs.Close() })
			}
		}
	} else {
		log.Info("history: disabled via CURIO_HISTORY_DB=disabled")
	}

	var trusted []string
	if raw := os.Getenv("TRUSTED_SOURCES"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				trusted = append(trusted, s)
			}
		}
	}

	eng, err := engine.New(vectors, retriever, analyzer, synth, pipeline, archive, engine.Config{
		MaxContextChars: getEnvInt("RETRIEVAL_MAX_CONTEXT_CHARS", 0),
		TrustedSources:  trusted,
		HistoryCap:      getEnvInt("HISTORY_CAP", 0),
	})
	if err != nil {
		return fail(err)
	}

	return &app{engine: eng, chatModel: chatModel, vectors: vectors}, cleanup, nil
}
