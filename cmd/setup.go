package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/kaapeh/copiloto/internal/chunker"
	"github.com/kaapeh/copiloto/internal/config"
	"github.com/kaapeh/copiloto/internal/docsource"
	"github.com/kaapeh/copiloto/internal/embedding"
	"github.com/kaapeh/copiloto/internal/genai"
	"github.com/kaapeh/copiloto/internal/knowledge"
	"github.com/kaapeh/copiloto/internal/rag"
	"github.com/kaapeh/copiloto/internal/vectorindex"
)

// app holds the wired components for the lifetime of the process.
type app struct {
	cfg     *config.Config
	service *rag.Service
	index   *vectorindex.Index
	logger  *slog.Logger
}

// setup is the composition root: it builds every component explicitly and
// initializes the knowledge base before the first question.
func setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))

	backend := googlegenai.GoogleAIEmbedder(g, cfg.Embedding.Model)
	if backend == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.Embedding.Model)
	}

	// One multilingual backing model serves both languages; readiness is
	// still tracked per language.
	generator := embedding.New(
		map[embedding.Language]ai.Embedder{
			embedding.LanguageSpanish: backend,
			embedding.LanguageEnglish: backend,
		},
		logger.With("component", "embedding"),
		embedding.WithCacheSize(cfg.Embedding.CacheSize),
		embedding.WithRateLimit(cfg.Embedding.RequestsPerSecond, cfg.Embedding.Burst),
		embedding.WithEmbedOptions(map[string]any{"outputDimensionality": embedding.Dimension}),
	)

	index := vectorindex.New(generator, logger.With("component", "vectorindex"))

	entries := make([]docsource.Entry, len(cfg.Knowledge.Documents))
	for i, d := range cfg.Knowledge.Documents {
		entries[i] = docsource.Entry{Filename: d.Filename, Category: d.Category}
	}
	source := docsource.NewFS(cfg.Knowledge.DocumentsDir, entries, logger.With("component", "docsource"))

	chunks := chunker.New(chunker.Config{
		MaxWordsPerChunk: cfg.Chunker.MaxWordsPerChunk,
		OverlapWords:     cfg.Chunker.OverlapWords,
	})
	initializer := knowledge.NewInitializer(source, chunks, generator, index,
		logger.With("component", "knowledge"),
		knowledge.WithCategories(cfg.Knowledge.Categories),
		knowledge.WithProgress(func(p knowledge.Progress) {
			logger.Info("knowledge base progress",
				"state", p.State.String(), "fraction", p.Fraction, "message", p.Message)
		}),
	)

	if err := initializer.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initializing knowledge base: %w", err)
	}
	initStats := initializer.Stats()
	logger.Info("knowledge base initialized",
		"documents", initStats.DocumentsLoaded,
		"vectors", initStats.VectorsIndexed,
		"skipped", initStats.ChunksSkipped,
		"duration", initStats.Duration)

	client := genai.NewGenkitClient(g, cfg.Generation.Model)
	service := rag.NewService(index, client, rag.Config{
		TopK:          cfg.Search.TopK,
		MinSimilarity: cfg.Search.MinSimilarity,
		MaxChunkChars: cfg.Search.MaxChunkChars,
	}, logger.With("component", "rag"))

	return &app{cfg: cfg, service: service, index: index, logger: logger}, nil
}
