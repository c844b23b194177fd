// Package embedding converts text into fixed-dimension vectors using a
// backing embedding model per supported language.
//
// The Generator wraps one Genkit ai.Embedder per language, memoizes results
// in a bounded cache keyed by (language, text), and enforces the fixed
// output dimension: a backing-model result of the wrong length is a hard
// failure, never padded or truncated.
//
// The package also exposes pure similarity helpers (CosineSimilarity, TopK)
// usable independently of any index implementation.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"
)

// Dimension is the fixed embedding vector length. Every vector produced by
// this package has exactly this many components.
const Dimension = 512

// DefaultCacheSize bounds the memoization cache.
const DefaultCacheSize = 100

// Language identifies a supported embedding language.
type Language string

// Supported languages. Spanish is the primary language of the knowledge
// base; English is kept for mixed-language queries.
const (
	LanguageSpanish Language = "es"
	LanguageEnglish Language = "en"
)

// Sentinel errors for embedding failures. Callers match with errors.Is.
var (
	// ErrInvalidInput indicates empty or whitespace-only input text.
	ErrInvalidInput = errors.New("embedding: invalid input text")

	// ErrUnsupportedLanguage indicates the language has no backing model.
	ErrUnsupportedLanguage = errors.New("embedding: unsupported language")

	// ErrNotReady indicates the language's backing model has not finished
	// loading (WarmUp has not succeeded for it yet).
	ErrNotReady = errors.New("embedding: model not ready")

	// ErrEmbeddingFailed indicates a backend failure or a result whose
	// dimension differs from Dimension.
	ErrEmbeddingFailed = errors.New("embedding: generation failed")
)

// Stats reports generator state for diagnostics.
type Stats struct {
	ReadyLanguages []Language
	CachedVectors  int
	CacheCapacity  int
}

// Generator produces fixed-dimension embeddings with memoization.
// It is safe for concurrent use.
type Generator struct {
	backends     map[Language]ai.Embedder
	limiter      *rate.Limiter
	logger       *slog.Logger
	embedOptions any

	mu    sync.Mutex
	ready map[Language]bool
	cache *boundedCache
}

// Option configures a Generator.
type Option func(*Generator)

// WithCacheSize overrides the memoization cache capacity.
func WithCacheSize(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.cache = newBoundedCache(n)
		}
	}
}

// WithRateLimit paces calls to the backing models at rps requests per
// second with the given burst. Zero rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(g *Generator) {
		if rps > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithEmbedOptions passes backend-specific options on every embed request,
// e.g. output dimensionality for models whose native dimension differs
// from Dimension.
func WithEmbedOptions(opts any) Option {
	return func(g *Generator) { g.embedOptions = opts }
}

// New creates a Generator over one backing embedder per language.
// No language is ready until WarmUp succeeds for it.
func New(backends map[Language]ai.Embedder, logger *slog.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Generator{
		backends: backends,
		logger:   logger,
		ready:    make(map[Language]bool, len(backends)),
		cache:    newBoundedCache(DefaultCacheSize),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WarmUp verifies each backing model by embedding a probe text and marks the
// language ready on success. A language whose probe fails stays not ready;
// WarmUp returns an error only if no language at all became ready.
func (g *Generator) WarmUp(ctx context.Context) error {
	const probe = "ok"

	var readyCount int
	for lang, backend := range g.backends {
		vec, err := g.invoke(ctx, backend, probe)
		if err != nil {
			g.logger.Warn("embedding model not ready", "language", lang, "error", err)
			continue
		}
		if len(vec) != Dimension {
			g.logger.Warn("embedding model dimension mismatch",
				"language", lang, "got", len(vec), "want", Dimension)
			continue
		}
		g.mu.Lock()
		g.ready[lang] = true
		g.mu.Unlock()
		readyCount++
	}

	if readyCount == 0 {
		return fmt.Errorf("%w: no language became ready", ErrNotReady)
	}
	return nil
}

// Ready reports whether the language's backing model is usable.
func (g *Generator) Ready(lang Language) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready[lang]
}

// Embed returns the Dimension-length vector for text in the given language.
// Results are memoized; a cache hit never touches the backing model.
func (g *Generator) Embed(ctx context.Context, text string, lang Language) ([]float32, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrInvalidInput
	}

	backend, ok := g.backends[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}

	key := string(lang) + "\x00" + trimmed

	g.mu.Lock()
	if vec, hit := g.cache.get(key); hit {
		g.mu.Unlock()
		return vec, nil
	}
	ready := g.ready[lang]
	g.mu.Unlock()

	if !ready {
		return nil, fmt.Errorf("%w: language %q", ErrNotReady, lang)
	}

	vec, err := g.invoke(ctx, backend, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	if len(vec) != Dimension {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", ErrEmbeddingFailed, len(vec), Dimension)
	}

	g.mu.Lock()
	g.cache.put(key, vec)
	g.mu.Unlock()

	return vec, nil
}

// EmbedBatch embeds texts in order. It fails atomically: the first failure
// aborts the batch and is returned, with no partial results.
func (g *Generator) EmbedBatch(ctx context.Context, texts []string, lang Language) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for i, text := range texts {
		vec, err := g.Embed(ctx, text, lang)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

// ClearCache drops all memoized vectors.
func (g *Generator) ClearCache() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache.clear()
}

// Stats returns a snapshot of readiness and cache occupancy.
func (g *Generator) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	langs := make([]Language, 0, len(g.ready))
	for lang, ok := range g.ready {
		if ok {
			langs = append(langs, lang)
		}
	}
	return Stats{
		ReadyLanguages: langs,
		CachedVectors:  g.cache.len(),
		CacheCapacity:  g.cache.capacity,
	}
}

// invoke calls the backing model once, honoring the rate limiter.
func (g *Generator) invoke(ctx context.Context, backend ai.Embedder, text string) ([]float32, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := backend.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: g.embedOptions,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("backend returned no embedding")
	}
	return resp.Embeddings[0].Embedding, nil
}
