// Package vectorindex implements the in-memory vector store of the
// knowledge base: (id, title, content, category, vector) records with
// filtered top-K cosine-similarity search.
//
// The corpus is small (tens of documents, hundreds of chunks), so search is
// a deliberate linear scan; no ANN structure is warranted at this scale.
//
// # Thread Safety
//
// Index is safe for concurrent use. Searches take a read lock and may run
// in parallel, since chunks are immutable after insertion. Insert and
// RemoveDuplicates take the write lock and exclude everything else.
package vectorindex

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kaapeh/copiloto/internal/embedding"
)

// Chunk is the atomic indexed unit. Content is immutable after creation;
// re-ingestion appends new chunks and RemoveDuplicates prunes repeats.
type Chunk struct {
	ID               uuid.UUID
	Title            string
	Content          string
	Category         string
	Vector           []float32
	SourceDocumentID string
	CreatedAt        time.Time
}

// SearchResult pairs a chunk with its similarity to the query, on the
// canonical [0,1] scale of embedding.CosineSimilarity.
type SearchResult struct {
	Chunk      Chunk
	Similarity float64
}

// Stats summarizes index contents.
type Stats struct {
	Count      int
	Categories []string
}

// Embedder is the query-embedding capability the index needs.
// Satisfied by *embedding.Generator.
type Embedder interface {
	Embed(ctx context.Context, text string, lang embedding.Language) ([]float32, error)
	Ready(lang embedding.Language) bool
}

// Defaults for Search.
const (
	DefaultTopK          = 3
	DefaultMinSimilarity = 0.6
)

// SearchOption configures a Search call.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK          int
	category      string
	minSimilarity float64
	language      embedding.Language
}

// WithTopK caps the number of results. Default 3.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithCategory restricts candidates to one category.
func WithCategory(category string) SearchOption {
	return func(c *searchConfig) { c.category = category }
}

// WithMinSimilarity drops results scoring below the threshold, on the
// canonical [0,1] scale. Default 0.6.
func WithMinSimilarity(min float64) SearchOption {
	return func(c *searchConfig) { c.minSimilarity = min }
}

// WithLanguage sets the query embedding language. Default Spanish.
func WithLanguage(lang embedding.Language) SearchOption {
	return func(c *searchConfig) { c.language = lang }
}

// Index is the in-memory vector store.
type Index struct {
	embedder Embedder
	logger   *slog.Logger

	mu     sync.RWMutex
	chunks []Chunk
}

// New creates an empty Index that embeds queries through embedder.
func New(embedder Embedder, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{embedder: embedder, logger: logger}
}

// Insert appends one chunk. The caller (the knowledge-base initializer)
// guarantees the vector is embedding.Dimension long; the check is not
// repeated here.
func (ix *Index) Insert(chunk Chunk) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.chunks = append(ix.chunks, chunk)
}

// InsertBatch appends chunks in order.
func (ix *Index) InsertBatch(chunks []Chunk) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.chunks = append(ix.chunks, chunks...)
	ix.logger.Debug("indexed chunk batch", "added", len(chunks), "total", len(ix.chunks))
}

// Search embeds query and returns up to topK chunks ranked by descending
// similarity, all scoring at least minSimilarity and matching the category
// filter when one is set.
//
// A query must always get some answer path: if the embedder is not ready or
// embedding fails, Search logs and returns an empty result set instead of
// propagating the error. Context cancellation is the one exception and is
// returned to the caller.
func (ix *Index) Search(ctx context.Context, query string, opts ...SearchOption) ([]SearchResult, error) {
	cfg := &searchConfig{
		topK:          DefaultTopK,
		minSimilarity: DefaultMinSimilarity,
		language:      embedding.LanguageSpanish,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if ix.Count() == 0 {
		return nil, nil
	}

	if !ix.embedder.Ready(cfg.language) {
		ix.logger.Warn("search skipped: embedder not ready", "language", cfg.language)
		return nil, nil
	}

	queryVec, err := ix.embedder.Embed(ctx, query, cfg.language)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		ix.logger.Warn("search skipped: query embedding failed", "error", err)
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	results := make([]SearchResult, 0, cfg.topK)
	for _, chunk := range ix.chunks {
		if cfg.category != "" && chunk.Category != cfg.category {
			continue
		}
		sim := embedding.CosineSimilarity(queryVec, chunk.Vector)
		if sim < cfg.minSimilarity {
			continue
		}
		results = append(results, SearchResult{Chunk: chunk, Similarity: sim})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > cfg.topK {
		results = results[:cfg.topK]
	}

	ix.logger.Debug("search completed", "query_len", len(query), "results", len(results))
	return results, nil
}

// RemoveDuplicates keeps only the first chunk seen per (title, first 100
// characters of content) signature, preserving insertion order, and returns
// the number removed. Maintenance operation, not part of the query path.
func (ix *Index) RemoveDuplicates() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	seen := make(map[string]struct{}, len(ix.chunks))
	unique := ix.chunks[:0]
	for _, chunk := range ix.chunks {
		sig := signature(chunk)
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}
		unique = append(unique, chunk)
	}

	removed := len(ix.chunks) - len(unique)
	ix.chunks = unique
	if removed > 0 {
		ix.logger.Info("removed duplicate chunks", "removed", removed, "remaining", len(unique))
	}
	return removed
}

// Count returns the number of indexed chunks.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// Stats returns the chunk count and the distinct categories present.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	set := make(map[string]struct{})
	for _, chunk := range ix.chunks {
		set[chunk.Category] = struct{}{}
	}
	categories := make([]string, 0, len(set))
	for c := range set {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	return Stats{Count: len(ix.chunks), Categories: categories}
}

func signature(c Chunk) string {
	content := c.Content
	if runes := []rune(content); len(runes) > 100 {
		content = string(runes[:100])
	}
	return c.Title + "\x00" + content
}
