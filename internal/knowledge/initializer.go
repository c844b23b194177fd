// Package knowledge orchestrates knowledge-base construction: load raw
// documents from a source, chunk them, embed every chunk, insert into the
// vector index, then deduplicate. Runs once at startup.
//
// # Failure semantics
//
// A source yielding zero documents is fatal (ErrNoDocumentsLoaded). A chunk
// whose embedding fails is a soft failure: it is skipped, counted and
// logged, and initialization continues. Calling Initialize twice is an
// explicit error (ErrAlreadyInitialized), never a silent duplicate append.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kaapeh/copiloto/internal/chunker"
	"github.com/kaapeh/copiloto/internal/embedding"
	"github.com/kaapeh/copiloto/internal/vectorindex"
)

// Sentinel errors for initialization.
var (
	// ErrNoDocumentsLoaded indicates the document source yielded nothing.
	ErrNoDocumentsLoaded = errors.New("knowledge: no documents loaded")

	// ErrAlreadyInitialized indicates Initialize was already called.
	ErrAlreadyInitialized = errors.New("knowledge: already initialized")
)

// CategoryGeneral is the fallback for documents whose category is not in
// the known set.
const CategoryGeneral = "general"

// DefaultCategories is the known category set of the coffee knowledge base.
func DefaultCategories() []string {
	return []string{"roya", "nutricion", "cuidados", "tratamientos", "organizacion", "ciencia", "tecnologia", CategoryGeneral}
}

// Document is a raw document supplied by a DocumentSource.
type Document struct {
	Filename string
	Content  string
	Category string
}

// DocumentSource supplies raw documents. How they were obtained (bundle,
// filesystem, network) is not this package's concern.
type DocumentSource interface {
	Load(ctx context.Context) ([]Document, error)
}

// Embedder is the chunk-embedding capability the initializer needs.
// Satisfied by *embedding.Generator.
type Embedder interface {
	Embed(ctx context.Context, text string, lang embedding.Language) ([]float32, error)
	WarmUp(ctx context.Context) error
}

// Indexer is the storage capability the initializer needs.
// Satisfied by *vectorindex.Index.
type Indexer interface {
	Insert(chunk vectorindex.Chunk)
	RemoveDuplicates() int
}

// State is the initializer lifecycle state.
type State int

// Lifecycle states, in order. Failed is terminal and reachable only from a
// hard failure (zero documents or source error).
const (
	StateNotStarted State = iota
	StateLoading
	StateChunking
	StateEmbedding
	StateDeduplicating
	StateReady
	StateFailed
)

// String implements fmt.Stringer for progress reporting and logs.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateLoading:
		return "loading"
	case StateChunking:
		return "chunking"
	case StateEmbedding:
		return "embedding"
	case StateDeduplicating:
		return "deduplicating"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stats aggregates counters for one initialization run.
type Stats struct {
	DocumentsLoaded     int
	DocumentsWithErrors int
	ChunksProduced      int
	VectorsIndexed      int
	ChunksSkipped       int
	DuplicatesRemoved   int
	Duration            time.Duration
}

// Progress is a monotonically increasing fraction in [0,1] paired with the
// current state.
type Progress struct {
	State    State
	Fraction float64
	Message  string
}

// Initializer builds the knowledge base once per process lifetime.
type Initializer struct {
	source     DocumentSource
	chunks     *chunker.Chunker
	embedder   Embedder
	index      Indexer
	logger     *slog.Logger
	language   embedding.Language
	categories map[string]struct{}
	onProgress func(Progress)

	mu       sync.Mutex
	state    State
	fraction float64
	stats    Stats
	started  bool
}

// InitializerOption configures an Initializer.
type InitializerOption func(*Initializer)

// WithProgress registers a callback invoked on every progress change.
// The callback must be fast; it runs on the initializing goroutine.
func WithProgress(fn func(Progress)) InitializerOption {
	return func(i *Initializer) { i.onProgress = fn }
}

// WithCategories overrides the known category set used for validation.
func WithCategories(categories []string) InitializerOption {
	return func(i *Initializer) {
		i.categories = make(map[string]struct{}, len(categories))
		for _, c := range categories {
			i.categories[c] = struct{}{}
		}
	}
}

// WithLanguage sets the embedding language for indexed chunks.
// Default Spanish, the language of the corpus.
func WithLanguage(lang embedding.Language) InitializerOption {
	return func(i *Initializer) { i.language = lang }
}

// NewInitializer wires a document source, chunker, embedder and index.
func NewInitializer(source DocumentSource, ch *chunker.Chunker, embedder Embedder, index Indexer, logger *slog.Logger, opts ...InitializerOption) *Initializer {
	if logger == nil {
		logger = slog.Default()
	}
	init := &Initializer{
		source:   source,
		chunks:   ch,
		embedder: embedder,
		index:    index,
		logger:   logger,
		language: embedding.LanguageSpanish,
		state:    StateNotStarted,
	}
	WithCategories(DefaultCategories())(init)
	for _, opt := range opts {
		opt(init)
	}
	return init
}

// Initialize runs the full pipeline: verify services, load documents, chunk,
// embed, index, deduplicate. It may be called once; later calls return
// ErrAlreadyInitialized regardless of the first call's outcome.
func (i *Initializer) Initialize(ctx context.Context) error {
	i.mu.Lock()
	if i.started {
		i.mu.Unlock()
		return ErrAlreadyInitialized
	}
	i.started = true
	i.stats = Stats{}
	i.mu.Unlock()

	start := time.Now()
	defer func() {
		i.mu.Lock()
		i.stats.Duration = time.Since(start)
		i.mu.Unlock()
	}()

	i.logger.Info("initializing knowledge base")

	// Service verification: the embedder must have at least one usable
	// language before any document work begins.
	if err := i.embedder.WarmUp(ctx); err != nil {
		i.fail()
		return fmt.Errorf("verifying embedding service: %w", err)
	}
	i.advance(StateLoading, 0.10, "services verified")

	docs, err := i.source.Load(ctx)
	if err != nil {
		i.fail()
		return fmt.Errorf("loading documents: %w", err)
	}
	if len(docs) == 0 {
		i.fail()
		return ErrNoDocumentsLoaded
	}
	i.mu.Lock()
	i.stats.DocumentsLoaded = len(docs)
	i.mu.Unlock()
	i.advance(StateChunking, 0.20, fmt.Sprintf("documents loaded: %d", len(docs)))

	for n, doc := range docs {
		if err := ctx.Err(); err != nil {
			i.fail()
			return err
		}
		i.processDocument(ctx, doc)

		// Linear interpolation from 20% to 100% across documents.
		frac := 0.20 + 0.80*float64(n+1)/float64(len(docs))
		i.advance(StateEmbedding, frac, fmt.Sprintf("processed %d/%d", n+1, len(docs)))
	}

	i.advance(StateDeduplicating, 1.0, "deduplicating")
	removed := i.index.RemoveDuplicates()

	i.mu.Lock()
	i.stats.DuplicatesRemoved = removed
	stats := i.stats
	i.mu.Unlock()

	i.advance(StateReady, 1.0, "ready")
	i.logger.Info("knowledge base ready",
		"documents", stats.DocumentsLoaded,
		"chunks", stats.ChunksProduced,
		"vectors", stats.VectorsIndexed,
		"skipped", stats.ChunksSkipped,
		"duplicates_removed", removed,
	)
	return nil
}

// processDocument chunks and embeds one document. Embedding failures are
// soft: the chunk is skipped and counted.
func (i *Initializer) processDocument(ctx context.Context, doc Document) {
	title := documentTitle(doc.Filename)
	category := i.validateCategory(doc.Category)

	chunks := i.chunks.Chunk(doc.Content, title, category)
	i.mu.Lock()
	i.stats.ChunksProduced += len(chunks)
	i.mu.Unlock()

	indexed := 0
	for _, chunk := range chunks {
		vec, err := i.embedder.Embed(ctx, chunk.Content, i.language)
		if err != nil {
			i.mu.Lock()
			i.stats.ChunksSkipped++
			i.mu.Unlock()
			i.logger.Warn("skipping chunk: embedding failed",
				"document", doc.Filename, "title", chunk.Title, "error", err)
			continue
		}

		i.index.Insert(vectorindex.Chunk{
			ID:               uuid.New(),
			Title:            chunk.Title,
			Content:          chunk.Content,
			Category:         chunk.Category,
			Vector:           vec,
			SourceDocumentID: doc.Filename,
			CreatedAt:        time.Now(),
		})
		indexed++
	}

	i.mu.Lock()
	i.stats.VectorsIndexed += indexed
	if indexed == 0 && len(chunks) > 0 {
		i.stats.DocumentsWithErrors++
	}
	i.mu.Unlock()

	i.logger.Debug("document processed",
		"document", doc.Filename, "chunks", len(chunks), "indexed", indexed)
}

// validateCategory coerces categories outside the known set to "general".
func (i *Initializer) validateCategory(category string) string {
	if _, ok := i.categories[category]; ok {
		return category
	}
	i.logger.Warn("unknown document category, using general", "category", category)
	return CategoryGeneral
}

// Progress returns the current state and fraction.
func (i *Initializer) Progress() Progress {
	i.mu.Lock()
	defer i.mu.Unlock()
	return Progress{State: i.state, Fraction: i.fraction}
}

// Stats returns the counters of the last (only) run.
func (i *Initializer) Stats() Stats {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stats
}

// advance moves the state machine forward; progress never decreases.
func (i *Initializer) advance(state State, fraction float64, message string) {
	i.mu.Lock()
	i.state = state
	if fraction > i.fraction {
		i.fraction = fraction
	}
	p := Progress{State: i.state, Fraction: i.fraction, Message: message}
	cb := i.onProgress
	i.mu.Unlock()

	if cb != nil {
		cb(p)
	}
}

func (i *Initializer) fail() {
	i.mu.Lock()
	i.state = StateFailed
	i.mu.Unlock()
}

// documentTitle derives a human-readable title from a filename by dropping
// the extension.
func documentTitle(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
