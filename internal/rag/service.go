// Package rag implements the query orchestrator of the Copiloto knowledge
// base: classify an incoming question, then either answer directly (casual
// conversation) or run retrieve-augment-generate over the vector index and
// the external generation service.
//
// The Answer contract is total: every query, however degenerate, gets a
// well-formed Answer value. Failures inside the pipeline degrade to fixed
// fallback messages and are never surfaced as raw errors, with one
// exception: context cancellation propagates so callers can abandon an
// in-flight query.
package rag

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kaapeh/copiloto/internal/genai"
	"github.com/kaapeh/copiloto/internal/vectorindex"
)

// Defaults for the retrieve-augment-generate path.
const (
	DefaultTopK          = 3
	DefaultMinSimilarity = 0.6
	DefaultMaxChunkChars = 900
)

// Fixed user-facing messages. The orchestrator never exposes raw errors.
const (
	msgInvalidQuery = "Por favor, formula una pregunta clara sobre café o sobre Káapeh."

	msgNoInformation = "No encontré información específica sobre eso en mi base de conocimiento. ¿Podrías reformular tu pregunta?"

	msgFallback = "Lo siento, tuve un problema procesando tu pregunta. Puedo ayudarte con temas de enfermedades del café como la roya, nutrición de la planta, cuidados del cafetal y tratamientos agroecológicos. ¿Intentamos de nuevo?"
)

// Metadata carries retrieval and generation observations for one answer.
// Purely observational; timings are non-negative.
type Metadata struct {
	RetrievedDocuments int
	AverageScore       float64
	RetrievalTime      time.Duration
	GenerationTime     time.Duration
}

// Answer is the orchestrator's result. Sources is intentionally empty by
// product policy: retrieval tracks named sources internally, but citations
// are not exposed in the chat bubble. Metadata is nil when no retrieval
// happened.
type Answer struct {
	Content  string
	Sources  []string
	Metadata *Metadata
}

// Searcher is the retrieval capability the orchestrator needs.
// Satisfied by *vectorindex.Index.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...vectorindex.SearchOption) ([]vectorindex.SearchResult, error)
}

// Config tunes the pipeline. Zero values fall back to defaults.
type Config struct {
	TopK          int
	MinSimilarity float64
	MaxChunkChars int
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.MinSimilarity <= 0 {
		c.MinSimilarity = DefaultMinSimilarity
	}
	if c.MaxChunkChars <= 0 {
		c.MaxChunkChars = DefaultMaxChunkChars
	}
	return c
}

// Service orchestrates classification, retrieval and generation.
type Service struct {
	searcher Searcher
	client   genai.Client
	cfg      Config
	logger   *slog.Logger
}

// NewService wires the orchestrator.
func NewService(searcher Searcher, client genai.Client, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		searcher: searcher,
		client:   client,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// AnswerOption configures one Answer call.
type AnswerOption func(*answerConfig)

type answerConfig struct {
	category string
}

// WithCategoryFilter restricts retrieval to one category.
func WithCategoryFilter(category string) AnswerOption {
	return func(c *answerConfig) { c.category = category }
}

// Answer classifies query and routes it. The returned error is non-nil only
// when ctx was canceled; every other failure yields a fallback Answer.
func (s *Service) Answer(ctx context.Context, query string, opts ...AnswerOption) (Answer, error) {
	var cfg answerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	kind := Classify(query)
	s.logger.Debug("query classified", "kind", kind, "query_len", len(query))

	switch kind {
	case KindInvalid:
		// No retrieval, no generation: degenerate input gets a fixed
		// clarification message.
		return Answer{Content: msgInvalidQuery, Sources: []string{}}, nil

	case KindCasual:
		return s.answerCasual(ctx, query)

	default:
		// Technical, about-system and everything unclassified all run the
		// full pipeline; queries are never silently dropped.
		return s.answerTechnical(ctx, query, cfg.category)
	}
}

// answerCasual generates a greeting reply with no retrieval and no context
// injection.
func (s *Service) answerCasual(ctx context.Context, query string) (Answer, error) {
	text, err := s.client.Greet(ctx, query)
	if err != nil {
		if canceled(ctx, err) {
			return Answer{}, err
		}
		s.logger.Warn("greeting generation failed", "error", err)
		return Answer{Content: msgFallback, Sources: []string{}}, nil
	}
	return Answer{Content: text, Sources: []string{}}, nil
}

// answerTechnical runs retrieve, augment, generate.
func (s *Service) answerTechnical(ctx context.Context, query, category string) (Answer, error) {
	searchOpts := []vectorindex.SearchOption{
		vectorindex.WithTopK(s.cfg.TopK),
		vectorindex.WithMinSimilarity(s.cfg.MinSimilarity),
	}
	if category != "" {
		searchOpts = append(searchOpts, vectorindex.WithCategory(category))
	}

	retrievalStart := time.Now()
	results, err := s.searcher.Search(ctx, query, searchOpts...)
	retrievalTime := time.Since(retrievalStart)
	if err != nil {
		if canceled(ctx, err) {
			return Answer{}, err
		}
		s.logger.Warn("retrieval failed", "error", err)
		return Answer{Content: msgFallback, Sources: []string{}}, nil
	}

	// Nothing sufficiently similar: answer without calling generation at
	// all, so the model never fabricates from an empty grounding.
	if len(results) == 0 {
		s.logger.Debug("no relevant documents", "category", category)
		return Answer{Content: msgNoInformation, Sources: []string{}}, nil
	}

	prompt := buildAugmentedPrompt(query, buildContext(results, s.cfg.MaxChunkChars))

	generationStart := time.Now()
	resp, err := s.client.Diagnose(ctx, prompt)
	generationTime := time.Since(generationStart)
	if err != nil {
		if canceled(ctx, err) {
			return Answer{}, err
		}
		s.logger.Warn("generation failed", "error", err)
		return Answer{Content: msgFallback, Sources: []string{}}, nil
	}

	var totalScore float64
	for _, r := range results {
		totalScore += r.Similarity
	}

	s.logger.Info("answer generated",
		"documents", len(results),
		"retrieval_ms", retrievalTime.Milliseconds(),
		"generation_ms", generationTime.Milliseconds(),
		"confidence", resp.Confidence,
	)

	// Sources stay empty by policy even though retrieval used named chunks.
	return Answer{
		Content: renderAnswer(resp),
		Sources: []string{},
		Metadata: &Metadata{
			RetrievedDocuments: len(results),
			AverageScore:       totalScore / float64(len(results)),
			RetrievalTime:      retrievalTime,
			GenerationTime:     generationTime,
		},
	}, nil
}

func canceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
