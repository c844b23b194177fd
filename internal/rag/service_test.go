package rag_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaapeh/copiloto/internal/genai"
	"github.com/kaapeh/copiloto/internal/rag"
	"github.com/kaapeh/copiloto/internal/testutil"
	"github.com/kaapeh/copiloto/internal/vectorindex"
)

// stubSearcher returns fixed results and records search invocations.
type stubSearcher struct {
	results []vectorindex.SearchResult
	err     error

	mu    sync.Mutex
	calls int
}

func (s *stubSearcher) Search(_ context.Context, _ string, _ ...vectorindex.SearchOption) ([]vectorindex.SearchResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.results, s.err
}

func (s *stubSearcher) searchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func royaResults() []vectorindex.SearchResult {
	return []vectorindex.SearchResult{
		{Chunk: vectorindex.Chunk{Title: "Roya", Content: "La roya se trata con cobre.", Category: "roya"}, Similarity: 0.9},
		{Chunk: vectorindex.Chunk{Title: "Roya - Parte 2", Content: "Prevención con sombra regulada.", Category: "roya"}, Similarity: 0.7},
	}
}

func TestAnswer_InvalidQuery(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{}
	client := &testutil.GenClient{}
	svc := rag.NewService(searcher, client, rag.Config{}, nil)

	answer, err := svc.Answer(context.Background(), "jajajajaja")
	require.NoError(t, err)
	assert.Contains(t, answer.Content, "formula una pregunta")
	assert.Empty(t, answer.Sources)
	assert.Nil(t, answer.Metadata)

	// Degenerate input reaches neither retrieval nor generation.
	assert.Equal(t, 0, searcher.searchCalls())
	assert.Equal(t, 0, client.DiagnoseCalls())
	assert.Equal(t, 0, client.GreetCalls())
}

func TestAnswer_CasualGreeting(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{}
	client := &testutil.GenClient{GreetResp: "¡Hola! ¿En qué te ayudo con tu cafetal?"}
	svc := rag.NewService(searcher, client, rag.Config{}, nil)

	answer, err := svc.Answer(context.Background(), "¡Hola!")
	require.NoError(t, err)
	assert.Equal(t, "¡Hola! ¿En qué te ayudo con tu cafetal?", answer.Content)
	assert.Empty(t, answer.Sources)
	assert.Nil(t, answer.Metadata)

	// Greetings skip retrieval entirely.
	assert.Equal(t, 0, searcher.searchCalls())
	assert.Equal(t, 1, client.GreetCalls())
	assert.Equal(t, 0, client.DiagnoseCalls())
}

func TestAnswer_CasualGreeting_GenerationError(t *testing.T) {
	t.Parallel()

	client := &testutil.GenClient{GreetErr: errors.New("model unavailable")}
	svc := rag.NewService(&stubSearcher{}, client, rag.Config{}, nil)

	answer, err := svc.Answer(context.Background(), "buenos días")
	require.NoError(t, err)
	assert.Contains(t, answer.Content, "tuve un problema")
}

func TestAnswer_Technical(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{results: royaResults()}
	client := &testutil.GenClient{
		DiagnoseResp: genai.DiagnosisResponse{
			Answer:    "La roya se controla con aplicaciones de cobre.",
			Treatment: []string{"Aplicar caldo bordelés"},
		},
	}
	svc := rag.NewService(searcher, client, rag.Config{}, nil)

	answer, err := svc.Answer(context.Background(), "¿cómo trato la roya?")
	require.NoError(t, err)
	assert.Contains(t, answer.Content, "La roya se controla")
	assert.Contains(t, answer.Content, "**Tratamiento:**")
	assert.Contains(t, answer.Content, "1. Aplicar caldo bordelés")

	// Citations are never exposed.
	assert.NotNil(t, answer.Sources)
	assert.Empty(t, answer.Sources)

	require.NotNil(t, answer.Metadata)
	assert.Equal(t, 2, answer.Metadata.RetrievedDocuments)
	assert.InDelta(t, 0.8, answer.Metadata.AverageScore, 1e-9)
	assert.GreaterOrEqual(t, answer.Metadata.RetrievalTime.Nanoseconds(), int64(0))

	// The generation prompt embeds the retrieved chunks and the question.
	prompt := client.LastPrompt()
	assert.Contains(t, prompt, "[DOCUMENTO 1: Roya]")
	assert.Contains(t, prompt, "La roya se trata con cobre.")
	assert.Contains(t, prompt, "¿cómo trato la roya?")
}

func TestAnswer_NoRelevantDocuments(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{} // nothing above threshold
	client := &testutil.GenClient{}
	svc := rag.NewService(searcher, client, rag.Config{}, nil)

	answer, err := svc.Answer(context.Background(), "enfermedad desconocida del café")
	require.NoError(t, err)
	assert.Contains(t, answer.Content, "No encontré información")
	assert.Nil(t, answer.Metadata)

	// Empty retrieval must not trigger generation.
	assert.Equal(t, 1, searcher.searchCalls())
	assert.Equal(t, 0, client.DiagnoseCalls())
}

func TestAnswer_RetrievalError(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{err: errors.New("index corrupted")}
	client := &testutil.GenClient{}
	svc := rag.NewService(searcher, client, rag.Config{}, nil)

	answer, err := svc.Answer(context.Background(), "¿cómo trato la roya?")
	require.NoError(t, err)
	assert.Contains(t, answer.Content, "tuve un problema")
	assert.Equal(t, 0, client.DiagnoseCalls())
}

func TestAnswer_GenerationError(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{results: royaResults()}
	client := &testutil.GenClient{DiagnoseErr: errors.New("quota exceeded")}
	svc := rag.NewService(searcher, client, rag.Config{}, nil)

	answer, err := svc.Answer(context.Background(), "¿cómo trato la roya?")
	require.NoError(t, err)
	assert.Contains(t, answer.Content, "tuve un problema")
	assert.Empty(t, answer.Sources)
}

func TestAnswer_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	searcher := &stubSearcher{err: context.Canceled}
	svc := rag.NewService(searcher, &testutil.GenClient{}, rag.Config{}, nil)

	_, err := svc.Answer(ctx, "¿cómo trato la roya?")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnswer_GeneralQueryRunsPipeline(t *testing.T) {
	t.Parallel()

	// Unclassified queries still get the full pipeline, never a silent drop.
	searcher := &stubSearcher{}
	client := &testutil.GenClient{}
	svc := rag.NewService(searcher, client, rag.Config{}, nil)

	answer, err := svc.Answer(context.Background(), "dime un poema bonito")
	require.NoError(t, err)
	assert.NotEmpty(t, answer.Content)
	assert.Equal(t, 1, searcher.searchCalls())
}

func TestAnswer_CategoryFilter(t *testing.T) {
	t.Parallel()

	// The option plumbs through to the searcher without breaking the flow.
	searcher := &stubSearcher{results: royaResults()}
	client := &testutil.GenClient{DiagnoseResp: genai.DiagnosisResponse{Answer: "Respuesta."}}
	svc := rag.NewService(searcher, client, rag.Config{}, nil)

	answer, err := svc.Answer(context.Background(), "¿cómo trato la roya?",
		rag.WithCategoryFilter("roya"))
	require.NoError(t, err)
	assert.Equal(t, "Respuesta.", answer.Content)
	assert.Equal(t, 1, searcher.searchCalls())
}
