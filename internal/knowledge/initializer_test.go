package knowledge_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaapeh/copiloto/internal/chunker"
	"github.com/kaapeh/copiloto/internal/knowledge"
	"github.com/kaapeh/copiloto/internal/testutil"
	"github.com/kaapeh/copiloto/internal/vectorindex"
)

// stubSource returns a fixed document set or an error.
type stubSource struct {
	docs []knowledge.Document
	err  error
}

func (s *stubSource) Load(context.Context) ([]knowledge.Document, error) {
	return s.docs, s.err
}

// recordingIndex captures inserted chunks.
type recordingIndex struct {
	mu      sync.Mutex
	chunks  []vectorindex.Chunk
	removed int
}

func (r *recordingIndex) Insert(chunk vectorindex.Chunk) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, chunk)
}

func (r *recordingIndex) RemoveDuplicates() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{})
	unique := r.chunks[:0]
	for _, c := range r.chunks {
		key := c.Title + "\x00" + c.Content
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, c)
	}
	r.removed = len(r.chunks) - len(unique)
	r.chunks = unique
	return r.removed
}

func (r *recordingIndex) all() []vectorindex.Chunk {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]vectorindex.Chunk(nil), r.chunks...)
}

func testDocs() []knowledge.Document {
	return []knowledge.Document{
		{Filename: "roya_sintomas.txt", Content: "La roya produce manchas amarillas en las hojas.", Category: "roya"},
		{Filename: "fertilizacion.txt", Content: "El nitrógeno favorece el crecimiento vegetativo.", Category: "nutricion"},
	}
}

func newTestInitializer(source knowledge.DocumentSource, emb knowledge.Embedder, index knowledge.Indexer, opts ...knowledge.InitializerOption) *knowledge.Initializer {
	return knowledge.NewInitializer(source, chunker.New(chunker.DefaultConfig()), emb, index, nil, opts...)
}

func TestInitialize_Success(t *testing.T) {
	t.Parallel()

	index := &recordingIndex{}
	init := newTestInitializer(&stubSource{docs: testDocs()}, &testutil.Embedder{}, index)

	require.NoError(t, init.Initialize(context.Background()))

	assert.Equal(t, knowledge.StateReady, init.Progress().State)
	assert.InDelta(t, 1.0, init.Progress().Fraction, 1e-9)

	stats := init.Stats()
	assert.Equal(t, 2, stats.DocumentsLoaded)
	assert.Equal(t, 2, stats.ChunksProduced)
	assert.Equal(t, 2, stats.VectorsIndexed)
	assert.Equal(t, 0, stats.ChunksSkipped)
	assert.Positive(t, stats.Duration)

	chunks := index.all()
	require.Len(t, chunks, 2)
	assert.Equal(t, "roya_sintomas", chunks[0].Title)
	assert.Equal(t, "roya", chunks[0].Category)
	assert.Equal(t, "roya_sintomas.txt", chunks[0].SourceDocumentID)
	assert.NotEqual(t, chunks[0].ID, chunks[1].ID)
}

func TestInitialize_Twice(t *testing.T) {
	t.Parallel()

	init := newTestInitializer(&stubSource{docs: testDocs()}, &testutil.Embedder{}, &recordingIndex{})

	require.NoError(t, init.Initialize(context.Background()))
	err := init.Initialize(context.Background())
	assert.ErrorIs(t, err, knowledge.ErrAlreadyInitialized)
}

func TestInitialize_TwiceAfterFailure(t *testing.T) {
	t.Parallel()

	// A failed first run still blocks the second.
	init := newTestInitializer(&stubSource{docs: nil}, &testutil.Embedder{}, &recordingIndex{})

	require.ErrorIs(t, init.Initialize(context.Background()), knowledge.ErrNoDocumentsLoaded)
	assert.ErrorIs(t, init.Initialize(context.Background()), knowledge.ErrAlreadyInitialized)
}

func TestInitialize_NoDocuments(t *testing.T) {
	t.Parallel()

	init := newTestInitializer(&stubSource{docs: nil}, &testutil.Embedder{}, &recordingIndex{})

	err := init.Initialize(context.Background())
	assert.ErrorIs(t, err, knowledge.ErrNoDocumentsLoaded)
	assert.Equal(t, knowledge.StateFailed, init.Progress().State)
}

func TestInitialize_SourceError(t *testing.T) {
	t.Parallel()

	sourceErr := errors.New("disk gone")
	init := newTestInitializer(&stubSource{err: sourceErr}, &testutil.Embedder{}, &recordingIndex{})

	err := init.Initialize(context.Background())
	assert.ErrorIs(t, err, sourceErr)
	assert.Equal(t, knowledge.StateFailed, init.Progress().State)
}

func TestInitialize_EmbedderNotReady(t *testing.T) {
	t.Parallel()

	init := newTestInitializer(&stubSource{docs: testDocs()}, &testutil.Embedder{NotReady: true}, &recordingIndex{})

	err := init.Initialize(context.Background())
	require.Error(t, err)
	assert.Equal(t, knowledge.StateFailed, init.Progress().State)
}

func TestInitialize_SoftChunkFailure(t *testing.T) {
	t.Parallel()

	docs := testDocs()
	emb := &testutil.Embedder{FailTexts: []string{docs[0].Content}}
	index := &recordingIndex{}
	init := newTestInitializer(&stubSource{docs: docs}, emb, index)

	// A failed chunk embedding is skipped, not fatal.
	require.NoError(t, init.Initialize(context.Background()))

	stats := init.Stats()
	assert.Equal(t, 1, stats.ChunksSkipped)
	assert.Equal(t, 1, stats.VectorsIndexed)
	assert.Equal(t, 1, stats.DocumentsWithErrors)
	assert.Equal(t, knowledge.StateReady, init.Progress().State)

	chunks := index.all()
	require.Len(t, chunks, 1)
	assert.Equal(t, "fertilizacion", chunks[0].Title)
}

func TestInitialize_UnknownCategory(t *testing.T) {
	t.Parallel()

	docs := []knowledge.Document{
		{Filename: "doc.txt", Content: "contenido del documento", Category: "astronomía"},
	}
	index := &recordingIndex{}
	init := newTestInitializer(&stubSource{docs: docs}, &testutil.Embedder{}, index)

	require.NoError(t, init.Initialize(context.Background()))

	chunks := index.all()
	require.Len(t, chunks, 1)
	assert.Equal(t, knowledge.CategoryGeneral, chunks[0].Category)
}

func TestInitialize_CustomCategories(t *testing.T) {
	t.Parallel()

	docs := []knowledge.Document{
		{Filename: "doc.txt", Content: "contenido del documento", Category: "custom"},
	}
	index := &recordingIndex{}
	init := newTestInitializer(&stubSource{docs: docs}, &testutil.Embedder{}, index,
		knowledge.WithCategories([]string{"custom"}))

	require.NoError(t, init.Initialize(context.Background()))

	chunks := index.all()
	require.Len(t, chunks, 1)
	assert.Equal(t, "custom", chunks[0].Category)
}

func TestInitialize_Deduplication(t *testing.T) {
	t.Parallel()

	// The same file listed twice produces identical chunks; dedup keeps one.
	doc := knowledge.Document{Filename: "roya.txt", Content: "La roya es un hongo.", Category: "roya"}
	index := &recordingIndex{}
	init := newTestInitializer(&stubSource{docs: []knowledge.Document{doc, doc}}, &testutil.Embedder{}, index)

	require.NoError(t, init.Initialize(context.Background()))

	assert.Equal(t, 1, init.Stats().DuplicatesRemoved)
	assert.Len(t, index.all(), 1)
}

func TestInitialize_ProgressMonotonic(t *testing.T) {
	t.Parallel()

	var (
		mu        sync.Mutex
		seen      []knowledge.Progress
		lastFrac  float64
		monotonic = true
	)

	init := newTestInitializer(&stubSource{docs: testDocs()}, &testutil.Embedder{}, &recordingIndex{},
		knowledge.WithProgress(func(p knowledge.Progress) {
			mu.Lock()
			defer mu.Unlock()
			if p.Fraction < lastFrac {
				monotonic = false
			}
			lastFrac = p.Fraction
			seen = append(seen, p)
		}))

	require.NoError(t, init.Initialize(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, monotonic, "progress fraction must never decrease")
	require.NotEmpty(t, seen)
	assert.Equal(t, knowledge.StateReady, seen[len(seen)-1].State)
	assert.InDelta(t, 1.0, seen[len(seen)-1].Fraction, 1e-9)

	states := make([]knowledge.State, 0, len(seen))
	for _, p := range seen {
		states = append(states, p.State)
	}
	assert.Contains(t, states, knowledge.StateLoading)
	assert.Contains(t, states, knowledge.StateChunking)
	assert.Contains(t, states, knowledge.StateEmbedding)
	assert.Contains(t, states, knowledge.StateDeduplicating)
}

func TestInitialize_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	init := newTestInitializer(&stubSource{docs: testDocs()}, &testutil.Embedder{}, &recordingIndex{})

	err := init.Initialize(ctx)
	require.Error(t, err)
	assert.Equal(t, knowledge.StateFailed, init.Progress().State)
}

func TestInitialize_MultiChunkDocument(t *testing.T) {
	t.Parallel()

	// A long document split into several chunks keeps the derived title
	// on the first chunk and numbers the rest.
	var sb strings.Builder
	for range 30 {
		sb.WriteString("El manejo integrado de la roya combina variedades resistentes con aplicaciones preventivas de fungicidas cúpricos durante la época de lluvias intensas.\n\n")
	}

	index := &recordingIndex{}
	docs := []knowledge.Document{{Filename: "manejo_roya.md", Content: sb.String(), Category: "roya"}}
	init := newTestInitializer(&stubSource{docs: docs}, &testutil.Embedder{}, index)

	require.NoError(t, init.Initialize(context.Background()))

	chunks := index.all()
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, "manejo_roya", chunks[0].Title)
	assert.Equal(t, "manejo_roya - Parte 2", chunks[1].Title)
}

func TestStateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state knowledge.State
		want  string
	}{
		{knowledge.StateNotStarted, "not started"},
		{knowledge.StateLoading, "loading"},
		{knowledge.StateChunking, "chunking"},
		{knowledge.StateEmbedding, "embedding"},
		{knowledge.StateDeduplicating, "deduplicating"},
		{knowledge.StateReady, "ready"},
		{knowledge.StateFailed, "failed"},
		{knowledge.State(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}
