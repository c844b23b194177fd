// Package testutil provides deterministic test doubles for the embedding
// and generation boundaries, so similarity math and pipeline behavior can
// be tested without any real model.
package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"

	"github.com/kaapeh/copiloto/internal/embedding"
)

// Vector returns a deterministic, normalized embedding.Dimension-length
// vector seeded by the text. Equal texts get bit-identical vectors; the
// seeded generator keeps similarity math realistic (unit vectors, smooth
// score distribution).
func Vector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	state := h.Sum64()

	vec := make([]float32, embedding.Dimension)
	var sumSquares float64
	for i := range vec {
		// Linear congruential step; map to [-1, 1).
		state = state*6364136223846793005 + 1442695040888963407
		v := float64(int64(state>>11))/float64(1<<52) - 1
		vec[i] = float32(v)
		sumSquares += v * v
	}

	magnitude := float32(math.Sqrt(sumSquares))
	for i := range vec {
		vec[i] /= magnitude
	}
	return vec
}

// Embedder is a deterministic fake satisfying the consumer interfaces of
// vectorindex and knowledge (Embed/Ready/WarmUp). Safe for concurrent use.
type Embedder struct {
	// Err, when set, is returned by every Embed call.
	Err error

	// NotReady, when set, makes Ready report false and WarmUp fail.
	NotReady bool

	// FailTexts lists exact inputs whose embedding fails with Err
	// (or embedding.ErrEmbeddingFailed when Err is nil).
	FailTexts []string

	mu        sync.Mutex
	callCount int
}

// Embed returns the deterministic vector for text.
func (e *Embedder) Embed(_ context.Context, text string, _ embedding.Language) ([]float32, error) {
	e.mu.Lock()
	e.callCount++
	e.mu.Unlock()

	if e.Err != nil {
		return nil, e.Err
	}
	for _, fail := range e.FailTexts {
		if text == fail {
			return nil, embedding.ErrEmbeddingFailed
		}
	}
	return Vector(text), nil
}

// Ready reports readiness for every language unless NotReady is set.
func (e *Embedder) Ready(embedding.Language) bool {
	return !e.NotReady
}

// WarmUp succeeds unless NotReady is set.
func (e *Embedder) WarmUp(context.Context) error {
	if e.NotReady {
		return embedding.ErrNotReady
	}
	return nil
}

// CallCount returns how many times Embed was invoked.
func (e *Embedder) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.callCount
}

// Backend is a deterministic fake genkit ai.Embedder for tests of the
// embedding.Generator itself.
type Backend struct {
	// Err, when set, is returned by every Embed call.
	Err error

	// Dimension overrides the produced vector length. Zero means
	// embedding.Dimension.
	Dimension int

	mu        sync.Mutex
	callCount int
}

var _ ai.Embedder = (*Backend)(nil)

// Name implements ai.Embedder.
func (b *Backend) Name() string { return "testutil-backend" }

// Register implements ai.Embedder. No-op.
func (b *Backend) Register(api.Registry) {}

// Embed returns a deterministic vector for the request's first document.
func (b *Backend) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	b.mu.Lock()
	b.callCount++
	b.mu.Unlock()

	if b.Err != nil {
		return nil, b.Err
	}

	text := ""
	if len(req.Input) > 0 && len(req.Input[0].Content) > 0 {
		text = req.Input[0].Content[0].Text
	}

	vec := Vector(text)
	if b.Dimension > 0 && b.Dimension != embedding.Dimension {
		resized := make([]float32, b.Dimension)
		copy(resized, vec)
		vec = resized
	}

	return &ai.EmbedResponse{
		Embeddings: []*ai.Embedding{{Embedding: vec}},
	}, nil
}

// CallCount returns how many times Embed was invoked.
func (b *Backend) CallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.callCount
}
