package genai

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/genkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenkitClient(t *testing.T) {
	t.Parallel()

	g := genkit.Init(context.Background())
	client := NewGenkitClient(g, "googleai/gemini-2.0-flash")
	require.NotNil(t, client)
}

func TestSystemInstructions(t *testing.T) {
	t.Parallel()

	// The behavioral contract must keep its load-bearing rules.
	assert.Contains(t, systemInstructions, "Copiloto de Káapeh")
	assert.Contains(t, systemInstructions, "NUNCA inventes información")
	assert.Contains(t, systemInstructions, "NO menciones las fuentes")
}
