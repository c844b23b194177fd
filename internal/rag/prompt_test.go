package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kaapeh/copiloto/internal/genai"
	"github.com/kaapeh/copiloto/internal/vectorindex"
)

func TestBuildContext(t *testing.T) {
	t.Parallel()

	results := []vectorindex.SearchResult{
		{Chunk: vectorindex.Chunk{Title: "Roya", Content: "contenido uno"}, Similarity: 0.9},
		{Chunk: vectorindex.Chunk{Title: "Broca", Content: "contenido dos"}, Similarity: 0.8},
	}

	got := buildContext(results, 900)
	assert.Contains(t, got, "[DOCUMENTO 1: Roya]\ncontenido uno")
	assert.Contains(t, got, "[DOCUMENTO 2: Broca]\ncontenido dos")
	assert.Contains(t, got, "\n\n---\n\n")
}

func TestBuildContext_Truncation(t *testing.T) {
	t.Parallel()

	// Truncation counts characters, not bytes; accented text must not be
	// cut mid-rune.
	long := strings.Repeat("á", 50)
	results := []vectorindex.SearchResult{
		{Chunk: vectorindex.Chunk{Title: "Doc", Content: long}},
	}

	got := buildContext(results, 10)
	assert.Contains(t, got, strings.Repeat("á", 10))
	assert.NotContains(t, got, strings.Repeat("á", 11))
}

func TestBuildAugmentedPrompt(t *testing.T) {
	t.Parallel()

	got := buildAugmentedPrompt("¿cómo trato la roya?", "[DOCUMENTO 1: Roya]\ndetalle")

	assert.Contains(t, got, "CONTEXTO (Base de Conocimiento de Káapeh):")
	assert.Contains(t, got, "[DOCUMENTO 1: Roya]")
	assert.Contains(t, got, "PREGUNTA DEL USUARIO:\n¿cómo trato la roya?")
	assert.Contains(t, got, "NUNCA inventes información")
}

func TestRenderAnswer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp genai.DiagnosisResponse
		want string
	}{
		{
			name: "answer only",
			resp: genai.DiagnosisResponse{Answer: "La roya es un hongo."},
			want: "La roya es un hongo.",
		},
		{
			name: "with treatment and prevention",
			resp: genai.DiagnosisResponse{
				Answer:     "La roya es un hongo.",
				Treatment:  []string{"Aplicar cobre", "Podar ramas afectadas"},
				Prevention: []string{"Variedades resistentes"},
			},
			want: "La roya es un hongo.\n\n**Tratamiento:**\n1. Aplicar cobre\n2. Podar ramas afectadas\n\n**Prevención:**\n- Variedades resistentes",
		},
		{
			name: "with call to action",
			resp: genai.DiagnosisResponse{
				Answer:       "La roya es un hongo.",
				CallToAction: "Consulta a tu técnico de confianza.",
			},
			want: "La roya es un hongo.\n\nConsulta a tu técnico de confianza.",
		},
		{
			name: "blank call to action dropped",
			resp: genai.DiagnosisResponse{
				Answer:       "Respuesta.",
				CallToAction: "   ",
			},
			want: "Respuesta.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, renderAnswer(tt.resp))
		})
	}
}
