package rag

import (
	"fmt"
	"strings"

	"github.com/kaapeh/copiloto/internal/genai"
	"github.com/kaapeh/copiloto/internal/vectorindex"
)

// buildContext concatenates retrieved chunks into the grounding block, each
// truncated to maxChunkChars characters and labeled with its position and
// title.
func buildContext(results []vectorindex.SearchResult, maxChunkChars int) string {
	parts := make([]string, 0, len(results))
	for i, result := range results {
		content := result.Chunk.Content
		if runes := []rune(content); len(runes) > maxChunkChars {
			content = string(runes[:maxChunkChars])
		}
		parts = append(parts, fmt.Sprintf("[DOCUMENTO %d: %s]\n%s", i+1, result.Chunk.Title, content))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// buildAugmentedPrompt embeds the retrieval context and the strict grounding
// instructions around the user's question.
func buildAugmentedPrompt(query, context string) string {
	return fmt.Sprintf(`CONTEXTO (Base de Conocimiento de Káapeh):
%s

PREGUNTA DEL USUARIO:
%s

INSTRUCCIONES:
1. Responde ÚNICAMENTE con la información del contexto anterior.
2. Si la información no está en el contexto, di "No cuento con información específica sobre esto".
3. NUNCA inventes información.
4. Mantén la respuesta concisa pero completa; incluye dosis, cantidades y frecuencias cuando estén en el contexto.
5. Para preguntas técnicas sobre enfermedades, plagas o nutrición, llena las listas treatment y prevention con los pasos del contexto; en otro caso déjalas vacías.
6. NO menciones los títulos de los documentos en tu respuesta.`, context, query)
}

// renderAnswer composes the final answer text: the synthesized answer plus
// formatted treatment and prevention sections when present.
func renderAnswer(resp genai.DiagnosisResponse) string {
	sections := []string{resp.Answer}

	if len(resp.Treatment) > 0 {
		lines := make([]string, 0, len(resp.Treatment)+1)
		lines = append(lines, "**Tratamiento:**")
		for i, step := range resp.Treatment {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, step))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(resp.Prevention) > 0 {
		lines := make([]string, 0, len(resp.Prevention)+1)
		lines = append(lines, "**Prevención:**")
		for _, measure := range resp.Prevention {
			lines = append(lines, "- "+measure)
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if cta := strings.TrimSpace(resp.CallToAction); cta != "" {
		sections = append(sections, cta)
	}

	return strings.TrimRight(strings.Join(sections, "\n\n"), "\n")
}
