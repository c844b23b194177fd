// Package genai wraps the external text-generation service behind a small
// client. Every call is stateless: a fresh generation request with its own
// system instructions, never a session threaded across calls. Reusing a
// session accumulates context until the token budget overflows; the
// per-call model avoids that by construction.
package genai

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// DiagnosisResponse is the structured output of a technical generation
// call. Treatment and Prevention stay empty for non-technical questions.
type DiagnosisResponse struct {
	// Answer is the synthesized reply, grounded only in the provided context.
	Answer string `json:"answer"`

	// Treatment lists recommended treatment steps, when applicable.
	Treatment []string `json:"treatment"`

	// Prevention lists preventive measures, when applicable.
	Prevention []string `json:"prevention"`

	// CallToAction is an optional closing practical recommendation.
	CallToAction string `json:"callToAction"`

	// Confidence is the model's self-reported confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// ContextSufficient is false when the provided context lacked the
	// information needed to answer.
	ContextSufficient bool `json:"contextSufficient"`
}

// Client is the generation capability consumed by the RAG orchestrator.
type Client interface {
	// Diagnose runs a structured technical generation over an augmented prompt.
	Diagnose(ctx context.Context, prompt string) (DiagnosisResponse, error)

	// Greet generates a short free-text reply for casual conversation,
	// with no retrieval context.
	Greet(ctx context.Context, prompt string) (string, error)
}

// systemInstructions is the fixed behavioral contract for every generation
// call. It mirrors the product rules: answer only from context, admit
// missing information, never fabricate, never cite source titles in the
// rendered answer.
const systemInstructions = `Eres el Copiloto de Káapeh, un asistente técnico especializado en café agroecológico para caficultores de Chiapas, México.

REGLAS FUNDAMENTALES:
1. Usa lenguaje claro y profesional, accesible para caficultores.
2. Responde ÚNICAMENTE con la información del contexto proporcionado.
3. Si el contexto no tiene la respuesta, di "No cuento con información específica sobre esto".
4. NUNCA inventes información.
5. Incluye dosis, cantidades, tiempos y frecuencias cuando estén en el contexto.
6. NO menciones las fuentes de información en tus respuestas.

Para saludos responde de forma breve y profesional, ofreciendo tu ayuda.
Para preguntas técnicas define primero el problema, luego causas y características, y detalla tratamiento y prevención cuando apliquen.`

// GenkitClient implements Client over a Genkit model.
type GenkitClient struct {
	g         *genkit.Genkit
	modelName string
}

var _ Client = (*GenkitClient)(nil)

// NewGenkitClient creates a client for the named model, e.g.
// "googleai/gemini-2.0-flash".
func NewGenkitClient(g *genkit.Genkit, modelName string) *GenkitClient {
	return &GenkitClient{g: g, modelName: modelName}
}

// Diagnose generates a structured diagnosis. The output schema is derived
// from DiagnosisResponse.
func (c *GenkitClient) Diagnose(ctx context.Context, prompt string) (DiagnosisResponse, error) {
	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.modelName),
		ai.WithSystem(systemInstructions),
		ai.WithPrompt(prompt),
		ai.WithOutputType(DiagnosisResponse{}),
	)
	if err != nil {
		return DiagnosisResponse{}, fmt.Errorf("diagnosis generation: %w", err)
	}

	var out DiagnosisResponse
	if err := resp.Output(&out); err != nil {
		return DiagnosisResponse{}, fmt.Errorf("decoding diagnosis output: %w", err)
	}
	return out, nil
}

// Greet generates a short free-text greeting reply.
func (c *GenkitClient) Greet(ctx context.Context, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.modelName),
		ai.WithSystem(systemInstructions),
		ai.WithPrompt(prompt+"\n\nResponde de forma breve y profesional. Ofrece tu ayuda como Copiloto de Káapeh."),
	)
	if err != nil {
		return "", fmt.Errorf("greeting generation: %w", err)
	}
	return resp.Text(), nil
}
