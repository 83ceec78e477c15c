package engine

import "context"

// ModelClient abstracts LLM calls. Implementations can wrap OpenAI, Gemini,
// OpenAI-compatible local servers, or the stub.
type ModelClient interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Prompt is one generation request.
type Prompt struct {
	System      string
	User        string
	Temperature float64
}

// Normalizer cleans extracted document text into markdown without calling a
// model. sourceType is a hint such as "pdf", "pptx" or "docx".
type Normalizer interface {
	Normalize(text, sourceType string) string
}
