package ai

import "context"

// MaxBodyChars bounds the message excerpt sent to a model.
const MaxBodyChars = 2500

type Input struct {
	Subject string
	From    string
	Body    string
}

// JobExtraction is the strict schema parsed out of a model response.
// Nil fields mean the model did not know.
type JobExtraction struct {
	IsJobRelated bool    `json:"is_job_related"`
	Company      *string `json:"company"`
	Role         *string `json:"role"`
	Status       *string `json:"status"`
	Confidence   float64 `json:"confidence"`
	Model        string  `json:"model,omitempty"`
	Raw          string  `json:"_raw,omitempty"`
}

// JobExtractor is the interface every LLM provider implements.
type JobExtractor interface {
	ExtractJobFields(ctx context.Context, in Input) (*JobExtraction, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)
