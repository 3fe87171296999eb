package ai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jobtrack-backend/pkg/metrics"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaExtractor runs extraction against a local Ollama server through
// langchaingo. Server URL and model are read on every call so runtime
// settings changes apply to the next message.
type OllamaExtractor struct {
	getBaseURL func() string
	getModel   func() string

	mu     sync.Mutex
	cached llms.Model
	key    string
}

// NewOllamaExtractor creates an extractor with fixed settings
func NewOllamaExtractor(baseURL, model string) *OllamaExtractor {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:11434"
	}
	if model == "" {
		model = "llama3.1:8b"
	}
	return NewOllamaExtractorWithGetters(
		func() string { return baseURL },
		func() string { return model },
	)
}

// NewOllamaExtractorWithGetters creates an extractor with dynamic getters
func NewOllamaExtractorWithGetters(getBaseURL, getModel func() string) *OllamaExtractor {
	return &OllamaExtractor{
		getBaseURL: getBaseURL,
		getModel:   getModel,
	}
}

func (o *OllamaExtractor) model() (llms.Model, string, error) {
	baseURL, name := o.getBaseURL(), o.getModel()
	key := baseURL + "|" + name

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cached != nil && o.key == key {
		return o.cached, name, nil
	}

	m, err := ollama.New(
		ollama.WithModel(name),
		ollama.WithServerURL(baseURL),
		ollama.WithFormat("json"),
	)
	if err != nil {
		return nil, name, fmt.Errorf("create ollama model: %w", err)
	}
	o.cached, o.key = m, key
	return m, name, nil
}

func (o *OllamaExtractor) ExtractJobFields(ctx context.Context, in Input) (result *JobExtraction, err error) {
	start := time.Now()
	defer func() { metrics.RecordExternalCall("llm_ollama", err, time.Since(start)) }()

	m, name, err := o.model()
	if err != nil {
		return nil, err
	}

	response, err := llms.GenerateFromSinglePrompt(ctx, m, buildPrompt(in), llms.WithTemperature(0))
	if err != nil {
		return nil, fmt.Errorf("ollama generate: %w", err)
	}

	result = ParseExtraction(response)
	result.Model = name
	return result, nil
}
