package ai

import (
	"context"
	"fmt"
	"time"

	"jobtrack-backend/pkg/metrics"

	"google.golang.org/genai"
)

type GeminiExtractor struct {
	client    *genai.Client
	modelName string
}

func NewGeminiExtractor(ctx context.Context, apiKey, modelName string) (*GeminiExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiExtractor{client: client, modelName: modelName}, nil
}

func (g *GeminiExtractor) ExtractJobFields(ctx context.Context, in Input) (result *JobExtraction, err error) {
	start := time.Now()
	defer func() { metrics.RecordExternalCall("llm_gemini", err, time.Since(start)) }()

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0)),
		ResponseMIMEType: "application/json",
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				genai.NewPartFromText(buildPrompt(in)),
			},
		},
	}, config)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	result = ParseExtraction(resp.Text())
	result.Model = g.modelName
	return result, nil
}
