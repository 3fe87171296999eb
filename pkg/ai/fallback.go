package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"
)

// FallbackExtractor routes extraction to a primary provider and retries once
// on the secondary when the primary fails.
// - Ollama first (local, free), Gemini on connection errors
// - Gemini first when it is the configured provider, Ollama on quota errors
type FallbackExtractor struct {
	primary   JobExtractor
	secondary JobExtractor
	logger    *zap.Logger
}

func NewFallbackExtractor(primary, secondary JobExtractor, logger *zap.Logger) *FallbackExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackExtractor{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return containsAnyFold(err.Error(), []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"EOF",
	})
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}
	return containsAnyFold(err.Error(), []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource exhausted",
		"resource_exhausted",
	})
}

func containsAnyFold(s string, indicators []string) bool {
	s = strings.ToLower(s)
	for _, indicator := range indicators {
		if strings.Contains(s, strings.ToLower(indicator)) {
			return true
		}
	}
	return false
}

func (f *FallbackExtractor) ExtractJobFields(ctx context.Context, in Input) (*JobExtraction, error) {
	if f.primary == nil && f.secondary == nil {
		return nil, fmt.Errorf("no AI provider available for job extraction")
	}
	if f.primary == nil {
		return f.secondary.ExtractJobFields(ctx, in)
	}

	result, err := f.primary.ExtractJobFields(ctx, in)
	if err == nil {
		return result, nil
	}
	if f.secondary == nil || ctx.Err() != nil {
		return nil, err
	}

	reason := "error"
	switch {
	case isConnectionError(err):
		reason = "connection"
	case isQuotaError(err):
		reason = "quota"
	}
	f.logger.Warn("primary LLM failed, falling back",
		zap.String("reason", reason),
		zap.Error(err),
	)

	result, fbErr := f.secondary.ExtractJobFields(ctx, in)
	if fbErr != nil {
		return nil, fmt.Errorf("fallback extraction failed: %w (primary: %v)", fbErr, err)
	}
	return result, nil
}
