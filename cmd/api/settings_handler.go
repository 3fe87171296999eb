package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RuntimeConfig holds the pipeline settings that can change without a restart
type RuntimeConfig struct {
	EnableClassifier bool    `json:"enable_classifier"`
	EnableLLM        bool    `json:"enable_llm"`
	LLMThreshold     float64 `json:"llm_confidence_threshold"`
	OllamaBaseURL    string  `json:"ollama_base_url"`
	OllamaModel      string  `json:"ollama_model,omitempty"`
}

// RuntimeSettings guards a RuntimeConfig. Its getters are read by the sync
// pipeline and the LLM extractor on every message.
type RuntimeSettings struct {
	mu     sync.RWMutex
	config RuntimeConfig
	client *http.Client
}

func NewRuntimeSettings(initial RuntimeConfig) *RuntimeSettings {
	return &RuntimeSettings{
		config: initial,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *RuntimeSettings) Snapshot() RuntimeConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

func (s *RuntimeSettings) ClassifierEnabled() bool { return s.Snapshot().EnableClassifier }
func (s *RuntimeSettings) LLMEnabled() bool        { return s.Snapshot().EnableLLM }
func (s *RuntimeSettings) LLMThreshold() float64   { return s.Snapshot().LLMThreshold }
func (s *RuntimeSettings) OllamaBaseURL() string   { return s.Snapshot().OllamaBaseURL }
func (s *RuntimeSettings) OllamaModel() string     { return s.Snapshot().OllamaModel }

// UpdatePipelineSettingsRequest is a partial update; nil fields are kept
type UpdatePipelineSettingsRequest struct {
	EnableClassifier *bool    `json:"enable_classifier"`
	EnableLLM        *bool    `json:"enable_llm"`
	LLMThreshold     *float64 `json:"llm_confidence_threshold" binding:"omitempty,gte=0,lte=1"`
}

// UpdateOllamaSettingsRequest represents the request body for updating Ollama settings
type UpdateOllamaSettingsRequest struct {
	OllamaBaseURL string `json:"ollama_base_url" binding:"required,url"`
	OllamaModel   string `json:"ollama_model,omitempty"`
}

// GetPipelineSettings returns the current pipeline toggles
// GET /api/settings/pipeline
func (s *RuntimeSettings) GetPipelineSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.Snapshot())
}

// UpdatePipelineSettings changes pipeline toggles at runtime
// PUT /api/settings/pipeline
func (s *RuntimeSettings) UpdatePipelineSettings(c *gin.Context) {
	var req UpdatePipelineSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	if req.EnableClassifier != nil {
		s.config.EnableClassifier = *req.EnableClassifier
	}
	if req.EnableLLM != nil {
		s.config.EnableLLM = *req.EnableLLM
	}
	if req.LLMThreshold != nil {
		s.config.LLMThreshold = *req.LLMThreshold
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, s.Snapshot())
}

// GetOllamaSettings returns current Ollama configuration
// GET /api/settings/ollama
func (s *RuntimeSettings) GetOllamaSettings(c *gin.Context) {
	cfg := s.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"ollama_base_url": cfg.OllamaBaseURL,
		"ollama_model":    cfg.OllamaModel,
	})
}

// UpdateOllamaSettings updates Ollama configuration at runtime
// PUT /api/settings/ollama
func (s *RuntimeSettings) UpdateOllamaSettings(c *gin.Context) {
	var req UpdateOllamaSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.config.OllamaBaseURL = req.OllamaBaseURL
	if req.OllamaModel != "" {
		s.config.OllamaModel = req.OllamaModel
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"message":         "Ollama settings updated successfully",
		"ollama_base_url": req.OllamaBaseURL,
		"ollama_model":    s.OllamaModel(),
	})
}

// TestOllamaConnection tests if the Ollama server is reachable
// POST /api/settings/ollama/test
func (s *RuntimeSettings) TestOllamaConnection(c *gin.Context) {
	var req struct {
		OllamaBaseURL string `json:"ollama_base_url"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.OllamaBaseURL == "" {
		req.OllamaBaseURL = s.OllamaBaseURL()
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.OllamaBaseURL+"/api/tags", nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"connected": false, "error": err.Error()})
		return
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"connected": false,
			"error":     err.Error(),
		})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"connected":   false,
			"status_code": resp.StatusCode,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connected":       true,
		"ollama_base_url": req.OllamaBaseURL,
	})
}
