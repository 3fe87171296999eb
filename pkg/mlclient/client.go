// Package mlclient talks to the statistical email classification service.
package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"jobtrack-backend/pkg/metrics"
	"jobtrack-backend/pkg/textutil"
)

const MaxBodyChars = 2000

type Input struct {
	Subject string `json:"subject"`
	From    string `json:"from"`
	Body    string `json:"body"`
}

type Classification struct {
	IsJobRelated bool    `json:"is_job_related"`
	EventType    string  `json:"event_type"`
	Confidence   float64 `json:"confidence"`
	Reason       string  `json:"reason"`
	ModelVersion string  `json:"model_version"`
}

// Classifier is implemented by the HTTP client and the cached decorator.
type Classifier interface {
	Classify(ctx context.Context, in Input) (*Classification, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("classifier returned %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the service failed on its side.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500
}

type Client struct {
	baseURL        string
	defaultVersion string
	httpClient     *http.Client
}

func NewClient(baseURL, defaultVersion string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:        baseURL,
		defaultVersion: defaultVersion,
		httpClient:     &http.Client{Timeout: timeout},
	}
}

func (c *Client) Classify(ctx context.Context, in Input) (result *Classification, err error) {
	start := time.Now()
	defer func() { metrics.RecordExternalCall("classifier_http", err, time.Since(start)) }()

	in.Body = textutil.Truncate(in.Body, MaxBodyChars)
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read classifier response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out Classification
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	if out.ModelVersion == "" {
		out.ModelVersion = c.defaultVersion
	}
	return &out, nil
}
