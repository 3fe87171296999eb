package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExtraction(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantRelated bool
		wantCompany string
		wantRole    string
		wantStatus  string
		wantConf    float64
	}{
		{
			name:        "plain json",
			raw:         `{"is_job_related": true, "company": "Acme", "role": "Engineer", "status": "Interview", "confidence": 0.82}`,
			wantRelated: true, wantCompany: "Acme", wantRole: "Engineer", wantStatus: "Interview", wantConf: 0.82,
		},
		{
			name:        "wrapped in prose and fences",
			raw:         "Sure! Here is the JSON:\n```json\n{\"is_job_related\": true, \"company\": \"Globex\", \"role\": null, \"status\": null, \"confidence\": 0.5}\n```\nLet me know.",
			wantRelated: true, wantCompany: "Globex", wantConf: 0.5,
		},
		{
			name:     "non numeric confidence",
			raw:      `{"is_job_related": false, "confidence": "high"}`,
			wantConf: 0,
		},
		{
			name:        "string boolean and clamped confidence",
			raw:         `{"is_job_related": "true", "company": "  ", "confidence": 3}`,
			wantRelated: true, wantConf: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseExtraction(tt.raw)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantRelated, got.IsJobRelated)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
			assertPtr(t, tt.wantCompany, got.Company)
			assertPtr(t, tt.wantRole, got.Role)
			assertPtr(t, tt.wantStatus, got.Status)
			assert.Empty(t, got.Raw)
		})
	}
}

func TestParseExtractionFailsSoft(t *testing.T) {
	for _, raw := range []string{"I cannot help with that.", "{not json}", "} backwards {"} {
		got := ParseExtraction(raw)
		require.NotNil(t, got)
		assert.False(t, got.IsJobRelated)
		assert.Nil(t, got.Company)
		assert.Nil(t, got.Role)
		assert.Nil(t, got.Status)
		assert.Zero(t, got.Confidence)
		assert.Equal(t, strings.TrimSpace(raw), got.Raw)
	}
}

func TestParseExtractionRawExcerptIsBounded(t *testing.T) {
	got := ParseExtraction(strings.Repeat("z", 1000))
	assert.Len(t, got.Raw, rawExcerptChars)
}

func TestBuildPromptIncludesMessage(t *testing.T) {
	p := buildPrompt(Input{Subject: "Offer", From: "hr@acme.com", Body: "We are pleased"})
	assert.Contains(t, p, "Subject: Offer")
	assert.Contains(t, p, "From: hr@acme.com")
	assert.Contains(t, p, "We are pleased")
	assert.Contains(t, p, `"Applied"|"Interview"|"Offer"|"Rejected"|null`)
}

func TestBuildPromptBoundsBody(t *testing.T) {
	body := strings.Repeat("a", MaxBodyChars) + "TAIL"
	p := buildPrompt(Input{Subject: "s", From: "f", Body: body})
	assert.Contains(t, p, strings.Repeat("a", MaxBodyChars))
	assert.NotContains(t, p, "TAIL")
}

func assertPtr(t *testing.T, want string, got *string) {
	t.Helper()
	if want == "" {
		assert.Nil(t, got)
		return
	}
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
}
