package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"jobtrack-backend/pkg/textutil"
)

const rawExcerptChars = 400

// buildPrompt renders the extraction prompt with the body cut to MaxBodyChars.
func buildPrompt(in Input) string {
	return strings.TrimSpace(fmt.Sprintf(`
You extract structured job application info from emails.
Return ONLY valid JSON with this schema:
{
  "is_job_related": boolean,
  "company": string|null,
  "role": string|null,
  "status": "Applied"|"Interview"|"Offer"|"Rejected"|null,
  "confidence": number
}

Rules:
- Output JSON ONLY (no markdown, no explanations)
- If unsure, set fields to null and lower confidence (0 to 1).
- Company should be the organization name (not LinkedIn/Workday/Greenhouse unless it truly is the sender company).
- Role should be the job title if present.

Email:
Subject: %s
From: %s
Body:
%s
`, in.Subject, in.From, textutil.Truncate(in.Body, MaxBodyChars)))
}

// ParseExtraction pulls the JSON object out of a model response. Text around
// the object and markdown fences are ignored. An unparsable response yields an
// unrelated, zero-confidence result carrying a raw excerpt.
func ParseExtraction(raw string) *JobExtraction {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return unparsed(raw)
	}

	var parsed struct {
		IsJobRelated interface{} `json:"is_job_related"`
		Company      *string     `json:"company"`
		Role         *string     `json:"role"`
		Status       *string     `json:"status"`
		Confidence   interface{} `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return unparsed(raw)
	}

	return &JobExtraction{
		IsJobRelated: truthy(parsed.IsJobRelated),
		Company:      nonEmpty(parsed.Company),
		Role:         nonEmpty(parsed.Role),
		Status:       nonEmpty(parsed.Status),
		Confidence:   confidence(parsed.Confidence),
	}
}

func unparsed(raw string) *JobExtraction {
	return &JobExtraction{Raw: textutil.Truncate(strings.TrimSpace(raw), rawExcerptChars)}
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "true")
	case float64:
		return t != 0
	}
	return false
}

func confidence(v interface{}) float64 {
	f, ok := v.(float64)
	if !ok {
		return 0
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}
