// Package heuristic scores messages for job relevance before any external
// classifier is consulted.
package heuristic

import "strings"

const (
	bodyScanLimit   = 4000
	acceptThreshold = 3
	atsPoints       = 3
	strongPoints    = 3
)

type Verdict struct {
	Score       int  `json:"score"`
	Passed      bool `json:"passed"`
	ATSSender   bool `json:"ats_sender"`
	StrongHit   bool `json:"strong_hit"`
	MediumHits  int  `json:"medium_hits"`
	NegativeHit bool `json:"negative_hit"`
}

type Filter struct {
	rules Rules
}

func NewFilter(rules Rules) *Filter {
	return &Filter{rules: rules.normalized()}
}

// Score applies the relevance policy: +3 for an ATS sender, +3 for any strong
// phrase, +1 per distinct medium phrase. A negative phrase rejects the message
// while the score is still below the threshold.
func (f *Filter) Score(subject, from, body string) Verdict {
	fromLower := strings.ToLower(from)
	if len(body) > bodyScanLimit {
		body = body[:bodyScanLimit]
	}
	text := strings.ToLower(subject) + " " + fromLower + " " + strings.ToLower(body)

	var v Verdict
	for _, d := range f.rules.ATSDomains {
		if strings.Contains(fromLower, d) {
			v.ATSSender = true
			break
		}
	}
	v.StrongHit = containsAny(text, f.rules.StrongPhrases)
	for _, p := range f.rules.MediumPhrases {
		if strings.Contains(text, p) {
			v.MediumHits++
		}
	}
	v.NegativeHit = containsAny(text, f.rules.NegativePhrases)

	if v.ATSSender {
		v.Score += atsPoints
	}
	if v.StrongHit {
		v.Score += strongPoints
	}
	v.Score += v.MediumHits

	if v.NegativeHit && v.Score < acceptThreshold {
		return v
	}
	v.Passed = v.Score >= acceptThreshold
	return v
}

// IsATSDomain reports whether domain is one of the configured ATS senders.
func (f *Filter) IsATSDomain(domain string) bool {
	domain = strings.ToLower(domain)
	for _, d := range f.rules.ATSDomains {
		if d == domain {
			return true
		}
	}
	return false
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
