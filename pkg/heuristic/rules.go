package heuristic

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules are the word lists the filter scores against. All entries are
// matched case-insensitively as plain substrings.
type Rules struct {
	ATSDomains      []string `yaml:"ats_domains"`
	StrongPhrases   []string `yaml:"strong_phrases"`
	MediumPhrases   []string `yaml:"medium_phrases"`
	NegativePhrases []string `yaml:"negative_phrases"`
}

// DefaultATSDomains are recruiting platforms that send on behalf of employers.
var DefaultATSDomains = []string{
	"greenhouse.io",
	"myworkday.com",
	"workday.com",
	"lever.co",
	"ashbyhq.com",
	"smartrecruiters.com",
	"icims.com",
	"successfactors.com",
	"adp.com",
	"oraclecloud.com",
}

func DefaultRules() Rules {
	return Rules{
		ATSDomains: append([]string(nil), DefaultATSDomains...),
		StrongPhrases: []string{
			"thank you for applying",
			"application received",
			"we have received your application",
			"we received your application",
			"your application has been received",
			"application confirmation",
			"application submitted",
			"submission received",
			"candidate portal",
			"check application status",
			"talent acquisition",
			"recruiting team",
			"hiring team",
			"employment update",
			"next stage",
			"next steps",
			"shortlisted",
			"interview invitation",
			"interview scheduling",
			"select a time",
			"assessment invitation",
			"coding assessment",
			"online assessment",
			"offer letter",
			"we are pleased to offer",
			"regret to inform",
			"not moving forward",
		},
		MediumPhrases: []string{
			"position of",
			"role at",
			"job posting",
			"career site",
			"careers site",
			"job application",
			"application status",
			"application update",
			"requisition",
			"req #",
			"candidate id",
		},
		NegativePhrases: []string{
			"order confirmation",
			"your order",
			"delivery",
			"shipped",
			"invoice",
			"payment receipt",
			"your receipt",
			"subscription renewed",
			"limited time sale",
			"promotion",
			"newsletter",
			"unsubscribe",
		},
	}
}

// LoadRules reads a YAML rules file. Lists omitted from the file keep their
// defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("read heuristic rules: %w", err)
	}

	var override Rules
	if err := yaml.Unmarshal(data, &override); err != nil {
		return rules, fmt.Errorf("parse heuristic rules: %w", err)
	}

	if len(override.ATSDomains) > 0 {
		rules.ATSDomains = override.ATSDomains
	}
	if len(override.StrongPhrases) > 0 {
		rules.StrongPhrases = override.StrongPhrases
	}
	if len(override.MediumPhrases) > 0 {
		rules.MediumPhrases = override.MediumPhrases
	}
	if len(override.NegativePhrases) > 0 {
		rules.NegativePhrases = override.NegativePhrases
	}
	return rules.normalized(), nil
}

func (r Rules) normalized() Rules {
	return Rules{
		ATSDomains:      lowerAll(r.ATSDomains),
		StrongPhrases:   lowerAll(r.StrongPhrases),
		MediumPhrases:   lowerAll(r.MediumPhrases),
		NegativePhrases: lowerAll(r.NegativePhrases),
	}
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
