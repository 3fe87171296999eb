// Package extract derives company and role names from message text with
// ordered pattern rules. Every function returns a sentinel instead of an
// empty string when nothing matches.
package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"jobtrack-backend/pkg/heuristic"
)

const (
	UnknownCompany = "Unknown"
	UnknownRole    = "Unknown Role"

	maxFieldLen       = 80
	maxSubjectSegment = 40
)

var (
	subjectSeparator = regexp.MustCompile(`\s*(?:[-–—]|\|)\s+`)
	// Subject segments that describe the event rather than the employer.
	genericSegment = regexp.MustCompile(`(?i)\b(?:interview|invitation|application|applied|applying|offer|update|status|thank|thanks|received|confirmation|assessment|next steps|your|candidate|position|role|job|re|fwd)\b`)

	companyRules = []*regexp.Regexp{
		regexp.MustCompile(`(?i)thank you for applying to\s+(.+?)(?:[.\n,!]|$)`),
		regexp.MustCompile(`(?i)thank you for your interest in\s+(.+?)(?:[.\n,!]|$)`),
		regexp.MustCompile(`(?i)interest in joining\s+(.+?)(?:[.\n,!]|$)`),
		regexp.MustCompile(`\b(?:at|with)\s+([A-Z][A-Za-z0-9&. -]{1,49}?)(?:[.\n,!]|\s+(?:for|to|and|as|on|in|is|has|we|team)\b|$)`),
		regexp.MustCompile(`(?im)^\s*([A-Z][A-Za-z0-9&. -]{2,50}?)\s+(?:talent|recruiting|hiring)\s+team\b`),
	}

	roleRules = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\breq\s*#?\s*\d+\s*[-:–]\s*([A-Za-z0-9()&/., \t-]{3,80})`),
		regexp.MustCompile(`(?i)position of\s+([A-Za-z0-9()&/., \t-]{3,80}?)(?:\s+(?:at|with)\s|[.\n,!]|$)`),
		regexp.MustCompile(`(?i)application (?:for|to)\s+(?:the\s+)?([A-Za-z0-9()&/., \t-]{3,80}?)(?:\s+(?:role|position|internship)|[.\n,!]|$)`),
		regexp.MustCompile(`(?i)applying for\s+(?:the\s+)?([A-Za-z0-9()&/., \t-]{3,80}?)(?:\s+(?:role|position|internship)|[.\n,!]|$)`),
		regexp.MustCompile(`(?i)for\s+the\s+([A-Za-z0-9()&/., \t-]{3,80}?)\s+role\s+at`),
		regexp.MustCompile(`(?i)([A-Za-z \t/&-]+?)\s*(?:,|\s)\s*(?:Summer|Fall|Spring|Winter)[^\n]*?position`),
		regexp.MustCompile(`(?i)in the\s+([^\n]+?)\s+(?:role|position)`),
		regexp.MustCompile(`(?i)apply to our\s+([^\n]+?)\s+role`),
	}

	senderDomain = regexp.MustCompile(`(?i)@([a-z0-9.-]+\.[a-z]{2,})`)
	stripChars   = regexp.MustCompile(`[<>()"\[\]]`)
)

// Consumer mailbox providers never identify the employer.
var personalDomains = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
	"outlook.com":    true,
	"hotmail.com":    true,
	"yahoo.com":      true,
	"icloud.com":     true,
	"proton.me":      true,
}

// Short second-level labels under country TLDs (acme.co.uk).
var secondLevelLabels = map[string]bool{"co": true, "com": true, "ac": true, "org": true, "net": true}

type Extractor struct {
	atsDomains []string
}

func New(atsDomains []string) *Extractor {
	if len(atsDomains) == 0 {
		atsDomains = heuristic.DefaultATSDomains
	}
	lowered := make([]string, 0, len(atsDomains))
	for _, d := range atsDomains {
		lowered = append(lowered, strings.ToLower(strings.TrimSpace(d)))
	}
	return &Extractor{atsDomains: lowered}
}

// Company returns the employer name or UnknownCompany.
func (e *Extractor) Company(subject, from, body string) string {
	if c := companyFromSubject(subject); c != "" {
		return c
	}

	text := subject + "\n" + body
	for _, re := range companyRules {
		if m := re.FindStringSubmatch(text); m != nil {
			if c := CleanCompany(m[1]); c != UnknownCompany {
				return c
			}
		}
	}

	return e.companyFromSender(from)
}

// Role returns the job title or UnknownRole.
func (e *Extractor) Role(subject, body string) string {
	text := subject + "\n" + body
	for _, re := range roleRules {
		if m := re.FindStringSubmatch(text); m != nil {
			if r := CleanRole(m[1]); r != UnknownRole {
				return r
			}
		}
	}
	return UnknownRole
}

func companyFromSubject(subject string) string {
	segments := subjectSeparator.Split(strings.TrimSpace(subject), -1)
	if len(segments) < 2 {
		return ""
	}
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" || utf8.RuneCountInString(seg) > maxSubjectSegment || genericSegment.MatchString(seg) {
			continue
		}
		if c := CleanCompany(seg); c != UnknownCompany {
			return c
		}
	}
	return ""
}

func (e *Extractor) companyFromSender(from string) string {
	m := senderDomain.FindStringSubmatch(from)
	if m == nil {
		return UnknownCompany
	}
	domain := strings.ToLower(m[1])
	if personalDomains[domain] || e.isATSDomain(domain) {
		return UnknownCompany
	}

	labels := strings.Split(domain, ".")
	base := labels[0]
	if len(labels) >= 2 {
		base = labels[len(labels)-2]
		if secondLevelLabels[base] && len(labels) >= 3 {
			base = labels[len(labels)-3]
		}
	}
	if base == "" {
		return UnknownCompany
	}
	r, size := utf8.DecodeRuneInString(base)
	return string(unicode.ToUpper(r)) + base[size:]
}

func (e *Extractor) isATSDomain(domain string) bool {
	for _, d := range e.atsDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = stripChars.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ".,;:- ")
	if utf8.RuneCountInString(s) > maxFieldLen {
		s = strings.TrimSpace(string([]rune(s)[:maxFieldLen]))
	}
	return s
}

// CleanCompany normalizes a company candidate; empty input yields UnknownCompany.
func CleanCompany(s string) string {
	if c := normalize(s); c != "" {
		return c
	}
	return UnknownCompany
}

// CleanRole normalizes a role candidate; empty input yields UnknownRole.
func CleanRole(s string) string {
	if r := normalize(s); r != "" {
		return r
	}
	return UnknownRole
}

func IsUnknownCompany(company string) bool {
	c := strings.ToLower(strings.TrimSpace(company))
	return c == "" || c == "unknown"
}

func IsUnknownRole(role string) bool {
	r := strings.ToLower(strings.TrimSpace(role))
	return r == "" || strings.Contains(r, "unknown")
}
