package domain

import "time"

// SearchQuery selects candidate messages from a mailbox.
type SearchQuery struct {
	Terms  []string // OR-joined relevance terms
	Window time.Duration
	Cap    int
}

// MessageRef identifies a message returned by a search, in provider order.
type MessageRef struct {
	ID       string
	ThreadID string
}

// MailMessage is a provider message normalized to plain text.
type MailMessage struct {
	ID         string
	ThreadID   string
	Subject    string
	From       string
	DateHeader string
	ReceivedAt time.Time
	Body       string
}

// Relevance terms for the full pipeline and the lightweight path.
var (
	FullSearchTerms = []string{
		"interview",
		`"thank you for applying"`,
		`"application received"`,
		"assessment",
		`"coding test"`,
		"offer",
		"rejected",
		"recruiter",
		"hiring",
		"careers",
		`"application status"`,
	}

	LightSearchTerms = []string{
		`"thank you for applying"`,
		`"application received"`,
		`"we received your application"`,
	}
)
