package domain

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a job application
type Status string

const (
	StatusApplied   Status = "Applied"
	StatusInterview Status = "Interview"
	StatusOffer     Status = "Offer"
	StatusRejected  Status = "Rejected"
)

// Source records which pipeline stage produced the application fields
type Source string

const (
	SourceHeuristic Source = "heuristic"
	SourceML        Source = "ml"
	SourceLLM       Source = "llm"
	SourceManual    Source = "manual"
)

// JobApplication is the deduplicated record a sync derives from mail.
// (user_id, company, role, applied_date) is unique; the first write wins.
type JobApplication struct {
	ID                string    `json:"id" gorm:"primaryKey"`
	UserID            string    `json:"user_id" gorm:"not null;uniqueIndex:idx_job_user_company_role_date,priority:1"`
	Company           string    `json:"company" gorm:"not null;uniqueIndex:idx_job_user_company_role_date,priority:2"`
	Role              string    `json:"role" gorm:"not null;uniqueIndex:idx_job_user_company_role_date,priority:3"`
	AppliedDate       time.Time `json:"applied_date" gorm:"type:date;not null;uniqueIndex:idx_job_user_company_role_date,priority:4"`
	Status            Status    `json:"status" gorm:"not null;default:Applied"`
	Source            Source    `json:"source" gorm:"not null"`
	Confidence        *float64  `json:"confidence,omitempty"`
	ProviderMessageID *string   `json:"provider_message_id,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (JobApplication) TableName() string {
	return "job_applications"
}

// StatusFromEventType maps a classifier event type to an application status.
func StatusFromEventType(eventType string) Status {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case "interview":
		return StatusInterview
	case "offer":
		return StatusOffer
	case "rejected", "rejection":
		return StatusRejected
	default:
		return StatusApplied
	}
}

// ParseStatus accepts a status in any case. ok is false for unknown values.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "applied":
		return StatusApplied, true
	case "interview", "interviewing":
		return StatusInterview, true
	case "offer":
		return StatusOffer, true
	case "rejected", "rejection":
		return StatusRejected, true
	}
	return "", false
}

// AppliedDay truncates t to its UTC calendar day.
func AppliedDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
