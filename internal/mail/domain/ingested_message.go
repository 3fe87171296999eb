package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Terminal states recorded on IngestedMessage.Outcome
const (
	OutcomeAdded             = "added"
	OutcomeHeuristicRejected = "heuristic_rejected"
	OutcomeClassifierError   = "classifier_error"
	OutcomeNotJobRelated     = "not_job_related"
	OutcomeUnknownFields     = "unknown_fields"
	OutcomeFailed            = "failed"

	// OutcomeDuplicate is never stored; the row belongs to an earlier run.
	OutcomeDuplicate = "duplicate"
)

// IngestedMessage is the audit trail of one provider message. Stages append
// annotations; rows are never deleted.
type IngestedMessage struct {
	ID                string    `json:"id" gorm:"primaryKey"`
	UserID            string    `json:"user_id" gorm:"not null;uniqueIndex:idx_ingested_user_message,priority:1"`
	ProviderMessageID string    `json:"provider_message_id" gorm:"not null;uniqueIndex:idx_ingested_user_message,priority:2"`
	Provider          string    `json:"provider"`
	ThreadID          *string   `json:"thread_id"`
	Subject           *string   `json:"subject"`
	FromEmail         *string   `json:"from_email"`
	ReceivedAt        time.Time `json:"received_at" gorm:"index"`

	HeuristicPassed *bool `json:"heuristic_passed"`
	HeuristicScore  *int  `json:"heuristic_score"`

	MLEventType    *string  `json:"ml_event_type"`
	MLConfidence   *float64 `json:"ml_confidence"`
	MLReason       *string  `json:"ml_reason"`
	MLModelVersion *string  `json:"ml_model_version"`

	LLMUsed       bool     `json:"llm_used" gorm:"not null;default:false"`
	LLMExtracted  RawJSON  `json:"llm_extracted,omitempty" gorm:"type:jsonb"`
	LLMModel      *string  `json:"llm_model"`
	LLMConfidence *float64 `json:"llm_confidence"`
	LLMError      *string  `json:"llm_error"`

	Outcome   *string   `json:"outcome"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (IngestedMessage) TableName() string {
	return "ingested_messages"
}

// MessageAnnotation is a partial update of an IngestedMessage. Only non-nil
// fields are written.
type MessageAnnotation struct {
	HeuristicPassed *bool
	HeuristicScore  *int

	MLEventType    *string
	MLConfidence   *float64
	MLReason       *string
	MLModelVersion *string

	LLMUsed       *bool
	LLMExtracted  RawJSON
	LLMModel      *string
	LLMConfidence *float64
	LLMError      *string

	Outcome *string
}

// Columns maps the annotation to column updates.
func (a MessageAnnotation) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	set := func(name string, isSet bool, v interface{}) {
		if isSet {
			cols[name] = v
		}
	}
	set("heuristic_passed", a.HeuristicPassed != nil, a.HeuristicPassed)
	set("heuristic_score", a.HeuristicScore != nil, a.HeuristicScore)
	set("ml_event_type", a.MLEventType != nil, a.MLEventType)
	set("ml_confidence", a.MLConfidence != nil, a.MLConfidence)
	set("ml_reason", a.MLReason != nil, a.MLReason)
	set("ml_model_version", a.MLModelVersion != nil, a.MLModelVersion)
	set("llm_used", a.LLMUsed != nil, a.LLMUsed)
	set("llm_extracted", len(a.LLMExtracted) > 0, a.LLMExtracted)
	set("llm_model", a.LLMModel != nil, a.LLMModel)
	set("llm_confidence", a.LLMConfidence != nil, a.LLMConfidence)
	set("llm_error", a.LLMError != nil, a.LLMError)
	set("outcome", a.Outcome != nil, a.Outcome)
	return cols
}

// RawJSON stores a JSON document in a jsonb column.
type RawJSON json.RawMessage

// Value implements driver.Valuer
func (j RawJSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements sql.Scanner
func (j *RawJSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = RawJSON(v)
	default:
		return fmt.Errorf("RawJSON: unsupported scan type %T", value)
	}
	return nil
}

func (j RawJSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *RawJSON) UnmarshalJSON(data []byte) error {
	*j = append((*j)[:0], data...)
	return nil
}
