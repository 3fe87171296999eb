package domain

import "errors"

// ResultKind lets callers render distinct messages for a failed run.
type ResultKind string

const (
	ResultOK             ResultKind = "ok"
	ResultAlreadySyncing ResultKind = "already_syncing"
	ResultNoCredential   ResultKind = "no_credential"
	ResultInternal       ResultKind = "internal"
)

type SyncResult struct {
	RunID    string `json:"run_id,omitempty"`
	Provider string `json:"provider,omitempty"`
	Added    int    `json:"added"`
	Skipped  int    `json:"skipped"`
}

// Classify maps a RunSync error to its result kind.
func Classify(err error) ResultKind {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, ErrSyncInProgress):
		return ResultAlreadySyncing
	case errors.Is(err, ErrCredentialMissing), errors.Is(err, ErrUserNotFound):
		return ResultNoCredential
	default:
		return ResultInternal
	}
}
