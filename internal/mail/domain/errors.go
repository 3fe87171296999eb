package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSyncInProgress means another run holds the user's sync lock.
	ErrSyncInProgress    = errors.New("sync already running for this user")
	ErrCredentialMissing = errors.New("mail account not connected for this user")
	ErrUserNotFound      = errors.New("user not found")
)

// MailSourceError wraps a failed mailbox list/fetch call.
type MailSourceError struct {
	Op  string
	Err error
}

func (e *MailSourceError) Error() string {
	return fmt.Sprintf("mail source %s: %v", e.Op, e.Err)
}

func (e *MailSourceError) Unwrap() error { return e.Err }

type ClassifierError struct {
	Err error
}

func (e *ClassifierError) Error() string {
	return "ML_ERROR: " + e.Err.Error()
}

func (e *ClassifierError) Unwrap() error { return e.Err }

type LLMError struct {
	Err error
}

func (e *LLMError) Error() string {
	return e.Err.Error()
}

func (e *LLMError) Unwrap() error { return e.Err }

// StoreError marks a persistence failure. It always aborts the run.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
