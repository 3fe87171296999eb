package dto

import "jobtrack-backend/internal/mail/domain"

// SyncResponse is returned by the manual sync endpoints
type SyncResponse struct {
	OK       bool              `json:"ok"`
	RunID    string            `json:"run_id,omitempty"`
	Provider string            `json:"provider,omitempty"`
	Added    int               `json:"added"`
	Skipped  int               `json:"skipped"`
	Kind     domain.ResultKind `json:"kind"`
	Error    string            `json:"error,omitempty"`
}

func NewSyncResponse(result *domain.SyncResult, err error) SyncResponse {
	resp := SyncResponse{OK: err == nil, Kind: domain.Classify(err)}
	if result != nil {
		resp.RunID = result.RunID
		resp.Provider = result.Provider
		resp.Added = result.Added
		resp.Skipped = result.Skipped
	}
	switch resp.Kind {
	case domain.ResultAlreadySyncing:
		resp.Error = "A sync is already running for this account"
	case domain.ResultNoCredential:
		resp.Error = "Connect your mailbox before syncing"
	case domain.ResultInternal:
		resp.Error = err.Error()
	}
	return resp
}
