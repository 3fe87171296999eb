package domain

import (
	"time"

	"jobtrack-backend/pkg/secret"
)

const (
	ProviderGoogle = "google"
	ProviderIMAP   = "imap"
)

type User struct {
	ID        string `json:"id" gorm:"primaryKey"`
	Email     string `json:"email" gorm:"uniqueIndex;not null"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Provider  string `json:"provider" gorm:"default:google"` // "google" or "imap"

	// Mail credential; sealed at rest
	GoogleRefreshToken secret.String `json:"-"`
	IMAPHost           string        `json:"imap_host,omitempty"`
	IMAPPort           int           `json:"imap_port,omitempty"`
	IMAPUsername       string        `json:"imap_username,omitempty"`
	IMAPPassword       secret.String `json:"-"`
	IMAPUseTLS         bool          `json:"imap_use_tls,omitempty" gorm:"default:true"`

	// Sync bookkeeping. IsSyncing is only flipped through compare-and-set.
	IsSyncing  bool       `json:"is_syncing" gorm:"not null;default:false"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasMailCredential reports whether a sync can authenticate to the user's mailbox.
func (u *User) HasMailCredential() bool {
	if u.Provider == ProviderIMAP {
		return u.IMAPHost != "" && u.IMAPUsername != "" && u.IMAPPassword != ""
	}
	return u.GoogleRefreshToken != ""
}
