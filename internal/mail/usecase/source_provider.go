package usecase

import (
	"context"

	authdomain "jobtrack-backend/internal/auth/domain"
	"jobtrack-backend/internal/mail/domain"
	"jobtrack-backend/pkg/gmail"
	"jobtrack-backend/pkg/imap"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// RefreshTokenStore persists rotated Google refresh tokens
type RefreshTokenStore interface {
	UpdateRefreshToken(userID, refreshToken string) error
}

type sourceProvider struct {
	gmail  *gmail.Service
	tokens RefreshTokenStore
	logger *zap.Logger
}

// NewSourceProvider resolves Gmail sources from the stored refresh token and
// IMAP sources from the stored app password.
func NewSourceProvider(gmailService *gmail.Service, tokens RefreshTokenStore, logger *zap.Logger) SourceProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &sourceProvider{gmail: gmailService, tokens: tokens, logger: logger.Named("mail-source")}
}

func (p *sourceProvider) SourceFor(ctx context.Context, user *authdomain.User) (MailSource, error) {
	if !user.HasMailCredential() {
		return nil, domain.ErrCredentialMissing
	}

	switch user.Provider {
	case authdomain.ProviderIMAP:
		src, err := imap.Dial(ctx, imap.Config{
			Host:     user.IMAPHost,
			Port:     user.IMAPPort,
			Username: user.IMAPUsername,
			Password: string(user.IMAPPassword),
			UseTLS:   user.IMAPUseTLS,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		current := string(user.GoogleRefreshToken)
		src, err := p.gmail.NewSource(ctx, current, p.onTokenRefresh(user.ID, current))
		if err != nil {
			return nil, err
		}
		return src, nil
	}
}

// onTokenRefresh stores the refresh token when Google rotates it.
func (p *sourceProvider) onTokenRefresh(userID, current string) gmail.TokenUpdateFunc {
	return func(token *oauth2.Token) error {
		if token.RefreshToken == "" || token.RefreshToken == current {
			return nil
		}
		current = token.RefreshToken
		p.logger.Info("google refresh token rotated", zap.String("user_id", userID))
		return p.tokens.UpdateRefreshToken(userID, token.RefreshToken)
	}
}
