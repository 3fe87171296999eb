package usecase

import (
	"context"
	"errors"

	authdomain "jobtrack-backend/internal/auth/domain"
	authdto "jobtrack-backend/internal/auth/dto"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUserNotFound = errors.New("user not found")
)

// AuthUsecase validates API tokens and manages the caller's mail and
// device credentials. Tokens are issued by the login service.
type AuthUsecase interface {
	ValidateToken(tokenString string) (*authdomain.User, error)
	GetUser(userID string) (*authdomain.User, error)

	// ConnectIMAP verifies the mailbox login and stores it on the user
	ConnectIMAP(ctx context.Context, userID string, req *authdto.ConnectIMAPRequest) (*authdomain.User, error)

	RegisterFCMToken(userID string, req *authdto.RegisterFCMRequest) error
	UnregisterFCMToken(userID, token string) error
}
