package usecase

import (
	"context"
	"fmt"
	"strings"

	authdomain "jobtrack-backend/internal/auth/domain"
	authdto "jobtrack-backend/internal/auth/dto"
	"jobtrack-backend/internal/auth/repository"
	"jobtrack-backend/pkg/imap"
	"jobtrack-backend/pkg/secret"

	"github.com/golang-jwt/jwt/v5"
)

// IMAPVerifier checks that a mailbox login works before it is stored
type IMAPVerifier func(ctx context.Context, cfg imap.Config) error

// DialIMAP logs in once and closes the session
func DialIMAP(ctx context.Context, cfg imap.Config) error {
	src, err := imap.Dial(ctx, cfg)
	if err != nil {
		return err
	}
	return src.Close()
}

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	userRepo  repository.UserRepository
	fcmRepo   repository.FCMTokenRepository
	jwtSecret []byte
	verify    IMAPVerifier
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(userRepo repository.UserRepository, fcmRepo repository.FCMTokenRepository, jwtSecret string, verify IMAPVerifier) AuthUsecase {
	if verify == nil {
		verify = DialIMAP
	}
	return &authUsecase{
		userRepo:  userRepo,
		fcmRepo:   fcmRepo,
		jwtSecret: []byte(jwtSecret),
		verify:    verify,
	}
}

func (u *authUsecase) ValidateToken(tokenString string) (*authdomain.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return u.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, ErrInvalidToken
	}

	return u.GetUser(userID)
}

func (u *authUsecase) GetUser(userID string) (*authdomain.User, error) {
	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (u *authUsecase) ConnectIMAP(ctx context.Context, userID string, req *authdto.ConnectIMAPRequest) (*authdomain.User, error) {
	user, err := u.GetUser(userID)
	if err != nil {
		return nil, err
	}

	cfg := imap.Config{
		Host:     strings.TrimSpace(req.Host),
		Port:     req.Port,
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
		UseTLS:   req.UseTLS == nil || *req.UseTLS,
	}
	if cfg.Port == 0 {
		cfg.Port = imap.DefaultPort
	}
	if err := u.verify(ctx, cfg); err != nil {
		return nil, fmt.Errorf("imap login failed: %w", err)
	}

	user.Provider = authdomain.ProviderIMAP
	user.IMAPHost = cfg.Host
	user.IMAPPort = cfg.Port
	user.IMAPUsername = cfg.Username
	user.IMAPPassword = secret.String(cfg.Password)
	user.IMAPUseTLS = cfg.UseTLS
	if err := u.userRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (u *authUsecase) RegisterFCMToken(userID string, req *authdto.RegisterFCMRequest) error {
	return u.fcmRepo.SaveToken(userID, req.Token, req.DeviceInfo)
}

func (u *authUsecase) UnregisterFCMToken(userID, token string) error {
	return u.fcmRepo.DeleteUserToken(userID, token)
}
