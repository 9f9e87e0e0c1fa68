package auth

import (
	"context"
	"errors"
	"time"

	"github.com/congo-pay/backoffice/internal/config"
	"github.com/congo-pay/backoffice/internal/identity"
)

var (
	// ErrInvalidToken covers malformed, expired and wrongly signed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenRevoked is returned once the user's token version moved on.
	ErrTokenRevoked = errors.New("token version invalidated")
)

// Service issues and verifies staff session tokens.
type Service struct {
	cfg    config.Config
	idRepo identity.Repository
	now    func() time.Time
}

// NewService builds the token service.
func NewService(cfg config.Config, idRepo identity.Repository) *Service {
	return &Service{cfg: cfg, idRepo: idRepo, now: time.Now}
}

// TokenPair is returned on login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login issues a token pair for an authenticated user.
func (s *Service) Login(user identity.User) (TokenPair, error) {
	now := s.now()
	access, err := signHS256(newClaims(user.ID, string(user.Role), user.TokenVersion, kindAccess, now, s.cfg.AccessTokenTTL), []byte(s.cfg.JWTSecret))
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := signHS256(newClaims(user.ID, string(user.Role), user.TokenVersion, kindRefresh, now, s.cfg.RefreshTokenTTL), []byte(s.cfg.RefreshSecret))
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(s.cfg.AccessTokenTTL.Seconds())}, nil
}

// Verify checks an access token and resolves the acting staff member. The
// role is read from the store, not the token, so demotions apply immediately.
func (s *Service) Verify(ctx context.Context, accessToken string) (identity.Actor, error) {
	claims, err := parseHS256(accessToken, []byte(s.cfg.JWTSecret), kindAccess)
	if err != nil {
		return identity.Actor{}, ErrInvalidToken
	}
	user, err := s.current(ctx, claims)
	if err != nil {
		return identity.Actor{}, err
	}
	return user.Actor(), nil
}

// Refresh verifies the refresh token and returns a new access token if valid.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	claims, err := parseHS256(refreshToken, []byte(s.cfg.RefreshSecret), kindRefresh)
	if err != nil {
		return "", 0, ErrInvalidToken
	}
	user, err := s.current(ctx, claims)
	if err != nil {
		return "", 0, err
	}

	signed, err := signHS256(newClaims(user.ID, string(user.Role), user.TokenVersion, kindAccess, s.now(), s.cfg.AccessTokenTTL), []byte(s.cfg.JWTSecret))
	if err != nil {
		return "", 0, err
	}
	return signed, int64(s.cfg.AccessTokenTTL.Seconds()), nil
}

// Logout increments token version so older tokens become invalid.
func (s *Service) Logout(ctx context.Context, userID string) error {
	user, err := s.idRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	return s.idRepo.UpdateTokenVersion(ctx, user.ID, user.TokenVersion+1)
}

func (s *Service) current(ctx context.Context, claims Claims) (identity.User, error) {
	user, err := s.idRepo.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return identity.User{}, ErrInvalidToken
		}
		return identity.User{}, err
	}
	if user.TokenVersion != claims.Version {
		return identity.User{}, ErrTokenRevoked
	}
	return user, nil
}
