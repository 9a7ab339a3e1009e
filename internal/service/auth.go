package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"habitchallenge/internal/config"
	"habitchallenge/internal/model"
	"habitchallenge/internal/repository"
)

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	UserID int64      `json:"user_id"`
	Email  string     `json:"email"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Access token parse errors
var (
	ErrAccessTokenExpired = errors.New("access token expired")
	ErrAccessTokenInvalid = errors.New("access token invalid")
)

// AuthService issues access tokens and rotates refresh tokens with reuse detection.
type AuthService struct {
	refreshTokenRepo repository.RefreshTokenRepository
	userRepo         repository.UserRepository
	secret           []byte
	accessMaxAge     time.Duration
	refreshMaxAge    time.Duration
	now              func() time.Time
}

func NewAuthService(refreshTokenRepo repository.RefreshTokenRepository, userRepo repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		refreshTokenRepo: refreshTokenRepo,
		userRepo:         userRepo,
		secret:           []byte(cfg.JWTSecret),
		accessMaxAge:     time.Duration(cfg.AccessTokenMaxAge) * time.Second,
		refreshMaxAge:    time.Duration(cfg.RefreshTokenMaxAge) * time.Second,
		now:              time.Now,
	}
}

// GenerateTokenPair issues an access token for user and persists a new refresh token.
func (s *AuthService) GenerateTokenPair(ctx context.Context, user *model.User, userAgent string) (*model.TokenPair, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	raw, _, err := s.newRefreshToken(ctx, user.ID, userAgent)
	if err != nil {
		return nil, err
	}

	return &model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: raw,
		ExpiresIn:    int(s.accessMaxAge / time.Second),
	}, nil
}

func (s *AuthService) newRefreshToken(ctx context.Context, userID int64, userAgent string) (string, *model.RefreshToken, error) {
	raw := uuid.New().String()
	token := &model.RefreshToken{
		UserID:    userID,
		TokenHash: hashToken(raw),
		ExpiresAt: s.now().Add(s.refreshMaxAge),
	}
	if userAgent != "" {
		token.UserAgent = &userAgent
	}

	if err := s.refreshTokenRepo.Create(ctx, token); err != nil {
		return "", nil, fmt.Errorf("store refresh token: %w", err)
	}
	return raw, token, nil
}

// RefreshTokens exchanges a live refresh token for a new pair and revokes the
// old one. Presenting a revoked token revokes every token of its owner.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshTokenRaw, userAgent string) (*model.TokenPair, error) {
	token, err := s.refreshTokenRepo.FindByTokenHash(ctx, hashToken(refreshTokenRaw))
	if err != nil {
		return nil, err
	}

	if token.IsRevoked() {
		if err := s.refreshTokenRepo.RevokeAllForUser(ctx, token.UserID); err != nil {
			log.Printf("[AuthService] Revoke token family FAILED: user=%d err=%v", token.UserID, err)
		} else {
			log.Printf("[AuthService] Refresh token reuse: revoked all tokens of user=%d", token.UserID)
		}
		return nil, model.ErrRefreshTokenReused
	}

	if token.IsExpiredAt(s.now()) {
		return nil, model.ErrRefreshTokenExpired
	}

	user, err := s.userRepo.GetByID(ctx, token.UserID)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	raw, next, err := s.newRefreshToken(ctx, user.ID, userAgent)
	if err != nil {
		return nil, err
	}

	if err := s.refreshTokenRepo.Revoke(ctx, token.ID, &next.ID); err != nil {
		return nil, fmt.Errorf("revoke rotated token: %w", err)
	}

	return &model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: raw,
		ExpiresIn:    int(s.accessMaxAge / time.Second),
	}, nil
}

// RevokeRefreshToken revokes one token. Unknown tokens are not an error.
func (s *AuthService) RevokeRefreshToken(ctx context.Context, refreshTokenRaw string) error {
	token, err := s.refreshTokenRepo.FindByTokenHash(ctx, hashToken(refreshTokenRaw))
	if errors.Is(err, model.ErrRefreshTokenNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if token.IsRevoked() {
		return nil
	}
	return s.refreshTokenRepo.Revoke(ctx, token.ID, nil)
}

// PurgeExpiredTokens deletes refresh tokens that expired more than retain ago.
func (s *AuthService) PurgeExpiredTokens(ctx context.Context, retain time.Duration) (int64, error) {
	n, err := s.refreshTokenRepo.DeleteExpired(ctx, retain)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("[AuthService] Purged %d expired refresh tokens", n)
	}
	return n, nil
}

// ParseAccessToken validates signature, algorithm and expiry.
func (s *AuthService) ParseAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrAccessTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrAccessTokenInvalid, err)
	}
	if !token.Valid || claims.UserID <= 0 || !claims.Role.Valid() {
		return nil, ErrAccessTokenInvalid
	}
	return claims, nil
}

func (s *AuthService) generateAccessToken(user *model.User) (string, error) {
	now := s.now()
	claims := AccessClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessMaxAge)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
