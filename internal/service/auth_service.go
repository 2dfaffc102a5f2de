package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stemsi/oralexam/internal/config"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAdminLoginDisabled = errors.New("admin login is disabled: ADMIN_PASSWORD_HASH is not set")
	ErrSessionInvalidated = errors.New("session invalidated")
)

// TokenType distinguishes exam-taker vs admin tokens.
type TokenType string

const (
	TokenTypeAttempt TokenType = "attempt"
	TokenTypeAdmin   TokenType = "admin"
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
	AttemptID string    `json:"attempt_id,omitempty"` // Attempt only
}

// loginRegistry is satisfied by RedisStore.
type loginRegistry interface {
	Remember(ctx context.Context, key string, ttl time.Duration) error
	Known(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// AuthService handles the admin password, JWTs and admin logins.
type AuthService struct {
	cfg    *config.Config
	logins loginRegistry
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, logins loginRegistry) *AuthService {
	return &AuthService{cfg: cfg, logins: logins}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckAdminPassword compares a plaintext password against ADMIN_PASSWORD_HASH.
func (s *AuthService) CheckAdminPassword(password string) error {
	if s.cfg.AdminPasswordHash == "" {
		return ErrAdminLoginDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// AdminLogin checks the password and issues an admin token registered in Redis.
func (s *AuthService) AdminLogin(ctx context.Context, password string) (string, time.Time, error) {
	if err := s.CheckAdminPassword(password); err != nil {
		return "", time.Time{}, err
	}

	jti := uuid.New().String()
	expiresAt := time.Now().Add(s.cfg.JWTExpiry)
	token, err := s.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   "admin",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenType: TokenTypeAdmin,
	})
	if err != nil {
		return "", time.Time{}, err
	}

	if err := s.logins.Remember(ctx, config.CacheKey.AdminLoginKey(jti), s.cfg.JWTExpiry); err != nil {
		return "", time.Time{}, fmt.Errorf("store login: %w", err)
	}
	return token, expiresAt, nil
}

// GenerateAttemptToken creates the token that lets a client drive one attempt.
func (s *AuthService) GenerateAttemptToken(attemptID uuid.UUID) (string, error) {
	now := time.Now()
	return s.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   attemptID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType: TokenTypeAttempt,
		AttemptID: attemptID.String(),
	})
}

func (s *AuthService) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ValidateAdminSession checks that an admin token has not been logged out.
func (s *AuthService) ValidateAdminSession(ctx context.Context, jti string) error {
	ok, err := s.logins.Known(ctx, config.CacheKey.AdminLoginKey(jti))
	if err != nil {
		return fmt.Errorf("check login: %w", err)
	}
	if !ok {
		return ErrSessionInvalidated
	}
	return nil
}

// Logout revokes an admin token.
func (s *AuthService) Logout(ctx context.Context, jti string) error {
	return s.logins.Forget(ctx, config.CacheKey.AdminLoginKey(jti))
}
