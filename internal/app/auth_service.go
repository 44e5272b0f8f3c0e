package app

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"companion-ai/internal/cache"
	"companion-ai/internal/pkg/jwtutil"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidCredential = errors.New("invalid email or password")
	ErrTokenRevoked      = errors.New("token has been revoked")
)

type AuthOptions struct {
	JWTSecret     string
	JWTExpiration time.Duration
	// DemoMode accepts any well-formed email with a non-empty password.
	DemoMode     bool
	PasswordHash string
}

// AuthService issues session-bound tokens. Each login starts a new chat
// session.
type AuthService struct {
	opts        AuthOptions
	revocations cache.RevocationCache
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResult struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewAuthService(opts AuthOptions, revocations cache.RevocationCache) *AuthService {
	if revocations == nil {
		revocations = cache.NewMemoryRevocationCache()
	}
	return &AuthService{opts: opts, revocations: revocations}
}

func (s *AuthService) Login(_ context.Context, input LoginInput) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	password := strings.TrimSpace(input.Password)
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidInput
	}

	if !s.opts.DemoMode {
		if err := bcrypt.CompareHashAndPassword([]byte(s.opts.PasswordHash), []byte(password)); err != nil {
			return nil, ErrInvalidCredential
		}
	}

	sessionID := uuid.NewString()
	token, claims, err := jwtutil.GenerateToken(s.opts.JWTSecret, s.opts.JWTExpiration, sessionID, email)
	if err != nil {
		return nil, fmt.Errorf("issue token failed: %w", err)
	}
	return &AuthResult{
		Token:     token,
		SessionID: sessionID,
		Email:     email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Authenticate parses a bearer token and rejects logged-out ones.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*jwtutil.Claims, error) {
	claims, err := jwtutil.ParseToken(s.opts.JWTSecret, token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check token revocation failed: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Logout revokes the token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, claims *jwtutil.Claims) error {
	if claims == nil || claims.ExpiresAt == nil {
		return ErrInvalidInput
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if err := s.revocations.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("revoke token failed: %w", err)
	}
	return nil
}
