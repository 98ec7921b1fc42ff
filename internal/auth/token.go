// Package auth holds the credential verifiers and the token service. Nothing
// here touches the user store.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"authgate/internal/domain"
)

// Purpose separates magic-link tokens from session tokens so one can never be
// presented as the other.
type Purpose string

const (
	PurposeMagicLink Purpose = "magic-link"
	PurposeSession   Purpose = "session"
)

var (
	// ErrExpiredToken means the signature was valid but the expiry has passed.
	ErrExpiredToken = errors.New("token expired")
	// ErrInvalidToken covers malformed tokens, bad signatures and wrong purposes.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the JWT payload carried by every token.
type Claims struct {
	jwt.RegisteredClaims
	Role    domain.Role `json:"role"`
	Purpose Purpose     `json:"purpose"`
}

// Token is a signed token together with the identifiers callers may need to
// track it.
type Token struct {
	Value     string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Subject is what a verified token proves.
type Subject struct {
	UserID    string
	Role      domain.Role
	Purpose   Purpose
	TokenID   string
	ExpiresAt time.Time
}

// TokenService issues and validates HS256 tokens. It holds no mutable state.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

func NewTokenService(secret string) (*TokenService, error) {
	if secret == "" {
		return nil, fmt.Errorf("token signing secret is required")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// WithClock returns a copy of the service that reads time from now.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	return &TokenService{secret: s.secret, now: now}
}

func (s *TokenService) Issue(subjectID string, role domain.Role, purpose Purpose, ttl time.Duration) (Token, error) {
	if subjectID == "" {
		return Token{}, fmt.Errorf("token subject is required")
	}
	now := s.now()
	tok := Token{
		ID:        uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tok.ID,
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(tok.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(tok.ExpiresAt),
		},
		Role:    role,
		Purpose: purpose,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	tok.Value = signed
	return tok, nil
}

// Verify checks signature, expiry and purpose.
func (s *TokenService) Verify(tokenString string, purpose Purpose) (Subject, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Subject{}, ErrExpiredToken
		}
		return Subject{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Purpose != purpose {
		return Subject{}, fmt.Errorf("%w: purpose %q", ErrInvalidToken, claims.Purpose)
	}
	if claims.Subject == "" {
		return Subject{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	subject := Subject{
		UserID:  claims.Subject,
		Role:    claims.Role,
		Purpose: claims.Purpose,
		TokenID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		subject.ExpiresAt = claims.ExpiresAt.Time
	}
	return subject, nil
}
