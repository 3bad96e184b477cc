// Package token issues and verifies the HS256 bearer tokens accepted by the API.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken indicates the token failed validation.
var ErrInvalidToken = errors.New("invalid token")

// ErrNotConfigured indicates no signing secret was provided.
var ErrNotConfigured = errors.New("token service is not configured")

// Claims carries the verified subject of a bearer token. Roles and permissions
// are never trusted from the token; they are resolved from the database per
// request so that deactivating a role takes effect immediately.
type Claims struct {
	jwt.RegisteredClaims
}

// Service signs and verifies tokens with a shared secret.
type Service struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a token service. An empty secret yields a service that
// refuses to issue or verify anything.
func NewService(secret, issuer string, ttl time.Duration, opts ...Option) *Service {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	s := &Service{
		issuer: strings.TrimSpace(issuer),
		ttl:    ttl,
		now:    time.Now,
	}
	if trimmed := strings.TrimSpace(secret); trimmed != "" {
		s.secret = []byte(trimmed)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether the service can issue and verify tokens.
func (s *Service) Enabled() bool {
	return s != nil && len(s.secret) > 0
}

// TTL returns the configured token lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

// Generate signs a JWT for the given user id using HS256.
func (s *Service) Generate(userID string) (string, error) {
	if !s.Enabled() {
		return "", ErrNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("user id is required")
	}

	now := s.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and required claims, returning the subject.
func (s *Service) Verify(raw string) (string, error) {
	if !s.Enabled() {
		return "", ErrNotConfigured
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }))
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return "", ErrInvalidToken
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", ErrInvalidToken
	}
	return subject, nil
}
