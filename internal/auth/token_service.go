package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "coursehub/internal/errors"
	"coursehub/internal/model"
)

// Claims represents JWT claims.
type Claims struct {
	UserID       uint        `json:"uid"`
	Level        model.Level `json:"level"`
	DepartmentID uint        `json:"department_id"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies signed session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a TokenService.
type Option func(*TokenService)

// WithClock overrides the time source used for issuing and verifying tokens.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) {
		s.now = now
	}
}

// NewTokenService creates a token service signing with secret. Tokens are
// valid for ttl after issue.
func NewTokenService(secret string, ttl time.Duration, opts ...Option) *TokenService {
	s := &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue generates a new token for the user and returns it with its expiry.
func (s *TokenService) Issue(user *model.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := jwt.NewNumericDate(now.Add(s.ttl))
	claims := &Claims{
		UserID:       user.ID,
		Level:        user.Level,
		DepartmentID: user.DepartmentID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			ExpiresAt: expiresAt,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt.UTC(), nil
}

// Verify validates a token and returns the identity it carries. It never
// touches external state.
func (s *TokenService) Verify(token string) (Identity, error) {
	if token == "" {
		return Identity{}, apperrors.ErrMissingToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, apperrors.ErrExpiredToken
		}
		return Identity{}, fmt.Errorf("%w: %v", apperrors.ErrMalformedToken, err)
	}

	level, ok := model.ParseLevel(string(claims.Level))
	if claims.UserID == 0 || !ok {
		return Identity{}, fmt.Errorf("%w: incomplete claims", apperrors.ErrMalformedToken)
	}

	return Identity{
		UserID:       claims.UserID,
		Level:        level,
		DepartmentID: claims.DepartmentID,
		TokenID:      claims.ID,
		ExpiresAt:    claims.ExpiresAt.UTC(),
	}, nil
}

func (s *TokenService) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.New("unexpected signing method")
	}
	return s.secret, nil
}
