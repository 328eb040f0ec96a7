package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "coursehub/internal/errors"
	"coursehub/internal/model"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestTokenService(secret string) (*TokenService, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return NewTokenService(secret, time.Hour, WithClock(clock.Now)), clock
}

var testUser = &model.User{ID: 42, Level: model.LevelStudent, DepartmentID: 3}

func TestTokenService_IssueAndVerify(t *testing.T) {
	svc, clock := newTestTokenService("secret")

	token, expiresAt, err := svc.Issue(testUser)
	require.NoError(t, err)
	assert.Equal(t, clock.now.Add(time.Hour), expiresAt)

	id, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id.UserID)
	assert.Equal(t, model.LevelStudent, id.Level)
	assert.Equal(t, uint(3), id.DepartmentID)
	assert.NotEmpty(t, id.TokenID)
	assert.Equal(t, expiresAt, id.ExpiresAt)
}

func TestTokenService_UniqueTokenIDs(t *testing.T) {
	svc, _ := newTestTokenService("secret")

	t1, _, err := svc.Issue(testUser)
	require.NoError(t, err)
	t2, _, err := svc.Issue(testUser)
	require.NoError(t, err)

	id1, err := svc.Verify(t1)
	require.NoError(t, err)
	id2, err := svc.Verify(t2)
	require.NoError(t, err)
	assert.NotEqual(t, id1.TokenID, id2.TokenID)
}

func TestTokenService_Expiry(t *testing.T) {
	svc, clock := newTestTokenService("secret")

	token, _, err := svc.Issue(testUser)
	require.NoError(t, err)

	clock.Advance(time.Hour - time.Second)
	_, err = svc.Verify(token)
	assert.NoError(t, err)

	// expired exactly at expiresAt
	clock.Advance(time.Second)
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, apperrors.ErrExpiredToken)

	clock.Advance(24 * time.Hour)
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, apperrors.ErrExpiredToken)
}

func TestTokenService_VerifyFailures(t *testing.T) {
	svc, clock := newTestTokenService("secret")
	other, _ := newTestTokenService("another-secret")

	foreign, _, err := other.Issue(testUser)
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		UserID: 1,
		Level:  model.LevelStudent,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Level: model.LevelStudent,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: 1,
		Level:  model.LevelStudent,
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"empty", "", apperrors.ErrMissingToken},
		{"garbage", "not-a-token", apperrors.ErrMalformedToken},
		{"different key", foreign, apperrors.ErrMalformedToken},
		{"none algorithm", noneToken, apperrors.ErrMalformedToken},
		{"missing user", noUser, apperrors.ErrMalformedToken},
		{"missing expiry", noExpiry, apperrors.ErrMalformedToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTokenService_NotYetValid(t *testing.T) {
	svc, clock := newTestTokenService("secret")

	token, _, err := svc.Issue(testUser)
	require.NoError(t, err)

	clock.Advance(-time.Minute)
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, apperrors.ErrMalformedToken)
}
