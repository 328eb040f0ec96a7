package auth

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"coursehub/internal/model"
)

// ContextKey is the echo context key the guard stores the Identity under.
const ContextKey = "user"

// Identity is the caller resolved from a verified token.
type Identity struct {
	UserID       uint        `json:"userId"`
	Level        model.Level `json:"level"`
	DepartmentID uint        `json:"departmentId"`
	TokenID      string      `json:"-"`
	ExpiresAt    time.Time   `json:"expiresAt"`
}

// IsAssistant reports whether the identity carries the assistant level.
func (i Identity) IsAssistant() bool {
	return i.Level == model.LevelAssistant
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored in ctx by the guard.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// IdentityFromEcho returns the identity the guard stored in the echo context.
func IdentityFromEcho(c echo.Context) (Identity, bool) {
	id, ok := c.Get(ContextKey).(Identity)
	return id, ok
}
