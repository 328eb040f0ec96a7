package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	apperrors "coursehub/internal/errors"
)

// RevocationChecker reports whether a token id has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) bool
}

// Guard authenticates inbound requests from their Authorization header.
type Guard struct {
	tokens  *TokenService
	revoked RevocationChecker
}

// NewGuard creates a guard. revoked may be nil when no denylist is configured.
func NewGuard(tokens *TokenService, revoked RevocationChecker) *Guard {
	return &Guard{tokens: tokens, revoked: revoked}
}

// Authenticate resolves the identity behind an Authorization header value.
// A missing header yields ErrUnauthorized; anything present but unusable
// yields ErrForbidden wrapping the token error.
func (g *Guard) Authenticate(ctx context.Context, header string) (Identity, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Identity{}, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, apperrors.ErrMissingToken)
	}

	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return Identity{}, fmt.Errorf("%w: %w", apperrors.ErrForbidden, apperrors.ErrMalformedToken)
	}

	id, err := g.tokens.Verify(token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", apperrors.ErrForbidden, err)
	}

	if g.revoked != nil && g.revoked.IsRevoked(ctx, id.TokenID) {
		return Identity{}, fmt.Errorf("%w: %w", apperrors.ErrForbidden, apperrors.ErrRevokedToken)
	}
	return id, nil
}

// Middleware returns echo middleware that rejects unauthenticated requests and
// stores the Identity under ContextKey and in the request context.
func (g *Guard) Middleware() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  ContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization,
		ParseTokenFunc: func(c echo.Context, header string) (interface{}, error) {
			return g.Authenticate(c.Request().Context(), header)
		},
		SuccessHandler: func(c echo.Context) {
			if id, ok := IdentityFromEcho(c); ok {
				c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
			}
		},
		ErrorHandler: func(c echo.Context, err error) error {
			httpErr := apperrors.MapErrorToHTTP(err)
			if httpErr.StatusCode == http.StatusInternalServerError {
				// header extraction failed before any token was seen
				httpErr = apperrors.MapErrorToHTTP(fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, apperrors.ErrMissingToken))
			}
			return c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
		},
	})
}
