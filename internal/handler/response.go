package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"coursehub/internal/auth"
	"coursehub/internal/errors"
)

// MessageResponse is returned by endpoints that have nothing else to report.
type MessageResponse struct {
	Message string `json:"message"`
}

// respondError converts a service error into an echo error carrying the
// standard error body. The original error is kept for the request logger.
func respondError(err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse()).SetInternal(err)
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return respondError(fmt.Errorf("%w: invalid request body", errors.ErrValidation))
	}

	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: err.Error(),
			Code:  "VALIDATION_ERROR",
		}).SetInternal(err)
	}
	return nil
}

// currentIdentity returns the caller resolved by the guard middleware.
func currentIdentity(c echo.Context) (auth.Identity, error) {
	id, ok := auth.IdentityFromEcho(c)
	if !ok {
		return auth.Identity{}, respondError(fmt.Errorf("%w: %w", errors.ErrUnauthorized, errors.ErrMissingToken))
	}
	return id, nil
}

// parseID reads an unsigned id. An empty value yields zero.
func parseID(name, value string) (uint, error) {
	if value == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(value, 10, 0)
	if err != nil || id == 0 {
		return 0, respondError(fmt.Errorf("%w: %s must be a positive integer", errors.ErrValidation, name))
	}
	return uint(id), nil
}

// pathID reads a required id path parameter.
func pathID(c echo.Context, name string) (uint, error) {
	value := c.Param(name)
	if value == "" {
		return 0, respondError(fmt.Errorf("%w: %s is required", errors.ErrValidation, name))
	}
	return parseID(name, value)
}
