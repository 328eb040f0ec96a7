package auth

import (
	"fmt"
	"slices"

	"github.com/labstack/echo/v4"

	apperrors "coursehub/internal/errors"
	"coursehub/internal/model"
)

// Capability is a predicate over an authenticated identity.
type Capability func(Identity) bool

// RequireLevel allows identities holding one of levels.
func RequireLevel(levels ...model.Level) Capability {
	return func(id Identity) bool {
		return slices.Contains(levels, id.Level)
	}
}

// InDepartment allows identities belonging to departmentID.
func InDepartment(departmentID uint) Capability {
	return func(id Identity) bool {
		return id.DepartmentID == departmentID
	}
}

// AnyOf allows identities satisfying at least one of caps.
func AnyOf(caps ...Capability) Capability {
	return func(id Identity) bool {
		for _, c := range caps {
			if c(id) {
				return true
			}
		}
		return false
	}
}

// Authorize reports whether id holds capability. A zero identity never does.
func Authorize(id Identity, capability Capability) bool {
	if id.UserID == 0 || capability == nil {
		return false
	}
	return capability(id)
}

// Require returns echo middleware that admits only identities holding
// capability. It must run behind Guard.Middleware.
func Require(capability Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, _ := IdentityFromEcho(c)
			if !Authorize(id, capability) {
				httpErr := apperrors.MapErrorToHTTP(fmt.Errorf("%w: insufficient level", apperrors.ErrForbidden))
				return c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
			}
			return next(c)
		}
	}
}
