package middleware

// identity.go defines helper functions shared across middleware files and
// handlers: access to the Principal that Authenticate stored in the Echo
// context. When no principal is present (unauthenticated routes, or the
// rate limiter running before authentication), "guest" is used as the
// identity for keying purposes.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/reviewlens/reviewlens/internal/model"
)

// CurrentPrincipal returns the authenticated principal stored by the
// Authenticate middleware, and whether one is present.
func CurrentPrincipal(c echo.Context) (model.Principal, bool) {
	p, ok := c.Get(principalKey).(model.Principal)
	return p, ok
}

// currentUserID extracts a user identifier for rate-limit keys. It
// returns "guest" when no user is authenticated.
func currentUserID(c echo.Context) string {
	if p, ok := CurrentPrincipal(c); ok {
		return strconv.FormatUint(p.UserID, 10)
	}
	return "guest"
}
