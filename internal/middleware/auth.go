package middleware // middleware provides shared request processing for handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/reviewlens/reviewlens/internal/service"
)

// principalKey is the context key under which Authenticate stores the
// resolved principal.
const principalKey = "principal"

// APIKeyHeader carries the API-key credential as an alternative to the
// Authorization bearer token.
const APIKeyHeader = "X-API-Key"

// authTimeout bounds the storage calls made while resolving a credential;
// an unauthenticated request fails fast instead of hanging.
const authTimeout = 5 * time.Second

// Authenticate returns an Echo middleware that resolves the request's
// credential (bearer access token or API key header) to a Principal and
// stores it in the context.  Every authentication failure is answered
// with the same generic 401 so callers learn nothing about which check
// failed; the specific kind is still written to the server log.  Only a
// storage outage is distinguishable, as a 503.
func Authenticate(ac *service.AccessControl, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			bearer := ""
			if h := c.Request().Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				bearer = strings.TrimPrefix(h, "Bearer ")
			}
			apiKey := c.Request().Header.Get(APIKeyHeader)

			ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
			defer cancel()

			p, err := ac.Authenticate(ctx, bearer, apiKey)
			if err != nil {
				if errors.Is(err, service.ErrStorageUnavailable) {
					return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable"})
				}
				log.Info("authentication rejected",
					zap.String("kind", err.Error()),
					zap.String("remote_ip", c.RealIP()),
					zap.String("path", c.Path()))
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			c.Set(principalKey, p)
			return next(c)
		}
	}
}
