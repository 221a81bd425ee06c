package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/reviewlens/reviewlens/internal/service"
)

// RecordUsage returns a middleware that reports endpoint, status and
// latency for every authenticated request to the UsageRecorder.  The
// hand-off is non-blocking, so a slow or broken usage store never delays
// the response.  Requests without a principal (failed authentication)
// are not recorded.
func RecordUsage(rec *service.UsageRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			p, ok := CurrentPrincipal(c)
			if !ok {
				return err
			}
			status := c.Response().Status
			if err != nil {
				if he, isHTTP := err.(*echo.HTTPError); isHTTP {
					status = he.Code
				}
			}
			endpoint := c.Request().Method + " " + c.Path()
			rec.Record(p.UserID, endpoint, status, time.Since(start))
			return err
		}
	}
}
