package middleware

import (
	"time"

	applogger "SessionLens/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs each request once it completes. 5xx responses are
// logged as errors and requests slower than slow as warnings.
func RequestLogging(l *applogger.Logger, slow time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req, res := c.Request(), c.Response()
			elapsed := time.Since(start)
			fields := []applogger.Field{
				applogger.String("method", req.Method),
				applogger.String("route", c.Path()),
				applogger.String("uri", req.RequestURI),
				applogger.Int("status", res.Status),
				applogger.Int64("bytes", res.Size),
				applogger.Duration("duration_ms", elapsed),
			}
			switch {
			case res.Status >= 500:
				l.Error("http request failed", fields...)
			case slow > 0 && elapsed >= slow:
				l.Warn("http request slow", fields...)
			default:
				l.Debug("http request", fields...)
			}
			return nil
		}
	}
}
