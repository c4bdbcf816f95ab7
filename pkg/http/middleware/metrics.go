package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
)

// HTTPObserver receives one observation per served request.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, seconds float64)
}

// Metrics labels requests by their registered route pattern so that path
// parameters do not inflate label cardinality. Unmatched routes share one label.
func Metrics(o HTTPObserver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			o.ObserveHTTP(c.Request().Method, route, c.Response().Status, time.Since(start).Seconds())
			return nil
		}
	}
}
