package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// Logging writes one structured line per HTTP request.
func Logging(logger *logrus.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			latency := time.Since(start)
			if err != nil {
				c.Error(err)
			}

			entry := logger.WithFields(logrus.Fields{
				"request_id": RequestIDFromContext(c),
				"method":     c.Request().Method,
				"path":       c.Request().URL.Path,
				"status":     c.Response().Status,
				"latency":    latency.String(),
			})
			if client := ClientIDFromContext(c); client != "" {
				entry = entry.WithField("client_id", client)
			}
			if err != nil {
				entry.WithError(err).Warn("request failed")
			} else {
				entry.Info("request served")
			}
			return err
		}
	}
}

// HTTPRecorder receives per-request measurements; metrics.Collector implements it.
type HTTPRecorder interface {
	HTTPRequest(method, path string, status int, elapsed time.Duration)
}

// Metrics records request counts and latencies labelled by the registered
// route so raw ids in URLs do not explode label cardinality.
func Metrics(recorder HTTPRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok && !c.Response().Committed {
				status = he.Code
			}
			recorder.HTTPRequest(c.Request().Method, path, status, time.Since(start))
			return err
		}
	}
}
