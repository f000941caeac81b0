package relay

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// DefaultConnectRate is how many websocket upgrades per second one IP may
// attempt.
const DefaultConnectRate = rate.Limit(10)

type contextKey string

const loggerKey = contextKey("logger")

// requestLogger injects a request-scoped logger carrying the request ID. It
// must run after middleware.RequestID.
func requestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reqID := c.Response().Header().Get(echo.HeaderXRequestID)
			logger := base.With("request_id", reqID)
			ctx := context.WithValue(c.Request().Context(), loggerKey, logger)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func loggerFrom(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return fallback
}

// connectLimiter throttles websocket upgrades per client IP.
func connectLimiter(limit rate.Limit, burst int) echo.MiddlewareFunc {
	if burst < 1 {
		burst = 1
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      limit,
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.String(http.StatusTooManyRequests, "Too many connection attempts. Please try again later.")
		},
	})
}
