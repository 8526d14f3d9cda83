package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"github.com/labstack/echo/v4"

	"agrolink/pkg/logger"
)

// RateLimit limits requests per client IP within window.
func RateLimit(requestLimit int, window time.Duration) echo.MiddlewareFunc {
	retryAfter := strconv.Itoa(int(window.Seconds()))

	return echo.WrapMiddleware(httprate.Limit(
		requestLimit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logger.Warn("RATE LIMIT: blocked %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", retryAfter)
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"success":false,"error":{"code":"TOO_MANY_REQUESTS","message":"Rate limit exceeded"}}`))
		}),
	))
}
