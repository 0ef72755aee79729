package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// quietPaths are probe endpoints logged at debug level.
var quietPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// AccessLog writes one line per request through the request-scoped logger
// set by CorrelationID, falling back to logger.
func AccessLog(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			r, info := ensureRequestInfo(r)
			sw := &statusWriter{ResponseWriter: w}

			next.ServeHTTP(sw, r)

			l := zerolog.Ctx(r.Context())
			if l.GetLevel() == zerolog.Disabled {
				l = &logger
			}
			status := sw.Status()

			var event *zerolog.Event
			switch {
			case status >= http.StatusInternalServerError:
				event = l.Error()
			case quietPaths[r.URL.Path]:
				event = l.Debug()
			default:
				event = l.Info()
			}
			event = event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", sw.bytes).
				Dur("duration", time.Since(start))
			if info.route != "" {
				event = event.Str("route", info.route)
			}
			if info.userID != "" {
				event = event.Str("user_id", info.userID)
			}
			event.Msg("request")
		})
	}
}
