package middleware

import (
	"net/http"
	"strings"

	"github.com/Togather-Foundation/eventplus/internal/config"
	"github.com/rs/zerolog"
)

var corsHeaders = map[string]string{
	"Access-Control-Allow-Methods":  "GET, POST, PUT, DELETE, OPTIONS",
	"Access-Control-Allow-Headers":  "Content-Type, Authorization, Accept, Accept-Language, X-Request-ID, If-None-Match",
	"Access-Control-Expose-Headers": "X-Request-ID, Retry-After, Location, Content-Language, ETag",
	"Access-Control-Max-Age":        "86400",
}

// CORS admits browser calls from the configured origins. Bearer tokens are
// sent explicitly, so Access-Control-Allow-Credentials is never set. Preflights
// are answered here whether or not the origin is allowed; a refused origin
// just gets no allow headers.
func CORS(cfg config.CORSConfig, logger zerolog.Logger) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.ToLower(strings.TrimSpace(o))] = true
	}
	admits := func(origin string) bool {
		return cfg.AllowAllOrigins || allowed[strings.ToLower(origin)]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")
			if admits(origin) {
				h.Set("Access-Control-Allow-Origin", origin)
				for k, v := range corsHeaders {
					h.Set(k, v)
				}
			} else {
				logger.Warn().Str("origin", origin).Str("path", r.URL.Path).Msg("cross-origin request from unlisted origin")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
