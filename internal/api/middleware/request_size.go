package middleware

import (
	"net/http"

	apperrors "github.com/Togather-Foundation/eventplus/internal/errors"
)

const defaultBodyLimit int64 = 1 << 20

// LimitBody caps request bodies at limit bytes. A declared Content-Length over
// the cap is refused before the handler runs; otherwise the body is wrapped so
// that decoders fail with *http.MaxBytesError.
func LimitBody(limit int64, writeError ErrorWriter) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				writeError(w, r, apperrors.New(apperrors.CodeInvalidInput, "request body too large").
					WithMetadata("field", "body", "rule", "max_bytes"))
				return
			}
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
