package middleware

import (
	"context"
	"net/http"

	"github.com/Togather-Foundation/eventplus/internal/auth"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// requestInfo is filled in by Annotate once the mux has matched a route and
// authentication has run. Outer middleware read it after the handler returns.
type requestInfo struct {
	route  string
	userID string
}

type requestInfoKey struct{}

func ensureRequestInfo(r *http.Request) (*http.Request, *requestInfo) {
	if info, ok := r.Context().Value(requestInfoKey{}).(*requestInfo); ok {
		return r, info
	}
	info := &requestInfo{}
	return r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info)), info
}

// Annotate records the matched pattern and the caller on the request. It must
// run inside the mux, where r.Pattern is set.
func Annotate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := auth.PrincipalFrom(r.Context())
		if info, ok := r.Context().Value(requestInfoKey{}).(*requestInfo); ok {
			info.route = r.Pattern
			info.userID = p.UserID
		}

		span := trace.SpanFromContext(r.Context())
		if r.Pattern != "" {
			span.SetAttributes(semconv.HTTPRoute(r.Pattern))
		}
		if p.Authenticated() {
			span.SetAttributes(
				attribute.String("enduser.id", p.UserID),
				attribute.String("enduser.role", string(p.Role)),
			)
		}
		next.ServeHTTP(w, r)
	})
}

// statusWriter remembers the status and body size written through it.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
