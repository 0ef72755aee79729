package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Togather-Foundation/eventplus/internal/auth"
	apperrors "github.com/Togather-Foundation/eventplus/internal/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrorWriter renders an error as a problem response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// TokenValidator turns a bearer token into claims.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// PrincipalResolver looks up the stored user type for a token subject.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, userID string) (auth.Principal, error)
}

// Authenticate resolves the bearer token, when one is sent, into an auth.Principal
// on the request context. Requests without an Authorization header continue
// anonymously; the role gate decides what they may do. A malformed or invalid
// token is rejected with 401, as is a token whose subject no longer exists.
// With a nil resolver the role claim is trusted as issued.
func Authenticate(validator TokenValidator, resolver PrincipalResolver, writeError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, err := auth.TokenFromHeader(header)
			if err != nil {
				writeError(w, r, auth.ErrUnauthenticated.WithCause(err))
				return
			}
			claims, err := validator.Validate(token)
			if err != nil {
				writeError(w, r, auth.ErrUnauthenticated.WithCause(err))
				return
			}

			principal := claims.Principal()
			if resolver != nil {
				current, err := resolver.ResolvePrincipal(r.Context(), principal.UserID)
				switch {
				case apperrors.IsCode(err, apperrors.CodeNotFound):
					writeError(w, r, auth.ErrUnauthenticated.WithCause(err))
					return
				case err != nil:
					writeError(w, r, err)
					return
				}
				principal = current
			}
			ctx := auth.WithPrincipal(r.Context(), principal)
			trace.SpanFromContext(ctx).SetAttributes(
				attribute.String("enduser.id", principal.UserID),
				attribute.String("enduser.role", string(principal.Role)),
			)
			logger := zerolog.Ctx(ctx).With().Str("user_id", principal.UserID).Str("role", string(principal.Role)).Logger()
			ctx = logger.WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous requests before they reach the handler.
func RequireAuth(writeError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if principal, ok := auth.PrincipalFrom(r.Context()); !ok || !principal.Authenticated() {
				writeError(w, r, auth.ErrUnauthenticated)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
