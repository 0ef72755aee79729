// Package api assembles the HTTP surface: middleware chain, routes and the
// operational endpoints.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Togather-Foundation/eventplus/internal/api/handlers"
	"github.com/Togather-Foundation/eventplus/internal/api/middleware"
	"github.com/Togather-Foundation/eventplus/internal/auth"
	"github.com/Togather-Foundation/eventplus/internal/config"
	"github.com/Togather-Foundation/eventplus/internal/i18n"
	"github.com/Togather-Foundation/eventplus/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Tokens both issues and validates access tokens; *auth.JWTManager satisfies it.
type Tokens interface {
	handlers.TokenIssuer
	middleware.TokenValidator
}

type Deps struct {
	Config     config.Config
	Logger     zerolog.Logger
	Build      BuildInfo
	Translator *i18n.Translator
	Tokens     Tokens
	Users      handlers.UserService
	Catalog    handlers.EventCatalog
	Ledger     handlers.AttendanceLedger
	Comments   handlers.CommentPipeline
	Health     *handlers.HealthChecker
}

// Router is the root http.Handler. Close releases the rate limiter.
type Router struct {
	handler http.Handler
	limiter *middleware.RateLimiter
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.handler.ServeHTTP(w, r)
}

func (rt *Router) Close() {
	rt.limiter.Stop()
}

func NewRouter(deps Deps) *Router {
	responder := handlers.NewResponder(deps.Config.Environment, deps.Translator)
	limiter := middleware.NewRateLimiter(deps.Config.RateLimit, responder.WriteError)

	usersHandler := handlers.NewUsersHandler(deps.Users, deps.Tokens, responder)
	eventsHandler := handlers.NewEventsHandler(deps.Catalog, responder)
	attendanceHandler := handlers.NewAttendanceHandler(deps.Ledger, responder)
	commentsHandler := handlers.NewCommentsHandler(deps.Comments, responder)

	health := deps.Health
	if health == nil {
		health = handlers.NewHealthChecker(deps.Build.Version, deps.Build.GitCommit)
	}

	public := limiter.Tier(middleware.TierPublic)
	login := limiter.Tier(middleware.TierLogin)
	authed := middleware.RequireAuth(responder.WriteError)

	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc, wrap ...func(http.Handler) http.Handler) {
		var handler http.Handler = h
		for i := len(wrap) - 1; i >= 0; i-- {
			handler = wrap[i](handler)
		}
		mux.Handle(pattern, middleware.Annotate(metrics.HTTPMiddleware(handler)))
	}

	mux.Handle("GET /healthz", handlers.Healthz())
	mux.Handle("GET /readyz", health.Readyz())
	mux.Handle("GET /health", health.Health())
	mux.Handle("GET /version", VersionHandler(deps.Build))
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("GET /api/v1/openapi.json", OpenAPIHandler(deps.Config.Server.BaseURL))

	route("POST /api/v1/auth/register", usersHandler.Register, login)
	route("POST /api/v1/auth/login", usersHandler.Login, login)
	route("PUT /api/v1/users/{id}/type", usersHandler.ChangeType, public, authed)
	route("GET /api/v1/user-types", usersHandler.ListTypes, public)

	route("GET /api/v1/event-types", eventsHandler.ListTypes, public)
	route("GET /api/v1/events", eventsHandler.List, public)
	route("POST /api/v1/events", eventsHandler.Create, public, authed)
	route("GET /api/v1/events/{id}", eventsHandler.Get, public)
	route("DELETE /api/v1/events/{id}", eventsHandler.Delete, public, authed)
	route("PUT /api/v1/events/{id}/capacity", eventsHandler.UpdateCapacity, public, authed)
	route("PUT /api/v1/events/{id}/schedule", eventsHandler.UpdateSchedule, public, authed)

	route("POST /api/v1/events/{id}/attendance", attendanceHandler.Join, public, authed)
	route("DELETE /api/v1/events/{id}/attendance", attendanceHandler.Leave, public, authed)
	route("GET /api/v1/events/{id}/attendees", attendanceHandler.Attendees, public, authed)

	route("GET /api/v1/events/{id}/comments", commentsHandler.List, public)
	route("POST /api/v1/events/{id}/comments", commentsHandler.Submit, public, authed)
	route("GET /api/v1/comments/{id}", commentsHandler.Get, public)
	route("POST /api/v1/comments/{id}/moderation", commentsHandler.Moderate, public, authed)

	requireHTTPS := strings.HasPrefix(deps.Config.Server.BaseURL, "https://")

	var handler http.Handler = mux
	handler = middleware.Authenticate(deps.Tokens, deps.Users, responder.WriteError)(handler)
	handler = middleware.LimitBody(deps.Config.Server.MaxBodyBytes, responder.WriteError)(handler)
	handler = middleware.SecurityHeaders(requireHTTPS)(handler)
	handler = middleware.AccessLog(deps.Logger)(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.CORS(deps.Config.CORS, deps.Logger)(handler)
	handler = middleware.CorrelationID(deps.Logger)(handler)

	return &Router{handler: handler, limiter: limiter}
}

var _ Tokens = (*auth.JWTManager)(nil)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
