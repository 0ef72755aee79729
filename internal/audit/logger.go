package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Entry represents a single audit log entry with structured fields
type Entry struct {
	Timestamp    time.Time         `json:"timestamp"`
	Action       string            `json:"action"`
	Actor        string            `json:"actor"`
	ActorRole    string            `json:"actor_role,omitempty"`
	ResourceType string            `json:"resource_type,omitempty"`
	ResourceID   string            `json:"resource_id,omitempty"`
	IPAddress    string            `json:"ip_address,omitempty"`
	Status       string            `json:"status"` // "success" or "failure"
	Details      map[string]string `json:"details,omitempty"`
}

// Logger writes administrator actions as structured entries under the "audit" key.
type Logger struct {
	log zerolog.Logger
}

func NewLogger(base zerolog.Logger) *Logger {
	return &Logger{log: base.With().Str("component", "audit").Logger()}
}

// Nop discards every entry.
func Nop() *Logger {
	return NewLogger(zerolog.Nop())
}

func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	l.log.Info().Interface("audit", entry).Msg(entry.Action)
}

// Actor identifies who performed an audited action.
type Actor struct {
	ID   string
	Role string
}

// Success records a completed action. The client IP comes from ctx when the HTTP
// layer stored one.
func (l *Logger) Success(ctx context.Context, action string, actor Actor, resourceType, resourceID string, details map[string]string) {
	l.Log(Entry{
		Action:       action,
		Actor:        actor.ID,
		ActorRole:    actor.Role,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ClientIP(ctx),
		Status:       "success",
		Details:      details,
	})
}

func (l *Logger) Failure(ctx context.Context, action string, actor Actor, resourceType, resourceID string, details map[string]string) {
	l.Log(Entry{
		Action:       action,
		Actor:        actor.ID,
		ActorRole:    actor.Role,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ClientIP(ctx),
		Status:       "failure",
		Details:      details,
	})
}

type contextKey string

const clientIPKey contextKey = "auditClientIP"

// WithClientIP stores the request's client address for later audit entries.
func WithClientIP(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, clientIPKey, extractClientIP(r))
}

func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// extractClientIP gets the client IP from request headers or RemoteAddr
func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
