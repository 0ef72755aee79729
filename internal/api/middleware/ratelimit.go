package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventplus/internal/config"
	apperrors "github.com/Togather-Foundation/eventplus/internal/errors"
	"github.com/karlseguin/ccache/v3"
	"golang.org/x/time/rate"
)

type RateLimitTier string

const (
	TierPublic RateLimitTier = "public"
	// TierLogin covers register and login.
	TierLogin RateLimitTier = "login"
)

const (
	bucketIdleTTL = 15 * time.Minute
	maxBuckets    = 100_000
)

type tierKey struct{}

func WithRateLimitTier(ctx context.Context, tier RateLimitTier) context.Context {
	return context.WithValue(ctx, tierKey{}, tier)
}

// RateLimitTierFrom returns the tier the request was admitted under.
func RateLimitTierFrom(ctx context.Context) (RateLimitTier, bool) {
	tier, ok := ctx.Value(tierKey{}).(RateLimitTier)
	return tier, ok
}

// RateLimiter holds a token bucket per tier and client. Buckets idle for
// bucketIdleTTL are dropped; the least recently used go first under pressure.
type RateLimiter struct {
	buckets    *ccache.Cache[*rate.Limiter]
	perMinute  map[RateLimitTier]int
	trusted    []*net.IPNet
	writeError ErrorWriter
}

func NewRateLimiter(cfg config.RateLimitConfig, writeError ErrorWriter) *RateLimiter {
	return &RateLimiter{
		buckets: ccache.New(ccache.Configure[*rate.Limiter]().MaxSize(maxBuckets)),
		perMinute: map[RateLimitTier]int{
			TierPublic: cfg.PublicPerMinute,
			TierLogin:  cfg.LoginPerMinute,
		},
		trusted:    parseCIDRs(cfg.TrustedProxyCIDRs),
		writeError: writeError,
	}
}

// Tier admits requests against the tier's budget. A budget of zero disables
// limiting for that tier.
func (rl *RateLimiter) Tier(tier RateLimitTier) func(http.Handler) http.Handler {
	perMinute := rl.perMinute[tier]
	retryAfter := "1"
	if perMinute > 0 {
		retryAfter = strconv.Itoa(max(int((time.Minute / time.Duration(perMinute)).Seconds()), 1))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if perMinute > 0 && !rl.bucket(tier, clientKey(r, rl.trusted)).Allow() {
				w.Header().Set("Retry-After", retryAfter)
				rl.writeError(w, r, apperrors.New(apperrors.CodeRateLimited, "rate limit exceeded").
					WithMetadata("tier", string(tier)))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithRateLimitTier(r.Context(), tier)))
		})
	}
}

func (rl *RateLimiter) bucket(tier RateLimitTier, client string) *rate.Limiter {
	perMinute := rl.perMinute[tier]
	item, _ := rl.buckets.Fetch(string(tier)+"|"+client, bucketIdleTTL, func() (*rate.Limiter, error) {
		return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute), nil
	})
	item.Extend(bucketIdleTTL)
	return item.Value()
}

// Stop ends the cache's background worker.
func (rl *RateLimiter) Stop() {
	rl.buckets.Stop()
}

// clientKey is the peer address, or the first forwarded address when the
// peer is a trusted proxy.
func clientKey(r *http.Request, trusted []*net.IPNet) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	if !isTrusted(peer, trusted) {
		return peer
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return peer
}

func parseCIDRs(values []string) []*net.IPNet {
	var out []*net.IPNet
	for _, v := range values {
		if _, cidr, err := net.ParseCIDR(strings.TrimSpace(v)); err == nil {
			out = append(out, cidr)
		}
	}
	return out
}

func isTrusted(addr string, trusted []*net.IPNet) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, cidr := range trusted {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}
