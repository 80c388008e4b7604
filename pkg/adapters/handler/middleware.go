package handler

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wadjakorntonsri/linkshort/pkg/core/domain"
	"github.com/wadjakorntonsri/linkshort/pkg/logging"
	"github.com/wadjakorntonsri/linkshort/pkg/ports"
)

const authCookie = "auth_token"

type principalKey struct{}

// WithPrincipal attaches the authenticated caller to ctx.
func WithPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller stored by the auth middleware, or nil.
func PrincipalFrom(ctx context.Context) *domain.Principal {
	p, _ := ctx.Value(principalKey{}).(*domain.Principal)
	return p
}

// RateLimit is a per-scope request budget inside the limiter window.
type RateLimit struct {
	Scope string
	Limit int
}

type Middleware struct {
	auth    ports.AuthService
	limiter ports.RateLimiter
	window  time.Duration
	logger  *logging.Logger
}

// NewMiddleware builds the auth and rate limit middleware. A nil limiter
// disables rate limiting.
func NewMiddleware(auth ports.AuthService, limiter ports.RateLimiter, window time.Duration, logger *logging.Logger) *Middleware {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Middleware{auth: auth, limiter: limiter, window: window, logger: logger}
}

// tokenFrom reads a bearer token from the Authorization header, falling back
// to the auth cookie set by the Google login flow.
func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(authCookie); err == nil {
		return c.Value
	}
	return ""
}

func (m *Middleware) authenticate(r *http.Request) *domain.Principal {
	token := tokenFrom(r)
	if token == "" {
		return nil
	}
	p, err := m.auth.Authenticate(r.Context(), token)
	if err != nil {
		m.logger.Debug(r.Context(), "token rejected", "error", err)
		return nil
	}
	return p
}

// RequireAuth rejects requests without a valid token.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := m.authenticate(r)
		if p == nil {
			writeFail(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// OptionalAuth attaches the caller when a valid token is present and lets
// anonymous requests through.
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := m.authenticate(r); p != nil {
			r = r.WithContext(WithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin must run after RequireAuth.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !PrincipalFrom(r.Context()).IsAdmin() {
			writeFail(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Limit enforces rl per client IP. Limiter failures let the request through.
func (m *Middleware) Limit(rl RateLimit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m.limiter == nil || rl.Limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, err := m.limiter.Allow(r.Context(), rl.Scope, clientIP(r), rl.Limit, m.window)
			if err != nil {
				m.logger.Warn(r.Context(), "rate limiter unavailable", "scope", rl.Scope, "error", err)
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(m.window.Seconds())))
				writeFail(w, http.StatusTooManyRequests, "Too many requests, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP expects chi's RealIP middleware to have normalised RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func clientInfo(r *http.Request) domain.ClientInfo {
	return domain.ClientInfo{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
		Referrer:  r.Referer(),
	}
}
