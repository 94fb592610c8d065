package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mkrogh/bookmarket-backend/api/responses"
	"github.com/mkrogh/bookmarket-backend/pkg/config"
	pkgerrors "github.com/mkrogh/bookmarket-backend/pkg/errors"
	"github.com/mkrogh/bookmarket-backend/pkg/logger"
)

type fixedWindowStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimit throttles every request by client IP across a minute and an hour window.
// The tighter window decides the Retry-After hint.
func RateLimit(cfg config.RateLimitConfig, store fixedWindowStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || (cfg.PerMinute <= 0 && cfg.PerHour <= 0) {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := clientIP(r)

			windows := []struct {
				scope  string
				limit  int
				window time.Duration
			}{
				{scope: "ip:minute:" + ip, limit: cfg.PerMinute, window: time.Minute},
				{scope: "ip:hour:" + ip, limit: cfg.PerHour, window: time.Hour},
			}

			for _, win := range windows {
				if win.limit <= 0 {
					continue
				}
				allowed, count, err := store.FixedWindowAllow(ctx, win.scope, int64(win.limit), win.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !allowed {
					if logg != nil {
						logCtx := logg.WithFields(ctx, map[string]any{
							"ip":             ip,
							"attempts":       count,
							"limit":          win.limit,
							"window_seconds": int(win.window.Seconds()),
						})
						logg.Warn(logCtx, "rate_limit.blocked")
					}
					w.Header().Set("Retry-After", strconv.Itoa(int(win.window.Seconds())))
					responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
