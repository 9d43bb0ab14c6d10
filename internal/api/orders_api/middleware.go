package orders_api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BearBump/WasteTrack/internal/access"
	"github.com/BearBump/WasteTrack/internal/models"
)

type contextKey string

const sessionCtxKey contextKey = "session"

func sessionFrom(ctx context.Context) access.Session {
	s, _ := ctx.Value(sessionCtxKey).(access.Session)
	return s
}

// actorFrom is only valid behind requireActor.
func actorFrom(ctx context.Context) models.Actor {
	s := sessionFrom(ctx)
	if s.Actor == nil {
		return models.Actor{}
	}
	return *s.Actor
}

// authenticate кладёт в контекст сессию. Запрос без токена проходит дальше
// анонимно; битый токен сразу 401.
func (a *OrdersAPI) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := a.deps.Sessions.Resolve(r.Header.Get("Authorization"))
		if err != nil {
			writeErrorCode(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), sessionCtxKey, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *OrdersAPI) requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r.Context())
		if s.Actor == nil {
			writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		if s.Actor.Role == "" {
			writeErrorCode(w, http.StatusForbidden, "role_pending", "actor role is not resolved yet")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit: счётчик на актора в Redis. Ошибка Redis не блокирует запрос.
func (a *OrdersAPI) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.deps.Limiter == nil || a.opts.RateLimitPerMinute <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		actor := actorFrom(r.Context())
		ok, n, err := a.deps.Limiter.Allow(r.Context(), "rl:api:"+actor.ID, int64(a.opts.RateLimitPerMinute), time.Minute)
		if err != nil {
			slog.Warn("rate limiter unavailable", "actor_id", actor.ID, "error", err.Error())
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			w.Header().Set("Retry-After", "60")
			slog.Info("rate limited", "actor_id", actor.ID, "count", n)
			writeErrorCode(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
