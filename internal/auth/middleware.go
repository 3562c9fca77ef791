package auth

import (
	"log/slog"
	"net/http"

	"github.com/kevin-learn/kevin-server/internal/authz"
	"github.com/kevin-learn/kevin-server/internal/platform/httpx"
)

// Middleware resolves the caller behind the token cookie and stores the
// resulting authz.Context on the request.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

type claimsContextKey struct{}

// RequireToken rejects requests without a decodable, unrevoked token cookie.
// A request that passes carries the caller context; whether the caller may do
// anything is decided per operation by the authz engine.
func (m Middleware) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if err != nil || cookie.Value == "" {
			httpx.Message(w, http.StatusUnauthorized, httpx.MsgLoginRequired)
			return
		}
		caller, claims, err := m.Service.ResolveCaller(r.Context(), cookie.Value)
		if err != nil {
			if err == httpx.ErrUnauthorized {
				httpx.Message(w, http.StatusUnauthorized, httpx.MsgLoginRequired)
				return
			}
			if m.Logger != nil {
				m.Logger.Error("resolve caller", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		ctx := authz.WithCaller(r.Context(), caller)
		ctx = withClaims(ctx, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalToken resolves the caller when a usable token cookie is present and
// otherwise lets the request through anonymously. Registration uses this: a
// plain signup needs no login, while creating a privileged account does.
func (m Middleware) OptionalToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		caller, claims, err := m.Service.ResolveCaller(r.Context(), cookie.Value)
		if err != nil {
			if err != httpx.ErrUnauthorized && m.Logger != nil {
				m.Logger.Error("resolve optional caller", slog.Any("error", err))
			}
			next.ServeHTTP(w, r)
			return
		}
		ctx := authz.WithCaller(r.Context(), caller)
		ctx = withClaims(ctx, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
