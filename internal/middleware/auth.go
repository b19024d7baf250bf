// Package middleware carries the HTTP middleware stack: authentication,
// per-identity rate limiting and Prometheus request metrics.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/askline-dev/askline/internal/identity"
	"github.com/askline-dev/askline/shared/domain"
	"github.com/askline-dev/askline/shared/errors"
	"github.com/askline-dev/askline/shared/utils"
)

// Key to store the authenticated actor in the request context
type key int

const actorKey key = 0

// AuthedActor is what auth middleware stores in the request context.
// IssuedAt is the token issue time, used by recent-login checks.
type AuthedActor struct {
	Actor    domain.Actor
	IssuedAt time.Time
}

type Auth struct {
	provider identity.Provider
}

func NewAuth(provider identity.Provider) *Auth {
	return &Auth{provider: provider}
}

// NeedAuth returns middleware that rejects unauthenticated requests.
func (a *Auth) NeedAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authed, err := a.extractActor(r)
			if err != nil {
				utils.WriteErrorAndStatusCode(w, errors.ErrNotAuthenticated)
				return
			}
			ctx := context.WithValue(r.Context(), actorKey, authed)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth populates the actor context when a valid token is present
// but lets anonymous requests through.
func (a *Auth) OptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authed, err := a.extractActor(r); err == nil {
				ctx := context.WithValue(r.Context(), actorKey, authed)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Auth) extractActor(r *http.Request) (*AuthedActor, error) {
	tokenString := TokenFromRequest(r)
	if tokenString == "" {
		return nil, errors.ErrNotAuthenticated
	}
	actor, issuedAt, err := a.provider.CurrentActor(r.Context(), tokenString)
	if err != nil {
		return nil, err
	}
	return &AuthedActor{Actor: actor, IssuedAt: issuedAt}, nil
}

// TokenFromRequest reads the session token from the accessToken cookie
// (browser clients) or the Authorization header (API clients).
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie("accessToken"); err == nil {
		return cookie.Value
	}
	if token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); found {
		return token
	}
	return ""
}

// GetActorFromContext retrieves the authenticated actor, or nil.
func GetActorFromContext(r *http.Request) *AuthedActor {
	authed, ok := r.Context().Value(actorKey).(*AuthedActor)
	if !ok {
		return nil
	}
	return authed
}
