package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/askline-dev/askline/shared/utils"
)

// IdentityLimiter keeps one token bucket per identity (user id or IP).
// Idle buckets are dropped after expiration to bound memory.
type IdentityLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*limiterEntry
	rate       rate.Limit
	burst      int
	expiration time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewIdentityLimiter(perSecond float64, burst int, expiration time.Duration) *IdentityLimiter {
	l := &IdentityLimiter{
		limiters:   make(map[string]*limiterEntry),
		rate:       rate.Limit(perSecond),
		burst:      burst,
		expiration: expiration,
	}
	go l.reap()
	return l
}

func (l *IdentityLimiter) Allow(identity string) bool {
	l.mu.Lock()
	entry, ok := l.limiters[identity]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[identity] = entry
	}
	entry.lastSeen = time.Now()
	l.mu.Unlock()
	return entry.limiter.Allow()
}

func (l *IdentityLimiter) reap() {
	ticker := time.NewTicker(l.expiration)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-l.expiration)
		l.mu.Lock()
		for identity, entry := range l.limiters {
			if entry.lastSeen.Before(cutoff) {
				delete(l.limiters, identity)
			}
		}
		l.mu.Unlock()
	}
}

// RateLimit throttles requests keyed by getIdentity.
func RateLimit(l *IdentityLimiter, getIdentity func(r *http.Request) (string, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := getIdentity(r)
			if err != nil {
				utils.WriteErrorAndStatusCode(w, err)
				return
			}
			if !l.Allow(identity) {
				http.Error(w, "Rate limit exceeded, try again later", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ByActor keys the limiter on the authenticated actor, falling back to
// the client IP for anonymous requests.
func ByActor(r *http.Request) (string, error) {
	if authed := GetActorFromContext(r); authed != nil {
		return "actor_" + authed.Actor.Id, nil
	}
	return utils.GetIP(r)
}
