// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/fieldtrack/internal/auth"
	"github.com/tomtom215/fieldtrack/internal/metrics"
)

// RejectWriter renders a rate limit rejection.
type RejectWriter func(w http.ResponseWriter, r *http.Request)

// UserRateLimiter gives every authenticated principal its own token bucket.
// It must run after authentication.
type UserRateLimiter struct {
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	onReject RejectWriter

	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewUserRateLimiter allows perSecond requests per user with the given burst.
func NewUserRateLimiter(perSecond float64, burst int, onReject RejectWriter) *UserRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if onReject == nil {
		onReject = func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
		}
	}
	return &UserRateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		onReject: onReject,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// Allow consumes one token for userID.
func (l *UserRateLimiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[userID]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[userID] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Cleanup forgets users idle longer than the idle TTL.
func (l *UserRateLimiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idleTTL)
	removed := 0
	for id, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, id)
			removed++
		}
	}
	return removed
}

// Serve implements suture.Service, sweeping idle users once a minute.
func (l *UserRateLimiter) Serve(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.Cleanup()
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (l *UserRateLimiter) String() string {
	return "user-rate-limiter"
}

// Handler returns middleware that rejects requests over the user's budget.
func (l *UserRateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFromContext(r.Context())
		if ok && !l.Allow(p.ID) {
			metrics.IngestRateLimited.Inc()
			metrics.APIRateLimitHits.WithLabelValues(routePattern(r)).Inc()
			l.onReject(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
