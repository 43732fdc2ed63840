// Package ratelimit throttles screenshot uploads per caller.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Gate is a per-caller token bucket. Each caller gets perHour uploads, refilled evenly
// over the hour. It is safe for concurrent use.
type Gate struct {
	mu       sync.Mutex
	callers  map[string]*entry
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithSweepInterval sets how often idle callers are forgotten.
func WithSweepInterval(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.interval = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New creates a Gate allowing perHour uploads per caller.
func New(perHour int, opts ...Option) *Gate {
	if perHour <= 0 {
		perHour = 10
	}
	g := &Gate{
		callers:  make(map[string]*entry),
		limit:    rate.Every(time.Hour / time.Duration(perHour)),
		burst:    perHour,
		idleTTL:  time.Hour,
		interval: 5 * time.Minute,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Allow consumes one upload for callerID and reports whether it was available.
func (g *Gate) Allow(callerID string) bool {
	now := g.now()

	g.mu.Lock()
	e, ok := g.callers[callerID]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(g.limit, g.burst)}
		g.callers[callerID] = e
	}
	e.lastSeen = now
	g.mu.Unlock()

	allowed := e.limiter.AllowN(now, 1)
	if !allowed {
		g.logger.Warn("ratelimit.denied", "caller_id", callerID)
	}
	return allowed
}

// Sweep forgets callers idle for longer than a full refill; their buckets are full anyway.
// It returns how many were removed.
func (g *Gate) Sweep() int {
	cutoff := g.now().Add(-g.idleTTL)

	g.mu.Lock()
	defer g.mu.Unlock()
	removed := 0
	for id, e := range g.callers {
		if e.lastSeen.Before(cutoff) {
			delete(g.callers, id)
			removed++
		}
	}
	return removed
}

// Run sweeps on the configured interval until ctx is done.
func (g *Gate) Run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := g.Sweep(); n > 0 {
				g.logger.Debug("ratelimit.sweep", "removed", n)
			}
		}
	}
}

// Len reports how many callers are tracked.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.callers)
}
