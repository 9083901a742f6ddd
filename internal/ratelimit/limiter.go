// Package ratelimit is an in-process keyed window counter with escalating blocks.
//
// A caller that exceeds a policy's budget is blocked for twice the policy
// window. State is process-local and lost on restart; multi-instance
// deployments need a shared store, which this package does not provide.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultSweepInterval is how often StartSweep drops expired entries.
const DefaultSweepInterval = 5 * time.Minute

// Entry is the per-key counter state. BlockedUntil is zero when not blocked.
type Entry struct {
	Count        int       `json:"count"`
	ResetAt      time.Time `json:"resetAt"`
	Blocked      bool      `json:"blocked"`
	BlockedUntil time.Time `json:"blockedUntil,omitempty"`
}

// Decision is the result of a Check. Err is set when the limiter rejected the
// request because of an internal failure rather than the caller's budget.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
	Message    string
	Err        error
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (d Decision) RetryAfterSeconds() int {
	if d.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(d.RetryAfter.Seconds()))
}

// Limiter holds all entries behind a single mutex. The sweep takes the same lock.
type Limiter struct {
	mu        sync.Mutex
	entries   map[string]*Entry
	now       func() time.Time
	meter     metric.Meter
	decisions metric.Int64Counter
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock sets the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithMeter records decisions and the tracked key count on m instead of the
// global meter provider.
func WithMeter(m metric.Meter) Option {
	return func(l *Limiter) { l.meter = m }
}

// New returns an empty Limiter.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.meter == nil {
		l.meter = otel.Meter("authguard/ratelimit")
	}
	l.decisions = newDecisionCounter(l.meter)
	l.observeKeys(l.meter)
	return l
}

// observeKeys exports Len as a gauge.
func (l *Limiter) observeKeys(m metric.Meter) {
	_, err := m.Int64ObservableGauge("authguard.ratelimit.tracked_keys",
		metric.WithDescription("Rate limit keys currently held in memory"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(l.Len()))
			return nil
		}))
	if err != nil {
		log.Warn().Err(err).Msg("ratelimit: tracked keys gauge unavailable")
	}
}

func newDecisionCounter(m metric.Meter) metric.Int64Counter {
	c, err := m.Int64Counter("authguard.ratelimit.decisions",
		metric.WithDescription("Rate limiter decisions by policy and outcome"))
	if err != nil {
		log.Warn().Err(err).Msg("ratelimit: decision counter unavailable")
		return nil
	}
	return c
}

// Check counts one request for key under p. It never panics: an invalid policy
// or an internal failure rejects the request with Err set.
func (l *Limiter) Check(key string, p Policy) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			d = l.failClosed(key, p, fmt.Errorf("ratelimit: internal failure: %v", r))
		}
		l.record(p, d)
	}()
	if err := p.validate(); err != nil {
		return l.failClosed(key, p, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	switch {
	case !ok:
		e = &Entry{}
		l.entries[key] = e
		restart(e, now, p)
		return allow(e, p)
	case e.Blocked && now.Before(e.BlockedUntil):
		return reject(e, p, e.BlockedUntil.Sub(now))
	case e.Blocked:
		restart(e, now, p)
		return allow(e, p)
	case !now.Before(e.ResetAt):
		restart(e, now, p)
		return allow(e, p)
	}

	e.Count++
	if e.Count > p.Max {
		e.Blocked = true
		e.BlockedUntil = now.Add(2 * p.Window)
		log.Warn().Str("policy", p.Name).Str("key", key).Int("limit", p.Max).
			Time("blocked_until", e.BlockedUntil).Msg("rate limit exceeded")
		return reject(e, p, e.BlockedUntil.Sub(now))
	}
	return allow(e, p)
}

func restart(e *Entry, now time.Time, p Policy) {
	e.Count = 1
	e.ResetAt = now.Add(p.Window)
	e.Blocked = false
	e.BlockedUntil = time.Time{}
}

func allow(e *Entry, p Policy) Decision {
	return Decision{Allowed: true, Limit: p.Max, Remaining: max(0, p.Max-e.Count), ResetAt: e.ResetAt}
}

func reject(e *Entry, p Policy, retryAfter time.Duration) Decision {
	return Decision{Limit: p.Max, ResetAt: e.ResetAt, RetryAfter: retryAfter, Message: p.Message}
}

func (l *Limiter) failClosed(key string, p Policy, err error) Decision {
	log.Error().Err(err).Str("policy", p.Name).Str("key", key).Msg("rate limiter failed, rejecting request")
	retry := p.Window
	if retry <= 0 {
		retry = time.Minute
	}
	return Decision{Limit: p.Max, RetryAfter: retry, Message: p.Message, Err: err}
}

func (l *Limiter) record(p Policy, d Decision) {
	if l.decisions == nil {
		return
	}
	l.decisions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("policy", p.Name),
		attribute.Bool("allowed", d.Allowed),
	))
}

// Block force-blocks key for duration regardless of its count.
func (l *Limiter) Block(key string, duration time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	e, ok := l.entries[key]
	if !ok {
		e = &Entry{ResetAt: now.Add(duration)}
		l.entries[key] = e
	}
	e.Blocked = true
	e.BlockedUntil = now.Add(duration)
	log.Info().Str("key", key).Dur("duration", duration).Msg("rate limit key blocked")
}

// Unblock clears any block on key and resets its counting; the next request starts fresh.
func (l *Limiter) Unblock(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
	log.Info().Str("key", key).Msg("rate limit key unblocked")
}

// Status returns a copy of the raw entry for key.
func (l *Limiter) Status(key string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Sweep removes entries whose window has elapsed and that are not blocked, or
// whose block has also elapsed. It returns the number removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	removed := 0
	for k, e := range l.entries {
		if now.Before(e.ResetAt) {
			continue
		}
		if e.Blocked && now.Before(e.BlockedUntil) {
			continue
		}
		delete(l.entries, k)
		removed++
	}
	return removed
}

// StartSweep runs Sweep every interval until ctx is cancelled.
func (l *Limiter) StartSweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := l.Sweep(); n > 0 {
					log.Debug().Int("removed", n).Msg("rate limit sweep")
				}
			}
		}
	}()
}
