package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const sweepEvery = 256

// epsilon absorbs float rounding when a capped credit tops a bucket up.
const epsilon = 1e-9

type bucket struct {
	limiter *rate.Limiter
	// credit holds refunded attempts; rate.Limiter cannot take tokens back.
	credit   float64
	lastSeen time.Time
}

// tokens is the budget left at now, with credit capped so the total never
// passes the burst.
func (b *bucket) tokens(now time.Time) float64 {
	available := b.limiter.TokensAt(now)
	if room := float64(b.limiter.Burst()) - available; b.credit > room {
		b.credit = math.Max(room, 0)
	}
	return available + b.credit
}

// Memory is a per-process token bucket limiter: the burst is the rule's
// limit and it refills at limit per window.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	calls   int
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// WithClock is used by tests to drive refills.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Peek(_ context.Context, rule Rule, key string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[rule.Name+":"+key]
	if !ok {
		return Status{Limit: rule.Limit, Remaining: rule.Limit}, nil
	}
	return status(rule, b, m.now()), nil
}

func (m *Memory) Reserve(_ context.Context, rule Rule, key string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	id := rule.Name + ":" + key
	b, ok := m.buckets[id]
	if !ok {
		every := rate.Limit(float64(rule.Limit) / rule.Window.Seconds())
		b = &bucket{limiter: rate.NewLimiter(every, rule.Limit)}
		m.buckets[id] = b
	}
	b.lastSeen = now

	b.tokens(now)
	allowed := true
	if b.credit >= 1-epsilon {
		b.credit = math.Max(b.credit-1, 0)
	} else {
		allowed = b.limiter.AllowN(now, 1)
	}

	st := status(rule, b, now)
	st.Allowed = allowed
	return st, nil
}

func (m *Memory) Refund(_ context.Context, rule Rule, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[rule.Name+":"+key]
	if !ok {
		return nil
	}
	b.credit++
	b.tokens(m.now())
	return nil
}

// sweep drops buckets idle long enough to have refilled completely.
func (m *Memory) sweep(now time.Time) {
	m.calls++
	if m.calls%sweepEvery != 0 {
		return
	}
	for id, b := range m.buckets {
		if b.tokens(now)+epsilon >= float64(b.limiter.Burst()) {
			delete(m.buckets, id)
		}
	}
}

func status(rule Rule, b *bucket, now time.Time) Status {
	tokens := b.tokens(now)
	remaining := int(math.Floor(tokens + epsilon))
	if remaining < 0 {
		remaining = 0
	}

	var reset time.Duration
	if missing := 1 - tokens; missing > 0 {
		reset = time.Duration(missing / float64(b.limiter.Limit()) * float64(time.Second))
	}
	return Status{Limit: rule.Limit, Remaining: remaining, Reset: reset}
}
