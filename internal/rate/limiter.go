// Package rate throttles outbound requests to the chat backend with a token
// bucket per key.
package rate

import (
	"context"
	"sync"
	"time"
)

// Config defines client-side throttling for outbound calls to the backend.
// RequestsPerSecond <= 0 disables throttling; Burst is raised to at least 1.
type Config struct {
	RequestsPerSecond int
	Burst             int
}

// Unlimited reports whether cfg admits every request immediately.
func (cfg Config) Unlimited() bool {
	return cfg.RequestsPerSecond <= 0
}

// Limiter is a token bucket. A nil or unlimited Limiter never blocks.
type Limiter struct {
	mu        sync.Mutex
	tokens    float64
	last      time.Time
	rate      float64 // tokens per second
	burst     float64
	unlimited bool
}

// New creates a limiter with a full bucket.
func New(cfg Config) *Limiter {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		tokens:    float64(burst),
		last:      time.Now(),
		rate:      float64(cfg.RequestsPerSecond),
		burst:     float64(burst),
		unlimited: cfg.Unlimited(),
	}
}

// Allow takes a token if one is available.
func (l *Limiter) Allow() bool {
	return l.reserve() == 0
}

// Wait blocks until a token is taken or ctx ends.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		delay := l.reserve()
		if delay == 0 {
			return nil
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// reserve refills the bucket and takes a token when one is available,
// returning 0. Otherwise it returns how long until the next token.
func (l *Limiter) reserve() time.Duration {
	if l == nil || l.unlimited {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.last = now

	if l.tokens >= 1 {
		l.tokens--
		return 0
	}
	missing := 1 - l.tokens
	return time.Duration(missing / l.rate * float64(time.Second))
}

// Manager holds one limiter per key, created on first use with the defaults.
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
	defaults Config
}

func NewManager(defaults Config) *Manager {
	return &Manager{
		limiters: make(map[string]*Limiter),
		defaults: defaults,
	}
}

// GetLimiter returns the limiter for key, creating it if needed.
func (m *Manager) GetLimiter(key string) *Limiter {
	m.mu.RLock()
	lim, ok := m.limiters[key]
	m.mu.RUnlock()
	if ok {
		return lim
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if lim, ok := m.limiters[key]; ok {
		return lim
	}
	lim = New(m.defaults)
	m.limiters[key] = lim
	return lim
}

// Wait blocks until key's limiter admits one request.
func (m *Manager) Wait(ctx context.Context, key string) error {
	if m == nil || m.defaults.Unlimited() {
		return nil
	}
	return m.GetLimiter(key).Wait(ctx)
}
