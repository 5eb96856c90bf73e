package rate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Allow(t *testing.T) {
	lim := New(Config{RequestsPerSecond: 1, Burst: 5})

	allowed := 0
	for i := 0; i < 10; i++ {
		if lim.Allow() {
			allowed++
		}
	}
	assert.Equal(t, 5, allowed, "burst bounds immediate admissions")
}

func TestLimiter_Refill(t *testing.T) {
	lim := New(Config{RequestsPerSecond: 100, Burst: 2})
	for lim.Allow() {
	}

	time.Sleep(50 * time.Millisecond)
	assert.True(t, lim.Allow(), "token available after refill period")
}

func TestLimiter_WaitSleepsUntilNextToken(t *testing.T) {
	lim := New(Config{RequestsPerSecond: 20, Burst: 1})
	require.True(t, lim.Allow())

	start := time.Now()
	require.NoError(t, lim.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	lim := New(Config{RequestsPerSecond: 1, Burst: 1})
	require.True(t, lim.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, lim.Wait(ctx), context.DeadlineExceeded)
}

func TestLimiter_NonPositiveSettingsNeverBlockForever(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero burst", Config{RequestsPerSecond: 10, Burst: 0}},
		{"negative burst", Config{RequestsPerSecond: 10, Burst: -3}},
		{"zero rate", Config{RequestsPerSecond: 0, Burst: 0}},
		{"negative rate", Config{RequestsPerSecond: -1, Burst: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(tt.cfg)
			for i := 0; i < 3; i++ {
				ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
				err := m.Wait(ctx, "backend")
				cancel()
				require.NoError(t, err, "request %d", i)
			}
		})
	}
}

func TestConfig_Unlimited(t *testing.T) {
	assert.True(t, Config{RequestsPerSecond: 0, Burst: 10}.Unlimited())
	assert.False(t, Config{RequestsPerSecond: 1}.Unlimited())
}

func TestManager_NilNeverBlocks(t *testing.T) {
	var m *Manager
	assert.NoError(t, m.Wait(context.Background(), "backend"))
}

func TestManager_SameKeySameLimiter(t *testing.T) {
	m := NewManager(Config{RequestsPerSecond: 1, Burst: 1})

	var wg sync.WaitGroup
	got := make([]*Limiter, 20)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = m.GetLimiter("backend")
		}(i)
	}
	wg.Wait()

	for _, l := range got {
		assert.Same(t, got[0], l)
	}
	assert.NotSame(t, got[0], m.GetLimiter("other"))
}
