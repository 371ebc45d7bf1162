package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRule = Rule{Name: "test", Limit: 3, Window: time.Hour, Code: "TEST_LIMIT"}

func TestMemoryCountsHits(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory().WithClock(func() time.Time { return now })
	ctx := context.Background()

	st, err := m.Peek(ctx, testRule, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Remaining)
	assert.False(t, st.Exceeded())

	for i := 2; i >= 0; i-- {
		st, err = m.Reserve(ctx, testRule, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, st.Allowed)
		assert.Equal(t, i, st.Remaining)
	}
	assert.True(t, st.Exceeded())
	assert.InDelta(t, float64(20*time.Minute), float64(st.Reset), float64(time.Second))

	st, err = m.Reserve(ctx, testRule, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, st.Allowed)
	assert.Equal(t, 0, st.Remaining)

	st, _ = m.Peek(ctx, testRule, "1.2.3.4")
	assert.True(t, st.Exceeded())

	other, _ := m.Peek(ctx, testRule, "5.6.7.8")
	assert.False(t, other.Exceeded())

	otherRule := testRule
	otherRule.Name = "other"
	st, _ = m.Peek(ctx, otherRule, "1.2.3.4")
	assert.False(t, st.Exceeded())
}

func TestMemoryRefills(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory().WithClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := m.Reserve(ctx, testRule, "k")
		require.NoError(t, err)
	}

	now = now.Add(21 * time.Minute)
	st, _ := m.Peek(ctx, testRule, "k")
	assert.Equal(t, 1, st.Remaining)

	now = now.Add(2 * time.Hour)
	st, _ = m.Peek(ctx, testRule, "k")
	assert.Equal(t, 3, st.Remaining)
}

func TestMemorySweepsIdleBuckets(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory().WithClock(func() time.Time { return now })
	ctx := context.Background()

	_, _ = m.Reserve(ctx, testRule, "idle")
	now = now.Add(2 * time.Hour)
	for i := 0; i < sweepEvery; i++ {
		_, _ = m.Reserve(ctx, testRule, "busy")
		_ = m.Refund(ctx, testRule, "busy")
	}

	m.mu.Lock()
	_, ok := m.buckets["test:idle"]
	m.mu.Unlock()
	assert.False(t, ok)
}

func TestMemoryRefund(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory().WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, m.Refund(ctx, testRule, "unknown"))

	for i := 0; i < 3; i++ {
		_, err := m.Reserve(ctx, testRule, "k")
		require.NoError(t, err)
	}
	require.NoError(t, m.Refund(ctx, testRule, "k"))
	st, _ := m.Peek(ctx, testRule, "k")
	assert.Equal(t, 1, st.Remaining)

	st, _ = m.Reserve(ctx, testRule, "k")
	assert.True(t, st.Allowed)
	st, _ = m.Reserve(ctx, testRule, "k")
	assert.False(t, st.Allowed)

	// Refunds never lift the budget above the limit.
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Refund(ctx, testRule, "k"))
	}
	st, _ = m.Peek(ctx, testRule, "k")
	assert.Equal(t, 3, st.Remaining)
}

func TestMemoryReserveIsAtomic(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	var allowed atomic.Int32
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if st, err := m.Reserve(ctx, testRule, "k"); err == nil && st.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, testRule.Limit, allowed.Load())
}
