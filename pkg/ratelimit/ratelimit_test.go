package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindow_AllowAndSlide(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	sw := NewSlidingWindow(2, time.Minute)
	sw.now = func() time.Time { return clock }

	assert.True(t, sw.Allow())
	assert.True(t, sw.Allow())
	assert.False(t, sw.Allow())
	assert.Equal(t, 0, sw.GetRemaining())

	clock = clock.Add(61 * time.Second)
	assert.Equal(t, 2, sw.GetRemaining())
	assert.True(t, sw.Allow())
}

func TestSlidingWindow_WaitHonoursContext(t *testing.T) {
	sw := NewSlidingWindow(1, time.Hour)
	require.True(t, sw.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := sw.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSlidingWindow_WaitReturnsWhenSlotFrees(t *testing.T) {
	sw := NewSlidingWindow(1, 30*time.Millisecond)
	require.True(t, sw.Allow())

	start := time.Now()
	require.NoError(t, sw.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
