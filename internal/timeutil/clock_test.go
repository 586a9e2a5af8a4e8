package timeutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealClock_SleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := RealClock{}.Sleep(ctx, time.Minute)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRealClock_SleepCompletes(t *testing.T) {
	err := RealClock{}.Sleep(context.Background(), time.Millisecond)
	assert.NoError(t, err)
}

func TestMockClock_RecordsSleeps(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	require.NoError(t, c.Sleep(context.Background(), time.Second))
	require.NoError(t, c.Sleep(context.Background(), 2*time.Second))

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, c.Sleeps())
	assert.Equal(t, start.Add(3*time.Second), c.Now())
}

func TestMockClock_OnSleepHook(t *testing.T) {
	c := NewMockClock(time.Time{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []int
	c.OnSleep(func(n int, d time.Duration) {
		seen = append(seen, n)
		if n == 1 {
			cancel()
		}
	})

	assert.NoError(t, c.Sleep(ctx, time.Millisecond))
	assert.ErrorIs(t, c.Sleep(ctx, time.Millisecond), context.Canceled)
	assert.Equal(t, []int{0, 1}, seen)
}

func TestMockTicker_Trigger(t *testing.T) {
	c := NewMockClock(time.Time{})
	tk := c.NewTicker(10 * time.Second)

	require.Len(t, c.Tickers(), 1)
	assert.Equal(t, 10*time.Second, c.Tickers()[0].Interval())

	assert.True(t, c.Tickers()[0].Trigger())
	// one pending tick at most
	assert.False(t, c.Tickers()[0].Trigger())

	select {
	case <-tk.C():
	default:
		t.Fatal("expected a tick")
	}

	tk.Stop()
	assert.True(t, c.Tickers()[0].Stopped())
	assert.False(t, c.Tickers()[0].Trigger())
}
