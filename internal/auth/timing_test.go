package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/BradenHooton/admingate/internal/auth"
)

func TestTimingDelay_Wait_OnFailure(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   100,
		RandomDelayMs: 50,
	})
	startTime := time.Now()

	timing.Wait(context.Background(), false)

	elapsed := time.Since(startTime)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 200*time.Millisecond)
}

func TestTimingDelay_Wait_OnSuccess_NoDelay(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 100, RandomDelayMs: 50})
	startTime := time.Now()

	timing.Wait(context.Background(), true)

	assert.Less(t, time.Since(startTime), 10*time.Millisecond)
}

func TestTimingDelay_Wait_OnSuccess_WithDelay(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 100, DelayOnSuccess: true})
	startTime := time.Now()

	timing.Wait(context.Background(), true)

	assert.GreaterOrEqual(t, time.Since(startTime), 100*time.Millisecond)
}

func TestTimingDelay_WaitFrom_AdjustsForElapsedTime(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))
	timing := auth.NewTimingDelayWithClock(auth.TimingConfig{BaseDelayMs: 100}, clk)
	start := clk.Now()
	clk.Step(60 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		timing.WaitFrom(context.Background(), start, false)
		close(done)
	}()

	assert.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)
	clk.Step(39 * time.Millisecond)
	assert.Never(t, func() bool { return isClosed(done) }, 20*time.Millisecond, time.Millisecond)

	clk.Step(time.Millisecond)
	assert.Eventually(t, func() bool { return isClosed(done) }, time.Second, time.Millisecond)
}

func TestTimingDelay_WaitFrom_NoWaitIfAlreadyExceeded(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))
	timing := auth.NewTimingDelayWithClock(auth.TimingConfig{BaseDelayMs: 50}, clk)
	start := clk.Now()
	clk.Step(100 * time.Millisecond)

	timing.WaitFrom(context.Background(), start, false)

	assert.False(t, clk.HasWaiters())
}

func TestTimingDelay_WaitFrom_ReturnsOnCancel(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 10_000})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	startTime := time.Now()
	timing.WaitFrom(ctx, startTime, false)

	assert.Less(t, time.Since(startTime), 100*time.Millisecond)
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
