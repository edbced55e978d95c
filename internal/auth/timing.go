package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"

	"k8s.io/utils/clock"
)

// TimingConfig holds configuration for padding failed logins
type TimingConfig struct {
	BaseDelayMs    int  // Base delay in milliseconds
	RandomDelayMs  int  // Random delay range in milliseconds
	DelayOnSuccess bool // If true, delay successful logins too
}

// TimingDelay pads login responses so a wrong identifier, a wrong secret and
// a locked tab all take about the same time.
type TimingDelay struct {
	config TimingConfig
	clock  clock.Clock
}

// NewTimingDelay creates a TimingDelay on the real clock
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return NewTimingDelayWithClock(config, clock.RealClock{})
}

// NewTimingDelayWithClock creates a TimingDelay on clk
func NewTimingDelayWithClock(config TimingConfig, clk clock.Clock) *TimingDelay {
	return &TimingDelay{config: config, clock: clk}
}

// cryptoRandIntn returns a secure random number in [0, max)
func cryptoRandIntn(max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}

	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return 0, err
	}

	randomValue := binary.BigEndian.Uint64(randomBytes)
	return int(randomValue % uint64(max)), nil
}

func (td *TimingDelay) target() time.Duration {
	delay := time.Duration(td.config.BaseDelayMs) * time.Millisecond
	if td.config.RandomDelayMs > 0 {
		if n, err := cryptoRandIntn(td.config.RandomDelayMs); err == nil {
			delay += time.Duration(n) * time.Millisecond
		}
	}
	return delay
}

// Wait applies the full delay unless success is true and DelayOnSuccess is off
func (td *TimingDelay) Wait(ctx context.Context, success bool) {
	td.WaitFrom(ctx, td.clock.Now(), success)
}

// WaitFrom sleeps until at least the target delay has elapsed since start.
// It returns early if ctx is done.
func (td *TimingDelay) WaitFrom(ctx context.Context, start time.Time, success bool) {
	if success && !td.config.DelayOnSuccess {
		return
	}

	remaining := td.target() - td.clock.Since(start)
	if remaining <= 0 {
		return
	}

	select {
	case <-td.clock.After(remaining):
	case <-ctx.Done():
	}
}
