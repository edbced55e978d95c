package gatekeeper

import (
	"fmt"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Handle cancels a scheduled countdown. Cancel is idempotent.
type Handle interface {
	Cancel()
}

// Scheduler runs a repeating tick. onTick is called every interval until it
// returns true, after which onComplete runs once. Nothing runs after Cancel.
type Scheduler interface {
	ScheduleTick(interval time.Duration, onTick func() (done bool), onComplete func()) Handle
}

// ClockScheduler drives countdowns from a clock ticker, one goroutine per countdown
type ClockScheduler struct {
	clock clock.WithTicker
}

// NewClockScheduler creates a scheduler on c
func NewClockScheduler(c clock.WithTicker) *ClockScheduler {
	return &ClockScheduler{clock: c}
}

type tickHandle struct {
	stop chan struct{}
	once sync.Once
}

func (h *tickHandle) Cancel() {
	h.once.Do(func() { close(h.stop) })
}

func (h *tickHandle) cancelled() bool {
	select {
	case <-h.stop:
		return true
	default:
		return false
	}
}

func (s *ClockScheduler) ScheduleTick(interval time.Duration, onTick func() bool, onComplete func()) Handle {
	h := &tickHandle{stop: make(chan struct{})}
	ticker := s.clock.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C():
				if h.cancelled() {
					return
				}
				if onTick() {
					if !h.cancelled() {
						onComplete()
					}
					return
				}
			}
		}
	}()

	return h
}

// FormatRemaining renders a countdown as "MM:SS min" from one minute up and
// "SS sec" below, rounding partial seconds up.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	if secs >= 60 {
		return fmt.Sprintf("%02d:%02d min", secs/60, secs%60)
	}
	return fmt.Sprintf("%02d sec", secs)
}

// ceilSeconds is the whole-second count shown in lockout messages
func ceilSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

var _ Scheduler = (*ClockScheduler)(nil)
