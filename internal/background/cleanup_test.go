package background

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockSweeper counts Sweep calls
type MockSweeper struct {
	calls atomic.Int32
}

func (m *MockSweeper) Sweep(ctx context.Context) (int, int) {
	m.calls.Add(1)
	return 1, 0
}

func TestSweepManager_SweepsUntilStopped(t *testing.T) {
	sweeper := &MockSweeper{}
	sm := NewSweepManager(sweeper, slog.New(slog.NewTextHandler(io.Discard, nil)), 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		sm.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, time.Second, time.Millisecond)
	sm.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep manager did not stop")
	}
}

func TestSweepManager_StopsOnContextCancel(t *testing.T) {
	sm := NewSweepManager(&MockSweeper{}, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		sm.Start(ctx)
		close(done)
	}()
	cancel()

	assert.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}
