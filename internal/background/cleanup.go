package background

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is anything that can expire sessions and evict idle state
type Sweeper interface {
	Sweep(ctx context.Context) (expired, evicted int)
}

// SweepManager periodically sweeps the gatekeeper registry
type SweepManager struct {
	sweeper  Sweeper
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewSweepManager creates a new sweep manager
func NewSweepManager(sweeper Sweeper, logger *slog.Logger, interval time.Duration) *SweepManager {
	return &SweepManager{
		sweeper:  sweeper,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs sweeps until Stop is called or ctx is cancelled
func (sm *SweepManager) Start(ctx context.Context) {
	ticker := time.NewTicker(sm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sm.runSweep(ctx)
		case <-sm.stopCh:
			sm.logger.Info("sweep manager stopped")
			return
		case <-ctx.Done():
			sm.logger.Info("sweep manager context cancelled")
			return
		}
	}
}

func (sm *SweepManager) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	expired, evicted := sm.sweeper.Sweep(sweepCtx)
	if expired > 0 || evicted > 0 {
		sm.logger.Info("gatekeeper sweep completed",
			slog.Int("sessions_expired", expired),
			slog.Int("gatekeepers_evicted", evicted))
	}
}

// Stop signals the sweep manager to stop
func (sm *SweepManager) Stop() {
	close(sm.stopCh)
}
