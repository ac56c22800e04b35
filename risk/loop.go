package risk

import (
	"context"
	"log/slog"
	"time"
)

// CycleObserver is told about every processed cycle
type CycleObserver func(r *CycleResult)

// ControlLoop drives a RiskEstimator at a fixed period, pulling the latest
// pose and scan from a StateTracker once per tick. All estimator work happens
// on the loop goroutine.
type ControlLoop struct {
	Estimator *RiskEstimator
	State     *StateTracker
	Interval  time.Duration
	Logger    *slog.Logger
	Observers []CycleObserver
}

// Run ticks until ctx is cancelled
func (l *ControlLoop) Run(ctx context.Context) error {
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultControlInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.Tick()
		}
	}
}

func (l *ControlLoop) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// Tick runs a single control cycle if inputs are available
func (l *ControlLoop) Tick() {
	pose, scan, ok := l.State.Inputs()
	if !ok {
		return
	}
	res, processed, err := l.Estimator.Cycle(pose, scan)
	if err != nil {
		l.logger().Warn("cycle failed", "error", err)
		return
	}
	if !processed {
		return
	}
	l.State.UpdateResult(res)
	for _, obs := range l.Observers {
		obs(res)
	}
}
