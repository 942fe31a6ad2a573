package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Runner advances a Simulation on a wall-clock interval.
type Runner struct {
	Interval time.Duration // Base interval per week at speed 1
	OnWeek   func(TickSummary)

	sim *Simulation
	mu  sync.Locker // Shared with every other caller of sim

	speedMu sync.Mutex
	speed   float64 // Multiplier: 1.0 = one week per Interval, 0 = paused

	stop chan struct{}
	once sync.Once
}

// NewRunner creates a runner. mu must guard every other access to sim.
func NewRunner(sim *Simulation, mu sync.Locker, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Runner{
		Interval: interval,
		sim:      sim,
		mu:       mu,
		speed:    1.0,
		stop:     make(chan struct{}),
	}
}

// SetSpeed changes the multiplier. Zero or below pauses the runner.
func (r *Runner) SetSpeed(speed float64) {
	r.speedMu.Lock()
	r.speed = speed
	r.speedMu.Unlock()
}

// Speed returns the current multiplier.
func (r *Runner) Speed() float64 {
	r.speedMu.Lock()
	defer r.speedMu.Unlock()
	return r.speed
}

// Run advances weeks until the season ends, ctx is done or Stop is called.
func (r *Runner) Run(ctx context.Context) {
	slog.Info("season runner started", "interval", r.Interval, "speed", r.Speed())
	defer slog.Info("season runner stopped")

	for {
		speed := r.Speed()
		wait := 100 * time.Millisecond
		if speed > 0 {
			wait = time.Duration(float64(r.Interval) / speed)
		}

		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-time.After(wait):
		}

		if speed <= 0 {
			continue
		}
		if done := r.step(); done {
			return
		}
	}
}

// step advances one week and reports whether the season is over.
func (r *Runner) step() bool {
	r.mu.Lock()
	sum, err := r.sim.AdvanceWeek()
	r.mu.Unlock()

	if errors.Is(err, ErrAlreadyEnded) {
		return true
	}
	if err != nil {
		slog.Error("advance week", "error", err)
		return true
	}
	if r.OnWeek != nil && !sum.Paused {
		r.OnWeek(sum)
	}
	return sum.Outcome != nil
}

// Stop halts Run. Safe to call more than once.
func (r *Runner) Stop() {
	r.once.Do(func() { close(r.stop) })
}
