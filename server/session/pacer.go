package session

import (
	"context"
	"time"

	"fantasyrpg/shared/protocol"
)

// Pacer delays an attack for presentation. It reports progress in percent
// and returns ctx.Err() when cancelled.
type Pacer interface {
	Wait(ctx context.Context, progress func(percent int)) error
}

// TimerPacer waits Delay, calling progress every Tick.
type TimerPacer struct {
	Delay time.Duration
	Tick  time.Duration
}

func NewTimerPacer(delay time.Duration) TimerPacer {
	return TimerPacer{Delay: delay, Tick: protocol.AttackProgressTick}
}

func (p TimerPacer) Wait(ctx context.Context, progress func(percent int)) error {
	if p.Delay <= 0 {
		if progress != nil {
			progress(100)
		}
		return ctx.Err()
	}
	tick := p.Tick
	if tick <= 0 || tick > p.Delay {
		tick = p.Delay
	}
	step := int(100 * tick / p.Delay)
	if step < 1 {
		step = 1
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	deadline := time.NewTimer(p.Delay)
	defer deadline.Stop()

	pct := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			if progress != nil {
				progress(100)
			}
			return nil
		case <-ticker.C:
			pct += step
			if pct > 100 {
				pct = 100
			}
			if progress != nil {
				progress(pct)
			}
		}
	}
}
