package loop

import (
	"context"
	"runtime"
	"time"
)

// DefaultDisplayHz is the cadence of the default frame scheduler.
const DefaultDisplayHz = 60

// Scheduler is the "run on the next display frame" primitive the loop yields to
// between cycles.
type Scheduler interface {
	// Wait blocks until the next frame slot or until ctx is done.
	Wait(ctx context.Context) error
}

// FrameTicker schedules cycles on a fixed display refresh cadence.
type FrameTicker struct {
	ticker *time.Ticker
}

// NewFrameTicker creates a FrameTicker firing hz times per second.
// Values less than or equal to 0 use DefaultDisplayHz.
func NewFrameTicker(hz int) *FrameTicker {
	if hz <= 0 {
		hz = DefaultDisplayHz
	}
	return &FrameTicker{ticker: time.NewTicker(time.Second / time.Duration(hz))}
}

// Wait blocks until the next tick. Ticks missed while a cycle ran are dropped,
// so a slow cycle is followed immediately by the next one.
func (f *FrameTicker) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.ticker.C:
		return nil
	}
}

// Stop releases the ticker.
func (f *FrameTicker) Stop() {
	f.ticker.Stop()
}

type immediate struct{}

// Immediate yields the processor and returns without waiting for a display frame.
var Immediate Scheduler = immediate{}

func (immediate) Wait(ctx context.Context) error {
	runtime.Gosched()
	return ctx.Err()
}
