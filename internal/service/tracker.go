package service

import "cobitis_web/internal/aggregate"

// windowTracker remembers the last tick boundary delivered to a client and
// computes the next incremental window. It is owned by one push loop.
type windowTracker struct {
	tickCount   int64
	tickLength  int64
	prevMaxTick int64
}

func newWindowTracker(tickCount int, tickLength int64) *windowTracker {
	return &windowTracker{tickCount: int64(tickCount), tickLength: tickLength}
}

// next returns the ticks [minTick, maxTick) not yet delivered at unix time
// now. ok is false when no tick boundary was crossed since the last commit.
// The window never spans more than tickCount ticks.
func (w *windowTracker) next(now int64) (minTick, maxTick int64, ok bool) {
	maxTick = aggregate.Tick(now, w.tickLength)
	if maxTick <= w.prevMaxTick {
		return 0, 0, false
	}
	minTick = w.prevMaxTick
	if floor := maxTick - w.tickCount; floor > minTick {
		minTick = floor
	}
	return minTick, maxTick, true
}

func (w *windowTracker) commit(maxTick int64) {
	w.prevMaxTick = maxTick
}
