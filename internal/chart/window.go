package chart

import (
	"fmt"
	"time"

	"cobitis_web/internal/models"

	"github.com/gammazero/deque"
)

// Kind selects which rows of a window a chart shows.
type Kind string

const (
	KindTemperature Kind = "temp"
	KindTDS         Kind = "tds"
)

// Presentation per kind.
var (
	TemperatureColors = []string{"#5DADE2", "#82E0AA"}
	TDSColors         = []string{"#EB984E"}
)

const (
	TemperatureScale = 1
	TDSScale         = 5
)

// Window is the client-side rolling buffer: exactly tickCount slots per row,
// ending at the most recently applied MaxTick.
type Window struct {
	tickCount int
	maxTick   int64
	rows      [3]deque.Deque[models.Value]
}

func NewWindow(tickCount int) *Window {
	w := &Window{}
	w.Reset(tickCount)
	return w
}

// Reset empties the buffer to tickCount "no data" slots.
func (w *Window) Reset(tickCount int) {
	w.tickCount = tickCount
	w.maxTick = 0
	for i := range w.rows {
		w.rows[i] = deque.Deque[models.Value]{}
		for j := 0; j < tickCount; j++ {
			w.rows[i].PushBack(nil)
		}
	}
}

// Apply shifts the buffer left by the number of new ticks and appends the
// pushed values. A malformed series leaves the buffer untouched.
func (w *Window) Apply(s models.Series) error {
	n := s.MaxTick - s.MinTick
	if n <= 0 {
		return fmt.Errorf("chart: empty series window [%d, %d)", s.MinTick, s.MaxTick)
	}
	for i, row := range s.Series {
		if int64(len(row)) != n {
			return fmt.Errorf("chart: series %d has %d slots, want %d", i, len(row), n)
		}
	}

	for i := range w.rows {
		for _, v := range s.Series[i] {
			w.rows[i].PushBack(v)
		}
		for w.rows[i].Len() > w.tickCount {
			w.rows[i].PopFront()
		}
	}
	w.maxTick = s.MaxTick
	return nil
}

func (w *Window) TickCount() int { return w.tickCount }

func (w *Window) MaxTick() int64 { return w.maxTick }

// BaseTick is the tick of the first slot.
func (w *Window) BaseTick() int64 { return w.maxTick - int64(w.tickCount) }

// Snapshot copies row i with one trailing "no data" slot.
func (w *Window) Snapshot(i int) []models.Value {
	out := make([]models.Value, w.tickCount+1)
	for j := 0; j < w.rows[i].Len(); j++ {
		out[j] = w.rows[i].At(j)
	}
	return out
}

// Params builds the chart parameters of one kind for the current buffer.
func (w *Window) Params(kind Kind, tickLength int64, rangeClass int, loc *time.Location) (Params, error) {
	p := Params{
		BaseTick:   w.BaseTick(),
		TickCount:  w.tickCount,
		TickLength: tickLength,
		RangeClass: rangeClass,
		Location:   loc,
	}
	switch kind {
	case KindTemperature:
		p.Scale = TemperatureScale
		p.Series = [][]models.Value{w.Snapshot(0), w.Snapshot(1)}
		p.Colors = TemperatureColors
	case KindTDS:
		p.Scale = TDSScale
		p.Series = [][]models.Value{w.Snapshot(2)}
		p.Colors = TDSColors
	default:
		return Params{}, fmt.Errorf("chart: unknown kind %q", kind)
	}
	return p, nil
}
