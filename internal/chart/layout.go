// Package chart lays out and rasterizes tick series charts.
package chart

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"cobitis_web/internal/models"
)

const (
	// MinAxisSpan is the smallest value-axis span in axis units.
	MinAxisSpan = 15
	// AxisMargin is the headroom added above and below the data.
	AxisMargin = 3
	// YLabelEvery is the label interval on the value axis.
	YLabelEvery = 5
)

// Range classes select the X label rule.
const (
	RangeHourly = iota
	RangeThreeHourly
	RangeDaily
	RangeWeekly
)

// Params is everything needed to draw one chart.
type Params struct {
	BaseTick   int64
	TickCount  int
	TickLength int64
	Scale      float64
	Series     [][]models.Value // each exactly TickCount+1 slots
	Colors     []string
	RangeClass int
	Location   *time.Location
}

func (p Params) validate() error {
	switch {
	case p.TickCount <= 0:
		return errors.New("chart: tick count must be positive")
	case p.TickLength <= 0:
		return errors.New("chart: tick length must be positive")
	case p.Scale == 0 || math.IsNaN(p.Scale) || math.IsInf(p.Scale, 0):
		return errors.New("chart: scale must be finite and non-zero")
	case len(p.Series) != len(p.Colors):
		return errors.New("chart: one color per series required")
	}
	for i, s := range p.Series {
		if len(s) != p.TickCount+1 {
			return fmt.Errorf("chart: series %d has %d slots, want %d", i, len(s), p.TickCount+1)
		}
	}
	return nil
}

type Margins struct {
	Left, Right, Top, Bottom int
}

type Point struct {
	X, Y float64
}

// Segment is one polyline: a run of consecutive finite values.
type Segment struct {
	Color  string
	Points []Point
}

// GridLine is a single axis-parallel line in surface pixels.
type GridLine struct {
	X1, Y1, X2, Y2 float64
	Dashed         bool
}

// Label is anchored at (X, Y): X labels hang below the point centered,
// Y labels sit left of the point vertically centered.
type Label struct {
	Text string
	X, Y float64
}

// Plan is the resolved geometry of a chart. It does not depend on font metrics.
type Plan struct {
	Width, Height int
	Margins       Margins
	Span          int
	Base          *int // nil when no finite value exists
	StepX, StepY  float64
	GridLines     []GridLine
	XLabels       []Label
	YLabels       []Label
	Segments      []Segment // in draw order
	LineWidth     float64
	FontSize      float64
}

// PlotRect returns the plot area (x, y, w, h) excluding margins.
func (p Plan) PlotRect() (x, y, w, h int) {
	m := p.Margins
	return m.Left, m.Top, p.Width - m.Left - m.Right, p.Height - m.Top - m.Bottom
}

// Layout computes the chart geometry for a width x height surface.
func Layout(p Params, width, height int) (Plan, error) {
	if err := p.validate(); err != nil {
		return Plan{}, err
	}
	if width <= 0 || height <= 0 {
		return Plan{}, errors.New("chart: surface size must be positive")
	}
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}

	w, h := float64(width), float64(height)
	m := Margins{
		Left:   int(jsRound(w * 0.07)),
		Right:  0,
		Top:    int(jsRound(h * 0.03)),
		Bottom: int(jsRound(h * 0.05)),
	}

	plan := Plan{
		Width:     width,
		Height:    height,
		Margins:   m,
		LineWidth: math.Min(w, h) * 0.013,
		FontSize:  float64(m.Bottom - 1),
	}
	plan.Span, plan.Base = axisRange(p)
	plan.StepX = (w - float64(m.Left) - float64(m.Right) + 1) / float64(p.TickCount)
	plan.StepY = (h - float64(m.Top) - float64(m.Bottom) + 1) / float64(plan.Span)

	calcX := func(n int) float64 { return float64(m.Left) + plan.StepX*float64(n) }
	calcY := func(n float64) float64 { return h - float64(m.Bottom) - plan.StepY*n }
	top, bottom := float64(m.Top), h-float64(m.Bottom)

	for n := 0; n < p.TickCount; n++ {
		text, ok := xLabel(p, n, loc)
		if !ok {
			continue
		}
		x := math.Round(calcX(n)) + 0.5
		plan.GridLines = append(plan.GridLines, GridLine{X1: x, Y1: top, X2: x, Y2: bottom, Dashed: true})
		plan.XLabels = append(plan.XLabels, Label{Text: text, X: x, Y: bottom + 2})
	}

	for n := 0; n <= plan.Span; n++ {
		text, ok := yLabel(p, n, plan.Base)
		y := math.Round(calcY(float64(n))) + 0.5
		plan.GridLines = append(plan.GridLines, GridLine{X1: float64(m.Left), Y1: y, X2: w - float64(m.Right), Y2: y, Dashed: !ok})
		if ok && n > 0 {
			plan.YLabels = append(plan.YLabels, Label{Text: text, X: float64(m.Left - 4), Y: y - 0.5})
		}
	}

	if plan.Base != nil {
		base := float64(*plan.Base)
		for i := len(p.Series) - 1; i >= 0; i-- {
			for _, run := range finiteRuns(p.Series[i], p.TickCount+1) {
				seg := Segment{Color: p.Colors[i], Points: make([]Point, 0, len(run.values))}
				for j, v := range run.values {
					seg.Points = append(seg.Points, Point{
						X: calcX(run.start + j),
						Y: calcY(v/p.Scale - base),
					})
				}
				plan.Segments = append(plan.Segments, seg)
			}
		}
	}

	return plan, nil
}

// axisRange returns the value-axis span and base. Base is nil without data.
func axisRange(p Params) (int, *int) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range p.Series {
		for _, v := range s {
			if !finite(v) {
				continue
			}
			f := *v / p.Scale
			lo = math.Min(lo, f)
			hi = math.Max(hi, f)
		}
	}
	if math.IsInf(lo, 1) {
		return MinAxisSpan, nil
	}
	maxV, minV := math.Ceil(hi), math.Floor(lo)
	span := int(math.Max(MinAxisSpan, maxV-minV+AxisMargin*2))
	base := int(jsRound((maxV+minV)/2 - float64(span)/2))
	return span, &base
}

// xLabel compares the calendar fields of tick n and tick n-1.
func xLabel(p Params, n int, loc *time.Location) (string, bool) {
	d1 := time.Unix((p.BaseTick+int64(n))*p.TickLength, 0).In(loc)
	d2 := time.Unix((p.BaseTick+int64(n)-1)*p.TickLength, 0).In(loc)

	switch p.RangeClass {
	case RangeHourly:
		if d1.Hour() != d2.Hour() {
			return d1.Format("15:00"), true
		}
	case RangeThreeHourly:
		if d1.Hour()%3 == 0 && d1.Hour() != d2.Hour() {
			return d1.Format("15:00"), true
		}
	case RangeDaily:
		if d1.Day() != d2.Day() {
			return d1.Format("01/02"), true
		}
	case RangeWeekly:
		if d1.Weekday() == time.Sunday && d1.Day() != d2.Day() {
			return d1.Format("01/02"), true
		}
	}
	return "", false
}

func yLabel(p Params, n int, base *int) (string, bool) {
	if base == nil || mod(*base+n, YLabelEvery) != 0 {
		return "", false
	}
	return strconv.FormatFloat(float64(*base+n)*p.Scale, 'f', -1, 64), true
}

type run struct {
	start  int
	values []float64
}

// finiteRuns splits the first n slots of s into runs of finite values.
func finiteRuns(s []models.Value, n int) []run {
	var out []run
	var cur *run
	for i := 0; i < n; i++ {
		if i < len(s) && finite(s[i]) {
			if cur == nil {
				out = append(out, run{start: i})
				cur = &out[len(out)-1]
			}
			cur.values = append(cur.values, *s[i])
			continue
		}
		cur = nil
	}
	return out
}

func finite(v models.Value) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

// jsRound rounds half toward positive infinity.
func jsRound(x float64) float64 {
	return math.Floor(x + 0.5)
}

func mod(a, b int) int {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}
