package chart

import (
	"image"
	"testing"
	"time"

	"cobitis_web/internal/models"
)

func seriesOf(minTick, maxTick int64, fill float64) models.Series {
	s := models.NewSeries(minTick, maxTick)
	for i := range s.Series {
		for j := range s.Series[i] {
			s.Series[i][j] = models.V(fill + float64(j))
		}
	}
	return s
}

func TestWindow_ResetFillsNoData(t *testing.T) {
	w := NewWindow(4)
	snap := w.Snapshot(0)
	if len(snap) != 5 {
		t.Fatalf("snapshot length %d, want 5", len(snap))
	}
	for i, v := range snap {
		if v != nil {
			t.Fatalf("slot %d = %v, want nil", i, *v)
		}
	}
}

func TestWindow_ApplyShiftsAndAppends(t *testing.T) {
	w := NewWindow(4)
	if err := w.Apply(seriesOf(10, 13, 1)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := w.Apply(seriesOf(13, 15, 10)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	snap := w.Snapshot(1)
	want := []float64{2, 3, 10, 11}
	for i, f := range want {
		if snap[i] == nil || *snap[i] != f {
			t.Fatalf("slot %d = %v, want %v", i, snap[i], f)
		}
	}
	if snap[4] != nil {
		t.Fatalf("trailing slot must be nil")
	}
	if w.MaxTick() != 15 || w.BaseTick() != 11 {
		t.Fatalf("maxTick=%d baseTick=%d", w.MaxTick(), w.BaseTick())
	}
}

func TestWindow_ApplyLargerThanWindow(t *testing.T) {
	w := NewWindow(3)
	if err := w.Apply(seriesOf(0, 10, 0)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	snap := w.Snapshot(2)
	if *snap[0] != 7 || *snap[2] != 9 {
		t.Fatalf("unexpected window %v %v", *snap[0], *snap[2])
	}
}

func TestWindow_ApplyRejectsMalformed(t *testing.T) {
	w := NewWindow(3)
	if err := w.Apply(seriesOf(0, 2, 1)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	short := seriesOf(2, 4, 5)
	short.Series[1] = short.Series[1][:1]
	cases := []models.Series{
		{MinTick: 4, MaxTick: 4},
		{MinTick: 5, MaxTick: 4},
		short,
	}
	for i, s := range cases {
		if err := w.Apply(s); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
	if w.MaxTick() != 2 {
		t.Fatalf("malformed series changed the window")
	}
}

func TestWindow_Params(t *testing.T) {
	w := NewWindow(360)
	if err := w.Apply(seriesOf(1000, 1360, 20)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	temp, err := w.Params(KindTemperature, 60, RangeHourly, time.UTC)
	if err != nil {
		t.Fatalf("Params: %v", err)
	}
	if len(temp.Series) != 2 || temp.Scale != 1 || temp.Colors[0] != "#5DADE2" || temp.BaseTick != 1000 {
		t.Fatalf("unexpected temperature params %+v", temp)
	}
	tds, err := w.Params(KindTDS, 60, RangeHourly, time.UTC)
	if err != nil {
		t.Fatalf("Params: %v", err)
	}
	if len(tds.Series) != 1 || tds.Scale != 5 || tds.Colors[0] != "#EB984E" {
		t.Fatalf("unexpected tds params %+v", tds)
	}
	if _, err := w.Params("humidity", 60, 0, nil); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestRenderer_Render(t *testing.T) {
	w := NewWindow(360)
	_ = w.Apply(seriesOf(1000, 1360, 20))
	p, _ := w.Params(KindTemperature, 60, RangeHourly, time.UTC)

	r := NewRenderer("")
	img, err := r.Render(p, 640, 240)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 640, 240) {
		t.Fatalf("bounds %v", img.Bounds())
	}
	// Margin corner stays transparent.
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Fatalf("expected transparent corner, alpha=%d", a)
	}
}

func TestRenderer_FontFallbackIsCached(t *testing.T) {
	r := NewRenderer("/nonexistent/font.ttf")
	f1 := r.face(11)
	f2 := r.face(11)
	if f1 == nil || f1 != f2 {
		t.Fatalf("expected cached fallback face")
	}
}
