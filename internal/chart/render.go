package chart

import (
	"image"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

const (
	gridAlpha   = 0.5
	shadowAlpha = 0.5
)

// Renderer rasterizes chart plans. Font faces are loaded lazily per size and
// cached; without a usable TTF the built-in 7x13 face is used.
type Renderer struct {
	fontPath string

	mu    sync.Mutex
	faces map[float64]font.Face
}

func NewRenderer(fontPath string) *Renderer {
	return &Renderer{fontPath: fontPath, faces: make(map[float64]font.Face)}
}

// Render lays out p and draws it onto a transparent RGBA image.
func (r *Renderer) Render(p Params, width, height int) (image.Image, error) {
	plan, err := Layout(p, width, height)
	if err != nil {
		return nil, err
	}
	return r.Draw(plan), nil
}

// Draw rasterizes a plan: grid, then clipped series, then labels.
func (r *Renderer) Draw(plan Plan) image.Image {
	dc := gg.NewContext(plan.Width, plan.Height)

	dc.SetLineWidth(1)
	dc.SetRGBA(1, 1, 1, gridAlpha)
	for _, g := range plan.GridLines {
		if g.Dashed {
			dc.SetDash(1, 1)
		} else {
			dc.SetDash()
		}
		dc.DrawLine(g.X1, g.Y1, g.X2, g.Y2)
		dc.Stroke()
	}
	dc.SetDash()

	px, py, pw, ph := plan.PlotRect()
	if pw > 0 && ph > 0 && len(plan.Segments) > 0 {
		dc.DrawImage(drawSeries(plan, px, py, pw, ph), px, py)
	}

	if len(plan.XLabels) > 0 || len(plan.YLabels) > 0 {
		dc.SetFontFace(r.face(plan.FontSize))
		dc.SetRGB(1, 1, 1)
		for _, l := range plan.XLabels {
			dc.DrawStringAnchored(l.Text, l.X, l.Y, 0.5, 1)
		}
		for _, l := range plan.YLabels {
			dc.DrawStringAnchored(l.Text, l.X, l.Y, 1, 0.5)
		}
	}

	return dc.Image()
}

// drawSeries strokes every segment on a plot-sized layer so nothing bleeds
// into the margins. Each stroke is preceded by its offset shadow.
func drawSeries(plan Plan, px, py, pw, ph int) image.Image {
	layer := gg.NewContext(pw, ph)
	layer.Translate(-float64(px), -float64(py))
	layer.SetLineWidth(plan.LineWidth)
	layer.SetLineCap(gg.LineCapSquare)
	layer.SetLineJoin(gg.LineJoinRound)

	offset := plan.LineWidth * 0.5
	for _, seg := range plan.Segments {
		layer.SetRGBA(0, 0, 0, shadowAlpha)
		tracePath(layer, seg.Points, offset, plan.LineWidth)

		layer.SetHexColor(seg.Color)
		tracePath(layer, seg.Points, 0, plan.LineWidth)
	}
	return layer.Image()
}

func tracePath(dc *gg.Context, pts []Point, offset, lineWidth float64) {
	if len(pts) == 1 {
		half := lineWidth / 2
		dc.DrawRectangle(pts[0].X+offset-half, pts[0].Y+offset-half, lineWidth, lineWidth)
		dc.Fill()
		return
	}
	dc.MoveTo(pts[0].X+offset, pts[0].Y+offset)
	for _, p := range pts[1:] {
		dc.LineTo(p.X+offset, p.Y+offset)
	}
	dc.Stroke()
}

func (r *Renderer) face(size float64) font.Face {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.faces[size]; ok {
		return f
	}
	var f font.Face = basicfont.Face7x13
	if r.fontPath != "" && size > 0 {
		if loaded, err := gg.LoadFontFace(r.fontPath, size); err == nil {
			f = loaded
		}
	}
	r.faces[size] = f
	return f
}
