package export

import (
	"fmt"
	"image/color"
	"io"
	"os"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/Dicklesworthstone/loopline/pkg/analysis"
	"github.com/Dicklesworthstone/loopline/pkg/timeline"
)

// Chart geometry.
const (
	ChartWidth  = 1200
	ChartHeight = 360
	chartMargin = 60
	axisY       = ChartHeight / 2
)

// ChartPoint is one entry placed on the time axis.
type ChartPoint struct {
	TimeID   string
	Label    string
	X, Y     int
	Variants int
	Managed  bool // has loop or condition triggers
}

// ChartArc joins two entries referenced by a token.
type ChartArc struct {
	From, To int // indexes into ChartLayout.Points
	Kind     analysis.RefKind
}

// ChartLayout is the positioned chart shared by the SVG and PNG renderers.
type ChartLayout struct {
	Title  string
	Points []ChartPoint
	Arcs   []ChartArc
}

// LayoutChart places entries by absolute minutes and collects one arc per
// distinct entry pair and reference kind.
func LayoutChart(store *timeline.Store, title string) ChartLayout {
	layout := ChartLayout{Title: title}
	entries := store.Entries()
	if len(entries) == 0 {
		return layout
	}

	first := entries[0].AbsoluteMinutes
	span := entries[len(entries)-1].AbsoluteMinutes - first
	plot := ChartWidth - 2*chartMargin
	index := make(map[string]int, len(entries))

	for i, e := range entries {
		x := ChartWidth / 2
		if span > 0 {
			x = chartMargin + (e.AbsoluteMinutes-first)*plot/span
		}
		y := axisY - 40
		if i%2 == 1 {
			y = axisY + 50
		}
		label := e.TimeText
		if label == "" {
			label = e.DateText
		}
		index[e.TimeID] = len(layout.Points)
		layout.Points = append(layout.Points, ChartPoint{
			TimeID:   e.TimeID,
			Label:    label,
			X:        x,
			Y:        y,
			Variants: len(e.Scripts),
			Managed:  e.HasTriggers(),
		})
	}

	seen := make(map[string]bool)
	for _, ref := range analysis.NewReferenceGraph(store).References() {
		from, okFrom := index[ref.FromID]
		to, okTo := index[ref.ToID]
		if !okFrom || !okTo || from == to {
			continue
		}
		key := fmt.Sprintf("%d|%d|%s", from, to, ref.Kind)
		if seen[key] {
			continue
		}
		seen[key] = true
		layout.Arcs = append(layout.Arcs, ChartArc{From: from, To: to, Kind: ref.Kind})
	}
	return layout
}

func arcColor(kind analysis.RefKind) string {
	switch kind {
	case analysis.RefUnlock:
		return "#FFB86C"
	case analysis.RefPending:
		return "#6272A4"
	default:
		return "#8BE9FD"
	}
}

func pointColor(p ChartPoint) string {
	if p.Managed {
		return "#50FA7B"
	}
	return "#BD93F9"
}

// arcControl lifts the bezier control point above the axis in proportion to
// the distance covered.
func arcControl(a, b ChartPoint) (int, int) {
	dx := b.X - a.X
	if dx < 0 {
		dx = -dx
	}
	lift := dx / 3
	if lift > axisY-20 {
		lift = axisY - 20
	}
	return (a.X + b.X) / 2, axisY - lift
}

// WriteSVG renders the chart as SVG.
func WriteSVG(w io.Writer, layout ChartLayout) {
	canvas := svg.New(w)
	canvas.Start(ChartWidth, ChartHeight)
	canvas.Title(layout.Title)
	canvas.Rect(0, 0, ChartWidth, ChartHeight, "fill:#282A36")
	canvas.Text(chartMargin, 30, layout.Title, "fill:#F8F8F2;font-family:monospace;font-size:16px")
	canvas.Line(chartMargin, axisY, ChartWidth-chartMargin, axisY, "stroke:#44475A;stroke-width:2")

	for _, arc := range layout.Arcs {
		a, b := layout.Points[arc.From], layout.Points[arc.To]
		cx, cy := arcControl(a, b)
		canvas.Qbez(a.X, axisY, cx, cy, b.X, axisY,
			fmt.Sprintf("fill:none;stroke:%s;stroke-width:1.5;stroke-opacity:0.8", arcColor(arc.Kind)))
	}

	for _, p := range layout.Points {
		canvas.Line(p.X, axisY, p.X, p.Y, "stroke:#44475A;stroke-width:1")
		canvas.Circle(p.X, axisY, 3+2*p.Variants, "fill:"+pointColor(p))
		canvas.Text(p.X, p.Y, p.Label, "fill:#F8F8F2;font-family:monospace;font-size:11px;text-anchor:middle")
	}
	canvas.End()
}

// SaveSVG writes the chart of store to path.
func SaveSVG(store *timeline.Store, title, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create svg: %w", err)
	}
	defer f.Close()
	WriteSVG(f, LayoutChart(store, title))
	return f.Close()
}

func hexColor(s string) color.Color {
	var r, g, b uint8
	fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b)
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// RenderPNG draws the chart into a gg context.
func RenderPNG(layout ChartLayout) *gg.Context {
	dc := gg.NewContext(ChartWidth, ChartHeight)
	dc.SetColor(hexColor("#282A36"))
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(hexColor("#F8F8F2"))
	dc.DrawString(layout.Title, chartMargin, 30)

	dc.SetColor(hexColor("#44475A"))
	dc.SetLineWidth(2)
	dc.DrawLine(chartMargin, axisY, ChartWidth-chartMargin, axisY)
	dc.Stroke()

	dc.SetLineWidth(1.5)
	for _, arc := range layout.Arcs {
		a, b := layout.Points[arc.From], layout.Points[arc.To]
		cx, cy := arcControl(a, b)
		dc.SetColor(hexColor(arcColor(arc.Kind)))
		dc.MoveTo(float64(a.X), axisY)
		dc.QuadraticTo(float64(cx), float64(cy), float64(b.X), axisY)
		dc.Stroke()
	}

	for _, p := range layout.Points {
		dc.SetColor(hexColor("#44475A"))
		dc.SetLineWidth(1)
		dc.DrawLine(float64(p.X), axisY, float64(p.X), float64(p.Y))
		dc.Stroke()

		dc.SetColor(hexColor(pointColor(p)))
		dc.DrawCircle(float64(p.X), axisY, float64(3+2*p.Variants))
		dc.Fill()

		dc.SetColor(hexColor("#F8F8F2"))
		dc.DrawStringAnchored(p.Label, float64(p.X), float64(p.Y), 0.5, 0.5)
	}
	return dc
}

// SavePNG writes the chart of store to path.
func SavePNG(store *timeline.Store, title, path string) error {
	if err := RenderPNG(LayoutChart(store, title)).SavePNG(path); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}
