// Package chart renders per-day sentiment counts as PNG bar or line charts.
package chart

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/kalambet/feedbackd/internal/aggregate"
	"github.com/kalambet/feedbackd/internal/chartkind"
	"github.com/kalambet/feedbackd/internal/storage"
)

// NoDataMessage is the only content of the placeholder image.
const NoDataMessage = "No data for selected range"

// Series colors, shared by both chart kinds.
var (
	PositiveColor = color.RGBA{R: 0x4C, G: 0xAF, B: 0x50, A: 0xFF}
	NeutralColor  = color.RGBA{R: 0xFF, G: 0xC1, B: 0x07, A: 0xFF}
	NegativeColor = color.RGBA{R: 0xF4, G: 0x43, B: 0x36, A: 0xFF}
)

type series struct {
	label     string
	sentiment storage.Sentiment
	color     color.Color
}

// seriesOrder fixes left-to-right bar order and legend order.
var seriesOrder = []series{
	{"Positive", storage.Positive, PositiveColor},
	{"Neutral", storage.Neutral, NeutralColor},
	{"Negative", storage.Negative, NegativeColor},
}

// Renderer draws charts. The zero value is not usable; call NewRenderer.
// A Renderer holds no per-call state and may be shared.
type Renderer struct {
	DPI         int
	Width       vg.Length
	Height      vg.Length
	EmptyWidth  vg.Length
	EmptyHeight vg.Length
}

// NewRenderer returns a Renderer producing 10x5in charts and an 8x4in
// placeholder at 160 DPI.
func NewRenderer() *Renderer {
	return &Renderer{
		DPI:         160,
		Width:       10 * vg.Inch,
		Height:      5 * vg.Inch,
		EmptyWidth:  8 * vg.Inch,
		EmptyHeight: 4 * vg.Inch,
	}
}

// Render draws rows as a chart of the given kind with "title\nsubtitle" on
// top and returns PNG bytes. Empty rows produce the placeholder. Kinds other
// than bar are drawn as lines.
func (r *Renderer) Render(rows []aggregate.DailyCounts, kind chartkind.Kind, title, subtitle string) ([]byte, error) {
	if len(rows) == 0 {
		return r.placeholder()
	}

	p := plot.New()
	p.Title.Text = title + "\n" + subtitle
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Count of Reviews"
	p.Y.Min = 0
	p.Legend.Top = true

	grid := plotter.NewGrid()
	grid.Vertical.Color = color.Gray{Y: 0xDD}
	grid.Horizontal.Color = color.Gray{Y: 0xDD}
	p.Add(grid)

	var err error
	if kind == chartkind.Bar {
		err = addBars(p, rows, r.Width)
	} else {
		err = addLines(p, rows)
	}
	if err != nil {
		return nil, err
	}

	labels := make([]string, len(rows))
	for i, row := range rows {
		labels[i] = row.Date.Format(aggregate.DateLayout)
	}
	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = text.XRight
	p.X.Tick.Label.YAlign = text.YCenter

	return r.encode(p, r.Width, r.Height)
}

func addBars(p *plot.Plot, rows []aggregate.DailyCounts, canvasWidth vg.Length) error {
	// Three bars share each date slot; keep them within roughly 3/4 of it.
	w := canvasWidth * 0.8 / vg.Length(len(rows)) / 4
	w = max(min(w, 24), 1)

	for i, s := range seriesOrder {
		bars, err := plotter.NewBarChart(counts(rows, s.sentiment), w)
		if err != nil {
			return fmt.Errorf("building %s bars: %w", s.label, err)
		}
		bars.Color = s.color
		bars.LineStyle.Width = 0
		bars.Offset = vg.Length(i-1) * w
		p.Add(bars)
		p.Legend.Add(s.label, bars)
	}
	return nil
}

func addLines(p *plot.Plot, rows []aggregate.DailyCounts) error {
	for _, s := range seriesOrder {
		vals := counts(rows, s.sentiment)
		xys := make(plotter.XYs, len(vals))
		for i, v := range vals {
			xys[i] = plotter.XY{X: float64(i), Y: v}
		}
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return fmt.Errorf("building %s line: %w", s.label, err)
		}
		line.Color = s.color
		line.Width = vg.Points(1.5)
		points.GlyphStyle.Color = s.color
		points.GlyphStyle.Shape = draw.CircleGlyph{}
		points.GlyphStyle.Radius = vg.Points(3)
		p.Add(line, points)
		p.Legend.Add(s.label, line, points)
	}
	return nil
}

func counts(rows []aggregate.DailyCounts, s storage.Sentiment) plotter.Values {
	vals := make(plotter.Values, len(rows))
	for i, row := range rows {
		vals[i] = float64(row.Count(s))
	}
	return vals
}

func (r *Renderer) placeholder() ([]byte, error) {
	p := plot.New()
	p.HideAxes()
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	msg, err := plotter.NewLabels(plotter.XYLabels{
		XYs:    []plotter.XY{{X: 0.5, Y: 0.5}},
		Labels: []string{NoDataMessage},
	})
	if err != nil {
		return nil, fmt.Errorf("building placeholder label: %w", err)
	}
	msg.TextStyle[0].XAlign = text.XCenter
	msg.TextStyle[0].YAlign = text.YCenter
	msg.TextStyle[0].Font.Size = vg.Points(14)
	p.Add(msg)

	return r.encode(p, r.EmptyWidth, r.EmptyHeight)
}

func (r *Renderer) encode(p *plot.Plot, w, h vg.Length) ([]byte, error) {
	c := vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(r.DPI))
	p.Draw(draw.New(c))

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}
