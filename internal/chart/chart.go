// Package chart renders candlestick charts with fitted trend lines.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"WedgeSentinel/internal/model"
)

var (
	upColor    = color.RGBA{R: 38, G: 166, B: 91, A: 255}
	downColor  = color.RGBA{R: 214, G: 48, B: 49, A: 255}
	wickColor  = color.RGBA{R: 90, G: 90, B: 90, A: 255}
	trendColor = color.RGBA{R: 255, G: 140, B: 0, A: 255}
)

// Renderer draws PNG charts of a fixed size.
type Renderer struct {
	Width  vg.Length
	Height vg.Length
}

// NewRenderer creates a renderer for width x height pixel images.
func NewRenderer(width, height int) *Renderer {
	if width <= 0 {
		width = 1000
	}
	if height <= 0 {
		height = 600
	}
	// vgimg renders at 96 dpi; one point is 96/72 pixels.
	return &Renderer{
		Width:  vg.Length(width) * vg.Inch / 96,
		Height: vg.Length(height) * vg.Inch / 96,
	}
}

// Render draws bars against their index and, when verdict is a found
// pattern, both trend lines across the window. It returns PNG bytes.
func (r *Renderer) Render(title string, bars []model.OHLCV, verdict *model.PatternVerdict) ([]byte, error) {
	if len(bars) == 0 {
		return nil, errors.New("render chart: empty window")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "bar"
	p.Y.Label.Text = "price"
	p.Add(plotter.NewGrid())
	p.Add(&candles{bars: bars})

	if verdict != nil && verdict.Found {
		last := float64(len(bars) - 1)
		for _, tl := range []struct {
			name string
			line model.TrendLine
		}{
			{"resistance", verdict.HighLine},
			{"support", verdict.LowLine},
		} {
			l, err := plotter.NewLine(plotter.XYs{
				{X: 0, Y: tl.line.At(0)},
				{X: last, Y: tl.line.At(last)},
			})
			if err != nil {
				return nil, fmt.Errorf("render chart: %s line: %w", tl.name, err)
			}
			l.LineStyle.Color = trendColor
			l.LineStyle.Width = vg.Points(1.5)
			p.Add(l)
			p.Legend.Add(tl.name, l)
		}
		p.Legend.Top = true
	}

	wt, err := p.WriterTo(r.Width, r.Height, "png")
	if err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}

// candles implements plot.Plotter and plot.DataRanger for OHLC bars.
type candles struct {
	bars []model.OHLCV
}

func (c *candles) DataRange() (xmin, xmax, ymin, ymax float64) {
	xmin, xmax = -0.5, float64(len(c.bars))-0.5
	ymin, ymax = c.bars[0].Low, c.bars[0].High
	for _, b := range c.bars[1:] {
		if b.Low < ymin {
			ymin = b.Low
		}
		if b.High > ymax {
			ymax = b.High
		}
	}
	return xmin, xmax, ymin, ymax
}

func (c *candles) Plot(cv draw.Canvas, p *plot.Plot) {
	trX, trY := p.Transforms(&cv)
	half := (trX(1) - trX(0)) * 0.35
	wick := draw.LineStyle{Color: wickColor, Width: vg.Points(0.5)}

	for i, b := range c.bars {
		x := trX(float64(i))
		cv.StrokeLine2(wick, x, trY(b.Low), x, trY(b.High))

		col := upColor
		if b.Close < b.Open {
			col = downColor
		}
		top, bottom := trY(b.Close), trY(b.Open)
		if bottom > top {
			top, bottom = bottom, top
		}
		if top == bottom {
			cv.StrokeLine2(draw.LineStyle{Color: col, Width: vg.Points(1)}, x-half, top, x+half, top)
			continue
		}
		cv.FillPolygon(col, []vg.Point{
			{X: x - half, Y: bottom},
			{X: x + half, Y: bottom},
			{X: x + half, Y: top},
			{X: x - half, Y: top},
		})
	}
}
