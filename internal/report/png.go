package report

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	lineColor      = color.RGBA{R: 0x2e, G: 0x7d, B: 0x32, A: 0xff}
	projectedColor = color.RGBA{R: 0xef, G: 0x6c, B: 0x00, A: 0xff}
	bandColor      = color.RGBA{R: 0xff, G: 0xb7, B: 0x4d, A: 0xff}
)

// PNG size.
const (
	pngWidth  = 10 * vg.Inch
	pngHeight = 5 * vg.Inch
)

// RenderPNG writes a PNG line chart of d.Axis with its projection band.
func RenderPNG(w io.Writer, d Data) error {
	p, err := newPlot(d)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(pngWidth, pngHeight, "png")
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return nil
}

// SavePNG writes the chart to file.
func SavePNG(file string, d Data) error {
	p, err := newPlot(d)
	if err != nil {
		return err
	}
	if err := p.Save(pngWidth, pngHeight, file); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", file, err)
	}
	return nil
}

func newPlot(d Data) (*plot.Plot, error) {
	history := d.series(d.Axis)
	if len(history) == 0 {
		return nil, ErrNoData
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - %s", d.title(), d.Axis)
	p.X.Label.Text = "Date"
	p.Y.Label.Text = fmt.Sprintf("%s (%s)", d.Axis, d.unit())
	p.X.Tick.Marker = plot.TimeTicks{Format: "Jan 2"}
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(history))
	for i, h := range history {
		pts[i] = plotter.XY{X: float64(h.t.Unix()), Y: h.v}
	}
	measured, glyphs, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, err
	}
	measured.Color = lineColor
	measured.Width = vg.Points(1.5)
	glyphs.GlyphStyle.Color = lineColor
	p.Add(measured, glyphs)
	p.Legend.Add(string(d.Axis), measured, glyphs)

	if len(d.Projection) > 0 {
		last := history[len(history)-1]
		projected := plotter.XYs{{X: float64(last.t.Unix()), Y: last.v}}
		low := plotter.XYs{{X: float64(last.t.Unix()), Y: last.v}}
		high := plotter.XYs{{X: float64(last.t.Unix()), Y: last.v}}
		for _, st := range d.Projection {
			x := float64(st.Date.Unix())
			projected = append(projected, plotter.XY{X: x, Y: d.display(st.PredictedValue)})
			low = append(low, plotter.XY{X: x, Y: d.display(st.Low)})
			high = append(high, plotter.XY{X: x, Y: d.display(st.High)})
		}

		projLine, err := plotter.NewLine(projected)
		if err != nil {
			return nil, err
		}
		projLine.Color = projectedColor
		projLine.Width = vg.Points(1.5)
		projLine.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
		p.Add(projLine)
		p.Legend.Add("projected", projLine)

		for _, band := range []plotter.XYs{low, high} {
			l, err := plotter.NewLine(band)
			if err != nil {
				return nil, err
			}
			l.Color = bandColor
			l.Width = vg.Points(1)
			l.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
			p.Add(l)
		}
	}

	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.XOffs = 10
	p.Legend.YOffs = -10
	return p, nil
}
