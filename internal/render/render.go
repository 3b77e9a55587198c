// Package render draws signal-to-squiggle alignments as PNG plots and
// interactive HTML charts.
package render

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/nanocall/internal/fsutil"
	"github.com/banshee-data/nanocall/internal/rawsignal"
	"github.com/banshee-data/nanocall/internal/squiggle"
)

// Series is an alignment flattened for plotting: one entry per sample of
// the active window, the first being sample Offset of the read. Expected is
// NaN where the sample is unaligned.
type Series struct {
	Offset   int
	Signal   []float64
	Expected []float64
	Rows     []int
}

// AlignmentSeries pairs every sample in the active window of raw with the
// mean of the squiggle row it was aligned to. path covers the whole read.
func AlignmentSeries(raw *rawsignal.RawSignal, sq *squiggle.Squiggle, path []int) (Series, error) {
	if len(path) != raw.Len() {
		return Series{}, fmt.Errorf("path has %d entries for %d samples", len(path), raw.Len())
	}
	samples := raw.Window()
	path = path[raw.Start():raw.End()]
	s := Series{
		Offset:   raw.Start(),
		Signal:   make([]float64, len(samples)),
		Expected: make([]float64, len(samples)),
		Rows:     path,
	}
	for i, v := range samples {
		s.Signal[i] = float64(v)
		s.Expected[i] = math.NaN()
		if p := path[i]; p >= 0 {
			if p >= sq.Len() {
				return Series{}, fmt.Errorf("sample %d aligned to row %d of %d", i, p, sq.Len())
			}
			s.Expected[i] = float64(sq.Rows[p].Mean)
		}
	}
	return s, nil
}

// segments splits the finite stretches of ys into separate point sets, with
// x counted from offset.
func segments(ys []float64, offset int) []plotter.XYs {
	var (
		out []plotter.XYs
		cur plotter.XYs
	)
	for i, y := range ys {
		if math.IsNaN(y) {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: float64(offset + i), Y: y})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// AlignmentPNG plots the signal and its aligned squiggle levels to path on
// fsys.
func AlignmentPNG(fsys fsutil.FileSystem, path, title string, s Series) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "sample"
	p.Y.Label.Text = "normalised current"

	pts := make(plotter.XYs, len(s.Signal))
	for i, v := range s.Signal {
		pts[i] = plotter.XY{X: float64(s.Offset + i), Y: v}
	}
	signal, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("signal line: %w", err)
	}
	signal.Color = color.RGBA{R: 90, G: 90, B: 90, A: 255}
	signal.Width = vg.Points(0.5)
	p.Add(signal)
	p.Legend.Add("signal", signal)

	expectedColor := color.RGBA{R: 220, G: 50, B: 47, A: 255}
	for i, seg := range segments(s.Expected, s.Offset) {
		line, err := plotter.NewLine(seg)
		if err != nil {
			return fmt.Errorf("expected line: %w", err)
		}
		line.Color = expectedColor
		line.Width = vg.Points(1.5)
		p.Add(line)
		if i == 0 {
			p.Legend.Add("squiggle", line)
		}
	}

	wt, err := p.WriterTo(14*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := fsys.Create(path)
	if err != nil {
		return err
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// AlignmentHTML writes an interactive line chart of the same series.
func AlignmentHTML(w io.Writer, title string, s Series) error {
	x := make([]int, len(s.Signal))
	signal := make([]opts.LineData, len(s.Signal))
	expected := make([]opts.LineData, len(s.Signal))
	for i := range s.Signal {
		x[i] = s.Offset + i
		signal[i] = opts.LineData{Value: s.Signal[i]}
		if math.IsNaN(s.Expected[i]) {
			expected[i] = opts.LineData{Value: "-"}
		} else {
			expected[i] = opts.LineData{Value: s.Expected[i], Name: fmt.Sprintf("row %d", s.Rows[i])}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("samples=%d", len(s.Signal))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
		charts.WithXAxisOpts(opts.XAxis{Name: "sample", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "current", NameLocation: "middle", NameGap: 30}),
	)
	line.SetXAxis(x).
		AddSeries("signal", signal).
		AddSeries("squiggle", expected)
	return line.Render(w)
}
