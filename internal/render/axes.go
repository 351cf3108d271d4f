package render

import (
	"context"

	"github.com/ndrandal/tickvis/internal/datastore"
	"github.com/ndrandal/tickvis/internal/gpu"
)

var axesColor = [4]float32{0.5, 0.5, 0.5, 1}

// AxesComponent draws evenly spaced x (time) and y (value) tick lines. It
// reads its y bound from the series' own cache first, falling back to the
// shared "range" buffer in the series bind group — the same value the
// compute engine's cross-metric min/max reduction writes there for every
// other draw pipeline to share.
type AxesComponent struct {
	series         *datastore.DataSeries
	xTicks, yTicks int

	width, height int
	lines         []Vertex
}

// NewAxesComponent builds an axes renderer over series with xTicks vertical
// and yTicks horizontal gridlines (both default to 5 if <= 0).
func NewAxesComponent(series *datastore.DataSeries, xTicks, yTicks int) *AxesComponent {
	if xTicks <= 0 {
		xTicks = 5
	}
	if yTicks <= 0 {
		yTicks = 5
	}
	return &AxesComponent{series: series, xTicks: xTicks, yTicks: yTicks}
}

func (a *AxesComponent) Name() string      { return "axes" }
func (a *AxesComponent) Priority() int     { return PriorityAxes }
func (a *AxesComponent) ShouldClear() bool { return false }
func (a *AxesComponent) HasCompute() bool  { return false }

func (a *AxesComponent) Compute(ctx context.Context, enc gpu.CommandEncoder) error { return nil }

func (a *AxesComponent) Render(ctx context.Context) error {
	lo, hi, ok := a.series.YBounds()
	if !ok {
		if buf, present := a.series.BindGroup().Get("range"); present && buf.Size() >= 2 {
			out := make([]float32, 2)
			if _, err := buf.Read(ctx, out); err == nil {
				lo, hi, ok = out[0], out[1], true
			}
		}
	}
	if !ok {
		a.lines = nil
		return nil
	}

	var lines []Vertex
	spanX := float32(a.series.EndX - a.series.StartX)
	for i := 0; i <= a.xTicks; i++ {
		x := float32(a.series.StartX) + spanX*float32(i)/float32(a.xTicks)
		lines = append(lines, Vertex{X: x, Y: lo, Color: axesColor}, Vertex{X: x, Y: hi, Color: axesColor})
	}

	spanY := hi - lo
	for i := 0; i <= a.yTicks; i++ {
		y := lo + spanY*float32(i)/float32(a.yTicks)
		lines = append(lines,
			Vertex{X: float32(a.series.StartX), Y: y, Color: axesColor},
			Vertex{X: float32(a.series.EndX), Y: y, Color: axesColor},
		)
	}

	a.lines = lines
	return nil
}

func (a *AxesComponent) Resize(width, height int) { a.width, a.height = width, height }

// Lines returns the tick-mark line segments built by the most recent
// Render call, two vertices per segment.
func (a *AxesComponent) Lines() []Vertex { return a.lines }
