package render

import (
	"context"
	"fmt"

	"github.com/ndrandal/tickvis/internal/datastore"
	"github.com/ndrandal/tickvis/internal/gpu"
)

// LineComponent draws one metric as a polyline. It never triggers a
// compute pass of its own: by the time MultiRenderer reaches the render
// phase, the metric's x/y buffers are already GPU-resident (a raw series
// uploaded at ingest time, or a computed one left resident by
// compute.Engine), so Render only has to turn them into vertices.
type LineComponent struct {
	key    datastore.MetricKey
	series *datastore.DataSeries

	width, height int
	vertices      []Vertex
}

// NewLineComponent builds a line renderer for one metric within series.
func NewLineComponent(key datastore.MetricKey, series *datastore.DataSeries) *LineComponent {
	return &LineComponent{key: key, series: series}
}

func (c *LineComponent) Name() string      { return fmt.Sprintf("line:%s", c.key) }
func (c *LineComponent) Priority() int     { return PriorityLines }
func (c *LineComponent) ShouldClear() bool { return false }
func (c *LineComponent) HasCompute() bool  { return false }

func (c *LineComponent) Compute(ctx context.Context, enc gpu.CommandEncoder) error { return nil }

// Render reads the metric's buffers back into a host-side vertex list,
// clipped to the series' current x range. On the CPU-simulated backend
// this read is the only way geometry ever reaches a "draw call"; a real
// backend would bind the buffers directly with no copy at all.
func (c *LineComponent) Render(ctx context.Context) error {
	m, ok := c.series.Metric(c.key)
	if !ok || !m.Visible || m.XBuffer == nil || m.YBuffer == nil {
		c.vertices = nil
		return nil
	}

	n := m.XBuffer.Size()
	if m.YBuffer.Size() < n {
		n = m.YBuffer.Size()
	}
	xs := make([]float32, n)
	ys := make([]float32, n)
	if _, err := m.XBuffer.Read(ctx, xs); err != nil {
		return fmt.Errorf("render: line %s: read x buffer: %w", c.key, err)
	}
	if _, err := m.YBuffer.Read(ctx, ys); err != nil {
		return fmt.Errorf("render: line %s: read y buffer: %w", c.key, err)
	}

	color := [4]float32{m.Color.R, m.Color.G, m.Color.B, m.Color.A}
	vertices := make([]Vertex, 0, n)
	for i := 0; i < n; i++ {
		if xs[i] < float32(c.series.StartX) || xs[i] > float32(c.series.EndX) {
			continue
		}
		vertices = append(vertices, Vertex{X: xs[i], Y: ys[i], Color: color})
	}
	c.vertices = vertices
	return nil
}

func (c *LineComponent) Resize(width, height int) { c.width, c.height = width, height }

// Vertices returns the polyline vertices built by the most recent Render
// call, one per in-range sample.
func (c *LineComponent) Vertices() []Vertex { return c.vertices }
