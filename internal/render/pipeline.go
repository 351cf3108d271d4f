package render

import (
	"context"
	"sort"

	"github.com/ndrandal/tickvis/internal/gpu"
)

// Standard priority bands, lower runs first.
const (
	PriorityBackground = 0
	PriorityCandles    = 50
	PriorityLines      = 100
	PriorityAxes       = 150
)

// Component is one renderable element of a chart: a line series, a
// candlestick layer, an axis overlay, or a background band.
type Component interface {
	Name() string
	Priority() int
	ShouldClear() bool
	HasCompute() bool
	Compute(ctx context.Context, enc gpu.CommandEncoder) error
	Render(ctx context.Context) error
	Resize(width, height int)
}

// MultiRenderer composes an ordered set of Components into one frame:
// compute (priority order, shared encoder), global min/max reduction, then
// draw (priority order). Whether to clear first is reported by ShouldClear.
type MultiRenderer struct {
	components []Component
	device     gpu.Device
	reduce     func(ctx context.Context) error
}

// NewMultiRenderer builds a pipeline over device, sorted by ascending
// priority. reduce, if non-nil, runs once per frame after all per-component
// compute passes and before any render pass, implementing the "global
// min/max reduction" step shared across renderers.
func NewMultiRenderer(device gpu.Device, components []Component, reduce func(ctx context.Context) error) *MultiRenderer {
	ordered := make([]Component, len(components))
	copy(ordered, components)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority() < ordered[j].Priority() })
	return &MultiRenderer{components: ordered, device: device, reduce: reduce}
}

// Frame runs one full pass: compute, reduce, render. It does not clear the
// surface itself.
func (m *MultiRenderer) Frame(ctx context.Context) error {
	enc, err := m.device.CreateCommandEncoder()
	if err != nil {
		return err
	}

	for _, c := range m.components {
		if c.HasCompute() {
			if err := c.Compute(ctx, enc); err != nil {
				return err
			}
		}
	}
	if err := enc.Submit(ctx); err != nil {
		return err
	}

	if m.reduce != nil {
		if err := m.reduce(ctx); err != nil {
			return err
		}
	}

	for _, c := range m.components {
		if err := c.Render(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ShouldClear reports whether any component in the pipeline requests a
// surface clear this frame, matching the "clear once if any component
// requests it, or the first component if none do" rule.
func (m *MultiRenderer) ShouldClear() bool {
	for _, c := range m.components {
		if c.ShouldClear() {
			return true
		}
	}
	return len(m.components) > 0
}

// Resize propagates a surface resize to every component in priority
// order.
func (m *MultiRenderer) Resize(width, height int) {
	for _, c := range m.components {
		c.Resize(width, height)
	}
}
