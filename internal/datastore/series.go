package datastore

import (
	"fmt"

	"github.com/ndrandal/tickvis/internal/gpu"
)

// Color is an RGBA display color in [0,1], the format renderers bind
// straight into a vertex shader's per-series uniform.
type Color struct {
	R, G, B, A float32
}

// SeriesMetric is one metric as it appears inside a DataSeries: the
// MetricKey identifying it in the compute graph, plus the client-facing
// state a chart needs that the compute graph itself has no business
// carrying — display color, visibility, and (for metrics a tool needs to
// inspect on the CPU, like a tooltip reading raw trade prices) an optional
// raw byte view alongside its GPU buffers.
type SeriesMetric struct {
	Key     MetricKey
	Color   Color
	Visible bool

	XBuffer gpu.Buffer
	YBuffer gpu.Buffer

	// RawBytes is an optional CPU-side mirror of the metric's values,
	// present only for metrics a UI needs to read without a GPU readback
	// (e.g. a raw trade-price series backing a tooltip). Most metrics,
	// especially computed ones that stay GPU-resident, leave this nil.
	RawBytes []byte
}

// DataSeries owns the metrics plotted on one chart pane: their shared x
// range and a cached, possibly-absent y bound, invalidated by any
// mutation along with the shared bind group every draw pipeline in the
// pane reads from.
type DataSeries struct {
	StartX uint32
	EndX   uint32

	metrics []*SeriesMetric
	byKey   map[MetricKey]int

	yBounds   *[2]float32
	bindGroup *gpu.BindGroup
}

// NewDataSeries builds an empty series over [startX, endX]. startX must be
// <= endX; ranges come from the view window the chart is displaying.
func NewDataSeries(startX, endX uint32) (*DataSeries, error) {
	if startX > endX {
		return nil, fmt.Errorf("datastore: series start_x %d > end_x %d", startX, endX)
	}
	return &DataSeries{
		StartX: startX,
		EndX:   endX,
		byKey:  make(map[MetricKey]int),
	}, nil
}

// AddMetric appends a metric to the series, invalidating cached bounds.
func (s *DataSeries) AddMetric(m *SeriesMetric) error {
	if _, exists := s.byKey[m.Key]; exists {
		return fmt.Errorf("datastore: series already holds metric %s", m.Key)
	}
	s.byKey[m.Key] = len(s.metrics)
	s.metrics = append(s.metrics, m)
	s.invalidate()
	return nil
}

// RemoveMetric drops a metric from the series, invalidating cached bounds.
func (s *DataSeries) RemoveMetric(key MetricKey) {
	idx, ok := s.byKey[key]
	if !ok {
		return
	}
	s.metrics = append(s.metrics[:idx], s.metrics[idx+1:]...)
	delete(s.byKey, key)
	for k, i := range s.byKey {
		if i > idx {
			s.byKey[k] = i - 1
		}
	}
	s.invalidate()
}

// Metric returns the series' view of key, if it holds one.
func (s *DataSeries) Metric(key MetricKey) (*SeriesMetric, bool) {
	idx, ok := s.byKey[key]
	if !ok {
		return nil, false
	}
	return s.metrics[idx], true
}

// Metrics returns every metric the series owns, in insertion order.
func (s *DataSeries) Metrics() []*SeriesMetric {
	return s.metrics
}

// VisibleKeys returns the MetricKeys of every currently visible metric, the
// set the compute engine's cross-metric min/max reduction runs over.
func (s *DataSeries) VisibleKeys() []MetricKey {
	var keys []MetricKey
	for _, m := range s.metrics {
		if m.Visible {
			keys = append(keys, m.Key)
		}
	}
	return keys
}

// SetRange updates the series' x window, invalidating cached bounds and
// the bind group (a new range means every metric's visible slice, and so
// its y bound, may have changed).
func (s *DataSeries) SetRange(startX, endX uint32) error {
	if startX > endX {
		return fmt.Errorf("datastore: series start_x %d > end_x %d", startX, endX)
	}
	s.StartX, s.EndX = startX, endX
	s.invalidate()
	return nil
}

// SetVisible toggles a metric's visibility, invalidating cached bounds
// since the cross-metric reduction only considers visible metrics.
func (s *DataSeries) SetVisible(key MetricKey, visible bool) {
	if m, ok := s.Metric(key); ok {
		m.Visible = visible
		s.invalidate()
	}
}

// SetBuffers installs a metric's GPU x/y buffers (the result of a fetch or
// a compute dispatch), invalidating cached bounds since the underlying
// data has changed.
func (s *DataSeries) SetBuffers(key MetricKey, x, y gpu.Buffer) {
	if m, ok := s.Metric(key); ok {
		m.XBuffer, m.YBuffer = x, y
		s.invalidate()
	}
}

// YBounds returns the series' cached y bound and whether one is currently
// cached. A nil/false result means the bound must be recomputed (by the
// compute engine's min/max reduction) before anything reads it.
func (s *DataSeries) YBounds() (lo, hi float32, ok bool) {
	if s.yBounds == nil {
		return 0, 0, false
	}
	return s.yBounds[0], s.yBounds[1], true
}

// SetYBounds caches a freshly computed y bound for YBounds to return. The
// compute engine does not call it; its min/max reduction writes the
// series' "range" bind-group buffer instead.
func (s *DataSeries) SetYBounds(lo, hi float32) {
	s.yBounds = &[2]float32{lo, hi}
}

// BindGroup returns the series' shared x/y range bind group, lazily
// creating one on first use. Every renderer drawing from this series reads
// its clip range from this same group.
func (s *DataSeries) BindGroup() *gpu.BindGroup {
	if s.bindGroup == nil {
		s.bindGroup = gpu.NewBindGroup()
	}
	return s.bindGroup
}

// invalidate drops the cached y bound and bind group: any mutation to the
// series (range change, visibility toggle, buffer swap, metric add/remove)
// stales both until the next reduction pass rebuilds them.
func (s *DataSeries) invalidate() {
	s.yBounds = nil
	s.bindGroup = nil
}
