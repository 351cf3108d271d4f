// Package datastore holds the client-side series/metric graph: named
// derived quantities (moving averages, EMAs, min/max reductions) with
// explicit dependencies on each other and on raw tick series, dirty
// tracking, and version propagation so the compute engine only recomputes
// what actually changed. Candle aggregation lives outside this graph (see
// internal/compute.CandleAggregator) since it is driven by an
// adaptively-chosen view window rather than a push-based dependency.
package datastore

import "fmt"

// MetricKey is the stable (groupIdx, metricIdx) identity a metric keeps for
// its entire lifetime, independent of any slice position it may occupy in
// a UI list — insertion/removal elsewhere must never renumber a key a
// renderer or cache has already captured.
type MetricKey struct {
	GroupIdx  int
	MetricIdx int
}

func (k MetricKey) String() string { return fmt.Sprintf("%d.%d", k.GroupIdx, k.MetricIdx) }

// Metric is one named derived (or raw) quantity in the graph.
type Metric struct {
	Key       MetricKey
	Name      string
	Kind      string // "raw", "average", "ema", "minmax"
	Params    map[string]float64
	DependsOn []MetricKey

	dirty   bool
	version uint64
}

// Dirty reports whether this metric needs recomputation.
func (m *Metric) Dirty() bool { return m.dirty }

// Version is bumped every time the metric's value changes, letting
// downstream caches (e.g. internal/compute's candle cache) key on it
// instead of recomputing a content hash.
func (m *Metric) Version() uint64 { return m.version }

// Store is the full metric graph for one chart session.
type Store struct {
	metrics map[MetricKey]*Metric
	order   []MetricKey // topologically sorted, rebuilt lazily
	stale   bool
}

// NewStore creates an empty metric graph.
func NewStore() *Store {
	return &Store{metrics: make(map[MetricKey]*Metric)}
}

// AddMetric inserts a metric, rejecting it if its dependencies would
// introduce a cycle or reference an unknown key.
func (s *Store) AddMetric(m *Metric) error {
	for _, dep := range m.DependsOn {
		if _, ok := s.metrics[dep]; !ok {
			return fmt.Errorf("datastore: metric %s depends on unknown %s", m.Key, dep)
		}
	}

	m.dirty = true
	s.metrics[m.Key] = m

	if s.hasCycle() {
		delete(s.metrics, m.Key)
		return fmt.Errorf("datastore: adding metric %s would introduce a dependency cycle", m.Key)
	}

	s.stale = true
	return nil
}

// Get returns the metric for key, if present.
func (s *Store) Get(key MetricKey) (*Metric, bool) {
	m, ok := s.metrics[key]
	return m, ok
}

// Remove deletes a metric. Any surviving metric that depended on it keeps
// a dangling reference: the compute engine's Recompute returns an error
// naming the missing dependency on every call rather than panicking, since removal
// mid-session is a normal UI action (closing a chart pane).
func (s *Store) Remove(key MetricKey) {
	delete(s.metrics, key)
	s.stale = true
}

// MarkDirty flags a metric and every metric that transitively depends on
// it, bumping each one's version so caches keyed on version invalidate
// together, matching the "propagate forward" resolution for version
// invalidation.
func (s *Store) MarkDirty(key MetricKey) {
	visited := make(map[MetricKey]bool)
	s.markDirtyRec(key, visited)
}

func (s *Store) markDirtyRec(key MetricKey, visited map[MetricKey]bool) {
	if visited[key] {
		return
	}
	visited[key] = true

	m, ok := s.metrics[key]
	if !ok {
		return
	}
	m.dirty = true
	m.version++

	for _, other := range s.metrics {
		for _, dep := range other.DependsOn {
			if dep == key {
				s.markDirtyRec(other.Key, visited)
			}
		}
	}
}

// ClearDirty marks a metric as up to date, called by the compute engine
// immediately after it recomputes that metric's value.
func (s *Store) ClearDirty(key MetricKey) {
	if m, ok := s.metrics[key]; ok {
		m.dirty = false
	}
}

// TopologicalOrder returns every metric key in an order where each key
// appears after all of its dependencies, recomputing the cached order only
// when the graph has changed since the last call.
func (s *Store) TopologicalOrder() ([]MetricKey, error) {
	if !s.stale && s.order != nil {
		return s.order, nil
	}

	order, err := s.topoSort()
	if err != nil {
		return nil, err
	}
	s.order = order
	s.stale = false
	return order, nil
}

func (s *Store) topoSort() ([]MetricKey, error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	state := make(map[MetricKey]int, len(s.metrics))
	order := make([]MetricKey, 0, len(s.metrics))

	var visit func(k MetricKey) error
	visit = func(k MetricKey) error {
		switch state[k] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("datastore: dependency cycle detected at %s", k)
		}
		state[k] = gray
		m, ok := s.metrics[k]
		if ok {
			for _, dep := range m.DependsOn {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		state[k] = black
		order = append(order, k)
		return nil
	}

	// Deterministic iteration order keeps repeated computations stable for
	// testing and for the renderer's frame-to-frame diffing.
	keys := make([]MetricKey, 0, len(s.metrics))
	for k := range s.metrics {
		keys = append(keys, k)
	}
	sortKeys(keys)

	for _, k := range keys {
		if err := visit(k); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (s *Store) hasCycle() bool {
	_, err := s.topoSort()
	return err != nil
}

func sortKeys(keys []MetricKey) {
	for i := 1; i < len(keys); i++ {
		j := i
		for j > 0 && less(keys[j], keys[j-1]) {
			keys[j], keys[j-1] = keys[j-1], keys[j]
			j--
		}
	}
}

func less(a, b MetricKey) bool {
	if a.GroupIdx != b.GroupIdx {
		return a.GroupIdx < b.GroupIdx
	}
	return a.MetricIdx < b.MetricIdx
}
