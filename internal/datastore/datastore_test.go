package datastore

import "testing"

func TestTopologicalOrderRespectsDependencies(t *testing.T) {
	s := NewStore()
	raw := MetricKey{0, 0}
	avg := MetricKey{0, 1}
	ema := MetricKey{0, 2}

	must(t, s.AddMetric(&Metric{Key: raw, Name: "price"}))
	must(t, s.AddMetric(&Metric{Key: avg, Name: "avg", DependsOn: []MetricKey{raw}}))
	must(t, s.AddMetric(&Metric{Key: ema, Name: "ema", DependsOn: []MetricKey{avg}}))

	order, err := s.TopologicalOrder()
	if err != nil {
		t.Fatalf("TopologicalOrder: %v", err)
	}

	pos := make(map[MetricKey]int)
	for i, k := range order {
		pos[k] = i
	}
	if pos[raw] >= pos[avg] || pos[avg] >= pos[ema] {
		t.Fatalf("order violates dependencies: %v", order)
	}
}

func TestAddMetricRejectsCycle(t *testing.T) {
	s := NewStore()
	a := MetricKey{0, 0}
	b := MetricKey{0, 1}

	must(t, s.AddMetric(&Metric{Key: a, Name: "a"}))
	must(t, s.AddMetric(&Metric{Key: b, Name: "b", DependsOn: []MetricKey{a}}))

	// Rewriting a to depend on b would cycle; simulate by removing and
	// re-adding a with a dependency on b.
	s.Remove(a)
	err := s.AddMetric(&Metric{Key: a, Name: "a", DependsOn: []MetricKey{b}})
	if err == nil {
		t.Fatalf("expected cycle rejection")
	}
}

func TestMarkDirtyPropagatesForward(t *testing.T) {
	s := NewStore()
	raw := MetricKey{0, 0}
	avg := MetricKey{0, 1}
	ema := MetricKey{0, 2}

	must(t, s.AddMetric(&Metric{Key: raw, Name: "price"}))
	must(t, s.AddMetric(&Metric{Key: avg, Name: "avg", DependsOn: []MetricKey{raw}}))
	must(t, s.AddMetric(&Metric{Key: ema, Name: "ema", DependsOn: []MetricKey{avg}}))

	for _, k := range []MetricKey{raw, avg, ema} {
		s.ClearDirty(k)
	}

	s.MarkDirty(raw)

	avgM, _ := s.Get(avg)
	emaM, _ := s.Get(ema)
	if !avgM.Dirty() || !emaM.Dirty() {
		t.Fatalf("expected dirty to propagate to dependents")
	}
	if avgM.Version() == 0 || emaM.Version() == 0 {
		t.Fatalf("expected version bump on dependents")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
