package compute

import (
	"context"
	"testing"

	"github.com/ndrandal/tickvis/internal/datastore"
	"github.com/ndrandal/tickvis/internal/gpu"
)

func TestEngineComputesAverageAndSkipsClean(t *testing.T) {
	store := datastore.NewStore()
	bids := datastore.MetricKey{GroupIdx: 0, MetricIdx: 0}
	asks := datastore.MetricKey{GroupIdx: 0, MetricIdx: 1}
	mid := datastore.MetricKey{GroupIdx: 0, MetricIdx: 2}

	must(t, store.AddMetric(&datastore.Metric{Key: bids, Name: "bids", Kind: "raw"}))
	must(t, store.AddMetric(&datastore.Metric{Key: asks, Name: "asks", Kind: "raw"}))
	must(t, store.AddMetric(&datastore.Metric{Key: mid, Name: "mid", Kind: "average", DependsOn: []datastore.MetricKey{bids, asks}}))

	eng := NewEngine(store, gpu.NewCPUDevice())
	eng.SetRaw(bids, []float32{10, 20})
	eng.SetRaw(asks, []float32{12, 22})

	if err := eng.Recompute(context.Background()); err != nil {
		t.Fatalf("Recompute: %v", err)
	}

	got := eng.Value(mid)
	if len(got) != 2 || got[0] != 11 || got[1] != 21 {
		t.Fatalf("unexpected mid values: %v", got)
	}

	m, _ := store.Get(mid)
	if m.Dirty() {
		t.Fatalf("expected mid to be clean after recompute")
	}

	// Recomputing again without marking anything dirty should leave the
	// cached value untouched (no new uploads/dispatches needed).
	if err := eng.Recompute(context.Background()); err != nil {
		t.Fatalf("second Recompute: %v", err)
	}
	if got2 := eng.Value(mid); got2[0] != 11 {
		t.Fatalf("unexpected mid values after no-op recompute: %v", got2)
	}
}

func TestEngineComputesEMAChain(t *testing.T) {
	store := datastore.NewStore()
	raw := datastore.MetricKey{GroupIdx: 1, MetricIdx: 0}
	ema := datastore.MetricKey{GroupIdx: 1, MetricIdx: 1}

	must(t, store.AddMetric(&datastore.Metric{Key: raw, Name: "price", Kind: "raw"}))
	must(t, store.AddMetric(&datastore.Metric{
		Key: ema, Name: "ema_3", Kind: "ema", DependsOn: []datastore.MetricKey{raw},
	}))

	eng := NewEngine(store, gpu.NewCPUDevice())
	eng.SetRaw(raw, []float32{10, 20, 30})

	if err := eng.Recompute(context.Background()); err != nil {
		t.Fatalf("Recompute: %v", err)
	}

	got := eng.Value(ema)
	want := []float32{10, 15, 22.5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ema[%d] = %v, want %v (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestEngineComputesMinMax(t *testing.T) {
	store := datastore.NewStore()
	raw := datastore.MetricKey{GroupIdx: 2, MetricIdx: 0}
	x := datastore.MetricKey{GroupIdx: 2, MetricIdx: 1}
	mm := datastore.MetricKey{GroupIdx: 2, MetricIdx: 2}

	must(t, store.AddMetric(&datastore.Metric{Key: raw, Name: "price", Kind: "raw"}))
	must(t, store.AddMetric(&datastore.Metric{Key: x, Name: "time", Kind: "raw"}))
	must(t, store.AddMetric(&datastore.Metric{Key: mm, Name: "range", Kind: "minmax", DependsOn: []datastore.MetricKey{raw, x}}))

	eng := NewEngine(store, gpu.NewCPUDevice())
	eng.SetRaw(raw, []float32{5, 1, 9, 3, -2, 7})
	eng.SetRaw(x, []float32{0, 1, 2, 3, 4, 5})

	if err := eng.Recompute(context.Background()); err != nil {
		t.Fatalf("Recompute: %v", err)
	}

	got := eng.Value(mm)
	if len(got) != 2 || got[0] != -2 || got[1] != 9 {
		t.Fatalf("unexpected minmax: %v", got)
	}
}

// TestEngineMinMaxClipsToParamRange covers the x-buffer binary-search clip:
// a metric whose Params restrict [start_x, end_x] must exclude samples
// outside that window from its reduction.
func TestEngineMinMaxClipsToParamRange(t *testing.T) {
	store := datastore.NewStore()
	raw := datastore.MetricKey{GroupIdx: 3, MetricIdx: 0}
	x := datastore.MetricKey{GroupIdx: 3, MetricIdx: 1}
	mm := datastore.MetricKey{GroupIdx: 3, MetricIdx: 2}

	must(t, store.AddMetric(&datastore.Metric{Key: raw, Name: "price", Kind: "raw"}))
	must(t, store.AddMetric(&datastore.Metric{Key: x, Name: "time", Kind: "raw"}))
	must(t, store.AddMetric(&datastore.Metric{
		Key: mm, Name: "range", Kind: "minmax", DependsOn: []datastore.MetricKey{raw, x},
		Params: map[string]float64{"start_x": 1, "end_x": 3},
	}))

	eng := NewEngine(store, gpu.NewCPUDevice())
	eng.SetRaw(raw, []float32{100, 1, 9, 3, -50, 7})
	eng.SetRaw(x, []float32{0, 1, 2, 3, 4, 5})

	if err := eng.Recompute(context.Background()); err != nil {
		t.Fatalf("Recompute: %v", err)
	}

	got := eng.Value(mm)
	if len(got) != 2 || got[0] != 1 || got[1] != 9 {
		t.Fatalf("unexpected clipped minmax: %v, want [1 9] (samples at t=1..3 only)", got)
	}
}

// TestEngineGlobalMinMaxFallsBackWhenNoMetrics covers the fixed-default
// fallback used when zero metrics are eligible for the cross-metric
// reduction.
func TestEngineGlobalMinMaxFallsBackWhenNoMetrics(t *testing.T) {
	store := datastore.NewStore()
	eng := NewEngine(store, gpu.NewCPUDevice())

	group := gpu.NewBindGroup()
	if err := eng.GlobalMinMax(context.Background(), nil, group, -1, 1); err != nil {
		t.Fatalf("GlobalMinMax: %v", err)
	}

	buf, ok := group.Get("range")
	if !ok {
		t.Fatalf("expected range binding to be set")
	}
	out := make([]float32, 2)
	buf.Read(context.Background(), out)
	if out[0] != -1 || out[1] != 1 {
		t.Fatalf("expected fallback [-1 1], got %v", out)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
