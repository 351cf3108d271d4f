package render

import (
	"context"
	"testing"

	"github.com/ndrandal/tickvis/internal/compute"
	"github.com/ndrandal/tickvis/internal/datastore"
	"github.com/ndrandal/tickvis/internal/gpu"
)

// TestMultiRendererDrivesConcreteComponents wires a line, candlestick, and
// axes component into one MultiRenderer alongside a real compute.Engine
// driving the cross-metric min/max reduction, exercising the whole
// compute -> reduce -> render pipeline end to end against the
// CPU-simulated backend.
func TestMultiRendererDrivesConcreteComponents(t *testing.T) {
	ctx := context.Background()
	device := gpu.NewCPUDevice()

	times := []float32{0, 1, 2, 3, 4}
	prices := []float32{10, 12, 9, 11, 13}

	xBuf, err := device.CreateBuffer(len(times), gpu.UsageStorage)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if err := xBuf.Write(ctx, 0, times); err != nil {
		t.Fatalf("Write x: %v", err)
	}
	yBuf, err := device.CreateBuffer(len(prices), gpu.UsageStorage)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if err := yBuf.Write(ctx, 0, prices); err != nil {
		t.Fatalf("Write y: %v", err)
	}

	series, err := datastore.NewDataSeries(0, 4)
	if err != nil {
		t.Fatalf("NewDataSeries: %v", err)
	}
	priceKey := datastore.MetricKey{GroupIdx: 0, MetricIdx: 0}
	if err := series.AddMetric(&datastore.SeriesMetric{
		Key: priceKey, Visible: true,
		Color:   datastore.Color{R: 1, G: 0, B: 0, A: 1},
		XBuffer: xBuf, YBuffer: yBuf,
	}); err != nil {
		t.Fatalf("AddMetric: %v", err)
	}

	store := datastore.NewStore()
	timeKey := datastore.MetricKey{GroupIdx: 0, MetricIdx: 1}
	if err := store.AddMetric(&datastore.Metric{Key: priceKey, Kind: "raw"}); err != nil {
		t.Fatalf("AddMetric price: %v", err)
	}
	if err := store.AddMetric(&datastore.Metric{Key: timeKey, Kind: "raw"}); err != nil {
		t.Fatalf("AddMetric time: %v", err)
	}
	// The candlestick component reads its time metric from the series.
	if err := series.AddMetric(&datastore.SeriesMetric{Key: timeKey, YBuffer: xBuf}); err != nil {
		t.Fatalf("AddMetric series time: %v", err)
	}
	mmKey := datastore.MetricKey{GroupIdx: 0, MetricIdx: 2}
	if err := store.AddMetric(&datastore.Metric{Key: mmKey, Kind: "minmax", DependsOn: []datastore.MetricKey{priceKey, timeKey}}); err != nil {
		t.Fatalf("AddMetric minmax: %v", err)
	}

	eng := compute.NewEngine(store, device)
	eng.SetRaw(priceKey, prices)
	eng.SetRaw(timeKey, times)
	if err := eng.Recompute(ctx); err != nil {
		t.Fatalf("Recompute: %v", err)
	}

	line := NewLineComponent(priceKey, series)
	candles := NewCandleComponent(timeKey, priceKey, datastore.MetricKey{GroupIdx: 9, MetricIdx: 9}, series, func() uint64 { return 1 })
	axes := NewAxesComponent(series, 4, 4)

	reduce := func(ctx context.Context) error {
		return eng.GlobalMinMax(ctx, []datastore.MetricKey{mmKey}, series.BindGroup(), 0, 0)
	}

	mr := NewMultiRenderer(device, []Component{line, candles, axes}, reduce)
	if err := mr.Frame(ctx); err != nil {
		t.Fatalf("Frame: %v", err)
	}

	if len(line.Vertices()) != len(times) {
		t.Fatalf("line vertices = %d, want %d", len(line.Vertices()), len(times))
	}

	if len(candles.Body())%6 != 0 || len(candles.Body()) == 0 {
		t.Fatalf("candle body vertex count = %d, want a positive multiple of 6", len(candles.Body()))
	}
	if len(candles.Wick())%4 != 0 || len(candles.Wick()) == 0 {
		t.Fatalf("candle wick vertex count = %d, want a positive multiple of 4", len(candles.Wick()))
	}

	if len(axes.Lines()) == 0 {
		t.Fatalf("expected axes to produce tick lines once the shared range bind group is populated")
	}
}

func TestLineComponentClipsToSeriesRange(t *testing.T) {
	ctx := context.Background()
	device := gpu.NewCPUDevice()

	xBuf, _ := device.CreateBuffer(5, gpu.UsageStorage)
	_ = xBuf.Write(ctx, 0, []float32{0, 1, 2, 3, 4})
	yBuf, _ := device.CreateBuffer(5, gpu.UsageStorage)
	_ = yBuf.Write(ctx, 0, []float32{10, 20, 30, 40, 50})

	series, err := datastore.NewDataSeries(1, 3)
	if err != nil {
		t.Fatalf("NewDataSeries: %v", err)
	}
	key := datastore.MetricKey{GroupIdx: 1, MetricIdx: 0}
	if err := series.AddMetric(&datastore.SeriesMetric{Key: key, Visible: true, XBuffer: xBuf, YBuffer: yBuf}); err != nil {
		t.Fatalf("AddMetric: %v", err)
	}

	line := NewLineComponent(key, series)
	if err := line.Render(ctx); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(line.Vertices()) != 3 {
		t.Fatalf("expected 3 in-range vertices, got %d", len(line.Vertices()))
	}
}

func TestCandleComponentSkipsEmptyCandles(t *testing.T) {
	ctx := context.Background()
	device := gpu.NewCPUDevice()

	xBuf, _ := device.CreateBuffer(1, gpu.UsageStorage)
	_ = xBuf.Write(ctx, 0, []float32{5})
	yBuf, _ := device.CreateBuffer(1, gpu.UsageStorage)
	_ = yBuf.Write(ctx, 0, []float32{100})

	series, err := datastore.NewDataSeries(0, 180)
	if err != nil {
		t.Fatalf("NewDataSeries: %v", err)
	}
	timeKey := datastore.MetricKey{GroupIdx: 2, MetricIdx: 0}
	priceKey := datastore.MetricKey{GroupIdx: 2, MetricIdx: 1}
	if err := series.AddMetric(&datastore.SeriesMetric{Key: timeKey, Visible: true, YBuffer: xBuf}); err != nil {
		t.Fatalf("AddMetric time: %v", err)
	}
	if err := series.AddMetric(&datastore.SeriesMetric{Key: priceKey, Visible: true, YBuffer: yBuf}); err != nil {
		t.Fatalf("AddMetric price: %v", err)
	}

	candles := NewCandleComponent(timeKey, priceKey, datastore.MetricKey{GroupIdx: 9, MetricIdx: 9}, series, nil)
	if err := candles.Compute(ctx, nil); err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if err := candles.Render(ctx); err != nil {
		t.Fatalf("Render: %v", err)
	}

	// A single tick at t=5 over a 3-minute window at 1m timeframe produces
	// exactly one non-empty candle out of three buckets.
	if len(candles.Body()) != 6 {
		t.Fatalf("body vertices = %d, want 6 (exactly one non-empty candle)", len(candles.Body()))
	}
	if len(candles.Wick()) != 4 {
		t.Fatalf("wick vertices = %d, want 4", len(candles.Wick()))
	}
}
