package render

import (
	"context"

	"github.com/ndrandal/tickvis/internal/compute"
	"github.com/ndrandal/tickvis/internal/datastore"
	"github.com/ndrandal/tickvis/internal/gpu"
)

// CandleComponent draws an OHLC candlestick layer. Compute re-aggregates
// the underlying ticks against the series' current window (the
// aggregator's own cache makes repeated aggregation of an unchanged
// window a no-op); Render turns the resulting candles into body and wick
// vertex geometry per the draw contract: 6 vertices per body, 4 per wick,
// sharing one color computed per candle.
type CandleComponent struct {
	timeKey, priceKey, volumeKey datastore.MetricKey
	series                       *datastore.DataSeries
	version                      func() uint64

	aggregator    *compute.CandleAggregator
	candleWidthPx float32

	candles    []compute.Candle
	body, wick []Vertex
}

// NewCandleComponent builds a candlestick renderer over series, reading
// its time/price/volume from the named metrics. volumeKey may name a
// metric the series doesn't hold; volume is then left at zero per candle.
func NewCandleComponent(timeKey, priceKey, volumeKey datastore.MetricKey, series *datastore.DataSeries, version func() uint64) *CandleComponent {
	return &CandleComponent{
		timeKey: timeKey, priceKey: priceKey, volumeKey: volumeKey,
		series:        series,
		version:       version,
		aggregator:    compute.NewCandleAggregator(),
		candleWidthPx: 0.6,
	}
}

func (c *CandleComponent) Name() string      { return "candles" }
func (c *CandleComponent) Priority() int     { return PriorityCandles }
func (c *CandleComponent) ShouldClear() bool { return false }
func (c *CandleComponent) HasCompute() bool  { return true }

// Compute rebuilds the candle set for the series' current window. The CPU-
// simulated backend has no indirect-dispatch GPU aggregation pass, so this
// reads the tick buffers back directly; a real backend would instead
// dispatch the aggregation kernel described in the candlestick spec and
// leave the candle buffer GPU-resident.
func (c *CandleComponent) Compute(ctx context.Context, enc gpu.CommandEncoder) error {
	timeM, ok := c.series.Metric(c.timeKey)
	if !ok || timeM.YBuffer == nil {
		c.candles = nil
		return nil
	}
	priceM, ok := c.series.Metric(c.priceKey)
	if !ok || priceM.YBuffer == nil {
		c.candles = nil
		return nil
	}

	times32, err := readBuffer(ctx, timeM.YBuffer)
	if err != nil {
		return err
	}
	prices, err := readBuffer(ctx, priceM.YBuffer)
	if err != nil {
		return err
	}

	var volumes []float32
	if volM, ok := c.series.Metric(c.volumeKey); ok && volM.YBuffer != nil {
		volumes, err = readBuffer(ctx, volM.YBuffer)
		if err != nil {
			return err
		}
	}

	times := make([]uint32, len(times32))
	for i, v := range times32 {
		times[i] = uint32(v)
	}

	tf := compute.SelectTimeframe(c.series.StartX, c.series.EndX)
	var version uint64
	if c.version != nil {
		version = c.version()
	}
	c.candles = c.aggregator.Aggregate(version, times, prices, volumes, tf, c.series.StartX, c.series.EndX)
	return nil
}

func (c *CandleComponent) Render(ctx context.Context) error {
	var body, wick []Vertex
	for _, cd := range c.candles {
		if cd.Empty {
			continue
		}
		color := candleColor(cd.Open, cd.Close)
		top, bottom := cd.Open, cd.Close
		if top < bottom {
			top, bottom = bottom, top
		}

		left := float32(cd.StartSecs)
		right := left + c.candleWidthPx
		mid := left + c.candleWidthPx/2

		body = append(body,
			Vertex{X: left, Y: bottom, Color: color},
			Vertex{X: right, Y: bottom, Color: color},
			Vertex{X: right, Y: top, Color: color},
			Vertex{X: left, Y: bottom, Color: color},
			Vertex{X: right, Y: top, Color: color},
			Vertex{X: left, Y: top, Color: color},
		)
		wick = append(wick,
			Vertex{X: mid, Y: cd.High, Color: color},
			Vertex{X: mid, Y: top, Color: color},
			Vertex{X: mid, Y: bottom, Color: color},
			Vertex{X: mid, Y: cd.Low, Color: color},
		)
	}
	c.body, c.wick = body, wick
	return nil
}

func (c *CandleComponent) Resize(width, height int) {}

// Body returns the body pipeline's last-rendered 6-vertices-per-candle
// geometry.
func (c *CandleComponent) Body() []Vertex { return c.body }

// Wick returns the wick pipeline's last-rendered 4-vertices-per-candle
// geometry.
func (c *CandleComponent) Wick() []Vertex { return c.wick }

func readBuffer(ctx context.Context, b gpu.Buffer) ([]float32, error) {
	out := make([]float32, b.Size())
	if _, err := b.Read(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}
