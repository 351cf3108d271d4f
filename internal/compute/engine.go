package compute

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ndrandal/tickvis/internal/datastore"
	"github.com/ndrandal/tickvis/internal/gpu"
)

// ringSlots bounds the compute engine's staging ring: it only ever
// services a handful of concurrent small readbacks per frame (a tooltip
// query, a min/max pair), so a small fixed pool is enough to avoid
// reallocating scratch storage on every call.
const ringSlots = 4

// Engine walks a datastore.Store's metric graph in dependency order,
// recomputing only the metrics marked dirty, dispatching each through the
// bound gpu.Device. Computed results stay GPU-resident in e.buffers;
// e.series only ever holds CPU-originated raw input and the rare small
// values (e.g. a reduced min/max pair) explicitly pulled back through the
// staging ring, never a full copy of every dispatch's output.
type Engine struct {
	store   *datastore.Store
	device  gpu.Device
	series  map[datastore.MetricKey][]float32
	buffers map[datastore.MetricKey]gpu.Buffer
	ring    *gpu.StagingRing
}

// NewEngine builds a compute engine over store, executing kernels on
// device.
func NewEngine(store *datastore.Store, device gpu.Device) *Engine {
	return &Engine{
		store:   store,
		device:  device,
		series:  make(map[datastore.MetricKey][]float32),
		buffers: make(map[datastore.MetricKey]gpu.Buffer),
		ring:    gpu.NewStagingRing(ringSlots),
	}
}

// SetRaw installs or replaces the raw sample series a "raw" metric reads
// from, called by the ingestion-facing side of the client whenever a new
// tick arrives for the underlying data.
func (e *Engine) SetRaw(key datastore.MetricKey, values []float32) {
	e.series[key] = values
	delete(e.buffers, key)
	e.store.MarkDirty(key)
}

// Value reads back a computed metric's series on demand, through the
// staging ring, rather than the engine eagerly copying every dispatch's
// result back to the CPU. Callers that only need the buffer GPU-side
// (renderers binding it directly) should use Buffer instead and avoid the
// readback entirely.
func (e *Engine) Value(key datastore.MetricKey) []float32 {
	if v, ok := e.series[key]; ok {
		return v
	}
	buf, ok := e.buffers[key]
	if !ok {
		return nil
	}
	out, err := e.ring.Fetch(context.Background(), buf, buf.Size())
	if err != nil {
		return nil
	}
	return out
}

// Buffer returns the GPU-resident buffer backing a computed metric's
// current value, for a renderer to bind directly without any CPU
// readback.
func (e *Engine) Buffer(key datastore.MetricKey) (gpu.Buffer, bool) {
	buf, ok := e.buffers[key]
	return buf, ok
}

// bufferFor returns the GPU buffer already backing key's value if one
// exists (a prior compute result, kept resident), otherwise uploads the
// raw CPU series registered for key. Reusing an existing buffer instead of
// re-uploading avoids a redundant CPU round trip when one computed
// metric depends on another.
func (e *Engine) bufferFor(key datastore.MetricKey) (gpu.Buffer, error) {
	if buf, ok := e.buffers[key]; ok {
		return buf, nil
	}
	return e.upload(e.series[key])
}

// Recompute walks the metric graph in topological order, recomputing every
// dirty metric and clearing its dirty flag once done. Non-dirty metrics
// are skipped entirely, the point of tracking dirtiness at all.
func (e *Engine) Recompute(ctx context.Context) error {
	order, err := e.store.TopologicalOrder()
	if err != nil {
		return fmt.Errorf("compute: %w", err)
	}

	for _, key := range order {
		m, ok := e.store.Get(key)
		if !ok {
			continue
		}
		for _, dep := range m.DependsOn {
			if _, present := e.store.Get(dep); !present {
				return fmt.Errorf("compute: metric %s depends on missing metric %s", key, dep)
			}
		}
		if !m.Dirty() {
			continue
		}
		if m.Kind == "raw" {
			e.store.ClearDirty(key)
			continue
		}
		if err := e.recomputeOne(ctx, m); err != nil {
			return fmt.Errorf("compute: metric %s (%s): %w", key, m.Kind, err)
		}
		e.store.ClearDirty(key)
	}
	return nil
}

func (e *Engine) recomputeOne(ctx context.Context, m *datastore.Metric) error {
	switch m.Kind {
	case "average":
		return e.runAverage(ctx, m)
	case "ema":
		return e.runEMA(ctx, m)
	case "minmax":
		return e.runMinMax(ctx, m)
	default:
		return fmt.Errorf("unknown metric kind %q", m.Kind)
	}
}

func (e *Engine) runAverage(ctx context.Context, m *datastore.Metric) error {
	if len(m.DependsOn) != 2 {
		return fmt.Errorf("average metric requires exactly 2 dependencies (bids, asks)")
	}
	bidsBuf, err := e.bufferFor(m.DependsOn[0])
	if err != nil {
		return err
	}
	asksBuf, err := e.bufferFor(m.DependsOn[1])
	if err != nil {
		return err
	}
	n := bidsBuf.Size()
	if asksBuf.Size() < n {
		n = asksBuf.Size()
	}
	outBuf, err := e.device.CreateBuffer(n, gpu.UsageStorage)
	if err != nil {
		return err
	}

	if err := e.dispatch(ctx, "compute.average", []gpu.Buffer{bidsBuf, asksBuf, outBuf}, 1); err != nil {
		return err
	}
	// Stays GPU-resident: renderers bind outBuf directly, and Value only
	// pulls it back on an explicit, on-demand request.
	e.buffers[m.Key] = outBuf
	delete(e.series, m.Key)
	return nil
}

func (e *Engine) runEMA(ctx context.Context, m *datastore.Metric) error {
	if len(m.DependsOn) != 1 {
		return fmt.Errorf("ema metric requires exactly 1 dependency")
	}
	inBuf, err := e.bufferFor(m.DependsOn[0])
	if err != nil {
		return err
	}
	period, err := parseEMAPeriod(m.Name)
	if err != nil {
		return err
	}
	alpha := 2.0 / (float64(period) + 1)

	outBuf, err := e.device.CreateBuffer(inBuf.Size(), gpu.UsageStorage)
	if err != nil {
		return err
	}
	alphaBuf, err := e.upload([]float32{float32(alpha)})
	if err != nil {
		return err
	}

	if err := e.dispatch(ctx, "compute.ema", []gpu.Buffer{inBuf, outBuf, alphaBuf}, 1); err != nil {
		return err
	}
	e.buffers[m.Key] = outBuf
	delete(e.series, m.Key)
	return nil
}

// runMinMax reduces a metric's y-buffer within its view window down to a
// single (min, max) pair. DependsOn must name exactly two metrics: the
// value series, then its x (timestamp) series, so the reduction can clip
// to [start_x, end_x] before it ever touches a value outside the visible
// range. start_x/end_x come from m.Params; a metric that never set them
// reduces over its entire series.
func (e *Engine) runMinMax(ctx context.Context, m *datastore.Metric) error {
	if len(m.DependsOn) != 2 {
		return fmt.Errorf("minmax metric requires exactly 2 dependencies (values, x)")
	}
	valuesBuf, err := e.bufferFor(m.DependsOn[0])
	if err != nil {
		return err
	}
	xBuf, err := e.bufferFor(m.DependsOn[1])
	if err != nil {
		return err
	}
	if valuesBuf.Size() == 0 || xBuf.Size() == 0 {
		e.series[m.Key] = nil
		delete(e.buffers, m.Key)
		return nil
	}

	startX, endX := minMaxParamRange(m)
	lo, hi, err := clipRange(ctx, xBuf, startX, endX)
	if err != nil {
		return err
	}
	groups := minMaxPartialGroups(hi - lo)

	clipBuf, err := e.upload([]float32{startX, endX})
	if err != nil {
		return err
	}
	minsBuf, err := e.device.CreateBuffer(groups, gpu.UsageStorage)
	if err != nil {
		return err
	}
	maxesBuf, err := e.device.CreateBuffer(groups, gpu.UsageStorage)
	if err != nil {
		return err
	}
	if err := e.dispatch(ctx, "compute.minmax_partial", []gpu.Buffer{xBuf, valuesBuf, clipBuf, minsBuf, maxesBuf}, groups); err != nil {
		return err
	}

	outBuf, err := e.device.CreateBuffer(2, gpu.UsageStorage)
	if err != nil {
		return err
	}
	if err := e.dispatch(ctx, "compute.minmax_final", []gpu.Buffer{minsBuf, maxesBuf, outBuf}, 1); err != nil {
		return err
	}

	// The reduced pair is exactly the kind of small, explicit readback the
	// staging ring exists for: a tooltip/legend display value, not a full
	// series copy.
	out, err := e.ring.Fetch(ctx, outBuf, 2)
	if err != nil {
		return err
	}
	e.series[m.Key] = out // [min, max]
	e.buffers[m.Key] = outBuf
	return nil
}

// minMaxParamRange reads a minmax metric's configured [start_x, end_x]
// clip window from Params, defaulting to the metric's entire domain when
// unset.
func minMaxParamRange(m *datastore.Metric) (float32, float32) {
	startX := float32(math.Inf(-1))
	endX := float32(math.Inf(1))
	if v, ok := m.Params["start_x"]; ok {
		startX = float32(v)
	}
	if v, ok := m.Params["end_x"]; ok {
		endX = float32(v)
	}
	return startX, endX
}

// clipRange binary-searches xBuf (assumed ascending) for the half-open
// index range covering [startX, endX]. The buffer is read once purely to
// size the reduction's dispatch shape; the bytes themselves are discarded
// immediately rather than retained as a CPU mirror.
func clipRange(ctx context.Context, xBuf gpu.Buffer, startX, endX float32) (int, int, error) {
	xs := make([]float32, xBuf.Size())
	if _, err := xBuf.Read(ctx, xs); err != nil {
		return 0, 0, err
	}
	lo := sort.Search(len(xs), func(i int) bool { return xs[i] >= startX })
	hi := sort.Search(len(xs), func(i int) bool { return xs[i] > endX })
	if lo > hi {
		lo = hi
	}
	return lo, hi, nil
}

// GlobalMinMax reduces every visible metric named in keys down to one
// overall (min, max) bound and binds it into group under "range",
// falling back to (defaultMin, defaultMax) when none of them have a
// reduced pair to contribute. Meant to be passed as the reduce callback
// to render.NewMultiRenderer, implementing the cross-metric final pass
// that feeds the shared bind group every draw pipeline reads from.
func (e *Engine) GlobalMinMax(ctx context.Context, keys []datastore.MetricKey, group *gpu.BindGroup, defaultMin, defaultMax float32) error {
	var pairs []float32
	for _, k := range keys {
		buf, ok := e.buffers[k]
		if !ok || buf.Size() != 2 {
			continue
		}
		out, err := e.ring.Fetch(ctx, buf, 2)
		if err != nil {
			return err
		}
		pairs = append(pairs, out...)
	}

	pairsBuf, err := e.upload(pairs)
	if err != nil {
		return err
	}
	fallbackBuf, err := e.upload([]float32{defaultMin, defaultMax})
	if err != nil {
		return err
	}
	outBuf, err := e.device.CreateBuffer(2, gpu.UsageStorage)
	if err != nil {
		return err
	}
	if err := e.dispatch(ctx, "compute.minmax_global", []gpu.Buffer{pairsBuf, fallbackBuf, outBuf}, 1); err != nil {
		return err
	}
	group.Set("range", outBuf)
	return nil
}

// parseEMAPeriod accepts only the "ema_<period>" metric name spelling
// (e.g. "ema_20"), deriving the smoothing factor from the period rather
// than taking alpha as a free parameter. Any other spelling is rejected.
func parseEMAPeriod(name string) (int, error) {
	period, ok := strings.CutPrefix(name, "ema_")
	if !ok {
		return 0, fmt.Errorf("ema metric name %q must be spelled ema_<period>", name)
	}
	n, err := strconv.Atoi(period)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("ema metric name %q has invalid period", name)
	}
	return n, nil
}

func (e *Engine) upload(values []float32) (gpu.Buffer, error) {
	buf, err := e.device.CreateBuffer(len(values), gpu.UsageStorage)
	if err != nil {
		return nil, err
	}
	if len(values) > 0 {
		if err := buf.Write(context.Background(), 0, values); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (e *Engine) dispatch(ctx context.Context, kernel string, bindings []gpu.Buffer, workgroups int) error {
	enc, err := e.device.CreateCommandEncoder()
	if err != nil {
		return err
	}
	pass, err := enc.BeginComputePass(kernel, bindings)
	if err != nil {
		return err
	}
	if err := pass.Dispatch(ctx, workgroups); err != nil {
		return err
	}
	return enc.Submit(ctx)
}
