// Package compute implements the dependency-ordered compute engine: a
// bid/ask mid-price average, exponentially weighted moving averages, a
// two-pass min/max reduction, and a candlestick aggregator, all dispatched
// as GPU-shaped kernels against internal/gpu (currently the CPU-simulated
// backend, since no hardware binding exists in this corpus).
package compute

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ndrandal/tickvis/internal/gpu"
)

// minMaxWorkgroupSize and minMaxChunk mirror the (256 threads, 32x
// multiplier) dispatch shape spec'd for the reduction's first pass: every
// workgroup reduces one 8192-element chunk.
const (
	minMaxWorkgroupSize = 256
	minMaxChunk         = minMaxWorkgroupSize * 32
)

func init() {
	gpu.RegisterKernel("compute.average", averageKernel)
	gpu.RegisterKernel("compute.ema", emaKernel)
	gpu.RegisterKernel("compute.minmax_partial", minMaxPartialKernel)
	gpu.RegisterKernel("compute.minmax_final", minMaxFinalKernel)
	gpu.RegisterKernel("compute.minmax_global", minMaxGlobalKernel)
}

// minMaxPartialGroups returns the number of first-pass workgroups a
// reduction over n clipped elements dispatches, one per minMaxChunk-sized
// slice.
func minMaxPartialGroups(n int) int {
	if n <= 0 {
		return 1
	}
	return (n + minMaxChunk - 1) / minMaxChunk
}

func readAll(ctx context.Context, b gpu.Buffer) []float32 {
	buf := make([]float32, b.Size())
	b.Read(ctx, buf)
	return buf
}

// averageKernel computes the running mid-price: (bid+ask)/2, binding 0 is
// bids, binding 1 is asks, binding 2 is the output.
func averageKernel(ctx context.Context, bindings []gpu.Buffer, workgroups int) error {
	if len(bindings) != 3 {
		return fmt.Errorf("compute.average: expected 3 bindings, got %d", len(bindings))
	}
	bids := readAll(ctx, bindings[0])
	asks := readAll(ctx, bindings[1])

	n := len(bids)
	if len(asks) < n {
		n = len(asks)
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = (bids[i] + asks[i]) / 2
	}
	return bindings[2].Write(ctx, 0, out)
}

// emaKernel computes an exponentially weighted moving average over
// binding 0 (input), writing to binding 1 (output), with the smoothing
// factor passed as a single-element binding 2 (alpha).
func emaKernel(ctx context.Context, bindings []gpu.Buffer, workgroups int) error {
	if len(bindings) != 3 {
		return fmt.Errorf("compute.ema: expected 3 bindings, got %d", len(bindings))
	}
	in := readAll(ctx, bindings[0])
	alphaBuf := readAll(ctx, bindings[2])
	if len(alphaBuf) == 0 {
		return fmt.Errorf("compute.ema: missing alpha binding")
	}
	alpha := alphaBuf[0]
	if len(in) == 0 {
		return nil
	}

	out := make([]float32, len(in))
	out[0] = in[0]
	prev := in[0]
	for i := 1; i < len(in); i++ {
		prev = alpha*in[i] + (1-alpha)*prev
		out[i] = prev
	}
	return bindings[1].Write(ctx, 0, out)
}

// minMaxPartialKernel binary-searches the x-buffer to clip to [start_x,
// end_x], then computes per-workgroup partial min/max over minMaxChunk-
// sized slices of the clipped y range, the first pass of the two-pass
// reduction. Bindings: 0 = x (timestamps, ascending), 1 = y (values), 2 =
// clip range [start_x, end_x], 3 = output mins (one per workgroup), 4 =
// output maxes. workgroups is ignored in favor of minMaxPartialGroups(n),
// matching a real backend's fixed chunk-per-workgroup dispatch shape.
func minMaxPartialKernel(ctx context.Context, bindings []gpu.Buffer, workgroups int) error {
	if len(bindings) != 5 {
		return fmt.Errorf("compute.minmax_partial: expected 5 bindings, got %d", len(bindings))
	}
	xs := readAll(ctx, bindings[0])
	ys := readAll(ctx, bindings[1])
	clip := readAll(ctx, bindings[2])
	if len(clip) != 2 {
		return fmt.Errorf("compute.minmax_partial: clip range binding must hold 2 values")
	}
	startX, endX := clip[0], clip[1]

	lo := sort.Search(len(xs), func(i int) bool { return xs[i] >= startX })
	hi := sort.Search(len(xs), func(i int) bool { return xs[i] > endX })
	if hi > len(ys) {
		hi = len(ys)
	}
	if lo > hi {
		lo = hi
	}
	n := hi - lo

	groups := minMaxPartialGroups(n)
	mins := make([]float32, groups)
	maxes := make([]float32, groups)

	for g := 0; g < groups; g++ {
		glo := lo + g*minMaxChunk
		ghi := glo + minMaxChunk
		if ghi > hi {
			ghi = hi
		}
		if glo >= ghi {
			mins[g] = float32(math.Inf(1))
			maxes[g] = float32(math.Inf(-1))
			continue
		}
		mn, mx := ys[glo], ys[glo]
		for i := glo + 1; i < ghi; i++ {
			if ys[i] < mn {
				mn = ys[i]
			}
			if ys[i] > mx {
				mx = ys[i]
			}
		}
		mins[g] = mn
		maxes[g] = mx
	}

	if err := bindings[3].Write(ctx, 0, mins); err != nil {
		return err
	}
	return bindings[4].Write(ctx, 0, maxes)
}

// minMaxFinalKernel reduces the per-workgroup partials from the first pass
// down to a single (min, max) pair, written into binding 2 as [min, max].
func minMaxFinalKernel(ctx context.Context, bindings []gpu.Buffer, workgroups int) error {
	if len(bindings) != 3 {
		return fmt.Errorf("compute.minmax_final: expected 3 bindings, got %d", len(bindings))
	}
	mins := readAll(ctx, bindings[0])
	maxes := readAll(ctx, bindings[1])
	if len(mins) == 0 {
		return fmt.Errorf("compute.minmax_final: no partials to reduce")
	}

	mn, mx := mins[0], maxes[0]
	for i := 1; i < len(mins); i++ {
		if mins[i] < mn {
			mn = mins[i]
		}
		if maxes[i] > mx {
			mx = maxes[i]
		}
	}
	return bindings[2].Write(ctx, 0, []float32{mn, mx})
}

// minMaxGlobalKernel reduces every currently visible metric's already-
// reduced (min, max) pair down to one overall bound shared by every draw
// pipeline. Binding 0 holds the concatenated per-metric pairs
// ([min0,max0,min1,max1,...]), binding 1 is the fixed-default [min,max]
// fallback used when no metric contributed a pair, binding 2 is the
// output [min,max].
func minMaxGlobalKernel(ctx context.Context, bindings []gpu.Buffer, workgroups int) error {
	if len(bindings) != 3 {
		return fmt.Errorf("compute.minmax_global: expected 3 bindings, got %d", len(bindings))
	}
	pairs := readAll(ctx, bindings[0])
	fallback := readAll(ctx, bindings[1])
	if len(fallback) != 2 {
		return fmt.Errorf("compute.minmax_global: fallback binding must hold 2 values")
	}

	if len(pairs) == 0 || len(pairs)%2 != 0 {
		return bindings[2].Write(ctx, 0, fallback)
	}

	mn, mx := pairs[0], pairs[1]
	for i := 2; i+1 < len(pairs); i += 2 {
		if pairs[i] < mn {
			mn = pairs[i]
		}
		if pairs[i+1] > mx {
			mx = pairs[i+1]
		}
	}
	return bindings[2].Write(ctx, 0, []float32{mn, mx})
}
