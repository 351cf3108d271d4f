package render

// Vertex is one emitted draw-pipeline vertex: a clip-space-ready position
// plus an RGBA color, the common shape every concrete Component in this
// package builds its geometry from. On a real backend this would be the
// layout of a vertex buffer handed straight to the GPU; the CPU-simulated
// backend has no such buffer, so components accumulate Vertex slices
// in-process instead and a host-side draw call would upload them.
type Vertex struct {
	X, Y  float32
	Color [4]float32
}

var (
	colorGreen  = [4]float32{0.20, 0.78, 0.35, 1}
	colorRed    = [4]float32{0.86, 0.21, 0.27, 1}
	colorYellow = [4]float32{0.93, 0.78, 0.20, 1}
)

// candleColor implements the vertex-shader coloring rule from the
// candlestick draw contract: green when the bar closed above its open,
// red when it closed below, yellow on an exact tie.
func candleColor(open, close float32) [4]float32 {
	switch {
	case close > open:
		return colorGreen
	case close < open:
		return colorRed
	default:
		return colorYellow
	}
}
