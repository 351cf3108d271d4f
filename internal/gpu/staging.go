package gpu

import (
	"context"
	"sync"
)

// StagingRing is a small pool of reusable host-visible scratch buffers used
// for explicit CPU readbacks. Copying a whole compute buffer back to the
// CPU after every dispatch stalls the frame whenever the result is only
// needed in small pieces (a tooltip value, an overall min/max pair) or not
// at all (a result that stays bound as a GPU buffer for rendering); callers
// that genuinely need bytes on the CPU ask the ring for them explicitly
// instead, and only pay for what they read.
type StagingRing struct {
	mu    sync.Mutex
	slots [][]float32
	next  int
}

// NewStagingRing builds a ring of n reusable scratch slots. n is typically
// small (a handful) since readbacks through the ring are meant to stay
// small themselves.
func NewStagingRing(n int) *StagingRing {
	if n <= 0 {
		n = 1
	}
	return &StagingRing{slots: make([][]float32, n)}
}

// Fetch reads the first n float32s of buf back to the CPU, reusing one of
// the ring's scratch slots rather than allocating fresh backing storage on
// every call.
func (s *StagingRing) Fetch(ctx context.Context, buf Buffer, n int) ([]float32, error) {
	s.mu.Lock()
	idx := s.next % len(s.slots)
	s.next++
	slot := s.slots[idx]
	if cap(slot) < n {
		slot = make([]float32, n)
	}
	slot = slot[:n]
	s.slots[idx] = slot
	s.mu.Unlock()

	if _, err := buf.Read(ctx, slot); err != nil {
		return nil, err
	}
	out := make([]float32, n)
	copy(out, slot)
	return out, nil
}

// BindGroup is a named set of buffers shared read-only across draw
// pipelines within one frame, mirroring the "shared x/y range bind group"
// every renderer binds to size its axes and clip its geometry against.
// On the CPU-simulated backend this is nothing more than a labeled map;
// a real backend would back it with an actual bind-group object.
type BindGroup struct {
	mu      sync.RWMutex
	buffers map[string]Buffer
}

// NewBindGroup builds an empty shared bind group.
func NewBindGroup() *BindGroup {
	return &BindGroup{buffers: make(map[string]Buffer)}
}

// Set installs (or replaces) a named buffer binding.
func (g *BindGroup) Set(name string, buf Buffer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.buffers[name] = buf
}

// Get returns a named buffer binding, if present.
func (g *BindGroup) Get(name string) (Buffer, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	b, ok := g.buffers[name]
	return b, ok
}
