package gpu

import (
	"context"
	"fmt"
	"sync"
)

// Kernel is a CPU-executed stand-in for a compute shader: given the bound
// buffers' current contents, it computes and writes back its outputs.
// internal/compute registers the kernels this system needs.
type Kernel func(ctx context.Context, bindings []Buffer, workgroups int) error

var (
	kernelsMu sync.RWMutex
	kernels   = map[string]Kernel{}
)

// RegisterKernel installs a named kernel implementation, callable from
// BeginComputePass. Intended to be called from package init in
// internal/compute, mirroring how a real backend would load a compiled
// shader module once at startup.
func RegisterKernel(name string, k Kernel) {
	kernelsMu.Lock()
	defer kernelsMu.Unlock()
	kernels[name] = k
}

func lookupKernel(name string) (Kernel, bool) {
	kernelsMu.RLock()
	defer kernelsMu.RUnlock()
	k, ok := kernels[name]
	return k, ok
}

// cpuBuffer is the CPU backend's Buffer implementation: a plain slice
// guarded by a mutex, standing in for device memory.
type cpuBuffer struct {
	mu   sync.Mutex
	data []float32
}

func (b *cpuBuffer) Size() int { return len(b.data) }

func (b *cpuBuffer) Read(ctx context.Context, dst []float32) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := copy(dst, b.data)
	return n, nil
}

func (b *cpuBuffer) Write(ctx context.Context, offset int, src []float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if offset < 0 || offset+len(src) > len(b.data) {
		return fmt.Errorf("gpu: write out of bounds: offset=%d len=%d size=%d", offset, len(src), len(b.data))
	}
	copy(b.data[offset:], src)
	return nil
}

type cpuComputePass struct {
	kernel   Kernel
	bindings []Buffer
}

func (p *cpuComputePass) Dispatch(ctx context.Context, workgroups int) error {
	return p.kernel(ctx, p.bindings, workgroups)
}

type cpuCommandEncoder struct{}

func (e *cpuCommandEncoder) BeginComputePass(kernel string, bindings []Buffer) (ComputePass, error) {
	k, ok := lookupKernel(kernel)
	if !ok {
		return nil, fmt.Errorf("gpu: unknown kernel %q", kernel)
	}
	return &cpuComputePass{kernel: k, bindings: bindings}, nil
}

func (e *cpuCommandEncoder) Submit(ctx context.Context) error { return nil }

// CPUDevice is the CPU-simulated Device backend, used everywhere this
// system runs since no hardware binding is available.
type CPUDevice struct{}

// NewCPUDevice constructs the CPU-simulated device.
func NewCPUDevice() *CPUDevice { return &CPUDevice{} }

func (d *CPUDevice) Name() string { return "cpu-simulated" }

func (d *CPUDevice) CreateBuffer(size int, usage BufferUsage) (Buffer, error) {
	if size < 0 {
		return nil, fmt.Errorf("gpu: negative buffer size %d", size)
	}
	return &cpuBuffer{data: make([]float32, size)}, nil
}

func (d *CPUDevice) CreateCommandEncoder() (CommandEncoder, error) {
	return &cpuCommandEncoder{}, nil
}
