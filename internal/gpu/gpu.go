// Package gpu defines the device/buffer/command-encoder boundary the
// compute and render packages are built against. No Go binding for
// WebGPU/wgpu exists anywhere in the example corpus this project was
// grounded on, so the boundary is expressed as plain interfaces with one
// CPU-simulated backend (see cpu.go) standing in for a real adapter. Any
// future hardware-backed implementation only needs to satisfy Device.
package gpu

import "context"

// BufferUsage flags how a Buffer will be used, mirroring WebGPU's usage
// bitmask closely enough that a future real backend can map it directly.
type BufferUsage uint32

const (
	UsageStorage BufferUsage = 1 << iota
	UsageUniform
	UsageCopySrc
	UsageCopyDst
	UsageMapRead
)

// Buffer is an opaque block of device-visible memory. On the CPU backend
// it's backed directly by a Go slice; a real backend would back it with a
// device allocation instead.
type Buffer interface {
	Size() int
	// Read copies the buffer's current contents into dst, blocking until
	// any pending writes are visible. Returns the number of float32 values
	// copied.
	Read(ctx context.Context, dst []float32) (int, error)
	// Write uploads src into the buffer starting at the given float32
	// offset.
	Write(ctx context.Context, offset int, src []float32) error
}

// ComputePass represents one dispatched compute operation: a named kernel
// bound to a fixed set of input/output buffers. The CPU backend executes
// kernels registered by name in cpu.go's kernel table; see internal/compute
// for the kernels this system actually dispatches (average, ema, min/max
// reduction); candlestick aggregation runs on the host, not as a kernel.
type ComputePass interface {
	// Dispatch runs the pass's kernel over workgroups of the given size,
	// blocking until complete (the CPU backend has no async queue to wait
	// on; a hardware backend would make this genuinely asynchronous).
	Dispatch(ctx context.Context, workgroups int) error
}

// CommandEncoder builds and submits one batch of GPU work.
type CommandEncoder interface {
	// BeginComputePass creates a compute pass bound to a named kernel and
	// its buffer bindings, in (binding index -> buffer) order.
	BeginComputePass(kernel string, bindings []Buffer) (ComputePass, error)
	// Submit flushes any buffered work. The CPU backend executes passes
	// synchronously on Dispatch, so Submit is a no-op kept for interface
	// parity with a real command-queue backend.
	Submit(ctx context.Context) error
}

// Device is the root handle compute/render packages acquire once at
// startup and use to allocate buffers and encode commands.
type Device interface {
	// Name identifies the backend, surfaced in status/debug output.
	Name() string
	// CreateBuffer allocates a zero-initialized buffer of size float32s.
	CreateBuffer(size int, usage BufferUsage) (Buffer, error)
	// CreateCommandEncoder begins a new command batch.
	CreateCommandEncoder() (CommandEncoder, error)
}
