package datamanager

import (
	"sync/atomic"

	"github.com/ndrandal/tickvis/internal/gpu"
)

// ColumnBuffer is one column's decoded data: a GPU buffer plus the
// metadata a consumer needs to interpret it without a second round trip
// to the server.
type ColumnBuffer struct {
	Name     string
	RowCount int
	StartX   uint32
	EndX     uint32
	Buffer   gpu.Buffer
}

// BufferData bundles every column fetched for one request, sharing the
// request's row count and time range across columns.
type BufferData struct {
	Symbol   string
	DataType string
	RowCount int
	StartX   uint32
	EndX     uint32
	Columns  map[string]ColumnBuffer
}

// BufferHandle is a shared, reference-counted handle onto one BufferData.
// The cache itself holds one reference; every caller that receives a
// handle from Get holds another, released when it's done with the frame's
// data. A handle's GPU buffers must not be reused once its count reaches
// zero.
type BufferHandle struct {
	Fingerprint Fingerprint
	Data        *BufferData

	count int32
}

func newHandle(fp Fingerprint, data *BufferData) *BufferHandle {
	return &BufferHandle{Fingerprint: fp, Data: data, count: 1}
}

// Retain increments the handle's strong count, returning it for chaining.
func (h *BufferHandle) Retain() *BufferHandle {
	atomic.AddInt32(&h.count, 1)
	return h
}

// Release decrements the handle's strong count, returning the count
// remaining after the decrement.
func (h *BufferHandle) Release() int32 {
	return atomic.AddInt32(&h.count, -1)
}

// StrongCount reports the handle's current reference count.
func (h *BufferHandle) StrongCount() int32 {
	return atomic.LoadInt32(&h.count)
}
