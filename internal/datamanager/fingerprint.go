// Package datamanager implements the client-side data-manager: a
// fingerprint-keyed LRU of GPU buffer handles fetched from the range-query
// server, so the render loop never re-issues a network request for a
// window it has already loaded.
package datamanager

import "fmt"

// Fingerprint identifies one cacheable fetch: a symbol/column/time-range
// combination plus the compression and tag modifiers that would otherwise
// alias two distinct requests onto the same bytes. It is a plain
// comparable struct so it can key the LRU directly, no hashing step
// required.
type Fingerprint struct {
	Symbol      string
	DataType    string
	Column      string
	StartX      uint32
	EndX        uint32
	Compression string
	Tags        string
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("%s/%s/%s[%d,%d]/%s/%s", f.Symbol, f.DataType, f.Column, f.StartX, f.EndX, f.Compression, f.Tags)
}

// adjacent returns the fingerprint for the range immediately following f,
// the same width, used to build best-effort prefetch requests.
func (f Fingerprint) adjacent() Fingerprint {
	width := f.EndX - f.StartX
	next := f
	next.StartX = f.EndX
	next.EndX = f.EndX + width
	return next
}
