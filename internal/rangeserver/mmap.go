// Package rangeserver implements the zero-copy mmap range-query HTTP
// server: memory-mapped column files, an LRU cache of mapping handles,
// binary-search index resolution, and streamed column-major response
// framing.
package rangeserver

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"
)

// MappedColumn is one memory-mapped column file, ready for zero-copy reads.
type MappedColumn struct {
	Data       mmap.MMap
	file       *os.File
	RecordSize int
	locked     bool
}

// mapColumnFile opens and memory-maps path read-only, best-effort locking
// the pages resident with mlock so a page fault never blocks a request on
// disk I/O once warmed.
func mapColumnFile(path string, recordSize int) (*MappedColumn, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		f.Close()
		return nil, fmt.Errorf("empty column file %s", path)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	locked := unix.Mlock(m) == nil

	return &MappedColumn{Data: m, file: f, RecordSize: recordSize, locked: locked}, nil
}

// Rows reports how many fixed-width records this column file holds.
func (c *MappedColumn) Rows() int {
	if c.RecordSize == 0 {
		return 0
	}
	return len(c.Data) / c.RecordSize
}

// Close unmaps and releases the underlying file handle. Safe to call once
// per MappedColumn, normally from the cache's eviction callback.
func (c *MappedColumn) Close() error {
	if c.locked {
		unix.Munlock(c.Data) //nolint:errcheck
	}
	err := c.Data.Unmap()
	if cerr := c.file.Close(); err == nil {
		err = cerr
	}
	return err
}
