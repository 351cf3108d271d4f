package datamanager

import (
	"bufio"
	"context"
	"encoding/binary"
	"math"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ndrandal/tickvis/internal/breaker"
	"github.com/ndrandal/tickvis/internal/columnfile"
	"github.com/ndrandal/tickvis/internal/gpu"
	"github.com/ndrandal/tickvis/internal/rangeserver"
)

func writeTimeColumn(t *testing.T, root, exchange, symbol string, day time.Time, values []uint32) {
	t.Helper()
	path := columnfile.Path(root, exchange, symbol, columnfile.MD, "time", day)
	writeRaw(t, path, values)
}

func writePriceColumn(t *testing.T, root, exchange, symbol string, day time.Time, values []float32) {
	t.Helper()
	path := columnfile.Path(root, exchange, symbol, columnfile.MD, "price", day)
	raw := make([]uint32, len(values))
	for i, v := range values {
		raw[i] = math.Float32bits(v)
	}
	writeRaw(t, path, raw)
}

func writeRaw(t *testing.T, path string, values []uint32) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, v := range values {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], v)
		w.Write(buf[:])
	}
	w.Flush()
}

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	root := t.TempDir()
	// 1970-01-01: the day the Unix-second timestamps 100..104 fall on.
	day := time.Unix(0, 0).UTC()
	writeTimeColumn(t, root, "coinbase", "BTC-USD", day, []uint32{100, 101, 102, 103, 104})
	writePriceColumn(t, root, "coinbase", "BTC-USD", day, []float32{10, 11, 12, 13, 14})

	cache := rangeserver.NewCache(root)
	t.Cleanup(cache.Purge)
	handler := rangeserver.NewHandler(cache)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, root
}

func TestClientFetchesDecodesAndCaches(t *testing.T) {
	srv, _ := newTestServer(t)
	client := NewClient(srv.URL+"/api/data?exchange=coinbase", gpu.NewCPUDevice(), breaker.NewRegistry())

	fp := Fingerprint{Symbol: "BTC-USD", DataType: "MD", Column: "price", StartX: 101, EndX: 103}
	h, err := client.Get(context.Background(), fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer h.Release()

	col, ok := h.Data.Columns["price"]
	if !ok {
		t.Fatalf("expected a price column in the decoded buffer data")
	}
	got := make([]float32, col.Buffer.Size())
	if _, err := col.Buffer.Read(context.Background(), got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []float32{11, 12, 13}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	h2, err := client.Get(context.Background(), fp)
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	defer h2.Release()
	if h2.Data != h.Data {
		t.Fatalf("expected a cache hit to return the same BufferData")
	}
	if h.StrongCount() != 3 {
		t.Fatalf("strong count = %d, want 3 (cache + 2 callers)", h.StrongCount())
	}
}

func TestClientCleanupReclaimsUnreferencedHandles(t *testing.T) {
	srv, _ := newTestServer(t)
	client := NewClient(srv.URL+"/api/data?exchange=coinbase", gpu.NewCPUDevice(), breaker.NewRegistry())

	fp := Fingerprint{Symbol: "BTC-USD", DataType: "MD", Column: "price", StartX: 101, EndX: 103}
	h, err := client.Get(context.Background(), fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	h.Release() // caller is done; only the cache's reference remains

	client.Cleanup()

	client.mu.Lock()
	_, stillCached := client.cache.Peek(fp)
	client.mu.Unlock()
	if stillCached {
		t.Fatalf("expected Cleanup to reclaim a handle with strong count 1")
	}
}

func TestClientCleanupKeepsReferencedHandles(t *testing.T) {
	srv, _ := newTestServer(t)
	client := NewClient(srv.URL+"/api/data?exchange=coinbase", gpu.NewCPUDevice(), breaker.NewRegistry())

	fp := Fingerprint{Symbol: "BTC-USD", DataType: "MD", Column: "price", StartX: 101, EndX: 103}
	h, err := client.Get(context.Background(), fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer h.Release()

	client.Cleanup()

	client.mu.Lock()
	_, stillCached := client.cache.Peek(fp)
	client.mu.Unlock()
	if !stillCached {
		t.Fatalf("expected Cleanup to keep a handle still held by a caller")
	}
}
