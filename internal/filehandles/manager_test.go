package filehandles

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ndrandal/tickvis/internal/tick"
)

func TestGetOrCreateMakesDirectories(t *testing.T) {
	root := t.TempDir()
	mgr := NewManager(root)
	day := time.Date(2026, time.July, 31, 0, 0, 0, 0, time.UTC)

	h, err := mgr.GetOrCreate("coinbase", "BTC-USD", day)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "coinbase", "BTC-USD", "MD")); err != nil {
		t.Fatalf("MD dir missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "coinbase", "BTC-USD", "TRADES")); err != nil {
		t.Fatalf("TRADES dir missing: %v", err)
	}

	if err := h.WriteMarketData(tick.MarketData{Price: 100, Size: 1, Side: tick.SideBuy, BestBid: 99, BestAsk: 101}); err != nil {
		t.Fatalf("WriteMarketData: %v", err)
	}
	if err := mgr.FlushAll(); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}

	info, err := os.Stat(filepath.Join(root, "coinbase", "BTC-USD", "MD", "price.31.07.26.bin"))
	if err != nil {
		t.Fatalf("price file missing: %v", err)
	}
	if info.Size() != 4 {
		t.Fatalf("price file size = %d, want 4", info.Size())
	}
}

func TestRotateIfNeeded(t *testing.T) {
	root := t.TempDir()
	mgr := NewManager(root)
	day1 := time.Date(2026, time.July, 30, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, time.July, 31, 0, 0, 0, 0, time.UTC)

	if _, err := mgr.GetOrCreate("coinbase", "BTC-USD", day1); err != nil {
		t.Fatalf("GetOrCreate day1: %v", err)
	}
	if err := mgr.RotateIfNeeded(day2); err != nil {
		t.Fatalf("RotateIfNeeded: %v", err)
	}
	if len(mgr.handles) != 0 {
		t.Fatalf("expected stale handles evicted, got %d remaining", len(mgr.handles))
	}
}
