package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/ndrandal/tickvis/internal/breaker"
	"github.com/ndrandal/tickvis/internal/filehandles"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	root := t.TempDir()
	return &Handler{
		Adapter:  Coinbase{},
		Symbols:  []string{"BTC-USD"},
		Handles:  filehandles.NewManager(root),
		Breakers: breaker.NewRegistry(),
	}
}

func TestHandleMessageBuffersMarketDataAndDerivedTrade(t *testing.T) {
	h := newTestHandler(t)
	raw := []byte(`{"type":"ticker","product_id":"BTC-USD","time":"2026-07-31T12:00:00Z","price":"65000","last_size":"0.01","side":"buy","best_bid":"64999","best_ask":"65001"}`)

	if err := h.handleMessage(raw); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}
	if got := h.bufferedCount(); got != 2 {
		t.Fatalf("bufferedCount = %d, want 2 (one md + one derived trade)", got)
	}
}

func TestFlushAllOrdersByCompositeKey(t *testing.T) {
	h := newTestHandler(t)

	later := `{"type":"match","trade_id":2,"product_id":"BTC-USD","time":"2026-07-31T12:00:02Z","price":"65010","size":"0.2","side":"sell","maker_order_id":"a","taker_order_id":"b"}`
	earlier := `{"type":"match","trade_id":1,"product_id":"BTC-USD","time":"2026-07-31T12:00:01Z","price":"65005","size":"0.1","side":"buy","maker_order_id":"a","taker_order_id":"b"}`

	if err := h.handleMessage([]byte(later)); err != nil {
		t.Fatalf("handleMessage later: %v", err)
	}
	if err := h.handleMessage([]byte(earlier)); err != nil {
		t.Fatalf("handleMessage earlier: %v", err)
	}

	h.flushAll()

	if h.bufferedCount() != 0 {
		t.Fatalf("expected buffers drained after flush, got %d", h.bufferedCount())
	}
}

func TestBackoffCapsAtMaxReconnectDelay(t *testing.T) {
	h := newTestHandler(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // return at once instead of sleeping out the delay
	next := h.sleepBackoff(ctx, 45*time.Second)
	if next != maxReconnectDelay {
		t.Fatalf("expected backoff to cap at %v, got %v", maxReconnectDelay, next)
	}
}
