// Package ingest drives one websocket connection through its lifecycle:
// connect, subscribe, stream into a composite-key-ordered buffer, flush on
// a timer or a size trigger, and reconnect with exponential backoff on any
// error.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ndrandal/tickvis/internal/breaker"
	"github.com/ndrandal/tickvis/internal/filehandles"
	"github.com/ndrandal/tickvis/internal/tick"
)

// State is a node of the connection lifecycle state machine.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateStreaming
	StateBuffering
	StateError
	StateClosed
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateStreaming:
		return "Streaming"
	case StateBuffering:
		return "Buffering"
	case StateError:
		return "Error"
	case StateClosed:
		return "Closed"
	case StateReconnecting:
		return "Reconnecting"
	default:
		return "Unknown"
	}
}

const (
	flushInterval       = 5 * time.Second
	maxBufferSize       = 10_000
	initialReconnect    = 1 * time.Second
	maxReconnectDelay   = 60 * time.Second
	handleRetryAttempts = 3
	handleRetryDelay    = 5 * time.Second
	handleRetryCooldown = 30 * time.Second
)

type bufferedMD struct {
	key    uint64
	symbol string
	record tick.MarketData
}

type bufferedTrade struct {
	key    uint64
	symbol string
	record tick.Trade
}

// LiveBroadcaster fans freshly flushed records out to subscribed
// websocket clients. internal/live.Manager satisfies this without
// internal/ingest needing to import it directly.
type LiveBroadcaster interface {
	BroadcastMarketData(symbol string, md tick.MarketData)
	BroadcastTrade(symbol string, t tick.Trade)
}

// Handler owns one exchange websocket connection and the ordered buffer
// that feeds the file-handle manager.
type Handler struct {
	Adapter  ExchangeAdapter
	Symbols  []string
	Handles  *filehandles.Manager
	Breakers *breaker.Registry
	Live     LiveBroadcaster // optional; nil disables live fan-out

	mu         sync.Mutex
	state      State
	mdBuffer   []bufferedMD
	tradeBuf   []bufferedTrade
	reachedFullStream bool
}

// State returns the handler's current lifecycle state.
func (h *Handler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handler) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// Run drives the connect/stream/reconnect loop until ctx is cancelled.
// It never returns a non-nil error for a single connection drop: those are
// retried internally. It returns nil once ctx is done, after a final
// flush, and returns an error only if the adapter cannot build its
// subscribe message.
func (h *Handler) Run(ctx context.Context) error {
	delay := initialReconnect

	for {
		if ctx.Err() != nil {
			h.flushAll()
			h.setState(StateClosed)
			return nil
		}

		h.setState(StateConnecting)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, h.Adapter.URL(), nil)
		if err != nil {
			log.Printf("ingest[%s]: dial failed: %v", h.Adapter.Name(), err)
			h.setState(StateReconnecting)
			delay = h.sleepBackoff(ctx, delay)
			continue
		}
		h.setState(StateConnected)

		sub, err := h.Adapter.SubscribeMessage(h.Symbols)
		if err != nil {
			conn.Close()
			return fmt.Errorf("ingest[%s]: build subscribe message: %w", h.Adapter.Name(), err)
		}
		if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
			conn.Close()
			h.setState(StateReconnecting)
			delay = h.sleepBackoff(ctx, delay)
			continue
		}

		h.reachedFullStream = false
		streamErr := h.stream(ctx, conn)
		conn.Close()

		if h.reachedFullStream {
			delay = initialReconnect
		}

		if ctx.Err() != nil {
			h.flushAll()
			h.setState(StateClosed)
			return nil
		}

		log.Printf("ingest[%s]: connection ended: %v", h.Adapter.Name(), streamErr)
		h.setState(StateReconnecting)
		delay = h.sleepBackoff(ctx, delay)
	}
}

func (h *Handler) sleepBackoff(ctx context.Context, delay time.Duration) time.Duration {
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
	next := delay * 2
	if next > maxReconnectDelay {
		next = maxReconnectDelay
	}
	return next
}

// stream reads messages off conn until it errors or ctx is cancelled,
// buffering records and flushing on the 5s timer or the 10,000-entry
// size trigger.
func (h *Handler) stream(ctx context.Context, conn *websocket.Conn) error {
	h.setState(StateStreaming)

	msgCh := make(chan []byte, 256)
	errCh := make(chan error, 1)
	go func() {
		defer close(msgCh)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			select {
			case msgCh <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-errCh:
			h.flushAll()
			return err

		case data, ok := <-msgCh:
			if !ok {
				return fmt.Errorf("connection closed")
			}
			if err := h.handleMessage(data); err != nil {
				log.Printf("ingest[%s]: dropping malformed message: %v", h.Adapter.Name(), err)
				continue
			}
			h.reachedFullStream = true

			if h.bufferedCount() >= maxBufferSize {
				h.setState(StateBuffering)
				h.flushAll()
				h.setState(StateStreaming)
			}

		case <-ticker.C:
			h.flushAll()
		}
	}
}

func (h *Handler) bufferedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.mdBuffer) + len(h.tradeBuf)
}

func (h *Handler) handleMessage(data []byte) error {
	parsed, err := h.Adapter.Dispatch(data)
	if err != nil {
		return err
	}

	switch parsed.Kind {
	case KindMarketData:
		h.mu.Lock()
		h.mdBuffer = append(h.mdBuffer, bufferedMD{
			key:    parsed.MD.CompositeKey(),
			symbol: parsed.Symbol,
			record: parsed.MD,
		})
		if parsed.HasDerivedTrade {
			h.tradeBuf = append(h.tradeBuf, bufferedTrade{
				key:    parsed.DerivedTrade.CompositeKey(),
				symbol: parsed.Symbol,
				record: parsed.DerivedTrade,
			})
		}
		h.mu.Unlock()
	case KindTrade:
		h.mu.Lock()
		h.tradeBuf = append(h.tradeBuf, bufferedTrade{
			key:    parsed.Trade.CompositeKey(),
			symbol: parsed.Symbol,
			record: parsed.Trade,
		})
		h.mu.Unlock()
	case KindServerError:
		return fmt.Errorf("server reported error")
	case KindSubscriptionAck, KindIgnored:
		// nothing to buffer
	}
	return nil
}

// flushAll drains the ordered buffers to the file-handle manager, rotating
// handles across a date boundary first, and reports transient failures
// through the Network circuit breaker.
func (h *Handler) flushAll() {
	h.mu.Lock()
	md := h.mdBuffer
	trades := h.tradeBuf
	h.mdBuffer = nil
	h.tradeBuf = nil
	h.mu.Unlock()

	if len(md) == 0 && len(trades) == 0 {
		return
	}

	sort.Slice(md, func(i, j int) bool { return md[i].key < md[j].key })
	sort.Slice(trades, func(i, j int) bool { return trades[i].key < trades[j].key })

	now := time.Now().UTC()
	if err := h.Handles.RotateIfNeeded(now); err != nil {
		log.Printf("ingest[%s]: rotate failed: %v", h.Adapter.Name(), err)
	}

	writeErr := h.Breakers.Do(breaker.Network, func() error {
		for _, rec := range md {
			handles, err := h.getHandlesWithRetry(rec.symbol, now)
			if err != nil {
				return err
			}
			if err := handles.WriteMarketData(rec.record); err != nil {
				return err
			}
		}
		for _, rec := range trades {
			handles, err := h.getHandlesWithRetry(rec.symbol, now)
			if err != nil {
				return err
			}
			if err := handles.WriteTrade(rec.record); err != nil {
				return err
			}
		}
		return h.Handles.FlushAll()
	})
	if writeErr != nil {
		log.Printf("ingest[%s]: flush failed: %v", h.Adapter.Name(), writeErr)
		return
	}

	if h.Live != nil {
		for _, rec := range md {
			h.Live.BroadcastMarketData(rec.symbol, rec.record)
		}
		for _, rec := range trades {
			h.Live.BroadcastTrade(rec.symbol, rec.record)
		}
	}
}

// getHandlesWithRetry retries GetOrCreate up to 3 times, 5 seconds apart,
// then backs off for a 30-second cooldown before giving the outer
// reconnect loop a chance to reset state.
func (h *Handler) getHandlesWithRetry(symbol string, day time.Time) (*filehandles.Handles, error) {
	var lastErr error
	for attempt := 0; attempt < handleRetryAttempts; attempt++ {
		handles, err := h.Handles.GetOrCreate(exchangeName(h.Adapter), symbol, day)
		if err == nil {
			return handles, nil
		}
		lastErr = err
		log.Printf("ingest[%s]: GetOrCreate(%s) attempt %d failed: %v", h.Adapter.Name(), symbol, attempt+1, err)
		time.Sleep(handleRetryDelay)
	}
	time.Sleep(handleRetryCooldown)
	return nil, fmt.Errorf("file handle recreation exhausted for %s: %w", symbol, lastErr)
}

func exchangeName(a ExchangeAdapter) string { return a.Name() }

// snapshotJSON is used by callers that want to expose buffer depth and
// state through an HTTP status endpoint without reaching into internals.
func (h *Handler) snapshotJSON() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return json.Marshal(struct {
		State        string `json:"state"`
		BufferedMD   int    `json:"buffered_market_data"`
		BufferedTr   int    `json:"buffered_trades"`
	}{
		State:      h.state.String(),
		BufferedMD: len(h.mdBuffer),
		BufferedTr: len(h.tradeBuf),
	})
}
