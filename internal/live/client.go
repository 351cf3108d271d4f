// Package live provides a low-latency websocket push complement to the
// range-query HTTP path: every record the ingestion handler flushes is
// fanned out immediately to subscribed clients, as JSON tick.MarketData
// and tick.Trade records keyed by plain symbol strings rather than any
// wire-level encoding or locate code.
package live

import (
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// Client is a connected websocket subscriber.
type Client struct {
	ID   uint64
	Conn *websocket.Conn

	mu         sync.RWMutex
	symbols    map[string]bool
	allSymbols bool

	sendCh    chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// Dropped counts messages discarded because sendCh was full.
	Dropped uint64
}

var clientIDCounter uint64

// NewClient wraps a websocket connection with a bounded send buffer.
func NewClient(conn *websocket.Conn, bufferSize int) *Client {
	return &Client{
		ID:      atomic.AddUint64(&clientIDCounter, 1),
		Conn:    conn,
		symbols: make(map[string]bool),
		sendCh:  make(chan []byte, bufferSize),
		done:    make(chan struct{}),
	}
}

// Subscribe adds symbols to the client's subscription set.
func (c *Client) Subscribe(symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range symbols {
		c.symbols[s] = true
	}
}

// SubscribeAll subscribes the client to every symbol.
func (c *Client) SubscribeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allSymbols = true
}

// Unsubscribe removes symbols from the client's subscription set.
func (c *Client) Unsubscribe(symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range symbols {
		delete(c.symbols, s)
	}
}

// IsSubscribed reports whether the client currently wants records for
// symbol.
func (c *Client) IsSubscribed(symbol string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.allSymbols || c.symbols[symbol]
}

// Send enqueues data for delivery, dropping it and counting the drop if the
// client's buffer is full rather than blocking the broadcaster.
func (c *Client) Send(data []byte) bool {
	select {
	case c.sendCh <- data:
		return true
	default:
		atomic.AddUint64(&c.Dropped, 1)
		return false
	}
}

// SendCh exposes the outbound queue for the write pump.
func (c *Client) SendCh() <-chan []byte { return c.sendCh }

// Done is closed once the client disconnects.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close terminates the underlying connection, idempotently.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.Conn.Close()
	})
}
