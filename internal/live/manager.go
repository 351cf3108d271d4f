package live

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ndrandal/tickvis/internal/tick"
)

// Manager handles client registration, subscriptions, and record fan-out.
type Manager struct {
	mu         sync.RWMutex
	clients    map[uint64]*Client
	bufferSize int
}

// NewManager creates a live fan-out manager.
func NewManager(bufferSize int) *Manager {
	return &Manager{clients: make(map[uint64]*Client), bufferSize: bufferSize}
}

// Register adds a new client.
func (m *Manager) Register(conn *websocket.Conn) *Client {
	c := NewClient(conn, m.bufferSize)
	m.mu.Lock()
	m.clients[c.ID] = c
	m.mu.Unlock()
	log.Printf("live: client %d connected (%s)", c.ID, conn.RemoteAddr())
	return c
}

// Unregister removes and closes a client.
func (m *Manager) Unregister(c *Client) {
	m.mu.Lock()
	delete(m.clients, c.ID)
	m.mu.Unlock()
	c.Close()
	log.Printf("live: client %d disconnected", c.ID)
}

// envelope is the wire shape for both record kinds, distinguished by Kind.
type envelope struct {
	Kind   string          `json:"kind"`
	Symbol string          `json:"symbol"`
	Record json.RawMessage `json:"record"`
}

// BroadcastMarketData fans a market-data record out to every subscribed
// client, encoding once regardless of subscriber count.
func (m *Manager) BroadcastMarketData(symbol string, md tick.MarketData) {
	m.broadcast(symbol, "market_data", md)
}

// BroadcastTrade fans a trade record out to every subscribed client.
func (m *Manager) BroadcastTrade(symbol string, t tick.Trade) {
	m.broadcast(symbol, "trade", t)
}

func (m *Manager) broadcast(symbol, kind string, record any) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.clients) == 0 {
		return
	}

	recBytes, err := json.Marshal(record)
	if err != nil {
		log.Printf("live: encode %s record: %v", kind, err)
		return
	}
	data, err := json.Marshal(envelope{Kind: kind, Symbol: symbol, Record: recBytes})
	if err != nil {
		log.Printf("live: encode envelope: %v", err)
		return
	}

	for _, c := range m.clients {
		if !c.IsSubscribed(symbol) {
			continue
		}
		c.Send(data)
	}
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}
