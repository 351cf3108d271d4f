package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ndrandal/tickvis/internal/tick"
)

// ParsedKind enumerates the categories of inbound message the handler acts
// on.
type ParsedKind int

const (
	KindIgnored ParsedKind = iota
	KindMarketData
	KindTrade
	KindSubscriptionAck
	KindServerError
)

// Parsed is the result of dispatching one inbound websocket message.
type Parsed struct {
	Kind   ParsedKind
	Symbol string
	MD     tick.MarketData
	Trade  tick.Trade
	// DerivedTrade is set alongside KindMarketData for "ticker" messages,
	// which emit both a market-data record and a derived trade record with
	// the spread carried forward.
	HasDerivedTrade bool
	DerivedTrade    tick.Trade
}

// ExchangeAdapter translates between the handler's internal record types
// and one exchange's wire protocol.
type ExchangeAdapter interface {
	// Name identifies the exchange, used in the on-disk directory layout.
	Name() string
	// URL is the websocket endpoint to dial.
	URL() string
	// SubscribeMessage builds the outbound subscribe frame for a set of
	// symbols.
	SubscribeMessage(symbols []string) ([]byte, error)
	// Dispatch parses one inbound message and classifies it.
	Dispatch(raw []byte) (Parsed, error)
}

// Coinbase implements ExchangeAdapter against the Coinbase Exchange
// websocket feed: ticker, match, and subscriptions message types.
type Coinbase struct {
	Endpoint string // defaults to wss://ws-feed.exchange.coinbase.com
}

func (c Coinbase) Name() string { return "coinbase" }

func (c Coinbase) URL() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return "wss://ws-feed.exchange.coinbase.com"
}

type subscribeMsg struct {
	Type     string     `json:"type"`
	Channels []channel  `json:"channels"`
}

type channel struct {
	Name       string   `json:"name"`
	ProductIDs []string `json:"product_ids"`
}

func (c Coinbase) SubscribeMessage(symbols []string) ([]byte, error) {
	msg := subscribeMsg{
		Type: "subscribe",
		Channels: []channel{
			{Name: "ticker", ProductIDs: symbols},
			{Name: "matches", ProductIDs: symbols},
		},
	}
	return json.Marshal(msg)
}

// rawMessage is the superset of fields the ticker/match/subscriptions/error
// message types may carry.
type rawMessage struct {
	Type         string `json:"type"`
	ProductID    string `json:"product_id"`
	Time         string `json:"time"`
	Price        string `json:"price"`
	LastSize     string `json:"last_size"`
	Side         string `json:"side"`
	BestBid      string `json:"best_bid"`
	BestAsk      string `json:"best_ask"`
	Size         string `json:"size"`
	TradeID      uint64 `json:"trade_id"`
	MakerOrderID string `json:"maker_order_id"`
	TakerOrderID string `json:"taker_order_id"`
	Message      string `json:"message"`
}

func (c Coinbase) Dispatch(raw []byte) (Parsed, error) {
	var m rawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return Parsed{}, fmt.Errorf("malformed json: %w", err)
	}

	switch m.Type {
	case "ticker":
		return c.parseTicker(m)
	case "match", "last_match":
		return c.parseMatch(m)
	case "subscriptions":
		return Parsed{Kind: KindSubscriptionAck}, nil
	case "error":
		return Parsed{Kind: KindServerError}, fmt.Errorf("exchange error: %s", m.Message)
	default:
		return Parsed{Kind: KindIgnored}, nil
	}
}

func (c Coinbase) parseTicker(m rawMessage) (Parsed, error) {
	secs, nanos, err := parseRFC3339Nanos(m.Time)
	if err != nil {
		return Parsed{}, fmt.Errorf("ticker: %w", err)
	}
	price, err := parseFloat(m.Price)
	if err != nil {
		return Parsed{}, fmt.Errorf("ticker: price: %w", err)
	}
	size, err := parseFloat(m.LastSize)
	if err != nil {
		return Parsed{}, fmt.Errorf("ticker: last_size: %w", err)
	}
	side, err := parseSide(m.Side)
	if err != nil {
		return Parsed{}, fmt.Errorf("ticker: %w", err)
	}
	bid, err := parseFloat(m.BestBid)
	if err != nil {
		return Parsed{}, fmt.Errorf("ticker: best_bid: %w", err)
	}
	ask, err := parseFloat(m.BestAsk)
	if err != nil {
		return Parsed{}, fmt.Errorf("ticker: best_ask: %w", err)
	}

	md := tick.MarketData{
		TimestampSecs:  secs,
		TimestampNanos: nanos,
		Price:          price,
		Size:           size,
		Side:           side,
		BestBid:        bid,
		BestAsk:        ask,
	}
	if err := md.Validate(); err != nil {
		return Parsed{}, err
	}

	derived := tick.Trade{
		TimestampSecs:  secs,
		TimestampNanos: nanos,
		Price:          price,
		Size:           size,
		Side:           side,
	}

	return Parsed{
		Kind:            KindMarketData,
		Symbol:          m.ProductID,
		MD:              md,
		HasDerivedTrade: true,
		DerivedTrade:    derived,
	}, nil
}

func (c Coinbase) parseMatch(m rawMessage) (Parsed, error) {
	secs, nanos, err := parseRFC3339Nanos(m.Time)
	if err != nil {
		return Parsed{}, fmt.Errorf("match: %w", err)
	}
	price, err := parseFloat(m.Price)
	if err != nil {
		return Parsed{}, fmt.Errorf("match: price: %w", err)
	}
	size, err := parseFloat(m.Size)
	if err != nil {
		return Parsed{}, fmt.Errorf("match: size: %w", err)
	}
	side, err := parseSide(m.Side)
	if err != nil {
		return Parsed{}, fmt.Errorf("match: %w", err)
	}

	t := tick.Trade{
		TradeID:        m.TradeID,
		TimestampSecs:  secs,
		TimestampNanos: nanos,
		Price:          price,
		Size:           size,
		Side:           side,
		MakerOrderID:   parseOrderID(m.MakerOrderID),
		TakerOrderID:   parseOrderID(m.TakerOrderID),
	}
	if err := t.Validate(); err != nil {
		return Parsed{}, err
	}

	return Parsed{Kind: KindTrade, Symbol: m.ProductID, Trade: t}, nil
}

func parseRFC3339Nanos(s string) (secs, nanos uint32, err error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, 0, fmt.Errorf("parse time %q: %w", s, err)
	}
	unix := t.Unix()
	if unix < 0 {
		return 0, 0, fmt.Errorf("negative timestamp rejected: %q", s)
	}
	return uint32(unix), uint32(t.Nanosecond()), nil
}

func parseFloat(s string) (float32, error) {
	if s == "" {
		return 0, fmt.Errorf("empty numeric field")
	}
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	return float32(f), nil
}

func parseSide(s string) (tick.Side, error) {
	switch strings.ToLower(s) {
	case "buy":
		return tick.SideBuy, nil
	case "sell":
		return tick.SideSell, nil
	default:
		return 0, fmt.Errorf("unknown side %q", s)
	}
}

func parseOrderID(s string) [16]byte {
	var out [16]byte
	if s == "" {
		return out
	}
	// Order ids from the exchange are UUIDs; store their raw textual bytes
	// truncated/padded to 16, treated as an opaque key throughout.
	copy(out[:], s)
	return out
}
