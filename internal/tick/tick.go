// Package tick defines the unified wire-level record types persisted by the
// ingester and served back by the range query server.
package tick

import (
	"encoding/binary"
	"fmt"
	"math"
)

func float32bits(f float32) uint32 { return math.Float32bits(f) }

// Side identifies the aggressor or quote side of a record.
type Side uint32

const (
	SideSell Side = 0
	SideBuy  Side = 1
)

func (s Side) Valid() bool {
	return s == SideSell || s == SideBuy
}

// MarketData is a single best-bid/best-ask/last-trade quote update.
type MarketData struct {
	TimestampSecs  uint32
	TimestampNanos uint32
	Price          float32 // last trade price
	Size           float32 // last trade size
	Side           Side
	BestBid        float32
	BestAsk        float32
}

// Validate implements the is_valid contract from the data model: all prices
// and sizes finite and strictly positive, spread non-negative, side in {0,1}.
func (m MarketData) Validate() error {
	if !(m.Price > 0) || !finite(m.Price) {
		return fmt.Errorf("tick: non-positive or non-finite price %v", m.Price)
	}
	if !(m.Size > 0) || !finite(m.Size) {
		return fmt.Errorf("tick: non-positive or non-finite size %v", m.Size)
	}
	if !(m.BestBid > 0) || !finite(m.BestBid) {
		return fmt.Errorf("tick: non-positive or non-finite best_bid %v", m.BestBid)
	}
	if !(m.BestAsk > 0) || !finite(m.BestAsk) {
		return fmt.Errorf("tick: non-positive or non-finite best_ask %v", m.BestAsk)
	}
	if m.BestAsk-m.BestBid < 0 {
		return fmt.Errorf("tick: negative spread bid=%v ask=%v", m.BestBid, m.BestAsk)
	}
	if !m.Side.Valid() {
		return fmt.Errorf("tick: invalid side %v", m.Side)
	}
	return nil
}

// CompositeKey returns the ordering key used by the ingester's buffer:
// timestamp_secs * 10^9 + timestamp_nanos.
func (m MarketData) CompositeKey() uint64 {
	return uint64(m.TimestampSecs)*1_000_000_000 + uint64(m.TimestampNanos)
}

// Trade is an executed trade record, persisted to a separate column set.
type Trade struct {
	TradeID        uint64
	TimestampSecs  uint32
	TimestampNanos uint32
	Price          float32
	Size           float32
	Side           Side
	MakerOrderID   [16]byte
	TakerOrderID   [16]byte
}

func (t Trade) Validate() error {
	if !(t.Price > 0) || !finite(t.Price) {
		return fmt.Errorf("trade: non-positive or non-finite price %v", t.Price)
	}
	if !(t.Size > 0) || !finite(t.Size) {
		return fmt.Errorf("trade: non-positive or non-finite size %v", t.Size)
	}
	if !t.Side.Valid() {
		return fmt.Errorf("trade: invalid side %v", t.Side)
	}
	return nil
}

func (t Trade) CompositeKey() uint64 {
	return uint64(t.TimestampSecs)*1_000_000_000 + uint64(t.TimestampNanos)
}

func finite(f float32) bool {
	// reject +/-Inf and NaN with plain float comparisons
	return f == f && f*0 == 0
}

// MarketDataColumns lists the on-disk column names for the MD category, in
// the fixed order the file layout assigns them.
var MarketDataColumns = []string{"time", "nanos", "price", "volume", "side", "best_bid", "best_ask"}

// TradeColumns lists the on-disk column names for the TRADES category.
var TradeColumns = []string{"id", "time", "nanos", "price", "size", "side", "maker_order_id", "taker_order_id"}

// EncodeMarketDataColumn appends the little-endian bytes for one column of
// one MarketData record to buf, matching the fixed 4-byte (or 16-byte for
// order ids, unused here) record width from the column file layout.
func EncodeMarketDataColumn(buf []byte, column string, m MarketData) []byte {
	switch column {
	case "time":
		return binary.LittleEndian.AppendUint32(buf, m.TimestampSecs)
	case "nanos":
		return binary.LittleEndian.AppendUint32(buf, m.TimestampNanos)
	case "price":
		return binary.LittleEndian.AppendUint32(buf, float32bits(m.Price))
	case "volume":
		return binary.LittleEndian.AppendUint32(buf, float32bits(m.Size))
	case "side":
		return binary.LittleEndian.AppendUint32(buf, uint32(m.Side))
	case "best_bid":
		return binary.LittleEndian.AppendUint32(buf, float32bits(m.BestBid))
	case "best_ask":
		return binary.LittleEndian.AppendUint32(buf, float32bits(m.BestAsk))
	default:
		return buf
	}
}

// EncodeTradeColumn appends the little-endian bytes for one column of one
// Trade record to buf.
func EncodeTradeColumn(buf []byte, column string, t Trade) []byte {
	switch column {
	case "id":
		return binary.LittleEndian.AppendUint64(buf, t.TradeID)
	case "time":
		return binary.LittleEndian.AppendUint32(buf, t.TimestampSecs)
	case "nanos":
		return binary.LittleEndian.AppendUint32(buf, t.TimestampNanos)
	case "price":
		return binary.LittleEndian.AppendUint32(buf, float32bits(t.Price))
	case "size":
		return binary.LittleEndian.AppendUint32(buf, float32bits(t.Size))
	case "side":
		return binary.LittleEndian.AppendUint32(buf, uint32(t.Side))
	case "maker_order_id":
		return append(buf, t.MakerOrderID[:]...)
	case "taker_order_id":
		return append(buf, t.TakerOrderID[:]...)
	default:
		return buf
	}
}
