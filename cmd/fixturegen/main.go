// Command fixturegen writes synthetic column files for local development
// and testing: a geometric-Brownian-motion price path per symbol, bucketed
// into the same per-column on-disk layout cmd/logger produces, so
// cmd/server and the client core can be exercised without a live exchange
// connection.
//
// Usage:
//
//	fixturegen -data-root ./data -symbols BTC-USD,ETH-USD -fixture-days 3
package main

import (
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/ndrandal/tickvis/internal/config"
	"github.com/ndrandal/tickvis/internal/engine"
	"github.com/ndrandal/tickvis/internal/filehandles"
	"github.com/ndrandal/tickvis/internal/tick"
)

const (
	ticksPerDay   = 86_400 // one tick per second
	baseDailyVol  = 0.02
	tradesPerTick = 1
)

// rngStateFile holds the PRNG's PCG state between runs, under the data
// root alongside the column files it generated. Only consulted when the
// caller leaves -fixture-seed at its zero value, asking to continue a
// prior run's sequence rather than pin a fresh one.
const rngStateFile = ".fixturegen-rng-state"

// tradeSizeBucket is one weighted range of the trade-size distribution:
// mostly small retail-sized trades, occasionally a larger block.
type tradeSizeBucket struct {
	min, max float64
	weight   float64
}

var tradeSizeBuckets = []tradeSizeBucket{
	{min: 0.001, max: 0.1, weight: 70},
	{min: 0.1, max: 1, weight: 25},
	{min: 1, max: 10, weight: 4},
	{min: 10, max: 50, weight: 1},
}

// randomTradeSize picks a weighted bucket, then a uniform size within it.
func randomTradeSize(rng *engine.RNG) float64 {
	weights := make([]float64, len(tradeSizeBuckets))
	for i, b := range tradeSizeBuckets {
		weights[i] = b.weight
	}
	b := tradeSizeBuckets[rng.WeightedPick(weights)]
	return b.min + rng.Float64()*(b.max-b.min)
}

// basePrices seeds each symbol's starting price; a real exchange snapshot
// would replace this at connect time, but fixturegen only needs a
// plausible starting point for the random walk.
var basePrices = map[string]float64{
	"BTC-USD":   64_000,
	"ETH-USD":   3_200,
	"SOL-USD":   140,
	"ADA-USD":   0.45,
	"MATIC-USD": 0.72,
	"ARB-USD":   1.1,
	"OP-USD":    2.3,
	"UNI-USD":   7.5,
	"AAVE-USD":  95,
	"MKR-USD":   1_450,
	"USDC-USD":  1.0,
	"DAI-USD":   1.0,
	"DOGE-USD":  0.15,
	"SHIB-USD":  0.00002,
}

func main() {
	cfg := config.Load()
	log.SetFlags(log.Ldate | log.Ltime)

	rng := engine.NewRNG(cfg.FixtureSeed)
	statePath := filepath.Join(cfg.DataRoot, rngStateFile)
	if cfg.FixtureSeed == 0 {
		if state, err := os.ReadFile(statePath); err == nil {
			rng.RestoreStateBytes(state)
			log.Printf("fixturegen: resumed PRNG state from %s", statePath)
		}
	}
	log.Printf("fixturegen: seed=%d days=%d symbols=%v", cfg.FixtureSeed, cfg.FixtureDays, cfg.Symbols)

	handles := filehandles.NewManager(cfg.DataRoot)
	today := time.Now().UTC().Truncate(24 * time.Hour)

	for _, sym := range cfg.Symbols {
		price, ok := basePrices[sym]
		if !ok {
			price = 100
		}
		for d := cfg.FixtureDays - 1; d >= 0; d-- {
			day := today.AddDate(0, 0, -d)
			var err error
			price, err = generateDay(handles, cfg.Exchange, sym, day, price, rng)
			if err != nil {
				log.Fatalf("generate %s %s: %v", sym, day.Format("2006-01-02"), err)
			}
		}
		log.Printf("fixturegen: %s done, final price %.4f", sym, price)
	}

	if err := handles.FlushAll(); err != nil {
		log.Fatalf("final flush: %v", err)
	}
	if err := handles.CloseAll(); err != nil {
		log.Fatalf("close handles: %v", err)
	}

	if err := os.WriteFile(statePath, rng.StateBytes(), 0o644); err != nil {
		log.Printf("fixturegen: save PRNG state: %v", err)
	}
	log.Println("fixturegen: complete")
}

// generateDay walks one GBM price path for one symbol across one day's
// ticks, writing market-data and trade records directly through the same
// filehandles.Manager the ingestion daemon uses, and returns the closing
// price to seed the next day.
func generateDay(handles *filehandles.Manager, exchange, sym string, day time.Time, openPrice float64, rng *engine.RNG) (float64, error) {
	h, err := handles.GetOrCreate(exchange, sym, day)
	if err != nil {
		return 0, err
	}

	tickVol := baseDailyVol / math.Sqrt(float64(ticksPerDay))
	price := openPrice
	var tradeID uint64

	for i := 0; i < ticksPerDay; i++ {
		z := rng.Gaussian()
		price *= math.Exp(tickVol * z)
		if price <= 0 {
			price = openPrice
		}

		spread := price * 0.0005
		bid := price - spread/2
		ask := price + spread/2

		secs := uint32(day.Unix()) + uint32(i)
		side := tick.SideBuy
		if rng.Intn(2) == 0 {
			side = tick.SideSell
		}

		md := tick.MarketData{
			TimestampSecs:  secs,
			TimestampNanos: uint32(rng.Intn(1_000_000_000)),
			Price:          float32(price),
			Size:           float32(randomTradeSize(rng)),
			Side:           side,
			BestBid:        float32(bid),
			BestAsk:        float32(ask),
		}
		if err := h.WriteMarketData(md); err != nil {
			return 0, err
		}

		for t := 0; t < tradesPerTick; t++ {
			tradeID++
			trade := tick.Trade{
				TradeID:        tradeID,
				TimestampSecs:  secs,
				TimestampNanos: md.TimestampNanos,
				Price:          md.Price,
				Size:           md.Size,
				Side:           side,
			}
			if err := h.WriteTrade(trade); err != nil {
				return 0, err
			}
		}
	}

	if err := h.Flush(); err != nil {
		return 0, err
	}
	return price, nil
}
