// Package symbol provides the initial seed list of tradable pairs loaded
// into internal/persist and internal/symbolsearch at startup, grounded on
// the exchange's published product catalog shape (normalized id, base/quote
// currency, display name, category tags).
package symbol

import "github.com/ndrandal/tickvis/internal/symbolsearch"

// Category groups related pairs for the search index's tag scoring.
type Category string

const (
	CategoryMajor      Category = "major"
	CategoryDeFi       Category = "defi"
	CategoryLayer2     Category = "layer2"
	CategoryStablecoin Category = "stablecoin"
	CategoryMeme       Category = "meme"
)

// Seed returns the initial set of symbols this deployment knows about,
// loaded into the Mongo-backed store on first run and rebuilt into the
// in-memory search index on every restart.
func Seed() []symbolsearch.Symbol {
	return []symbolsearch.Symbol{
		{NormalizedID: "BTC-USD", Exchange: "coinbase", Base: "BTC", Quote: "USD", DisplayName: "Bitcoin", Description: "The original proof-of-work store-of-value cryptocurrency.", Tags: []string{"btc", "bitcoin"}, Category: string(CategoryMajor)},
		{NormalizedID: "ETH-USD", Exchange: "coinbase", Base: "ETH", Quote: "USD", DisplayName: "Ethereum", Description: "Smart contract platform and the base layer for most DeFi activity.", Tags: []string{"eth", "ethereum", "smart-contracts"}, Category: string(CategoryMajor)},
		{NormalizedID: "SOL-USD", Exchange: "coinbase", Base: "SOL", Quote: "USD", DisplayName: "Solana", Description: "High-throughput layer-1 blockchain.", Tags: []string{"sol", "solana"}, Category: string(CategoryMajor)},
		{NormalizedID: "ADA-USD", Exchange: "coinbase", Base: "ADA", Quote: "USD", DisplayName: "Cardano", Description: "Proof-of-stake layer-1 blockchain.", Tags: []string{"ada", "cardano"}, Category: string(CategoryMajor)},
		{NormalizedID: "MATIC-USD", Exchange: "coinbase", Base: "MATIC", Quote: "USD", DisplayName: "Polygon", Description: "Ethereum scaling network.", Tags: []string{"matic", "polygon", "scaling"}, Category: string(CategoryLayer2)},
		{NormalizedID: "ARB-USD", Exchange: "coinbase", Base: "ARB", Quote: "USD", DisplayName: "Arbitrum", Description: "Optimistic rollup scaling Ethereum.", Tags: []string{"arb", "arbitrum", "rollup", "scaling"}, Category: string(CategoryLayer2)},
		{NormalizedID: "OP-USD", Exchange: "coinbase", Base: "OP", Quote: "USD", DisplayName: "Optimism", Description: "Optimistic rollup scaling Ethereum.", Tags: []string{"op", "optimism", "rollup", "scaling"}, Category: string(CategoryLayer2)},
		{NormalizedID: "UNI-USD", Exchange: "coinbase", Base: "UNI", Quote: "USD", DisplayName: "Uniswap", Description: "Governance token of the Uniswap automated market maker.", Tags: []string{"uni", "uniswap", "dex", "amm"}, Category: string(CategoryDeFi)},
		{NormalizedID: "AAVE-USD", Exchange: "coinbase", Base: "AAVE", Quote: "USD", DisplayName: "Aave", Description: "Decentralized lending and borrowing protocol.", Tags: []string{"aave", "lending"}, Category: string(CategoryDeFi)},
		{NormalizedID: "MKR-USD", Exchange: "coinbase", Base: "MKR", Quote: "USD", DisplayName: "Maker", Description: "Governance token behind the DAI stablecoin.", Tags: []string{"mkr", "maker", "dai"}, Category: string(CategoryDeFi)},
		{NormalizedID: "USDC-USD", Exchange: "coinbase", Base: "USDC", Quote: "USD", DisplayName: "USD Coin", Description: "Fiat-backed USD stablecoin.", Tags: []string{"usdc", "stablecoin"}, Category: string(CategoryStablecoin)},
		{NormalizedID: "DAI-USD", Exchange: "coinbase", Base: "DAI", Quote: "USD", DisplayName: "Dai", Description: "Crypto-collateralized USD stablecoin.", Tags: []string{"dai", "stablecoin"}, Category: string(CategoryStablecoin)},
		{NormalizedID: "DOGE-USD", Exchange: "coinbase", Base: "DOGE", Quote: "USD", DisplayName: "Dogecoin", Description: "Meme-originated proof-of-work cryptocurrency.", Tags: []string{"doge", "dogecoin", "meme"}, Category: string(CategoryMeme)},
		{NormalizedID: "SHIB-USD", Exchange: "coinbase", Base: "SHIB", Quote: "USD", DisplayName: "Shiba Inu", Description: "Ethereum-based meme token.", Tags: []string{"shib", "meme"}, Category: string(CategoryMeme)},
	}
}
