package symbolsearch

import "testing"

func testSymbols() []Symbol {
	return []Symbol{
		{NormalizedID: "btc-usd", Exchange: "coinbase", Base: "BTC", Quote: "USD", DisplayName: "Bitcoin / US Dollar", Tags: []string{"layer1", "store-of-value"}},
		{NormalizedID: "eth-usd", Exchange: "coinbase", Base: "ETH", Quote: "USD", DisplayName: "Ethereum / US Dollar", Tags: []string{"layer1", "smart-contracts"}},
		{NormalizedID: "doge-usd", Exchange: "coinbase", Base: "DOGE", Quote: "USD", DisplayName: "Dogecoin", Description: "a meme currency", Tags: []string{"meme"}},
	}
}

func TestSearchExactIDRanksFirst(t *testing.T) {
	idx := NewIndex(testSymbols())
	results := idx.Search("btc-usd")
	if len(results) == 0 || results[0].Symbol.NormalizedID != "btc-usd" {
		t.Fatalf("expected btc-usd first, got %+v", results)
	}
	if results[0].Score != scoreExactID {
		t.Fatalf("score = %d, want %d", results[0].Score, scoreExactID)
	}
}

func TestSearchByBaseCurrency(t *testing.T) {
	idx := NewIndex(testSymbols())
	results := idx.Search("ETH")
	if len(results) == 0 || results[0].Symbol.Base != "ETH" {
		t.Fatalf("expected ETH symbol first, got %+v", results)
	}
}

func TestSearchByTag(t *testing.T) {
	idx := NewIndex(testSymbols())
	results := idx.Search("layer1")
	if len(results) != 2 {
		t.Fatalf("expected 2 layer1 matches, got %d", len(results))
	}
}

func TestSearchNoMatch(t *testing.T) {
	idx := NewIndex(testSymbols())
	results := idx.Search("nonexistent-asset")
	if len(results) != 0 {
		t.Fatalf("expected no matches, got %+v", results)
	}
}

func TestSearchCapsAtTwenty(t *testing.T) {
	var symbols []Symbol
	for i := 0; i < 30; i++ {
		symbols = append(symbols, Symbol{NormalizedID: "coin-usd", Base: "X", Tags: []string{"meme"}})
	}
	idx := NewIndex(symbols)
	results := idx.Search("meme")
	if len(results) != maxResults {
		t.Fatalf("got %d results, want %d", len(results), maxResults)
	}
}
