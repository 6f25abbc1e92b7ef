package exchange

import "strings"

// knownQuoteAssets lists quote assets so that every quote ending in a
// shorter listed quote comes before it ("BUSD", "TUSD" and "FDUSD" before
// "USD"); SplitAssetQuote takes the first suffix that matches.
var knownQuoteAssets = []string{
	"USDT", "BUSD", "USDC", "TUSD", "FDUSD",
	"BTC", "ETH", "BNB", "USD", "EUR", "TRY", "BRL",
}

// SplitAssetQuote splits a Binance-style symbol (e.g. "BTCUSDT") into
// its base asset and quote asset by matching the longest known quote
// suffix. The teacher ships a full embedded exchange-info JSON table
// for this (spot + futures); this engine is spot-only (non-goal: no
// leverage/derivatives) so a small suffix heuristic covers every
// symbol the scheduler will ever track.
func SplitAssetQuote(symbol string) (asset, quote string) {
	for _, q := range knownQuoteAssets {
		if strings.HasSuffix(symbol, q) && len(symbol) > len(q) {
			return symbol[:len(symbol)-len(q)], q
		}
	}
	return symbol, ""
}
