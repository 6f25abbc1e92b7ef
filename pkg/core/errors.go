package core

import "errors"

var (
	ErrBaseAssetEmpty  = errors.New("empty base asset")
	ErrQuoteAssetEmpty = errors.New("empty quote asset")
	ErrNegativeValue   = errors.New("negative value")

	// ErrSymbolUnknown is returned by a Feeder when the exchange reports a
	// symbol as unknown or delisted. It is the one permanent-upstream
	// condition the scheduler reacts to by deactivating the symbol outright
	// instead of retrying with backoff (spec §7).
	ErrSymbolUnknown = errors.New("symbol unknown or delisted")
)

func isNegative(v float64) bool {
	return v < 0
}
