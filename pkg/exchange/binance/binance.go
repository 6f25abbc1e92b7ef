package binance

import (
	"fmt"
	"strconv"

	"github.com/raykavin/backnrun/pkg/core"
	"github.com/raykavin/backnrun/pkg/exchange"

	"github.com/adshao/go-binance/v2/common"
)

var (
	ErrInvalidAsset    = fmt.Errorf("invalid asset")
	ErrInvalidQuantity = fmt.Errorf("invalid quantity")
)

// OrderError wraps an order execution failure with the symbol and
// quantity that caused it.
type OrderError struct {
	Err      error
	Symbol   string
	Quantity float64
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order error: %v, symbol: %s, quantity: %f", e.Err, e.Symbol, e.Quantity)
}

// SplitAssetQuote splits a trading symbol into its base asset and quote
// asset, matching the longest known quote suffix first.
func SplitAssetQuote(symbol string) (asset, quote string) {
	return exchange.SplitAssetQuote(symbol)
}

// formatQuantity rounds a raw quantity down to the symbol's lot step size.
func formatQuantity(assetsInfo map[string]core.AssetInfo, symbol string, value float64) string {
	if info, ok := assetsInfo[symbol]; ok {
		value = common.AmountToLotSize(info.StepSize, info.BaseAssetPrecision, value)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// validateOrder checks the requested quantity against the symbol's
// exchange-reported min/max quantity bounds.
func validateOrder(assetsInfo map[string]core.AssetInfo, symbol string, quantity float64) error {
	info, ok := assetsInfo[symbol]
	if !ok {
		return ErrInvalidAsset
	}

	if quantity > info.MaxQuantity || quantity < info.MinQuantity {
		return &OrderError{
			Err:      fmt.Errorf("%w: min: %f max: %f", ErrInvalidQuantity, info.MinQuantity, info.MaxQuantity),
			Symbol:   symbol,
			Quantity: quantity,
		}
	}

	return nil
}
