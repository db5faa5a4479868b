package trade

import (
	"context"
	"fmt"
	"log/slog"

	"algoengine/internal/broker"
	"algoengine/internal/model"
)

// Fallback sizing when the broker reports no usable margin (market closed,
// symbol not margin-eligible yet): assume 20% margin, i.e. 5x leverage.
const (
	fallbackMarginPct = 20.0
	marginProbeQty    = 1
)

// sizePosition converts the account's allocation into a share count using
// the broker's per-share MTF margin for the symbol.
func (t *Trader) sizePosition(ctx context.Context, symbol string, price, allocation float64) (qty int64, perShare, leverage float64, err error) {
	if price <= 0 {
		return 0, 0, 0, fmt.Errorf("trade: no reference price for %s", symbol)
	}
	if allocation <= 0 {
		return 0, 0, 0, fmt.Errorf("trade: no allocation configured for account %s", t.accountID)
	}

	info, err := t.api.MarginInfo(ctx, broker.MarginRequest{
		Symbol:      symbol,
		Exchange:    t.exchange,
		Price:       price,
		Quantity:    marginProbeQty,
		ProductType: model.ProductMTF,
	})
	if err != nil {
		t.log.Warn("margin probe failed, using fallback margin",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()))
		info = broker.MarginInfo{}
	}

	perShare = info.PerShare(marginProbeQty)
	if perShare <= 0 {
		perShare = price * fallbackMarginPct / 100
	}
	leverage = price / perShare

	qty = int64(allocation / perShare)
	if qty <= 0 {
		return 0, 0, 0, fmt.Errorf("trade: allocation %.2f buys zero shares of %s (margin %.2f/share)",
			allocation, symbol, perShare)
	}
	return qty, perShare, leverage, nil
}
