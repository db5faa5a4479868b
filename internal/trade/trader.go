// Package trade turns entry signals into broker orders for one trading
// account: eligibility gating, margin-based sizing, order placement, the
// exit leg with realized P&L booking, and reconciliation of account
// positions against the algorithm's own records.
package trade

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"algoengine/internal/broker"
	"algoengine/internal/markethours"
	"algoengine/internal/model"
)

// BrokerAPI is the slice of the broker client the trader needs.
type BrokerAPI interface {
	MarginInfo(ctx context.Context, req broker.MarginRequest) (broker.MarginInfo, error)
	PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error)
	LTP(ctx context.Context, symbol, exchange string) (broker.LTPData, error)
}

// Notifier delivers trade confirmations. Only confirmed entries and exits
// are announced, never evaluations or rejections.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Store bundles the repositories the trader persists through.
type Store struct {
	Positions model.PositionRepository
	Orders    model.OrderRepository
	Prefs     model.PreferenceRepository
	PnL       model.PnLRepository
}

// Trader executes the order lifecycle for one account.
type Trader struct {
	accountID string
	exchange  string
	api       BrokerAPI
	store     Store
	notify    Notifier
	log       *slog.Logger

	// OnOrder observes every accepted order (optional).
	OnOrder func(o *model.Order)

	now   func() time.Time
	newID func() string
}

// NewTrader wires a trader for one account. notify may be nil.
func NewTrader(accountID, exchange string, api BrokerAPI, store Store, notify Notifier, log *slog.Logger) *Trader {
	if log == nil {
		log = slog.Default()
	}
	return &Trader{
		accountID: accountID,
		exchange:  exchange,
		api:       api,
		store:     store,
		notify:    notify,
		log:       log,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// EnterPosition opens a position from an ENTRY signal: eligibility checks,
// margin-based sizing, a market BUY, then the algo and user position records.
// A signal for a symbol that already has an ACTIVE algo position returns
// ErrDuplicatePosition without touching the broker.
func (t *Trader) EnterPosition(ctx context.Context, sig model.EntrySignal) (*model.UserPosition, error) {
	if sig.Verdict != model.VerdictEntry {
		return nil, fmt.Errorf("trade: refusing to enter %s on verdict %s", sig.Symbol, sig.Verdict)
	}

	prefs, err := t.checkEligibility(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := t.store.Positions.AlgoPositionBySymbol(ctx, sig.Symbol)
	if err != nil {
		return nil, fmt.Errorf("trade: dedup lookup for %s: %w", sig.Symbol, err)
	}
	if existing != nil {
		return nil, ErrDuplicatePosition
	}

	price := sig.Indicators.Close
	qty, perShare, leverage, err := t.sizePosition(ctx, sig.Symbol, price, prefs.AllocationAmount)
	if err != nil {
		return nil, err
	}

	order, err := t.placeOrder(ctx, sig.Symbol, model.TxnBuy, qty)
	if err != nil {
		return nil, err
	}

	fill := t.fillPrice(ctx, sig.Symbol, price)
	now := t.now()

	algo := &model.Position{
		Symbol:        sig.Symbol,
		EntryPrice:    fill,
		Quantity:      qty,
		CurrentPrice:  fill,
		TrailingLevel: -1,
		Status:        model.StatusActive,
		EntryAt:       now,
	}
	if err := t.store.Positions.UpsertAlgoPosition(ctx, algo); err != nil {
		return nil, fmt.Errorf("trade: persist algo position %s: %w", sig.Symbol, err)
	}

	user := &model.UserPosition{
		Position:       *algo,
		AccountID:      t.accountID,
		AlgoPositionID: algo.ID,
		EntryOrderID:   order.OrderID,
	}
	if err := t.store.Positions.UpsertUserPosition(ctx, user); err != nil {
		return nil, fmt.Errorf("trade: persist user position %s: %w", sig.Symbol, err)
	}

	t.log.Info("position opened",
		slog.String("symbol", sig.Symbol),
		slog.Int64("qty", qty),
		slog.Float64("fill", fill),
		slog.Float64("margin_per_share", perShare),
		slog.Float64("leverage", leverage),
		slog.String("order_id", order.OrderID))
	t.send(ctx, fmt.Sprintf("BUY %s x%d @ %.2f (stop %.2f, targets %.2f / %.2f)",
		sig.Symbol, qty, fill, sig.StopLoss, sig.Target1, sig.Target2))
	return user, nil
}

// ExitPosition closes the account's leg of an algo position with a market
// SELL, books realized P&L against the trading day, and finalizes both
// position records. Satisfies the monitor's Exiter.
func (t *Trader) ExitPosition(ctx context.Context, pos *model.Position, reason model.ExitReason) error {
	order, err := t.placeOrder(ctx, pos.Symbol, model.TxnSell, pos.Quantity)
	if err != nil {
		return err
	}

	fill := t.fillPrice(ctx, pos.Symbol, pos.CurrentPrice)
	now := t.now()
	realized := (fill - pos.EntryPrice) * float64(pos.Quantity)

	pos.Status = model.StatusExited
	if reason == model.ExitStopLoss {
		pos.Status = model.StatusStopped
	}
	pos.ExitPrice = fill
	pos.ExitAt = now
	pos.ExitReason = reason
	pos.UpdatePnL(fill)
	if err := t.store.Positions.UpsertAlgoPosition(ctx, pos); err != nil {
		return fmt.Errorf("trade: persist exited position %s: %w", pos.Symbol, err)
	}

	if user := t.userLegOf(ctx, pos); user != nil {
		user.Position = *pos
		user.ExitOrderID = order.OrderID
		if err := t.store.Positions.UpsertUserPosition(ctx, user); err != nil {
			return fmt.Errorf("trade: persist exited user position %s: %w", pos.Symbol, err)
		}
	}

	day := markethours.TradingDay(now)
	if err := t.store.PnL.RecordRealizedPnL(ctx, t.accountID, day, realized); err != nil {
		return fmt.Errorf("trade: record realized pnl for %s: %w", pos.Symbol, err)
	}

	t.log.Info("position closed",
		slog.String("symbol", pos.Symbol),
		slog.String("reason", string(reason)),
		slog.Float64("fill", fill),
		slog.Float64("realized", realized),
		slog.String("order_id", order.OrderID))
	t.send(ctx, fmt.Sprintf("SELL %s x%d @ %.2f (%s, pnl %.2f)",
		pos.Symbol, pos.Quantity, fill, reason, realized))
	return nil
}

// placeOrder submits a market order and records it, tagging it with an
// engine-generated client order ID so retried submissions stay idempotent.
func (t *Trader) placeOrder(ctx context.Context, symbol, txn string, qty int64) (broker.OrderResult, error) {
	clientID := t.newID()
	res, err := t.api.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:          symbol,
		Exchange:        t.exchange,
		TransactionType: txn,
		OrderType:       model.OrderTypeMarket,
		ProductType:     model.ProductMTF,
		Quantity:        qty,
		ClientOrderID:   clientID,
	})
	if err != nil {
		return broker.OrderResult{}, fmt.Errorf("trade: %s %s x%d: %w", txn, symbol, qty, err)
	}

	now := t.now()
	rec := &model.Order{
		OrderID:         res.OrderID,
		ClientOrderID:   clientID,
		AccountID:       t.accountID,
		Symbol:          symbol,
		Exchange:        t.exchange,
		TransactionType: txn,
		OrderType:       model.OrderTypeMarket,
		ProductType:     model.ProductMTF,
		Qty:             qty,
		Status:          res.Status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := t.store.Orders.SaveOrder(ctx, rec); err != nil {
		// The broker accepted the order; a bookkeeping failure must not
		// roll the trade back. Log and continue.
		t.log.Error("order placed but not recorded",
			slog.String("order_id", res.OrderID),
			slog.String("error", err.Error()))
	}
	if t.OnOrder != nil {
		t.OnOrder(rec)
	}
	return res, nil
}

// fillPrice quotes the LTP right after an order fill. Quote failures fall
// back to the given reference price.
func (t *Trader) fillPrice(ctx context.Context, symbol string, ref float64) float64 {
	quote, err := t.api.LTP(ctx, symbol, t.exchange)
	if err != nil || quote.LTP <= 0 {
		t.log.Warn("ltp unavailable after fill, using reference price",
			slog.String("symbol", symbol),
			slog.Float64("reference", ref))
		return ref
	}
	return quote.LTP
}

// userLegOf finds the account's active mirror of an algo position, matching
// by reconciled ID first and falling back to the symbol.
func (t *Trader) userLegOf(ctx context.Context, pos *model.Position) *model.UserPosition {
	active, err := t.store.Positions.ActiveUserPositions(ctx, t.accountID)
	if err != nil {
		t.log.Error("user position lookup failed", slog.String("error", err.Error()))
		return nil
	}
	for i := range active {
		if active[i].AlgoPositionID == pos.ID || active[i].Symbol == pos.Symbol {
			return &active[i]
		}
	}
	return nil
}

func (t *Trader) send(ctx context.Context, text string) {
	if t.notify == nil {
		return
	}
	if err := t.notify.Send(ctx, text); err != nil {
		t.log.Warn("notification failed", slog.String("error", err.Error()))
	}
}
