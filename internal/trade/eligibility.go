package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"algoengine/internal/markethours"
	"algoengine/internal/model"
)

// Eligibility rejections. Callers treat these as "skip the signal", not as
// infrastructure failures.
var (
	ErrTradingDisabled   = errors.New("trade: trading disabled for account")
	ErrTradingFrozen     = errors.New("trade: trading frozen until next trading day")
	ErrMaxPositions      = errors.New("trade: max open positions reached")
	ErrDailyLossLimit    = errors.New("trade: daily loss limit reached")
	ErrDuplicatePosition = errors.New("trade: active position already exists for symbol")
)

// checkEligibility enforces the account's pre-trade gates: trading enabled,
// not frozen, open-position headroom, and the daily realized-loss limit.
// Tripping the loss limit freezes the account until the next trading day.
func (t *Trader) checkEligibility(ctx context.Context) (model.TradingPreferences, error) {
	prefs, err := t.store.Prefs.TradingPreferences(ctx, t.accountID)
	if err != nil {
		return prefs, fmt.Errorf("trade: load preferences: %w", err)
	}

	now := t.now()
	if !prefs.TradingEnabled {
		return prefs, ErrTradingDisabled
	}
	if prefs.Frozen(now) {
		return prefs, ErrTradingFrozen
	}

	open, err := t.store.Positions.ActiveUserPositions(ctx, t.accountID)
	if err != nil {
		return prefs, fmt.Errorf("trade: count open positions: %w", err)
	}
	if prefs.MaxOpenPositions > 0 && len(open) >= prefs.MaxOpenPositions {
		return prefs, ErrMaxPositions
	}

	if prefs.DailyLossLimitPct > 0 {
		day := markethours.TradingDay(now)
		pnl, err := t.store.PnL.DailyPnL(ctx, t.accountID, day)
		if err != nil {
			return prefs, fmt.Errorf("trade: load daily pnl: %w", err)
		}
		limit := prefs.AllocationAmount * prefs.DailyLossLimitPct / 100
		if pnl < 0 && -pnl >= limit {
			until := markethours.NextTradingDayStart(now)
			if err := t.store.Prefs.FreezeTrading(ctx, t.accountID, until); err != nil {
				t.log.Error("failed to freeze trading",
					slog.String("account", t.accountID),
					slog.String("error", err.Error()))
			} else {
				t.log.Warn("daily loss limit tripped, trading frozen",
					slog.String("account", t.accountID),
					slog.Float64("realized", pnl),
					slog.Time("until", until))
			}
			return prefs, ErrDailyLossLimit
		}
	}

	return prefs, nil
}
