package trade

import (
	"context"
	"fmt"
	"log/slog"
)

// Reconcile links the account's active positions to their algo counterparts
// by symbol. It runs at startup and is idempotent: already-linked positions
// and symbols with no matching algo position are left untouched.
func (t *Trader) Reconcile(ctx context.Context) (linked int, err error) {
	active, err := t.store.Positions.ActiveUserPositions(ctx, t.accountID)
	if err != nil {
		return 0, fmt.Errorf("trade: reconcile: load user positions: %w", err)
	}

	for i := range active {
		user := &active[i]
		if user.AlgoPositionID != 0 {
			continue
		}

		algo, err := t.store.Positions.AlgoPositionBySymbol(ctx, user.Symbol)
		if err != nil {
			return linked, fmt.Errorf("trade: reconcile %s: %w", user.Symbol, err)
		}
		if algo == nil {
			t.log.Warn("user position has no algo counterpart",
				slog.String("symbol", user.Symbol),
				slog.String("account", t.accountID))
			continue
		}

		user.AlgoPositionID = algo.ID
		if err := t.store.Positions.UpsertUserPosition(ctx, user); err != nil {
			return linked, fmt.Errorf("trade: reconcile %s: %w", user.Symbol, err)
		}
		linked++
	}

	if linked > 0 {
		t.log.Info("reconciled positions", slog.Int("linked", linked), slog.String("account", t.accountID))
	}
	return linked, nil
}
