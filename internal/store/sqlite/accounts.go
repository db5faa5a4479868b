package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"algoengine/internal/markethours"
	"algoengine/internal/model"
)

// Credentials reads one account's broker credentials.
func (s *Store) Credentials(ctx context.Context, accountID string) (model.Credentials, error) {
	var c model.Credentials
	err := s.db.QueryRowContext(ctx, `
		SELECT account_id, client_id, api_key, private_key, totp_secret, password
		FROM credentials WHERE account_id = ?
	`, accountID).Scan(&c.AccountID, &c.ClientID, &c.APIKey, &c.PrivateKey, &c.TOTPSecret, &c.Password)
	if err == sql.ErrNoRows {
		return c, fmt.Errorf("sqlite: no credentials for account %s", accountID)
	}
	if err != nil {
		return c, fmt.Errorf("sqlite read credentials: %w", err)
	}
	return c, nil
}

// SaveCredentials inserts or replaces an account's credentials. Used by
// provisioning, never on the trading path.
func (s *Store) SaveCredentials(ctx context.Context, c model.Credentials) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO credentials
			(account_id, client_id, api_key, private_key, totp_secret, password)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.AccountID, c.ClientID, c.APIKey, c.PrivateKey, c.TOTPSecret, c.Password)
	if err != nil {
		return fmt.Errorf("sqlite save credentials: %w", err)
	}
	return nil
}

// TradingPreferences reads one account's trading limits. A missing row
// yields disabled trading rather than an error.
func (s *Store) TradingPreferences(ctx context.Context, accountID string) (model.TradingPreferences, error) {
	var tp model.TradingPreferences
	var enabled int
	var frozen int64
	err := s.db.QueryRowContext(ctx, `
		SELECT account_id, trading_enabled, max_open_positions, allocation_amount,
			daily_loss_limit_pct, frozen_until
		FROM preferences WHERE account_id = ?
	`, accountID).Scan(&tp.AccountID, &enabled, &tp.MaxOpenPositions,
		&tp.AllocationAmount, &tp.DailyLossLimitPct, &frozen)
	if err == sql.ErrNoRows {
		return model.TradingPreferences{AccountID: accountID}, nil
	}
	if err != nil {
		return tp, fmt.Errorf("sqlite read preferences: %w", err)
	}
	tp.TradingEnabled = enabled != 0
	tp.FrozenUntil = timeOrZero(frozen)
	return tp, nil
}

// SavePreferences inserts or replaces an account's trading preferences.
func (s *Store) SavePreferences(ctx context.Context, tp model.TradingPreferences) error {
	enabled := 0
	if tp.TradingEnabled {
		enabled = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO preferences
			(account_id, trading_enabled, max_open_positions, allocation_amount,
			 daily_loss_limit_pct, frozen_until)
		VALUES (?, ?, ?, ?, ?, ?)
	`, tp.AccountID, enabled, tp.MaxOpenPositions, tp.AllocationAmount,
		tp.DailyLossLimitPct, unixOrZero(tp.FrozenUntil))
	if err != nil {
		return fmt.Errorf("sqlite save preferences: %w", err)
	}
	return nil
}

// FreezeTrading marks the account frozen until the given instant.
func (s *Store) FreezeTrading(ctx context.Context, accountID string, until time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE preferences SET frozen_until = ? WHERE account_id = ?
	`, until.Unix(), accountID)
	if err != nil {
		return fmt.Errorf("sqlite freeze trading: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sqlite: no preferences for account %s", accountID)
	}
	return nil
}

// RecordRealizedPnL adds a realized amount to the account's daily summary.
func (s *Store) RecordRealizedPnL(ctx context.Context, accountID string, day time.Time, amount float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_pnl (account_id, day, realized) VALUES (?, ?, ?)
		ON CONFLICT (account_id, day) DO UPDATE SET realized = realized + excluded.realized
	`, accountID, markethours.TradingDay(day).Unix(), amount)
	if err != nil {
		return fmt.Errorf("sqlite record pnl: %w", err)
	}
	return nil
}

// DailyPnL returns the account's realized P&L for the given trading day.
func (s *Store) DailyPnL(ctx context.Context, accountID string, day time.Time) (float64, error) {
	var realized float64
	err := s.db.QueryRowContext(ctx, `
		SELECT realized FROM daily_pnl WHERE account_id = ? AND day = ?
	`, accountID, markethours.TradingDay(day).Unix()).Scan(&realized)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sqlite read pnl: %w", err)
	}
	return realized, nil
}
