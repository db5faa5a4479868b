package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"algoengine/internal/model"
)

const algoCols = `id, symbol, entry_price, quantity, current_price, pnl_amount, pnl_pct,
	trailing_level, status, entry_at, exit_price, exit_at, exit_reason`

// ActiveAlgoPositions returns all ACTIVE algorithm positions.
func (s *Store) ActiveAlgoPositions(ctx context.Context) ([]model.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+algoCols+` FROM algo_positions WHERE status = ? ORDER BY id
	`, model.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("sqlite query active positions: %w", err)
	}
	defer rows.Close()

	var out []model.Position
	for rows.Next() {
		p, err := scanAlgo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AlgoPositionBySymbol returns the ACTIVE algo position for a symbol, or nil.
func (s *Store) AlgoPositionBySymbol(ctx context.Context, symbol string) (*model.Position, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+algoCols+` FROM algo_positions WHERE symbol = ? AND status = ?
	`, symbol, model.StatusActive)

	p, err := scanAlgo(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertAlgoPosition inserts or updates an algo position, assigning ID on
// insert.
func (s *Store) UpsertAlgoPosition(ctx context.Context, p *model.Position) error {
	if p.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO algo_positions
				(symbol, entry_price, quantity, current_price, pnl_amount, pnl_pct,
				 trailing_level, status, entry_at, exit_price, exit_at, exit_reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.Symbol, p.EntryPrice, p.Quantity, p.CurrentPrice, p.PnLAmount, p.PnLPct,
			p.TrailingLevel, p.Status, p.EntryAt.Unix(), p.ExitPrice, unixOrZero(p.ExitAt), p.ExitReason)
		if err != nil {
			return fmt.Errorf("sqlite insert algo position: %w", err)
		}
		p.ID, err = res.LastInsertId()
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE algo_positions SET
			symbol = ?, entry_price = ?, quantity = ?, current_price = ?,
			pnl_amount = ?, pnl_pct = ?, trailing_level = ?, status = ?,
			entry_at = ?, exit_price = ?, exit_at = ?, exit_reason = ?
		WHERE id = ?
	`, p.Symbol, p.EntryPrice, p.Quantity, p.CurrentPrice, p.PnLAmount, p.PnLPct,
		p.TrailingLevel, p.Status, p.EntryAt.Unix(), p.ExitPrice, unixOrZero(p.ExitAt), p.ExitReason, p.ID)
	if err != nil {
		return fmt.Errorf("sqlite update algo position %d: %w", p.ID, err)
	}
	return nil
}

// ActiveUserPositions returns ACTIVE positions for one account.
func (s *Store) ActiveUserPositions(ctx context.Context, accountID string) ([]model.UserPosition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, algo_position_id, symbol, entry_order_id, exit_order_id,
			entry_price, quantity, current_price, pnl_amount, pnl_pct,
			trailing_level, status, entry_at, exit_price, exit_at, exit_reason
		FROM user_positions WHERE account_id = ? AND status = ? ORDER BY id
	`, accountID, model.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("sqlite query user positions: %w", err)
	}
	defer rows.Close()

	var out []model.UserPosition
	for rows.Next() {
		var u model.UserPosition
		var entryAt, exitAt int64
		if err := rows.Scan(&u.ID, &u.AccountID, &u.AlgoPositionID, &u.Symbol,
			&u.EntryOrderID, &u.ExitOrderID,
			&u.EntryPrice, &u.Quantity, &u.CurrentPrice, &u.PnLAmount, &u.PnLPct,
			&u.TrailingLevel, &u.Status, &entryAt, &u.ExitPrice, &exitAt, &u.ExitReason); err != nil {
			return nil, fmt.Errorf("sqlite scan user position: %w", err)
		}
		u.EntryAt = time.Unix(entryAt, 0)
		u.ExitAt = timeOrZero(exitAt)
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpsertUserPosition inserts or updates a user position.
func (s *Store) UpsertUserPosition(ctx context.Context, p *model.UserPosition) error {
	if p.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO user_positions
				(account_id, algo_position_id, symbol, entry_order_id, exit_order_id,
				 entry_price, quantity, current_price, pnl_amount, pnl_pct,
				 trailing_level, status, entry_at, exit_price, exit_at, exit_reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.AccountID, p.AlgoPositionID, p.Symbol, p.EntryOrderID, p.ExitOrderID,
			p.EntryPrice, p.Quantity, p.CurrentPrice, p.PnLAmount, p.PnLPct,
			p.TrailingLevel, p.Status, p.EntryAt.Unix(), p.ExitPrice, unixOrZero(p.ExitAt), p.ExitReason)
		if err != nil {
			return fmt.Errorf("sqlite insert user position: %w", err)
		}
		p.ID, err = res.LastInsertId()
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE user_positions SET
			account_id = ?, algo_position_id = ?, symbol = ?,
			entry_order_id = ?, exit_order_id = ?,
			entry_price = ?, quantity = ?, current_price = ?,
			pnl_amount = ?, pnl_pct = ?, trailing_level = ?, status = ?,
			entry_at = ?, exit_price = ?, exit_at = ?, exit_reason = ?
		WHERE id = ?
	`, p.AccountID, p.AlgoPositionID, p.Symbol, p.EntryOrderID, p.ExitOrderID,
		p.EntryPrice, p.Quantity, p.CurrentPrice, p.PnLAmount, p.PnLPct,
		p.TrailingLevel, p.Status, p.EntryAt.Unix(), p.ExitPrice, unixOrZero(p.ExitAt), p.ExitReason, p.ID)
	if err != nil {
		return fmt.Errorf("sqlite update user position %d: %w", p.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlgo(row rowScanner) (model.Position, error) {
	var p model.Position
	var entryAt, exitAt int64
	err := row.Scan(&p.ID, &p.Symbol, &p.EntryPrice, &p.Quantity, &p.CurrentPrice,
		&p.PnLAmount, &p.PnLPct, &p.TrailingLevel, &p.Status,
		&entryAt, &p.ExitPrice, &exitAt, &p.ExitReason)
	if err != nil {
		if err == sql.ErrNoRows {
			return p, err
		}
		return p, fmt.Errorf("sqlite scan algo position: %w", err)
	}
	p.EntryAt = time.Unix(entryAt, 0)
	p.ExitAt = timeOrZero(exitAt)
	return p, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(unix int64) time.Time {
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}
