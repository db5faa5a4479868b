package model

import "time"

// PositionStatus is the lifecycle state of a position.
type PositionStatus string

const (
	StatusActive  PositionStatus = "ACTIVE"
	StatusExited  PositionStatus = "EXITED"
	StatusStopped PositionStatus = "STOPPED"
)

// ExitReason describes why the monitor closed a position.
type ExitReason string

const (
	ExitRSIReversal  ExitReason = "RSI_REVERSAL"
	ExitStopLoss     ExitReason = "STOP_LOSS"
	ExitTrailingStop ExitReason = "TRAILING_STOP"
	ExitManual       ExitReason = "MANUAL"
)

// Position is the algorithm-owned record for one symbol. It is the source of
// truth for signal dedup: at most one ACTIVE algo position per symbol.
//
// TrailingLevel is a high-water mark over the trailing ladder: it only ever
// increases across monitoring evaluations, even when price retraces.
type Position struct {
	ID            int64          `json:"id"`
	Symbol        string         `json:"symbol"`
	EntryPrice    float64        `json:"entry_price"`
	Quantity      int64          `json:"quantity"`
	CurrentPrice  float64        `json:"current_price"`
	PnLAmount     float64        `json:"pnl_amount"`
	PnLPct        float64        `json:"pnl_pct"`
	TrailingLevel int            `json:"trailing_level"` // -1 = no level reached yet
	Status        PositionStatus `json:"status"`
	EntryAt       time.Time      `json:"entry_at"`
	ExitPrice     float64        `json:"exit_price,omitempty"`
	ExitAt        time.Time      `json:"exit_at,omitempty"`
	ExitReason    ExitReason     `json:"exit_reason,omitempty"`
}

// UpdatePnL recomputes P&L fields from a fresh price.
func (p *Position) UpdatePnL(price float64) {
	p.CurrentPrice = price
	p.PnLAmount = (price - p.EntryPrice) * float64(p.Quantity)
	if p.EntryPrice > 0 {
		p.PnLPct = (price - p.EntryPrice) / p.EntryPrice * 100
	}
}

// Age returns how long the position has been open at time now.
func (p *Position) Age(now time.Time) time.Duration {
	return now.Sub(p.EntryAt)
}

// UserPosition is one trading account's mirror of an algorithm position.
// It carries the broker order that opened it and a foreign key to the algo
// position it was reconciled against (0 until reconciliation runs).
type UserPosition struct {
	Position
	AccountID      string `json:"account_id"`
	AlgoPositionID int64  `json:"algo_position_id"`
	EntryOrderID   string `json:"entry_order_id"`
	ExitOrderID    string `json:"exit_order_id,omitempty"`
}
