package model

import (
	"context"
	"time"
)

// ── Storage Port Interfaces ──
// These interfaces decouple the engine from concrete storage. The SQLite
// store satisfies all of them; tests use in-memory fakes.

// Credentials holds one trading account's broker API credentials.
// The private key signs token requests; the TOTP secret backs the
// interactive session-login fallback.
type Credentials struct {
	AccountID  string
	ClientID   string
	APIKey     string
	PrivateKey []byte // Ed25519 private key (raw 64-byte form)
	TOTPSecret string
	Password   string
}

// TradingPreferences are the per-account eligibility limits enforced before
// any BUY.
type TradingPreferences struct {
	AccountID        string
	TradingEnabled   bool
	MaxOpenPositions int
	AllocationAmount float64 // rupees committed per entry
	DailyLossLimitPct float64
	FrozenUntil      time.Time // trading frozen until this instant (daily-loss trip)
}

// Frozen reports whether trading is currently frozen for the account.
func (tp TradingPreferences) Frozen(now time.Time) bool {
	return now.Before(tp.FrozenUntil)
}

// PositionRepository persists both position lifecycles.
type PositionRepository interface {
	// ActiveAlgoPositions returns all ACTIVE algorithm positions.
	ActiveAlgoPositions(ctx context.Context) ([]Position, error)

	// AlgoPositionBySymbol returns the ACTIVE algo position for a symbol,
	// or nil when none exists.
	AlgoPositionBySymbol(ctx context.Context, symbol string) (*Position, error)

	// UpsertAlgoPosition inserts or updates an algo position, assigning ID
	// on insert.
	UpsertAlgoPosition(ctx context.Context, p *Position) error

	// ActiveUserPositions returns ACTIVE positions for one account.
	ActiveUserPositions(ctx context.Context, accountID string) ([]UserPosition, error)

	// UpsertUserPosition inserts or updates a user position.
	UpsertUserPosition(ctx context.Context, p *UserPosition) error
}

// OrderRepository persists broker orders.
type OrderRepository interface {
	// SaveOrder inserts an order record. A duplicate broker order ID is
	// treated as already-satisfied, not an error.
	SaveOrder(ctx context.Context, o *Order) error

	// UpdateOrderStatus updates the status of an existing order.
	UpdateOrderStatus(ctx context.Context, orderID, status string) error
}

// CredentialRepository reads broker credentials.
type CredentialRepository interface {
	Credentials(ctx context.Context, accountID string) (Credentials, error)
}

// PreferenceRepository reads and updates trading preferences.
type PreferenceRepository interface {
	TradingPreferences(ctx context.Context, accountID string) (TradingPreferences, error)

	// FreezeTrading marks the account frozen until the given instant
	// (daily-loss limit tripped).
	FreezeTrading(ctx context.Context, accountID string, until time.Time) error
}

// PnLRepository tracks per-account daily realized P&L.
type PnLRepository interface {
	// RecordRealizedPnL adds a realized P&L amount to the account's summary
	// for the given trading day.
	RecordRealizedPnL(ctx context.Context, accountID string, day time.Time, amount float64) error

	// DailyPnL returns the account's realized P&L for the given trading day.
	DailyPnL(ctx context.Context, accountID string, day time.Time) (float64, error)
}
