package model

import "time"

// Order represents a broker order placed by the engine.
type Order struct {
	OrderID         string    `json:"order_id"`        // broker-assigned
	ClientOrderID   string    `json:"client_order_id"` // engine-assigned UUID
	AccountID       string    `json:"account_id"`
	Symbol          string    `json:"symbol"`
	Exchange        string    `json:"exchange"`
	TransactionType string    `json:"transaction_type"` // BUY, SELL
	OrderType       string    `json:"order_type"`       // MARKET
	ProductType     string    `json:"product_type"`     // MTF
	Qty             int64     `json:"qty"`
	Price           float64   `json:"price"` // 0 for market orders
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

const (
	TxnBuy  = "BUY"
	TxnSell = "SELL"

	OrderTypeMarket = "MARKET"
	ProductMTF      = "MTF"
)
