package sqlite

import (
	"context"
	"fmt"
	"log"

	"algoengine/internal/model"
)

// SaveOrder inserts an order record. A duplicate broker order ID means the
// order was already recorded (retried submission) and is not an error.
func (s *Store) SaveOrder(ctx context.Context, o *model.Order) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO orders
			(order_id, client_order_id, account_id, symbol, exchange,
			 transaction_type, order_type, product_type, qty, price, status,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.OrderID, o.ClientOrderID, o.AccountID, o.Symbol, o.Exchange,
		o.TransactionType, o.OrderType, o.ProductType, o.Qty, o.Price, o.Status,
		o.CreatedAt.Unix(), o.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("sqlite insert order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Printf("[sqlite] order %s already recorded", o.OrderID)
	}
	return nil
}

// UpdateOrderStatus updates the status of an existing order.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = strftime('%s', 'now') WHERE order_id = ?
	`, status, orderID)
	if err != nil {
		return fmt.Errorf("sqlite update order %s: %w", orderID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sqlite: order %s not found", orderID)
	}
	return nil
}
