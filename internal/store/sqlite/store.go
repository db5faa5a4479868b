// Package sqlite persists the engine's state: account credentials and
// preferences, both position lifecycles, broker orders, and daily realized
// P&L. One Store satisfies every repository port.
package sqlite

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the SQLite store.
type Config struct {
	DBPath string // e.g. "data/engine.db"
}

// Store is a SQLite-backed implementation of the storage ports.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database in WAL mode and ensures the schema.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer pool: all engine writes funnel through one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS credentials (
			account_id  TEXT PRIMARY KEY,
			client_id   TEXT NOT NULL,
			api_key     TEXT NOT NULL,
			private_key BLOB,
			totp_secret TEXT,
			password    TEXT
		);

		CREATE TABLE IF NOT EXISTS preferences (
			account_id           TEXT PRIMARY KEY,
			trading_enabled      INTEGER NOT NULL DEFAULT 0,
			max_open_positions   INTEGER NOT NULL DEFAULT 0,
			allocation_amount    REAL    NOT NULL DEFAULT 0,
			daily_loss_limit_pct REAL    NOT NULL DEFAULT 0,
			frozen_until         INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS algo_positions (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol         TEXT    NOT NULL,
			entry_price    REAL    NOT NULL,
			quantity       INTEGER NOT NULL,
			current_price  REAL    NOT NULL DEFAULT 0,
			pnl_amount     REAL    NOT NULL DEFAULT 0,
			pnl_pct        REAL    NOT NULL DEFAULT 0,
			trailing_level INTEGER NOT NULL DEFAULT -1,
			status         TEXT    NOT NULL,
			entry_at       INTEGER NOT NULL,
			exit_price     REAL    NOT NULL DEFAULT 0,
			exit_at        INTEGER NOT NULL DEFAULT 0,
			exit_reason    TEXT    NOT NULL DEFAULT ''
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_algo_active
			ON algo_positions(symbol) WHERE status = 'ACTIVE';

		CREATE TABLE IF NOT EXISTS user_positions (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id       TEXT    NOT NULL,
			algo_position_id INTEGER NOT NULL DEFAULT 0,
			symbol           TEXT    NOT NULL,
			entry_order_id   TEXT    NOT NULL DEFAULT '',
			exit_order_id    TEXT    NOT NULL DEFAULT '',
			entry_price      REAL    NOT NULL,
			quantity         INTEGER NOT NULL,
			current_price    REAL    NOT NULL DEFAULT 0,
			pnl_amount       REAL    NOT NULL DEFAULT 0,
			pnl_pct          REAL    NOT NULL DEFAULT 0,
			trailing_level   INTEGER NOT NULL DEFAULT -1,
			status           TEXT    NOT NULL,
			entry_at         INTEGER NOT NULL,
			exit_price       REAL    NOT NULL DEFAULT 0,
			exit_at          INTEGER NOT NULL DEFAULT 0,
			exit_reason      TEXT    NOT NULL DEFAULT ''
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_user_active
			ON user_positions(account_id, symbol) WHERE status = 'ACTIVE';

		CREATE TABLE IF NOT EXISTS orders (
			order_id         TEXT PRIMARY KEY,
			client_order_id  TEXT NOT NULL,
			account_id       TEXT NOT NULL,
			symbol           TEXT NOT NULL,
			exchange         TEXT NOT NULL,
			transaction_type TEXT NOT NULL,
			order_type       TEXT NOT NULL,
			product_type     TEXT NOT NULL,
			qty              INTEGER NOT NULL,
			price            REAL    NOT NULL DEFAULT 0,
			status           TEXT    NOT NULL,
			created_at       INTEGER NOT NULL,
			updated_at       INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS daily_pnl (
			account_id TEXT    NOT NULL,
			day        INTEGER NOT NULL,
			realized   REAL    NOT NULL DEFAULT 0,
			PRIMARY KEY (account_id, day)
		);
	`)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
