// Package feed maintains a live last-traded-price stream over the broker's
// websocket. The monitor prefers feed prices when available and falls back
// to REST quotes when the stream is down; the feed therefore reconnects
// forever and never fails the engine.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
)

const (
	heartbeatInterval = 10 * time.Second
	writeTimeout      = 5 * time.Second
	readTimeout       = 30 * time.Second
)

// Config configures the LTP feed.
type Config struct {
	URL        string
	APIKey     string
	ClientCode string
}

// TokenProvider supplies the current access token for the stream handshake.
type TokenProvider interface {
	ValidToken(ctx context.Context) (string, error)
}

// tick is the wire shape of one price update.
type tick struct {
	Symbol string  `json:"symbol"`
	LTP    float64 `json:"ltp"`
}

// Feed streams last-traded prices for a fixed symbol set.
type Feed struct {
	cfg    Config
	tokens TokenProvider
	log    *slog.Logger

	mu        sync.RWMutex
	symbols   []string
	prices    map[string]float64
	updatedAt map[string]time.Time
	connected bool

	// OnReconnect is called after every successful (re)connection.
	OnReconnect func()
}

// New creates a feed for the given symbols.
func New(cfg Config, tokens TokenProvider, symbols []string, log *slog.Logger) *Feed {
	if log == nil {
		log = slog.Default()
	}
	return &Feed{
		cfg:       cfg,
		tokens:    tokens,
		log:       log,
		symbols:   append([]string(nil), symbols...),
		prices:    make(map[string]float64, len(symbols)),
		updatedAt: make(map[string]time.Time, len(symbols)),
	}
}

// Price returns the last streamed price for symbol and whether it is fresh
// (received within maxAge).
func (f *Feed) Price(symbol string, maxAge time.Duration) (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.prices[symbol]
	if !ok {
		return 0, false
	}
	if maxAge > 0 && time.Since(f.updatedAt[symbol]) > maxAge {
		return 0, false
	}
	return p, true
}

// Connected reports whether the stream is currently up.
func (f *Feed) Connected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.connected
}

// Run connects and streams until ctx is cancelled, reconnecting with
// exponential backoff on every failure.
func (f *Feed) Run(ctx context.Context) {
	b := &backoff.Backoff{Min: time.Second, Max: time.Minute, Factor: 2, Jitter: true}

	for {
		if err := ctx.Err(); err != nil {
			return
		}

		if err := f.session(ctx); err != nil && ctx.Err() == nil {
			delay := b.Duration()
			f.log.Warn("feed disconnected, reconnecting",
				slog.String("error", err.Error()),
				slog.Duration("backoff", delay))
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		b.Reset()
	}
}

// session runs one connection lifetime: dial, subscribe, read until error.
func (f *Feed) session(ctx context.Context) error {
	token, err := f.tokens.ValidToken(ctx)
	if err != nil {
		return fmt.Errorf("feed: token: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	header.Set("x-api-key", f.cfg.APIKey)
	header.Set("x-client-code", f.cfg.ClientCode)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, f.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("feed: dial: %w (status %s)", err, resp.Status)
		}
		return fmt.Errorf("feed: dial: %w", err)
	}
	defer conn.Close()

	f.setConnected(true)
	defer f.setConnected(false)

	if err := f.subscribe(conn); err != nil {
		return err
	}
	f.log.Info("feed connected", slog.Int("symbols", len(f.symbols)))
	if f.OnReconnect != nil {
		f.OnReconnect()
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go f.heartbeat(ctx, conn, done)

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	for {
		var t tick
		if err := conn.ReadJSON(&t); err != nil {
			return fmt.Errorf("feed: read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		if t.Symbol == "" || t.LTP <= 0 {
			continue
		}

		f.mu.Lock()
		f.prices[t.Symbol] = t.LTP
		f.updatedAt[t.Symbol] = time.Now()
		f.mu.Unlock()
	}
}

func (f *Feed) subscribe(conn *websocket.Conn) error {
	req := struct {
		Action  string   `json:"action"`
		Mode    string   `json:"mode"`
		Symbols []string `json:"symbols"`
	}{Action: "subscribe", Mode: "LTP", Symbols: f.symbols}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("feed: marshal subscribe: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	return nil
}

func (f *Feed) heartbeat(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			return
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

func (f *Feed) setConnected(v bool) {
	f.mu.Lock()
	f.connected = v
	f.mu.Unlock()
}
