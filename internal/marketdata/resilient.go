package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"algoengine/internal/markethours"
	"algoengine/internal/model"
	"algoengine/internal/resilience"
)

// Cache lifetimes. Daily history barely moves intraday; intraday ticks go
// stale within the monitor interval.
const (
	dailyTTL    = time.Hour
	intradayTTL = time.Minute
)

// ResilientCharts wraps a ChartAPI with the resilience stack: cached
// responses, circuit breaking, and bounded retry. Candle payloads are cached
// as JSON so the memory and Redis backends interchange.
type ResilientCharts struct {
	inner ChartAPI
	res   *resilience.Client

	now func() time.Time
}

// NewResilientCharts wraps inner with the given resilience client.
func NewResilientCharts(inner ChartAPI, res *resilience.Client) *ResilientCharts {
	return &ResilientCharts{inner: inner, res: res, now: time.Now}
}

// DailyHistory fetches daily bars through the resilience stack. Cached per
// symbol per trading day.
func (r *ResilientCharts) DailyHistory(ctx context.Context, symbol, exchange string, from, to time.Time) ([]model.Candle, error) {
	day := markethours.TradingDay(r.now()).Format("2006-01-02")
	key := fmt.Sprintf("chart:daily:%s:%s:%s", exchange, symbol, day)
	return r.call(ctx, key, dailyTTL, func(ctx context.Context) ([]model.Candle, error) {
		return r.inner.DailyHistory(ctx, symbol, exchange, from, to)
	})
}

// IntradayChart fetches minute ticks through the resilience stack with a
// short TTL.
func (r *ResilientCharts) IntradayChart(ctx context.Context, symbol, exchange string, from, to time.Time) ([]model.Candle, error) {
	key := fmt.Sprintf("chart:intraday:%s:%s", exchange, symbol)
	return r.call(ctx, key, intradayTTL, func(ctx context.Context) ([]model.Candle, error) {
		return r.inner.IntradayChart(ctx, symbol, exchange, from, to)
	})
}

func (r *ResilientCharts) call(ctx context.Context, key string, ttl time.Duration, fetch func(ctx context.Context) ([]model.Candle, error)) ([]model.Candle, error) {
	body, err := r.res.Call(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		candles, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(candles)
	})
	if err != nil {
		return nil, err
	}

	var candles []model.Candle
	if err := json.Unmarshal(body, &candles); err != nil {
		return nil, fmt.Errorf("marketdata: decode cached candles for %s: %w", key, err)
	}
	return candles, nil
}
