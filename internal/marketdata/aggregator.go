// Package marketdata merges multi-year daily history with today's intraday
// ticks into one candle series per symbol. Today's bar is synthesized from
// the ticks between market open and close; when no live data is available
// the bar is a zero-value placeholder (Close == 0) that downstream consumers
// must treat as "no data".
package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"algoengine/internal/markethours"
	"algoengine/internal/model"
)

// ChartAPI is the slice of the broker client the aggregator needs.
type ChartAPI interface {
	DailyHistory(ctx context.Context, symbol, exchange string, from, to time.Time) ([]model.Candle, error)
	IntradayChart(ctx context.Context, symbol, exchange string, from, to time.Time) ([]model.Candle, error)
}

// Aggregator fetches and merges candle data for one exchange.
type Aggregator struct {
	charts   ChartAPI
	exchange string
	years    int
	log      *slog.Logger

	now func() time.Time // injectable for tests
}

// NewAggregator creates an aggregator fetching `years` of daily history.
func NewAggregator(charts ChartAPI, exchange string, years int, log *slog.Logger) *Aggregator {
	if years <= 0 {
		years = 2
	}
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{
		charts:   charts,
		exchange: exchange,
		years:    years,
		log:      log,
		now:      time.Now,
	}
}

// Series returns the merged candle series for symbol. A historical fetch
// failure is fatal for the symbol; an intraday failure degrades to the
// zero-value today bar so the scan continues on history alone.
func (a *Aggregator) Series(ctx context.Context, symbol string) (model.Series, error) {
	now := a.now()

	hist, err := a.charts.DailyHistory(ctx, symbol, a.exchange, now.AddDate(-a.years, 0, 0), now)
	if err != nil {
		return model.Series{}, fmt.Errorf("marketdata: daily history for %s: %w", symbol, err)
	}

	series := model.Series{Symbol: symbol, Historical: hist}
	series.Today = a.todayCandle(ctx, symbol, now)
	return series, nil
}

// todayCandle synthesizes the current trading day's bar from intraday ticks
// within the session bounds.
func (a *Aggregator) todayCandle(ctx context.Context, symbol string, now time.Time) model.Candle {
	open, close := markethours.SessionBounds(now)

	ticks, err := a.charts.IntradayChart(ctx, symbol, a.exchange, open, close)
	if err != nil {
		a.log.Warn("intraday fetch failed, using placeholder today bar",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()))
		return model.Candle{Date: markethours.TradingDay(now)}
	}
	return SynthesizeDaily(ticks, markethours.TradingDay(now))
}

// SynthesizeDaily folds intraday ticks into one daily bar: open from the
// first tick, close from the last, high/low extrema, summed volume. An empty
// tick set yields the zero-value placeholder.
func SynthesizeDaily(ticks []model.Candle, day time.Time) model.Candle {
	if len(ticks) == 0 {
		return model.Candle{Date: day}
	}

	bar := model.Candle{
		Date: day,
		Open: ticks[0].Open,
		High: ticks[0].High,
		Low:  ticks[0].Low,
	}
	for _, tk := range ticks {
		if tk.High > bar.High {
			bar.High = tk.High
		}
		if tk.Low < bar.Low {
			bar.Low = tk.Low
		}
		bar.Close = tk.Close
		bar.Volume += tk.Volume
	}
	return bar
}
