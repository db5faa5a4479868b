package marketdata

import (
	"context"
	"time"

	"algoengine/internal/model"
)

// LiveQuotes supplies streamed last-traded prices.
type LiveQuotes interface {
	Price(symbol string, maxAge time.Duration) (float64, bool)
}

// SeriesSource fetches the merged candle series for a symbol.
type SeriesSource interface {
	Series(ctx context.Context, symbol string) (model.Series, error)
}

// LiveSeries overlays streamed ticks onto an aggregator's series so the today
// bar tracks the tape between intraday chart refreshes. Stale or missing
// quotes leave the series untouched.
type LiveSeries struct {
	inner  SeriesSource
	quotes LiveQuotes
	maxAge time.Duration
}

// WithLiveTicks wraps inner so fresh quotes (younger than maxAge) update the
// today bar's close.
func WithLiveTicks(inner SeriesSource, quotes LiveQuotes, maxAge time.Duration) *LiveSeries {
	return &LiveSeries{inner: inner, quotes: quotes, maxAge: maxAge}
}

func (l *LiveSeries) Series(ctx context.Context, symbol string) (model.Series, error) {
	series, err := l.inner.Series(ctx, symbol)
	if err != nil {
		return series, err
	}

	ltp, ok := l.quotes.Price(symbol, l.maxAge)
	if !ok {
		return series, nil
	}

	if series.Today.Open == 0 {
		series.Today.Open = ltp
	}
	if ltp > series.Today.High {
		series.Today.High = ltp
	}
	if series.Today.Low == 0 || ltp < series.Today.Low {
		series.Today.Low = ltp
	}
	series.Today.Close = ltp
	return series, nil
}
