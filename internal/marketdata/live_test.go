package marketdata

import (
	"context"
	"testing"
	"time"

	"algoengine/internal/model"
)

type fixedSeries struct {
	series model.Series
}

func (f fixedSeries) Series(ctx context.Context, symbol string) (model.Series, error) {
	return f.series, nil
}

type fixedQuotes struct {
	price float64
	ok    bool
}

func (f fixedQuotes) Price(symbol string, maxAge time.Duration) (float64, bool) {
	return f.price, f.ok
}

func TestLiveSeries_OverlaysFreshTick(t *testing.T) {
	inner := fixedSeries{series: model.Series{
		Symbol: "TCS",
		Today:  model.Candle{Open: 100, High: 104, Low: 99, Close: 103},
	}}
	ls := WithLiveTicks(inner, fixedQuotes{price: 106.5, ok: true}, time.Minute)

	got, err := ls.Series(context.Background(), "TCS")
	if err != nil {
		t.Fatal(err)
	}
	if got.Today.Close != 106.5 {
		t.Errorf("close = %v, want 106.5", got.Today.Close)
	}
	if got.Today.High != 106.5 {
		t.Errorf("high = %v, want raised to 106.5", got.Today.High)
	}
	if got.Today.Low != 99 {
		t.Errorf("low = %v, want unchanged 99", got.Today.Low)
	}
}

func TestLiveSeries_FillsPlaceholderBar(t *testing.T) {
	inner := fixedSeries{series: model.Series{Symbol: "TCS"}}
	ls := WithLiveTicks(inner, fixedQuotes{price: 250, ok: true}, time.Minute)

	got, _ := ls.Series(context.Background(), "TCS")
	if got.Today.Open != 250 || got.Today.High != 250 || got.Today.Low != 250 || got.Today.Close != 250 {
		t.Errorf("placeholder bar not filled: %+v", got.Today)
	}
}

func TestLiveSeries_StaleQuoteLeavesSeriesAlone(t *testing.T) {
	inner := fixedSeries{series: model.Series{
		Symbol: "TCS",
		Today:  model.Candle{Open: 100, High: 104, Low: 99, Close: 103},
	}}
	ls := WithLiveTicks(inner, fixedQuotes{ok: false}, time.Minute)

	got, _ := ls.Series(context.Background(), "TCS")
	if got.Today.Close != 103 {
		t.Errorf("close = %v, want untouched 103", got.Today.Close)
	}
}
