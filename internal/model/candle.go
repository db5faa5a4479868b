// Package model defines the core domain types shared across the engine:
// candles, pivots, channels, indicators, signals, positions, and orders.
//
// Prices are in rupees (float64) as delivered by the broker chart API.
// A candle series is ordered chronologically, one candle per trading day.
package model

import "time"

// Candle is a daily OHLCV bar, or a synthetic "today" bar built from
// intraday ticks. Immutable once produced.
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// IsZero reports whether the candle is the zero-value placeholder used when
// no live data is available. Consumers must treat Close == 0 as "no data",
// never as a price of zero.
func (c Candle) IsZero() bool {
	return c.Close == 0
}

// Series is the merged output of the market data aggregator: multi-year
// daily history plus today's synthetic bar.
type Series struct {
	Symbol     string   `json:"symbol"`
	Historical []Candle `json:"historical"`
	Today      Candle   `json:"today"`
}

// Candles returns history plus today's bar (when live data exists) as one
// chronological slice.
func (s Series) Candles() []Candle {
	if s.Today.IsZero() {
		return s.Historical
	}
	out := make([]Candle, 0, len(s.Historical)+1)
	out = append(out, s.Historical...)
	out = append(out, s.Today)
	return out
}

// Closes extracts the close-price sequence from a candle slice.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
