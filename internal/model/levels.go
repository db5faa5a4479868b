package model

import "time"

// PivotKind classifies a pivot as a local high or local low.
type PivotKind string

const (
	PivotHigh PivotKind = "HIGH"
	PivotLow  PivotKind = "LOW"
)

// PivotPoint is a confirmed local extremum in a candle series. A candle at
// index i is a pivot high when no candle within the symmetric window has a
// strictly higher high; ties do not count as pivots.
type PivotPoint struct {
	Index int       `json:"index"`
	Price float64   `json:"price"`
	Kind  PivotKind `json:"kind"`
	Date  time.Time `json:"date"`
}

// Channel is a price band formed by grouping nearby pivots. The band span
// never exceeds the configured fraction of the lookback high-low range.
// Strength = 20 x (pivot count) + (candles whose high or low falls inside).
type Channel struct {
	Upper    float64      `json:"upper"`
	Lower    float64      `json:"lower"`
	Pivots   []PivotPoint `json:"pivots"`
	Strength int          `json:"strength"`
}

// Contains reports whether price falls inside [Lower, Upper].
func (c Channel) Contains(price float64) bool {
	return price >= c.Lower && price <= c.Upper
}

// ChannelLevel is a channel projected against a current price, carrying its
// percentage distance from that price.
type ChannelLevel struct {
	Channel
	DistancePct float64 `json:"distance_pct"`
}

// SRSnapshot is the support/resistance view for one symbol at one price:
// the nearest support and resistance channels (nil when absent) and all
// selected non-overlapping channels ranked by strength.
type SRSnapshot struct {
	Price      float64       `json:"price"`
	Support    *ChannelLevel `json:"support,omitempty"`
	Resistance *ChannelLevel `json:"resistance,omitempty"`
	Channels   []Channel     `json:"channels"`
}
