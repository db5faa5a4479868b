package levels

import (
	"sort"

	"algoengine/internal/model"
)

// Config tunes the detector.
type Config struct {
	PivotWindow          int     // bars on each side of a pivot (prd)
	ChannelWidthPct      float64 // max channel span as % of the lookback high-low range
	MinStrength          int     // channels below MinStrength*20 are discarded
	MaxChannels          int     // stop selecting after this many channels
	Lookback             int     // daily bars considered
	MinResistanceDistPct float64 // resistanceClear threshold
}

// DefaultConfig returns the production parameters.
func DefaultConfig() Config {
	return Config{
		PivotWindow:          10,
		ChannelWidthPct:      5,
		MinStrength:          2,
		MaxChannels:          6,
		Lookback:             300,
		MinResistanceDistPct: 1.5,
	}
}

// Detector runs the full pivot → channel → classification pipeline.
type Detector struct {
	cfg Config
}

// NewDetector creates a detector with the given config.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Detect returns the support/resistance snapshot for the series relative to
// currentPrice. The series is truncated to the configured lookback window.
func (d *Detector) Detect(candles []model.Candle, currentPrice float64) model.SRSnapshot {
	if len(candles) > d.cfg.Lookback {
		candles = candles[len(candles)-d.cfg.Lookback:]
	}

	pivots := FindPivots(candles, d.cfg.PivotWindow)
	candidates := buildChannels(candles, pivots, d.cfg.ChannelWidthPct)
	selected := selectChannels(candidates, d.cfg.MinStrength, d.cfg.MaxChannels)

	return classify(selected, currentPrice)
}

// ResistanceClear applies the entry rule: pass when the nearest resistance
// is at least minDistPct away, or when there is no resistance channel but at
// least one support channel. With neither, the condition fails closed.
func (d *Detector) ResistanceClear(snap model.SRSnapshot) bool {
	if snap.Resistance != nil {
		return snap.Resistance.DistancePct >= d.cfg.MinResistanceDistPct
	}
	return snap.Support != nil
}

// buildChannels seeds one candidate channel per pivot and greedily absorbs
// every other pivot that keeps the span within maxWidth. Duplicates among
// candidates are expected; selection deduplicates by claimed pivots.
func buildChannels(candles []model.Candle, pivots []model.PivotPoint, widthPct float64) []model.Channel {
	if len(pivots) == 0 {
		return nil
	}

	maxWidth := widthPct / 100 * hlRange(candles)

	channels := make([]model.Channel, 0, len(pivots))
	for _, seed := range pivots {
		ch := model.Channel{
			Upper:  seed.Price,
			Lower:  seed.Price,
			Pivots: []model.PivotPoint{seed},
		}
		for _, q := range pivots {
			if q == seed {
				continue
			}
			lo, hi := ch.Lower, ch.Upper
			if q.Price < lo {
				lo = q.Price
			}
			if q.Price > hi {
				hi = q.Price
			}
			if hi-lo <= maxWidth {
				ch.Lower, ch.Upper = lo, hi
				ch.Pivots = append(ch.Pivots, q)
			}
		}
		ch.Strength = score(candles, ch)
		channels = append(channels, ch)
	}
	return channels
}

// score computes channel strength: 20 per member pivot plus one per candle
// whose high or low lies inside the band.
func score(candles []model.Candle, ch model.Channel) int {
	s := 20 * len(ch.Pivots)
	for _, c := range candles {
		if ch.Contains(c.High) || ch.Contains(c.Low) {
			s++
		}
	}
	return s
}

// selectChannels ranks candidates by strength and keeps a channel only if it
// clears the strength floor and none of its pivots were already claimed by a
// stronger selection.
func selectChannels(candidates []model.Channel, minStrength, maxChannels int) []model.Channel {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Strength != candidates[j].Strength {
			return candidates[i].Strength > candidates[j].Strength
		}
		// Deterministic tie-break: lower band first.
		return candidates[i].Lower < candidates[j].Lower
	})

	claimed := make(map[pivotKey]bool)
	var selected []model.Channel

	for _, ch := range candidates {
		if len(selected) >= maxChannels {
			break
		}
		if ch.Strength < minStrength*20 {
			break // sorted descending, nothing below can qualify
		}
		overlap := false
		for _, p := range ch.Pivots {
			if claimed[key(p)] {
				overlap = true
				break
			}
		}
		if overlap {
			continue
		}
		for _, p := range ch.Pivots {
			claimed[key(p)] = true
		}
		selected = append(selected, ch)
	}
	return selected
}

type pivotKey struct {
	index int
	kind  model.PivotKind
}

func key(p model.PivotPoint) pivotKey {
	return pivotKey{index: p.Index, kind: p.Kind}
}

// classify projects the selected channels against the current price:
// support is the channel with the highest upper bound still below the price,
// resistance the one with the lowest lower bound still above it.
func classify(channels []model.Channel, price float64) model.SRSnapshot {
	snap := model.SRSnapshot{Price: price, Channels: channels}
	if price <= 0 {
		return snap
	}

	for _, ch := range channels {
		ch := ch
		if ch.Upper < price {
			if snap.Support == nil || ch.Upper > snap.Support.Upper {
				snap.Support = &model.ChannelLevel{
					Channel:     ch,
					DistancePct: (price - ch.Upper) / price * 100,
				}
			}
		}
		if ch.Lower > price {
			if snap.Resistance == nil || ch.Lower < snap.Resistance.Lower {
				snap.Resistance = &model.ChannelLevel{
					Channel:     ch,
					DistancePct: (ch.Lower - price) / price * 100,
				}
			}
		}
	}
	return snap
}

func hlRange(candles []model.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	maxHigh := candles[0].High
	minLow := candles[0].Low
	for _, c := range candles[1:] {
		if c.High > maxHigh {
			maxHigh = c.High
		}
		if c.Low < minLow {
			minLow = c.Low
		}
	}
	return maxHigh - minLow
}
