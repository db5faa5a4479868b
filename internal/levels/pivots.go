// Package levels finds support and resistance channels in a daily candle
// series: it detects pivot points, groups them into price bands bounded by a
// fraction of the lookback range, scores each band, and selects the
// strongest non-overlapping ones.
package levels

import "algoengine/internal/model"

// FindPivots returns every confirmed pivot in the series. A candle at index
// i is a pivot high when it has prd bars on both sides and its high is
// strictly greater than every other high in [i-prd, i+prd]; ties do not
// count. Pivot lows are symmetric. A candle may be both a pivot high and a
// pivot low.
func FindPivots(candles []model.Candle, prd int) []model.PivotPoint {
	n := len(candles)
	var pivots []model.PivotPoint

	for i := prd; i < n-prd; i++ {
		isHigh := true
		isLow := true
		for j := i - prd; j <= i+prd; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				isHigh = false
			}
			if candles[j].Low <= candles[i].Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			pivots = append(pivots, model.PivotPoint{
				Index: i,
				Price: candles[i].High,
				Kind:  model.PivotHigh,
				Date:  candles[i].Date,
			})
		}
		if isLow {
			pivots = append(pivots, model.PivotPoint{
				Index: i,
				Price: candles[i].Low,
				Kind:  model.PivotLow,
				Date:  candles[i].Date,
			})
		}
	}
	return pivots
}
