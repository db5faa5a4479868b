// Package indicator computes technical indicators over a close-price
// sequence: EMA, RSI (Wilder's smoothing), SMA of RSI, MACD(12,26,9) and its
// histogram.
//
// All windows are clamped to the available data length, and indicators with
// insufficient history return neutral defaults (RSI 50, EMA last close,
// MACD/histogram 0) instead of failing. This fallback-over-failure policy is
// deliberate: a universe scan must survive one symbol with thin history.
package indicator

import "algoengine/internal/model"

// Standard periods.
const (
	EMALongPeriod    = 50
	EMAShortPeriod   = 20
	RSIPeriod        = 14
	RSISMAPeriod     = 14
	MACDFastPeriod   = 12
	MACDSlowPeriod   = 26
	MACDSignalPeriod = 9
)

// Compute derives the full indicator snapshot for the latest bar of closes.
func Compute(closes []float64) model.TechnicalIndicators {
	n := len(closes)
	if n == 0 {
		return model.TechnicalIndicators{RSI14: 50, RSI14SMA: 50}
	}

	last := closes[n-1]
	macd, signal, hist := MACDSeries(closes)
	rsi := RSISeries(closes, RSIPeriod)

	return model.TechnicalIndicators{
		Close:           last,
		EMA50:           EMA(closes, EMALongPeriod),
		EMA20:           EMA(closes, EMAShortPeriod),
		RSI14:           lastOr(rsi, 50),
		RSI14SMA:        SMA(rsi, RSISMAPeriod),
		MACD:            lastOr(macd, 0),
		MACDSignal:      lastOr(signal, 0),
		Histogram:       lastOr(hist, 0),
		HistogramStreak: HistogramStreak(hist),
	}
}

// EMA returns the exponential moving average of the final bar, seeded with
// an SMA over the first period values. The period is clamped to len(values);
// an empty input returns 0.
func EMA(values []float64, period int) float64 {
	s := EMASeries(values, period)
	return lastOr(s, 0)
}

// EMASeries computes the running EMA. For indices before the seed window
// fills, the value is the mean of everything seen so far, which is what
// clamping the period to the data length produces.
func EMASeries(values []float64, period int) []float64 {
	n := len(values)
	if n == 0 {
		return nil
	}
	if period > n {
		period = n
	}
	if period < 1 {
		period = 1
	}

	out := make([]float64, n)
	mult := 2.0 / float64(period+1)

	sum := 0.0
	for i, v := range values {
		if i < period {
			sum += v
			out[i] = sum / float64(i+1)
			continue
		}
		out[i] = v*mult + out[i-1]*(1-mult)
	}
	return out
}

// SMA returns the simple moving average over the trailing window, clamped to
// the available length. Empty input returns 50: SMA is only applied to RSI
// series here, where 50 is the neutral default.
func SMA(values []float64, period int) float64 {
	n := len(values)
	if n == 0 {
		return 50
	}
	if period > n {
		period = n
	}
	sum := 0.0
	for _, v := range values[n-period:] {
		sum += v
	}
	return sum / float64(period)
}

// RSISeries computes Wilder-smoothed RSI for every bar. Bars before the
// first full period carry the neutral value 50.
func RSISeries(closes []float64, period int) []float64 {
	n := len(closes)
	if n < 2 {
		out := make([]float64, n)
		for i := range out {
			out[i] = 50
		}
		return out
	}
	if period > n-1 {
		period = n - 1
	}

	out := make([]float64, n)
	out[0] = 50

	var avgGain, avgLoss float64
	for i := 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}

		if i <= period {
			// Accumulation phase: build the SMA seed.
			avgGain += gain
			avgLoss += loss
			if i < period {
				out[i] = 50
				continue
			}
			avgGain /= float64(period)
			avgLoss /= float64(period)
		} else {
			// Wilder's smoothing.
			p := float64(period)
			avgGain = (avgGain*(p-1) + gain) / p
			avgLoss = (avgLoss*(p-1) + loss) / p
		}

		if avgLoss == 0 {
			out[i] = 100
		} else {
			rs := avgGain / avgLoss
			out[i] = 100 - 100/(1+rs)
		}
	}
	return out
}

// MACDSeries computes MACD(12,26,9): the fast/slow EMA difference, its
// signal line, and the histogram. Fewer than two bars yields all-zero
// series of matching length.
func MACDSeries(closes []float64) (macd, signal, hist []float64) {
	n := len(closes)
	if n < 2 {
		z := make([]float64, n)
		return z, append([]float64(nil), z...), append([]float64(nil), z...)
	}

	fast := EMASeries(closes, MACDFastPeriod)
	slow := EMASeries(closes, MACDSlowPeriod)

	macd = make([]float64, n)
	for i := range macd {
		macd[i] = fast[i] - slow[i]
	}
	signal = EMASeries(macd, MACDSignalPeriod)

	hist = make([]float64, n)
	for i := range hist {
		hist[i] = macd[i] - signal[i]
	}
	return macd, signal, hist
}

// HistogramStreak counts trailing bars with histogram > 0, scanning backward
// from the latest bar and stopping at the first non-positive one.
func HistogramStreak(hist []float64) int {
	streak := 0
	for i := len(hist) - 1; i >= 0; i-- {
		if hist[i] <= 0 {
			break
		}
		streak++
	}
	return streak
}

func lastOr(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	return values[len(values)-1]
}
