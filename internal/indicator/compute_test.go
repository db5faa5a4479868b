package indicator

import (
	"math"
	"testing"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestEMASeries_ConstantInput(t *testing.T) {
	values := []float64{100, 100, 100, 100, 100}
	out := EMASeries(values, 3)
	for i, v := range out {
		if !almostEqual(v, 100, 1e-9) {
			t.Errorf("index %d: expected 100, got %v", i, v)
		}
	}
}

func TestEMA_SingleValueIsThatClose(t *testing.T) {
	if got := EMA([]float64{42.5}, 50); got != 42.5 {
		t.Errorf("expected clamped EMA of one bar to equal the close, got %v", got)
	}
}

func TestEMASeries_ConvergesTowardRecentPrices(t *testing.T) {
	// 50 bars at 100 then 50 bars at 200: EMA(10) should end near 200.
	values := make([]float64, 100)
	for i := range values {
		if i < 50 {
			values[i] = 100
		} else {
			values[i] = 200
		}
	}
	out := EMASeries(values, 10)
	if got := out[len(out)-1]; got < 195 {
		t.Errorf("expected EMA near 200, got %v", got)
	}
}

func TestRSISeries_AllGainsIs100(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	rsi := RSISeries(closes, 14)
	if got := rsi[len(rsi)-1]; got != 100 {
		t.Errorf("expected RSI 100 on monotonic gains, got %v", got)
	}
}

func TestRSISeries_AllLossesNearZero(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 200 - float64(i)
	}
	rsi := RSISeries(closes, 14)
	if got := rsi[len(rsi)-1]; got > 1 {
		t.Errorf("expected RSI near 0 on monotonic losses, got %v", got)
	}
}

func TestRSISeries_NeutralOnThinHistory(t *testing.T) {
	rsi := RSISeries([]float64{100}, 14)
	if len(rsi) != 1 || rsi[0] != 50 {
		t.Errorf("expected neutral 50, got %v", rsi)
	}
}

func TestRSISeries_ClampsPeriod(t *testing.T) {
	// 5 bars with a 14-period request: must clamp, not panic or zero out.
	closes := []float64{100, 102, 101, 103, 104}
	rsi := RSISeries(closes, 14)
	last := rsi[len(rsi)-1]
	if last <= 50 || last > 100 {
		t.Errorf("expected RSI above neutral on mostly-gaining bars, got %v", last)
	}
}

func TestMACDSeries_ZeroOnFlatPrices(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 150
	}
	macd, signal, hist := MACDSeries(closes)
	n := len(closes) - 1
	if !almostEqual(macd[n], 0, 1e-9) || !almostEqual(signal[n], 0, 1e-9) || !almostEqual(hist[n], 0, 1e-9) {
		t.Errorf("expected zero MACD on flat prices, got %v %v %v", macd[n], signal[n], hist[n])
	}
}

func TestMACDSeries_PositiveInUptrend(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 * math.Pow(1.01, float64(i))
	}
	macd, _, _ := MACDSeries(closes)
	if macd[len(macd)-1] <= 0 {
		t.Errorf("expected positive MACD in an uptrend, got %v", macd[len(macd)-1])
	}
}

func TestHistogramStreak(t *testing.T) {
	tests := []struct {
		name string
		hist []float64
		want int
	}{
		{"empty", nil, 0},
		{"all positive", []float64{1, 2, 3}, 3},
		{"stops at first non-positive", []float64{1, -1, 2, 3}, 2},
		{"zero breaks the streak", []float64{1, 0, 2}, 1},
		{"latest bar negative", []float64{1, 2, -1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HistogramStreak(tt.hist); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestCompute_EmptyInputNeutralDefaults(t *testing.T) {
	ind := Compute(nil)
	if ind.RSI14 != 50 || ind.RSI14SMA != 50 {
		t.Errorf("expected neutral RSI defaults, got %+v", ind)
	}
	if ind.MACD != 0 || ind.Histogram != 0 {
		t.Errorf("expected zero MACD defaults, got %+v", ind)
	}
}

func TestCompute_UptrendSnapshot(t *testing.T) {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.8
	}
	ind := Compute(closes)

	if ind.Close != closes[len(closes)-1] {
		t.Errorf("close mismatch: %v", ind.Close)
	}
	if ind.Close <= ind.EMA50 {
		t.Errorf("expected close above EMA50 in uptrend: close=%v ema50=%v", ind.Close, ind.EMA50)
	}
	if ind.RSI14 <= 50 {
		t.Errorf("expected RSI above 50 in uptrend, got %v", ind.RSI14)
	}
	if ind.HistogramStreak == 0 {
		t.Errorf("expected positive histogram streak in steady uptrend")
	}
}
