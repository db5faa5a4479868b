package model

import "time"

// Verdict is the outcome of an entry evaluation.
type Verdict string

const (
	VerdictEntry     Verdict = "ENTRY"     // all six conditions true
	VerdictWatchlist Verdict = "WATCHLIST" // relaxed mode only, >= 4 conditions
	VerdictNoEntry   Verdict = "NO_ENTRY"
)

// EntryConditions is the six-condition set behind an entry decision.
type EntryConditions struct {
	AboveEMA50      bool `json:"above_ema50"`      // close > EMA50
	RSIInRange      bool `json:"rsi_in_range"`     // 50 < RSI14 <= 70
	RSIAboveSMA     bool `json:"rsi_above_sma"`    // RSI14 > its SMA
	MACDBullish     bool `json:"macd_bullish"`     // MACD > signal line
	HistogramEarly  bool `json:"histogram_early"`  // 1..3 consecutive positive bars
	ResistanceClear bool `json:"resistance_clear"` // far enough from resistance
}

// Passed counts satisfied conditions.
func (ec EntryConditions) Passed() int {
	n := 0
	for _, ok := range []bool{
		ec.AboveEMA50, ec.RSIInRange, ec.RSIAboveSMA,
		ec.MACDBullish, ec.HistogramEarly, ec.ResistanceClear,
	} {
		if ok {
			n++
		}
	}
	return n
}

// EntrySignal is the full result of evaluating one symbol.
type EntrySignal struct {
	Symbol         string              `json:"symbol"`
	Verdict        Verdict             `json:"verdict"`
	Conditions     EntryConditions     `json:"conditions"`
	Confidence     float64             `json:"confidence"`      // weighted sum, 0..100
	WinProbability float64             `json:"win_probability"` // heuristic, 0..100
	StopLoss       float64             `json:"stop_loss"`       // absolute price
	Target1        float64             `json:"target1"`
	Target2        float64             `json:"target2"`
	Indicators     TechnicalIndicators `json:"indicators"`
	Snapshot       SRSnapshot          `json:"snapshot"`
	EvaluatedAt    time.Time           `json:"evaluated_at"`
}
