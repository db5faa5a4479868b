// Package signal evaluates entry conditions for a symbol and produces the
// ENTRY / WATCHLIST / NO_ENTRY verdict with confidence and risk parameters.
//
// One evaluator serves both strictness modes: strict (all six conditions,
// authoritative for live order placement) and relaxed (>= 4 conditions emits
// WATCHLIST, advisory only).
package signal

import (
	"time"

	"algoengine/internal/indicator"
	"algoengine/internal/levels"
	"algoengine/internal/model"
)

// Mode selects the strictness of the verdict.
type Mode int

const (
	// ModeStrict emits ENTRY only when all six conditions hold.
	// Authoritative for order placement.
	ModeStrict Mode = iota
	// ModeRelaxed additionally emits WATCHLIST at >= 4 conditions.
	// Advisory; never used for live orders.
	ModeRelaxed
)

// watchlistThreshold is the relaxed-mode condition count for WATCHLIST.
const watchlistThreshold = 4

// Condition weights; they sum to 100 so full agreement scores confidence 100.
const (
	weightAboveEMA50      = 20
	weightRSIInRange      = 20
	weightRSIAboveSMA     = 15
	weightMACDBullish     = 20
	weightHistogramEarly  = 15
	weightResistanceClear = 10
)

// Risk parameters.
const (
	stopLossPct      = 2.5 // stop below entry
	maxTarget1Pct    = 6.0
	maxTarget2Pct    = 9.0
	target2Stretch   = 1.5 // target2 = stretch x resistance distance
	defaultTargetPct = 6.0 // used when no resistance bounds the move
	maxHistogramAge  = 3   // bars of positive histogram still "early"
)

// Evaluator combines indicators and the S/R snapshot into a verdict.
type Evaluator struct {
	mode     Mode
	detector *levels.Detector

	now func() time.Time
}

// NewEvaluator creates an evaluator in the given mode.
func NewEvaluator(mode Mode, detector *levels.Detector) *Evaluator {
	return &Evaluator{mode: mode, detector: detector, now: time.Now}
}

// Evaluate runs the full pipeline over a merged candle series. The current
// price is the latest close. S/R detection is pure computation here; when
// the series itself could not be fetched the caller reports the failure,
// this method never aborts.
func (e *Evaluator) Evaluate(symbol string, candles []model.Candle) model.EntrySignal {
	closes := model.Closes(candles)
	ind := indicator.Compute(closes)
	snap := e.detector.Detect(candles, ind.Close)
	return e.EvaluateWith(symbol, ind, snap)
}

// EvaluateWith classifies precomputed inputs.
func (e *Evaluator) EvaluateWith(symbol string, ind model.TechnicalIndicators, snap model.SRSnapshot) model.EntrySignal {
	conds := e.buildConditions(ind, snap)
	passed := conds.Passed()

	verdict := model.VerdictNoEntry
	switch {
	case passed == 6:
		verdict = model.VerdictEntry
	case e.mode == ModeRelaxed && passed >= watchlistThreshold:
		verdict = model.VerdictWatchlist
	}

	sig := model.EntrySignal{
		Symbol:         symbol,
		Verdict:        verdict,
		Conditions:     conds,
		Confidence:     confidence(conds),
		WinProbability: winProbability(passed),
		Indicators:     ind,
		Snapshot:       snap,
		EvaluatedAt:    e.now(),
	}
	sig.StopLoss, sig.Target1, sig.Target2 = riskLevels(ind.Close, snap)
	return sig
}

func (e *Evaluator) buildConditions(ind model.TechnicalIndicators, snap model.SRSnapshot) model.EntryConditions {
	return model.EntryConditions{
		AboveEMA50:      ind.Close > ind.EMA50,
		RSIInRange:      ind.RSI14 > 50 && ind.RSI14 <= 70,
		RSIAboveSMA:     ind.RSI14 > ind.RSI14SMA,
		MACDBullish:     ind.MACD > ind.MACDSignal,
		HistogramEarly:  ind.HistogramStreak >= 1 && ind.HistogramStreak <= maxHistogramAge,
		ResistanceClear: e.detector.ResistanceClear(snap),
	}
}

func confidence(c model.EntryConditions) float64 {
	score := 0.0
	if c.AboveEMA50 {
		score += weightAboveEMA50
	}
	if c.RSIInRange {
		score += weightRSIInRange
	}
	if c.RSIAboveSMA {
		score += weightRSIAboveSMA
	}
	if c.MACDBullish {
		score += weightMACDBullish
	}
	if c.HistogramEarly {
		score += weightHistogramEarly
	}
	if c.ResistanceClear {
		score += weightResistanceClear
	}
	return score
}

// winProbability is a heuristic mapping of condition agreement onto an
// estimated success rate, capped below certainty.
func winProbability(passed int) float64 {
	p := 35 + 10*float64(passed)
	if p > 95 {
		p = 95
	}
	return p
}

// riskLevels derives the stop and the two profit targets from the close and
// the distance to the nearest resistance. Targets scale with the room to
// resistance and are capped at +6% / +9%.
func riskLevels(close float64, snap model.SRSnapshot) (stop, target1, target2 float64) {
	if close <= 0 {
		return 0, 0, 0
	}

	room := defaultTargetPct
	if snap.Resistance != nil {
		room = snap.Resistance.DistancePct
	}

	t1 := room
	if t1 > maxTarget1Pct {
		t1 = maxTarget1Pct
	}
	t2 := room * target2Stretch
	if t2 > maxTarget2Pct {
		t2 = maxTarget2Pct
	}

	stop = close * (1 - stopLossPct/100)
	target1 = close * (1 + t1/100)
	target2 = close * (1 + t2/100)
	return stop, target1, target2
}
