package signal

import (
	"math"
	"testing"

	"algoengine/internal/levels"
	"algoengine/internal/model"
)

func newEvaluator(mode Mode) *Evaluator {
	return NewEvaluator(mode, levels.NewDetector(levels.DefaultConfig()))
}

// allSixInputs is the reference scenario: every condition true.
func allSixInputs() (model.TechnicalIndicators, model.SRSnapshot) {
	ind := model.TechnicalIndicators{
		Close:           110,
		EMA50:           100,
		RSI14:           60,
		RSI14SMA:        55,
		MACD:            2,
		MACDSignal:      1,
		Histogram:       1,
		HistogramStreak: 2,
	}
	snap := model.SRSnapshot{
		Price:      110,
		Resistance: &model.ChannelLevel{DistancePct: 5.0},
		Support:    &model.ChannelLevel{DistancePct: 4.0},
	}
	return ind, snap
}

func TestEvaluate_AllSixConditionsIsEntry(t *testing.T) {
	e := newEvaluator(ModeStrict)
	ind, snap := allSixInputs()

	sig := e.EvaluateWith("RELIANCE", ind, snap)
	if sig.Verdict != model.VerdictEntry {
		t.Fatalf("expected ENTRY, got %s", sig.Verdict)
	}
	if got := sig.Conditions.Passed(); got != 6 {
		t.Errorf("expected 6 conditions passed, got %d", got)
	}
	if sig.Confidence != 100 {
		t.Errorf("expected confidence 100, got %v", sig.Confidence)
	}
}

func TestEvaluate_EntryIffAllSix(t *testing.T) {
	e := newEvaluator(ModeStrict)

	// Knock out each condition in turn; verdict must drop to NO_ENTRY.
	breakers := []func(*model.TechnicalIndicators, *model.SRSnapshot){
		func(ind *model.TechnicalIndicators, _ *model.SRSnapshot) { ind.EMA50 = 120 },
		func(ind *model.TechnicalIndicators, _ *model.SRSnapshot) { ind.RSI14 = 75; ind.RSI14SMA = 55 },
		func(ind *model.TechnicalIndicators, _ *model.SRSnapshot) { ind.RSI14SMA = 65 },
		func(ind *model.TechnicalIndicators, _ *model.SRSnapshot) { ind.MACDSignal = 3 },
		func(ind *model.TechnicalIndicators, _ *model.SRSnapshot) { ind.HistogramStreak = 5 },
		func(_ *model.TechnicalIndicators, snap *model.SRSnapshot) {
			snap.Resistance = &model.ChannelLevel{DistancePct: 0.5}
		},
	}

	for i, brk := range breakers {
		ind, snap := allSixInputs()
		brk(&ind, &snap)
		sig := e.EvaluateWith("X", ind, snap)
		if sig.Verdict != model.VerdictNoEntry {
			t.Errorf("breaker %d: expected NO_ENTRY, got %s (passed=%d)",
				i, sig.Verdict, sig.Conditions.Passed())
		}
	}
}

func TestEvaluate_RSIBoundaries(t *testing.T) {
	e := newEvaluator(ModeStrict)

	ind, snap := allSixInputs()
	ind.RSI14 = 50 // boundary: must fail, range is (50, 70]
	if sig := e.EvaluateWith("X", ind, snap); sig.Conditions.RSIInRange {
		t.Error("RSI 50 must not satisfy the range condition")
	}

	ind, snap = allSixInputs()
	ind.RSI14 = 70 // inclusive upper bound
	if sig := e.EvaluateWith("X", ind, snap); !sig.Conditions.RSIInRange {
		t.Error("RSI 70 must satisfy the range condition")
	}
}

func TestEvaluate_RelaxedWatchlist(t *testing.T) {
	relaxed := newEvaluator(ModeRelaxed)
	strict := newEvaluator(ModeStrict)

	ind, snap := allSixInputs()
	ind.MACDSignal = 3  // kill MACD
	ind.HistogramStreak = 0 // kill histogram: 4 of 6 remain

	if sig := relaxed.EvaluateWith("X", ind, snap); sig.Verdict != model.VerdictWatchlist {
		t.Errorf("relaxed: expected WATCHLIST at 4/6, got %s", sig.Verdict)
	}
	if sig := strict.EvaluateWith("X", ind, snap); sig.Verdict != model.VerdictNoEntry {
		t.Errorf("strict: expected NO_ENTRY at 4/6, got %s", sig.Verdict)
	}

	ind.RSI14SMA = 65 // down to 3 of 6
	if sig := relaxed.EvaluateWith("X", ind, snap); sig.Verdict != model.VerdictNoEntry {
		t.Errorf("relaxed: expected NO_ENTRY at 3/6, got %s", sig.Verdict)
	}
}

func TestEvaluate_RiskLevels(t *testing.T) {
	e := newEvaluator(ModeStrict)
	ind, snap := allSixInputs() // close 110, resistance 5% away

	sig := e.EvaluateWith("X", ind, snap)
	if !almost(sig.StopLoss, 110*0.975) {
		t.Errorf("stop: expected %.3f, got %.3f", 110*0.975, sig.StopLoss)
	}
	// Room to resistance 5% -> target1 5%, target2 7.5% (within caps).
	if !almost(sig.Target1, 110*1.05) {
		t.Errorf("target1: expected %.3f, got %.3f", 110*1.05, sig.Target1)
	}
	if !almost(sig.Target2, 110*1.075) {
		t.Errorf("target2: expected %.3f, got %.3f", 110*1.075, sig.Target2)
	}
}

func TestEvaluate_TargetCaps(t *testing.T) {
	e := newEvaluator(ModeStrict)
	ind, snap := allSixInputs()
	snap.Resistance = &model.ChannelLevel{DistancePct: 20} // plenty of room

	sig := e.EvaluateWith("X", ind, snap)
	if !almost(sig.Target1, 110*1.06) {
		t.Errorf("target1 must cap at +6%%, got %.3f", sig.Target1)
	}
	if !almost(sig.Target2, 110*1.09) {
		t.Errorf("target2 must cap at +9%%, got %.3f", sig.Target2)
	}
}

func TestEvaluate_NoSRFallsBackClosed(t *testing.T) {
	e := newEvaluator(ModeStrict)
	ind, _ := allSixInputs()
	// Neither support nor resistance: resistanceClear fails closed.
	sig := e.EvaluateWith("X", ind, model.SRSnapshot{Price: 110})
	if sig.Conditions.ResistanceClear {
		t.Error("expected resistanceClear to fail closed with no channels")
	}
	if sig.Verdict != model.VerdictNoEntry {
		t.Errorf("expected NO_ENTRY, got %s", sig.Verdict)
	}
}

func TestWinProbability_Capped(t *testing.T) {
	if got := winProbability(6); got != 95 {
		t.Errorf("expected cap at 95, got %v", got)
	}
	if got := winProbability(0); got != 35 {
		t.Errorf("expected base 35, got %v", got)
	}
}

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
