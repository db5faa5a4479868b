// Package monitor runs the exit engine for active positions: an RSI momentum
// reversal check, a hard stop loss, and a 14-rung trailing-stop ladder whose
// armed rung is a high-water mark that survives retracements.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"algoengine/internal/indicator"
	"algoengine/internal/model"
)

// Action is the monitor's verdict for one position.
type Action int

const (
	ActionHold Action = iota
	ActionExit
)

// Decision is the outcome of evaluating one position.
type Decision struct {
	Action Action
	Reason model.ExitReason
	Level  int // armed ladder rung for TRAILING_STOP exits, -1 otherwise
	Detail string
}

// Config tunes the exit engine.
type Config struct {
	// StopLossPct exits unconditionally once unrealized loss reaches this
	// percent of entry.
	StopLossPct float64

	// MinHoldAge suppresses RSI-reversal and trailing exits for freshly
	// opened positions. The stop loss is exempt.
	MinHoldAge time.Duration

	// MaxConsecutiveFailures aborts the rest of a monitoring pass once this
	// many positions in a row fail to evaluate.
	MaxConsecutiveFailures int

	Ladder []TrailingLevel
}

// DefaultConfig returns the production exit parameters.
func DefaultConfig() Config {
	return Config{
		StopLossPct:            2.5,
		MinHoldAge:             time.Hour,
		MaxConsecutiveFailures: 15,
		Ladder:                 DefaultLadder(),
	}
}

// Monitor evaluates exit conditions for one position at a time.
type Monitor struct {
	cfg Config

	now func() time.Time
}

// New creates a Monitor.
func New(cfg Config) *Monitor {
	if len(cfg.Ladder) == 0 {
		cfg.Ladder = DefaultLadder()
	}
	return &Monitor{cfg: cfg, now: time.Now}
}

// Evaluate updates the position's P&L and trailing state from fresh
// indicators and decides whether to exit. The checks run in priority order:
// RSI reversal, stop loss, trailing lock-in. pos is mutated: CurrentPrice,
// the P&L fields and the TrailingLevel high-water mark are refreshed even on
// hold, so the caller persists the position after every evaluation.
func (m *Monitor) Evaluate(pos *model.Position, ind model.TechnicalIndicators) Decision {
	if ind.Close <= 0 {
		return Decision{Action: ActionHold, Level: -1, Detail: "no current price"}
	}

	pos.UpdatePnL(ind.Close)

	// Raise the high-water mark before any exit check. The stored level is
	// never lowered: protection armed at the peak stays armed.
	if lvl := LevelFor(m.cfg.Ladder, pos.PnLPct); lvl > pos.TrailingLevel {
		pos.TrailingLevel = lvl
	}

	aged := pos.Age(m.now()) >= m.cfg.MinHoldAge

	if ind.RSI14 < ind.RSI14SMA && aged {
		return Decision{
			Action: ActionExit,
			Reason: model.ExitRSIReversal,
			Level:  -1,
			Detail: fmt.Sprintf("RSI %.1f below its SMA %.1f", ind.RSI14, ind.RSI14SMA),
		}
	}

	if pos.PnLPct <= -m.cfg.StopLossPct {
		return Decision{
			Action: ActionExit,
			Reason: model.ExitStopLoss,
			Level:  -1,
			Detail: fmt.Sprintf("pnl %.2f%% breached stop %.2f%%", pos.PnLPct, -m.cfg.StopLossPct),
		}
	}

	if pos.TrailingLevel >= 0 {
		rung := m.cfg.Ladder[pos.TrailingLevel]
		if pos.PnLPct < rung.LockIn && aged {
			return Decision{
				Action: ActionExit,
				Reason: model.ExitTrailingStop,
				Level:  pos.TrailingLevel,
				Detail: fmt.Sprintf("pnl %.2f%% fell below level %d lock-in %.2f%%", pos.PnLPct, pos.TrailingLevel, rung.LockIn),
			}
		}
	}

	return Decision{Action: ActionHold, Level: pos.TrailingLevel}
}

// MarketData is the slice of the aggregator the runner needs.
type MarketData interface {
	Series(ctx context.Context, symbol string) (model.Series, error)
}

// Exiter closes a position at the broker and records the exit.
type Exiter interface {
	ExitPosition(ctx context.Context, pos *model.Position, reason model.ExitReason) error
}

// Outcome is the per-position result of a monitoring pass.
type Outcome struct {
	Symbol   string
	Decision Decision
	Err      error
	Skipped  bool
}

// PassResult summarizes one monitoring pass.
type PassResult struct {
	Started   time.Time
	Finished  time.Time
	Evaluated int
	Exits     int
	Failures  int
	Degraded  bool
	Outcomes  []Outcome
}

// Runner drives a full monitoring pass over all active algo positions.
type Runner struct {
	monitor   *Monitor
	data      MarketData
	positions model.PositionRepository
	exits     Exiter
	log       *slog.Logger

	itemDelay time.Duration
}

// NewRunner wires a monitoring pass runner.
func NewRunner(m *Monitor, data MarketData, positions model.PositionRepository, exits Exiter, itemDelay time.Duration, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		monitor:   m,
		data:      data,
		positions: positions,
		exits:     exits,
		log:       log,
		itemDelay: itemDelay,
	}
}

// Run evaluates every active position once. Per-position failures are
// recorded and the pass continues, but after MaxConsecutiveFailures in a row
// the remaining positions are skipped and the pass is marked degraded.
func (r *Runner) Run(ctx context.Context) (PassResult, error) {
	res := PassResult{Started: r.monitor.now()}

	active, err := r.positions.ActiveAlgoPositions(ctx)
	if err != nil {
		res.Finished = r.monitor.now()
		return res, fmt.Errorf("monitor: load active positions: %w", err)
	}

	consecutive := 0
	for i := range active {
		pos := &active[i]

		if res.Degraded {
			res.Outcomes = append(res.Outcomes, Outcome{Symbol: pos.Symbol, Skipped: true})
			continue
		}
		if err := ctx.Err(); err != nil {
			res.Finished = r.monitor.now()
			return res, err
		}

		outcome := r.evaluateOne(ctx, pos)
		res.Outcomes = append(res.Outcomes, outcome)

		switch {
		case outcome.Err != nil:
			res.Failures++
			consecutive++
			if consecutive >= r.monitor.cfg.MaxConsecutiveFailures {
				r.log.Error("too many consecutive failures, degrading pass",
					slog.Int("consecutive", consecutive))
				res.Degraded = true
			}
		default:
			res.Evaluated++
			consecutive = 0
			if outcome.Decision.Action == ActionExit {
				res.Exits++
			}
		}

		if r.itemDelay > 0 && i < len(active)-1 && !res.Degraded {
			select {
			case <-ctx.Done():
				res.Finished = r.monitor.now()
				return res, ctx.Err()
			case <-time.After(r.itemDelay):
			}
		}
	}

	res.Finished = r.monitor.now()
	return res, nil
}

func (r *Runner) evaluateOne(ctx context.Context, pos *model.Position) Outcome {
	series, err := r.data.Series(ctx, pos.Symbol)
	if err != nil {
		return Outcome{Symbol: pos.Symbol, Err: err}
	}

	ind := indicator.Compute(model.Closes(series.Candles()))
	dec := r.monitor.Evaluate(pos, ind)

	if dec.Action == ActionExit {
		r.log.Info("exit condition met",
			slog.String("symbol", pos.Symbol),
			slog.String("reason", string(dec.Reason)),
			slog.String("detail", dec.Detail))
		if err := r.exits.ExitPosition(ctx, pos, dec.Reason); err != nil {
			return Outcome{Symbol: pos.Symbol, Decision: dec, Err: fmt.Errorf("exit %s: %w", pos.Symbol, err)}
		}
	} else if err := r.positions.UpsertAlgoPosition(ctx, pos); err != nil {
		return Outcome{Symbol: pos.Symbol, Decision: dec, Err: fmt.Errorf("persist %s: %w", pos.Symbol, err)}
	}

	return Outcome{Symbol: pos.Symbol, Decision: dec}
}
