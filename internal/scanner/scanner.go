// Package scanner drives the entry pipeline over the symbol universe: batch
// the symbols, fetch each series through the resilient broker path, evaluate
// entry conditions, and hand confirmed ENTRY signals to the trader. The pace
// (worker count plus inter-item and inter-batch delays) is tuned to stay
// inside the broker's rate limits.
package scanner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"algoengine/internal/logger"
	"algoengine/internal/model"
	"algoengine/internal/trade"
	"algoengine/internal/universe"
)

// Config tunes the scan pace.
type Config struct {
	Workers    int
	BatchSize  int
	ItemDelay  time.Duration // pause after each symbol, per worker
	BatchDelay time.Duration // pause between batches
	AutoTrade  bool          // place orders on ENTRY verdicts
}

// DefaultConfig returns a pace safe for the broker's rate limits.
func DefaultConfig() Config {
	return Config{
		Workers:    4,
		BatchSize:  10,
		ItemDelay:  200 * time.Millisecond,
		BatchDelay: 2 * time.Second,
	}
}

// MarketData is the slice of the aggregator the scanner needs.
type MarketData interface {
	Series(ctx context.Context, symbol string) (model.Series, error)
}

// Evaluator classifies a candle series into an entry signal.
type Evaluator interface {
	Evaluate(symbol string, candles []model.Candle) model.EntrySignal
}

// Entrer opens positions from ENTRY signals.
type Entrer interface {
	EnterPosition(ctx context.Context, sig model.EntrySignal) (*model.UserPosition, error)
}

// Result is the per-symbol outcome of a scan.
type Result struct {
	Symbol  string
	Signal  model.EntrySignal
	Entered bool
	Err     error
}

// Summary aggregates one scan pass.
type Summary struct {
	Started   time.Time
	Finished  time.Time
	Scanned   int
	Entries   int
	Watchlist int
	Failures  int
	Results   []Result
}

// Scanner runs scan passes.
type Scanner struct {
	cfg    Config
	data   MarketData
	eval   Evaluator
	trader Entrer // nil disables order placement regardless of AutoTrade
	log    *slog.Logger

	// OnResult is called for every symbol outcome, for metrics.
	OnResult func(Result)

	now func() time.Time
}

// New creates a scanner. trader may be nil for signal-only operation.
func New(cfg Config, data MarketData, eval Evaluator, trader Entrer, log *slog.Logger) *Scanner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{cfg: cfg, data: data, eval: eval, trader: trader, log: log, now: time.Now}
}

// Scan evaluates the whole universe once. Per-symbol failures are recorded
// and do not abort the pass; the returned error is non-nil only when the
// context is cancelled.
func (s *Scanner) Scan(ctx context.Context, u *universe.Universe) (Summary, error) {
	sum := Summary{Started: s.now()}

	batches := u.Batches(s.cfg.BatchSize)
	for bi, batch := range batches {
		if err := ctx.Err(); err != nil {
			sum.Finished = s.now()
			return sum, err
		}

		for _, res := range s.scanBatch(ctx, batch) {
			sum.Results = append(sum.Results, res)
			switch {
			case res.Err != nil:
				sum.Failures++
			default:
				sum.Scanned++
				switch res.Signal.Verdict {
				case model.VerdictEntry:
					sum.Entries++
				case model.VerdictWatchlist:
					sum.Watchlist++
				}
			}
			if s.OnResult != nil {
				s.OnResult(res)
			}
		}

		if s.cfg.BatchDelay > 0 && bi < len(batches)-1 {
			select {
			case <-ctx.Done():
				sum.Finished = s.now()
				return sum, ctx.Err()
			case <-time.After(s.cfg.BatchDelay):
			}
		}
	}

	sum.Finished = s.now()
	s.log.Info("scan complete",
		slog.Int("scanned", sum.Scanned),
		slog.Int("entries", sum.Entries),
		slog.Int("watchlist", sum.Watchlist),
		slog.Int("failures", sum.Failures),
		slog.Duration("took", sum.Finished.Sub(sum.Started)))
	return sum, nil
}

// scanBatch fans one batch out over the worker pool.
func (s *Scanner) scanBatch(ctx context.Context, symbols []string) []Result {
	jobs := make(chan string)
	out := make(chan Result, len(symbols))

	var wg sync.WaitGroup
	for w := 0; w < s.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range jobs {
				out <- s.scanOne(ctx, sym)
				if s.cfg.ItemDelay > 0 {
					select {
					case <-ctx.Done():
						return
					case <-time.After(s.cfg.ItemDelay):
					}
				}
			}
		}()
	}

	for _, sym := range symbols {
		select {
		case <-ctx.Done():
		case jobs <- sym:
		}
	}
	close(jobs)
	wg.Wait()
	close(out)

	results := make([]Result, 0, len(symbols))
	for res := range out {
		results = append(results, res)
	}
	return results
}

func (s *Scanner) scanOne(ctx context.Context, symbol string) Result {
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(symbol, s.now()))

	series, err := s.data.Series(ctx, symbol)
	if err != nil {
		s.log.With(logger.LogWithTrace(ctx)...).Warn("scan failed",
			slog.String("symbol", symbol), slog.String("error", err.Error()))
		return Result{Symbol: symbol, Err: err}
	}

	sig := s.eval.Evaluate(symbol, series.Candles())
	res := Result{Symbol: symbol, Signal: sig}

	if sig.Verdict == model.VerdictEntry {
		s.log.With(logger.LogWithTrace(ctx)...).Info("entry signal",
			slog.String("symbol", symbol),
			slog.Float64("confidence", sig.Confidence),
			slog.Float64("close", sig.Indicators.Close))
		res.Entered = s.maybeEnter(ctx, sig)
	}
	return res
}

// maybeEnter places the order when autotrading is on. Eligibility rejections
// are expected outcomes, not failures.
func (s *Scanner) maybeEnter(ctx context.Context, sig model.EntrySignal) bool {
	if !s.cfg.AutoTrade || s.trader == nil {
		return false
	}

	_, err := s.trader.EnterPosition(ctx, sig)
	switch {
	case err == nil:
		return true
	case errors.Is(err, trade.ErrDuplicatePosition),
		errors.Is(err, trade.ErrTradingDisabled),
		errors.Is(err, trade.ErrTradingFrozen),
		errors.Is(err, trade.ErrMaxPositions),
		errors.Is(err, trade.ErrDailyLossLimit):
		s.log.Info("entry skipped", slog.String("symbol", sig.Symbol), slog.String("reason", err.Error()))
	default:
		s.log.Error("entry failed", slog.String("symbol", sig.Symbol), slog.String("error", err.Error()))
	}
	return false
}
