// The scanner evaluates the symbol universe once per invocation: fetch
// candle series through the resilient broker path, run the entry evaluator,
// and (when autotrading is enabled) place orders for confirmed signals.
// Schedule it via cron or a systemd timer during market hours.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"algoengine/config"
	"algoengine/internal/auth"
	"algoengine/internal/broker"
	"algoengine/internal/levels"
	"algoengine/internal/logger"
	"algoengine/internal/marketdata"
	"algoengine/internal/markethours"
	"algoengine/internal/metrics"
	"algoengine/internal/model"
	"algoengine/internal/notification"
	"algoengine/internal/resilience"
	"algoengine/internal/scanner"
	"algoengine/internal/signal"
	redisstore "algoengine/internal/store/redis"
	sqlitestore "algoengine/internal/store/sqlite"
	"algoengine/internal/trade"
	"algoengine/internal/universe"
)

func main() {
	cfg := config.Load()
	lg := logger.Init("scanner", logger.Options{Level: slog.LevelInfo, File: "logs/scanner.log"})

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lg.Info("scanner starting", slog.String("market", markethours.StatusString(time.Now())))

	prom := metrics.New()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		metricsSrv.Stop(shCtx)
	}()

	os.MkdirAll("data", 0o755)
	store, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[scanner] sqlite init failed: %v", err)
	}
	defer store.Close()

	creds, err := store.Credentials(ctx, cfg.AccountID)
	if err != nil {
		log.Fatalf("[scanner] load credentials: %v", err)
	}

	// Token-only client first; the authenticated client borrows tokens from
	// the coordinator.
	brokerCfg := broker.Config{BaseURL: cfg.BrokerBaseURL, APIKey: cfg.APIKey}
	coord := auth.NewCoordinator(broker.New(brokerCfg, nil, lg), creds, lg)
	coord.OnRefresh = func() { prom.TokenRefreshes.Inc() }
	api := broker.New(brokerCfg, coord, lg)
	api.OnRequest = func(route string, took time.Duration, err error) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		prom.BrokerCalls.WithLabelValues(outcome).Inc()
		prom.BrokerCallDuration.Observe(took.Seconds())
		health.SetBrokerOK(err == nil)
	}

	breaker := resilience.NewCircuitBreaker(10, 5*time.Minute)
	breaker.OnStateChange = func(open bool) {
		if open {
			prom.BreakerTrips.Inc()
			prom.BreakerState.Set(1)
		} else {
			prom.BreakerState.Set(0)
		}
	}

	var cache resilience.ResponseCache = resilience.NewMemoryCache()
	if cfg.RedisAddr != "" {
		rc, err := redisstore.New(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			lg.Warn("redis unavailable, using in-memory cache", slog.String("error", err.Error()))
		} else {
			defer rc.Close()
			cache = rc
			health.StartLivenessChecker(ctx, rc.Client(), store.DB(), 30*time.Second)
		}
	}

	res := resilience.NewClient(breaker, resilience.DefaultRetryPolicy(), cache, lg)
	res.OnCacheHit = func(string) { prom.CacheHits.Inc() }
	res.OnCacheMiss = func(string) { prom.CacheMisses.Inc() }

	agg := marketdata.NewAggregator(marketdata.NewResilientCharts(api, res), cfg.Exchange, cfg.HistoryYears, lg)

	uni := universe.Default()
	if cfg.UniversePath != "" {
		if uni, err = universe.Load(cfg.UniversePath); err != nil {
			log.Fatalf("[scanner] load universe: %v", err)
		}
	}

	trader := trade.NewTrader(cfg.AccountID, cfg.Exchange, api,
		trade.Store{Positions: store, Orders: store, Prefs: store, PnL: store},
		notification.TextAdapter{Notifier: buildNotifier(cfg, lg), Title: "Trade"}, lg)
	trader.OnOrder = func(o *model.Order) {
		prom.OrdersTotal.WithLabelValues(o.TransactionType, o.Status).Inc()
	}
	if _, err := trader.Reconcile(ctx); err != nil {
		lg.Error("reconciliation failed", slog.String("error", err.Error()))
	}

	mode := signal.ModeStrict
	if cfg.RelaxedSignals {
		mode = signal.ModeRelaxed
	}
	eval := signal.NewEvaluator(mode, levels.NewDetector(levels.DefaultConfig()))

	sc := scanner.New(scanner.Config{
		Workers:    cfg.ScanWorkers,
		BatchSize:  cfg.ScanBatchSize,
		ItemDelay:  cfg.ItemDelay,
		BatchDelay: cfg.BatchDelay,
		AutoTrade:  cfg.AutoTrade,
	}, agg, eval, trader, lg)
	sc.OnResult = func(r scanner.Result) {
		prom.SymbolsScanned.Inc()
		if r.Err != nil {
			prom.ScanFailures.Inc()
			return
		}
		prom.SignalsTotal.WithLabelValues(string(r.Signal.Verdict)).Inc()
	}

	start := time.Now()
	sum, err := sc.Scan(ctx, uni)
	if err != nil {
		lg.Error("scan aborted", slog.String("error", err.Error()))
		os.Exit(1)
	}
	prom.ScansTotal.Inc()
	prom.ScanDuration.Observe(time.Since(start).Seconds())
	health.SetLastScanAt(time.Now())

	for _, r := range sum.Results {
		if r.Signal.Verdict == model.VerdictWatchlist {
			lg.Info("watchlist",
				slog.String("symbol", r.Symbol),
				slog.Float64("confidence", r.Signal.Confidence))
		}
	}
	lg.Info("scanner done",
		slog.Int("entries", sum.Entries),
		slog.Int("watchlist", sum.Watchlist),
		slog.Int("failures", sum.Failures))
}

func buildNotifier(cfg *config.Config, lg *slog.Logger) notification.Notifier {
	var backends notification.Fanout
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notification.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			lg.Warn("telegram notifier unavailable", slog.String("error", err.Error()))
		} else {
			backends = append(backends, tg)
		}
	}
	if cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.WebhookURL, "algoengine"))
	}
	if len(backends) == 0 {
		return notification.NewLogNotifier()
	}
	return backends
}
