// The monitor is a long-running process that watches active positions and
// fires exits: it loops on a fixed interval while the market is open, pulls
// fresh indicators for each position, and hands exit decisions to the trader.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"algoengine/config"
	"algoengine/internal/auth"
	"algoengine/internal/broker"
	"algoengine/internal/feed"
	"algoengine/internal/logger"
	"algoengine/internal/marketdata"
	"algoengine/internal/markethours"
	"algoengine/internal/metrics"
	"algoengine/internal/model"
	"algoengine/internal/monitor"
	"algoengine/internal/notification"
	"algoengine/internal/resilience"
	redisstore "algoengine/internal/store/redis"
	sqlitestore "algoengine/internal/store/sqlite"
	"algoengine/internal/trade"
)

func main() {
	cfg := config.Load()
	lg := logger.Init("monitor", logger.Options{Level: slog.LevelInfo, File: "logs/monitor.log"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lg.Info("monitor starting",
		slog.Duration("interval", cfg.MonitorInterval),
		slog.String("market", markethours.StatusString(time.Now())))

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
		log.Fatalf("[monitor] sqlite init failed: %v", err)
	}
	defer store.Close()

	creds, err := store.Credentials(ctx, cfg.AccountID)
	if err != nil {
		log.Fatalf("[monitor] load credentials: %v", err)
	}

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

	var data monitor.MarketData = agg
	if cfg.BrokerFeedURL != "" {
		if active, err := store.ActiveAlgoPositions(ctx); err == nil && len(active) > 0 {
			syms := make([]string, len(active))
			for i, p := range active {
				syms[i] = p.Symbol
			}
			ltp := feed.New(feed.Config{
				URL:        cfg.BrokerFeedURL,
				APIKey:     cfg.APIKey,
				ClientCode: cfg.AccountID,
			}, coord, syms, lg)
			go ltp.Run(ctx)
			data = marketdata.WithLiveTicks(agg, ltp, time.Minute)
		}
	}

	trader := trade.NewTrader(cfg.AccountID, cfg.Exchange, api,
		trade.Store{Positions: store, Orders: store, Prefs: store, PnL: store},
		notification.TextAdapter{Notifier: buildNotifier(cfg, lg), Title: "Exit"}, lg)
	trader.OnOrder = func(o *model.Order) {
		prom.OrdersTotal.WithLabelValues(o.TransactionType, o.Status).Inc()
	}
	if _, err := trader.Reconcile(ctx); err != nil {
		lg.Error("reconciliation failed", slog.String("error", err.Error()))
	}

	runner := monitor.NewRunner(monitor.New(monitor.DefaultConfig()), data, store, trader, cfg.ItemDelay, lg)

	ticker := time.NewTicker(cfg.MonitorInterval)
	defer ticker.Stop()

	runPass(ctx, runner, store, prom, health, lg)
	for {
		select {
		case <-ctx.Done():
			lg.Info("monitor shutting down")
			return
		case <-ticker.C:
			if !markethours.IsMarketOpen(time.Now()) {
				continue
			}
			runPass(ctx, runner, store, prom, health, lg)
		}
	}
}

func runPass(ctx context.Context, runner *monitor.Runner, store *sqlitestore.Store, prom *metrics.Metrics, health *metrics.HealthStatus, lg *slog.Logger) {
	res, err := runner.Run(ctx)
	if err != nil {
		lg.Error("monitoring pass failed", slog.String("error", err.Error()))
		return
	}

	prom.MonitorPasses.Inc()
	if res.Degraded {
		prom.DegradedPasses.Inc()
	}
	for _, o := range res.Outcomes {
		if o.Err == nil && !o.Skipped && o.Decision.Action == monitor.ActionExit {
			prom.ExitsTotal.WithLabelValues(string(o.Decision.Reason)).Inc()
		}
	}
	if active, err := store.ActiveAlgoPositions(ctx); err == nil {
		prom.OpenPositions.Set(float64(len(active)))
	}
	health.SetLastPassAt(time.Now())

	lg.Info("monitoring pass done",
		slog.Int("evaluated", res.Evaluated),
		slog.Int("exits", res.Exits),
		slog.Int("failures", res.Failures),
		slog.Bool("degraded", res.Degraded),
		slog.Duration("took", res.Finished.Sub(res.Started)))
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
