package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"swell-alerts/internal/alerting"
	"swell-alerts/internal/config"
	"swell-alerts/internal/daylight"
	"swell-alerts/internal/engine"
	"swell-alerts/internal/events"
	"swell-alerts/internal/forecast"
	"swell-alerts/internal/observability"
	"swell-alerts/internal/rules"
	"swell-alerts/internal/scheduler"
	"swell-alerts/internal/storage"
	"swell-alerts/internal/tide"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() forecast.Fetcher {
	return forecast.NewOpenMeteo(forecast.OpenMeteoOptions{
		MarineBaseURL:  a.Config.Forecast.MarineBaseURL,
		WeatherBaseURL: a.Config.Forecast.WeatherBaseURL,
		Timeout:        a.Config.Forecast.RequestTimeout,
		UserAgent:      a.Config.Forecast.UserAgent,
		Days:           a.Config.Forecast.Days,
	}, a.Logger)
}

func (a *App) newTideSource() tide.Source {
	src := tide.NewHTTPSource(tide.HTTPOptions{
		BaseURL:   a.Config.Tides.BaseURL,
		Timeout:   a.Config.Tides.RequestTimeout,
		UserAgent: a.Config.Tides.UserAgent,
	}, a.Logger)
	return tide.NewCachedSource(src, a.Config.Tides.CacheMaxDays)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.APIBase, 10*time.Second, a.Logger)
	}
	a.Logger.Warn().Msg("telegram not configured; notifications are logged only")
	return alerting.NewLogNotifier(a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, storage.PoolConfig{
		DSN:             a.Config.Database.DSN,
		MaxOpenConns:    a.Config.Database.MaxOpenConns,
		MaxIdleConns:    a.Config.Database.MaxIdleConns,
		ConnMaxLifetime: a.Config.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	return store, store.Close, nil
}

func (a *App) loadRules() ([]rules.AlertRule, error) {
	return rules.Load(a.Config.Rules.Path)
}

type runtimeDeps struct {
	runner    *engine.Runner
	ruleset   []rules.AlertRule
	metrics   *observability.Metrics
	publisher *events.Publisher
	closers   []func()
}

func (d *runtimeDeps) close() {
	for _, closer := range d.closers {
		closer()
	}
}

func (a *App) buildRuntime(ctx context.Context, metrics *observability.Metrics) (*runtimeDeps, error) {
	ruleset, err := a.loadRules()
	if err != nil {
		return nil, err
	}

	deps := &runtimeDeps{ruleset: ruleset, metrics: metrics}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	var windows storage.WindowStore
	var audit storage.AuditStore
	if store != nil {
		windows = store
		audit = store
		deps.closers = append(deps.closers, closeStore)
	} else {
		a.Logger.Warn().Msg("database.dsn not configured; dedup state is in-memory")
		windows = storage.NewMemoryStore()
	}

	var hooks engine.Hooks
	if metrics != nil {
		hooks = append(hooks, metrics)
	}
	if a.Config.Events.Enabled {
		pub := events.NewPublisher(a.Config.Events.Brokers, a.Config.Events.Topic, a.Logger)
		deps.publisher = pub
		deps.closers = append(deps.closers, func() { _ = pub.Close() })
		hooks = append(hooks, pub)
	}
	var hook engine.Hook
	if len(hooks) > 0 {
		hook = hooks
	}

	deps.runner = engine.New(engine.Deps{
		Forecasts: a.newFetcher(),
		Tides:     a.newTideSource(),
		Daylight:  daylight.FixedHours{Start: a.Config.Daylight.StartHour, End: a.Config.Daylight.EndHour},
		Notifier:  a.newNotifier(),
		Windows:   windows,
		Audit:     audit,
		Hook:      hook,
		Clock:     clockwork.NewRealClock(),
		Logger:    a.Logger,
	}, engine.Options{
		MinConsecutiveHours: a.Config.Evaluation.MinConsecutiveHours,
		TideWindow:          a.Config.Evaluation.TideWindow,
		ContextHours:        a.Config.Evaluation.ContextHours,
	})
	return deps, nil
}

// Run executes the long-running scheduled evaluation service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var metrics *observability.Metrics
	if a.Config.Metrics.Enabled {
		metrics = observability.NewMetrics()
		a.serveMetrics(ctx)
	}

	deps, err := a.buildRuntime(ctx, metrics)
	if err != nil {
		return err
	}
	defer deps.close()

	clock := clockwork.NewRealClock()
	sched, err := scheduler.New(scheduler.Options{
		TargetMinute: a.Config.Scheduler.TargetMinute,
		Timezone:     a.Config.Scheduler.Timezone,
		ScanHorizon:  a.Config.Scheduler.ScanHorizon,
		MinDelay:     a.Config.Scheduler.MinDelay,
	}, clock, a.Logger)
	if err != nil {
		return err
	}

	callback := func(ctx context.Context) {
		stats := deps.runner.RunOnce(ctx, deps.ruleset, a.Config.Evaluation.MinConsecutiveHours)
		if metrics != nil {
			metrics.ObserveRun(stats, float64(clock.Now().Unix()))
		}
	}

	a.Logger.Info().
		Int("rules", len(deps.ruleset)).
		Int("target_minute", a.Config.Scheduler.TargetMinute).
		Str("timezone", a.Config.Scheduler.Timezone).
		Msg("starting evaluation service")

	if err := sched.Start(ctx, callback); err != nil {
		return err
	}

	<-ctx.Done()
	sched.Stop()
	a.Logger.Info().Msg("evaluation service stopped")

	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// EvalOnce runs a single evaluation pass and logs the statistics.
func (a *App) EvalOnce(ctx context.Context) error {
	deps, err := a.buildRuntime(ctx, nil)
	if err != nil {
		return err
	}
	defer deps.close()

	stats := deps.runner.RunOnce(ctx, deps.ruleset, a.Config.Evaluation.MinConsecutiveHours)

	ev := a.Logger.Info().
		Int("rules", stats.Rules).
		Int("matched", stats.Matched).
		Int("notified", stats.Notified).
		Int("errors", stats.Errors)
	for reason, count := range stats.Discarded {
		ev = ev.Int("discarded_"+string(reason), count)
	}
	ev.Msg("one-shot evaluation complete")
	return nil
}

func (a *App) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: a.Config.Metrics.ListenAddr, Handler: mux}

	go func() {
		a.Logger.Info().Str("addr", a.Config.Metrics.ListenAddr).Msg("metrics endpoint listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}
