package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"macropulse/internal/alerting"
	"macropulse/internal/config"
	"macropulse/internal/macroapi"
	"macropulse/internal/metrics"
	"macropulse/internal/scheduler"
	"macropulse/internal/service"
	"macropulse/internal/storage"
	"macropulse/internal/version"
	"macropulse/internal/web"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Recorder
}

// NewApp constructs a new application handle with its own metrics registry.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &App{
		Config:   cfg,
		Logger:   logger.With().Str("component", "app").Logger(),
		Registry: reg,
		Metrics:  metrics.New(reg),
	}
}

func (a *App) newClient() *macroapi.Client {
	userAgent := a.Config.API.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}
	return macroapi.NewClient(macroapi.Options{
		BaseURL:   a.Config.API.BaseURL,
		Timeout:   a.Config.API.RequestTimeout,
		UserAgent: userAgent,
		Observer:  a.Metrics,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	notifiers := alerting.Multi{alerting.NewLogNotifier(a.Logger)}
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		notifiers = append(notifiers, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger))
	}
	return notifiers
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, store.Close, nil
}

// Serve runs the HTML dashboard until SIGINT/SIGTERM.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, err := web.NewServer(a.Config.Server, a.newClient(), a.Logger, web.WithMetrics(a.Metrics, a.Registry))
	if err != nil {
		return err
	}

	a.Logger.Info().Str("api_base_url", a.Config.API.BaseURL).Msg("starting dashboard server")
	return srv.Run(ctx)
}

// Watch executes the long-running snapshot service.
func (a *App) Watch(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:      a.Config.Scheduler.Interval,
		AlignToBucket: a.Config.Scheduler.AlignToBucket,
		StartupDelay:  a.Config.Scheduler.StartupDelay,
		Immediate:     true,
	}, a.Logger)

	var snapshotStore storage.SnapshotStore
	var alertStore storage.AlertStore
	if store != nil {
		snapshotStore = store
		alertStore = store
	}

	svc := service.New(a.Config, sched, a.newClient(), snapshotStore, alertStore, a.newNotifier(), a.Logger,
		service.WithObserver(a.Metrics))

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting snapshot watcher")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watcher terminated with error")
		return err
	}

	a.Logger.Info().Msg("snapshot watcher stopped")
	return nil
}

// ExportOptions hold parameters for exporting the live datasets.
type ExportOptions struct {
	CSVPath         string
	PNGPath         string
	PhillipsPNGPath string
	MaxPoints       int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit  int
	Alerts bool
	Since  time.Duration
	Status string
}

// SimulateOptions describe the synthetic snapshot pushed through alerting.
type SimulateOptions struct {
	Forecast  float64
	Direction string
	Spread    float64
	Level     string
	Color     string
}
