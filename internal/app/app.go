package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"churn-risk-alerts/internal/alerting"
	"churn-risk-alerts/internal/config"
	"churn-risk-alerts/internal/dashboard"
	"churn-risk-alerts/internal/predictor"
	"churn-risk-alerts/internal/risk"
	"churn-risk-alerts/internal/scheduler"
	"churn-risk-alerts/internal/server"
	"churn-risk-alerts/internal/service"
	"churn-risk-alerts/internal/storage"
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

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	if err := storage.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newPredictor() predictor.Predictor {
	return predictor.NewClient(predictor.ClientOptions{
		BaseURL:   a.Config.Predictor.BaseURL,
		Timeout:   a.Config.Predictor.RequestTimeout,
		UserAgent: a.Config.Predictor.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	return alerting.NewWebhookNotifier(a.Config.Alerting.RequestTimeout, a.Logger)
}

func (a *App) newService(store *storage.Store) *service.Service {
	cache := predictor.NewCache(a.Config.Predictor.CacheTTL)
	evaluator := risk.NewEvaluator(a.newPredictor(), cache, store, a.Logger)

	retry := alerting.NewRetryPolicy(
		a.Config.Alerting.MaxAttempts,
		a.Config.Alerting.BaseDelay,
		a.Config.Alerting.MaxDelay,
	)
	dispatcher := alerting.NewDispatcher(a.newNotifier(), store, alerting.Options{
		Cooldown:     a.Config.Alerting.Cooldown,
		MaxPerMinute: a.Config.Alerting.MaxPerMinute,
		Retry:        retry,
	}, a.Logger)

	return service.New(store, evaluator, dispatcher, store, service.Options{
		BatchSize:            a.Config.Scheduler.BatchSize,
		Workers:              a.Config.Scheduler.Workers,
		AdvisoryLockKey:      a.Config.Scheduler.AdvisoryLockKey,
		RiskHistoryRetention: a.Config.Retention.RiskHistory,
		AlertRetention:       a.Config.Retention.AlertHistory,
	}, a.Logger)
}

func (a *App) newAggregator(store *storage.Store) *dashboard.Aggregator {
	return dashboard.New(store, dashboard.Options{
		TrendDays: a.Config.Export.TrendDays,
	}, a.Logger)
}

// Run executes the long-running monitoring service: the periodic scheduler
// and the HTTP API, stopped together on SIGINT/SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := a.newService(store)
	srv := server.New(store, svc, a.newAggregator(store), a.Logger)

	sched := scheduler.New(scheduler.Options{
		Interval:        a.Config.Scheduler.Interval,
		AlignToInterval: a.Config.Scheduler.AlignToInterval,
		StartupDelay:    a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	a.Logger.Info().Msg("starting monitoring service")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return sched.Run(groupCtx, func(tickCtx context.Context, scheduledAt time.Time) error {
			_, runErr := svc.RunOnce(tickCtx)
			if errors.Is(runErr, service.ErrAlreadyRunning) {
				a.Logger.Warn().Time("scheduled_at", scheduledAt).Msg("previous run still in progress; tick skipped")
				return nil
			}
			return runErr
		})
	})
	group.Go(func() error {
		return srv.Serve(groupCtx, a.Config.HTTP.ListenAddr, a.Config.HTTP.ShutdownTimeout)
	})

	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// RunOnce performs a single evaluation run and returns its summary.
func (a *App) RunOnce(ctx context.Context) (service.RunSummary, error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return service.RunSummary{}, err
	}
	defer closeStore()

	return a.newService(store).RunOnce(ctx)
}

// ExportOptions hold parameters for exporting the risk trend.
type ExportOptions struct {
	Days      int
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit      int
	FailedOnly bool
	Kind       string
}

// ImportOptions configure the customer CSV import.
type ImportOptions struct {
	Path   string
	DryRun bool
}

// SimulateOptions configure the simulated alert.
type SimulateOptions struct {
	CustomerID  int64
	Probability float64
}
