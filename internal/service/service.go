package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"churn-risk-alerts/internal/alerting"
	"churn-risk-alerts/internal/predictor"
	"churn-risk-alerts/internal/risk"
	"churn-risk-alerts/internal/storage"
)

// ErrAlreadyRunning is returned when a trigger arrives while an evaluation
// run is in progress. Triggers are rejected, never queued.
var ErrAlreadyRunning = errors.New("evaluation run already in progress")

// RunSummary is the outcome of one full-population evaluation run.
type RunSummary struct {
	RunID        uuid.UUID `json:"run_id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Evaluated    int       `json:"evaluated"`
	Failed       int       `json:"failed"`
	HighRisk     int       `json:"high_risk"`
	Increases    int       `json:"increases"`
	AlertsSent   int       `json:"alerts_sent"`
	AlertsFailed int       `json:"alerts_failed"`
	Suppressed   int       `json:"alerts_suppressed"`
}

// Store is the persistence surface an evaluation run touches.
type Store interface {
	ListCustomersAfter(ctx context.Context, afterID int64, limit int) ([]storage.Customer, error)
	GetAlertConfig(ctx context.Context) (storage.AlertConfiguration, error)
	DeleteRiskHistoryBefore(ctx context.Context, olderThan time.Time) error
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// Options tune run shape.
type Options struct {
	BatchSize            int
	Workers              int
	AdvisoryLockKey      int64
	RiskHistoryRetention time.Duration
	AlertRetention       time.Duration
}

// Service orchestrates full-population evaluation runs: loading customers in
// batches, scoring them on a bounded worker pool with per-customer failure
// isolation, dispatching alerts, and purging expired history.
type Service struct {
	store      Store
	evaluator  *risk.Evaluator
	dispatcher *alerting.Dispatcher
	locker     storage.AdvisoryLocker
	logger     zerolog.Logger
	opts       Options

	running sync.Mutex
	now     func() time.Time
}

// New constructs the monitoring service. locker may be nil when the store
// offers no advisory locking.
func New(store Store, evaluator *risk.Evaluator, dispatcher *alerting.Dispatcher, locker storage.AdvisoryLocker, opts Options, logger zerolog.Logger) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.Workers <= 0 {
		opts.Workers = 8
	}

	return &Service{
		store:      store,
		evaluator:  evaluator,
		dispatcher: dispatcher,
		locker:     locker,
		logger:     logger.With().Str("component", "service").Logger(),
		opts:       opts,
		now:        time.Now,
	}
}

// RunOnce executes a single evaluation run. It is single-flight: a second
// caller gets ErrAlreadyRunning instead of queueing, whether the first run
// came from the scheduler or a manual trigger.
func (s *Service) RunOnce(ctx context.Context) (RunSummary, error) {
	if !s.running.TryLock() {
		return RunSummary{}, ErrAlreadyRunning
	}
	defer s.running.Unlock()

	if s.locker != nil && s.opts.AdvisoryLockKey != 0 {
		unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.opts.AdvisoryLockKey)
		if err != nil {
			return RunSummary{}, fmt.Errorf("acquire advisory lock: %w", err)
		}
		if !acquired {
			return RunSummary{}, ErrAlreadyRunning
		}
		defer unlock()
	}

	return s.execute(ctx)
}

func (s *Service) execute(ctx context.Context) (RunSummary, error) {
	summary := RunSummary{
		RunID:     uuid.New(),
		StartedAt: s.now().UTC(),
	}

	cfg, err := s.store.GetAlertConfig(ctx)
	if err != nil {
		return summary, fmt.Errorf("load alert configuration: %w", err)
	}

	s.logger.Info().
		Stringer("run_id", summary.RunID).
		Bool("alerting_enabled", cfg.IsEnabled).
		Float64("high_risk_threshold", cfg.HighRiskThreshold).
		Msg("evaluation run started")

	events := make([]alerting.Event, 0)
	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return s.finish(summary), err
		}

		batch, err := s.store.ListCustomersAfter(ctx, afterID, s.opts.BatchSize)
		if err != nil {
			return s.finish(summary), fmt.Errorf("load customer batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		afterID = batch[len(batch)-1].ID

		batchEvents, err := s.evaluateBatch(ctx, batch, cfg, &summary)
		if err != nil {
			return s.finish(summary), err
		}
		events = append(events, batchEvents...)

		if len(batch) < s.opts.BatchSize {
			break
		}
	}

	stats := alerting.RunStats{
		TotalChecked:         summary.Evaluated + summary.Failed,
		HighRisk:             summary.HighRisk,
		SignificantIncreases: summary.Increases,
		Failures:             summary.Failed,
	}
	outcome, err := s.dispatcher.DispatchRun(ctx, cfg, events, stats)
	summary.AlertsSent = outcome.Sent
	summary.AlertsFailed = outcome.Failed
	summary.Suppressed = outcome.Suppressed
	if err != nil {
		return s.finish(summary), fmt.Errorf("dispatch alerts: %w", err)
	}

	s.purgeExpired(ctx)

	summary = s.finish(summary)
	s.logger.Info().
		Stringer("run_id", summary.RunID).
		Int("evaluated", summary.Evaluated).
		Int("failed", summary.Failed).
		Int("alerts_sent", summary.AlertsSent).
		Int("alerts_failed", summary.AlertsFailed).
		Msg("evaluation run finished")
	return summary, nil
}

// evaluateBatch scores one batch on a bounded worker pool. Prediction
// failures are isolated per customer; persistence failures abort the run.
func (s *Service) evaluateBatch(ctx context.Context, batch []storage.Customer, cfg storage.AlertConfiguration, summary *RunSummary) ([]alerting.Event, error) {
	var mu sync.Mutex
	events := make([]alerting.Event, 0)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.opts.Workers)

	for _, customer := range batch {
		customer := customer
		group.Go(func() error {
			evaluation, err := s.evaluator.Evaluate(groupCtx, customer, cfg, summary.RunID)
			if err != nil {
				var perr *predictor.Error
				if errors.As(err, &perr) {
					s.logger.Warn().Err(err).Int64("customer_id", customer.ID).Msg("prediction failed; skipping customer")
					mu.Lock()
					summary.Failed++
					mu.Unlock()
					return nil
				}
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			summary.Evaluated++
			for _, kind := range evaluation.Kinds {
				switch kind {
				case storage.AlertKindHighRisk:
					summary.HighRisk++
				case storage.AlertKindRiskIncrease:
					summary.Increases++
				}
				events = append(events, alerting.Event{
					Customer: customer,
					Kind:     kind,
					Record:   evaluation.Record,
				})
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Service) purgeExpired(ctx context.Context) {
	now := s.now().UTC()
	if s.opts.RiskHistoryRetention > 0 {
		if err := s.store.DeleteRiskHistoryBefore(ctx, now.Add(-s.opts.RiskHistoryRetention)); err != nil {
			s.logger.Error().Err(err).Msg("risk history purge failed")
		}
	}
	if s.opts.AlertRetention > 0 {
		if err := s.store.DeleteAlertsBefore(ctx, now.Add(-s.opts.AlertRetention)); err != nil {
			s.logger.Error().Err(err).Msg("alert history purge failed")
		}
	}
}

func (s *Service) finish(summary RunSummary) RunSummary {
	summary.FinishedAt = s.now().UTC()
	return summary
}
