package app

import (
	"context"
	"errors"
	"time"

	"churn-risk-alerts/internal/alerting"
	"churn-risk-alerts/internal/storage"
)

// SimulateAlert pushes a synthetic high-risk alert through the live delivery
// path: stored webhook configuration, retry policy, and history recording.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	cfg, err := store.GetAlertConfig(ctx)
	if err != nil {
		return err
	}
	if !cfg.IsEnabled {
		return errors.New("alerting is disabled; enable it via the config endpoint first")
	}

	customer := storage.Customer{ID: opts.CustomerID, Surname: "Simulated", Geography: "Test"}
	if opts.CustomerID > 0 {
		if existing, lookupErr := store.GetCustomer(ctx, opts.CustomerID); lookupErr == nil {
			customer = existing
		}
	}

	probability := opts.Probability
	if probability <= 0 || probability > 1 {
		probability = cfg.HighRiskThreshold
	}

	retry := alerting.NewRetryPolicy(
		a.Config.Alerting.MaxAttempts,
		a.Config.Alerting.BaseDelay,
		a.Config.Alerting.MaxDelay,
	)
	dispatcher := alerting.NewDispatcher(a.newNotifier(), store, alerting.Options{
		MaxPerMinute: a.Config.Alerting.MaxPerMinute,
		Retry:        retry,
	}, a.Logger)

	event := alerting.Event{
		Customer: customer,
		Kind:     storage.AlertKindHighRisk,
		Record: storage.RiskHistoryRecord{
			CustomerID:       customer.ID,
			ChurnProbability: probability,
			IsHighRisk:       true,
			EvaluatedAt:      time.Now().UTC(),
		},
	}

	outcome, err := dispatcher.DispatchRun(ctx, cfg, []alerting.Event{event}, alerting.RunStats{
		TotalChecked: 1,
		HighRisk:     1,
	})
	if err != nil {
		return err
	}
	if outcome.Failed > 0 {
		return errors.New("simulated alert delivery failed; see alert history for details")
	}

	a.Logger.Info().Int("sent", outcome.Sent).Msg("simulated alert delivered")
	return nil
}
