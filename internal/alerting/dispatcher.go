package alerting

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"churn-risk-alerts/internal/storage"
)

// AlertStore is the slice of alert history persistence the dispatcher needs.
type AlertStore interface {
	InsertAlert(ctx context.Context, record storage.AlertHistoryRecord) (storage.AlertHistoryRecord, error)
	LastSuccessfulAlert(ctx context.Context, customerID int64, kind storage.AlertKind) (*storage.AlertHistoryRecord, error)
}

// Event is one triggered alert kind for one customer.
type Event struct {
	Customer storage.Customer
	Kind     storage.AlertKind
	Record   storage.RiskHistoryRecord
}

// Outcome aggregates what a dispatch pass did.
type Outcome struct {
	Sent       int
	Failed     int
	Suppressed int
}

// Options tune dispatch behaviour.
type Options struct {
	Cooldown     time.Duration
	MaxPerMinute int
	Retry        RetryPolicy
}

// Dispatcher turns triggered alert kinds into outbound messages, delivering
// them with retry, rate limiting, and cool-down deduplication, and records
// exactly one history row per logical alert event.
type Dispatcher struct {
	notifier Notifier
	store    AlertStore
	limiter  *rate.Limiter
	retry    RetryPolicy
	cooldown time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(notifier Notifier, store AlertStore, opts Options, logger zerolog.Logger) *Dispatcher {
	cooldown := opts.Cooldown
	if cooldown < 0 {
		cooldown = 0
	}
	perMinute := opts.MaxPerMinute
	if perMinute <= 0 {
		perMinute = 30
	}

	return &Dispatcher{
		notifier: notifier,
		store:    store,
		limiter:  rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
		retry:    opts.Retry,
		cooldown: cooldown,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
		now:      time.Now,
	}
}

// DispatchRun delivers a run's surviving alerts plus the run summary. When
// alerting is disabled nothing is sent and no history rows are written. A
// persistence failure aborts the pass and is returned.
func (d *Dispatcher) DispatchRun(ctx context.Context, cfg storage.AlertConfiguration, events []Event, stats RunStats) (Outcome, error) {
	var outcome Outcome

	if !cfg.IsEnabled {
		d.logger.Debug().Msg("alerting disabled; skipping dispatch")
		return outcome, nil
	}

	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}

		if event.Kind == storage.AlertKindHighRisk {
			suppressed, err := d.inCooldown(ctx, event.Customer.ID)
			if err != nil {
				return outcome, err
			}
			if suppressed {
				outcome.Suppressed++
				d.logger.Debug().Int64("customer_id", event.Customer.ID).Msg("high-risk alert suppressed by cool-down")
				continue
			}
		}

		customerID := event.Customer.ID
		msg := CustomerAlertMessage(event.Kind, event.Customer, event.Record)
		sent, err := d.deliver(ctx, cfg, &customerID, event.Kind, msg)
		if err != nil {
			return outcome, err
		}
		if sent {
			outcome.Sent++
		} else {
			outcome.Failed++
		}
	}

	summary := SummaryMessage(stats, d.now())
	sent, err := d.deliver(ctx, cfg, nil, storage.AlertKindSummary, summary)
	if err != nil {
		return outcome, err
	}
	if sent {
		outcome.Sent++
	} else {
		outcome.Failed++
	}

	return outcome, nil
}

// inCooldown reports whether a successful HIGH_RISK alert for the customer
// already exists inside the cool-down window.
func (d *Dispatcher) inCooldown(ctx context.Context, customerID int64) (bool, error) {
	if d.cooldown <= 0 {
		return false, nil
	}
	last, err := d.store.LastSuccessfulAlert(ctx, customerID, storage.AlertKindHighRisk)
	if err != nil {
		return false, err
	}
	if last == nil {
		return false, nil
	}
	return d.now().Sub(last.SentAt) < d.cooldown, nil
}

// deliver sends one logical alert event and records its final outcome. The
// returned bool reports delivery success; the error is non-nil only for
// run-aborting conditions (cancellation, persistence failure).
func (d *Dispatcher) deliver(ctx context.Context, cfg storage.AlertConfiguration, customerID *int64, kind storage.AlertKind, msg Message) (bool, error) {
	// Wait queues the send behind the rate cap instead of dropping it.
	if err := d.limiter.Wait(ctx); err != nil {
		return false, err
	}

	sendErr := d.retry.Execute(ctx, func(ctx context.Context) error {
		return d.notifier.Send(ctx, cfg.WebhookURL, msg)
	})
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	payload, marshalErr := json.Marshal(msg)
	if marshalErr != nil {
		payload = []byte(`{}`)
	}

	record := storage.AlertHistoryRecord{
		CustomerID: customerID,
		Kind:       kind,
		Message:    payload,
		SentAt:     d.now().UTC(),
		WasSent:    sendErr == nil,
	}
	if sendErr != nil {
		errMsg := sendErr.Error()
		record.ErrorMessage = &errMsg
		d.logger.Error().Err(sendErr).Str("kind", string(kind)).Msg("alert delivery failed")
	}

	if _, err := d.store.InsertAlert(ctx, record); err != nil {
		return false, err
	}
	return sendErr == nil, nil
}
