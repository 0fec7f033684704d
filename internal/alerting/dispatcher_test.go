package alerting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"churn-risk-alerts/internal/storage"
)

type fakeNotifier struct {
	err   error
	calls int
	urls  []string
}

func (f *fakeNotifier) Send(ctx context.Context, webhookURL string, msg Message) error {
	f.calls++
	f.urls = append(f.urls, webhookURL)
	return f.err
}

type memoryAlertStore struct {
	records   []storage.AlertHistoryRecord
	insertErr error
	nextID    int64
}

func (m *memoryAlertStore) InsertAlert(ctx context.Context, record storage.AlertHistoryRecord) (storage.AlertHistoryRecord, error) {
	if m.insertErr != nil {
		return storage.AlertHistoryRecord{}, m.insertErr
	}
	m.nextID++
	record.ID = m.nextID
	m.records = append(m.records, record)
	return record, nil
}

func (m *memoryAlertStore) LastSuccessfulAlert(ctx context.Context, customerID int64, kind storage.AlertKind) (*storage.AlertHistoryRecord, error) {
	for i := len(m.records) - 1; i >= 0; i-- {
		record := m.records[i]
		if record.WasSent && record.Kind == kind && record.CustomerID != nil && *record.CustomerID == customerID {
			return &record, nil
		}
	}
	return nil, nil
}

func enabledConfig() storage.AlertConfiguration {
	return storage.AlertConfiguration{
		WebhookURL:            "https://hooks.example.com/alerts",
		IsEnabled:             true,
		HighRiskThreshold:     0.7,
		RiskIncreaseThreshold: 20,
	}
}

func newTestDispatcher(notifier Notifier, store AlertStore, cooldown time.Duration) *Dispatcher {
	retry, _ := instantPolicy(3)
	return NewDispatcher(notifier, store, Options{
		Cooldown:     cooldown,
		MaxPerMinute: 600,
		Retry:        retry,
	}, zerolog.Nop())
}

func highRiskEvent(customerID int64) Event {
	prev := 0.5
	change := 60.0
	return Event{
		Customer: storage.Customer{ID: customerID, Surname: "Nkemdirim", Geography: "France"},
		Kind:     storage.AlertKindHighRisk,
		Record: storage.RiskHistoryRecord{
			CustomerID:          customerID,
			ChurnProbability:    0.8,
			PreviousProbability: &prev,
			RiskChange:          &change,
			IsHighRisk:          true,
			EvaluatedAt:         time.Now().UTC(),
		},
	}
}

func TestDispatchDisabledWritesNothing(t *testing.T) {
	notifier := &fakeNotifier{}
	store := &memoryAlertStore{}
	dispatcher := newTestDispatcher(notifier, store, 24*time.Hour)

	cfg := enabledConfig()
	cfg.IsEnabled = false

	outcome, err := dispatcher.DispatchRun(context.Background(), cfg, []Event{highRiskEvent(1)}, RunStats{TotalChecked: 1})
	if err != nil {
		t.Fatal(err)
	}
	if notifier.calls != 0 {
		t.Fatalf("no delivery attempts expected, got %d", notifier.calls)
	}
	if len(store.records) != 0 {
		t.Fatalf("no history rows expected, got %d", len(store.records))
	}
	if outcome != (Outcome{}) {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestDispatchSendsEventsAndSummary(t *testing.T) {
	notifier := &fakeNotifier{}
	store := &memoryAlertStore{}
	dispatcher := newTestDispatcher(notifier, store, 24*time.Hour)

	event := highRiskEvent(1)
	increase := event
	increase.Kind = storage.AlertKindRiskIncrease

	outcome, err := dispatcher.DispatchRun(context.Background(), enabledConfig(), []Event{event, increase}, RunStats{TotalChecked: 1, HighRisk: 1, SignificantIncreases: 1})
	if err != nil {
		t.Fatal(err)
	}

	// Two customer alerts plus the run summary, each a separate message and row.
	if outcome.Sent != 3 {
		t.Fatalf("sent = %d", outcome.Sent)
	}
	if len(store.records) != 3 {
		t.Fatalf("records = %d", len(store.records))
	}
	if store.records[0].Kind != storage.AlertKindHighRisk || store.records[1].Kind != storage.AlertKindRiskIncrease {
		t.Fatalf("per-customer kind order wrong: %v %v", store.records[0].Kind, store.records[1].Kind)
	}
	summary := store.records[2]
	if summary.Kind != storage.AlertKindSummary || summary.CustomerID != nil {
		t.Fatalf("summary record malformed: %+v", summary)
	}
	for _, url := range notifier.urls {
		if url != "https://hooks.example.com/alerts" {
			t.Fatalf("unexpected destination %q", url)
		}
	}
}

func TestDispatchRecordsFailureAfterRetries(t *testing.T) {
	notifier := &fakeNotifier{err: &DeliveryError{StatusCode: 500, Message: "server error"}}
	store := &memoryAlertStore{}
	dispatcher := newTestDispatcher(notifier, store, 0)

	outcome, err := dispatcher.DispatchRun(context.Background(), enabledConfig(), []Event{highRiskEvent(1)}, RunStats{TotalChecked: 1})
	if err != nil {
		t.Fatal(err)
	}

	// 3 attempts for the customer alert, 3 for the summary.
	if notifier.calls != 6 {
		t.Fatalf("notifier calls = %d", notifier.calls)
	}
	if outcome.Failed != 2 || outcome.Sent != 0 {
		t.Fatalf("outcome = %+v", outcome)
	}
	if len(store.records) != 2 {
		t.Fatalf("one record per logical event expected, got %d", len(store.records))
	}
	first := store.records[0]
	if first.WasSent || first.ErrorMessage == nil || *first.ErrorMessage == "" {
		t.Fatalf("failure outcome not recorded: %+v", first)
	}
}

func TestDispatchCooldownSuppressesRepeatHighRisk(t *testing.T) {
	notifier := &fakeNotifier{}
	store := &memoryAlertStore{}
	dispatcher := newTestDispatcher(notifier, store, 24*time.Hour)

	current := time.Unix(1_700_000_000, 0)
	dispatcher.now = func() time.Time { return current }

	if _, err := dispatcher.DispatchRun(context.Background(), enabledConfig(), []Event{highRiskEvent(1)}, RunStats{}); err != nil {
		t.Fatal(err)
	}

	// One hour later the customer is still high risk: inside the window.
	current = current.Add(time.Hour)
	outcome, err := dispatcher.DispatchRun(context.Background(), enabledConfig(), []Event{highRiskEvent(1)}, RunStats{})
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Suppressed != 1 {
		t.Fatalf("expected suppression inside cool-down, outcome = %+v", outcome)
	}

	// Just past the window the alert fires again.
	current = current.Add(24 * time.Hour)
	outcome, err = dispatcher.DispatchRun(context.Background(), enabledConfig(), []Event{highRiskEvent(1)}, RunStats{})
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Suppressed != 0 {
		t.Fatalf("cool-down must expire, outcome = %+v", outcome)
	}
}

func TestDispatchCooldownIgnoresFailedDeliveries(t *testing.T) {
	notifier := &fakeNotifier{err: &DeliveryError{StatusCode: 500, Message: "server error"}}
	store := &memoryAlertStore{}
	dispatcher := newTestDispatcher(notifier, store, 24*time.Hour)

	if _, err := dispatcher.DispatchRun(context.Background(), enabledConfig(), []Event{highRiskEvent(1)}, RunStats{}); err != nil {
		t.Fatal(err)
	}

	// The first delivery never succeeded, so the next run retries delivery
	// rather than suppressing.
	notifier.err = nil
	outcome, err := dispatcher.DispatchRun(context.Background(), enabledConfig(), []Event{highRiskEvent(1)}, RunStats{})
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Suppressed != 0 || outcome.Sent != 2 {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestDispatchAbortsOnPersistenceFailure(t *testing.T) {
	notifier := &fakeNotifier{}
	store := &memoryAlertStore{insertErr: &storage.PersistenceError{Op: "insert alert", Err: errors.New("disk full")}}
	dispatcher := newTestDispatcher(notifier, store, 0)

	_, err := dispatcher.DispatchRun(context.Background(), enabledConfig(), []Event{highRiskEvent(1)}, RunStats{})
	var perr *storage.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}
