package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"churn-risk-alerts/internal/dashboard"
	"churn-risk-alerts/internal/service"
	"churn-risk-alerts/internal/storage"
)

type fakeStore struct {
	config     storage.AlertConfiguration
	saved      *storage.AlertConfiguration
	alerts     []storage.AlertHistoryRecord
	lastFilter storage.AlertHistoryFilter
}

func (f *fakeStore) GetAlertConfig(ctx context.Context) (storage.AlertConfiguration, error) {
	return f.config, nil
}

func (f *fakeStore) SaveAlertConfig(ctx context.Context, cfg storage.AlertConfiguration) (storage.AlertConfiguration, error) {
	cfg.UpdatedAt = time.Unix(1_700_000_000, 0).UTC()
	f.saved = &cfg
	return cfg, nil
}

func (f *fakeStore) ListAlerts(ctx context.Context, filter storage.AlertHistoryFilter) ([]storage.AlertHistoryRecord, int64, error) {
	f.lastFilter = filter
	return f.alerts, int64(len(f.alerts)), nil
}

type fakeRunner struct {
	summary service.RunSummary
	err     error
}

func (f *fakeRunner) RunOnce(ctx context.Context) (service.RunSummary, error) {
	return f.summary, f.err
}

type fakeDashStore struct{}

func (fakeDashStore) CountCustomers(ctx context.Context) (int64, error) { return 3, nil }
func (fakeDashStore) GetCustomer(ctx context.Context, id int64) (storage.Customer, error) {
	return storage.Customer{ID: id, Surname: "Boyle"}, nil
}
func (fakeDashStore) LatestRiskRecords(ctx context.Context) ([]storage.RiskHistoryRecord, error) {
	return []storage.RiskHistoryRecord{
		{CustomerID: 1, ChurnProbability: 0.9, IsHighRisk: true, EvaluatedAt: time.Unix(1_700_000_000, 0)},
	}, nil
}
func (fakeDashStore) RiskRecordsSince(ctx context.Context, since time.Time) ([]storage.RiskHistoryRecord, error) {
	return nil, nil
}
func (fakeDashStore) AlertStats(ctx context.Context, since time.Time) (storage.AlertStats, error) {
	return storage.AlertStats{Total: 4, Sent: 3}, nil
}
func (fakeDashStore) RecentFailedAlerts(ctx context.Context, limit int) ([]storage.AlertHistoryRecord, error) {
	return nil, nil
}

func newTestServer(store *fakeStore, runner *fakeRunner) *Server {
	aggregator := dashboard.New(fakeDashStore{}, dashboard.Options{}, zerolog.Nop())
	return New(store, runner, aggregator, zerolog.Nop())
}

func doRequest(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&fakeStore{}, &fakeRunner{})
	rec := doRequest(t, srv, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetConfigReturnsCurrentRow(t *testing.T) {
	store := &fakeStore{config: storage.AlertConfiguration{
		WebhookURL:            "https://hooks.example.com/x",
		IsEnabled:             true,
		HighRiskThreshold:     0.7,
		RiskIncreaseThreshold: 20,
	}}
	srv := newTestServer(store, &fakeRunner{})

	rec := doRequest(t, srv, http.MethodGet, "/api/alerts/config", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var payload configPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.HighRiskThreshold != 0.7 || !payload.IsEnabled {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestSaveConfigPersistsValidPayload(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(store, &fakeRunner{})

	body := `{"webhook_url":"https://hooks.example.com/y","is_enabled":true,"high_risk_threshold":0.8,"risk_increase_threshold":25}`
	rec := doRequest(t, srv, http.MethodPost, "/api/alerts/config", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if store.saved == nil || store.saved.HighRiskThreshold != 0.8 {
		t.Fatalf("saved = %+v", store.saved)
	}
}

func TestSaveConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"threshold above one", `{"webhook_url":"https://h.example.com","is_enabled":true,"high_risk_threshold":1.5,"risk_increase_threshold":20}`},
		{"threshold zero", `{"webhook_url":"https://h.example.com","is_enabled":true,"high_risk_threshold":0,"risk_increase_threshold":20}`},
		{"increase zero", `{"webhook_url":"https://h.example.com","is_enabled":true,"high_risk_threshold":0.7,"risk_increase_threshold":0}`},
		{"enabled without url", `{"webhook_url":"","is_enabled":true,"high_risk_threshold":0.7,"risk_increase_threshold":20}`},
		{"bad url scheme", `{"webhook_url":"ftp://h.example.com","is_enabled":true,"high_risk_threshold":0.7,"risk_increase_threshold":20}`},
		{"malformed body", `{"webhook_url":`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeStore{}
			srv := newTestServer(store, &fakeRunner{})
			rec := doRequest(t, srv, http.MethodPost, "/api/alerts/config", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
			}
			if store.saved != nil {
				t.Fatal("invalid payload must not be saved")
			}
		})
	}
}

func TestAlertHistoryFilterParsing(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(store, &fakeRunner{})

	rec := doRequest(t, srv, http.MethodGet,
		"/api/alerts/history?alert_kind=HIGH_RISK&customer_id=42&date_from=2024-03-01&success_only=true&page=2&page_size=500", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	filter := store.lastFilter
	if filter.Kind != storage.AlertKindHighRisk {
		t.Fatalf("kind = %v", filter.Kind)
	}
	if filter.CustomerID == nil || *filter.CustomerID != 42 {
		t.Fatalf("customer id = %v", filter.CustomerID)
	}
	if filter.DateFrom == nil || filter.DateFrom.Format("2006-01-02") != "2024-03-01" {
		t.Fatalf("date from = %v", filter.DateFrom)
	}
	if !filter.SuccessOnly || filter.Page != 2 {
		t.Fatalf("filter = %+v", filter)
	}
	if filter.PageSize != maxPageSize {
		t.Fatalf("page size must be capped at %d, got %d", maxPageSize, filter.PageSize)
	}
}

func TestAlertHistoryRejectsUnknownKind(t *testing.T) {
	srv := newTestServer(&fakeStore{}, &fakeRunner{})
	rec := doRequest(t, srv, http.MethodGet, "/api/alerts/history?alert_kind=SHOUTING", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTriggerRunSuccess(t *testing.T) {
	runner := &fakeRunner{summary: service.RunSummary{Evaluated: 12, HighRisk: 2}}
	srv := newTestServer(&fakeStore{}, runner)

	rec := doRequest(t, srv, http.MethodPost, "/api/monitor/run", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Status  string             `json:"status"`
		Summary service.RunSummary `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Status != "success" || payload.Summary.Evaluated != 12 {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestTriggerRunConflictWhenBusy(t *testing.T) {
	srv := newTestServer(&fakeStore{}, &fakeRunner{err: service.ErrAlreadyRunning})
	rec := doRequest(t, srv, http.MethodPost, "/api/monitor/run", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "already_running") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestDashboardSnapshot(t *testing.T) {
	srv := newTestServer(&fakeStore{}, &fakeRunner{})
	rec := doRequest(t, srv, http.MethodGet, "/api/dashboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var snapshot dashboard.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatal(err)
	}
	if snapshot.TotalCustomers != 3 || snapshot.HighRiskCustomers != 1 {
		t.Fatalf("snapshot = %+v", snapshot)
	}
	if snapshot.Alerts.SuccessRate != 75 {
		t.Fatalf("alerts = %+v", snapshot.Alerts)
	}
}
