package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"churn-risk-alerts/internal/storage"
)

type fakeStore struct {
	customers map[int64]storage.Customer
	latest    []storage.RiskHistoryRecord
	since     []storage.RiskHistoryRecord
	stats     storage.AlertStats
	failures  []storage.AlertHistoryRecord
}

func (f *fakeStore) CountCustomers(ctx context.Context) (int64, error) {
	return int64(len(f.customers)), nil
}

func (f *fakeStore) GetCustomer(ctx context.Context, id int64) (storage.Customer, error) {
	customer, ok := f.customers[id]
	if !ok {
		return storage.Customer{}, pgx.ErrNoRows
	}
	return customer, nil
}

func (f *fakeStore) LatestRiskRecords(ctx context.Context) ([]storage.RiskHistoryRecord, error) {
	return f.latest, nil
}

func (f *fakeStore) RiskRecordsSince(ctx context.Context, since time.Time) ([]storage.RiskHistoryRecord, error) {
	return f.since, nil
}

func (f *fakeStore) AlertStats(ctx context.Context, since time.Time) (storage.AlertStats, error) {
	return f.stats, nil
}

func (f *fakeStore) RecentFailedAlerts(ctx context.Context, limit int) ([]storage.AlertHistoryRecord, error) {
	if len(f.failures) > limit {
		return f.failures[:limit], nil
	}
	return f.failures, nil
}

func record(customerID int64, probability float64, highRisk bool, change *float64, at time.Time) storage.RiskHistoryRecord {
	return storage.RiskHistoryRecord{
		CustomerID:       customerID,
		ChurnProbability: probability,
		RiskChange:       change,
		IsHighRisk:       highRisk,
		EvaluatedAt:      at,
	}
}

func ptr(v float64) *float64 { return &v }

func TestBuildDistributionPartitionsScoredCustomers(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		customers: map[int64]storage.Customer{},
		latest: []storage.RiskHistoryRecord{
			record(1, 0.05, false, nil, at),
			record(2, 0.2, false, nil, at),
			record(3, 0.39, false, nil, at),
			record(4, 0.6, false, nil, at),
			record(5, 0.79, false, nil, at),
			record(6, 0.8, true, nil, at),
			record(7, 1.0, true, nil, at),
		},
	}

	snapshot, err := New(store, Options{}, zerolog.Nop()).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	d := snapshot.Distribution
	if d.VeryLow != 1 || d.Low != 2 || d.Medium != 0 || d.High != 2 || d.VeryHigh != 2 {
		t.Fatalf("distribution = %+v", d)
	}
	total := d.VeryLow + d.Low + d.Medium + d.High + d.VeryHigh
	if total != snapshot.ScoredCustomers {
		t.Fatalf("buckets sum to %d, scored %d", total, snapshot.ScoredCustomers)
	}
	if snapshot.HighRiskCustomers != 2 {
		t.Fatalf("high risk customers = %d", snapshot.HighRiskCustomers)
	}
}

func TestBuildRanksAndEnrichesTopLists(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		customers: map[int64]storage.Customer{
			2: {ID: 2, Surname: "Okonkwo", Geography: "Spain"},
			3: {ID: 3, Surname: "Marchetti", Geography: "France"},
		},
		latest: []storage.RiskHistoryRecord{
			record(1, 0.75, true, ptr(10), at),
			record(2, 0.92, true, ptr(84), at),
			record(3, 0.81, true, ptr(-5), at),
			record(4, 0.3, false, ptr(50), at),
		},
	}

	snapshot, err := New(store, Options{TopN: 2}, zerolog.Nop()).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(snapshot.TopHighRisk) != 2 {
		t.Fatalf("top high risk = %d entries", len(snapshot.TopHighRisk))
	}
	if snapshot.TopHighRisk[0].CustomerID != 2 || snapshot.TopHighRisk[1].CustomerID != 3 {
		t.Fatalf("high risk order wrong: %+v", snapshot.TopHighRisk)
	}
	if snapshot.TopHighRisk[0].Surname != "Okonkwo" || snapshot.TopHighRisk[0].Geography != "Spain" {
		t.Fatalf("enrichment missing: %+v", snapshot.TopHighRisk[0])
	}

	// Increases rank by positive change only: 84 then 50; the -5 entry drops.
	if len(snapshot.TopIncreases) != 2 {
		t.Fatalf("top increases = %d entries", len(snapshot.TopIncreases))
	}
	if snapshot.TopIncreases[0].CustomerID != 2 || snapshot.TopIncreases[1].CustomerID != 4 {
		t.Fatalf("increase order wrong: %+v", snapshot.TopIncreases)
	}

	// Customer 1 has no row; the entry degrades instead of failing the build.
	if snapshot.TopIncreases[1].Surname == "" && snapshot.TopIncreases[1].CustomerID != 4 {
		t.Fatalf("unexpected entry: %+v", snapshot.TopIncreases[1])
	}
}

func TestTrendGroupsByCalendarDay(t *testing.T) {
	day1 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 23, 30, 0, 0, time.UTC)
	store := &fakeStore{
		since: []storage.RiskHistoryRecord{
			record(1, 0.2, false, nil, day1),
			record(2, 0.4, false, nil, day1.Add(2*time.Hour)),
			record(1, 0.9, true, nil, day2),
		},
	}

	points, err := New(store, Options{}, zerolog.Nop()).Trend(context.Background(), day1.AddDate(0, 0, -1))
	if err != nil {
		t.Fatal(err)
	}

	if len(points) != 2 {
		t.Fatalf("points = %d", len(points))
	}
	if points[0].Day != "2024-03-01" || points[0].Evaluations != 2 || points[0].AverageProbability != 0.3 {
		t.Fatalf("day one = %+v", points[0])
	}
	if points[1].Day != "2024-03-02" || points[1].HighRisk != 1 {
		t.Fatalf("day two = %+v", points[1])
	}
}

func TestBuildAlertOverview(t *testing.T) {
	msg := "delivery failed: 500"
	customerID := int64(9)
	store := &fakeStore{
		stats: storage.AlertStats{Total: 10, Sent: 8, HighRisk: 6, RiskIncrease: 2, Summary: 2},
		failures: []storage.AlertHistoryRecord{
			{ID: 42, CustomerID: &customerID, Kind: storage.AlertKindHighRisk, SentAt: time.Unix(1_700_000_000, 0), ErrorMessage: &msg},
		},
	}

	snapshot, err := New(store, Options{}, zerolog.Nop()).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	alerts := snapshot.Alerts
	if alerts.Failed != 2 || alerts.SuccessRate != 80 {
		t.Fatalf("overview = %+v", alerts)
	}
	if len(alerts.RecentFailures) != 1 || alerts.RecentFailures[0].ErrorMessage != msg {
		t.Fatalf("failures = %+v", alerts.RecentFailures)
	}
}
