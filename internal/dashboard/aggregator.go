package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"churn-risk-alerts/internal/storage"
)

// Store is the read surface the aggregator consumes.
type Store interface {
	CountCustomers(ctx context.Context) (int64, error)
	GetCustomer(ctx context.Context, id int64) (storage.Customer, error)
	LatestRiskRecords(ctx context.Context) ([]storage.RiskHistoryRecord, error)
	RiskRecordsSince(ctx context.Context, since time.Time) ([]storage.RiskHistoryRecord, error)
	AlertStats(ctx context.Context, since time.Time) (storage.AlertStats, error)
	RecentFailedAlerts(ctx context.Context, limit int) ([]storage.AlertHistoryRecord, error)
}

// Distribution counts customers per probability bucket. Buckets partition
// [0,1]: a probability lands in exactly one, so the counts sum to the number
// of scored customers.
type Distribution struct {
	VeryLow  int `json:"very_low"`
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	VeryHigh int `json:"very_high"`
}

// TrendPoint is one calendar day of scoring activity.
type TrendPoint struct {
	Day                string  `json:"day"`
	Evaluations        int     `json:"evaluations"`
	AverageProbability float64 `json:"average_probability"`
	HighRisk           int     `json:"high_risk"`
}

// RiskEntry is one customer row on a ranked dashboard list.
type RiskEntry struct {
	CustomerID       int64     `json:"customer_id"`
	Surname          string    `json:"surname,omitempty"`
	Geography        string    `json:"geography,omitempty"`
	ChurnProbability float64   `json:"churn_probability"`
	RiskChange       *float64  `json:"risk_change,omitempty"`
	EvaluatedAt      time.Time `json:"evaluated_at"`
}

// FailureEntry is one recent delivery failure.
type FailureEntry struct {
	AlertID      int64     `json:"alert_id"`
	CustomerID   *int64    `json:"customer_id,omitempty"`
	Kind         string    `json:"kind"`
	SentAt       time.Time `json:"sent_at"`
	ErrorMessage string    `json:"error_message"`
}

// AlertOverview summarises alerting activity over the snapshot window.
type AlertOverview struct {
	Total          int64          `json:"total"`
	Sent           int64          `json:"sent"`
	Failed         int64          `json:"failed"`
	SuccessRate    float64        `json:"success_rate"`
	HighRisk       int64          `json:"high_risk"`
	RiskIncrease   int64          `json:"risk_increase"`
	Summary        int64          `json:"summary"`
	RecentFailures []FailureEntry `json:"recent_failures"`
}

// Snapshot is the full dashboard payload: current risk posture from the
// latest record per customer, a daily trend, ranked lists, and alert stats.
type Snapshot struct {
	GeneratedAt        time.Time     `json:"generated_at"`
	TotalCustomers     int64         `json:"total_customers"`
	ScoredCustomers    int           `json:"scored_customers"`
	HighRiskCustomers  int           `json:"high_risk_customers"`
	AverageProbability float64       `json:"average_probability"`
	Distribution       Distribution  `json:"distribution"`
	Trend              []TrendPoint  `json:"trend"`
	TopHighRisk        []RiskEntry   `json:"top_high_risk"`
	TopIncreases       []RiskEntry   `json:"top_increases"`
	Alerts             AlertOverview `json:"alerts"`
}

// Options tune snapshot shape.
type Options struct {
	TrendDays   int
	TopN        int
	MaxFailures int
}

// Aggregator builds dashboard snapshots from persisted history.
type Aggregator struct {
	store  Store
	logger zerolog.Logger
	opts   Options
	now    func() time.Time
}

// New constructs an Aggregator.
func New(store Store, opts Options, logger zerolog.Logger) *Aggregator {
	if opts.TrendDays <= 0 {
		opts.TrendDays = 30
	}
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 5
	}
	return &Aggregator{
		store:  store,
		logger: logger.With().Str("component", "dashboard").Logger(),
		opts:   opts,
		now:    time.Now,
	}
}

// Build assembles a snapshot. The latest record per customer drives the
// distribution and ranked lists; the trend covers the configured day window.
func (a *Aggregator) Build(ctx context.Context) (Snapshot, error) {
	now := a.now().UTC()
	snapshot := Snapshot{GeneratedAt: now}

	total, err := a.store.CountCustomers(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("count customers: %w", err)
	}
	snapshot.TotalCustomers = total

	latest, err := a.store.LatestRiskRecords(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("latest risk records: %w", err)
	}

	snapshot.ScoredCustomers = len(latest)
	var sum float64
	for _, record := range latest {
		sum += record.ChurnProbability
		bumpBucket(&snapshot.Distribution, record.ChurnProbability)
		if record.IsHighRisk {
			snapshot.HighRiskCustomers++
		}
	}
	if len(latest) > 0 {
		snapshot.AverageProbability = sum / float64(len(latest))
	}

	snapshot.TopHighRisk = a.rank(ctx, latest, a.opts.TopN,
		func(r storage.RiskHistoryRecord) bool { return r.IsHighRisk },
		func(x, y storage.RiskHistoryRecord) bool { return x.ChurnProbability > y.ChurnProbability })
	snapshot.TopIncreases = a.rank(ctx, latest, a.opts.TopN,
		func(r storage.RiskHistoryRecord) bool { return r.RiskChange != nil && *r.RiskChange > 0 },
		func(x, y storage.RiskHistoryRecord) bool { return *x.RiskChange > *y.RiskChange })

	since := now.AddDate(0, 0, -a.opts.TrendDays)
	snapshot.Trend, err = a.Trend(ctx, since)
	if err != nil {
		return Snapshot{}, err
	}

	snapshot.Alerts, err = a.alertOverview(ctx, since)
	if err != nil {
		return Snapshot{}, err
	}

	return snapshot, nil
}

// Trend groups scoring records from since onward by UTC calendar day.
func (a *Aggregator) Trend(ctx context.Context, since time.Time) ([]TrendPoint, error) {
	records, err := a.store.RiskRecordsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("risk records since %s: %w", since.Format("2006-01-02"), err)
	}

	type bucket struct {
		sum      float64
		count    int
		highRisk int
	}
	byDay := make(map[string]*bucket)
	for _, record := range records {
		day := record.EvaluatedAt.UTC().Format("2006-01-02")
		b := byDay[day]
		if b == nil {
			b = &bucket{}
			byDay[day] = b
		}
		b.sum += record.ChurnProbability
		b.count++
		if record.IsHighRisk {
			b.highRisk++
		}
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	points := make([]TrendPoint, 0, len(days))
	for _, day := range days {
		b := byDay[day]
		points = append(points, TrendPoint{
			Day:                day,
			Evaluations:        b.count,
			AverageProbability: b.sum / float64(b.count),
			HighRisk:           b.highRisk,
		})
	}
	return points, nil
}

// AlertOverview summarises alert activity from since onward. Exposed
// separately for the stats endpoint.
func (a *Aggregator) AlertOverview(ctx context.Context, since time.Time) (AlertOverview, error) {
	return a.alertOverview(ctx, since)
}

func (a *Aggregator) alertOverview(ctx context.Context, since time.Time) (AlertOverview, error) {
	stats, err := a.store.AlertStats(ctx, since)
	if err != nil {
		return AlertOverview{}, fmt.Errorf("alert stats: %w", err)
	}

	failures, err := a.store.RecentFailedAlerts(ctx, a.opts.MaxFailures)
	if err != nil {
		return AlertOverview{}, fmt.Errorf("recent failed alerts: %w", err)
	}

	overview := AlertOverview{
		Total:          stats.Total,
		Sent:           stats.Sent,
		Failed:         stats.Failed(),
		SuccessRate:    stats.SuccessRate(),
		HighRisk:       stats.HighRisk,
		RiskIncrease:   stats.RiskIncrease,
		Summary:        stats.Summary,
		RecentFailures: make([]FailureEntry, 0, len(failures)),
	}
	for _, record := range failures {
		entry := FailureEntry{
			AlertID:    record.ID,
			CustomerID: record.CustomerID,
			Kind:       string(record.Kind),
			SentAt:     record.SentAt,
		}
		if record.ErrorMessage != nil {
			entry.ErrorMessage = *record.ErrorMessage
		}
		overview.RecentFailures = append(overview.RecentFailures, entry)
	}
	return overview, nil
}

// rank filters and sorts the latest records, then enriches the top n with
// customer attributes. A missing customer row degrades to an id-only entry.
func (a *Aggregator) rank(ctx context.Context, latest []storage.RiskHistoryRecord, n int, keep func(storage.RiskHistoryRecord) bool, less func(x, y storage.RiskHistoryRecord) bool) []RiskEntry {
	ranked := make([]storage.RiskHistoryRecord, 0, len(latest))
	for _, record := range latest {
		if keep(record) {
			ranked = append(ranked, record)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return less(ranked[i], ranked[j]) })
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	entries := make([]RiskEntry, 0, len(ranked))
	for _, record := range ranked {
		entry := RiskEntry{
			CustomerID:       record.CustomerID,
			ChurnProbability: record.ChurnProbability,
			RiskChange:       record.RiskChange,
			EvaluatedAt:      record.EvaluatedAt,
		}
		customer, err := a.store.GetCustomer(ctx, record.CustomerID)
		if err != nil {
			a.logger.Debug().Err(err).Int64("customer_id", record.CustomerID).Msg("customer lookup failed for ranked entry")
		} else {
			entry.Surname = customer.Surname
			entry.Geography = customer.Geography
		}
		entries = append(entries, entry)
	}
	return entries
}

func bumpBucket(d *Distribution, probability float64) {
	switch {
	case probability < 0.2:
		d.VeryLow++
	case probability < 0.4:
		d.Low++
	case probability < 0.6:
		d.Medium++
	case probability < 0.8:
		d.High++
	default:
		d.VeryHigh++
	}
}
