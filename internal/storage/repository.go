package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

// PersistenceError marks an infrastructure-level storage failure. A run that
// observes one aborts instead of continuing with the next customer.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

const (
	listCustomersAfterSQL = `SELECT
        customer_id, surname, credit_score, geography, gender, age, tenure,
        balance, num_of_products, has_cr_card, is_active_member, estimated_salary, exited
    FROM customers
    WHERE customer_id > $1
    ORDER BY customer_id
    LIMIT $2;`

	getCustomerSQL = `SELECT
        customer_id, surname, credit_score, geography, gender, age, tenure,
        balance, num_of_products, has_cr_card, is_active_member, estimated_salary, exited
    FROM customers
    WHERE customer_id = $1;`

	countCustomersSQL = `SELECT COUNT(*) FROM customers;`

	upsertCustomerSQL = `INSERT INTO customers (
        customer_id, surname, credit_score, geography, gender, age, tenure,
        balance, num_of_products, has_cr_card, is_active_member, estimated_salary, exited
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
    )
    ON CONFLICT (customer_id) DO UPDATE
    SET surname          = EXCLUDED.surname,
        credit_score     = EXCLUDED.credit_score,
        geography        = EXCLUDED.geography,
        gender           = EXCLUDED.gender,
        age              = EXCLUDED.age,
        tenure           = EXCLUDED.tenure,
        balance          = EXCLUDED.balance,
        num_of_products  = EXCLUDED.num_of_products,
        has_cr_card      = EXCLUDED.has_cr_card,
        is_active_member = EXCLUDED.is_active_member,
        estimated_salary = EXCLUDED.estimated_salary,
        exited           = EXCLUDED.exited;`

	insertRiskRecordSQL = `INSERT INTO risk_history (
        run_id, customer_id, churn_probability, previous_probability,
        risk_change, is_high_risk, evaluated_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    RETURNING id;`

	latestRiskRecordSQL = `SELECT
        id, run_id, customer_id, churn_probability, previous_probability,
        risk_change, is_high_risk, evaluated_at
    FROM risk_history
    WHERE customer_id = $1
    ORDER BY evaluated_at DESC, id DESC
    LIMIT 1;`

	latestRiskRecordsSQL = `SELECT DISTINCT ON (customer_id)
        id, run_id, customer_id, churn_probability, previous_probability,
        risk_change, is_high_risk, evaluated_at
    FROM risk_history
    ORDER BY customer_id, evaluated_at DESC, id DESC;`

	riskRecordsSinceSQL = `SELECT
        id, run_id, customer_id, churn_probability, previous_probability,
        risk_change, is_high_risk, evaluated_at
    FROM risk_history
    WHERE evaluated_at >= $1
    ORDER BY evaluated_at;`

	deleteRiskHistoryBeforeSQL = `DELETE FROM risk_history WHERE evaluated_at < $1;`

	insertAlertSQL = `INSERT INTO alert_history (
        customer_id, alert_kind, message, sent_at, was_sent, error_message
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    RETURNING id;`

	lastSuccessfulAlertSQL = `SELECT
        id, customer_id, alert_kind, message, sent_at, was_sent, error_message
    FROM alert_history
    WHERE customer_id = $1
      AND alert_kind = $2
      AND was_sent = TRUE
    ORDER BY sent_at DESC
    LIMIT 1;`

	deleteAlertsBeforeSQL = `DELETE FROM alert_history WHERE sent_at < $1;`

	alertStatsSQL = `SELECT
        COUNT(*),
        COUNT(*) FILTER (WHERE was_sent),
        COUNT(*) FILTER (WHERE alert_kind = 'HIGH_RISK'),
        COUNT(*) FILTER (WHERE alert_kind = 'RISK_INCREASE'),
        COUNT(*) FILTER (WHERE alert_kind = 'SUMMARY')
    FROM alert_history
    WHERE sent_at >= $1;`

	recentFailedAlertsSQL = `SELECT
        id, customer_id, alert_kind, message, sent_at, was_sent, error_message
    FROM alert_history
    WHERE was_sent = FALSE
    ORDER BY sent_at DESC
    LIMIT $1;`

	getAlertConfigSQL = `SELECT
        webhook_url, is_enabled, high_risk_threshold, risk_increase_threshold, updated_at
    FROM alert_config
    WHERE id = 1;`

	saveAlertConfigSQL = `INSERT INTO alert_config (
        id, webhook_url, is_enabled, high_risk_threshold, risk_increase_threshold, updated_at
    ) VALUES (
        1,$1,$2,$3,$4,$5
    )
    ON CONFLICT (id) DO UPDATE
    SET webhook_url             = EXCLUDED.webhook_url,
        is_enabled              = EXCLUDED.is_enabled,
        high_risk_threshold     = EXCLUDED.high_risk_threshold,
        risk_increase_threshold = EXCLUDED.risk_increase_threshold,
        updated_at              = EXCLUDED.updated_at
    RETURNING webhook_url, is_enabled, high_risk_threshold, risk_increase_threshold, updated_at;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// CustomerStore exposes read access to the customer population.
type CustomerStore interface {
	ListCustomersAfter(ctx context.Context, afterID int64, limit int) ([]Customer, error)
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	CountCustomers(ctx context.Context) (int64, error)
	UpsertCustomer(ctx context.Context, customer Customer) error
}

// RiskHistoryStore persists and queries scoring history.
type RiskHistoryStore interface {
	InsertRiskRecord(ctx context.Context, record RiskHistoryRecord) (RiskHistoryRecord, error)
	LatestRiskRecord(ctx context.Context, customerID int64) (*RiskHistoryRecord, error)
	LatestRiskRecords(ctx context.Context) ([]RiskHistoryRecord, error)
	RiskRecordsSince(ctx context.Context, since time.Time) ([]RiskHistoryRecord, error)
	DeleteRiskHistoryBefore(ctx context.Context, olderThan time.Time) error
}

// AlertHistoryStore persists and queries alert delivery outcomes.
type AlertHistoryStore interface {
	InsertAlert(ctx context.Context, record AlertHistoryRecord) (AlertHistoryRecord, error)
	LastSuccessfulAlert(ctx context.Context, customerID int64, kind AlertKind) (*AlertHistoryRecord, error)
	ListAlerts(ctx context.Context, filter AlertHistoryFilter) ([]AlertHistoryRecord, int64, error)
	AlertStats(ctx context.Context, since time.Time) (AlertStats, error)
	RecentFailedAlerts(ctx context.Context, limit int) ([]AlertHistoryRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// AlertConfigStore reads and updates the single alerting configuration row.
type AlertConfigStore interface {
	GetAlertConfig(ctx context.Context) (AlertConfiguration, error)
	SaveAlertConfig(ctx context.Context, cfg AlertConfiguration) (AlertConfiguration, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to customers, risk history, alerts, and configuration.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// ListCustomersAfter pages the customer population by ascending id.
func (s *Store) ListCustomersAfter(ctx context.Context, afterID int64, limit int) ([]Customer, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listCustomersAfterSQL, afterID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list customers: %w", queryErr)
	}
	defer rows.Close()

	customers := make([]Customer, 0, limit)
	for rows.Next() {
		customer, scanErr := scanCustomer(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		customers = append(customers, customer)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return customers, nil
}

// GetCustomer fetches a single customer by id.
func (s *Store) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	pool, err := s.getPool()
	if err != nil {
		return Customer{}, err
	}

	rows, queryErr := pool.Query(ctx, getCustomerSQL, id)
	if queryErr != nil {
		return Customer{}, fmt.Errorf("get customer: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return Customer{}, rows.Err()
		}
		return Customer{}, pgx.ErrNoRows
	}
	return scanCustomer(rows)
}

// CountCustomers counts the stored population.
func (s *Store) CountCustomers(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countCustomersSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count customers: %w", scanErr)
	}
	return count, nil
}

// UpsertCustomer inserts or updates a customer row.
func (s *Store) UpsertCustomer(ctx context.Context, customer Customer) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertCustomerSQL,
		customer.ID,
		customer.Surname,
		customer.CreditScore,
		customer.Geography,
		customer.Gender,
		customer.Age,
		customer.Tenure,
		customer.Balance.String(),
		customer.NumOfProducts,
		customer.HasCrCard,
		customer.IsActiveMember,
		customer.EstimatedSalary.String(),
		customer.Exited,
	)
	if execErr != nil {
		return &PersistenceError{Op: "upsert customer", Err: execErr}
	}
	return nil
}

// InsertRiskRecord appends a scoring record and returns it with the assigned id.
func (s *Store) InsertRiskRecord(ctx context.Context, record RiskHistoryRecord) (RiskHistoryRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return RiskHistoryRecord{}, err
	}

	row := pool.QueryRow(ctx, insertRiskRecordSQL,
		record.RunID,
		record.CustomerID,
		record.ChurnProbability,
		record.PreviousProbability,
		record.RiskChange,
		record.IsHighRisk,
		record.EvaluatedAt,
	)
	if scanErr := row.Scan(&record.ID); scanErr != nil {
		return RiskHistoryRecord{}, &PersistenceError{Op: "insert risk record", Err: scanErr}
	}
	return record, nil
}

// LatestRiskRecord returns the most recent record for a customer, or nil when
// the customer has never been evaluated.
func (s *Store) LatestRiskRecord(ctx context.Context, customerID int64) (*RiskHistoryRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, latestRiskRecordSQL, customerID)
	if queryErr != nil {
		return nil, fmt.Errorf("latest risk record: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	record, scanErr := scanRiskRecord(rows)
	if scanErr != nil {
		return nil, scanErr
	}
	return &record, nil
}

// LatestRiskRecords returns the latest record per customer, selected by
// max evaluation timestamp.
func (s *Store) LatestRiskRecords(ctx context.Context) ([]RiskHistoryRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, latestRiskRecordsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("latest risk records: %w", queryErr)
	}
	defer rows.Close()

	records := make([]RiskHistoryRecord, 0)
	for rows.Next() {
		record, scanErr := scanRiskRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, record)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// RiskRecordsSince lists records evaluated at or after the given instant.
func (s *Store) RiskRecordsSince(ctx context.Context, since time.Time) ([]RiskHistoryRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, riskRecordsSinceSQL, since)
	if queryErr != nil {
		return nil, fmt.Errorf("risk records since: %w", queryErr)
	}
	defer rows.Close()

	records := make([]RiskHistoryRecord, 0)
	for rows.Next() {
		record, scanErr := scanRiskRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, record)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// DeleteRiskHistoryBefore purges scoring records per retention policy.
func (s *Store) DeleteRiskHistoryBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteRiskHistoryBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete risk history before: %w", execErr)
	}
	return nil
}

// InsertAlert records the final outcome of one logical alert event.
func (s *Store) InsertAlert(ctx context.Context, record AlertHistoryRecord) (AlertHistoryRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertHistoryRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		record.CustomerID,
		string(record.Kind),
		[]byte(record.Message),
		record.SentAt,
		record.WasSent,
		record.ErrorMessage,
	)
	if scanErr := row.Scan(&record.ID); scanErr != nil {
		return AlertHistoryRecord{}, &PersistenceError{Op: "insert alert", Err: scanErr}
	}
	return record, nil
}

// LastSuccessfulAlert returns the newest successfully delivered alert of the
// given kind for a customer, or nil.
func (s *Store) LastSuccessfulAlert(ctx context.Context, customerID int64, kind AlertKind) (*AlertHistoryRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, lastSuccessfulAlertSQL, customerID, string(kind))
	if queryErr != nil {
		return nil, fmt.Errorf("last successful alert: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	record, scanErr := scanAlertRecord(rows)
	if scanErr != nil {
		return nil, scanErr
	}
	return &record, nil
}

// ListAlerts returns a filtered, paginated page of alert history with the
// total match count.
func (s *Store) ListAlerts(ctx context.Context, filter AlertHistoryFilter) ([]AlertHistoryRecord, int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, 0, err
	}

	where, args := buildAlertFilter(filter)

	var total int64
	countQuery := "SELECT COUNT(*) FROM alert_history" + where + ";"
	if scanErr := pool.QueryRow(ctx, countQuery, args...).Scan(&total); scanErr != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", scanErr)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}

	listQuery := `SELECT id, customer_id, alert_kind, message, sent_at, was_sent, error_message
    FROM alert_history` + where +
		" ORDER BY sent_at DESC LIMIT $" + strconv.Itoa(len(args)+1) +
		" OFFSET $" + strconv.Itoa(len(args)+2) + ";"
	args = append(args, pageSize, (page-1)*pageSize)

	rows, queryErr := pool.Query(ctx, listQuery, args...)
	if queryErr != nil {
		return nil, 0, fmt.Errorf("list alerts: %w", queryErr)
	}
	defer rows.Close()

	records := make([]AlertHistoryRecord, 0, pageSize)
	for rows.Next() {
		record, scanErr := scanAlertRecord(rows)
		if scanErr != nil {
			return nil, 0, scanErr
		}
		records = append(records, record)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return records, total, nil
}

// AlertStats aggregates alert counts for events at or after the given instant.
func (s *Store) AlertStats(ctx context.Context, since time.Time) (AlertStats, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertStats{}, err
	}

	var stats AlertStats
	scanErr := pool.QueryRow(ctx, alertStatsSQL, since).Scan(
		&stats.Total,
		&stats.Sent,
		&stats.HighRisk,
		&stats.RiskIncrease,
		&stats.Summary,
	)
	if scanErr != nil {
		return AlertStats{}, fmt.Errorf("alert stats: %w", scanErr)
	}
	return stats, nil
}

// RecentFailedAlerts lists the newest alerts whose delivery did not succeed.
func (s *Store) RecentFailedAlerts(ctx context.Context, limit int) ([]AlertHistoryRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, recentFailedAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("recent failed alerts: %w", queryErr)
	}
	defer rows.Close()

	records := make([]AlertHistoryRecord, 0, limit)
	for rows.Next() {
		record, scanErr := scanAlertRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, record)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// DeleteAlertsBefore purges historical alerts per retention policy.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

// GetAlertConfig reads the configuration row, falling back to defaults when
// no administrator has saved one yet.
func (s *Store) GetAlertConfig(ctx context.Context) (AlertConfiguration, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertConfiguration{}, err
	}

	var cfg AlertConfiguration
	scanErr := pool.QueryRow(ctx, getAlertConfigSQL).Scan(
		&cfg.WebhookURL,
		&cfg.IsEnabled,
		&cfg.HighRiskThreshold,
		&cfg.RiskIncreaseThreshold,
		&cfg.UpdatedAt,
	)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return DefaultAlertConfiguration(), nil
	}
	if scanErr != nil {
		return AlertConfiguration{}, fmt.Errorf("get alert config: %w", scanErr)
	}
	return cfg, nil
}

// SaveAlertConfig upserts the single configuration row.
func (s *Store) SaveAlertConfig(ctx context.Context, cfg AlertConfiguration) (AlertConfiguration, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertConfiguration{}, err
	}

	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = time.Now().UTC()
	}

	var saved AlertConfiguration
	scanErr := pool.QueryRow(ctx, saveAlertConfigSQL,
		cfg.WebhookURL,
		cfg.IsEnabled,
		cfg.HighRiskThreshold,
		cfg.RiskIncreaseThreshold,
		cfg.UpdatedAt,
	).Scan(
		&saved.WebhookURL,
		&saved.IsEnabled,
		&saved.HighRiskThreshold,
		&saved.RiskIncreaseThreshold,
		&saved.UpdatedAt,
	)
	if scanErr != nil {
		return AlertConfiguration{}, &PersistenceError{Op: "save alert config", Err: scanErr}
	}
	return saved, nil
}

// DefaultAlertConfiguration mirrors the schema defaults for a fresh install.
func DefaultAlertConfiguration() AlertConfiguration {
	return AlertConfiguration{
		IsEnabled:             false,
		HighRiskThreshold:     0.7,
		RiskIncreaseThreshold: 20.0,
	}
}

func buildAlertFilter(filter AlertHistoryFilter) (string, []interface{}) {
	clauses := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)

	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		clauses = append(clauses, "alert_kind = $"+strconv.Itoa(len(args)))
	}
	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, "customer_id = $"+strconv.Itoa(len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		clauses = append(clauses, "sent_at >= $"+strconv.Itoa(len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		clauses = append(clauses, "sent_at <= $"+strconv.Itoa(len(args)))
	}
	if filter.SuccessOnly {
		clauses = append(clauses, "was_sent = TRUE")
	}

	if len(clauses) == 0 {
		return "", args
	}
	where := " WHERE " + clauses[0]
	for _, clause := range clauses[1:] {
		where += " AND " + clause
	}
	return where, args
}

func scanCustomer(rows pgx.Rows) (Customer, error) {
	var (
		customer    Customer
		surname     sql.NullString
		creditScore sql.NullInt64
		geography   sql.NullString
		gender      sql.NullString
		age         sql.NullInt64
		tenure      sql.NullInt64
		balanceStr  string
		salaryStr   string
	)

	if err := rows.Scan(
		&customer.ID,
		&surname,
		&creditScore,
		&geography,
		&gender,
		&age,
		&tenure,
		&balanceStr,
		&customer.NumOfProducts,
		&customer.HasCrCard,
		&customer.IsActiveMember,
		&salaryStr,
		&customer.Exited,
	); err != nil {
		return Customer{}, err
	}

	customer.Surname = surname.String
	customer.CreditScore = int(creditScore.Int64)
	customer.Geography = geography.String
	customer.Gender = gender.String
	customer.Age = int(age.Int64)
	customer.Tenure = int(tenure.Int64)

	var err error
	customer.Balance, err = decimal.NewFromString(balanceStr)
	if err != nil {
		return Customer{}, fmt.Errorf("parse balance: %w", err)
	}
	customer.EstimatedSalary, err = decimal.NewFromString(salaryStr)
	if err != nil {
		return Customer{}, fmt.Errorf("parse estimated salary: %w", err)
	}

	return customer, nil
}

func scanRiskRecord(rows pgx.Rows) (RiskHistoryRecord, error) {
	var record RiskHistoryRecord
	if err := rows.Scan(
		&record.ID,
		&record.RunID,
		&record.CustomerID,
		&record.ChurnProbability,
		&record.PreviousProbability,
		&record.RiskChange,
		&record.IsHighRisk,
		&record.EvaluatedAt,
	); err != nil {
		return RiskHistoryRecord{}, err
	}
	return record, nil
}

func scanAlertRecord(rows pgx.Rows) (AlertHistoryRecord, error) {
	var (
		record  AlertHistoryRecord
		kindStr string
		message []byte
	)
	if err := rows.Scan(
		&record.ID,
		&record.CustomerID,
		&kindStr,
		&message,
		&record.SentAt,
		&record.WasSent,
		&record.ErrorMessage,
	); err != nil {
		return AlertHistoryRecord{}, err
	}
	record.Kind = AlertKind(kindStr)
	record.Message = message
	return record, nil
}
