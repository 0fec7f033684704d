package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AlertKind enumerates the outbound alert categories.
type AlertKind string

const (
	AlertKindHighRisk     AlertKind = "HIGH_RISK"
	AlertKindRiskIncrease AlertKind = "RISK_INCREASE"
	AlertKindSummary      AlertKind = "SUMMARY"
)

// Valid reports whether k is a known alert kind.
func (k AlertKind) Valid() bool {
	switch k {
	case AlertKindHighRisk, AlertKindRiskIncrease, AlertKindSummary:
		return true
	}
	return false
}

// Customer holds the demographic and financial attributes the model scores.
// The monitoring core only reads this entity.
type Customer struct {
	ID              int64
	Surname         string
	CreditScore     int
	Geography       string
	Gender          string
	Age             int
	Tenure          int
	Balance         decimal.Decimal
	NumOfProducts   int
	HasCrCard       bool
	IsActiveMember  bool
	EstimatedSalary decimal.Decimal
	Exited          bool
}

// RiskHistoryRecord is one append-only scoring observation for a customer.
// Records are never mutated after insert; IsHighRisk reflects the threshold
// in effect at evaluation time.
type RiskHistoryRecord struct {
	ID                  int64
	RunID               uuid.UUID
	CustomerID          int64
	ChurnProbability    float64
	PreviousProbability *float64
	RiskChange          *float64
	IsHighRisk          bool
	EvaluatedAt         time.Time
}

// AlertConfiguration is the single administrative alerting configuration row.
// It is read once per run and passed by value into the evaluation pipeline.
type AlertConfiguration struct {
	WebhookURL            string
	IsEnabled             bool
	HighRiskThreshold     float64
	RiskIncreaseThreshold float64
	UpdatedAt             time.Time
}

// AlertHistoryRecord captures the final outcome of one logical alert event.
// SUMMARY records carry no customer.
type AlertHistoryRecord struct {
	ID           int64
	CustomerID   *int64
	Kind         AlertKind
	Message      json.RawMessage
	SentAt       time.Time
	WasSent      bool
	ErrorMessage *string
}

// AlertStats aggregates alert history counts over a window.
type AlertStats struct {
	Total        int64
	Sent         int64
	HighRisk     int64
	RiskIncrease int64
	Summary      int64
}

// Failed is the number of alerts whose delivery never succeeded.
func (s AlertStats) Failed() int64 { return s.Total - s.Sent }

// SuccessRate is the sent fraction in percent, 0 when nothing was recorded.
func (s AlertStats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Sent) / float64(s.Total) * 100
}

// AlertHistoryFilter narrows alert history queries.
type AlertHistoryFilter struct {
	Kind        AlertKind
	CustomerID  *int64
	DateFrom    *time.Time
	DateTo      *time.Time
	SuccessOnly bool
	Page        int
	PageSize    int
}
