package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"churn-risk-alerts/internal/predictor"
	"churn-risk-alerts/internal/storage"
)

// Evaluation is the outcome of scoring one customer: the persisted record
// plus the candidate alert kinds the threshold policy produced.
type Evaluation struct {
	Record     storage.RiskHistoryRecord
	Kinds      []storage.AlertKind
	Importance []predictor.FeatureWeight
}

// HistoryStore is the slice of risk history persistence the evaluator needs.
type HistoryStore interface {
	InsertRiskRecord(ctx context.Context, record storage.RiskHistoryRecord) (storage.RiskHistoryRecord, error)
	LatestRiskRecord(ctx context.Context, customerID int64) (*storage.RiskHistoryRecord, error)
}

// Evaluator scores a single customer against the model, tracks the change
// from the previous reading, and appends a risk history record.
type Evaluator struct {
	predictor predictor.Predictor
	cache     *predictor.Cache
	history   HistoryStore
	logger    zerolog.Logger
	now       func() time.Time
}

// NewEvaluator constructs an Evaluator. cache may be nil to score every
// customer directly against the predictor.
func NewEvaluator(p predictor.Predictor, cache *predictor.Cache, history HistoryStore, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		predictor: p,
		cache:     cache,
		history:   history,
		logger:    logger.With().Str("component", "evaluator").Logger(),
		now:       time.Now,
	}
}

// Evaluate scores one customer under the given configuration snapshot. A
// predictor failure returns a *predictor.Error and writes nothing; a storage
// failure surfaces as a *storage.PersistenceError.
func (e *Evaluator) Evaluate(ctx context.Context, customer storage.Customer, cfg storage.AlertConfiguration, runID uuid.UUID) (Evaluation, error) {
	features := predictor.FeaturesFromCustomer(customer)

	result, err := e.resolve(ctx, features)
	if err != nil {
		return Evaluation{}, err
	}
	if result.Probability < 0 || result.Probability > 1 {
		return Evaluation{}, &predictor.Error{Err: fmt.Errorf("probability %f out of range for customer %d", result.Probability, customer.ID)}
	}

	previous, err := e.history.LatestRiskRecord(ctx, customer.ID)
	if err != nil {
		return Evaluation{}, fmt.Errorf("fetch previous record: %w", err)
	}

	var previousProbability *float64
	if previous != nil {
		p := previous.ChurnProbability
		previousProbability = &p
	}

	record := storage.RiskHistoryRecord{
		RunID:               runID,
		CustomerID:          customer.ID,
		ChurnProbability:    result.Probability,
		PreviousProbability: previousProbability,
		RiskChange:          RiskChange(result.Probability, previousProbability),
		IsHighRisk:          result.Probability >= cfg.HighRiskThreshold,
		EvaluatedAt:         e.now().UTC(),
	}

	record, err = e.history.InsertRiskRecord(ctx, record)
	if err != nil {
		return Evaluation{}, err
	}

	e.logger.Debug().
		Int64("customer_id", customer.ID).
		Float64("probability", record.ChurnProbability).
		Bool("high_risk", record.IsHighRisk).
		Msg("customer evaluated")

	return Evaluation{
		Record:     record,
		Kinds:      Decide(record.ChurnProbability, previousProbability, cfg),
		Importance: result.FeatureImportance,
	}, nil
}

func (e *Evaluator) resolve(ctx context.Context, features predictor.FeatureVector) (predictor.Result, error) {
	if e.cache == nil {
		return e.predictor.Predict(ctx, features)
	}
	return e.cache.GetOrCompute(ctx, features.Fingerprint(), func(ctx context.Context) (predictor.Result, error) {
		return e.predictor.Predict(ctx, features)
	})
}
