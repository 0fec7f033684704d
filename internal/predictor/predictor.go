package predictor

import (
	"context"
	"fmt"
)

// FeatureWeight pairs a model feature with its ranked importance.
type FeatureWeight struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Result is one scoring outcome for a feature vector.
type Result struct {
	Probability       float64
	FeatureImportance []FeatureWeight
}

// Predictor scores a feature vector into a churn probability plus ranked
// feature importances. Implementations may be slow or fail; callers treat a
// failure as terminal for the customer being evaluated.
type Predictor interface {
	Predict(ctx context.Context, features FeatureVector) (Result, error)
}

// Error wraps a failed prediction. Runs skip the affected customer and
// continue.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("predictor: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
