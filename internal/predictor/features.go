package predictor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"churn-risk-alerts/internal/storage"
)

// FeatureVector is the model input built from current customer attributes.
type FeatureVector struct {
	CreditScore     float64 `json:"credit_score"`
	Age             float64 `json:"age"`
	Tenure          float64 `json:"tenure"`
	Balance         float64 `json:"balance"`
	NumOfProducts   float64 `json:"num_of_products"`
	HasCrCard       float64 `json:"has_cr_card"`
	IsActiveMember  float64 `json:"is_active_member"`
	EstimatedSalary float64 `json:"estimated_salary"`
	Geography       string  `json:"geography"`
	Gender          string  `json:"gender"`
}

// FeaturesFromCustomer builds the model input from a customer row.
func FeaturesFromCustomer(customer storage.Customer) FeatureVector {
	return FeatureVector{
		CreditScore:     float64(customer.CreditScore),
		Age:             float64(customer.Age),
		Tenure:          float64(customer.Tenure),
		Balance:         customer.Balance.InexactFloat64(),
		NumOfProducts:   float64(customer.NumOfProducts),
		HasCrCard:       boolFeature(customer.HasCrCard),
		IsActiveMember:  boolFeature(customer.IsActiveMember),
		EstimatedSalary: customer.EstimatedSalary.InexactFloat64(),
		Geography:       customer.Geography,
		Gender:          customer.Gender,
	}
}

// Fingerprint returns a deterministic cache key for the vector. Encoding goes
// through a map so keys are emitted in sorted order regardless of field
// declaration order.
func (f FeatureVector) Fingerprint() string {
	canonical := map[string]interface{}{
		"credit_score":     f.CreditScore,
		"age":              f.Age,
		"tenure":           f.Tenure,
		"balance":          f.Balance,
		"num_of_products":  f.NumOfProducts,
		"has_cr_card":      f.HasCrCard,
		"is_active_member": f.IsActiveMember,
		"estimated_salary": f.EstimatedSalary,
		"geography":        f.Geography,
		"gender":           f.Gender,
	}
	payload, _ := json.Marshal(canonical)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func boolFeature(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
