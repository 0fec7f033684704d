package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"churn-risk-alerts/internal/storage"
)

func testCustomer() storage.Customer {
	return storage.Customer{
		ID:              15634602,
		Surname:         "Hargrave",
		CreditScore:     619,
		Geography:       "France",
		Gender:          "Female",
		Age:             42,
		Tenure:          2,
		Balance:         decimal.NewFromInt(0),
		NumOfProducts:   1,
		HasCrCard:       true,
		IsActiveMember:  true,
		EstimatedSalary: decimal.NewFromFloat(101348.88),
	}
}

func TestClientPredictSuccess(t *testing.T) {
	var received FeatureVector
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/predict") {
			t.Fatalf("path should end with /predict, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"churn_probability": 0.83,
			"feature_importance": []map[string]any{
				{"name": "age", "weight": 0.31},
				{"name": "balance", "weight": 0.22},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(ClientOptions{BaseURL: srv.URL, Timeout: time.Second}, zerolog.Nop())
	result, err := client.Predict(context.Background(), FeaturesFromCustomer(testCustomer()))
	if err != nil {
		t.Fatalf("Predict should succeed: %v", err)
	}

	if result.Probability != 0.83 {
		t.Fatalf("probability = %f", result.Probability)
	}
	if len(result.FeatureImportance) != 2 || result.FeatureImportance[0].Name != "age" {
		t.Fatalf("unexpected importances %#v", result.FeatureImportance)
	}
	if received.Age != 42 || received.Geography != "France" {
		t.Fatalf("feature payload mangled: %#v", received)
	}
}

func TestClientPredictServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not trained", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(ClientOptions{BaseURL: srv.URL, Timeout: time.Second}, zerolog.Nop())
	_, err := client.Predict(context.Background(), FeaturesFromCustomer(testCustomer()))
	if err == nil {
		t.Fatal("expected error on 500")
	}
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got %T", err)
	}
}

func TestClientPredictOutOfRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"churn_probability": 1.7})
	}))
	defer srv.Close()

	client := NewClient(ClientOptions{BaseURL: srv.URL, Timeout: time.Second}, zerolog.Nop())
	if _, err := client.Predict(context.Background(), FeaturesFromCustomer(testCustomer())); err == nil {
		t.Fatal("expected error for probability outside [0,1]")
	}
}
