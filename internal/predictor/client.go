package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const predictPath = "/predict"

// ClientOptions parameterise the model service client.
type ClientOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client scores customers against the churn model service over HTTP.
type Client struct {
	opts    ClientOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs a model service client.
func NewClient(opts ClientOptions, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:8000/api"
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "predictor_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type predictResponse struct {
	ChurnProbability  float64         `json:"churn_probability"`
	FeatureImportance []FeatureWeight `json:"feature_importance"`
	ErrorMessage      string          `json:"error"`
}

// Predict posts the feature vector and returns the scored probability with
// ranked importances.
func (c *Client) Predict(ctx context.Context, features FeatureVector) (Result, error) {
	body, err := json.Marshal(features)
	if err != nil {
		return Result{}, &Error{Err: fmt.Errorf("marshal features: %w", err)}
	}

	endpoint := c.baseURL + predictPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, &Error{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "churnwatcher/1.0")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, &Error{Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &Error{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, &Error{Err: fmt.Errorf("model service status %d: %s", resp.StatusCode, truncate(payload, 256))}
	}

	var parsed predictResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return Result{}, &Error{Err: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.ErrorMessage != "" {
		return Result{}, &Error{Err: fmt.Errorf("model service error: %s", parsed.ErrorMessage)}
	}
	if parsed.ChurnProbability < 0 || parsed.ChurnProbability > 1 {
		return Result{}, &Error{Err: fmt.Errorf("probability %f out of range", parsed.ChurnProbability)}
	}

	return Result{
		Probability:       parsed.ChurnProbability,
		FeatureImportance: parsed.FeatureImportance,
	}, nil
}

func truncate(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}

var _ Predictor = (*Client)(nil)
