// Package ml provides an HTTP client for the model service. The service owns
// gradient-boosted model training and inference; this side only ships feature
// matrices across and reads probabilities back.
package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/keiba-engine/internal/config"
	"github.com/yourusername/keiba-engine/internal/metrics"
)

// Model predicts win probabilities for rows of the feature matrix. Values
// returned are aligned with the input rows.
type Model interface {
	PredictBatch(ctx context.Context, featureNames []string, rows [][]float64) ([]float64, error)
}

// HTTPClient talks to the model service over HTTP JSON
type HTTPClient struct {
	client  *http.Client
	baseURL string
	logger  *logrus.Logger
}

// NewHTTPClient creates a new HTTP client for the model service
func NewHTTPClient(cfg *config.ModelServiceConfig, logger *logrus.Logger) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		},
		baseURL: cfg.HTTPAddress,
		logger:  logger,
	}
}

// PredictRequest represents a batch prediction payload
type PredictRequest struct {
	FeatureNames []string    `json:"feature_names"`
	Rows         [][]float64 `json:"rows"`
}

// PredictResponse represents batch prediction results
type PredictResponse struct {
	Probabilities []float64 `json:"probabilities"`
	ModelVersion  string    `json:"model_version"`
}

// PredictBatch sends a feature matrix and returns per-row win probabilities
func (c *HTTPClient) PredictBatch(ctx context.Context, featureNames []string, rows [][]float64) ([]float64, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyBatch
	}
	start := time.Now()

	jsonData, err := json.Marshal(PredictRequest{FeatureNames: featureNames, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/predict", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.ModelRequestsTotal.WithLabelValues("predict", "network_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		metrics.ModelRequestsTotal.WithLabelValues("predict", "http_error").Inc()
		return nil, fmt.Errorf("prediction failed with status %d: %s", resp.StatusCode, string(body))
	}

	var predResp PredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&predResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(predResp.Probabilities) != len(rows) {
		return nil, fmt.Errorf("model returned %d probabilities for %d rows", len(predResp.Probabilities), len(rows))
	}

	c.logger.WithFields(logrus.Fields{
		"rows":          len(rows),
		"model_version": predResp.ModelVersion,
		"duration":      time.Since(start),
	}).Debug("Batch prediction completed")

	metrics.ModelRequestsTotal.WithLabelValues("predict", "success").Inc()
	return predResp.Probabilities, nil
}

// TrainRequest represents a training submission payload
type TrainRequest struct {
	FeatureNames []string    `json:"feature_names"`
	Rows         [][]float64 `json:"rows"`
	Targets      []float64   `json:"targets"`
}

// TrainResponse represents a training submission response
type TrainResponse struct {
	JobID       string    `json:"job_id"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// SubmitTraining ships a labelled feature matrix to the model service and
// returns the training job id.
func (c *HTTPClient) SubmitTraining(ctx context.Context, featureNames []string, rows [][]float64, targets []float64) (*TrainResponse, error) {
	if len(rows) != len(targets) {
		return nil, fmt.Errorf("rows and targets length mismatch: %d != %d", len(rows), len(targets))
	}
	start := time.Now()

	jsonData, err := json.Marshal(TrainRequest{FeatureNames: featureNames, Rows: rows, Targets: targets})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/models/train", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.ModelRequestsTotal.WithLabelValues("train", "network_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		metrics.ModelRequestsTotal.WithLabelValues("train", "http_error").Inc()
		return nil, fmt.Errorf("training request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var trainResp TrainResponse
	if err := json.NewDecoder(resp.Body).Decode(&trainResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"job_id":   trainResp.JobID,
		"rows":     len(rows),
		"duration": time.Since(start),
	}).Info("Training job submitted")

	metrics.ModelRequestsTotal.WithLabelValues("train", "success").Inc()
	return &trainResp, nil
}

// HealthCheck verifies the model service is reachable and healthy
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrModelServiceUnavailable, resp.StatusCode)
	}
	return nil
}

// Close releases idle connections
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
