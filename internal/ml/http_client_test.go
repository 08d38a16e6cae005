package ml

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/keiba-engine/internal/config"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newTestClient(serverURL string) *HTTPClient {
	return NewHTTPClient(&config.ModelServiceConfig{
		HTTPAddress:           serverURL,
		RequestTimeoutSeconds: 5,
	}, testLogger())
}

func TestPredictBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/predict", r.URL.Path)

		var req PredictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Rows, 2)

		json.NewEncoder(w).Encode(PredictResponse{
			Probabilities: []float64{0.7, 0.3},
			ModelVersion:  "v3",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	defer client.Close()

	probs, err := client.PredictBatch(context.Background(),
		[]string{"a", "b"}, [][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.7, 0.3}, probs)
}

func TestPredictBatchEmpty(t *testing.T) {
	client := newTestClient("http://unused")
	_, err := client.PredictBatch(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestPredictBatchLengthMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(PredictResponse{Probabilities: []float64{0.5}})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.PredictBatch(context.Background(),
		[]string{"a"}, [][]float64{{1}, {2}})
	assert.Error(t, err)
}

func TestPredictBatchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.PredictBatch(context.Background(), []string{"a"}, [][]float64{{1}})
	assert.Error(t, err)
}

func TestPredictBatchConnectionRefused(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1")
	_, err := client.PredictBatch(context.Background(), []string{"a"}, [][]float64{{1}})
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestSubmitTraining(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/models/train", r.URL.Path)

		var req TrainRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Targets, 2)

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(TrainResponse{JobID: "job-1", Status: "queued"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.SubmitTraining(context.Background(),
		[]string{"a"}, [][]float64{{1}, {2}}, []float64{1, 0})
	require.NoError(t, err)
	assert.Equal(t, "job-1", resp.JobID)
}

func TestSubmitTrainingLengthMismatch(t *testing.T) {
	client := newTestClient("http://unused")
	_, err := client.SubmitTraining(context.Background(),
		[]string{"a"}, [][]float64{{1}}, []float64{1, 0})
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	assert.NoError(t, client.HealthCheck(context.Background()))
}

func TestHealthCheckUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	assert.ErrorIs(t, client.HealthCheck(context.Background()), ErrModelServiceUnavailable)
}
