package model

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diapredict-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testMetrics() *domain.PatientMetrics {
	return &domain.PatientMetrics{
		Age:             52,
		PulseRate:       78,
		SystolicBP:      142,
		DiastolicBP:     88,
		Glucose:         131,
		Height:          168.0,
		Weight:          88.5,
		BMI:             31.36,
		Hypertensive:    true,
		DiagnosticLabel: domain.DiagnosticPrediabetes,
	}
}

func newTestPredictor(t *testing.T, serverURL string) *HTTPPredictor {
	t.Helper()
	predictor, err := NewHTTPPredictor(Config{BaseURL: serverURL}, testLogger())
	require.NoError(t, err)
	return predictor
}

func TestPredictPositive(t *testing.T) {
	var gotFeatures []float64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)

		var req predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotFeatures = req.Features

		prob := 0.87
		json.NewEncoder(w).Encode(predictResponse{Label: 1, Probability: &prob})
	}))
	defer server.Close()

	predictor := newTestPredictor(t, server.URL)
	result, err := predictor.Predict(context.Background(), testMetrics())
	require.NoError(t, err)

	assert.Equal(t, domain.PredictionPositive, result.Label)
	require.NotNil(t, result.Confidence)
	assert.InDelta(t, 0.87, *result.Confidence, 1e-9)

	expected := testMetrics().FeatureVector()
	assert.Equal(t, expected, gotFeatures, "request must carry the fixed-order feature vector")
}

func TestPredictNegativeConfidenceComplement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prob := 0.2
		json.NewEncoder(w).Encode(predictResponse{Label: 0, Probability: &prob})
	}))
	defer server.Close()

	predictor := newTestPredictor(t, server.URL)
	result, err := predictor.Predict(context.Background(), testMetrics())
	require.NoError(t, err)

	assert.Equal(t, domain.PredictionNegative, result.Label)
	require.NotNil(t, result.Confidence)
	assert.InDelta(t, 0.8, *result.Confidence, 1e-9, "negative confidence is the complement of the positive probability")
}

func TestPredictWithoutProbability(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(predictResponse{Label: 1})
	}))
	defer server.Close()

	predictor := newTestPredictor(t, server.URL)
	result, err := predictor.Predict(context.Background(), testMetrics())
	require.NoError(t, err)

	assert.Equal(t, domain.PredictionPositive, result.Label)
	assert.Nil(t, result.Confidence)
	assert.Equal(t, "N/A", result.ConfidenceDisplay())
}

func TestPredictCachesIdenticalFeatureVectors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		prob := 0.6
		json.NewEncoder(w).Encode(predictResponse{Label: 1, Probability: &prob})
	}))
	defer server.Close()

	predictor := newTestPredictor(t, server.URL)

	first, err := predictor.Predict(context.Background(), testMetrics())
	require.NoError(t, err)
	second, err := predictor.Predict(context.Background(), testMetrics())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second call must be served from cache")
	assert.Equal(t, 1, predictor.CacheLen())
}

func TestPredictUnknownLabel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(predictResponse{Label: 7})
	}))
	defer server.Close()

	predictor := newTestPredictor(t, server.URL)
	_, err := predictor.Predict(context.Background(), testMetrics())
	require.Error(t, err)

	var modelErr *domain.ModelError
	assert.ErrorAs(t, err, &modelErr)
}

func TestPredictServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model backend down", http.StatusBadGateway)
	}))
	defer server.Close()

	predictor := newTestPredictor(t, server.URL)
	_, err := predictor.Predict(context.Background(), testMetrics())
	require.Error(t, err)

	var modelErr *domain.ModelError
	require.ErrorAs(t, err, &modelErr)
	assert.Contains(t, modelErr.Error(), "502")
}

func TestNewHTTPPredictorRequiresBaseURL(t *testing.T) {
	_, err := NewHTTPPredictor(Config{}, testLogger())
	require.Error(t, err)
}
