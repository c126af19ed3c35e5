package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diapredict-server/internal/config"
	"github.com/diapredict-server/internal/domain"
	"github.com/diapredict-server/internal/report"
	"github.com/diapredict-server/internal/service"
)

type stubPredictor struct {
	result *domain.PredictionResult
	err    error
}

func (s *stubPredictor) Predict(_ context.Context, _ *domain.PatientMetrics) (*domain.PredictionResult, error) {
	return s.result, s.err
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestServer(t *testing.T, predictor domain.Predictor) *Server {
	t.Helper()

	manager, err := config.NewManager()
	require.NoError(t, err)

	logger := testLogger()
	evaluations := service.NewEvaluationService(logger, predictor, service.NewClinicalRuleEngine(logger), nil)
	clock := report.Clock(func() time.Time {
		return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	})
	compiler := report.NewPDFCompiler(logger, clock)

	return NewServer(manager, logger, evaluations, compiler)
}

func validBody(t *testing.T) *bytes.Reader {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"age":              52,
		"pulse_rate":       78,
		"systolic_bp":      142,
		"diastolic_bp":     88,
		"glucose":          131,
		"height":           168.0,
		"weight":           88.5,
		"bmi":              31.36,
		"hypertensive":     true,
		"diagnostic_label": "Prediabetes",
	})
	require.NoError(t, err)
	return bytes.NewReader(payload)
}

func positiveStub() *stubPredictor {
	confidence := 0.87
	return &stubPredictor{result: &domain.PredictionResult{
		Label:      domain.PredictionPositive,
		Confidence: &confidence,
	}}
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, positiveStub())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestEvaluateEndpoint(t *testing.T) {
	server := newTestServer(t, positiveStub())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/evaluate", validBody(t))
	req.Header.Set("Content-Type", "application/json")
	server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp evaluateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.NotEmpty(t, resp.EvaluationID)
	assert.Equal(t, "POSITIVE", resp.Label)
	assert.Equal(t, "High Likelihood of Diabetes", resp.DisplayText)
	assert.Equal(t, "87.00%", resp.ConfidenceText)
	require.NotNil(t, resp.Interpretation)
	assert.NotEmpty(t, resp.Interpretation.Statements)
	assert.Contains(t, resp.Interpretation.RiskFactors, domain.RiskFactor(domain.RiskFactorHighGlucose))

	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}

func TestEvaluateRejectsOutOfRangeMetrics(t *testing.T) {
	server := newTestServer(t, positiveStub())

	payload, err := json.Marshal(map[string]interface{}{
		"age":          52,
		"pulse_rate":   78,
		"systolic_bp":  142,
		"diastolic_bp": 88,
		"glucose":      900,
		"height":       168.0,
		"weight":       88.5,
		"bmi":          31.36,
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/evaluate", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var apiErr domain.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	assert.Equal(t, domain.ErrCodeValidation, apiErr.Code)
	assert.Contains(t, apiErr.Message, "glucose")
}

func TestEvaluateRejectsMalformedBody(t *testing.T) {
	server := newTestServer(t, positiveStub())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/evaluate", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var apiErr domain.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	assert.Equal(t, domain.ErrCodeValidation, apiErr.Code)
}

func TestEvaluateReportsModelOutage(t *testing.T) {
	predictor := &stubPredictor{err: &domain.ModelError{
		Endpoint: "http://model:9000",
		Err:      errors.New("connection refused"),
	}}
	server := newTestServer(t, predictor)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/evaluate", validBody(t))
	req.Header.Set("Content-Type", "application/json")
	server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadGateway, w.Code)

	var apiErr domain.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	assert.Equal(t, domain.ErrCodeModelUnavailable, apiErr.Code)
}

func TestReportEndpoint(t *testing.T) {
	server := newTestServer(t, positiveStub())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/report", validBody(t))
	req.Header.Set("Content-Type", "application/json")
	server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "diabetes_report_")
	assert.NotEmpty(t, w.Header().Get("X-Evaluation-ID"))

	body := w.Body.Bytes()
	require.Greater(t, len(body), 5)
	assert.Equal(t, "%PDF-", string(body[:5]))
}

func TestGetEvaluationNotFound(t *testing.T) {
	server := newTestServer(t, positiveStub())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/evaluations/missing", nil)
	server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)

	var apiErr domain.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	assert.Equal(t, domain.ErrCodeNotFound, apiErr.Code)
}

func TestListEvaluationsWithoutStore(t *testing.T) {
	server := newTestServer(t, positiveStub())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/evaluations", nil)
	server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
	assert.Contains(t, w.Body.String(), `"total":0`)
}
