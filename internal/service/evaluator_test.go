package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diapredict-server/internal/domain"
)

type fakePredictor struct {
	result *domain.PredictionResult
	err    error
	calls  int
}

func (f *fakePredictor) Predict(_ context.Context, _ *domain.PatientMetrics) (*domain.PredictionResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeStore struct {
	saved   []*domain.EvaluationRecord
	saveErr error
}

func (f *fakeStore) Save(_ context.Context, record *domain.EvaluationRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, record)
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*domain.EvaluationRecord, error) {
	for _, r := range f.saved {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) List(_ context.Context, _, _ int) ([]*domain.EvaluationRecord, error) {
	return f.saved, nil
}

func (f *fakeStore) Count(_ context.Context) (int64, error) {
	return int64(len(f.saved)), nil
}

func (f *fakeStore) Close() error { return nil }

func positivePrediction() *domain.PredictionResult {
	confidence := 0.91
	return &domain.PredictionResult{
		Label:      domain.PredictionPositive,
		Confidence: &confidence,
	}
}

func TestEvaluateHappyPath(t *testing.T) {
	predictor := &fakePredictor{result: positivePrediction()}
	store := &fakeStore{}
	svc := NewEvaluationService(testLogger(), predictor, NewClinicalRuleEngine(testLogger()), store)

	metrics := baselineMetrics()
	metrics.Glucose = 131
	metrics.Age = 50

	result, err := svc.Evaluate(context.Background(), metrics)
	require.NoError(t, err)

	assert.NotEmpty(t, result.EvaluationID)
	assert.Equal(t, domain.PredictionPositive, result.Prediction.Label)
	assert.Equal(t, 1, predictor.calls)

	require.NotNil(t, result.Interpretation)
	assert.Contains(t, result.Interpretation.RiskFactors, domain.RiskFactor(domain.RiskFactorHighGlucose))
	assert.Contains(t, result.Interpretation.RiskFactors, domain.RiskFactor(domain.RiskFactorAgeOver45))

	require.Len(t, store.saved, 1)
	record := store.saved[0]
	assert.Equal(t, result.EvaluationID, record.ID)
	assert.Equal(t, domain.PredictionPositive, record.Label)
	assert.Equal(t, result.Interpretation.RiskFactors, record.RiskFactors)
	assert.False(t, record.CreatedAt.IsZero())
}

func TestEvaluateRejectsOutOfRangeMetrics(t *testing.T) {
	predictor := &fakePredictor{result: positivePrediction()}
	svc := NewEvaluationService(testLogger(), predictor, NewClinicalRuleEngine(testLogger()), nil)

	metrics := baselineMetrics()
	metrics.Glucose = 900

	_, err := svc.Evaluate(context.Background(), metrics)
	require.Error(t, err)

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "glucose", validationErr.Field)
	assert.Zero(t, predictor.calls, "model must not be called for invalid input")
}

func TestEvaluatePropagatesModelFailure(t *testing.T) {
	modelErr := &domain.ModelError{Endpoint: "http://model:8080", Err: errors.New("connection refused")}
	predictor := &fakePredictor{err: modelErr}
	svc := NewEvaluationService(testLogger(), predictor, NewClinicalRuleEngine(testLogger()), nil)

	_, err := svc.Evaluate(context.Background(), baselineMetrics())
	require.Error(t, err)

	var got *domain.ModelError
	assert.ErrorAs(t, err, &got)
}

func TestEvaluateSurvivesStorageFailure(t *testing.T) {
	predictor := &fakePredictor{result: positivePrediction()}
	store := &fakeStore{saveErr: errors.New("disk full")}
	svc := NewEvaluationService(testLogger(), predictor, NewClinicalRuleEngine(testLogger()), store)

	result, err := svc.Evaluate(context.Background(), baselineMetrics())
	require.NoError(t, err, "storage failure must not fail the evaluation")
	assert.NotNil(t, result)
}

func TestEvaluateWithoutStore(t *testing.T) {
	predictor := &fakePredictor{result: positivePrediction()}
	svc := NewEvaluationService(testLogger(), predictor, NewClinicalRuleEngine(testLogger()), nil)

	result, err := svc.Evaluate(context.Background(), baselineMetrics())
	require.NoError(t, err)
	assert.NotNil(t, result)

	_, err = svc.GetEvaluation(context.Background(), result.EvaluationID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListEvaluationsReportsTotal(t *testing.T) {
	predictor := &fakePredictor{result: positivePrediction()}
	store := &fakeStore{}
	svc := NewEvaluationService(testLogger(), predictor, NewClinicalRuleEngine(testLogger()), store)

	for i := 0; i < 2; i++ {
		_, err := svc.Evaluate(context.Background(), baselineMetrics())
		require.NoError(t, err)
	}

	records, total, err := svc.ListEvaluations(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.EqualValues(t, 2, total)
}

func TestListEvaluationsWithoutStore(t *testing.T) {
	predictor := &fakePredictor{result: positivePrediction()}
	svc := NewEvaluationService(testLogger(), predictor, NewClinicalRuleEngine(testLogger()), nil)

	records, total, err := svc.ListEvaluations(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, total)
}

func TestEvaluateCarriesRequestID(t *testing.T) {
	predictor := &fakePredictor{result: positivePrediction()}
	store := &fakeStore{}
	svc := NewEvaluationService(testLogger(), predictor, NewClinicalRuleEngine(testLogger()), store)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-123")
	_, err := svc.Evaluate(ctx, baselineMetrics())
	require.NoError(t, err)

	require.Len(t, store.saved, 1)
	assert.Equal(t, "req-123", store.saved[0].RequestID)
}
