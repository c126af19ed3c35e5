package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/diapredict-server/internal/domain"
)

// EvaluationResult is the complete outcome of one patient evaluation.
type EvaluationResult struct {
	EvaluationID   string                   `json:"evaluation_id"`
	Metrics        *domain.PatientMetrics   `json:"metrics"`
	Prediction     *domain.PredictionResult `json:"prediction"`
	Interpretation *domain.Interpretation   `json:"interpretation"`
	ProcessingTime time.Duration            `json:"processing_time"`
}

// EvaluationService orchestrates a full evaluation: validate the patient
// metrics, obtain a model prediction, interpret the raw metrics, and
// persist the outcome for audit history.
type EvaluationService struct {
	logger      *logrus.Logger
	predictor   domain.Predictor
	interpreter domain.Interpreter
	store       domain.EvaluationStore
}

// NewEvaluationService creates an evaluation service. The store may be nil,
// in which case outcomes are not persisted.
func NewEvaluationService(
	logger *logrus.Logger,
	predictor domain.Predictor,
	interpreter domain.Interpreter,
	store domain.EvaluationStore,
) *EvaluationService {
	return &EvaluationService{
		logger:      logger,
		predictor:   predictor,
		interpreter: interpreter,
		store:       store,
	}
}

// Evaluate runs the full evaluation workflow for one patient reading.
func (s *EvaluationService) Evaluate(ctx context.Context, metrics *domain.PatientMetrics) (*EvaluationResult, error) {
	startTime := time.Now()

	if err := metrics.Validate(); err != nil {
		return nil, fmt.Errorf("invalid patient metrics: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"age":     metrics.Age,
		"glucose": metrics.Glucose,
		"bmi":     metrics.BMI,
	}).Info("Starting patient evaluation")

	prediction, err := s.predictor.Predict(ctx, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain prediction: %w", err)
	}
	if err := prediction.Validate(); err != nil {
		return nil, fmt.Errorf("model returned unusable prediction: %w", err)
	}

	interpretation := s.interpreter.Interpret(metrics)

	result := &EvaluationResult{
		EvaluationID:   uuid.New().String(),
		Metrics:        metrics,
		Prediction:     prediction,
		Interpretation: interpretation,
		ProcessingTime: time.Since(startTime),
	}

	s.persist(ctx, result)

	s.logger.WithFields(logrus.Fields{
		"evaluation_id":   result.EvaluationID,
		"label":           prediction.Label,
		"risk_factors":    len(interpretation.RiskFactors),
		"processing_time": result.ProcessingTime,
	}).Info("Patient evaluation completed")

	return result, nil
}

// GetEvaluation retrieves a stored evaluation by ID.
func (s *EvaluationService) GetEvaluation(ctx context.Context, id string) (*domain.EvaluationRecord, error) {
	if s.store == nil {
		return nil, domain.ErrNotFound
	}
	return s.store.GetByID(ctx, id)
}

// ListEvaluations returns a page of stored evaluations, newest first,
// together with the total number of records in the store.
func (s *EvaluationService) ListEvaluations(ctx context.Context, limit, offset int) ([]*domain.EvaluationRecord, int64, error) {
	if s.store == nil {
		return nil, 0, nil
	}
	records, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// persist writes the evaluation record. Storage failures are logged but do
// not fail the evaluation: the caller already has a complete result.
func (s *EvaluationService) persist(ctx context.Context, result *EvaluationResult) {
	if s.store == nil {
		return
	}

	record := &domain.EvaluationRecord{
		ID:               result.EvaluationID,
		RequestID:        requestIDFromContext(ctx),
		Metrics:          *result.Metrics,
		Label:            result.Prediction.Label,
		Confidence:       result.Prediction.Confidence,
		RiskFactors:      result.Interpretation.RiskFactors,
		ProcessingTimeMs: result.ProcessingTime.Milliseconds(),
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.store.Save(ctx, record); err != nil {
		s.logger.WithFields(logrus.Fields{
			"evaluation_id": result.EvaluationID,
			"error":         err,
		}).Error("Failed to persist evaluation record")
	}
}

type contextKey string

// RequestIDKey carries the correlation ID assigned by the HTTP layer.
const RequestIDKey contextKey = "request_id"

func requestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
