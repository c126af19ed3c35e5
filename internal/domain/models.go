package domain

import (
	"fmt"
	"time"
)

// Risk factor tags emitted by the interpretation engine.
const (
	RiskFactorHighGlucose        = "High Glucose Level"
	RiskFactorPrediabeticGlucose = "Prediabetic Glucose Level"
	RiskFactorObesity            = "Obesity (High BMI)"
	RiskFactorOverweight         = "Overweight"
	RiskFactorHighBloodPressure  = "High Blood Pressure"
	RiskFactorElevatedBP         = "Elevated Blood Pressure"
	RiskFactorAgeOver45          = "Age over 45"
	RiskFactorHypertensionDx     = "Existing Hypertension Diagnosis"

	// RiskFactorNone is the sentinel emitted when no other factor applies.
	RiskFactorNone = "No major risk factors identified from the provided data."
)

// InterpretationStatement is a rendered explanation tied to one metric's
// category and its literal observed value.
type InterpretationStatement struct {
	Metric   string `json:"metric"`
	Value    string `json:"value"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

// RiskFactor is a short tag denoting one elevated-risk condition.
type RiskFactor string

// Interpretation holds the ordered output of the clinical rule engine for a
// single evaluation. Statements keep metric order (glucose, BMI, blood
// pressure, age); risk factors append the hypertension-diagnosis tag last.
type Interpretation struct {
	Statements  []InterpretationStatement `json:"statements"`
	RiskFactors []RiskFactor              `json:"risk_factors"`
}

// PredictionResult is the outcome of the external classification model.
// Confidence is nil when the model exposes no calibrated probability.
type PredictionResult struct {
	Label      PredictionLabel `json:"label"`
	Confidence *float64        `json:"confidence,omitempty"`
}

// ConfidenceDisplay renders the confidence as a percentage with two decimal
// places, or "N/A" when the model exposed no probability.
func (p *PredictionResult) ConfidenceDisplay() string {
	if p.Confidence == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f%%", *p.Confidence*100)
}

// Validate ensures the prediction result is usable for reporting.
func (p *PredictionResult) Validate() error {
	if !p.Label.IsValid() {
		return fmt.Errorf("prediction result validation: %w", ErrInvalidPredictionLabel)
	}
	if p.Confidence != nil && (*p.Confidence < 0 || *p.Confidence > 1) {
		return NewValidationError("confidence", "must be within [0, 1]", *p.Confidence)
	}
	return nil
}

// EvaluationRecord is a stored evaluation outcome for audit history. The
// compiled report document is never persisted; only the inputs and the
// derived interpretation are.
type EvaluationRecord struct {
	ID               string          `json:"id"`
	RequestID        string          `json:"request_id,omitempty"`
	Metrics          PatientMetrics  `json:"metrics"`
	Label            PredictionLabel `json:"label"`
	Confidence       *float64        `json:"confidence,omitempty"`
	RiskFactors      []RiskFactor    `json:"risk_factors"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Validate ensures the record meets storage requirements.
func (r *EvaluationRecord) Validate() error {
	if r.ID == "" {
		return NewValidationError("id", "is required", r.ID)
	}
	if !r.Label.IsValid() {
		return fmt.Errorf("evaluation record validation: %w", ErrInvalidPredictionLabel)
	}
	return nil
}
