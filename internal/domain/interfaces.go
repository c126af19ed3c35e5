package domain

import (
	"context"
)

// Predictor is the boundary to the external classification model. Label 1 at
// the wire maps to PredictionPositive. Implementations must return a
// *ModelError when the model cannot be invoked.
type Predictor interface {
	Predict(ctx context.Context, metrics *PatientMetrics) (*PredictionResult, error)
}

// Interpreter turns validated patient metrics into ordered interpretation
// statements and risk-factor tags. Implementations must be pure: identical
// input yields identical output, with no hidden state.
type Interpreter interface {
	Interpret(metrics *PatientMetrics) *Interpretation
}

// ReportCompiler renders the full report document as an opaque byte stream.
// Either the complete document is returned or a *RenderError; a truncated
// stream is never produced.
type ReportCompiler interface {
	Compile(metrics *PatientMetrics, prediction *PredictionResult, interpretation *Interpretation) ([]byte, error)
}

// EvaluationStore persists evaluation outcomes for audit history.
type EvaluationStore interface {
	Save(ctx context.Context, record *EvaluationRecord) error
	GetByID(ctx context.Context, id string) (*EvaluationRecord, error)
	List(ctx context.Context, limit, offset int) ([]*EvaluationRecord, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}
