// Package domain contains core business entities and types for diabetes risk
// evaluation: patient metrics, clinical category buckets, prediction outcomes
// and the interpretation produced from them.
//
// Threshold values follow WHO guidance for fasting glucose and the
// ACC/AHA 2017 staging for blood pressure.
package domain

import (
	"errors"
	"fmt"
)

// GlucoseCategory represents the fasting-glucose bucket a reading falls into.
type GlucoseCategory string

const (
	GlucoseNormal      GlucoseCategory = "NORMAL"
	GlucosePrediabetic GlucoseCategory = "PREDIABETIC"
	GlucoseDiabetic    GlucoseCategory = "DIABETIC"
)

// BMICategory represents the body-mass-index bucket.
type BMICategory string

const (
	BMINormal     BMICategory = "NORMAL"
	BMIOverweight BMICategory = "OVERWEIGHT"
	BMIObese      BMICategory = "OBESE"
)

// BloodPressureCategory represents the blood-pressure stage.
type BloodPressureCategory string

const (
	BloodPressureNormal BloodPressureCategory = "NORMAL"
	BloodPressureStage1 BloodPressureCategory = "STAGE_1"
	BloodPressureStage2 BloodPressureCategory = "STAGE_2"
)

// AgeCategory is set only when age crosses the elevated-risk threshold.
type AgeCategory string

const (
	AgeElevatedRisk AgeCategory = "ELEVATED_RISK"
)

// PredictionLabel is the binary outcome of the external classification model.
type PredictionLabel string

const (
	PredictionPositive PredictionLabel = "POSITIVE"
	PredictionNegative PredictionLabel = "NEGATIVE"
)

// DiagnosticLabel is the contextual prior diagnosis supplied with the metrics.
// It is a model feature only; the clinical rules never read it.
type DiagnosticLabel string

const (
	DiagnosticNormal      DiagnosticLabel = "Normal"
	DiagnosticPrediabetes DiagnosticLabel = "Prediabetes"
	DiagnosticDiabetes    DiagnosticLabel = "Diabetes"
)

// Validation errors for patient data integrity.
var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidPredictionLabel = errors.New("invalid prediction label")
	ErrInvalidDiagnosticLabel = errors.New("invalid diagnostic label")
)

// IsValid validates the glucose category.
func (c GlucoseCategory) IsValid() bool {
	switch c {
	case GlucoseNormal, GlucosePrediabetic, GlucoseDiabetic:
		return true
	default:
		return false
	}
}

// String returns the string representation of the category.
func (c GlucoseCategory) String() string {
	return string(c)
}

// IsValid validates the BMI category.
func (c BMICategory) IsValid() bool {
	switch c {
	case BMINormal, BMIOverweight, BMIObese:
		return true
	default:
		return false
	}
}

// String returns the string representation of the category.
func (c BMICategory) String() string {
	return string(c)
}

// IsValid validates the blood-pressure category.
func (c BloodPressureCategory) IsValid() bool {
	switch c {
	case BloodPressureNormal, BloodPressureStage1, BloodPressureStage2:
		return true
	default:
		return false
	}
}

// String returns the string representation of the category.
func (c BloodPressureCategory) String() string {
	return string(c)
}

// IsValid validates the age category.
func (c AgeCategory) IsValid() bool {
	return c == AgeElevatedRisk
}

// String returns the string representation of the category.
func (c AgeCategory) String() string {
	return string(c)
}

// IsValid validates the prediction label.
func (l PredictionLabel) IsValid() bool {
	switch l {
	case PredictionPositive, PredictionNegative:
		return true
	default:
		return false
	}
}

// String returns the string representation of the label.
func (l PredictionLabel) String() string {
	return string(l)
}

// DisplayText returns the label rendered for clinicians and patients.
func (l PredictionLabel) DisplayText() string {
	if l == PredictionPositive {
		return "High Likelihood of Diabetes"
	}
	return "Low Likelihood of Diabetes"
}

// IsValid validates the diagnostic label.
func (l DiagnosticLabel) IsValid() bool {
	switch l {
	case DiagnosticNormal, DiagnosticPrediabetes, DiagnosticDiabetes:
		return true
	default:
		return false
	}
}

// String returns the string representation of the label.
func (l DiagnosticLabel) String() string {
	return string(l)
}

// FeatureValue returns the numeric encoding the model was trained on.
func (l DiagnosticLabel) FeatureValue() float64 {
	switch l {
	case DiagnosticPrediabetes:
		return 1
	case DiagnosticDiabetes:
		return 2
	default:
		return 0
	}
}

// PatientMetrics is the immutable per-evaluation input. All numeric fields
// must be finite and within the physiological bounds enforced by Validate;
// the interpretation engine assumes validation already happened.
type PatientMetrics struct {
	Age             int             `json:"age" binding:"required"`
	PulseRate       int             `json:"pulse_rate" binding:"required"`
	SystolicBP      int             `json:"systolic_bp" binding:"required"`
	DiastolicBP     int             `json:"diastolic_bp" binding:"required"`
	Glucose         int             `json:"glucose" binding:"required"`
	Height          float64         `json:"height" binding:"required"`
	Weight          float64         `json:"weight" binding:"required"`
	BMI             float64         `json:"bmi" binding:"required"`
	Hypertensive    bool            `json:"hypertensive"`
	DiagnosticLabel DiagnosticLabel `json:"diagnostic_label"`
}

// metricBound is an inclusive physiological range for one metric.
type metricBound struct {
	field string
	min   float64
	max   float64
}

// Physiological bounds mirror the intake form's accepted ranges. Values
// outside these are rejected before any clinical rule runs.
var metricBounds = []metricBound{
	{"age", 1, 120},
	{"pulse_rate", 30, 200},
	{"systolic_bp", 80, 250},
	{"diastolic_bp", 50, 150},
	{"glucose", 50, 500},
	{"height", 100, 250},
	{"weight", 30, 200},
	{"bmi", 10, 60},
}

// Validate checks every numeric field against its physiological bounds and
// names the offending field and bound on failure. The diagnostic label
// defaults to Normal when empty.
func (m *PatientMetrics) Validate() error {
	values := map[string]float64{
		"age":          float64(m.Age),
		"pulse_rate":   float64(m.PulseRate),
		"systolic_bp":  float64(m.SystolicBP),
		"diastolic_bp": float64(m.DiastolicBP),
		"glucose":      float64(m.Glucose),
		"height":       m.Height,
		"weight":       m.Weight,
		"bmi":          m.BMI,
	}

	for _, b := range metricBounds {
		v := values[b.field]
		if v < b.min || v > b.max {
			return NewValidationError(b.field,
				fmt.Sprintf("must be between %g and %g", b.min, b.max), v)
		}
	}

	if m.DiagnosticLabel != "" && !m.DiagnosticLabel.IsValid() {
		return fmt.Errorf("patient metrics validation: %w", ErrInvalidDiagnosticLabel)
	}

	return nil
}

// MetricField is one named field of the patient metrics, in report order.
type MetricField struct {
	Name    string
	Display string
	Feature float64
}

// Fields returns the ten metric fields in the fixed order shared by the
// model's feature vector and the report's patient-information table.
func (m *PatientMetrics) Fields() []MetricField {
	hypertensive := 0.0
	hypertensiveDisplay := "No"
	if m.Hypertensive {
		hypertensive = 1.0
		hypertensiveDisplay = "Yes"
	}

	label := m.DiagnosticLabel
	if label == "" {
		label = DiagnosticNormal
	}

	return []MetricField{
		{"age", fmt.Sprintf("%d", m.Age), float64(m.Age)},
		{"pulse_rate", fmt.Sprintf("%d", m.PulseRate), float64(m.PulseRate)},
		{"systolic_bp", fmt.Sprintf("%d", m.SystolicBP), float64(m.SystolicBP)},
		{"diastolic_bp", fmt.Sprintf("%d", m.DiastolicBP), float64(m.DiastolicBP)},
		{"glucose", fmt.Sprintf("%d", m.Glucose), float64(m.Glucose)},
		{"height", fmt.Sprintf("%.1f", m.Height), m.Height},
		{"weight", fmt.Sprintf("%.1f", m.Weight), m.Weight},
		{"bmi", fmt.Sprintf("%.2f", m.BMI), m.BMI},
		{"hypertensive", hypertensiveDisplay, hypertensive},
		{"diagnostic_label", label.String(), label.FeatureValue()},
	}
}

// FeatureVector returns the model input in the fixed named order.
func (m *PatientMetrics) FeatureVector() []float64 {
	fields := m.Fields()
	features := make([]float64, len(fields))
	for i, f := range fields {
		features[i] = f.Feature
	}
	return features
}
