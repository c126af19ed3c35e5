package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/diapredict-server/internal/domain"
)

// ClinicalRuleEngine classifies five independent clinical signals into fixed,
// non-overlapping category buckets and folds the results into a risk-factor
// list. It is deterministic and stateless: identical metrics always yield
// identical statements and risk factors.
type ClinicalRuleEngine struct {
	logger *logrus.Logger
	rules  []clinicalRule
}

// clinicalRule classifies one metric. The evaluator returns the statement for
// the metric (nil when the metric produces none, as for age under threshold)
// and any risk factors it contributes.
type clinicalRule struct {
	Metric    string
	Evaluator func(m *domain.PatientMetrics) (*domain.InterpretationStatement, []domain.RiskFactor)
}

// NewClinicalRuleEngine creates a rule engine with the fixed evaluation
// order: glucose, BMI, blood pressure, age, hypertensive flag.
func NewClinicalRuleEngine(logger *logrus.Logger) *ClinicalRuleEngine {
	e := &ClinicalRuleEngine{logger: logger}
	e.rules = []clinicalRule{
		{"glucose", evaluateGlucose},
		{"bmi", evaluateBMI},
		{"blood_pressure", evaluateBloodPressure},
		{"age", evaluateAge},
		{"hypertensive", evaluateHypertensiveFlag},
	}
	return e
}

// Interpret runs every rule in order and collects statements and risk
// factors. When no rule contributes a risk factor, the sentinel tag is
// emitted instead of an empty list. Metrics are assumed validated.
func (e *ClinicalRuleEngine) Interpret(metrics *domain.PatientMetrics) *domain.Interpretation {
	statements := make([]domain.InterpretationStatement, 0, len(e.rules))
	riskFactors := make([]domain.RiskFactor, 0, len(e.rules))

	for _, rule := range e.rules {
		statement, factors := rule.Evaluator(metrics)
		if statement != nil {
			statements = append(statements, *statement)
		}
		riskFactors = append(riskFactors, factors...)
	}

	if len(riskFactors) == 0 {
		riskFactors = append(riskFactors, domain.RiskFactorNone)
	}

	e.logger.WithFields(logrus.Fields{
		"statements":   len(statements),
		"risk_factors": len(riskFactors),
	}).Debug("Completed clinical interpretation")

	return &domain.Interpretation{
		Statements:  statements,
		RiskFactors: riskFactors,
	}
}

// evaluateGlucose buckets fasting glucose: <100 normal, 100-125 prediabetic,
// >=126 diabetic.
func evaluateGlucose(m *domain.PatientMetrics) (*domain.InterpretationStatement, []domain.RiskFactor) {
	value := fmt.Sprintf("%d mg/dL", m.Glucose)

	switch {
	case m.Glucose >= 126:
		return &domain.InterpretationStatement{
			Metric:   "glucose",
			Value:    value,
			Category: domain.GlucoseDiabetic.String(),
			Message: fmt.Sprintf("**Glucose Level (%d mg/dL):** This level is in the diabetic range. "+
				"It is highly recommended to consult a healthcare professional for confirmation and management.", m.Glucose),
		}, []domain.RiskFactor{domain.RiskFactorHighGlucose}
	case m.Glucose >= 100:
		return &domain.InterpretationStatement{
			Metric:   "glucose",
			Value:    value,
			Category: domain.GlucosePrediabetic.String(),
			Message: fmt.Sprintf("**Glucose Level (%d mg/dL):** This is in the prediabetic range. "+
				"Lifestyle modifications, including diet and exercise, are advised to prevent progression to diabetes.", m.Glucose),
		}, []domain.RiskFactor{domain.RiskFactorPrediabeticGlucose}
	default:
		return &domain.InterpretationStatement{
			Metric:   "glucose",
			Value:    value,
			Category: domain.GlucoseNormal.String(),
			Message: fmt.Sprintf("**Glucose Level (%d mg/dL):** This is within the normal range. "+
				"Maintain a healthy lifestyle.", m.Glucose),
		}, nil
	}
}

// evaluateBMI buckets body-mass index: <25 normal, 25-29.99 overweight,
// >=30 obese.
func evaluateBMI(m *domain.PatientMetrics) (*domain.InterpretationStatement, []domain.RiskFactor) {
	value := fmt.Sprintf("%.2f kg/m²", m.BMI)

	switch {
	case m.BMI >= 30:
		return &domain.InterpretationStatement{
			Metric:   "bmi",
			Value:    value,
			Category: domain.BMIObese.String(),
			Message: fmt.Sprintf("**BMI (%.2f kg/m²):** This is in the obese range, which is a significant "+
				"risk factor for Type 2 Diabetes. Weight management is strongly advised.", m.BMI),
		}, []domain.RiskFactor{domain.RiskFactorObesity}
	case m.BMI >= 25:
		return &domain.InterpretationStatement{
			Metric:   "bmi",
			Value:    value,
			Category: domain.BMIOverweight.String(),
			Message: fmt.Sprintf("**BMI (%.2f kg/m²):** This is in the overweight range. A healthy diet "+
				"and regular physical activity are recommended to reduce diabetes risk.", m.BMI),
		}, []domain.RiskFactor{domain.RiskFactorOverweight}
	default:
		return &domain.InterpretationStatement{
			Metric:   "bmi",
			Value:    value,
			Category: domain.BMINormal.String(),
			Message: fmt.Sprintf("**BMI (%.2f kg/m²):** The patient's BMI is in the normal range. "+
				"This is excellent for metabolic health.", m.BMI),
		}, nil
	}
}

// evaluateBloodPressure stages the reading across both axes. Stage 2
// (systolic>=140 OR diastolic>=90) is checked before Stage 1 so the
// higher-severity bucket wins when one axis sits in each range.
func evaluateBloodPressure(m *domain.PatientMetrics) (*domain.InterpretationStatement, []domain.RiskFactor) {
	value := fmt.Sprintf("%d/%d mmHg", m.SystolicBP, m.DiastolicBP)

	switch {
	case m.SystolicBP >= 140 || m.DiastolicBP >= 90:
		return &domain.InterpretationStatement{
			Metric:   "blood_pressure",
			Value:    value,
			Category: domain.BloodPressureStage2.String(),
			Message: fmt.Sprintf("**Blood Pressure (%d/%d mmHg):** This indicates Hypertension (Stage 2), "+
				"a major risk factor for cardiovascular diseases and associated with diabetes. "+
				"Medical consultation is essential.", m.SystolicBP, m.DiastolicBP),
		}, []domain.RiskFactor{domain.RiskFactorHighBloodPressure}
	case (m.SystolicBP >= 130 && m.SystolicBP <= 139) || (m.DiastolicBP >= 80 && m.DiastolicBP <= 89):
		return &domain.InterpretationStatement{
			Metric:   "blood_pressure",
			Value:    value,
			Category: domain.BloodPressureStage1.String(),
			Message: fmt.Sprintf("**Blood Pressure (%d/%d mmHg):** This indicates Hypertension (Stage 1). "+
				"Monitoring and lifestyle changes are important.", m.SystolicBP, m.DiastolicBP),
		}, []domain.RiskFactor{domain.RiskFactorElevatedBP}
	default:
		return &domain.InterpretationStatement{
			Metric:   "blood_pressure",
			Value:    value,
			Category: domain.BloodPressureNormal.String(),
			Message: fmt.Sprintf("**Blood Pressure (%d/%d mmHg):** Blood pressure is within the normal range.",
				m.SystolicBP, m.DiastolicBP),
		}, nil
	}
}

// evaluateAge produces a statement only when age crosses the single
// elevated-risk threshold of 45 years.
func evaluateAge(m *domain.PatientMetrics) (*domain.InterpretationStatement, []domain.RiskFactor) {
	if m.Age < 45 {
		return nil, nil
	}

	return &domain.InterpretationStatement{
		Metric:   "age",
		Value:    fmt.Sprintf("%d years", m.Age),
		Category: domain.AgeElevatedRisk.String(),
		Message: fmt.Sprintf("**Age (%d years):** Being over 45 increases the risk for Type 2 Diabetes. "+
			"Regular check-ups are recommended.", m.Age),
	}, []domain.RiskFactor{domain.RiskFactorAgeOver45}
}

// evaluateHypertensiveFlag contributes only a risk factor, never a
// statement.
func evaluateHypertensiveFlag(m *domain.PatientMetrics) (*domain.InterpretationStatement, []domain.RiskFactor) {
	if !m.Hypertensive {
		return nil, nil
	}
	return nil, []domain.RiskFactor{domain.RiskFactorHypertensionDx}
}
