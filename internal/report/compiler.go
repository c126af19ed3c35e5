// Package report compiles evaluation results into downloadable PDF
// documents. The layout is fixed: title, generation metadata, patient
// information table, prediction result, clinical interpretation, risk
// factors, and a closing disclaimer.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/sirupsen/logrus"

	"github.com/diapredict-server/internal/domain"
)

const (
	reportTitle       = "Diabetes Prediction Report"
	riskFactorHeading = "Primary Risk Factors Identified:"
	disclaimerText    = "Disclaimer: This is a prediction generated by a machine learning model and should not be considered a substitute for a professional medical diagnosis. Please consult a healthcare provider for any health concerns."

	timestampLayout = "2006-01-02 15:04:05"

	sectionTitle          = "title"
	sectionMetadata       = "metadata"
	sectionPatientInfo    = "patient_information"
	sectionPrediction     = "prediction_result"
	sectionInterpretation = "clinical_interpretation"
	sectionRiskFactors    = "risk_factors"
	sectionDisclaimer     = "disclaimer"
)

// Clock supplies the report generation timestamp. Injectable so compiled
// documents are reproducible under test.
type Clock func() time.Time

// PDFCompiler renders evaluations into PDF documents.
type PDFCompiler struct {
	logger *logrus.Logger
	now    Clock
}

// NewPDFCompiler creates a PDF report compiler. A nil clock falls back to
// the system time.
func NewPDFCompiler(logger *logrus.Logger, clock Clock) *PDFCompiler {
	if clock == nil {
		clock = time.Now
	}
	return &PDFCompiler{
		logger: logger,
		now:    clock,
	}
}

// Compile renders the full report and returns the finished document. Either
// every section renders or an error is returned; no partial documents.
func (c *PDFCompiler) Compile(
	metrics *domain.PatientMetrics,
	prediction *domain.PredictionResult,
	interpretation *domain.Interpretation,
) ([]byte, error) {
	if err := prediction.Validate(); err != nil {
		return nil, &domain.RenderError{Section: sectionPrediction, Err: err}
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(c.now())
	pdf.SetModificationDate(c.now())
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	effectiveWidth := pageWidth - left - right

	section := sectionTitle
	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 10, reportTitle, "", 1, "C", false, 0, "")
	pdf.Ln(10)

	if pdf.Err() {
		return nil, c.renderError(section, pdf.Error())
	}

	section = sectionMetadata
	pdf.SetFont("Arial", "", 12)
	generatedAt := c.now().Format(timestampLayout)
	pdf.CellFormat(0, 10, fmt.Sprintf("Report generated on: %s", generatedAt), "", 1, "L", false, 0, "")
	pdf.Ln(5)

	section = sectionPatientInfo
	c.sectionHeader(pdf, "Patient Information")
	pdf.SetFont("Arial", "", 12)
	for _, field := range metrics.Fields() {
		pdf.CellFormat(95, 10, fmt.Sprintf("%s:", humanizeLabel(field.Name)), "", 0, "L", false, 0, "")
		pdf.CellFormat(95, 10, tr(field.Display), "", 1, "L", false, 0, "")
	}
	pdf.Ln(10)

	if pdf.Err() {
		return nil, c.renderError(section, pdf.Error())
	}

	section = sectionPrediction
	c.sectionHeader(pdf, "Prediction Result")
	pdf.SetFont("Arial", "B", 14)
	if prediction.Label == domain.PredictionPositive {
		pdf.SetTextColor(220, 53, 69)
	} else {
		pdf.SetTextColor(40, 167, 69)
	}
	pdf.CellFormat(0, 10, prediction.Label.DisplayText(), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 10, fmt.Sprintf("Model Confidence: %s", prediction.ConfidenceDisplay()), "", 1, "L", false, 0, "")
	pdf.Ln(5)

	if pdf.Err() {
		return nil, c.renderError(section, pdf.Error())
	}

	section = sectionInterpretation
	c.sectionHeader(pdf, "Clinical Interpretation")
	pdf.SetFont("Arial", "", 12)
	for _, statement := range interpretation.Statements {
		line := strings.ReplaceAll(statement.Message, "**", "")
		pdf.MultiCell(effectiveWidth, 5, tr(line), "", "L", false)
		pdf.Ln(2)
	}

	if pdf.Err() {
		return nil, c.renderError(section, pdf.Error())
	}

	section = sectionRiskFactors
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 10, riskFactorHeading, "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	for _, factor := range interpretation.RiskFactors {
		pdf.MultiCell(effectiveWidth, 5, fmt.Sprintf("- %s", factor), "", "L", false)
	}
	pdf.Ln(15)

	if pdf.Err() {
		return nil, c.renderError(section, pdf.Error())
	}

	section = sectionDisclaimer
	pdf.SetFont("Arial", "I", 10)
	pdf.MultiCell(effectiveWidth, 5, disclaimerText, "", "C", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, c.renderError(section, err)
	}

	if c.logger != nil {
		c.logger.WithFields(logrus.Fields{
			"label":        prediction.Label,
			"statements":   len(interpretation.Statements),
			"risk_factors": len(interpretation.RiskFactors),
			"bytes":        buf.Len(),
		}).Debug("Report compiled")
	}

	return buf.Bytes(), nil
}

// sectionHeader writes the bold underlined heading shared by the titled
// sections.
func (c *PDFCompiler) sectionHeader(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
	pdf.Line(10, pdf.GetY(), 200, pdf.GetY())
	pdf.Ln(5)
}

func (c *PDFCompiler) renderError(section string, err error) error {
	if c.logger != nil {
		c.logger.WithFields(logrus.Fields{
			"section": section,
			"error":   err,
		}).Error("Report rendering failed")
	}
	return &domain.RenderError{Section: section, Err: err}
}

// humanizeLabel turns a snake_case field name into a spaced title, so
// "systolic_bp" renders as "Systolic Bp".
func humanizeLabel(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
