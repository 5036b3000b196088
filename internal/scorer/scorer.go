// Package scorer converts detector outcomes into scores and findings. Both
// scoring policies are pure functions of their inputs, so identical captures
// always produce identical records.
package scorer

import (
	"math"

	"github.com/sells-group/audit-cli/internal/model"
)

const (
	legacyBase         = 10.0
	legacyScoreFloor   = 1
	legacyFindingsCap  = 6
	currentBase        = 100
	currentFindingsCap = 10

	// Below this many characters of extracted text, confidence drops to 2.
	minContentLength = 200
)

// severityPenalties are the current-generation per-finding deductions.
var severityPenalties = map[model.Severity]int{
	model.SeverityCritical: 20,
	model.SeverityMajor:    15,
	model.SeverityModerate: 10,
	model.SeverityMinor:    5,
}

// legacyCheck couples a check with its penalty and bare issue text. Order
// is precedence: when the findings cap is hit, later entries drop first.
type legacyCheck struct {
	name    model.CheckName
	penalty float64
	issue   string
}

var legacyChecks = []legacyCheck{
	{model.CheckAppointment, 2, "No online appointment scheduling found"},
	{model.CheckPhone, 2, "No phone number visible on the homepage"},
	{model.CheckAddress, 1, "No practice address found"},
	{model.CheckHours, 1, "No office hours listed"},
	{model.CheckInsurance, 1, "No insurance or payment information"},
	{model.CheckNewPatient, 0.5, "No new patient information"},
	{model.CheckPatientPortal, 0.5, "No patient portal link"},
}

// currentCheck couples a check with its structured finding template. Order
// is precedence, as with legacyChecks.
type currentCheck struct {
	name    model.CheckName
	finding model.Finding
}

var currentChecks = []currentCheck{
	{model.CheckAppointment, model.Finding{
		Category:       "Conversion",
		Issue:          "No online appointment scheduling",
		Severity:       model.SeverityCritical,
		Recommendation: "Add a prominent online booking widget or request form above the fold",
	}},
	{model.CheckPhone, model.Finding{
		Category:       "Conversion",
		Issue:          "Phone number is not visible on the page",
		Severity:       model.SeverityMajor,
		Recommendation: "Display a click-to-call phone number in the header",
	}},
	{model.CheckAddress, model.Finding{
		Category:       "Local SEO",
		Issue:          "Practice address is missing from the page",
		Severity:       model.SeverityModerate,
		Recommendation: "Add the full street address to the footer and contact page",
	}},
	{model.CheckHours, model.Finding{
		Category:       "Patient Experience",
		Issue:          "Office hours are not listed",
		Severity:       model.SeverityModerate,
		Recommendation: "Publish weekday hours near the contact information",
	}},
	{model.CheckInsurance, model.Finding{
		Category:       "Patient Experience",
		Issue:          "No insurance or payment information",
		Severity:       model.SeverityModerate,
		Recommendation: "List accepted insurance plans and payment options",
	}},
	{model.CheckServices, model.Finding{
		Category:       "Content",
		Issue:          "No services or treatments overview",
		Severity:       model.SeverityModerate,
		Recommendation: "Add a services page describing common treatments",
	}},
	{model.CheckNewPatient, model.Finding{
		Category:       "Patient Experience",
		Issue:          "No new patient information or intake forms",
		Severity:       model.SeverityMinor,
		Recommendation: "Add a new patient page with downloadable forms",
	}},
	{model.CheckPatientPortal, model.Finding{
		Category:       "Patient Engagement",
		Issue:          "No patient portal link",
		Severity:       model.SeverityMinor,
		Recommendation: "Link the patient portal from the main navigation",
	}},
	{model.CheckTestimonials, model.Finding{
		Category:       "Trust",
		Issue:          "No patient testimonials or reviews",
		Severity:       model.SeverityMinor,
		Recommendation: "Showcase recent patient reviews on the homepage",
	}},
}

// LegacyResult is the outcome of the legacy 1-10 scoring policy. Findings
// carry issue text only; the legacy record family stored bare strings.
type LegacyResult struct {
	Score      int
	Confidence int
	Findings   []model.Finding
}

// ScoreLegacy applies the legacy 1-10 policy to a successful capture:
// start at 10, subtract per-missing-check penalties, round, clamp to [1,10].
func ScoreLegacy(outcome model.DetectorOutcome, textLen int) LegacyResult {
	score := legacyBase
	var findings []model.Finding

	for _, c := range legacyChecks {
		if outcome[c.name] {
			continue
		}
		score -= c.penalty
		if len(findings) < legacyFindingsCap {
			findings = append(findings, model.Finding{Issue: c.issue})
		}
	}

	rounded := int(math.Round(score))
	if rounded < legacyScoreFloor {
		rounded = legacyScoreFloor
	}
	if rounded > int(legacyBase) {
		rounded = int(legacyBase)
	}

	confidence := 2
	if textLen > minContentLength {
		confidence = 4
	}

	return LegacyResult{Score: rounded, Confidence: confidence, Findings: findings}
}

// FindingsFromOutcome generates current-generation findings for every
// missing check, in fixed precedence order, capped so lowest-priority
// checks drop first.
func FindingsFromOutcome(outcome model.DetectorOutcome) []model.Finding {
	var findings []model.Finding
	for _, c := range currentChecks {
		if outcome[c.name] {
			continue
		}
		if len(findings) >= currentFindingsCap {
			break
		}
		findings = append(findings, c.finding)
	}
	return findings
}

// ScoreCurrent applies the current 0-100 policy: start at 100, subtract
// per-finding severity penalties, clamp to [0,100].
func ScoreCurrent(findings []model.Finding) int {
	score := currentBase
	for _, f := range findings {
		score -= severityPenalties[f.Severity]
	}
	if score < 0 {
		score = 0
	}
	if score > currentBase {
		score = currentBase
	}
	return score
}

// ConvertLegacyScore maps a legacy 1-10 score onto the current 0-100 scale.
func ConvertLegacyScore(legacy int) int {
	return legacy * 10
}

// SeverityPenalty exposes the deduction for a severity level.
func SeverityPenalty(s model.Severity) int {
	return severityPenalties[s]
}
