// Package model defines the core types shared across the audit pipeline.
package model

import "time"

// Generation identifies one of the two audit record families kept per lead.
// Legacy audits score 1-10 with a confidence level; current audits score
// 0-100 and carry structured findings from either the heuristic engine or
// the vision scorer.
type Generation string

const (
	GenerationLegacy     Generation = "legacy"
	GenerationCurrent    Generation = "current"
	GenerationCurrentSEO Generation = "current_seo"
)

// CheckName identifies a single patient-facing website check.
type CheckName string

const (
	CheckAppointment   CheckName = "hasAppointmentKeywords"
	CheckPhone         CheckName = "hasPhoneVisible"
	CheckAddress       CheckName = "hasAddress"
	CheckHours         CheckName = "hasHours"
	CheckInsurance     CheckName = "hasInsurance"
	CheckNewPatient    CheckName = "hasNewPatientInfo"
	CheckPatientPortal CheckName = "hasPatientPortal"
	CheckTestimonials  CheckName = "hasTestimonials"
	CheckServices      CheckName = "hasServicesList"
)

// DetectorOutcome maps each named check to its boolean result.
type DetectorOutcome map[CheckName]bool

// Severity grades a finding's impact on patient conversion.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityModerate Severity = "moderate"
	SeverityMinor    Severity = "minor"
)

// Finding is a single structured observation produced by scoring.
type Finding struct {
	Category       string   `json:"category"`
	Issue          string   `json:"issue"`
	Severity       Severity `json:"severity"`
	Recommendation string   `json:"recommendation"`
	Detail         string   `json:"detail,omitempty"`
}

// CaptureResult holds a single page's extracted content. Ephemeral; it is
// consumed by the detector set and never persisted.
type CaptureResult struct {
	Text          string `json:"text"`
	Title         string `json:"title"`
	ContentLength int    `json:"content_length"`
}

// AuditRecord is one audit of a lead's website. At most one record exists
// per (lead, generation); re-auditing replaces it in place.
type AuditRecord struct {
	ID         string         `json:"id"`
	LeadID     string         `json:"lead_id"`
	Generation Generation     `json:"generation"`
	Score      int            `json:"score"`
	Confidence int            `json:"confidence,omitempty"` // legacy generation only, 1-5
	Findings   []Finding      `json:"findings"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
