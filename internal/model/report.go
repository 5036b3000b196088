package model

import "time"

// ReportType selects which audit facets a snapshot includes.
type ReportType string

const (
	ReportTypeDesign ReportType = "design"
	ReportTypeSEO    ReportType = "seo"
	ReportTypeFull   ReportType = "full"
)

// ValidReportType reports whether t is one of the known report types.
func ValidReportType(t ReportType) bool {
	switch t {
	case ReportTypeDesign, ReportTypeSEO, ReportTypeFull:
		return true
	}
	return false
}

// ReportFacet is a frozen copy of one audit generation's data as it stood
// at snapshot time.
type ReportFacet struct {
	Score    int            `json:"score"`
	Findings []Finding      `json:"findings"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Source   string         `json:"source"` // "current", "legacy_converted"
}

// ReportData is the immutable payload of a snapshot. A full report may have
// either facet absent, but never both.
type ReportData struct {
	Design *ReportFacet `json:"design,omitempty"`
	SEO    *ReportFacet `json:"seo,omitempty"`
}

// ReportSnapshot is a point-in-time, publicly addressable copy of a lead's
// audit data. Once created its Data is never mutated; a new report request
// always creates a new snapshot.
type ReportSnapshot struct {
	ID        string     `json:"id"`
	LeadID    string     `json:"lead_id"`
	PublicID  string     `json:"public_id"`
	Type      ReportType `json:"type"`
	Data      ReportData `json:"data"`
	Viewed    bool       `json:"viewed"`
	ViewedAt  *time.Time `json:"viewed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
