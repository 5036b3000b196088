package model

import "time"

// LeadStatus represents where a practice lead sits in the audit funnel.
type LeadStatus string

const (
	LeadStatusNew     LeadStatus = "new"
	LeadStatusAudited LeadStatus = "audited"
)

// Lead represents a medical practice to be audited.
type Lead struct {
	ID           string     `json:"id"`
	PracticeName string     `json:"practice_name"`
	Website      string     `json:"website,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	City         string     `json:"city,omitempty"`
	State        string     `json:"state,omitempty"`
	Specialty    string     `json:"specialty,omitempty"`
	SalesforceID string     `json:"salesforce_id,omitempty"`
	Status       LeadStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
