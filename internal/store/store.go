// Package store is the persistence gateway for leads, audit records and
// report snapshots. Audit upserts are idempotent by (lead, generation);
// snapshot creation is append-only.
package store

import (
	"context"

	"github.com/sells-group/audit-cli/internal/model"
)

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Status model.LeadStatus `json:"status,omitempty"`
	Limit  int              `json:"limit,omitempty"`
	Offset int              `json:"offset,omitempty"`
}

// Store defines the persistence interface for the audit pipeline.
type Store interface {
	// Leads
	CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error)
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	UpdateLeadStatus(ctx context.Context, id string, status model.LeadStatus) error
	UpdateLeadWebsite(ctx context.Context, id string, website string) error

	// Audits. GetAudit returns (nil, nil) when no record exists for the
	// generation; UpsertAudit replaces the single record per key.
	UpsertAudit(ctx context.Context, record model.AuditRecord) (*model.AuditRecord, error)
	GetAudit(ctx context.Context, leadID string, gen model.Generation) (*model.AuditRecord, error)

	// Snapshots. Append-only: CreateSnapshot never replaces an existing
	// row, and nothing mutates a snapshot's data after creation.
	CreateSnapshot(ctx context.Context, snap model.ReportSnapshot) (*model.ReportSnapshot, error)
	GetSnapshotByPublicID(ctx context.Context, publicID string) (*model.ReportSnapshot, error)
	MarkSnapshotViewed(ctx context.Context, publicID string) error
	ListSnapshots(ctx context.Context, leadID string) ([]model.ReportSnapshot, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
