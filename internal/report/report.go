// Package report builds immutable, publicly addressable snapshots from
// whichever audit generations are available for a lead.
package report

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/audit-cli/internal/model"
	"github.com/sells-group/audit-cli/internal/scorer"
	"github.com/sells-group/audit-cli/internal/store"
)

// Builder assembles and persists report snapshots.
type Builder struct {
	store store.Store
}

// NewBuilder creates a Builder over the given store.
func NewBuilder(s store.Store) *Builder {
	return &Builder{store: s}
}

// Build validates prerequisites, merges the latest audit generations into a
// frozen payload and persists it once with a fresh public id. The design
// facet prefers the current generation and falls back to the converted
// legacy record; the SEO facet has no legacy fallback.
func (b *Builder) Build(ctx context.Context, leadID string, reportType model.ReportType) (*model.ReportSnapshot, error) {
	if !model.ValidReportType(reportType) {
		return nil, eris.Wrapf(model.ErrValidation, "report: unknown type %q", reportType)
	}

	if _, err := b.store.GetLead(ctx, leadID); err != nil {
		return nil, err
	}

	var current, legacy, seo *model.AuditRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		current, err = b.store.GetAudit(gctx, leadID, model.GenerationCurrent)
		return err
	})
	g.Go(func() (err error) {
		legacy, err = b.store.GetAudit(gctx, leadID, model.GenerationLegacy)
		return err
	})
	g.Go(func() (err error) {
		seo, err = b.store.GetAudit(gctx, leadID, model.GenerationCurrentSEO)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "report: load audits")
	}

	data := model.ReportData{
		Design: designFacet(current, legacy),
		SEO:    seoFacet(seo),
	}

	switch reportType {
	case model.ReportTypeDesign:
		if data.Design == nil {
			return nil, eris.Wrapf(model.ErrMissingPrerequisite, "report: no design audit for lead %s", leadID)
		}
		data.SEO = nil
	case model.ReportTypeSEO:
		if data.SEO == nil {
			return nil, eris.Wrapf(model.ErrMissingPrerequisite, "report: no seo audit for lead %s", leadID)
		}
		data.Design = nil
	case model.ReportTypeFull:
		// A full report needs at least one facet; a single absent facet
		// is not an error.
		if data.Design == nil && data.SEO == nil {
			return nil, eris.Wrapf(model.ErrMissingPrerequisite, "report: no audits for lead %s", leadID)
		}
	}

	snap, err := b.store.CreateSnapshot(ctx, model.ReportSnapshot{
		LeadID: leadID,
		Type:   reportType,
		Data:   data,
	})
	if err != nil {
		return nil, eris.Wrapf(model.ErrPersistence, "report: create snapshot for lead %s: %v", leadID, err)
	}

	zap.L().Info("report: snapshot created",
		zap.String("lead_id", leadID),
		zap.String("type", string(reportType)),
		zap.String("public_id", snap.PublicID),
	)
	return snap, nil
}

// View fetches a snapshot by its public id and records the first view.
func (b *Builder) View(ctx context.Context, publicID string) (*model.ReportSnapshot, error) {
	snap, err := b.store.GetSnapshotByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if !snap.Viewed {
		if err := b.store.MarkSnapshotViewed(ctx, publicID); err != nil {
			zap.L().Warn("report: mark viewed failed",
				zap.String("public_id", publicID),
				zap.Error(err),
			)
		}
	}
	return snap, nil
}

// designFacet prefers the current generation; otherwise it converts the
// legacy record onto the 0-100 scale and lifts its bare findings.
func designFacet(current, legacy *model.AuditRecord) *model.ReportFacet {
	if current != nil {
		return &model.ReportFacet{
			Score:    current.Score,
			Findings: current.Findings,
			Metadata: current.Metadata,
			Source:   "current",
		}
	}
	if legacy != nil {
		return &model.ReportFacet{
			Score:    scorer.ConvertLegacyScore(legacy.Score),
			Findings: liftLegacyFindings(legacy.Findings),
			Metadata: legacy.Metadata,
			Source:   "legacy_converted",
		}
	}
	return nil
}

func seoFacet(seo *model.AuditRecord) *model.ReportFacet {
	if seo == nil {
		return nil
	}
	return &model.ReportFacet{
		Score:    seo.Score,
		Findings: seo.Findings,
		Metadata: seo.Metadata,
		Source:   "current",
	}
}

// liftLegacyFindings turns legacy issue strings into the structured shape
// with a fixed category and impact and no recommendation.
func liftLegacyFindings(findings []model.Finding) []model.Finding {
	lifted := make([]model.Finding, 0, len(findings))
	for _, f := range findings {
		lifted = append(lifted, model.Finding{
			Category: "Design",
			Issue:    f.Issue,
			Severity: model.SeverityMajor,
			Detail:   f.Detail,
		})
	}
	return lifted
}
