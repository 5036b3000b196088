package report

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/audit-cli/internal/model"
	"github.com/sells-group/audit-cli/internal/store"
)

func newTestBuilder(t *testing.T) (*Builder, store.Store) {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return NewBuilder(s), s
}

func seedLead(t *testing.T, s store.Store) *model.Lead {
	t.Helper()
	lead, err := s.CreateLead(context.Background(), model.Lead{PracticeName: "Lakeview Family Dental"})
	require.NoError(t, err)
	return lead
}

func seedAudit(t *testing.T, s store.Store, leadID string, gen model.Generation, score int, findings []model.Finding) {
	t.Helper()
	_, err := s.UpsertAudit(context.Background(), model.AuditRecord{
		LeadID:     leadID,
		Generation: gen,
		Score:      score,
		Findings:   findings,
	})
	require.NoError(t, err)
}

func TestBuild_DesignFromLegacyFallback(t *testing.T) {
	b, s := newTestBuilder(t)
	lead := seedLead(t, s)
	seedAudit(t, s, lead.ID, model.GenerationLegacy, 7, []model.Finding{
		{Issue: "No office hours listed"},
		{Issue: "No patient portal link"},
	})

	snap, err := b.Build(context.Background(), lead.ID, model.ReportTypeDesign)
	require.NoError(t, err)

	require.NotNil(t, snap.Data.Design)
	assert.Equal(t, 70, snap.Data.Design.Score, "legacy 7 converts to 70")
	assert.Equal(t, "legacy_converted", snap.Data.Design.Source)
	require.Len(t, snap.Data.Design.Findings, 2)
	for _, f := range snap.Data.Design.Findings {
		assert.Equal(t, "Design", f.Category)
		assert.Equal(t, model.SeverityMajor, f.Severity)
		assert.Empty(t, f.Recommendation)
	}
	assert.Nil(t, snap.Data.SEO)
	assert.NotEmpty(t, snap.PublicID)
}

func TestBuild_DesignPrefersCurrentGeneration(t *testing.T) {
	b, s := newTestBuilder(t)
	lead := seedLead(t, s)
	seedAudit(t, s, lead.ID, model.GenerationLegacy, 4, []model.Finding{{Issue: "old finding"}})
	seedAudit(t, s, lead.ID, model.GenerationCurrent, 85, []model.Finding{
		{Category: "Conversion", Issue: "No online appointment scheduling", Severity: model.SeverityCritical},
	})

	snap, err := b.Build(context.Background(), lead.ID, model.ReportTypeDesign)
	require.NoError(t, err)
	assert.Equal(t, 85, snap.Data.Design.Score)
	assert.Equal(t, "current", snap.Data.Design.Source)
}

func TestBuild_SEOHasNoLegacyFallback(t *testing.T) {
	b, s := newTestBuilder(t)
	lead := seedLead(t, s)
	seedAudit(t, s, lead.ID, model.GenerationLegacy, 7, nil)

	_, err := b.Build(context.Background(), lead.ID, model.ReportTypeSEO)
	assert.True(t, eris.Is(err, model.ErrMissingPrerequisite))
}

func TestBuild_FullWithOneFacet(t *testing.T) {
	b, s := newTestBuilder(t)
	lead := seedLead(t, s)
	seedAudit(t, s, lead.ID, model.GenerationCurrentSEO, 60, nil)

	snap, err := b.Build(context.Background(), lead.ID, model.ReportTypeFull)
	require.NoError(t, err)
	assert.Nil(t, snap.Data.Design, "absent facet is not an error for full reports")
	require.NotNil(t, snap.Data.SEO)
	assert.Equal(t, 60, snap.Data.SEO.Score)
}

func TestBuild_FullWithNoAudits(t *testing.T) {
	b, s := newTestBuilder(t)
	lead := seedLead(t, s)

	_, err := b.Build(context.Background(), lead.ID, model.ReportTypeFull)
	assert.True(t, eris.Is(err, model.ErrMissingPrerequisite))
}

func TestBuild_UnknownLead(t *testing.T) {
	b, _ := newTestBuilder(t)

	_, err := b.Build(context.Background(), "missing", model.ReportTypeDesign)
	assert.True(t, eris.Is(err, model.ErrNotFound))
}

func TestBuild_InvalidType(t *testing.T) {
	b, s := newTestBuilder(t)
	lead := seedLead(t, s)

	_, err := b.Build(context.Background(), lead.ID, model.ReportType("bogus"))
	assert.True(t, eris.Is(err, model.ErrValidation))
}

func TestBuild_SnapshotIsImmutableAcrossReaudits(t *testing.T) {
	b, s := newTestBuilder(t)
	lead := seedLead(t, s)
	seedAudit(t, s, lead.ID, model.GenerationCurrent, 40, nil)

	snap, err := b.Build(context.Background(), lead.ID, model.ReportTypeDesign)
	require.NoError(t, err)

	// Re-audit improves the live record; the earlier snapshot keeps its
	// frozen copy.
	seedAudit(t, s, lead.ID, model.GenerationCurrent, 90, nil)

	frozen, err := s.GetSnapshotByPublicID(context.Background(), snap.PublicID)
	require.NoError(t, err)
	assert.Equal(t, 40, frozen.Data.Design.Score)

	fresh, err := b.Build(context.Background(), lead.ID, model.ReportTypeDesign)
	require.NoError(t, err)
	assert.NotEqual(t, snap.PublicID, fresh.PublicID, "each request creates a new snapshot")
	assert.Equal(t, 90, fresh.Data.Design.Score)
}

func TestView_MarksViewedOnce(t *testing.T) {
	b, s := newTestBuilder(t)
	lead := seedLead(t, s)
	seedAudit(t, s, lead.ID, model.GenerationCurrent, 55, nil)

	snap, err := b.Build(context.Background(), lead.ID, model.ReportTypeDesign)
	require.NoError(t, err)

	viewed, err := b.View(context.Background(), snap.PublicID)
	require.NoError(t, err)
	assert.False(t, viewed.Viewed, "first fetch returns the pre-view state")

	again, err := b.View(context.Background(), snap.PublicID)
	require.NoError(t, err)
	assert.True(t, again.Viewed)
	assert.NotNil(t, again.ViewedAt)
}
