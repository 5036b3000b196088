package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/audit-cli/internal/lockreg"
	"github.com/sells-group/audit-cli/internal/model"
	"github.com/sells-group/audit-cli/internal/store"
)

// portalOnlyText trips the patient portal check and nothing else: no phone,
// address, hours, insurance, appointment or new patient signals.
const portalOnlyText = `Welcome to Lakeview Family Dental. We are dedicated to
gentle, comprehensive dental care for the whole family in a comfortable and
modern setting. Access the patient portal to view statements and records. Our
friendly team looks forward to meeting you and helping you smile with
confidence every single day.`

type fakeCapturer struct {
	pages map[string]*model.CaptureResult
	errs  map[string]error
	calls int
}

func (f *fakeCapturer) Capture(_ context.Context, address string) (*model.CaptureResult, error) {
	f.calls++
	if err, ok := f.errs[address]; ok {
		return nil, err
	}
	if page, ok := f.pages[address]; ok {
		return page, nil
	}
	return nil, eris.Wrapf(model.ErrCaptureFailed, "fetch %s", address)
}

type fakeVision struct {
	result *VisionResult
	err    error
}

func (f *fakeVision) ScoreSite(context.Context, []byte, string, string, string) (*VisionResult, error) {
	return f.result, f.err
}

func newTestAuditor(t *testing.T, capturer Capturer) (*Auditor, store.Store, *lockreg.Registry) {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	locks := lockreg.NewRegistry()
	return New(s, locks, capturer), s, locks
}

func seedLead(t *testing.T, s store.Store, website string) *model.Lead {
	t.Helper()
	lead, err := s.CreateLead(context.Background(), model.Lead{
		PracticeName: "Lakeview Family Dental",
		Website:      website,
	})
	require.NoError(t, err)
	return lead
}

func pageFor(text string) *model.CaptureResult {
	return &model.CaptureResult{Text: text, Title: "Lakeview Family Dental", ContentLength: len(text)}
}

func TestAuditOne_LegacySuccess(t *testing.T) {
	capturer := &fakeCapturer{pages: map[string]*model.CaptureResult{
		"https://a.example": pageFor(portalOnlyText),
	}}
	a, s, _ := newTestAuditor(t, capturer)
	lead := seedLead(t, s, "https://a.example")

	record, err := a.AuditOne(context.Background(), lead.ID, model.GenerationLegacy)
	require.NoError(t, err)

	assert.Equal(t, 3, record.Score, "10 - 2 - 2 - 1 - 1 - 1 - 0.5 = 2.5 rounds to 3")
	assert.Equal(t, 4, record.Confidence)
	assert.Len(t, record.Findings, 6)
	assert.Empty(t, record.Error)

	got, err := s.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusAudited, got.Status)
}

func TestAuditOne_CurrentHeuristic(t *testing.T) {
	capturer := &fakeCapturer{pages: map[string]*model.CaptureResult{
		"https://a.example": pageFor(portalOnlyText),
	}}
	a, s, _ := newTestAuditor(t, capturer)
	lead := seedLead(t, s, "https://a.example")

	record, err := a.AuditOne(context.Background(), lead.ID, model.GenerationCurrent)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, record.Score, 0)
	assert.LessOrEqual(t, record.Score, 100)
	assert.Zero(t, record.Confidence, "current generation carries no confidence")
	assert.NotEmpty(t, record.Findings)

	stored, err := s.GetAudit(context.Background(), lead.ID, model.GenerationCurrent)
	require.NoError(t, err)
	assert.Equal(t, record.Score, stored.Score)
}

func TestAuditOne_CaptureTimeoutDegrades(t *testing.T) {
	capturer := &fakeCapturer{errs: map[string]error{
		"https://slow.example": eris.Wrap(model.ErrCaptureTimeout, "fetch https://slow.example"),
	}}
	a, s, _ := newTestAuditor(t, capturer)
	lead := seedLead(t, s, "https://slow.example")

	record, err := a.AuditOne(context.Background(), lead.ID, model.GenerationLegacy)
	require.NoError(t, err, "capture failure is recovered within the attempt")

	assert.Equal(t, 1, record.Score)
	assert.Equal(t, 1, record.Confidence)
	assert.Contains(t, record.Error, "timeout")
	require.NotEmpty(t, record.Findings)
	assert.Equal(t, "Website could not be captured", record.Findings[0].Issue)

	// The attempt still flips the lead to audited.
	got, err := s.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusAudited, got.Status)
}

func TestAuditOne_NoWebsite(t *testing.T) {
	a, s, _ := newTestAuditor(t, &fakeCapturer{})
	lead := seedLead(t, s, "")

	record, err := a.AuditOne(context.Background(), lead.ID, model.GenerationLegacy)
	require.NoError(t, err)
	assert.Equal(t, 1, record.Score)
	assert.Contains(t, record.Error, "no website")
}

func TestAuditOne_LockConflict(t *testing.T) {
	a, s, locks := newTestAuditor(t, &fakeCapturer{})
	lead := seedLead(t, s, "https://a.example")

	require.True(t, locks.Acquire(lead.ID))
	defer locks.Release(lead.ID)

	_, err := a.AuditOne(context.Background(), lead.ID, model.GenerationLegacy)
	assert.True(t, eris.Is(err, model.ErrLockConflict))

	// No record was persisted and the lead status is untouched.
	record, getErr := s.GetAudit(context.Background(), lead.ID, model.GenerationLegacy)
	require.NoError(t, getErr)
	assert.Nil(t, record)

	got, getErr := s.GetLead(context.Background(), lead.ID)
	require.NoError(t, getErr)
	assert.Equal(t, model.LeadStatusNew, got.Status)
}

func TestAuditOne_ReleasesLockAfterFailure(t *testing.T) {
	capturer := &fakeCapturer{}
	a, s, locks := newTestAuditor(t, capturer)
	lead := seedLead(t, s, "https://down.example")

	_, err := a.AuditOne(context.Background(), lead.ID, model.GenerationLegacy)
	require.NoError(t, err)
	assert.False(t, locks.Held(lead.ID), "lock released after a degraded attempt")
}

func TestAuditOne_UnknownLead(t *testing.T) {
	a, _, _ := newTestAuditor(t, &fakeCapturer{})

	_, err := a.AuditOne(context.Background(), "missing", model.GenerationLegacy)
	assert.True(t, eris.Is(err, model.ErrNotFound))
}

func TestAuditOne_ReauditIsIdempotent(t *testing.T) {
	capturer := &fakeCapturer{pages: map[string]*model.CaptureResult{
		"https://a.example": pageFor(portalOnlyText),
	}}
	a, _, _ := newTestAuditor(t, capturer)
	lead := seedLead(t, a.store, "https://a.example")

	first, err := a.AuditOne(context.Background(), lead.ID, model.GenerationLegacy)
	require.NoError(t, err)
	second, err := a.AuditOne(context.Background(), lead.ID, model.GenerationLegacy)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "re-audit replaces the record in place")
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.Findings, second.Findings)
}

func TestAuditOne_VisionPath(t *testing.T) {
	capturer := &fakeCapturer{pages: map[string]*model.CaptureResult{
		"https://a.example": pageFor(portalOnlyText),
	}}
	a, s, _ := newTestAuditor(t, capturer)
	a.WithVision(&fakeVision{result: &VisionResult{
		DesignScore:    88,
		SEOScore:       75,
		DesignFindings: []model.Finding{{Category: "Design", Issue: "Dated layout", Severity: model.SeverityMajor}},
		SEOFindings:    []model.Finding{{Category: "SEO", Issue: "Missing meta description", Severity: model.SeverityModerate}},
	}})
	lead := seedLead(t, s, "https://a.example")

	record, err := a.AuditOne(context.Background(), lead.ID, model.GenerationCurrent)
	require.NoError(t, err)
	assert.Equal(t, 88, record.Score)

	seo, err := s.GetAudit(context.Background(), lead.ID, model.GenerationCurrentSEO)
	require.NoError(t, err)
	require.NotNil(t, seo, "seo generation rides along with the vision result")
	assert.Equal(t, 75, seo.Score)
}

func TestAuditOne_VisionFailureFallsBack(t *testing.T) {
	capturer := &fakeCapturer{pages: map[string]*model.CaptureResult{
		"https://a.example": pageFor(portalOnlyText),
	}}
	a, _, _ := newTestAuditor(t, capturer)
	a.WithVision(&fakeVision{err: eris.Wrap(model.ErrScoring, "malformed response")})
	lead := seedLead(t, a.store, "https://a.example")

	record, err := a.AuditOne(context.Background(), lead.ID, model.GenerationCurrent)
	require.NoError(t, err)
	assert.NotEmpty(t, record.Findings, "heuristic engine produced the record")
	assert.Empty(t, record.Error)
}

func TestBatch_SizeValidation(t *testing.T) {
	a, _, _ := newTestAuditor(t, &fakeCapturer{})

	_, err := a.Batch(context.Background(), nil, model.GenerationLegacy)
	assert.True(t, eris.Is(err, model.ErrValidation))

	ids := make([]string, MaxBatchSize+1)
	for i := range ids {
		ids[i] = "lead"
	}
	_, err = a.Batch(context.Background(), ids, model.GenerationLegacy)
	assert.True(t, eris.Is(err, model.ErrValidation))
}

func TestBatch_MiddleSubjectTimesOut(t *testing.T) {
	capturer := &fakeCapturer{
		pages: map[string]*model.CaptureResult{
			"https://one.example":   pageFor(portalOnlyText),
			"https://three.example": pageFor(portalOnlyText),
		},
		errs: map[string]error{
			"https://two.example": eris.Wrap(model.ErrCaptureTimeout, "fetch https://two.example"),
		},
	}
	a, s, _ := newTestAuditor(t, capturer)

	one := seedLead(t, s, "https://one.example")
	two := seedLead(t, s, "https://two.example")
	three := seedLead(t, s, "https://three.example")

	batch, err := a.Batch(context.Background(), []string{one.ID, two.ID, three.ID}, model.GenerationLegacy)
	require.NoError(t, err)

	require.Len(t, batch.Results, 3)
	assert.Equal(t, 3, batch.Processed)
	assert.Equal(t, 2, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)

	assert.True(t, batch.Results[0].Success)
	assert.False(t, batch.Results[1].Success)
	assert.Contains(t, batch.Results[1].Error, "timeout")
	assert.True(t, batch.Results[2].Success)

	// The timed-out lead still has a persisted floor-score record.
	record, err := s.GetAudit(context.Background(), two.ID, model.GenerationLegacy)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 1, record.Score)
}

func TestBatch_LockConflictIsIsolated(t *testing.T) {
	capturer := &fakeCapturer{pages: map[string]*model.CaptureResult{
		"https://one.example": pageFor(portalOnlyText),
		"https://two.example": pageFor(portalOnlyText),
	}}
	a, s, locks := newTestAuditor(t, capturer)

	one := seedLead(t, s, "https://one.example")
	two := seedLead(t, s, "https://two.example")

	require.True(t, locks.Acquire(two.ID))
	defer locks.Release(two.ID)

	batch, err := a.Batch(context.Background(), []string{one.ID, two.ID}, model.GenerationLegacy)
	require.NoError(t, err)

	assert.Equal(t, 1, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	assert.Contains(t, batch.Results[1].Error, "already in progress")
}

func TestBatch_InputOrderPreserved(t *testing.T) {
	capturer := &fakeCapturer{pages: map[string]*model.CaptureResult{
		"https://one.example": pageFor(portalOnlyText),
		"https://two.example": pageFor(portalOnlyText),
	}}
	a, s, _ := newTestAuditor(t, capturer)

	one := seedLead(t, s, "https://one.example")
	two := seedLead(t, s, "https://two.example")

	batch, err := a.Batch(context.Background(), []string{two.ID, one.ID}, model.GenerationLegacy)
	require.NoError(t, err)
	assert.Equal(t, two.ID, batch.Results[0].LeadID)
	assert.Equal(t, one.ID, batch.Results[1].LeadID)
}
