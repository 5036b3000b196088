// Package audit orchestrates the per-lead audit pipeline: lock, capture,
// detect, score, persist, unlock. One lead's failure never aborts a batch,
// and every attempted audit leaves a persisted record behind.
package audit

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/audit-cli/internal/detect"
	"github.com/sells-group/audit-cli/internal/lockreg"
	"github.com/sells-group/audit-cli/internal/model"
	"github.com/sells-group/audit-cli/internal/scorer"
	"github.com/sells-group/audit-cli/internal/store"
)

// MaxBatchSize bounds one batch request. Processing is strictly sequential
// to limit load on the capture backend, so batches stay small.
const MaxBatchSize = 10

// Capturer fetches a single page's text and title.
type Capturer interface {
	Capture(ctx context.Context, address string) (*model.CaptureResult, error)
}

// VisionResult is AuditRecord-shaped data from the generative scorer.
type VisionResult struct {
	DesignScore    int
	SEOScore       int
	DesignFindings []model.Finding
	SEOFindings    []model.Finding
	Summary        map[string]any
}

// VisionScorer is the optional high-fidelity scoring collaborator. The
// orchestrator persists its output interchangeably with the heuristic
// engine's.
type VisionScorer interface {
	ScoreSite(ctx context.Context, screenshot []byte, text, title, address string) (*VisionResult, error)
}

// Auditor runs audits against a shared lock registry. The registry is
// injected so the single-audit and batch entry points exclude each other.
type Auditor struct {
	store    store.Store
	locks    *lockreg.Registry
	capturer Capturer
	vision   VisionScorer
}

// New creates an Auditor using the deterministic heuristic engine.
func New(s store.Store, locks *lockreg.Registry, capturer Capturer) *Auditor {
	return &Auditor{store: s, locks: locks, capturer: capturer}
}

// WithVision enables the generative scorer for current-generation audits.
func (a *Auditor) WithVision(v VisionScorer) *Auditor {
	a.vision = v
	return a
}

// Result is the per-lead outcome of one audit attempt.
type Result struct {
	LeadID  string        `json:"lead_id"`
	Success bool          `json:"success"`
	Score   int           `json:"score"`
	Error   string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// BatchResult aggregates a full batch run.
type BatchResult struct {
	Results   []Result      `json:"results"`
	Processed int           `json:"processed"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed"`
}

// AuditOne audits a single lead under its lock and returns the persisted
// record. LockConflict and NotFound propagate to the caller; capture and
// scoring failures degrade to a persisted floor-score record instead.
func (a *Auditor) AuditOne(ctx context.Context, leadID string, gen model.Generation) (*model.AuditRecord, error) {
	lead, err := a.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	var record *model.AuditRecord
	err = a.locks.WithLock(lead.ID, func() error {
		var runErr error
		record, runErr = a.runAudit(ctx, lead, gen)
		return runErr
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// runAudit performs capture, detection, scoring and persistence for one
// lead. Callers must hold the lead's lock.
func (a *Auditor) runAudit(ctx context.Context, lead *model.Lead, gen model.Generation) (*model.AuditRecord, error) {
	log := zap.L().With(zap.String("lead_id", lead.ID), zap.String("generation", string(gen)))

	record := a.buildRecord(ctx, lead, gen)

	persisted, err := a.store.UpsertAudit(ctx, *record)
	if err != nil {
		// Persistence failure is fatal for this attempt; the lock still
		// releases via WithLock.
		return nil, eris.Wrapf(model.ErrPersistence, "audit: upsert for lead %s: %v", lead.ID, err)
	}

	// The status transition is unconditional once an attempt was made,
	// independent of score outcome.
	if err := a.store.UpdateLeadStatus(ctx, lead.ID, model.LeadStatusAudited); err != nil {
		log.Warn("audit: status update failed", zap.Error(err))
	}

	log.Info("audit: complete",
		zap.Int("score", persisted.Score),
		zap.Int("findings", len(persisted.Findings)),
		zap.Bool("degraded", persisted.Error != ""),
	)
	return persisted, nil
}

// buildRecord produces the AuditRecord for a lead, degrading capture and
// vision failures to a floor-score record with the error field populated.
func (a *Auditor) buildRecord(ctx context.Context, lead *model.Lead, gen model.Generation) *model.AuditRecord {
	if lead.Website == "" {
		return failureRecord(lead.ID, gen, "no website on file")
	}

	captured, err := a.capturer.Capture(ctx, lead.Website)
	if err != nil {
		zap.L().Warn("audit: capture failed",
			zap.String("lead_id", lead.ID),
			zap.Error(err),
		)
		return failureRecord(lead.ID, gen, err.Error())
	}

	if gen == model.GenerationCurrent && a.vision != nil {
		if record := a.visionRecord(ctx, lead, captured); record != nil {
			return record
		}
		// Malformed or failed vision response: fall back to the
		// deterministic engine rather than failing the attempt.
	}

	outcome := detect.Run(captured.Text)
	metadata := map[string]any{
		"title":          captured.Title,
		"content_length": captured.ContentLength,
		"checks":         outcome,
	}

	switch gen {
	case model.GenerationLegacy:
		res := scorer.ScoreLegacy(outcome, captured.ContentLength)
		return &model.AuditRecord{
			LeadID:     lead.ID,
			Generation: gen,
			Score:      res.Score,
			Confidence: res.Confidence,
			Findings:   res.Findings,
			Metadata:   metadata,
		}
	default:
		findings := scorer.FindingsFromOutcome(outcome)
		return &model.AuditRecord{
			LeadID:     lead.ID,
			Generation: gen,
			Score:      scorer.ScoreCurrent(findings),
			Findings:   findings,
			Metadata:   metadata,
		}
	}
}

// visionRecord asks the generative scorer for a current-generation record.
// Returns nil when the collaborator fails, so the caller can fall back.
func (a *Auditor) visionRecord(ctx context.Context, lead *model.Lead, captured *model.CaptureResult) *model.AuditRecord {
	res, err := a.vision.ScoreSite(ctx, nil, captured.Text, captured.Title, lead.Website)
	if err != nil {
		zap.L().Warn("audit: vision scoring failed, falling back to heuristics",
			zap.String("lead_id", lead.ID),
			zap.Error(err),
		)
		return nil
	}

	// The SEO generation rides along when the vision scorer returns it;
	// its persistence failure only degrades, never aborts, the attempt.
	if res.SEOScore > 0 || len(res.SEOFindings) > 0 {
		_, err := a.store.UpsertAudit(ctx, model.AuditRecord{
			LeadID:     lead.ID,
			Generation: model.GenerationCurrentSEO,
			Score:      res.SEOScore,
			Findings:   res.SEOFindings,
			Metadata:   res.Summary,
		})
		if err != nil {
			zap.L().Warn("audit: seo record upsert failed", zap.Error(err))
		}
	}

	return &model.AuditRecord{
		LeadID:     lead.ID,
		Generation: model.GenerationCurrent,
		Score:      res.DesignScore,
		Findings:   res.DesignFindings,
		Metadata:   res.Summary,
	}
}

// failureRecord is the floor-score record persisted when capture fails, so
// downstream reporting always has something to read.
func failureRecord(leadID string, gen model.Generation, cause string) *model.AuditRecord {
	record := &model.AuditRecord{
		LeadID:     leadID,
		Generation: gen,
		Error:      cause,
		Findings: []model.Finding{{
			Category:       "Audit",
			Issue:          "Website could not be captured",
			Severity:       model.SeverityCritical,
			Recommendation: "Verify the website address and try again",
			Detail:         cause,
		}},
	}
	if gen == model.GenerationLegacy {
		record.Score = 1
		record.Confidence = 1
	}
	return record
}

// Batch audits the given leads strictly sequentially, in input order. The
// id list length must be within [1, MaxBatchSize]; violating inputs are
// rejected before any locking or capture work begins.
func (a *Auditor) Batch(ctx context.Context, leadIDs []string, gen model.Generation) (*BatchResult, error) {
	if len(leadIDs) == 0 {
		return nil, eris.Wrap(model.ErrValidation, "audit: batch requires at least one lead id")
	}
	if len(leadIDs) > MaxBatchSize {
		return nil, eris.Wrapf(model.ErrValidation, "audit: batch size %d exceeds limit %d", len(leadIDs), MaxBatchSize)
	}

	start := time.Now()
	batch := &BatchResult{Results: make([]Result, 0, len(leadIDs))}

	for _, id := range leadIDs {
		leadStart := time.Now()
		record, err := a.AuditOne(ctx, id, gen)

		result := Result{LeadID: id, Elapsed: time.Since(leadStart)}
		switch {
		case err != nil:
			// Lock conflict, unknown lead, or persistence failure;
			// non-fatal for the rest of the batch.
			result.Error = err.Error()
			batch.Failed++
		case record.Error != "":
			// Degraded attempt: a floor-score record was persisted but
			// the capture itself failed.
			result.Score = record.Score
			result.Error = record.Error
			batch.Failed++
		default:
			result.Success = true
			result.Score = record.Score
			batch.Succeeded++
		}
		batch.Results = append(batch.Results, result)
		batch.Processed++
	}

	batch.Elapsed = time.Since(start)
	zap.L().Info("audit: batch complete",
		zap.Int("processed", batch.Processed),
		zap.Int("succeeded", batch.Succeeded),
		zap.Int("failed", batch.Failed),
		zap.Duration("elapsed", batch.Elapsed),
	)
	return batch, nil
}
