// Package crm pushes audit outcomes back onto Salesforce lead records.
package crm

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/audit-cli/internal/model"
)

// API is the slice of go-salesforce the pusher needs. The library does not
// accept a context, so cancellation only covers the rate limiter wait.
type API interface {
	UpdateOne(sObjectName string, record any) error
}

// Custom field API names on the Salesforce Lead object.
const (
	fieldScore     = "Website_Audit_Score__c"
	fieldReportURL = "Website_Audit_Report__c"
	fieldAuditedAt = "Website_Audit_Date__c"
)

// Pusher writes audit scores and report links to Salesforce.
type Pusher struct {
	api     API
	limiter *rate.Limiter
}

// NewPusher creates a Pusher. rps bounds outbound Salesforce calls.
func NewPusher(api API, rps float64) *Pusher {
	p := &Pusher{api: api}
	if rps > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	}
	return p
}

// Push updates the lead's Salesforce record with its latest audit score and
// the public report link. Leads without a Salesforce id cannot be pushed.
func (p *Pusher) Push(ctx context.Context, lead *model.Lead, record *model.AuditRecord, reportURL string) error {
	if lead.SalesforceID == "" {
		return eris.Wrapf(model.ErrValidation, "crm: lead %s has no salesforce id", lead.ID)
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "crm: rate limit")
		}
	}

	fields := map[string]any{
		"Id":           lead.SalesforceID,
		fieldScore:     record.Score,
		fieldAuditedAt: record.UpdatedAt.Format(time.RFC3339),
	}
	if reportURL != "" {
		fields[fieldReportURL] = reportURL
	}

	if err := p.api.UpdateOne("Lead", fields); err != nil {
		return eris.Wrap(err, fmt.Sprintf("crm: update lead %s", lead.SalesforceID))
	}

	zap.L().Info("crm: pushed audit to salesforce",
		zap.String("lead_id", lead.ID),
		zap.String("salesforce_id", lead.SalesforceID),
		zap.Int("score", record.Score),
	)
	return nil
}
