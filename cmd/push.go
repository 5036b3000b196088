package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/audit-cli/internal/model"
)

var (
	pushLeadID  string
	pushBaseURL string
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push a lead's latest audit to Salesforce",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		pusher, err := initPusher()
		if err != nil {
			return err
		}

		lead, err := e.store.GetLead(ctx, pushLeadID)
		if err != nil {
			return eris.Wrap(err, "get lead")
		}

		record, err := e.store.GetAudit(ctx, pushLeadID, model.GenerationCurrent)
		if err != nil {
			return eris.Wrap(err, "get audit")
		}
		if record == nil {
			record, err = e.store.GetAudit(ctx, pushLeadID, model.GenerationLegacy)
			if err != nil {
				return eris.Wrap(err, "get audit")
			}
		}
		if record == nil {
			return eris.Wrapf(model.ErrMissingPrerequisite, "no audit to push for lead %s", pushLeadID)
		}

		reportURL := latestReportURL(ctx, e, pushLeadID)

		if err := pusher.Push(ctx, lead, record, reportURL); err != nil {
			return eris.Wrap(err, "push to salesforce")
		}
		return nil
	},
}

// latestReportURL returns the public link of the newest snapshot, or empty
// when none exists or no base url was given.
func latestReportURL(ctx context.Context, e *env, leadID string) string {
	if pushBaseURL == "" {
		return ""
	}
	snaps, err := e.store.ListSnapshots(ctx, leadID)
	if err != nil {
		zap.L().Warn("list snapshots failed", zap.String("lead_id", leadID), zap.Error(err))
		return ""
	}
	if len(snaps) == 0 {
		return ""
	}
	return strings.TrimSuffix(pushBaseURL, "/") + "/" + snaps[0].PublicID
}

func init() {
	pushCmd.Flags().StringVar(&pushLeadID, "lead", "", "lead id (required)")
	pushCmd.Flags().StringVar(&pushBaseURL, "report-base", "", "base URL for public report links")
	_ = pushCmd.MarkFlagRequired("lead")
	rootCmd.AddCommand(pushCmd)
}
