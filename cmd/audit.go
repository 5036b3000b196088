package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	auditLeadID     string
	auditGeneration string
	auditWebsite    string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit a single practice website",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		gen, err := parseGeneration(auditGeneration)
		if err != nil {
			return err
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if auditWebsite != "" {
			if err := e.store.UpdateLeadWebsite(ctx, auditLeadID, auditWebsite); err != nil {
				return eris.Wrap(err, "update lead website")
			}
		}

		record, err := e.auditor.AuditOne(ctx, auditLeadID, gen)
		if err != nil {
			return eris.Wrap(err, "audit lead")
		}

		zap.L().Info("audit finished",
			zap.String("lead_id", auditLeadID),
			zap.Int("score", record.Score),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	},
}

func init() {
	auditCmd.Flags().StringVar(&auditLeadID, "lead", "", "lead id (required)")
	auditCmd.Flags().StringVar(&auditGeneration, "generation", "current", "audit generation (legacy or current)")
	auditCmd.Flags().StringVar(&auditWebsite, "website", "", "correct the lead's website before auditing")
	_ = auditCmd.MarkFlagRequired("lead")
	rootCmd.AddCommand(auditCmd)
}
