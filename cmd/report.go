package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/audit-cli/internal/model"
)

var (
	reportLeadID string
	reportType   string
	reportFormat string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build a report snapshot for a lead",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		snap, err := e.reports.Build(ctx, reportLeadID, model.ReportType(reportType))
		if err != nil {
			return eris.Wrap(err, "build report")
		}

		zap.L().Info("report built",
			zap.String("lead_id", reportLeadID),
			zap.String("public_id", snap.PublicID),
		)

		switch reportFormat {
		case "yaml":
			out, err := yaml.Marshal(snap)
			if err != nil {
				return eris.Wrap(err, "marshal report")
			}
			_, err = os.Stdout.Write(out)
			return err
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		default:
			return eris.Errorf("unknown format %q (want json or yaml)", reportFormat)
		}
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportLeadID, "lead", "", "lead id (required)")
	reportCmd.Flags().StringVar(&reportType, "type", "full", "report type (design, seo or full)")
	reportCmd.Flags().StringVar(&reportFormat, "format", "json", "output format (json or yaml)")
	_ = reportCmd.MarkFlagRequired("lead")
	rootCmd.AddCommand(reportCmd)
}
