package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/audit-cli/internal/audit"
	"github.com/sells-group/audit-cli/internal/model"
	"github.com/sells-group/audit-cli/internal/store"
)

var (
	batchGeneration string
	batchLimit      int
)

var batchCmd = &cobra.Command{
	Use:   "batch [lead-id...]",
	Short: "Audit a batch of leads sequentially",
	Long:  "Audits the given lead ids in order. Without arguments, pulls unaudited leads from the store, up to --limit.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		gen, err := parseGeneration(batchGeneration)
		if err != nil {
			return err
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		leadIDs := args
		if len(leadIDs) == 0 {
			leads, err := e.store.ListLeads(ctx, store.LeadFilter{
				Status: model.LeadStatusNew,
				Limit:  batchLimit,
			})
			if err != nil {
				return eris.Wrap(err, "list unaudited leads")
			}
			for _, l := range leads {
				leadIDs = append(leadIDs, l.ID)
			}
		}
		if len(leadIDs) == 0 {
			zap.L().Info("no leads to audit")
			return nil
		}

		result, err := e.auditor.Batch(ctx, leadIDs, gen)
		if err != nil {
			return eris.Wrap(err, "run batch")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchGeneration, "generation", "current", "audit generation (legacy or current)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", audit.MaxBatchSize, "max leads to pull from the queue when no ids are given")
	rootCmd.AddCommand(batchCmd)
}
