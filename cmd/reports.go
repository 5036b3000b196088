package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var reportsLeadID string

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List report snapshots for a lead",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		snaps, err := e.store.ListSnapshots(ctx, reportsLeadID)
		if err != nil {
			return eris.Wrap(err, "list snapshots")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snaps)
	},
}

func init() {
	reportsCmd.Flags().StringVar(&reportsLeadID, "lead", "", "lead id (required)")
	_ = reportsCmd.MarkFlagRequired("lead")
	rootCmd.AddCommand(reportsCmd)
}
