package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/fiscal-cli/internal/report"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print the executive snapshot of the loaded entities",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadAnalysis(cmd.Context(), "score")
		if err != nil {
			return err
		}

		snap := a.Agg.ExecutiveSnapshot()
		if tableOutput() {
			fmt.Fprintf(os.Stdout, "Snapshot %s (%s)\n", a.Snapshot.ID, a.Snapshot.Source)
			fmt.Fprintf(os.Stdout, "Entities: %d  Total spend: %s\n", snap.EntityCount, report.Money(snap.TotalSpend))
			report.WriteTierSummary(os.Stdout, tierCounts(snap))
			fmt.Fprintln(os.Stdout)
		}
		return writeRows(os.Stdout, snap)
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
}
