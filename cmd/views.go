package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/fiscal-cli/internal/views"
)

// newViewCommand exposes every view of group as "<group> <view>".
func newViewCommand(group views.Group, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:       group.Name + " [view]",
		Short:     short,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: group.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				for _, v := range group.Views {
					fmt.Fprintf(w, "%s\t%s\n", v.Name, v.Description)
				}
				return w.Flush()
			}

			view, err := group.Find(args[0])
			if err != nil {
				return err
			}
			a, err := loadAnalysis(cmd.Context(), "score")
			if err != nil {
				return err
			}

			n, _ := cmd.Flags().GetInt("n")
			if !cmd.Flags().Changed("n") {
				n = cfg.Views.TopN
			}
			category, _ := cmd.Flags().GetString("category")
			threshold, _ := cmd.Flags().GetFloat64("threshold")

			out, err := view.Run(a.Agg, views.Query{N: n, Category: category, Threshold: threshold})
			if err != nil {
				return err
			}
			return writeRows(os.Stdout, out)
		},
	}
	cmd.Flags().Int("n", 0, "rows for top-n views (default views.top_n)")
	cmd.Flags().String("category", "", "agency category for peer views")
	cmd.Flags().Float64("threshold", 0, "cut-off for threshold views (0 uses the view default)")
	return cmd
}

var (
	riskCmd       = newViewCommand(views.Risk, "Fiscal risk views")
	efficiencyCmd = newViewCommand(views.Efficiency, "Spending efficiency and outcome views")
	benchmarkCmd  = newViewCommand(views.Benchmark, "Percentile benchmarks against the population and peers")
	spendingCmd   = newViewCommand(views.Spending, "National spending totals, capex and foreign financing views")
	unifiedCmd    = newViewCommand(views.Unified, "Views over the unified score table")
)

func init() {
	rootCmd.AddCommand(riskCmd, efficiencyCmd, benchmarkCmd, spendingCmd, unifiedCmd)
}
