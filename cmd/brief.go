package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fiscal-cli/internal/briefing"
)

var briefCmd = &cobra.Command{
	Use:   "brief [entity-key...]",
	Short: "Build decision briefs for entities",
	Long: `Build the structured brief (primary issue, supporting flags, suggested
action) for the named entities, or for a whole class of entities.

Examples:
  brief "ministry of health"
  brief --high-risk --format json
  brief --critical`,
	RunE: func(cmd *cobra.Command, args []string) error {
		highRisk, _ := cmd.Flags().GetBool("high-risk")
		pressure, _ := cmd.Flags().GetBool("budget-pressure")
		critical, _ := cmd.Flags().GetBool("critical")
		if len(args) == 0 && !highRisk && !pressure && !critical {
			return eris.New("brief: name an entity or pass --high-risk, --budget-pressure or --critical")
		}

		a, err := loadAnalysis(cmd.Context(), "score")
		if err != nil {
			return err
		}
		b := briefing.NewBuilder(a.Agg.Entities())

		var briefs []briefing.Brief
		switch {
		case highRisk:
			briefs = b.HighRisk()
		case pressure:
			briefs = b.BudgetPressure()
		case critical:
			briefs = b.Critical(a.Agg.Table())
		case len(args) == 1:
			brief, err := b.Brief(args[0])
			if err != nil {
				return err
			}
			briefs = []briefing.Brief{brief}
		default:
			briefs = b.ForKeys(args)
		}
		return writeRows(os.Stdout, briefs)
	},
}

func init() {
	f := briefCmd.Flags()
	f.Bool("high-risk", false, "brief every entity labelled High")
	f.Bool("budget-pressure", false, "brief every entity under budget pressure")
	f.Bool("critical", false, "brief every Critical-tier entity")
	briefCmd.MarkFlagsMutuallyExclusive("high-risk", "budget-pressure", "critical")
	rootCmd.AddCommand(briefCmd)
}
