package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/fiscal-cli/internal/aggregate"
	"github.com/sells-group/fiscal-cli/internal/report"
	"github.com/sells-group/fiscal-cli/internal/scorer"
)

// scoreRow is the printed projection of a unified row.
type scoreRow struct {
	Rank            int     `json:"rank"`
	Key             string  `json:"entity_key"`
	Category        string  `json:"agency_category"`
	TotalSpend      float64 `json:"total_spend"`
	FiscalRiskScore float64 `json:"fiscal_risk_score"`
	EfficiencyProxy float64 `json:"efficiency_proxy"`
	PenaltyTotal    float64 `json:"penalty_total"`
	UnifiedScore    float64 `json:"unified_score"`
	Tier            string  `json:"tier"`
}

func toScoreRows(rows []aggregate.UnifiedRow) []scoreRow {
	out := make([]scoreRow, 0, len(rows))
	for _, r := range rows {
		row := scoreRow{
			Key:             r.Key,
			Category:        r.AgencyCategory,
			TotalSpend:      r.TotalSpend,
			FiscalRiskScore: r.FiscalRiskScore,
			EfficiencyProxy: r.EfficiencyProxy,
			Tier:            string(r.Tier()),
		}
		if r.Score != nil {
			row.Rank = r.Score.UnifiedRank
			row.PenaltyTotal = r.Score.PenaltyTotal
			row.UnifiedScore = r.Score.UnifiedScore
		}
		out = append(out, row)
	}
	return out
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compute unified fiscal risk scores and tiers",
	Long: `Score every entity in the configured snapshot.

The unified score blends normalized fiscal risk, inverted efficiency and
inverted outcome strength, adds flag penalties, and rescales to 0-100 across
the population. Tiers: Low (<=25), Moderate (<=50), Elevated (<=75), Critical.

Examples:
  # Full table
  score

  # Critical entities as CSV
  score --tier critical --format csv

  # Score with an alternative weight profile
  score --profile profiles/outcome-heavy.yaml --limit 20`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadAnalysis(cmd.Context(), "score")
		if err != nil {
			return err
		}

		rows := a.Agg.Table()
		if raw, _ := cmd.Flags().GetString("tier"); raw != "" {
			tier, err := scorer.ParseTier(raw)
			if err != nil {
				return err
			}
			rows = a.Agg.ByTier(tier)
		}
		if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && limit < len(rows) {
			rows = rows[:limit]
		}

		if tableOutput() {
			report.WriteTierSummary(os.Stdout, tierCounts(a.Agg.ExecutiveSnapshot()))
			fmt.Fprintln(os.Stdout)
		}
		return writeRows(os.Stdout, toScoreRows(rows))
	},
}

func init() {
	f := scoreCmd.Flags()
	f.String("tier", "", "only show one tier: low, moderate, elevated or critical")
	f.Int("limit", 0, "maximum rows to print (0 = all)")
	rootCmd.AddCommand(scoreCmd)
}
