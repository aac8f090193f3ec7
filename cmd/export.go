package main

import (
	"errors"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fiscal-cli/internal/briefing"
	"github.com/sells-group/fiscal-cli/internal/report"
	"github.com/sells-group/fiscal-cli/internal/views"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export scores, briefs and every view to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, _ := cmd.Flags().GetString("out")

		a, err := loadAnalysis(cmd.Context(), "score")
		if err != nil {
			return err
		}

		sheets := []report.Sheet{
			{Name: "scores", Rows: toScoreRows(a.Agg.Table())},
			{Name: "snapshot", Rows: a.Agg.ExecutiveSnapshot()},
			{Name: "critical briefs", Rows: briefing.NewBuilder(a.Agg.Entities()).Critical(a.Agg.Table())},
		}
		q := views.Query{N: cfg.Views.TopN}
		for _, name := range []string{"risk", "efficiency", "benchmark", "spending"} {
			g := views.Groups[name]
			for _, v := range g.Views {
				rows, err := v.Run(a.Agg, q)
				if errors.Is(err, views.ErrMissingCategory) {
					continue
				}
				if err != nil {
					return eris.Wrapf(err, "export %s/%s", g.Name, v.Name)
				}
				sheets = append(sheets, report.Sheet{Name: g.Name + " " + v.Name, Rows: rows})
			}
		}

		if err := report.WriteWorkbook(out, sheets); err != nil {
			return err
		}
		zap.L().Info("export complete", zap.String("path", out), zap.Int("sheets", len(sheets)))
		return nil
	},
}

func init() {
	exportCmd.Flags().String("out", "fiscal_intelligence.xlsx", "workbook path")
	rootCmd.AddCommand(exportCmd)
}
