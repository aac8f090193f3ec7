package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fiscal-cli/internal/monitoring"
	"github.com/sells-group/fiscal-cli/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a CSV or XLSX snapshot into the snapshot store",
	Long: `Read a fiscal snapshot from a CSV or XLSX file (local path or http(s) URL),
validate it, and store it under a new snapshot ID in the configured SQLite
or Postgres store.

Examples:
  import --file data/fy2026.csv --label FY2026
  import --file https://example.org/fiscal.xlsx --sheet Master --label FY2026`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("import"); err != nil {
			return err
		}

		path, _ := cmd.Flags().GetString("file")
		sheet, _ := cmd.Flags().GetString("sheet")
		label, _ := cmd.Flags().GetString("label")

		var src store.Source = &store.CSVSource{Path: path, Label: label}
		if strings.EqualFold(filepath.Ext(path), ".xlsx") || sheet != "" {
			src = &store.XLSXSource{Path: path, Sheet: sheet, Label: label}
		}
		snap, err := src.Load(ctx)
		if err != nil {
			return eris.Wrap(err, "import")
		}

		st, err := store.OpenStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		id, err := st.Import(ctx, snap)
		if err != nil {
			return eris.Wrap(err, "import")
		}

		snap.ID = id
		if cfg.Monitoring.WebhookURL != "" {
			a, err := analyze(snap)
			if err != nil {
				return err
			}
			alerter := monitoring.NewAlerter(cfg.Monitoring)
			alerter.SendAlerts(ctx, alerter.Evaluate(monitoring.Collect(snap, a.Agg, nil)))
		}

		zap.L().Info("import complete",
			zap.String("snapshot", id),
			zap.String("label", label),
			zap.Int("entities", len(snap.Entities)),
			zap.String("file", path),
		)
		fmt.Fprintln(os.Stdout, id)
		return nil
	},
}

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List snapshots held in the snapshot store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("import"); err != nil {
			return err
		}

		st, err := store.OpenStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		snaps, err := st.Snapshots(ctx)
		if err != nil {
			return eris.Wrap(err, "snapshots")
		}
		if len(snaps) == 0 {
			fmt.Fprintln(os.Stderr, "No snapshots found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLABEL\tSOURCE\tLOADED")
		for _, s := range snaps {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Label, s.Source, s.LoadedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

func init() {
	f := importCmd.Flags()
	f.String("file", "", "CSV or XLSX file or URL (required)")
	f.String("sheet", "", "XLSX sheet name (default first sheet)")
	f.String("label", "", "snapshot label, e.g. FY2026")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd, snapshotsCmd)
}
