package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fiscal-cli/internal/model"
	"github.com/sells-group/fiscal-cli/internal/scorer"
	"github.com/sells-group/fiscal-cli/internal/store"
)

// compareRow summarises one labelled snapshot scored against its own
// population.
type compareRow struct {
	Label      string  `json:"label"`
	SnapshotID string  `json:"snapshot_id"`
	Entities   int     `json:"entities"`
	TotalSpend float64 `json:"total_spend"`
	Critical   int     `json:"critical"`
	Elevated   int     `json:"elevated"`
	Moderate   int     `json:"moderate"`
	Low        int     `json:"low"`
	TopEntity  string  `json:"top_entity"`
}

var compareCmd = &cobra.Command{
	Use:   "compare [label...]",
	Short: "Score labelled snapshots side by side",
	Long:  "Loads the newest snapshot for each label (every label in the store when none are given) and scores each one independently.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("import"); err != nil {
			return err
		}

		st, err := store.OpenStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		labels := args
		if len(labels) == 0 {
			headers, err := st.Snapshots(ctx)
			if err != nil {
				return eris.Wrap(err, "compare: list snapshots")
			}
			labels = distinctLabels(headers)
		}
		if len(labels) == 0 {
			fmt.Fprintln(os.Stderr, "No labelled snapshots found.")
			return nil
		}

		snaps := make(map[string]*model.Snapshot, len(labels))
		populations := make(map[string][]model.Entity, len(labels))
		for _, label := range labels {
			snap, err := st.Snapshot(ctx, label)
			if err != nil {
				return eris.Wrapf(err, "compare: load %s", label)
			}
			snaps[label] = snap
			populations[label] = snap.Entities
		}

		weights, err := scorerConfig()
		if err != nil {
			return err
		}
		scored, err := scorer.New(weights).ScoreSnapshots(populations)
		if err != nil {
			return err
		}
		return writeRows(os.Stdout, compareRows(snaps, scored))
	},
}

// distinctLabels returns the non-empty labels of headers in first-seen order.
func distinctLabels(headers []model.Snapshot) []string {
	seen := map[string]bool{}
	var out []string
	for _, h := range headers {
		if h.Label == "" || seen[h.Label] {
			continue
		}
		seen[h.Label] = true
		out = append(out, h.Label)
	}
	return out
}

func compareRows(snaps map[string]*model.Snapshot, scored map[string][]scorer.ScoredEntity) []compareRow {
	rows := make([]compareRow, 0, len(snaps))
	for label, snap := range snaps {
		s := scored[label]
		row := compareRow{
			Label:      label,
			SnapshotID: snap.ID,
			Entities:   len(snap.Entities),
			Critical:   scorer.CountTier(s, scorer.TierCritical),
			Elevated:   scorer.CountTier(s, scorer.TierElevated),
			Moderate:   scorer.CountTier(s, scorer.TierModerate),
			Low:        scorer.CountTier(s, scorer.TierLow),
		}
		for _, e := range snap.Entities {
			row.TotalSpend += e.TotalSpend
		}
		if len(s) > 0 {
			row.TopEntity = s[0].Key
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Label < rows[j].Label })
	return rows
}

func init() {
	rootCmd.AddCommand(compareCmd)
}
