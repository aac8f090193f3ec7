package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fiscal-cli/internal/briefing"
)

var memoCmd = &cobra.Command{
	Use:   "memo",
	Short: "Draft briefing memos with Claude",
	Long:  "Draft cabinet briefing notes, plain-language explanations and executive summaries from the computed briefs.",
}

var memoEntityCmd = &cobra.Command{
	Use:   "entity <entity-key>",
	Short: "Draft a cabinet briefing note for one entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEntityMemo(cmd, args[0], false)
	},
}

var memoExplainCmd = &cobra.Command{
	Use:   "explain <entity-key>",
	Short: "Explain one entity's fiscal position in plain language",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEntityMemo(cmd, args[0], true)
	},
}

func runEntityMemo(cmd *cobra.Command, key string, explain bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := loadAnalysis(ctx, "narrative")
	if err != nil {
		return err
	}
	brief, err := briefing.NewBuilder(a.Agg.Entities()).Brief(key)
	if err != nil {
		return err
	}

	w := newWriter(ctx)
	var memo string
	if explain {
		memo, err = w.Explain(ctx, brief)
	} else {
		memo, err = w.EntityMemo(ctx, brief)
	}
	if err != nil {
		return eris.Wrapf(err, "memo %s", brief.Key)
	}
	fmt.Fprintln(os.Stdout, memo)
	return nil
}

var memoSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Draft an executive summary of the whole snapshot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := loadAnalysis(ctx, "narrative")
		if err != nil {
			return err
		}
		memo, err := newWriter(ctx).SnapshotMemo(ctx, a.Agg.ExecutiveSnapshot())
		if err != nil {
			return eris.Wrap(err, "memo snapshot")
		}
		fmt.Fprintln(os.Stdout, memo)
		return nil
	},
}

var memoCriticalCmd = &cobra.Command{
	Use:   "critical",
	Short: "Draft a briefing note for every Critical-tier entity",
	Long: `Draft one briefing note per Critical-tier entity, concurrently and
rate limited per the narrative settings. Failed memos are reported and do
not stop the pack.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := loadAnalysis(ctx, "narrative")
		if err != nil {
			return err
		}
		briefs := briefing.NewBuilder(a.Agg.Entities()).Critical(a.Agg.Table())
		if len(briefs) == 0 {
			fmt.Fprintln(os.Stderr, "No Critical-tier entities.")
			return nil
		}

		results, err := newWriter(ctx).CriticalPack(ctx, briefs)
		if err != nil {
			return err
		}

		outDir, _ := cmd.Flags().GetString("out")
		if outDir != "" {
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return eris.Wrapf(err, "create %s", outDir)
			}
		}

		failed := 0
		for _, r := range results {
			if r.Error != "" {
				failed++
				fmt.Fprintf(os.Stderr, "%s: %s\n", r.Key, r.Error)
				continue
			}
			if outDir == "" {
				fmt.Fprintf(os.Stdout, "## %s\n\n%s\n\n", r.Key, r.Memo)
				continue
			}
			path := filepath.Join(outDir, memoFileName(r.Key))
			if err := os.WriteFile(path, []byte(r.Memo+"\n"), 0o644); err != nil {
				return eris.Wrapf(err, "write %s", path)
			}
		}

		zap.L().Info("memo pack complete",
			zap.Int("memos", len(results)-failed),
			zap.Int("failed", failed),
			zap.String("out", outDir),
		)
		if failed == len(results) {
			return eris.Errorf("memo critical: all %d memos failed", failed)
		}
		return nil
	},
}

// memoFileName turns an entity key into a file name.
func memoFileName(key string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, strings.TrimSpace(key))
	return name + ".md"
}

func init() {
	memoCriticalCmd.Flags().String("out", "", "directory to write one markdown file per memo (default stdout)")
	memoCmd.AddCommand(memoEntityCmd, memoExplainCmd, memoSnapshotCmd, memoCriticalCmd)
	rootCmd.AddCommand(memoCmd)
}
