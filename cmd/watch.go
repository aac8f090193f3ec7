package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fiscal-cli/internal/monitoring"
	"github.com/sells-group/fiscal-cli/internal/scorer"
	"github.com/sells-group/fiscal-cli/internal/store"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the configured snapshot and send threshold alerts",
	Long: `Score the configured snapshot on every check interval and post alerts to
monitoring.webhook_url when the Critical count or High risk share crosses its
threshold, or when entities newly enter the Critical tier. With a SQLite or
Postgres store, each newly imported snapshot is checked once.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("score"); err != nil {
			return err
		}
		weights, err := scorerConfig()
		if err != nil {
			return err
		}

		src, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return eris.Wrap(err, "open source")
		}
		defer src.Close() //nolint:errcheck

		checker := monitoring.NewChecker(src.Load, scorer.New(weights), monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)

		if once, _ := cmd.Flags().GetBool("once"); once {
			alerts, err := checker.Check(ctx)
			if err != nil {
				return err
			}
			if len(alerts) == 0 {
				fmt.Fprintln(os.Stderr, "No alerts.")
				return nil
			}
			return writeRows(os.Stdout, alerts)
		}

		checker.Run(ctx)
		return nil
	},
}

func init() {
	watchCmd.Flags().Bool("once", false, "check once, print alerts and exit")
	rootCmd.AddCommand(watchCmd)
}
