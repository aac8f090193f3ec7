package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fiscal-cli/internal/config"
)

var cfg *config.Config

var (
	outputFormat string
	profilePath  string
)

var rootCmd = &cobra.Command{
	Use:   "fiscal-cli",
	Short: "Fiscal risk, efficiency and benchmarking for public entities",
	Long:  "Loads a ministry fiscal snapshot, computes unified risk scores and tiers, answers risk/efficiency/benchmark views and drafts decision memos with Claude.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		usage.Log()
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&outputFormat, "format", "table", "output format: table, csv or json")
	f.StringVar(&profilePath, "profile", "", "YAML or TOML weight profile overlaid on the configured scorer weights")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
