package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sells-group/fiscal-cli/internal/briefing"
	"github.com/sells-group/fiscal-cli/internal/narrative"
	"github.com/sells-group/fiscal-cli/internal/report"
)

var reviewCmd = &cobra.Command{
	Use:   "review [entity-key]",
	Short: "Ask follow-up questions about an entity",
	Long: `Start an interactive review. Each question is answered with the entity's
fiscal profile and the recent conversation as context.

Commands inside the review:
  :entity <key>   switch to another entity (clears memory)
  :brief          show the brief under review
  :reset          clear memory and the entity under review
  :quit           leave`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := loadAnalysis(ctx, "narrative")
		if err != nil {
			return err
		}
		session := newWriter(ctx).NewSession(briefing.NewBuilder(a.Agg.Entities()))
		if len(args) == 1 {
			if _, err := session.Start(args[0]); err != nil {
				return err
			}
		}
		return runReview(ctx, session, os.Stdin, os.Stdout, isTerminal(os.Stdin))
	},
}

var promptColor = color.New(color.FgCyan, color.Bold)

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// runReview reads questions from in until EOF or :quit. The prompt is only
// printed when interactive is set, so piped question files produce clean
// transcripts.
func runReview(ctx context.Context, s *narrative.Session, in io.Reader, out io.Writer, interactive bool) error {
	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			prompt := "review"
			if b, ok := s.Current(); ok {
				prompt = b.Key
			}
			fmt.Fprint(out, promptColor.Sprintf("%s> ", prompt))
		}

		if !scanner.Scan() {
			if interactive {
				fmt.Fprintln(out)
			}
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == ":quit" || line == ":q" || line == "exit":
			return nil
		case line == ":reset":
			s.Reset()
			fmt.Fprintln(out, "Memory and entity cleared. Use :entity <key>.")
		case line == ":brief":
			b, ok := s.Current()
			if !ok {
				fmt.Fprintln(out, "No entity selected. Use :entity <key>.")
				continue
			}
			if err := report.Write(out, report.FormatTable, []briefing.Brief{b}); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":entity"):
			key := strings.TrimSpace(strings.TrimPrefix(line, ":entity"))
			b, err := s.Start(key)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			fmt.Fprintf(out, "Reviewing %s (%s risk, %s).\n", b.Key, b.RiskLabel, b.PrimaryIssue)
		default:
			answer, err := s.Ask(ctx, line)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				fmt.Fprintln(out, err)
				continue
			}
			fmt.Fprintln(out, answer)
		}
	}
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}
