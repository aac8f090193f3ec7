package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fiscal-cli/internal/aggregate"
	"github.com/sells-group/fiscal-cli/internal/briefing"
	"github.com/sells-group/fiscal-cli/internal/config"
	"github.com/sells-group/fiscal-cli/internal/model"
	"github.com/sells-group/fiscal-cli/internal/narrative"
	"github.com/sells-group/fiscal-cli/internal/scorer"
	"github.com/sells-group/fiscal-cli/pkg/anthropic"
	anthropicmocks "github.com/sells-group/fiscal-cli/pkg/anthropic/mocks"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"score", "risk", "efficiency", "benchmark", "spending", "unified", "snapshot", "brief", "memo", "review", "import", "snapshots", "export", "serve", "watch", "compare"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "fiscal-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("format"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("profile"))
}

func TestMemoCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range memoCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"entity", "explain", "snapshot", "critical"} {
		assert.True(t, names[name], "memo should have subcommand %q", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestImportCommand_Flags(t *testing.T) {
	for _, name := range []string{"file", "sheet", "label"} {
		assert.NotNil(t, importCmd.Flags().Lookup(name), "import should have --%s flag", name)
	}
}

func TestViewCommands_ValidArgs(t *testing.T) {
	assert.Contains(t, riskCmd.ValidArgs, "watchlist")
	assert.Contains(t, efficiencyCmd.ValidArgs, "paradox")
	assert.Contains(t, benchmarkCmd.ValidArgs, "peers")
	assert.Contains(t, unifiedCmd.ValidArgs, "critical")
	assert.Contains(t, spendingCmd.ValidArgs, "foreign-dependent")
	assert.NotNil(t, benchmarkCmd.Flags().Lookup("category"))
	assert.NotNil(t, spendingCmd.Flags().Lookup("threshold"))
}

func TestHelpText(t *testing.T) {
	assert.Contains(t, reviewCmd.Long, ":reset          clear memory and the entity under review")
	profile := rootCmd.PersistentFlags().Lookup("profile")
	require.NotNil(t, profile)
	assert.Contains(t, profile.Usage, "YAML or TOML")
}

func TestMemoFileName(t *testing.T) {
	assert.Equal(t, "ministry_of_health.md", memoFileName(" Ministry of Health "))
	assert.Equal(t, "works_transport.md", memoFileName("works/transport"))
}

func TestToScoreRows(t *testing.T) {
	rows := toScoreRows([]aggregate.UnifiedRow{
		{Entity: model.Entity{Key: "health", TotalSpend: 10}, Score: &scorer.ScoredEntity{UnifiedRank: 1, UnifiedScore: 88, UnifiedTier: scorer.TierCritical}},
		{Entity: model.Entity{Key: "orphan"}},
	})
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, "Critical", rows[0].Tier)
	assert.Zero(t, rows[1].Rank)
	assert.Empty(t, rows[1].Tier)
}

func TestScorerConfig_Profile(t *testing.T) {
	cfg = &config.Config{}
	t.Cleanup(func() { profilePath = "" })

	got, err := scorerConfig()
	require.NoError(t, err)
	assert.Equal(t, scorer.DefaultScorerConfig(), got)

	profilePath = "does-not-exist.yaml"
	_, err = scorerConfig()
	assert.Error(t, err)
}

func TestTableOutput(t *testing.T) {
	t.Cleanup(func() { outputFormat = "table" })
	outputFormat = "TABLE"
	assert.True(t, tableOutput())
	outputFormat = "json"
	assert.False(t, tableOutput())
}

func TestRunReview(t *testing.T) {
	aiClient := anthropicmocks.NewMockClient(t)
	aiClient.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "Spending outpaces outcomes."}},
	}, nil).Once()

	w := narrative.NewWriter(aiClient,
		config.AnthropicConfig{Model: "claude-haiku-4-5-20251001", MaxTokens: 256},
		config.NarrativeConfig{Concurrency: 1, MemoryTurns: 4},
	)
	session := w.NewSession(briefing.NewBuilder([]model.Entity{
		{Key: "health", FiscalRiskLabel: model.RiskHigh},
	}))

	in := strings.NewReader(strings.Join([]string{
		"why is it flagged?",
		":entity ghost",
		":entity health",
		"why is it flagged?",
		":brief",
		":reset",
		":quit",
		"never read",
	}, "\n"))
	var out bytes.Buffer
	require.NoError(t, runReview(context.Background(), session, in, &out, false))

	text := out.String()
	assert.Contains(t, text, "no entity under review")
	assert.Contains(t, text, `entity "ghost" not found`)
	assert.Contains(t, text, "Reviewing health (High risk")
	assert.Contains(t, text, "Spending outpaces outcomes.")
	assert.Contains(t, text, "SUGGESTED ACTION")
	assert.Contains(t, text, "Escalate to Cabinet review")
	assert.Contains(t, text, "Memory and entity cleared.")
	assert.Empty(t, session.History())
	_, ok := session.Current()
	assert.False(t, ok)
	assert.NotContains(t, text, "health> ")
}

func TestRunReview_InteractivePrompt(t *testing.T) {
	cfg = &config.Config{}
	w := narrative.NewWriter(anthropicmocks.NewMockClient(t),
		config.AnthropicConfig{Model: "claude-haiku-4-5-20251001", MaxTokens: 256},
		config.NarrativeConfig{Concurrency: 1},
	)
	session := w.NewSession(briefing.NewBuilder([]model.Entity{{Key: "health"}}))

	var out bytes.Buffer
	require.NoError(t, runReview(context.Background(), session, strings.NewReader(":entity health\n:q\n"), &out, true))
	assert.Contains(t, out.String(), "review> ")
	assert.Contains(t, out.String(), "health> ")
}

func TestDistinctLabels(t *testing.T) {
	labels := distinctLabels([]model.Snapshot{
		{ID: "c", Label: "FY2026"},
		{ID: "b", Label: ""},
		{ID: "a", Label: "FY2025"},
		{ID: "z", Label: "FY2026"},
	})
	assert.Equal(t, []string{"FY2026", "FY2025"}, labels)
	assert.Empty(t, distinctLabels(nil))
}

func TestCompareRows(t *testing.T) {
	snaps := map[string]*model.Snapshot{
		"FY2026": {ID: "s2", Entities: []model.Entity{{Key: "health", TotalSpend: 300}, {Key: "works", TotalSpend: 200}}},
		"FY2025": {ID: "s1", Entities: []model.Entity{{Key: "health", TotalSpend: 250}}},
	}
	scored := map[string][]scorer.ScoredEntity{
		"FY2026": {
			{Key: "works", UnifiedScore: 90, UnifiedTier: scorer.TierCritical},
			{Key: "health", UnifiedScore: 10, UnifiedTier: scorer.TierLow},
		},
		"FY2025": {{Key: "health", UnifiedScore: 60, UnifiedTier: scorer.TierElevated}},
	}

	rows := compareRows(snaps, scored)
	require.Len(t, rows, 2)
	assert.Equal(t, "FY2025", rows[0].Label)
	assert.Equal(t, 1, rows[0].Elevated)
	assert.Equal(t, "FY2026", rows[1].Label)
	assert.Equal(t, "s2", rows[1].SnapshotID)
	assert.Equal(t, 500.0, rows[1].TotalSpend)
	assert.Equal(t, 1, rows[1].Critical)
	assert.Equal(t, 1, rows[1].Low)
	assert.Equal(t, "works", rows[1].TopEntity)
}
