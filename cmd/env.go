package main

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fiscal-cli/internal/aggregate"
	"github.com/sells-group/fiscal-cli/internal/config"
	"github.com/sells-group/fiscal-cli/internal/cost"
	"github.com/sells-group/fiscal-cli/internal/memocache"
	"github.com/sells-group/fiscal-cli/internal/model"
	"github.com/sells-group/fiscal-cli/internal/narrative"
	"github.com/sells-group/fiscal-cli/internal/report"
	"github.com/sells-group/fiscal-cli/internal/scorer"
	"github.com/sells-group/fiscal-cli/internal/store"
	"github.com/sells-group/fiscal-cli/pkg/anthropic"
)

// analysis bundles one loaded snapshot with its scores.
type analysis struct {
	Snapshot *model.Snapshot
	Engine   *scorer.Engine
	Agg      *aggregate.Aggregator
}

// loadAnalysis validates cfg for mode, loads the configured snapshot and
// scores it.
func loadAnalysis(ctx context.Context, mode string) (*analysis, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	src, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open source")
	}
	defer src.Close() //nolint:errcheck

	snap, err := src.Load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "load snapshot")
	}

	return analyze(snap)
}

func analyze(snap *model.Snapshot) (*analysis, error) {
	weights, err := scorerConfig()
	if err != nil {
		return nil, err
	}
	engine := scorer.New(weights)

	agg, err := aggregate.New(engine, snap.Entities)
	if err != nil {
		return nil, err
	}

	zap.L().Info("snapshot scored",
		zap.String("snapshot", snap.ID),
		zap.String("source", snap.Source),
		zap.String("config_hash", scorer.ConfigHash(weights)),
	)
	return &analysis{Snapshot: snap, Engine: engine, Agg: agg}, nil
}

// scorerConfig returns the configured weights, overlaid with --profile.
func scorerConfig() (config.ScorerConfig, error) {
	base := cfg.Scorer
	if scorer.WeightSum(base) == 0 {
		base = scorer.DefaultScorerConfig()
	}
	if profilePath != "" {
		return scorer.LoadProfile(profilePath, base)
	}
	if err := scorer.ValidateConfig(base); err != nil {
		return base, err
	}
	return base, nil
}

// usage accumulates Claude spend for the current command.
var usage = cost.NewTracker(cost.NewCalculator(cost.DefaultRates()))

// newWriter builds the narrative writer from config. A memo cache that
// cannot be reached is logged and skipped.
func newWriter(ctx context.Context) *narrative.Writer {
	client := anthropic.NewClient(cfg.Anthropic.Key)
	opts := []narrative.Option{narrative.WithCostTracker(usage)}

	cache, err := memocache.New(ctx, cfg.Cache)
	if err != nil {
		zap.L().Warn("memo cache unavailable", zap.Error(err))
	} else if cache != nil {
		opts = append(opts, narrative.WithCache(cache))
	}
	return narrative.NewWriter(client, cfg.Anthropic, cfg.Narrative, opts...)
}

// writeRows renders rows in the --format encoding.
func writeRows(w io.Writer, rows any) error {
	format, err := report.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	return report.Write(w, format, rows)
}

// tierCounts lists the snapshot tier counts, highest tier first.
func tierCounts(s aggregate.ExecutiveSnapshot) []report.TierCount {
	return []report.TierCount{
		{Tier: string(scorer.TierCritical), Count: s.Tiers.Critical},
		{Tier: string(scorer.TierElevated), Count: s.Tiers.Elevated},
		{Tier: string(scorer.TierModerate), Count: s.Tiers.Moderate},
		{Tier: string(scorer.TierLow), Count: s.Tiers.Low},
	}
}

// tableOutput reports whether --format selects the aligned table.
func tableOutput() bool {
	f, err := report.ParseFormat(outputFormat)
	return err == nil && f == report.FormatTable
}
