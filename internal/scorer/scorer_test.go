package scorer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fiscal-cli/internal/model"
	"github.com/sells-group/fiscal-cli/internal/normalize"
)

func entity(key string, risk float64) model.Entity {
	return model.Entity{
		Key:             key,
		FiscalRiskScore: risk,
		EfficiencyProxy: 1,
		OutcomeStrength: model.StrengthModerate,
		AgencyCategory:  model.CategoryMinistry,
	}
}

func byKey(scored []ScoredEntity) map[string]ScoredEntity {
	out := make(map[string]ScoredEntity, len(scored))
	for _, s := range scored {
		out[s.Key] = s
	}
	return out
}

func TestComputeScores_ThreeEntityScenario(t *testing.T) {
	eng := New(DefaultScorerConfig())
	scored, err := eng.ComputeScores([]model.Entity{
		entity("a", 10),
		entity("b", 50),
		entity("c", 90),
	})
	require.NoError(t, err)
	require.Len(t, scored, 3)

	got := byKey(scored)
	assert.InDelta(t, 0, got["a"].NormalizedRisk, 1e-6)
	assert.InDelta(t, 0.5, got["b"].NormalizedRisk, 1e-6)
	assert.InDelta(t, 1, got["c"].NormalizedRisk, 1e-6)

	assert.Less(t, got["a"].RawScore, got["b"].RawScore)
	assert.Less(t, got["b"].RawScore, got["c"].RawScore)

	assert.Equal(t, 0.0, got["a"].UnifiedScore)
	assert.Equal(t, 50.0, got["b"].UnifiedScore)
	assert.Equal(t, 100.0, got["c"].UnifiedScore)

	assert.Equal(t, 3, got["a"].UnifiedRank)
	assert.Equal(t, 2, got["b"].UnifiedRank)
	assert.Equal(t, 1, got["c"].UnifiedRank)

	assert.Equal(t, TierLow, got["a"].UnifiedTier)
	assert.Equal(t, TierModerate, got["b"].UnifiedTier)
	assert.Equal(t, TierCritical, got["c"].UnifiedTier)

	// Output is ordered best rank first.
	assert.Equal(t, []string{"c", "b", "a"}, []string{scored[0].Key, scored[1].Key, scored[2].Key})
}

func TestComputeScores_Empty(t *testing.T) {
	scored, err := New(DefaultScorerConfig()).ComputeScores(nil)
	require.NoError(t, err)
	assert.NotNil(t, scored)
	assert.Empty(t, scored)
}

func TestComputeScores_SingleEntity(t *testing.T) {
	e := entity("only", 77)
	e.BudgetPressure = true
	scored, err := New(DefaultScorerConfig()).ComputeScores([]model.Entity{e})
	require.NoError(t, err)
	require.Len(t, scored, 1)

	s := scored[0]
	assert.Zero(t, s.NormalizedRisk)
	assert.Zero(t, s.NormalizedEfficiency)
	assert.Zero(t, s.NormalizedOutcomeStrength)
	assert.Zero(t, s.UnifiedScore)
	assert.Equal(t, 1, s.UnifiedRank)
	assert.Equal(t, TierLow, s.UnifiedTier)
	assert.InDelta(t, 0.10, s.PenaltyTotal, 1e-9)
}

func TestComputeScores_ScoreRange(t *testing.T) {
	var entities []model.Entity
	strengths := []model.Strength{"very weak", "weak", "moderate", "strong", "very strong"}
	for i := 0; i < 25; i++ {
		e := model.Entity{
			Key:              fmt.Sprintf("entity %02d", i),
			FiscalRiskScore:  float64((i * 37) % 101),
			EfficiencyProxy:  float64((i*13)%17) / 3,
			OutcomeStrength:  strengths[i%5],
			AgencyCategory:   model.CategoryMinistry,
			BudgetPressure:   i%3 == 0,
			ForeignDependent: i%4 == 0,
			CapexPressure:    i%5 == 0,
		}
		entities = append(entities, e)
	}

	scored, err := New(DefaultScorerConfig()).ComputeScores(entities)
	require.NoError(t, err)
	require.Len(t, scored, len(entities))

	lo, hi := scored[0].UnifiedScore, scored[0].UnifiedScore
	for _, s := range scored {
		assert.GreaterOrEqual(t, s.UnifiedScore, 0.0)
		assert.LessOrEqual(t, s.UnifiedScore, 100.0)
		assert.GreaterOrEqual(t, s.NormalizedRisk, 0.0)
		assert.LessOrEqual(t, s.NormalizedRisk, 1.0)
		assert.Equal(t, TierFor(s.UnifiedScore), s.UnifiedTier)
		if s.UnifiedScore < lo {
			lo = s.UnifiedScore
		}
		if s.UnifiedScore > hi {
			hi = s.UnifiedScore
		}
	}
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 100.0, hi)
}

func TestComputeScores_DebtServiceExcludedFromPerformance(t *testing.T) {
	debt := model.Entity{
		Key:             "Public Debt",
		FiscalRiskScore: 40,
		EfficiencyProxy: 99,
		OutcomeStrength: model.StrengthVeryStrong,
		AgencyCategory:  model.CategoryDebtService,
		BudgetPressure:  true,
	}
	other := entity("ministry of health", 20)
	other.OutcomeStrength = model.StrengthVeryWeak

	scored, err := New(DefaultScorerConfig()).ComputeScores([]model.Entity{debt, other})
	require.NoError(t, err)

	got := byKey(scored)
	d := got["Public Debt"]
	assert.Zero(t, d.PerformanceComponent)
	assert.InDelta(t, 1, d.NormalizedEfficiency, 1e-6)
	// Risk and penalty terms still count.
	assert.InDelta(t, 0.40+0.10, d.RawScore, 1e-6)
	assert.Equal(t, 1, d.UnifiedRank)
}

func TestComputeScores_PenaltiesAdditive(t *testing.T) {
	e := entity("x", 10)
	e.BudgetPressure = true
	e.ForeignDependent = true
	e.CapexPressure = true

	scored, err := New(DefaultScorerConfig()).ComputeScores([]model.Entity{e, entity("y", 10)})
	require.NoError(t, err)
	got := byKey(scored)
	assert.InDelta(t, 0.20, got["x"].PenaltyTotal, 1e-9)
	assert.Zero(t, got["y"].PenaltyTotal)
}

func TestComputeScores_TiesShareRankOrderedByKey(t *testing.T) {
	scored, err := New(DefaultScorerConfig()).ComputeScores([]model.Entity{
		entity("zeta", 90),
		entity("beta", 10),
		entity("alpha", 90),
		entity("gamma", 50),
	})
	require.NoError(t, err)

	keys := make([]string, len(scored))
	ranks := make([]int, len(scored))
	for i, s := range scored {
		keys[i] = s.Key
		ranks[i] = s.UnifiedRank
	}
	assert.Equal(t, []string{"alpha", "zeta", "gamma", "beta"}, keys)
	assert.Equal(t, []int{1, 1, 2, 3}, ranks)
}

func TestComputeScores_Idempotent(t *testing.T) {
	entities := []model.Entity{entity("a", 3), entity("b", 8), entity("c", 1), entity("d", 8)}
	entities[1].ForeignDependent = true
	eng := New(DefaultScorerConfig())

	first, err := eng.ComputeScores(entities)
	require.NoError(t, err)
	second, err := eng.ComputeScores(entities)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComputeScores_InvalidOutcomeStrength(t *testing.T) {
	bad := entity("bad", 5)
	bad.OutcomeStrength = "excellent"

	_, err := New(DefaultScorerConfig()).ComputeScores([]model.Entity{entity("ok", 1), bad})
	require.Error(t, err)

	var ice *normalize.InvalidCategoryError
	assert.True(t, errors.As(err, &ice))
	assert.Contains(t, err.Error(), "bad")
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		score float64
		want  Tier
	}{
		{0, TierLow},
		{25, TierLow},
		{25.01, TierModerate},
		{50, TierModerate},
		{50.01, TierElevated},
		{75, TierElevated},
		{75.01, TierCritical},
		{100, TierCritical},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.2f", tt.score), func(t *testing.T) {
			assert.Equal(t, tt.want, TierFor(tt.score))
		})
	}
}

func TestIndexAndCountTier(t *testing.T) {
	scored := []ScoredEntity{
		{Key: "Ministry of Health", UnifiedTier: TierCritical},
		{Key: "public debt", UnifiedTier: TierLow},
	}
	idx := Index(scored)
	assert.Contains(t, idx, "ministry of health")
	assert.Equal(t, 1, CountTier(scored, TierCritical))
	assert.Zero(t, CountTier(scored, TierElevated))
}

func TestScoreSnapshots_IndependentScales(t *testing.T) {
	eng := New(DefaultScorerConfig())
	out, err := eng.ScoreSnapshots(map[string][]model.Entity{
		"2023": {entity("a", 10), entity("b", 20)},
		"2024": {entity("a", 1000), entity("b", 5000), entity("c", 2000)},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)

	y23 := byKey(out["2023"])
	y24 := byKey(out["2024"])
	assert.Equal(t, 100.0, y23["b"].UnifiedScore)
	assert.Equal(t, 100.0, y24["b"].UnifiedScore)
	assert.Equal(t, 0.0, y24["a"].UnifiedScore)
}

func TestScoreSnapshots_PropagatesError(t *testing.T) {
	bad := entity("bad", 1)
	bad.OutcomeStrength = ""
	_, err := New(DefaultScorerConfig()).ScoreSnapshots(map[string][]model.Entity{"2024": {bad}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot 2024")
}

func TestValidateConfig(t *testing.T) {
	t.Run("valid default config", func(t *testing.T) {
		require.NoError(t, ValidateConfig(DefaultScorerConfig()))
	})

	t.Run("negative weight", func(t *testing.T) {
		cfg := DefaultScorerConfig()
		cfg.RiskWeight = -1
		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "risk_weight must be >= 0")
	})

	t.Run("negative penalty", func(t *testing.T) {
		cfg := DefaultScorerConfig()
		cfg.CapexPressurePenalty = -0.5
		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "capex_pressure_penalty must be >= 0")
	})

	t.Run("zero weights", func(t *testing.T) {
		cfg := DefaultScorerConfig()
		cfg.RiskWeight, cfg.EfficiencyWeight, cfg.OutcomeWeight = 0, 0, 0
		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "weight sum must be > 0")
	})
}

func TestWeightSum(t *testing.T) {
	assert.InDelta(t, 0.80, WeightSum(DefaultScorerConfig()), 1e-9)
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("risk_weight: 0.6\ncapex_pressure_penalty: 0\n"), 0644))

	cfg, err := LoadProfile(path, DefaultScorerConfig())
	require.NoError(t, err)
	assert.InDelta(t, 0.6, cfg.RiskWeight, 1e-9)
	assert.Zero(t, cfg.CapexPressurePenalty)
	// Untouched keys keep their base value.
	assert.InDelta(t, 0.25, cfg.EfficiencyWeight, 1e-9)
	assert.Equal(t, path, cfg.ProfilePath)
}

func TestLoadProfile_TOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "austerity.toml")
	require.NoError(t, os.WriteFile(path, []byte("risk_weight = 0.5\nbudget_pressure_penalty = 0.2\n"), 0644))

	cfg, err := LoadProfile(path, DefaultScorerConfig())
	require.NoError(t, err)
	assert.InDelta(t, 0.5, cfg.RiskWeight, 1e-9)
	assert.InDelta(t, 0.2, cfg.BudgetPressurePenalty, 1e-9)
	assert.InDelta(t, 0.15, cfg.OutcomeWeight, 1e-9)

	garbled := filepath.Join(dir, "garbled.toml")
	require.NoError(t, os.WriteFile(garbled, []byte("risk_weight = = 1\n"), 0644))
	_, err = LoadProfile(garbled, DefaultScorerConfig())
	assert.Error(t, err)
}

func TestLoadProfile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadProfile(filepath.Join(dir, "missing.yaml"), DefaultScorerConfig())
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("outcome_weight: -2\n"), 0644))
	_, err = LoadProfile(invalid, DefaultScorerConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outcome_weight must be >= 0")

	garbled := filepath.Join(dir, "garbled.yaml")
	require.NoError(t, os.WriteFile(garbled, []byte("risk_weight: [unclosed\n"), 0644))
	_, err = LoadProfile(garbled, DefaultScorerConfig())
	assert.Error(t, err)
}

func TestConfigHash(t *testing.T) {
	a := DefaultScorerConfig()
	b := DefaultScorerConfig()
	b.ProfilePath = "elsewhere.yaml"
	assert.Len(t, ConfigHash(a), 32)
	assert.Equal(t, ConfigHash(a), ConfigHash(b))

	b.RiskWeight = 0.5
	assert.NotEqual(t, ConfigHash(a), ConfigHash(b))
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier(" critical ")
	require.NoError(t, err)
	assert.Equal(t, TierCritical, tier)

	_, err = ParseTier("severe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tier")
}
