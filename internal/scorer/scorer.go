package scorer

import (
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fiscal-cli/internal/config"
	"github.com/sells-group/fiscal-cli/internal/model"
	"github.com/sells-group/fiscal-cli/internal/normalize"
)

// Tier is the ordinal risk classification derived from the unified score.
type Tier string

const (
	TierLow      Tier = "Low"
	TierModerate Tier = "Moderate"
	TierElevated Tier = "Elevated"
	TierCritical Tier = "Critical"
)

// Tiers lists every tier from lowest to highest.
var Tiers = []Tier{TierLow, TierModerate, TierElevated, TierCritical}

// ScoredEntity holds the scoring result for a single entity.
type ScoredEntity struct {
	Key                       string  `json:"entity_key"`
	NormalizedRisk            float64 `json:"normalized_risk"`
	NormalizedEfficiency      float64 `json:"normalized_efficiency"`
	NormalizedOutcomeStrength float64 `json:"normalized_outcome_strength"`
	PerformanceComponent      float64 `json:"performance_component"`
	PenaltyTotal              float64 `json:"penalty_total"`
	RawScore                  float64 `json:"raw_score"`
	UnifiedScore              float64 `json:"unified_score"`
	UnifiedRank               int     `json:"unified_rank"`
	UnifiedTier               Tier    `json:"unified_tier"`
}

// Engine computes unified scores with a fixed set of weights.
type Engine struct {
	cfg config.ScorerConfig
}

// New creates an Engine with the given weights.
func New(cfg config.ScorerConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the weights the engine scores with.
func (e *Engine) Config() config.ScorerConfig {
	return e.cfg
}

// ComputeScores scores the full population. Every normalization is relative
// to entities, so callers must score the whole snapshot before filtering.
// The result is ordered by unified score descending, then key ascending.
func (e *Engine) ComputeScores(entities []model.Entity) ([]ScoredEntity, error) {
	if len(entities) == 0 {
		return []ScoredEntity{}, nil
	}

	n := len(entities)
	risk := make([]float64, n)
	eff := make([]float64, n)
	outcome := make([]float64, n)
	for i, ent := range entities {
		ord, err := normalize.Ordinal(ent.OutcomeStrength)
		if err != nil {
			return nil, eris.Wrapf(err, "scorer: entity %q", ent.Key)
		}
		risk[i] = ent.FiscalRiskScore
		eff[i] = ent.EfficiencyProxy
		outcome[i] = float64(ord)
	}

	normRisk := normalize.MinMax(risk)
	normEff := normalize.MinMax(eff)
	normOutcome := normalize.MinMax(outcome)

	scored := make([]ScoredEntity, n)
	raw := make([]float64, n)
	for i, ent := range entities {
		s := ScoredEntity{
			Key:                       ent.Key,
			NormalizedRisk:            normRisk[i],
			NormalizedEfficiency:      normEff[i],
			NormalizedOutcomeStrength: normOutcome[i],
		}
		if !ent.IsDebtService() {
			s.PerformanceComponent = normEff[i]*e.cfg.EfficiencyWeight +
				normOutcome[i]*e.cfg.OutcomeWeight
		}
		s.PenaltyTotal = penalty(ent, e.cfg)
		s.RawScore = normRisk[i]*e.cfg.RiskWeight + s.PerformanceComponent + s.PenaltyTotal
		raw[i] = s.RawScore
		scored[i] = s
	}

	for i, v := range normalize.MinMax(raw) {
		scored[i].UnifiedScore = roundScore(v * 100)
		scored[i].UnifiedTier = TierFor(scored[i].UnifiedScore)
	}

	sortScored(scored)
	assignDenseRanks(scored)

	zap.L().Info("scorer: computed unified scores",
		zap.Int("entities", n),
		zap.Int("critical", CountTier(scored, TierCritical)),
		zap.String("config_hash", ConfigHash(e.cfg)),
	)

	return scored, nil
}

// TierFor maps a unified score to its tier. Bins are closed on the right:
// (-inf,25] Low, (25,50] Moderate, (50,75] Elevated, (75,+inf) Critical.
func TierFor(score float64) Tier {
	switch {
	case score <= 25:
		return TierLow
	case score <= 50:
		return TierModerate
	case score <= 75:
		return TierElevated
	default:
		return TierCritical
	}
}

// ParseTier matches s against the tier names, ignoring case.
func ParseTier(s string) (Tier, error) {
	for _, t := range Tiers {
		if strings.EqualFold(strings.TrimSpace(s), string(t)) {
			return t, nil
		}
	}
	return "", eris.Errorf("scorer: unknown tier %q", s)
}

// CountTier returns how many scored entities fall in tier.
func CountTier(scored []ScoredEntity, tier Tier) int {
	n := 0
	for i := range scored {
		if scored[i].UnifiedTier == tier {
			n++
		}
	}
	return n
}

// Index maps normalized entity keys to their scores.
func Index(scored []ScoredEntity) map[string]ScoredEntity {
	idx := make(map[string]ScoredEntity, len(scored))
	for _, s := range scored {
		idx[model.NormalizeKey(s.Key)] = s
	}
	return idx
}

func penalty(ent model.Entity, cfg config.ScorerConfig) float64 {
	var p float64
	if ent.BudgetPressure {
		p += cfg.BudgetPressurePenalty
	}
	if ent.ForeignDependent {
		p += cfg.ForeignDependencyPenalty
	}
	if ent.CapexPressure {
		p += cfg.CapexPressurePenalty
	}
	return p
}

// roundScore rounds to two decimals so floating-point noise from the
// epsilon denominator cannot split ties or move a score across a bin edge.
func roundScore(v float64) float64 {
	return math.Round(v*100) / 100
}

func sortScored(scored []ScoredEntity) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].UnifiedScore != scored[j].UnifiedScore {
			return scored[i].UnifiedScore > scored[j].UnifiedScore
		}
		return model.NormalizeKey(scored[i].Key) < model.NormalizeKey(scored[j].Key)
	})
}

// assignDenseRanks expects scored sorted by score descending.
func assignDenseRanks(scored []ScoredEntity) {
	rank := 0
	for i := range scored {
		if i == 0 || scored[i].UnifiedScore != scored[i-1].UnifiedScore {
			rank++
		}
		scored[i].UnifiedRank = rank
	}
}
