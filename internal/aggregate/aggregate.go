// Package aggregate joins unified scores back onto the entity table and
// answers cross-cutting queries over the merged view.
package aggregate

import (
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fiscal-cli/internal/efficiency"
	"github.com/sells-group/fiscal-cli/internal/model"
	"github.com/sells-group/fiscal-cli/internal/risk"
	"github.com/sells-group/fiscal-cli/internal/scorer"
)

// UnifiedRow is an entity with its unified score. Score is nil when the
// entity was missing from the scored set.
type UnifiedRow struct {
	model.Entity
	Score *scorer.ScoredEntity `json:"score,omitempty"`
}

// UnifiedScore returns the unified score, or 0 for an unscored row.
func (r UnifiedRow) UnifiedScore() float64 {
	if r.Score == nil {
		return 0
	}
	return r.Score.UnifiedScore
}

// Tier returns the unified tier, or "" for an unscored row.
func (r UnifiedRow) Tier() scorer.Tier {
	if r.Score == nil {
		return ""
	}
	return r.Score.UnifiedTier
}

// DistortionRow is the projection returned by StructuralDistortions.
type DistortionRow struct {
	Key             string  `json:"entity_key"`
	TotalSpend      float64 `json:"total_spend"`
	EfficiencyProxy float64 `json:"efficiency_proxy"`
	FiscalRiskScore float64 `json:"fiscal_risk_score"`
}

// TierCounts counts entities per unified tier.
type TierCounts struct {
	Low      int `json:"low"`
	Moderate int `json:"moderate"`
	Elevated int `json:"elevated"`
	Critical int `json:"critical"`
}

// ExecutiveSnapshot is a read-side reduction of the unified table.
type ExecutiveSnapshot struct {
	EntityCount            int        `json:"entity_count"`
	TotalSpend             float64    `json:"total_spend"`
	Tiers                  TierCounts `json:"tiers"`
	Unscored               int        `json:"unscored"`
	HighRiskCount          int        `json:"high_risk_count"`
	BudgetPressureCount    int        `json:"budget_pressure_count"`
	ForeignDependentCount  int        `json:"foreign_dependent_count"`
	CapexPressureCount     int        `json:"capex_pressure_count"`
	PerformanceReviewCount int        `json:"performance_review_count"`
	HighPerformerCount     int        `json:"high_performer_count"`
}

// Build left-joins scored onto entities by normalized key. Every entity
// appears exactly once. Rows are ordered by unified score descending, then
// key ascending, with unscored rows last.
func Build(entities []model.Entity, scored []scorer.ScoredEntity) []UnifiedRow {
	idx := scorer.Index(scored)
	rows := make([]UnifiedRow, 0, len(entities))
	for _, e := range entities {
		row := UnifiedRow{Entity: e}
		if s, ok := idx[model.NormalizeKey(e.Key)]; ok {
			row.Score = &s
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if (a.Score == nil) != (b.Score == nil) {
			return b.Score == nil
		}
		if a.UnifiedScore() != b.UnifiedScore() {
			return a.UnifiedScore() > b.UnifiedScore()
		}
		return model.NormalizeKey(a.Key) < model.NormalizeKey(b.Key)
	})
	return rows
}

// Aggregator owns one scored snapshot and its merged table.
type Aggregator struct {
	entities []model.Entity
	scored   []scorer.ScoredEntity
	table    []UnifiedRow
}

// New scores entities with engine and builds the unified table.
func New(engine *scorer.Engine, entities []model.Entity) (*Aggregator, error) {
	scored, err := engine.ComputeScores(entities)
	if err != nil {
		return nil, eris.Wrap(err, "aggregate: compute scores")
	}
	a := FromScores(entities, scored)

	zap.L().Info("aggregate: built unified table",
		zap.Int("entities", len(entities)),
		zap.Int("scored", len(scored)),
	)
	return a, nil
}

// FromScores builds an Aggregator from scores computed elsewhere.
func FromScores(entities []model.Entity, scored []scorer.ScoredEntity) *Aggregator {
	return &Aggregator{
		entities: entities,
		scored:   scored,
		table:    Build(entities, scored),
	}
}

// Entities returns the raw entity population.
func (a *Aggregator) Entities() []model.Entity {
	return a.entities
}

// Scores returns the scored entities, best rank first.
func (a *Aggregator) Scores() []scorer.ScoredEntity {
	return a.scored
}

// Table returns a copy of the unified table.
func (a *Aggregator) Table() []UnifiedRow {
	out := make([]UnifiedRow, len(a.table))
	copy(out, a.table)
	return out
}

// CriticalEntities returns Critical-tier rows by unified score descending.
func (a *Aggregator) CriticalEntities() []UnifiedRow {
	return a.ByTier(scorer.TierCritical)
}

// ByTier returns the rows in tier, in table order.
func (a *Aggregator) ByTier(tier scorer.Tier) []UnifiedRow {
	out := []UnifiedRow{}
	for _, r := range a.table {
		if r.Tier() == tier {
			out = append(out, r)
		}
	}
	return out
}

// StructuralDistortions returns very-high-spend entities with low efficiency
// or weak outcomes, by spend descending. It does not consult the score.
func (a *Aggregator) StructuralDistortions() []DistortionRow {
	rows := []DistortionRow{}
	for _, e := range a.entities {
		if !risk.IsStructural(e) {
			continue
		}
		rows = append(rows, DistortionRow{
			Key:             e.Key,
			TotalSpend:      e.TotalSpend,
			EfficiencyProxy: e.EfficiencyProxy,
			FiscalRiskScore: e.FiscalRiskScore,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TotalSpend > rows[j].TotalSpend })
	return rows
}

// ExecutiveSnapshot reduces the unified table to headline counts.
func (a *Aggregator) ExecutiveSnapshot() ExecutiveSnapshot {
	s := ExecutiveSnapshot{EntityCount: len(a.table)}
	for _, r := range a.table {
		s.TotalSpend += r.TotalSpend
		switch r.Tier() {
		case scorer.TierLow:
			s.Tiers.Low++
		case scorer.TierModerate:
			s.Tiers.Moderate++
		case scorer.TierElevated:
			s.Tiers.Elevated++
		case scorer.TierCritical:
			s.Tiers.Critical++
		default:
			s.Unscored++
		}
		if r.FiscalRiskLabel == model.RiskHigh {
			s.HighRiskCount++
		}
		if r.BudgetPressure {
			s.BudgetPressureCount++
		}
		if r.ForeignDependent {
			s.ForeignDependentCount++
		}
		if r.CapexPressure {
			s.CapexPressureCount++
		}
		if r.PerformanceReviewRequired {
			s.PerformanceReviewCount++
		}
		if r.HighPerformer {
			s.HighPerformerCount++
		}
	}
	return s
}

// HighValueEntities delegates to the efficiency view.
func (a *Aggregator) HighValueEntities() []efficiency.Row {
	return efficiency.HighValueEntities(a.entities)
}

// EscalationWatchlist delegates to the risk view with unified scores
// available for tie-breaking.
func (a *Aggregator) EscalationWatchlist() []risk.WatchlistRow {
	scores := make(map[string]float64, len(a.scored))
	for _, s := range a.scored {
		scores[model.NormalizeKey(s.Key)] = s.UnifiedScore
	}
	return risk.EscalationWatchlist(a.entities, scores)
}

// Lookup returns the unified row for key, or a *model.LookupError.
func (a *Aggregator) Lookup(key string) (UnifiedRow, error) {
	want := model.NormalizeKey(key)
	for _, r := range a.table {
		if model.NormalizeKey(r.Key) == want {
			return r, nil
		}
	}
	return UnifiedRow{}, &model.LookupError{Key: key}
}
