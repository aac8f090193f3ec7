// Package risk filters the raw entity population by fiscal risk predicates.
//
// The views read entity attributes only, so they are unaffected by changes to
// the unified scoring weights. Each view returns a projection and never
// modifies its input.
package risk

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/fiscal-cli/internal/model"
)

// Watch flag names used by the escalation watchlist.
const (
	FlagBudgetPressure    = "budget_pressure"
	FlagPerformanceReview = "performance_review_required"
	FlagForeignDependent  = "foreign_dependent"
	FlagCapexPressure     = "capex_pressure"
)

// WatchlistThreshold is the minimum number of watch flags for escalation.
const WatchlistThreshold = 2

// HighRiskRow is the projection returned by HighRisk.
type HighRiskRow struct {
	Key              string  `json:"entity_key"`
	FiscalRiskScore  float64 `json:"fiscal_risk_score"`
	TotalSpend       float64 `json:"total_spend"`
	BudgetPressure   bool    `json:"budget_pressure"`
	ForeignDependent bool    `json:"foreign_dependent"`
}

// BudgetPressureRow is the projection returned by BudgetPressureEntities.
type BudgetPressureRow struct {
	Key             string  `json:"entity_key"`
	TotalSpend      float64 `json:"total_spend"`
	FiscalRiskScore float64 `json:"fiscal_risk_score"`
	CapexPressure   bool    `json:"capex_pressure"`
}

// StructuralRow is the projection returned by StructuralRisk.
type StructuralRow struct {
	Key             string  `json:"entity_key"`
	TotalSpend      float64 `json:"total_spend"`
	FiscalRiskScore float64 `json:"fiscal_risk_score"`
	LowEfficiency   bool    `json:"low_efficiency"`
	WeakOutcomes    bool    `json:"weak_outcomes"`
}

// ForeignRow is the projection returned by ForeignDependencyRisk.
type ForeignRow struct {
	Key             string  `json:"entity_key"`
	ForeignExposure float64 `json:"foreign_exposure"`
	TotalSpend      float64 `json:"total_spend"`
	CapexPressure   bool    `json:"capex_pressure"`
}

// WatchlistRow is the projection returned by EscalationWatchlist.
type WatchlistRow struct {
	Key             string   `json:"entity_key"`
	FlagCount       int      `json:"flag_count"`
	Flags           []string `json:"flags"`
	FiscalRiskScore float64  `json:"fiscal_risk_score"`
	TotalSpend      float64  `json:"total_spend"`
	// UnifiedScore is set only when scores were supplied.
	UnifiedScore *float64 `json:"unified_score,omitempty"`
}

// TableRow is one line of the fiscal risk table.
type TableRow struct {
	Key              string          `json:"entity_key"`
	FiscalRiskScore  float64         `json:"fiscal_risk_score"`
	FiscalRiskLabel  model.RiskLabel `json:"fiscal_risk_label"`
	BudgetPressure   bool            `json:"budget_pressure"`
	ForeignDependent bool            `json:"foreign_dependent"`
	CapexPressure    bool            `json:"capex_pressure"`
}

// Summary counts the risk flags across the population.
type Summary struct {
	HighRiskCount          int `json:"high_risk_count"`
	BudgetPressureCount    int `json:"budget_pressure_count"`
	ForeignDependentCount  int `json:"foreign_dependent_count"`
	CapexPressureCount     int `json:"capex_pressure_count"`
	PerformanceReviewCount int `json:"performance_review_count"`
}

// HighRisk returns entities labelled High, by fiscal risk score descending.
func HighRisk(entities []model.Entity) []HighRiskRow {
	rows := []HighRiskRow{}
	for _, e := range entities {
		if e.FiscalRiskLabel != model.RiskHigh {
			continue
		}
		rows = append(rows, HighRiskRow{
			Key:              e.Key,
			FiscalRiskScore:  e.FiscalRiskScore,
			TotalSpend:       e.TotalSpend,
			BudgetPressure:   e.BudgetPressure,
			ForeignDependent: e.ForeignDependent,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].FiscalRiskScore > rows[j].FiscalRiskScore })
	return rows
}

// BudgetPressureEntities returns entities under budget pressure, by spend descending.
func BudgetPressureEntities(entities []model.Entity) []BudgetPressureRow {
	rows := []BudgetPressureRow{}
	for _, e := range entities {
		if !e.BudgetPressure {
			continue
		}
		rows = append(rows, BudgetPressureRow{
			Key:             e.Key,
			TotalSpend:      e.TotalSpend,
			FiscalRiskScore: e.FiscalRiskScore,
			CapexPressure:   e.CapexPressure,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TotalSpend > rows[j].TotalSpend })
	return rows
}

// StructuralRisk returns very-high-spend entities with weak outcomes or low
// efficiency, by spend descending.
func StructuralRisk(entities []model.Entity) []StructuralRow {
	rows := []StructuralRow{}
	for _, e := range entities {
		if !IsStructural(e) {
			continue
		}
		rows = append(rows, StructuralRow{
			Key:             e.Key,
			TotalSpend:      e.TotalSpend,
			FiscalRiskScore: e.FiscalRiskScore,
			LowEfficiency:   e.LowEfficiency,
			WeakOutcomes:    e.WeakOutcomes,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TotalSpend > rows[j].TotalSpend })
	return rows
}

// IsStructural reports very high spend combined with weak delivery.
func IsStructural(e model.Entity) bool {
	return e.VeryHighSpend && (e.WeakOutcomes || e.LowEfficiency)
}

// ForeignDependencyRisk returns foreign-dependent entities, by foreign
// exposure descending.
func ForeignDependencyRisk(entities []model.Entity) []ForeignRow {
	rows := []ForeignRow{}
	for _, e := range entities {
		if !e.ForeignDependent {
			continue
		}
		rows = append(rows, ForeignRow{
			Key:             e.Key,
			ForeignExposure: e.ForeignExposure,
			TotalSpend:      e.TotalSpend,
			CapexPressure:   e.CapexPressure,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ForeignExposure > rows[j].ForeignExposure })
	return rows
}

// WatchFlags returns the names of the watch flags set on e.
func WatchFlags(e model.Entity) []string {
	var flags []string
	if e.BudgetPressure {
		flags = append(flags, FlagBudgetPressure)
	}
	if e.PerformanceReviewRequired {
		flags = append(flags, FlagPerformanceReview)
	}
	if e.ForeignDependent {
		flags = append(flags, FlagForeignDependent)
	}
	if e.CapexPressure {
		flags = append(flags, FlagCapexPressure)
	}
	return flags
}

// EscalationWatchlist returns entities with at least WatchlistThreshold watch
// flags set, by flag count descending. Ties are broken by unified score
// descending when scores (keyed by model.NormalizeKey) are supplied, else by
// fiscal risk score descending, then by key.
func EscalationWatchlist(entities []model.Entity, scores map[string]float64) []WatchlistRow {
	rows := []WatchlistRow{}
	for _, e := range entities {
		flags := WatchFlags(e)
		if len(flags) < WatchlistThreshold {
			continue
		}
		row := WatchlistRow{
			Key:             e.Key,
			FlagCount:       len(flags),
			Flags:           flags,
			FiscalRiskScore: e.FiscalRiskScore,
			TotalSpend:      e.TotalSpend,
		}
		if s, ok := scores[model.NormalizeKey(e.Key)]; ok {
			row.UnifiedScore = &s
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.FlagCount != b.FlagCount {
			return a.FlagCount > b.FlagCount
		}
		if a.UnifiedScore != nil && b.UnifiedScore != nil && *a.UnifiedScore != *b.UnifiedScore {
			return *a.UnifiedScore > *b.UnifiedScore
		}
		if a.FiscalRiskScore != b.FiscalRiskScore {
			return a.FiscalRiskScore > b.FiscalRiskScore
		}
		return model.NormalizeKey(a.Key) < model.NormalizeKey(b.Key)
	})

	zap.L().Debug("risk: escalation watchlist",
		zap.Int("entities", len(entities)),
		zap.Int("escalated", len(rows)),
	)
	return rows
}

// FiscalRiskTable returns every entity by fiscal risk score descending.
func FiscalRiskTable(entities []model.Entity) []TableRow {
	rows := make([]TableRow, 0, len(entities))
	for _, e := range entities {
		rows = append(rows, TableRow{
			Key:              e.Key,
			FiscalRiskScore:  e.FiscalRiskScore,
			FiscalRiskLabel:  e.FiscalRiskLabel,
			BudgetPressure:   e.BudgetPressure,
			ForeignDependent: e.ForeignDependent,
			CapexPressure:    e.CapexPressure,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].FiscalRiskScore > rows[j].FiscalRiskScore })
	return rows
}

// Summarize counts the risk flags across the population.
func Summarize(entities []model.Entity) Summary {
	var s Summary
	for _, e := range entities {
		if e.FiscalRiskLabel == model.RiskHigh {
			s.HighRiskCount++
		}
		if e.BudgetPressure {
			s.BudgetPressureCount++
		}
		if e.ForeignDependent {
			s.ForeignDependentCount++
		}
		if e.CapexPressure {
			s.CapexPressureCount++
		}
		if e.PerformanceReviewRequired {
			s.PerformanceReviewCount++
		}
	}
	return s
}
