// Package efficiency analyses cost per outcome and delivery mismatches.
// The aggregate debt-service entity is excluded from every view.
package efficiency

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fiscal-cli/internal/model"
	"github.com/sells-group/fiscal-cli/internal/normalize"
)

// ParadoxMaxOrdinal is the highest outcome ordinal (weak) at which a
// nominally high-efficiency entity is reported as a performance paradox.
const ParadoxMaxOrdinal = 1

// Row is the projection shared by the ranked efficiency views.
type Row struct {
	Key             string  `json:"entity_key"`
	SpendPerOutcome float64 `json:"spend_per_outcome"`
	TotalSpend      float64 `json:"total_spend"`
	EfficiencyRank  int     `json:"efficiency_rank"`
	EfficiencyProxy float64 `json:"efficiency_proxy"`
}

// ParadoxRow is the projection returned by PerformanceParadox.
type ParadoxRow struct {
	Key             string         `json:"entity_key"`
	EfficiencyRank  int            `json:"efficiency_rank"`
	OutcomeStrength model.Strength `json:"outcome_strength"`
	OutcomeOrdinal  int            `json:"outcome_ordinal"`
	SpendPerOutcome float64        `json:"spend_per_outcome"`
	TotalSpend      float64        `json:"total_spend"`
}

// GapRow is the projection returned by OutcomeReportingGaps.
type GapRow struct {
	Key          string  `json:"entity_key"`
	OutputCount  int     `json:"output_count"`
	OutcomeCount int     `json:"outcome_count"`
	TotalSpend   float64 `json:"total_spend"`
}

// Summary describes the efficiency distribution.
type Summary struct {
	MeanEfficiencyProxy   float64 `json:"mean_efficiency_proxy"`
	MedianSpendPerOutcome float64 `json:"median_spend_per_outcome"`
	LowEfficiencyCount    int     `json:"low_efficiency_count"`
	HighEfficiencyCount   int     `json:"high_efficiency_count"`
}

// performance drops the debt-service entity.
func performance(entities []model.Entity) []model.Entity {
	out := make([]model.Entity, 0, len(entities))
	for _, e := range entities {
		if !e.IsDebtService() {
			out = append(out, e)
		}
	}
	return out
}

func toRow(e model.Entity) Row {
	return Row{
		Key:             e.Key,
		SpendPerOutcome: e.SpendPerOutcome,
		TotalSpend:      e.TotalSpend,
		EfficiencyRank:  e.EfficiencyRank,
		EfficiencyProxy: e.EfficiencyProxy,
	}
}

func limit[T any](rows []T, n int) []T {
	if n > 0 && len(rows) > n {
		return rows[:n]
	}
	return rows
}

// HighestCostPerOutcome returns the n entities with measured outcomes and the
// highest spend per outcome. n <= 0 returns all of them.
func HighestCostPerOutcome(entities []model.Entity, n int) []Row {
	rows := []Row{}
	for _, e := range performance(entities) {
		if e.OutcomeCount > 0 {
			rows = append(rows, toRow(e))
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].SpendPerOutcome > rows[j].SpendPerOutcome })
	return limit(rows, n)
}

// HiddenInefficiency returns very-high-spend entities with weak outcomes, by
// spend descending.
func HiddenInefficiency(entities []model.Entity) []Row {
	rows := []Row{}
	for _, e := range performance(entities) {
		if e.VeryHighSpend && e.WeakOutcomes {
			rows = append(rows, toRow(e))
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TotalSpend > rows[j].TotalSpend })
	return rows
}

// HighValueEntities returns low-spend entities with strong outcomes, best
// efficiency rank first.
func HighValueEntities(entities []model.Entity) []Row {
	rows := []Row{}
	for _, e := range performance(entities) {
		if e.StrongOutcomes && e.LowSpend {
			rows = append(rows, toRow(e))
		}
	}
	sortByRank(rows)
	return rows
}

// PerformanceParadox returns entities flagged high-efficiency whose outcome
// strength ordinal is at most ParadoxMaxOrdinal, weakest outcome first.
func PerformanceParadox(entities []model.Entity) ([]ParadoxRow, error) {
	rows := []ParadoxRow{}
	for _, e := range performance(entities) {
		if !e.HighEfficiency {
			continue
		}
		ord, err := normalize.Ordinal(e.OutcomeStrength)
		if err != nil {
			return nil, eris.Wrapf(err, "efficiency: entity %q", e.Key)
		}
		if ord > ParadoxMaxOrdinal {
			continue
		}
		rows = append(rows, ParadoxRow{
			Key:             e.Key,
			EfficiencyRank:  e.EfficiencyRank,
			OutcomeStrength: e.OutcomeStrength,
			OutcomeOrdinal:  ord,
			SpendPerOutcome: e.SpendPerOutcome,
			TotalSpend:      e.TotalSpend,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].OutcomeOrdinal < rows[j].OutcomeOrdinal })
	return rows, nil
}

// OutcomeReportingGaps returns entities reporting outputs but no outcomes,
// by spend descending.
func OutcomeReportingGaps(entities []model.Entity) []GapRow {
	rows := []GapRow{}
	for _, e := range performance(entities) {
		if !e.HasOutcomeGap() {
			continue
		}
		rows = append(rows, GapRow{
			Key:          e.Key,
			OutputCount:  e.OutputCount,
			OutcomeCount: e.OutcomeCount,
			TotalSpend:   e.TotalSpend,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TotalSpend > rows[j].TotalSpend })
	return rows
}

// TopEfficient returns the n best-ranked entities. Unranked entities
// (efficiency_rank 0) are left out. n <= 0 returns all.
func TopEfficient(entities []model.Entity, n int) []Row {
	rows := ranked(entities)
	sortByRank(rows)
	return limit(rows, n)
}

// LeastEfficient returns the n worst-ranked entities. n <= 0 returns all.
func LeastEfficient(entities []model.Entity, n int) []Row {
	rows := ranked(entities)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].EfficiencyRank > rows[j].EfficiencyRank })
	return limit(rows, n)
}

// HighPerformers returns entities flagged as high performers, best rank first.
func HighPerformers(entities []model.Entity) []Row {
	rows := []Row{}
	for _, e := range performance(entities) {
		if e.HighPerformer {
			rows = append(rows, toRow(e))
		}
	}
	sortByRank(rows)
	return rows
}

// Summarize reports the efficiency distribution.
func Summarize(entities []model.Entity) Summary {
	perf := performance(entities)
	proxies := make([]float64, 0, len(perf))
	spo := make([]float64, 0, len(perf))

	var s Summary
	for _, e := range perf {
		proxies = append(proxies, e.EfficiencyProxy)
		spo = append(spo, e.SpendPerOutcome)
		if e.LowEfficiency {
			s.LowEfficiencyCount++
		}
		if e.HighEfficiency {
			s.HighEfficiencyCount++
		}
	}
	s.MeanEfficiencyProxy = normalize.Mean(proxies)
	s.MedianSpendPerOutcome = normalize.Median(spo)
	return s
}

func ranked(entities []model.Entity) []Row {
	rows := []Row{}
	for _, e := range performance(entities) {
		if e.EfficiencyRank > 0 {
			rows = append(rows, toRow(e))
		}
	}
	return rows
}

// sortByRank puts ranked entities first by ascending rank, unranked last.
func sortByRank(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].EfficiencyRank, rows[j].EfficiencyRank
		if (a == 0) != (b == 0) {
			return b == 0
		}
		return a < b
	})
}
