// Package spending answers national and per-entity spending questions over
// the capex, opex and foreign financing columns.
package spending

import (
	"sort"

	"github.com/sells-group/fiscal-cli/internal/model"
)

// Default thresholds used when a caller passes a threshold <= 0.
const (
	DefaultCapexHeavy       = 0.4
	DefaultForeignDependent = 0.5
	DefaultLowOutcome       = 0.4
)

// Summary holds national spending totals.
type Summary struct {
	Entities   int     `json:"entities"`
	TotalSpend float64 `json:"total_spend"`
	TotalCapex float64 `json:"total_capex"`
	TotalOpex  float64 `json:"total_opex"`
	CapexShare float64 `json:"capex_share"`
	OpexShare  float64 `json:"opex_share"`
}

// Row is the projection shared by the spend-ranked views.
type Row struct {
	Key        string  `json:"entity_key"`
	TotalSpend float64 `json:"total_spend"`
	Capex      float64 `json:"capex"`
	Opex       float64 `json:"opex"`
	CapexRatio float64 `json:"capex_ratio"`
}

// ForeignRow is the projection returned by ForeignDependent.
type ForeignRow struct {
	Key           string  `json:"entity_key"`
	ForeignShare  float64 `json:"foreign_share"`
	ForeignCapex  float64 `json:"foreign_capex"`
	DomesticCapex float64 `json:"domestic_capex"`
	Capex         float64 `json:"capex"`
}

// OutcomeRow is the projection returned by LowOutcome.
type OutcomeRow struct {
	Key          string  `json:"entity_key"`
	OutcomeRatio float64 `json:"outcome_ratio"`
	OutputCount  int     `json:"output_count"`
	OutcomeCount int     `json:"outcome_count"`
	TotalSpend   float64 `json:"total_spend"`
}

// Summarize totals spend, capex and opex across every entity. Shares are 0
// when total spend is not positive.
func Summarize(entities []model.Entity) Summary {
	s := Summary{Entities: len(entities)}
	for _, e := range entities {
		s.TotalSpend += e.TotalSpend
		s.TotalCapex += e.Capex
		s.TotalOpex += e.Opex
	}
	if s.TotalSpend > 0 {
		s.CapexShare = s.TotalCapex / s.TotalSpend
		s.OpexShare = s.TotalOpex / s.TotalSpend
	}
	return s
}

func toRow(e model.Entity) Row {
	return Row{
		Key:        e.Key,
		TotalSpend: e.TotalSpend,
		Capex:      e.Capex,
		Opex:       e.Opex,
		CapexRatio: e.CapexRatio(),
	}
}

// TopSpending returns the n largest entities by total spend. n <= 0 returns
// all of them.
func TopSpending(entities []model.Entity, n int) []Row {
	rows := make([]Row, 0, len(entities))
	for _, e := range entities {
		rows = append(rows, toRow(e))
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TotalSpend > rows[j].TotalSpend })
	if n > 0 && len(rows) > n {
		return rows[:n]
	}
	return rows
}

// CapexHeavy returns entities whose capex ratio exceeds threshold, highest
// ratio first.
func CapexHeavy(entities []model.Entity, threshold float64) []Row {
	if threshold <= 0 {
		threshold = DefaultCapexHeavy
	}
	rows := []Row{}
	for _, e := range entities {
		if e.CapexRatio() > threshold {
			rows = append(rows, toRow(e))
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CapexRatio > rows[j].CapexRatio })
	return rows
}

// ForeignDependent returns entities whose foreign capex share exceeds
// threshold, most dependent first.
func ForeignDependent(entities []model.Entity, threshold float64) []ForeignRow {
	if threshold <= 0 {
		threshold = DefaultForeignDependent
	}
	rows := []ForeignRow{}
	for _, e := range entities {
		share := e.ForeignShare()
		if share <= threshold {
			continue
		}
		rows = append(rows, ForeignRow{
			Key:           e.Key,
			ForeignShare:  share,
			ForeignCapex:  e.ForeignCapex,
			DomesticCapex: e.DomesticCapex,
			Capex:         e.Capex,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ForeignShare > rows[j].ForeignShare })
	return rows
}

// LowOutcome returns entities reporting indicators whose outcome ratio is
// below threshold, lowest ratio first. Entities with no indicators are
// skipped.
func LowOutcome(entities []model.Entity, threshold float64) []OutcomeRow {
	if threshold <= 0 {
		threshold = DefaultLowOutcome
	}
	rows := []OutcomeRow{}
	for _, e := range entities {
		if e.OutputCount+e.OutcomeCount == 0 {
			continue
		}
		ratio := e.OutcomeRatio()
		if ratio >= threshold {
			continue
		}
		rows = append(rows, OutcomeRow{
			Key:          e.Key,
			OutcomeRatio: ratio,
			OutputCount:  e.OutputCount,
			OutcomeCount: e.OutcomeCount,
			TotalSpend:   e.TotalSpend,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].OutcomeRatio < rows[j].OutcomeRatio })
	return rows
}
