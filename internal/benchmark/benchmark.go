// Package benchmark ranks entities by percentile against the whole
// population and against their peer group (agency category).
package benchmark

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fiscal-cli/internal/model"
	"github.com/sells-group/fiscal-cli/internal/normalize"
)

// Outlier cut-offs on the percentile scale.
const (
	SpendOutlierPercentile         = 0.90
	LowEfficiencyOutlierPercentile = 0.10
)

// Row carries an entity's raw benchmark inputs and its percentile ranks.
// Percentiles are the fraction of the population at or below the value.
type Row struct {
	Key             string  `json:"entity_key"`
	AgencyCategory  string  `json:"agency_category"`
	TotalSpend      float64 `json:"total_spend"`
	FiscalRiskScore float64 `json:"fiscal_risk_score"`
	EfficiencyProxy float64 `json:"efficiency_proxy"`

	RiskPercentile           float64 `json:"risk_percentile"`
	EfficiencyPercentile     float64 `json:"efficiency_percentile"`
	OutcomePercentile        float64 `json:"outcome_strength_percentile"`
	CapexIntensityPercentile float64 `json:"capex_intensity_percentile"`
	SpendPercentile          float64 `json:"spend_percentile"`
	// PeerRiskPercentile is relative to the entity's own category.
	PeerRiskPercentile float64 `json:"peer_risk_percentile"`
}

// CategoryStats summarises one agency category.
type CategoryStats struct {
	Category       string  `json:"agency_category"`
	Count          int     `json:"count"`
	MeanSpend      float64 `json:"mean_spend"`
	MeanEfficiency float64 `json:"mean_efficiency"`
	MeanRisk       float64 `json:"mean_risk"`
}

// Compute returns one Row per entity in input order.
func Compute(entities []model.Entity) ([]Row, error) {
	n := len(entities)
	risk := make([]float64, n)
	eff := make([]float64, n)
	outcome := make([]float64, n)
	capex := make([]float64, n)
	spend := make([]float64, n)
	for i, e := range entities {
		ord, err := normalize.Ordinal(e.OutcomeStrength)
		if err != nil {
			return nil, eris.Wrapf(err, "benchmark: entity %q", e.Key)
		}
		risk[i] = e.FiscalRiskScore
		eff[i] = e.EfficiencyProxy
		outcome[i] = float64(ord)
		capex[i] = e.CapexRatio()
		spend[i] = e.TotalSpend
	}

	riskPct := normalize.PercentileRank(risk)
	effPct := normalize.PercentileRank(eff)
	outcomePct := normalize.PercentileRank(outcome)
	capexPct := normalize.PercentileRank(capex)
	spendPct := normalize.PercentileRank(spend)

	rows := make([]Row, n)
	for i, e := range entities {
		rows[i] = Row{
			Key:                      e.Key,
			AgencyCategory:           e.AgencyCategory,
			TotalSpend:               e.TotalSpend,
			FiscalRiskScore:          e.FiscalRiskScore,
			EfficiencyProxy:          e.EfficiencyProxy,
			RiskPercentile:           riskPct[i],
			EfficiencyPercentile:     effPct[i],
			OutcomePercentile:        outcomePct[i],
			CapexIntensityPercentile: capexPct[i],
			SpendPercentile:          spendPct[i],
		}
	}

	// Peer-relative risk.
	for _, idx := range groupIndices(rows) {
		peer := make([]float64, len(idx))
		for j, i := range idx {
			peer[j] = rows[i].FiscalRiskScore
		}
		for j, p := range normalize.PercentileRank(peer) {
			rows[idx[j]].PeerRiskPercentile = p
		}
	}

	return rows, nil
}

// PeerBenchmark returns the rows in category, by risk percentile descending.
// Category matching ignores case and surrounding whitespace.
func PeerBenchmark(rows []Row, category string) []Row {
	want := categoryKey(category)
	out := []Row{}
	for _, r := range rows {
		if categoryKey(r.AgencyCategory) == want {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RiskPercentile > out[j].RiskPercentile })
	return out
}

// SpendOutliers returns the top spend decile, by spend descending.
func SpendOutliers(rows []Row) []Row {
	out := []Row{}
	for _, r := range rows {
		if r.SpendPercentile >= SpendOutlierPercentile {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalSpend > out[j].TotalSpend })
	return out
}

// LowEfficiencyOutliers returns the bottom efficiency decile, least efficient first.
func LowEfficiencyOutliers(rows []Row) []Row {
	out := []Row{}
	for _, r := range rows {
		if r.EfficiencyPercentile <= LowEfficiencyOutlierPercentile {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EfficiencyPercentile < out[j].EfficiencyPercentile })
	return out
}

// HighestRiskPerCategory returns the highest fiscal-risk row of each
// category. Categories appear in first-seen order; ties keep the earlier row.
func HighestRiskPerCategory(rows []Row) []Row {
	groups := groupIndices(rows)
	out := make([]Row, 0, len(groups))
	for _, idx := range groups {
		best := idx[0]
		for _, i := range idx[1:] {
			if rows[i].FiscalRiskScore > rows[best].FiscalRiskScore {
				best = i
			}
		}
		out = append(out, rows[best])
	}
	return out
}

// CategorySummary returns per-category means, by mean risk descending.
func CategorySummary(rows []Row) []CategoryStats {
	groups := groupIndices(rows)
	out := make([]CategoryStats, 0, len(groups))
	for _, idx := range groups {
		spend := make([]float64, len(idx))
		eff := make([]float64, len(idx))
		risk := make([]float64, len(idx))
		for j, i := range idx {
			spend[j] = rows[i].TotalSpend
			eff[j] = rows[i].EfficiencyProxy
			risk[j] = rows[i].FiscalRiskScore
		}
		out = append(out, CategoryStats{
			Category:       strings.TrimSpace(rows[idx[0]].AgencyCategory),
			Count:          len(idx),
			MeanSpend:      normalize.Mean(spend),
			MeanEfficiency: normalize.Mean(eff),
			MeanRisk:       normalize.Mean(risk),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MeanRisk > out[j].MeanRisk })
	return out
}

// groupIndices groups row indices by category in first-seen order.
func groupIndices(rows []Row) [][]int {
	pos := map[string]int{}
	var groups [][]int
	for i, r := range rows {
		k := categoryKey(r.AgencyCategory)
		g, ok := pos[k]
		if !ok {
			g = len(groups)
			pos[k] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

func categoryKey(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}
