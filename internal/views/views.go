// Package views names every read-side projection so the CLI and the HTTP
// API dispatch them the same way.
package views

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fiscal-cli/internal/aggregate"
	"github.com/sells-group/fiscal-cli/internal/benchmark"
	"github.com/sells-group/fiscal-cli/internal/efficiency"
	"github.com/sells-group/fiscal-cli/internal/risk"
	"github.com/sells-group/fiscal-cli/internal/spending"
)

// ErrMissingCategory is returned by views that need Query.Category.
var ErrMissingCategory = eris.New("views: peers needs a category")

// Query carries the optional view parameters.
type Query struct {
	// N limits top-n views; <= 0 returns every row.
	N        int
	Category string
	// Threshold overrides the default cut-off of threshold views when > 0.
	Threshold float64
}

// Func computes one view over an aggregated snapshot.
type Func func(a *aggregate.Aggregator, q Query) (any, error)

// View is a named projection.
type View struct {
	Name        string
	Description string
	Run         Func
}

// Group is a family of views sharing a command or route prefix.
type Group struct {
	Name  string
	Views []View
}

// Find returns the view called name.
func (g Group) Find(name string) (View, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, v := range g.Views {
		if v.Name == want {
			return v, nil
		}
	}
	return View{}, eris.Errorf("views: unknown %s view %q (want one of: %s)", g.Name, name, strings.Join(g.Names(), ", "))
}

// Names lists the view names in declaration order.
func (g Group) Names() []string {
	out := make([]string, len(g.Views))
	for i, v := range g.Views {
		out[i] = v.Name
	}
	return out
}

func plain[T any](f func(a *aggregate.Aggregator) T) Func {
	return func(a *aggregate.Aggregator, _ Query) (any, error) {
		return f(a), nil
	}
}

// Risk views.
var Risk = Group{Name: "risk", Views: []View{
	{"high-risk", "entities labelled High, by risk score", plain(func(a *aggregate.Aggregator) []risk.HighRiskRow {
		return risk.HighRisk(a.Entities())
	})},
	{"budget-pressure", "entities under budget pressure, by spend", plain(func(a *aggregate.Aggregator) []risk.BudgetPressureRow {
		return risk.BudgetPressureEntities(a.Entities())
	})},
	{"structural", "very high spend with weak efficiency or outcomes", plain(func(a *aggregate.Aggregator) []risk.StructuralRow {
		return risk.StructuralRisk(a.Entities())
	})},
	{"foreign-dependency", "foreign dependent entities, by exposure", plain(func(a *aggregate.Aggregator) []risk.ForeignRow {
		return risk.ForeignDependencyRisk(a.Entities())
	})},
	{"watchlist", "entities with two or more risk flags", plain(func(a *aggregate.Aggregator) []risk.WatchlistRow {
		return a.EscalationWatchlist()
	})},
	{"table", "every entity by fiscal risk score", plain(func(a *aggregate.Aggregator) []risk.TableRow {
		return risk.FiscalRiskTable(a.Entities())
	})},
	{"summary", "risk flag counts", plain(func(a *aggregate.Aggregator) risk.Summary {
		return risk.Summarize(a.Entities())
	})},
}}

// Efficiency views. Every one excludes the debt-service entity.
var Efficiency = Group{Name: "efficiency", Views: []View{
	{"cost-per-outcome", "highest spend per outcome", func(a *aggregate.Aggregator, q Query) (any, error) {
		return efficiency.HighestCostPerOutcome(a.Entities(), q.N), nil
	}},
	{"hidden-inefficiency", "very high spend with weak outcomes", plain(func(a *aggregate.Aggregator) []efficiency.Row {
		return efficiency.HiddenInefficiency(a.Entities())
	})},
	{"high-value", "low spend with strong outcomes", plain(func(a *aggregate.Aggregator) []efficiency.Row {
		return a.HighValueEntities()
	})},
	{"paradox", "high efficiency with weak outcomes", func(a *aggregate.Aggregator, _ Query) (any, error) {
		return efficiency.PerformanceParadox(a.Entities())
	}},
	{"outcome-gaps", "outputs reported without outcomes", plain(func(a *aggregate.Aggregator) []efficiency.GapRow {
		return efficiency.OutcomeReportingGaps(a.Entities())
	})},
	{"top-efficient", "best efficiency ranks", func(a *aggregate.Aggregator, q Query) (any, error) {
		return efficiency.TopEfficient(a.Entities(), q.N), nil
	}},
	{"least-efficient", "worst efficiency ranks", func(a *aggregate.Aggregator, q Query) (any, error) {
		return efficiency.LeastEfficient(a.Entities(), q.N), nil
	}},
	{"high-performers", "entities flagged as high performers", plain(func(a *aggregate.Aggregator) []efficiency.Row {
		return efficiency.HighPerformers(a.Entities())
	})},
	{"summary", "efficiency headline figures", plain(func(a *aggregate.Aggregator) efficiency.Summary {
		return efficiency.Summarize(a.Entities())
	})},
}}

func withBenchmark(f func(rows []benchmark.Row, q Query) (any, error)) Func {
	return func(a *aggregate.Aggregator, q Query) (any, error) {
		rows, err := benchmark.Compute(a.Entities())
		if err != nil {
			return nil, err
		}
		return f(rows, q)
	}
}

// Benchmark views.
var Benchmark = Group{Name: "benchmark", Views: []View{
	{"all", "every entity with population and peer percentiles", withBenchmark(func(rows []benchmark.Row, _ Query) (any, error) {
		return rows, nil
	})},
	{"peers", "one category by risk percentile (needs a category)", withBenchmark(func(rows []benchmark.Row, q Query) (any, error) {
		if strings.TrimSpace(q.Category) == "" {
			return nil, ErrMissingCategory
		}
		return benchmark.PeerBenchmark(rows, q.Category), nil
	})},
	{"spend-outliers", "spend percentile at or above 0.90", withBenchmark(func(rows []benchmark.Row, _ Query) (any, error) {
		return benchmark.SpendOutliers(rows), nil
	})},
	{"low-efficiency", "efficiency percentile at or below 0.10", withBenchmark(func(rows []benchmark.Row, _ Query) (any, error) {
		return benchmark.LowEfficiencyOutliers(rows), nil
	})},
	{"highest-risk", "highest risk entity per category", withBenchmark(func(rows []benchmark.Row, _ Query) (any, error) {
		return benchmark.HighestRiskPerCategory(rows), nil
	})},
	{"categories", "per-category statistics", withBenchmark(func(rows []benchmark.Row, _ Query) (any, error) {
		return benchmark.CategorySummary(rows), nil
	})},
}}

// Spending views over capex, opex and foreign financing.
var Spending = Group{Name: "spending", Views: []View{
	{"summary", "national spend, capex and opex totals with shares", plain(func(a *aggregate.Aggregator) spending.Summary {
		return spending.Summarize(a.Entities())
	})},
	{"top", "largest entities by total spend", func(a *aggregate.Aggregator, q Query) (any, error) {
		return spending.TopSpending(a.Entities(), q.N), nil
	}},
	{"capex-heavy", "capex ratio above the threshold (default 0.4)", func(a *aggregate.Aggregator, q Query) (any, error) {
		return spending.CapexHeavy(a.Entities(), q.Threshold), nil
	}},
	{"foreign-dependent", "foreign capex share above the threshold (default 0.5)", func(a *aggregate.Aggregator, q Query) (any, error) {
		return spending.ForeignDependent(a.Entities(), q.Threshold), nil
	}},
	{"low-outcome", "outcome indicator ratio below the threshold (default 0.4)", func(a *aggregate.Aggregator, q Query) (any, error) {
		return spending.LowOutcome(a.Entities(), q.Threshold), nil
	}},
}}

// Unified views over the merged score table.
var Unified = Group{Name: "unified", Views: []View{
	{"table", "every entity with its unified score", func(a *aggregate.Aggregator, q Query) (any, error) {
		return limit(a.Table(), q.N), nil
	}},
	{"critical", "Critical-tier entities", plain(func(a *aggregate.Aggregator) []aggregate.UnifiedRow {
		return a.CriticalEntities()
	})},
	{"distortions", "very high spend with weak efficiency or outcomes", plain(func(a *aggregate.Aggregator) []aggregate.DistortionRow {
		return a.StructuralDistortions()
	})},
	{"snapshot", "executive snapshot", plain(func(a *aggregate.Aggregator) aggregate.ExecutiveSnapshot {
		return a.ExecutiveSnapshot()
	})},
}}

// Groups lists every group by name.
var Groups = map[string]Group{
	Risk.Name:       Risk,
	Efficiency.Name: Efficiency,
	Benchmark.Name:  Benchmark,
	Spending.Name:   Spending,
	Unified.Name:    Unified,
}

// GroupNames returns the group names sorted.
func GroupNames() []string {
	out := make([]string, 0, len(Groups))
	for name := range Groups {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func limit[T any](rows []T, n int) []T {
	if n > 0 && n < len(rows) {
		return rows[:n]
	}
	return rows
}
