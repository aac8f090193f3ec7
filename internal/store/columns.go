package store

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/fiscal-cli/internal/model"
)

// column binds one tabular header to an Entity field. Aliases cover the
// headers used by the ministry master table exports.
type column struct {
	name    string
	aliases []string
	set     func(e *model.Entity, v string) error
}

func text(f func(e *model.Entity) *string) func(*model.Entity, string) error {
	return func(e *model.Entity, v string) error {
		*f(e) = v
		return nil
	}
}

func number(f func(e *model.Entity) *float64) func(*model.Entity, string) error {
	return func(e *model.Entity, v string) error {
		n, err := parseFloat(v)
		if err != nil {
			return err
		}
		*f(e) = n
		return nil
	}
}

func count(f func(e *model.Entity) *int) func(*model.Entity, string) error {
	return func(e *model.Entity, v string) error {
		n, err := parseFloat(v)
		if err != nil {
			return err
		}
		*f(e) = int(n)
		return nil
	}
}

func flag(f func(e *model.Entity) *bool) func(*model.Entity, string) error {
	return func(e *model.Entity, v string) error {
		b, err := parseBool(v)
		if err != nil {
			return err
		}
		*f(e) = b
		return nil
	}
}

var columns = []column{
	{"entity_key", []string{"ministry", "entity", "key"}, text(func(e *model.Entity) *string { return &e.Key })},
	{"name", []string{"ministry_name", "display_name"}, text(func(e *model.Entity) *string { return &e.Name })},
	{"total_spend", []string{"total_spend_2026"}, number(func(e *model.Entity) *float64 { return &e.TotalSpend })},
	{"capex", []string{"capex_2026"}, number(func(e *model.Entity) *float64 { return &e.Capex })},
	{"opex", []string{"opex_2026"}, number(func(e *model.Entity) *float64 { return &e.Opex })},
	{"foreign_capex", []string{"foreign_capex_2026"}, number(func(e *model.Entity) *float64 { return &e.ForeignCapex })},
	{"domestic_capex", []string{"domestic_capex_2026"}, number(func(e *model.Entity) *float64 { return &e.DomesticCapex })},
	{"outcome_strength", []string{"indicator_outcome_strength"}, func(e *model.Entity, v string) error {
		e.OutcomeStrength = model.Strength(strings.ToLower(v))
		return nil
	}},
	{"efficiency_proxy", nil, number(func(e *model.Entity) *float64 { return &e.EfficiencyProxy })},
	{"fiscal_risk_score", nil, number(func(e *model.Entity) *float64 { return &e.FiscalRiskScore })},
	{"fiscal_risk_label", nil, func(e *model.Entity, v string) error {
		e.FiscalRiskLabel = model.RiskLabel(titleLabel(v))
		return nil
	}},
	{"spend_per_outcome", nil, number(func(e *model.Entity) *float64 { return &e.SpendPerOutcome })},
	{"foreign_exposure", []string{"foreign_dependency", "foreign_share"}, number(func(e *model.Entity) *float64 { return &e.ForeignExposure })},
	{"efficiency_rank", nil, count(func(e *model.Entity) *int { return &e.EfficiencyRank })},
	{"agency_category", []string{"agency_type", "category"}, text(func(e *model.Entity) *string { return &e.AgencyCategory })},
	{"output_count", []string{"indicator_output_count"}, count(func(e *model.Entity) *int { return &e.OutputCount })},
	{"outcome_count", []string{"indicator_outcome_count"}, count(func(e *model.Entity) *int { return &e.OutcomeCount })},
	{"budget_pressure", []string{"budget_pressure_flag"}, flag(func(e *model.Entity) *bool { return &e.BudgetPressure })},
	{"very_high_spend", nil, flag(func(e *model.Entity) *bool { return &e.VeryHighSpend })},
	{"low_efficiency", nil, flag(func(e *model.Entity) *bool { return &e.LowEfficiency })},
	{"high_efficiency", nil, flag(func(e *model.Entity) *bool { return &e.HighEfficiency })},
	{"weak_outcomes", nil, flag(func(e *model.Entity) *bool { return &e.WeakOutcomes })},
	{"strong_outcomes", nil, flag(func(e *model.Entity) *bool { return &e.StrongOutcomes })},
	{"low_spend", nil, flag(func(e *model.Entity) *bool { return &e.LowSpend })},
	{"foreign_dependent", nil, flag(func(e *model.Entity) *bool { return &e.ForeignDependent })},
	{"capex_pressure", nil, flag(func(e *model.Entity) *bool { return &e.CapexPressure })},
	{"performance_review_required", []string{"performance_review_flag"}, flag(func(e *model.Entity) *bool { return &e.PerformanceReviewRequired })},
	{"high_performer", []string{"high_performer_flag"}, flag(func(e *model.Entity) *bool { return &e.HighPerformer })},
}

// headerIndex maps each known column to its position in header. Unknown
// headers are ignored.
func headerIndex(header []string) (map[string]int, error) {
	lookup := make(map[string]string, len(columns)*2)
	for _, c := range columns {
		lookup[c.name] = c.name
		for _, a := range c.aliases {
			lookup[a] = c.name
		}
	}

	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		name, ok := lookup[headerKey(h)]
		if !ok {
			continue
		}
		if _, dup := colIdx[name]; !dup {
			colIdx[name] = i
		}
	}

	if _, ok := colIdx["entity_key"]; !ok {
		return nil, eris.New("store: missing required column \"entity_key\"")
	}
	return colIdx, nil
}

// parseRecords converts a header row plus data rows into entities. Blank
// rows are skipped. Cell errors name the 1-based data row and column.
func parseRecords(records [][]string) ([]model.Entity, error) {
	if len(records) == 0 {
		return nil, eris.New("store: no header row")
	}
	colIdx, err := headerIndex(records[0])
	if err != nil {
		return nil, err
	}

	entities := make([]model.Entity, 0, len(records)-1)
	missing := map[string]int{}
	for i, row := range records[1:] {
		if isMissing(getCol(row, colIdx, "entity_key")) {
			continue
		}
		var e model.Entity
		for _, c := range columns {
			v := getCol(row, colIdx, c.name)
			if isMissing(v) {
				if v != "" {
					missing[c.name]++
				}
				continue
			}
			if err := c.set(&e, v); err != nil {
				return nil, eris.Wrapf(err, "store: row %d column %s", i+1, c.name)
			}
		}
		entities = append(entities, e)
	}
	for name, n := range missing {
		zap.L().Warn("store: nan cells left at zero value", zap.String("column", name), zap.Int("rows", n))
	}
	return entities, nil
}

// getCol safely retrieves a trimmed column value from a row.
func getCol(row []string, colIdx map[string]int, col string) string {
	idx, ok := colIdx[col]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func headerKey(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}

// isMissing reports whether a cell holds no value. Dataframe exports write
// missing numbers as "nan".
func isMissing(v string) bool {
	return v == "" || strings.EqualFold(v, "nan")
}

func parseFloat(v string) (float64, error) {
	v = strings.NewReplacer(",", "", "$", "").Replace(v)
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, eris.Errorf("invalid number %q", v)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, eris.Errorf("non-finite number %q", v)
	}
	return n, nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "1.0", "true", "t", "yes", "y":
		return true, nil
	case "0", "0.0", "false", "f", "no", "n":
		return false, nil
	}
	return false, eris.Errorf("invalid flag %q", v)
}

// titleLabel maps "high" or "HIGH" to "High".
func titleLabel(v string) string {
	return cases.Title(language.English).String(strings.ToLower(v))
}
