// Package briefing builds the structured per-entity brief consumed by the
// narrative writer and the API.
package briefing

import (
	"go.uber.org/zap"

	"github.com/sells-group/fiscal-cli/internal/aggregate"
	"github.com/sells-group/fiscal-cli/internal/model"
	"github.com/sells-group/fiscal-cli/internal/scorer"
)

// Primary issues, in priority order.
const (
	IssueHighRisk       = "High fiscal risk exposure"
	IssueWeakEfficiency = "High spend with weak efficiency"
	IssueWeakOutcomes   = "Weak outcome framework"
	IssueNone           = "No critical structural issue"
)

// Suggested actions, in priority order.
const (
	ActionEscalate          = "Escalate to Cabinet review"
	ActionPerformanceReview = "Initiate performance review"
	ActionEfficiencyPlan    = "Request efficiency improvement plan"
	ActionMonitor           = "Monitor"
)

// Brief summarises one entity for decision makers.
type Brief struct {
	Key             string          `json:"entity_key"`
	Name            string          `json:"name,omitempty"`
	TotalSpend      float64         `json:"total_spend"`
	RiskScore       float64         `json:"risk_score"`
	RiskLabel       model.RiskLabel `json:"risk_label"`
	PrimaryIssue    string          `json:"primary_issue"`
	SupportingFlags []string        `json:"supporting_flags"`
	SuggestedAction string          `json:"suggested_action"`
}

// Build derives the brief for e.
func Build(e model.Entity) Brief {
	return Brief{
		Key:             e.Key,
		Name:            e.Name,
		TotalSpend:      e.TotalSpend,
		RiskScore:       e.FiscalRiskScore,
		RiskLabel:       e.FiscalRiskLabel,
		PrimaryIssue:    PrimaryIssue(e),
		SupportingFlags: SupportingFlags(e),
		SuggestedAction: SuggestedAction(e),
	}
}

// PrimaryIssue applies the issue priority: High risk label, then very high
// spend with low efficiency, then weak outcomes.
func PrimaryIssue(e model.Entity) string {
	switch {
	case e.FiscalRiskLabel == model.RiskHigh:
		return IssueHighRisk
	case e.LowEfficiency && e.VeryHighSpend:
		return IssueWeakEfficiency
	case e.WeakOutcomes:
		return IssueWeakOutcomes
	default:
		return IssueNone
	}
}

// SuggestedAction applies the action priority: High risk label, then a
// required performance review, then low efficiency.
func SuggestedAction(e model.Entity) string {
	switch {
	case e.FiscalRiskLabel == model.RiskHigh:
		return ActionEscalate
	case e.PerformanceReviewRequired:
		return ActionPerformanceReview
	case e.LowEfficiency:
		return ActionEfficiencyPlan
	default:
		return ActionMonitor
	}
}

// SupportingFlags lists the set flags in a fixed order.
func SupportingFlags(e model.Entity) []string {
	flags := []string{}
	add := func(set bool, name string) {
		if set {
			flags = append(flags, name)
		}
	}
	add(e.BudgetPressure, "budget pressure")
	add(e.VeryHighSpend, "very high spend")
	add(e.LowEfficiency, "low efficiency")
	add(e.WeakOutcomes, "weak outcomes")
	add(e.ForeignDependent, "foreign dependent")
	add(e.CapexPressure, "capex pressure")
	add(e.PerformanceReviewRequired, "performance review required")
	return flags
}

// Builder builds briefs over one entity snapshot.
type Builder struct {
	entities []model.Entity
}

// NewBuilder creates a Builder over entities.
func NewBuilder(entities []model.Entity) *Builder {
	return &Builder{entities: entities}
}

// Brief builds the brief for key, or returns a *model.LookupError.
func (b *Builder) Brief(key string) (Brief, error) {
	e, err := model.FindEntity(b.entities, key)
	if err != nil {
		return Brief{}, err
	}
	return Build(e), nil
}

// ForKeys builds briefs for keys in order. Unknown keys are logged and skipped.
func (b *Builder) ForKeys(keys []string) []Brief {
	briefs := make([]Brief, 0, len(keys))
	for _, k := range keys {
		brief, err := b.Brief(k)
		if err != nil {
			zap.L().Warn("briefing: skipping entity", zap.String("entity", k), zap.Error(err))
			continue
		}
		briefs = append(briefs, brief)
	}
	return briefs
}

// HighRisk builds briefs for every entity labelled High.
func (b *Builder) HighRisk() []Brief {
	briefs := []Brief{}
	for _, e := range b.entities {
		if e.FiscalRiskLabel == model.RiskHigh {
			briefs = append(briefs, Build(e))
		}
	}
	return briefs
}

// BudgetPressure builds briefs for every entity under budget pressure.
func (b *Builder) BudgetPressure() []Brief {
	briefs := []Brief{}
	for _, e := range b.entities {
		if e.BudgetPressure {
			briefs = append(briefs, Build(e))
		}
	}
	return briefs
}

// Critical builds briefs for the Critical-tier rows of a unified table,
// keeping their score order.
func (b *Builder) Critical(rows []aggregate.UnifiedRow) []Brief {
	keys := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.Tier() == scorer.TierCritical {
			keys = append(keys, r.Key)
		}
	}
	return b.ForKeys(keys)
}
