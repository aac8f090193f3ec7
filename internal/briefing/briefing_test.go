package briefing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fiscal-cli/internal/aggregate"
	"github.com/sells-group/fiscal-cli/internal/model"
	"github.com/sells-group/fiscal-cli/internal/scorer"
)

func TestPriorityRules(t *testing.T) {
	tests := []struct {
		name       string
		e          model.Entity
		wantIssue  string
		wantAction string
	}{
		{
			name:       "high risk wins",
			e:          model.Entity{FiscalRiskLabel: model.RiskHigh, LowEfficiency: true, VeryHighSpend: true, PerformanceReviewRequired: true},
			wantIssue:  IssueHighRisk,
			wantAction: ActionEscalate,
		},
		{
			name:       "weak efficiency with review",
			e:          model.Entity{FiscalRiskLabel: model.RiskMedium, LowEfficiency: true, VeryHighSpend: true, PerformanceReviewRequired: true},
			wantIssue:  IssueWeakEfficiency,
			wantAction: ActionPerformanceReview,
		},
		{
			name:       "low efficiency without high spend",
			e:          model.Entity{LowEfficiency: true, WeakOutcomes: true},
			wantIssue:  IssueWeakOutcomes,
			wantAction: ActionEfficiencyPlan,
		},
		{
			name:       "nothing flagged",
			e:          model.Entity{FiscalRiskLabel: model.RiskLow},
			wantIssue:  IssueNone,
			wantAction: ActionMonitor,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantIssue, PrimaryIssue(tt.e))
			assert.Equal(t, tt.wantAction, SuggestedAction(tt.e))
		})
	}
}

func TestBuild(t *testing.T) {
	b := Build(model.Entity{
		Key:             "ministry of works",
		Name:            "Ministry of Works",
		TotalSpend:      1200,
		FiscalRiskScore: 81.5,
		FiscalRiskLabel: model.RiskHigh,
		BudgetPressure:  true,
		CapexPressure:   true,
	})
	assert.Equal(t, "ministry of works", b.Key)
	assert.Equal(t, 1200.0, b.TotalSpend)
	assert.Equal(t, 81.5, b.RiskScore)
	assert.Equal(t, model.RiskHigh, b.RiskLabel)
	assert.Equal(t, []string{"budget pressure", "capex pressure"}, b.SupportingFlags)
	assert.Equal(t, ActionEscalate, b.SuggestedAction)
}

func TestSupportingFlags_EmptyNotNil(t *testing.T) {
	flags := SupportingFlags(model.Entity{})
	assert.NotNil(t, flags)
	assert.Empty(t, flags)
}

func testEntities() []model.Entity {
	return []model.Entity{
		{Key: "health", FiscalRiskLabel: model.RiskHigh, BudgetPressure: true},
		{Key: "works", FiscalRiskLabel: model.RiskMedium, BudgetPressure: true},
		{Key: "culture", FiscalRiskLabel: model.RiskHigh},
	}
}

func TestBuilder_Brief(t *testing.T) {
	b := NewBuilder(testEntities())

	brief, err := b.Brief(" Health ")
	require.NoError(t, err)
	assert.Equal(t, "health", brief.Key)

	_, err = b.Brief("treasury")
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))
}

func TestBuilder_Bulk(t *testing.T) {
	b := NewBuilder(testEntities())

	high := b.HighRisk()
	require.Len(t, high, 2)
	assert.Equal(t, "health", high[0].Key)
	assert.Equal(t, "culture", high[1].Key)

	pressure := b.BudgetPressure()
	require.Len(t, pressure, 2)
	assert.Equal(t, "works", pressure[1].Key)
}

func TestBuilder_ForKeysSkipsUnknown(t *testing.T) {
	briefs := NewBuilder(testEntities()).ForKeys([]string{"works", "ghost", "health"})
	require.Len(t, briefs, 2)
	assert.Equal(t, "works", briefs[0].Key)
	assert.Equal(t, "health", briefs[1].Key)
}

func TestBuilder_Critical(t *testing.T) {
	rows := []aggregate.UnifiedRow{
		{Entity: model.Entity{Key: "culture"}, Score: &scorer.ScoredEntity{Key: "culture", UnifiedScore: 100, UnifiedTier: scorer.TierCritical}},
		{Entity: model.Entity{Key: "ghost"}, Score: &scorer.ScoredEntity{Key: "ghost", UnifiedScore: 90, UnifiedTier: scorer.TierCritical}},
		{Entity: model.Entity{Key: "works"}, Score: &scorer.ScoredEntity{Key: "works", UnifiedScore: 40, UnifiedTier: scorer.TierModerate}},
		{Entity: model.Entity{Key: "health"}},
	}
	briefs := NewBuilder(testEntities()).Critical(rows)
	require.Len(t, briefs, 1)
	assert.Equal(t, "culture", briefs[0].Key)
}
