// Package monitoring watches scored snapshots and raises webhook alerts when
// tier or risk thresholds are breached.
package monitoring

import (
	"sort"
	"time"

	"github.com/sells-group/fiscal-cli/internal/aggregate"
	"github.com/sells-group/fiscal-cli/internal/model"
	"github.com/sells-group/fiscal-cli/internal/scorer"
)

// MetricsSnapshot is the alert-relevant reduction of one scored snapshot.
type MetricsSnapshot struct {
	SnapshotID    string  `json:"snapshot_id"`
	Label         string  `json:"label,omitempty"`
	EntityCount   int     `json:"entity_count"`
	CriticalCount int     `json:"critical_count"`
	HighRiskCount int     `json:"high_risk_count"`
	HighRiskShare float64 `json:"high_risk_share"`
	TotalSpend    float64 `json:"total_spend"`

	// Critical lists the normalized keys of Critical-tier entities.
	Critical []string `json:"critical"`
	// NewlyCritical lists Critical keys absent from the previous snapshot's
	// Critical set. Empty when there is no previous snapshot.
	NewlyCritical []string `json:"newly_critical,omitempty"`

	CollectedAt time.Time `json:"collected_at"`
}

// Collect reduces agg to a MetricsSnapshot, diffing the Critical set
// against previous when it is non-nil.
func Collect(snap *model.Snapshot, agg *aggregate.Aggregator, previous *MetricsSnapshot) *MetricsSnapshot {
	exec := agg.ExecutiveSnapshot()
	m := &MetricsSnapshot{
		SnapshotID:    snap.ID,
		Label:         snap.Label,
		EntityCount:   exec.EntityCount,
		CriticalCount: exec.Tiers.Critical,
		HighRiskCount: exec.HighRiskCount,
		TotalSpend:    exec.TotalSpend,
		Critical:      []string{},
		CollectedAt:   time.Now().UTC(),
	}
	if exec.EntityCount > 0 {
		m.HighRiskShare = float64(exec.HighRiskCount) / float64(exec.EntityCount)
	}

	for _, r := range agg.ByTier(scorer.TierCritical) {
		m.Critical = append(m.Critical, model.NormalizeKey(r.Key))
	}
	sort.Strings(m.Critical)

	if previous != nil {
		before := make(map[string]bool, len(previous.Critical))
		for _, k := range previous.Critical {
			before[k] = true
		}
		for _, k := range m.Critical {
			if !before[k] {
				m.NewlyCritical = append(m.NewlyCritical, k)
			}
		}
	}
	return m
}
