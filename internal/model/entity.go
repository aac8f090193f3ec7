package model

import (
	"strings"
	"time"
)

// RiskLabel is the categorical fiscal risk label assigned upstream.
type RiskLabel string

const (
	RiskLow    RiskLabel = "Low"
	RiskMedium RiskLabel = "Medium"
	RiskHigh   RiskLabel = "High"
)

// Strength is the five-level qualitative outcome strength label.
type Strength string

const (
	StrengthVeryWeak   Strength = "very weak"
	StrengthWeak       Strength = "weak"
	StrengthModerate   Strength = "moderate"
	StrengthStrong     Strength = "strong"
	StrengthVeryStrong Strength = "very strong"
)

const (
	// DebtServiceKey is the entity key of the aggregate sovereign debt-service line.
	DebtServiceKey = "public debt"
	// CategoryDebtService is the agency category used for debt-service entities.
	CategoryDebtService = "debt service"
	// CategoryMinistry is the peer group for line ministries.
	CategoryMinistry = "ministry"
)

// Entity is one organizational unit in a fiscal snapshot.
type Entity struct {
	Key  string `json:"entity_key" validate:"required"`
	Name string `json:"name,omitempty"`

	// Monetary.
	TotalSpend    float64 `json:"total_spend" validate:"finite,gte=0"`
	Capex         float64 `json:"capex" validate:"finite,gte=0"`
	Opex          float64 `json:"opex" validate:"finite,gte=0"`
	ForeignCapex  float64 `json:"foreign_capex" validate:"finite,gte=0"`
	DomesticCapex float64 `json:"domestic_capex" validate:"finite,gte=0"`

	OutcomeStrength Strength `json:"outcome_strength" validate:"required,strength"`

	// Continuous derived metrics.
	EfficiencyProxy float64   `json:"efficiency_proxy" validate:"finite"`
	FiscalRiskScore float64   `json:"fiscal_risk_score" validate:"finite"`
	FiscalRiskLabel RiskLabel `json:"fiscal_risk_label" validate:"omitempty,oneof=Low Medium High"`
	SpendPerOutcome float64   `json:"spend_per_outcome" validate:"finite,gte=0"`
	ForeignExposure float64   `json:"foreign_exposure" validate:"finite"`
	EfficiencyRank  int       `json:"efficiency_rank" validate:"gte=0"`
	AgencyCategory  string    `json:"agency_category" validate:"required"`
	OutputCount     int       `json:"output_count" validate:"gte=0"`
	OutcomeCount    int       `json:"outcome_count" validate:"gte=0"`

	// Flags.
	BudgetPressure            bool `json:"budget_pressure"`
	VeryHighSpend             bool `json:"very_high_spend"`
	LowEfficiency             bool `json:"low_efficiency"`
	HighEfficiency            bool `json:"high_efficiency"`
	WeakOutcomes              bool `json:"weak_outcomes"`
	StrongOutcomes            bool `json:"strong_outcomes"`
	LowSpend                  bool `json:"low_spend"`
	ForeignDependent          bool `json:"foreign_dependent"`
	CapexPressure             bool `json:"capex_pressure"`
	PerformanceReviewRequired bool `json:"performance_review_required"`
	HighPerformer             bool `json:"high_performer"`
}

// NormalizeKey canonicalizes an entity key for lookups and joins.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// IsDebtService reports whether the entity is the aggregate debt-service line,
// which has no delivery outcomes to measure.
func (e Entity) IsDebtService() bool {
	return NormalizeKey(e.Key) == DebtServiceKey ||
		strings.EqualFold(strings.TrimSpace(e.AgencyCategory), CategoryDebtService)
}

// CapexRatio returns capex as a share of total spend, or 0 when nothing was spent.
func (e Entity) CapexRatio() float64 {
	if e.TotalSpend <= 0 {
		return 0
	}
	return e.Capex / e.TotalSpend
}

// ForeignShare returns the foreign-financed share of capex. Without a
// foreign/domestic capex split it falls back to ForeignExposure.
func (e Entity) ForeignShare() float64 {
	if funded := e.ForeignCapex + e.DomesticCapex; funded > 0 {
		return e.ForeignCapex / funded
	}
	return e.ForeignExposure
}

// OutcomeRatio returns outcome indicators as a share of all reported
// indicators, or 0 when none were reported.
func (e Entity) OutcomeRatio() float64 {
	total := e.OutputCount + e.OutcomeCount
	if total == 0 {
		return 0
	}
	return float64(e.OutcomeCount) / float64(total)
}

// HasOutcomeGap reports whether the entity reports outputs but no measured outcomes.
func (e Entity) HasOutcomeGap() bool {
	return e.OutputCount > 0 && e.OutcomeCount == 0
}

// DisplayName returns the display name, falling back to the key.
func (e Entity) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Key
}

// Snapshot is an immutable entity population loaded for one batch computation.
type Snapshot struct {
	ID       string    `json:"id"`
	Label    string    `json:"label,omitempty"`
	Source   string    `json:"source"`
	LoadedAt time.Time `json:"loaded_at"`
	Entities []Entity  `json:"entities"`
}

// Find returns the entity with the given key.
func (s *Snapshot) Find(key string) (Entity, error) {
	return FindEntity(s.Entities, key)
}

// FindEntity looks up an entity by normalized key.
func FindEntity(entities []Entity, key string) (Entity, error) {
	want := NormalizeKey(key)
	for _, e := range entities {
		if NormalizeKey(e.Key) == want {
			return e, nil
		}
	}
	return Entity{}, &LookupError{Key: key}
}
