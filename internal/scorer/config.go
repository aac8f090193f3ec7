// Package scorer computes the unified fiscal risk score, rank and tier for an
// entity population.
package scorer

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/fiscal-cli/internal/config"
)

// DefaultScorerConfig returns a config.ScorerConfig with the standard weights.
func DefaultScorerConfig() config.ScorerConfig {
	return config.ScorerConfig{
		// Component weights.
		RiskWeight:       0.40,
		EfficiencyWeight: 0.25,
		OutcomeWeight:    0.15,

		// Penalties, one per flag.
		BudgetPressurePenalty:    0.10,
		ForeignDependencyPenalty: 0.05,
		CapexPressurePenalty:     0.05,
	}
}

// WeightSum returns the sum of the three component weights.
func WeightSum(c config.ScorerConfig) float64 {
	return c.RiskWeight + c.EfficiencyWeight + c.OutcomeWeight
}

// ValidateConfig checks that a ScorerConfig is internally consistent.
func ValidateConfig(c config.ScorerConfig) error {
	var errs []string

	values := []struct {
		name string
		v    float64
	}{
		{"risk_weight", c.RiskWeight},
		{"efficiency_weight", c.EfficiencyWeight},
		{"outcome_weight", c.OutcomeWeight},
		{"budget_pressure_penalty", c.BudgetPressurePenalty},
		{"foreign_dependency_penalty", c.ForeignDependencyPenalty},
		{"capex_pressure_penalty", c.CapexPressurePenalty},
	}
	for _, w := range values {
		if w.v < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", w.name))
		}
	}

	if WeightSum(c) <= 0 {
		errs = append(errs, "weight sum must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LoadProfile overlays the weight profile at path onto base. Files ending in
// .toml are read as TOML, anything else as YAML. Keys absent from the file
// keep the base value. The merged config is validated.
func LoadProfile(path string, base config.ScorerConfig) (config.ScorerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, eris.Wrapf(err, "scorer: read profile %s", path)
	}

	merged := base
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &merged)
	} else {
		err = yaml.Unmarshal(data, &merged)
	}
	if err != nil {
		return base, eris.Wrapf(err, "scorer: parse profile %s", path)
	}
	merged.ProfilePath = path

	if err := ValidateConfig(merged); err != nil {
		return base, err
	}
	return merged, nil
}

// ConfigHash returns a SHA-256 hash of the scoring weights so runs can be
// matched to the profile that produced them.
func ConfigHash(cfg config.ScorerConfig) string {
	cfg.ProfilePath = ""
	data, err := json.Marshal(cfg)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:16]) // 32 hex chars
}
