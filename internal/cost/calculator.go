// Package cost prices Claude token usage and tracks spend per narrative phase.
package cost

import "github.com/sells-group/fiscal-cli/pkg/anthropic"

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates map[string]ModelRate
}

// NewCalculator creates a Calculator with the given per-model rates.
func NewCalculator(rates map[string]ModelRate) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost of one call. Unknown models cost 0.
func (c *Calculator) Claude(model string, u anthropic.TokenUsage) float64 {
	rate, ok := c.rates[model]
	if !ok {
		return 0
	}

	inCost := (float64(u.InputTokens) / 1e6) * rate.Input
	outCost := (float64(u.OutputTokens) / 1e6) * rate.Output
	cwCost := (float64(u.CacheCreationInputTokens) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(u.CacheReadInputTokens) / 1e6) * rate.Input * rate.CacheReadMul

	return inCost + outCost + cwCost + crCost
}

// DefaultRates returns the default pricing rates.
func DefaultRates() map[string]ModelRate {
	return map[string]ModelRate{
		"claude-haiku-4-5-20251001": {
			Input: 0.80, Output: 4.00,
			CacheWriteMul: 1.25, CacheReadMul: 0.1,
		},
		"claude-sonnet-4-5-20250929": {
			Input: 3.00, Output: 15.00,
			CacheWriteMul: 1.25, CacheReadMul: 0.1,
		},
		"claude-opus-4-6": {
			Input: 15.00, Output: 75.00,
			CacheWriteMul: 1.25, CacheReadMul: 0.1,
		},
	}
}
