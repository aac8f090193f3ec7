// Package normalize rescales population metrics onto comparable scales.
//
// Every function is pure: inputs are never modified and the scale is derived
// from the slice passed in, so callers must pass the full population.
package normalize

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sells-group/fiscal-cli/internal/model"
)

// Epsilon keeps min-max scaling finite when every value is identical.
const Epsilon = 1e-9

// InvalidCategoryError reports a strength label outside the five-level scale.
type InvalidCategoryError struct {
	Label string
}

func (e *InvalidCategoryError) Error() string {
	return fmt.Sprintf("normalize: invalid outcome strength %q", e.Label)
}

var strengthOrdinals = map[model.Strength]int{
	model.StrengthVeryWeak:   0,
	model.StrengthWeak:       1,
	model.StrengthModerate:   2,
	model.StrengthStrong:     3,
	model.StrengthVeryStrong: 4,
}

// MaxOrdinal is the ordinal of the strongest label.
const MaxOrdinal = 4

// MinMax rescales values to [0,1] as (v-min)/(max-min+Epsilon).
// A constant input maps every element to 0; an empty input returns an empty slice.
// NaN and infinite elements map to 0 and do not move the range.
func MinMax(values []float64) []float64 {
	out := make([]float64, len(values))

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if !finite(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > hi {
		return out
	}

	span := hi - lo + Epsilon
	for i, v := range values {
		if finite(v) {
			out[i] = clamp01((v - lo) / span)
		}
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Ordinal maps a strength label to 0..4. Matching ignores case and
// surrounding whitespace; anything else is an InvalidCategoryError.
func Ordinal(label model.Strength) (int, error) {
	key := model.Strength(strings.ToLower(strings.TrimSpace(string(label))))
	n, ok := strengthOrdinals[key]
	if !ok {
		return 0, &InvalidCategoryError{Label: string(label)}
	}
	return n, nil
}

// ValidStrength reports whether label is one of the five known labels.
func ValidStrength(label string) bool {
	_, err := Ordinal(model.Strength(label))
	return err == nil
}

// Ordinals maps every label, failing on the first unknown one.
func Ordinals(labels []model.Strength) ([]float64, error) {
	out := make([]float64, len(labels))
	for i, l := range labels {
		n, err := Ordinal(l)
		if err != nil {
			return nil, err
		}
		out[i] = float64(n)
	}
	return out, nil
}

// PercentileRank returns, for each value, the fraction of the population
// whose value is at or below it. Tied values share the same (highest) rank.
func PercentileRank(values []float64) []float64 {
	out := make([]float64, len(values))
	n := len(values)
	if n == 0 {
		return out
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	for i, v := range values {
		// Count of elements <= v.
		atOrBelow := sort.Search(n, func(j int) bool { return sorted[j] > v })
		out[i] = float64(atOrBelow) / float64(n)
	}
	return out
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median returns the median, averaging the two middle values for even
// lengths. An empty slice yields 0.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
