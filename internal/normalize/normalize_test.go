package normalize

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fiscal-cli/internal/model"
)

func TestMinMax(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   []float64
	}{
		{"empty", nil, []float64{}},
		{"single value", []float64{42}, []float64{0}},
		{"constant", []float64{7, 7, 7}, []float64{0, 0, 0}},
		{"spread", []float64{10, 50, 90}, []float64{0, 0.5, 1}},
		{"negative", []float64{-4, 0, 4}, []float64{0, 0.5, 1}},
		{"nan ignored", []float64{10, math.NaN(), 90}, []float64{0, 0, 1}},
		{"inf ignored", []float64{math.Inf(1), 10, 50, 90, math.Inf(-1)}, []float64{0, 0, 0.5, 1, 0}},
		{"all non-finite", []float64{math.NaN(), math.Inf(1)}, []float64{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MinMax(tt.values)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-6)
			}
		})
	}
}

func TestMinMax_StaysInUnitInterval(t *testing.T) {
	values := []float64{3.2, -1e6, 1e9, 0, 17, 17, math.SmallestNonzeroFloat64}
	for _, v := range MinMax(values) {
		assert.False(t, math.IsNaN(v))
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestMinMax_DoesNotMutateInput(t *testing.T) {
	values := []float64{5, 1, 3}
	_ = MinMax(values)
	assert.Equal(t, []float64{5, 1, 3}, values)
}

func TestOrdinal(t *testing.T) {
	tests := []struct {
		label model.Strength
		want  int
	}{
		{model.StrengthVeryWeak, 0},
		{model.StrengthWeak, 1},
		{model.StrengthModerate, 2},
		{model.StrengthStrong, 3},
		{model.StrengthVeryStrong, 4},
		{" Very Strong ", 4},
	}
	for _, tt := range tests {
		t.Run(string(tt.label), func(t *testing.T) {
			got, err := Ordinal(tt.label)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOrdinal_Invalid(t *testing.T) {
	_, err := Ordinal("excellent")
	require.Error(t, err)

	var ice *InvalidCategoryError
	require.True(t, errors.As(err, &ice))
	assert.Equal(t, "excellent", ice.Label)
	assert.False(t, ValidStrength("excellent"))
	assert.True(t, ValidStrength("weak"))
}

func TestOrdinals(t *testing.T) {
	got, err := Ordinals([]model.Strength{"weak", "strong"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3}, got)

	_, err = Ordinals([]model.Strength{"weak", ""})
	assert.Error(t, err)
}

func TestPercentileRank(t *testing.T) {
	got := PercentileRank([]float64{30, 10, 20, 40})
	assert.Equal(t, []float64{0.75, 0.25, 0.5, 1}, got)

	ties := PercentileRank([]float64{5, 5, 1})
	assert.Equal(t, []float64{1, 1, 1.0 / 3}, ties)

	assert.Empty(t, PercentileRank(nil))
	assert.Equal(t, []float64{1}, PercentileRank([]float64{9}))
}

func TestMeanMedian(t *testing.T) {
	assert.Zero(t, Mean(nil))
	assert.Zero(t, Median(nil))
	assert.InDelta(t, 2.5, Mean([]float64{1, 2, 3, 4}), 1e-9)
	assert.InDelta(t, 2.5, Median([]float64{4, 1, 3, 2}), 1e-9)
	assert.InDelta(t, 3, Median([]float64{5, 3, 1}), 1e-9)
}
