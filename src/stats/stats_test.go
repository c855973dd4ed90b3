package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwoSampleTTest(t *testing.T) {
	res, err := TwoSampleTTest([]float64{1, 2, 3, 4, 5}, []float64{2, 3, 4, 5, 6})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, res.T, 1e-9)
	assert.InDelta(t, 8.0, res.DoF, 1e-9)
	assert.InDelta(t, 0.3466, res.P, 1e-3)

	res, err = TwoSampleTTest([]float64{1, 1, 1}, []float64{1, 1})
	assert.ErrorIs(t, err, ErrZeroVariance)
	assert.True(t, math.IsNaN(res.P))

	_, err = TwoSampleTTest(nil, []float64{1, 2})
	assert.Error(t, err)
}

func TestMean(t *testing.T) {
	assert.InDelta(t, 0.5, Mean([]float64{1, 0}), 1e-12)
	assert.InDelta(t, 2.0, Mean([]float64{1, math.NaN(), 3}), 1e-12)
	assert.True(t, math.IsNaN(Mean([]float64{math.NaN()})))
}

func TestCorrelation(t *testing.T) {
	r, err := Correlation([]float64{1, 2, 3}, []float64{2, 4, 6}, Pearson)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r, 1e-12)

	r, err = Correlation([]float64{1, 2, 3}, []float64{1, 4, 9}, Spearman)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r, 1e-12)

	r, err = Correlation([]float64{1, 2, 3, 4}, []float64{1, 3, 2, 4}, Kendall)
	require.NoError(t, err)
	assert.InDelta(t, 4.0/6.0, r, 1e-12)

	// 成对去除缺失值
	r, err = Correlation([]float64{1, 2, math.NaN(), 3}, []float64{3, 2, 100, 1}, Pearson)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, r, 1e-12)

	_, err = Correlation([]float64{1, 2}, []float64{1, 2}, "cosine")
	assert.Error(t, err)
}

func TestCorrelationMatrix(t *testing.T) {
	m, err := CorrelationMatrix([][]float64{{1, 2, 3, 4}, {4, 3, 2, 1}, {1, 3, 2, 4}}, Pearson)
	require.NoError(t, err)
	assert.Equal(t, 3, m.SymmetricDim())
	assert.InDelta(t, 1.0, m.At(0, 0), 1e-12)
	assert.InDelta(t, -1.0, m.At(0, 1), 1e-12)
	assert.InDelta(t, m.At(0, 2), m.At(2, 0), 1e-12)
	assert.InDelta(t, 0.8, m.At(0, 2), 1e-12)
}

func TestRank(t *testing.T) {
	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, Rank([]float64{10, 20, 20, 30}))
	assert.Equal(t, []float64{3, 1, 2}, Rank([]float64{9, 1, 5}))
}

func TestValueCounts(t *testing.T) {
	counts := ValueCounts([]string{"S", "S", "C"}, nil, false)
	assert.Equal(t, []ValueCount{{Value: "S", Count: 2}, {Value: "C", Count: 1}}, counts)

	norm := ValueCounts([]string{"S", "S", "C"}, nil, true)
	require.Len(t, norm, 2)
	assert.Equal(t, "S", norm[0].Value)
	assert.InDelta(t, 0.667, norm[0].Count, 1e-3)
	assert.InDelta(t, 0.333, norm[1].Count, 1e-3)

	// 缺失值不计入, 相同频数保持首次出现顺序
	counts = ValueCounts([]string{"Q", "NaN", "C", "C", "Q"}, []bool{false, true, false, false, false}, false)
	assert.Equal(t, []ValueCount{{Value: "Q", Count: 2}, {Value: "C", Count: 2}}, counts)
}
