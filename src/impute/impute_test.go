package impute

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var nan = math.NaN()

func TestRidgeFitsLine(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	r := NewRidge(0)
	require.NoError(t, r.Fit(X, []float64{3, 5, 7, 9}))

	pred, err := r.Predict(mat.NewDense(2, 1, []float64{5, 0}))
	require.NoError(t, err)
	assert.InDelta(t, 11.0, pred[0], 1e-9)
	assert.InDelta(t, 1.0, pred[1], 1e-9)

	_, err = NewRidge(1).Predict(X)
	assert.ErrorIs(t, err, ErrNotFitted)
	assert.Error(t, r.Fit(X, []float64{1}))
}

func TestKNNRegressor(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 10, 11})
	k := NewKNNRegressor(2)
	require.NoError(t, k.Fit(X, []float64{0, 2, 10, 12}))

	pred, err := k.Predict(mat.NewDense(2, 1, []float64{0.4, 10.6}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, pred[0], 1e-12)
	assert.InDelta(t, 11.0, pred[1], 1e-12)

	assert.Error(t, NewKNNRegressor(0).Fit(X, []float64{0, 2, 10, 12}))
}

type meanModel struct{ mean float64 }

func (m *meanModel) Fit(_ mat.Matrix, y []float64) error {
	m.mean = 0
	for _, v := range y {
		m.mean += v
	}
	m.mean /= float64(len(y))
	return nil
}

func (m *meanModel) Predict(X mat.Matrix) ([]float64, error) {
	n, _ := X.Dims()
	out := make([]float64, n)
	for i := range out {
		out[i] = m.mean
	}
	return out, nil
}

func TestEstimatorName(t *testing.T) {
	assert.Equal(t, "Ridge", EstimatorName(NewRidge(1)))
	assert.Equal(t, "KNNRegressor", EstimatorName(NewKNNRegressor(3)))
	assert.Equal(t, "meanModel", EstimatorName(&meanModel{}))
}

func TestSimpleImputer(t *testing.T) {
	X := mat.NewDense(5, 2, []float64{
		1, 7,
		nan, 7,
		3, 1,
		10, nan,
		nan, 2,
	})
	cases := []struct {
		strategy string
		want     [2]float64
	}{
		{StrategyMean, [2]float64{14.0 / 3, 17.0 / 4}},
		{StrategyMedian, [2]float64{3, 4.5}},
		{StrategyMostFrequent, [2]float64{1, 7}},
	}
	for _, c := range cases {
		t.Run(c.strategy, func(t *testing.T) {
			out, err := NewSimpleImputer(c.strategy).FitTransform(X)
			require.NoError(t, err)
			assert.InDelta(t, c.want[0], out.At(1, 0), 1e-12)
			assert.InDelta(t, c.want[0], out.At(4, 0), 1e-12)
			assert.InDelta(t, c.want[1], out.At(3, 1), 1e-12)
			assert.Equal(t, 3.0, out.At(2, 0))
			// 输入不变
			assert.True(t, math.IsNaN(X.At(1, 0)))
		})
	}

	s := &SimpleImputer{Strategy: StrategyConstant, Fill: -1}
	out, err := s.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, -1.0, out.At(3, 1))

	assert.Error(t, NewSimpleImputer("mode").Fit(X))
	_, err = NewSimpleImputer(StrategyMean).Transform(X)
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestIterativeImputerRecoversLinearRelation(t *testing.T) {
	// 第二列 = 2 * 第一列
	X := mat.NewDense(6, 2, []float64{
		1, 2,
		2, 4,
		3, nan,
		4, 8,
		5, 10,
		nan, 12,
	})
	it := NewIterativeImputer(NewRidge(0), 10)
	out, err := it.FitTransform(X)
	require.NoError(t, err)

	assert.InDelta(t, 6.0, out.At(2, 1), 1e-2)
	assert.InDelta(t, 6.0, out.At(5, 0), 1e-2)
	assert.Equal(t, 4.0, out.At(3, 0))
	assert.GreaterOrEqual(t, it.NIter, 1)
	assert.LessOrEqual(t, it.NIter, 10)

	test := mat.NewDense(1, 2, []float64{nan, 14})
	tr, err := it.Transform(test)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, tr.At(0, 0), 0.5)
}

func TestIterativeImputerSingleColumnFallsBackToMean(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, nan, 3})
	out, err := NewIterativeImputer(NewRidge(1), 5).FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, 2.0, out.At(1, 0))
}

func TestIterativeImputerWithoutClone(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{1, 2, 2, nan, 3, 6, 4, 8})
	it := NewIterativeImputer(&meanModel{}, 3)
	out, err := it.FitTransform(X)
	require.NoError(t, err)
	assert.InDelta(t, 16.0/3, out.At(1, 1), 1e-12)

	_, err = it.Transform(X)
	assert.Error(t, err)
}

func TestIterativeImputerErrors(t *testing.T) {
	X := mat.NewDense(2, 2, []float64{1, nan, 2, nan})
	_, err := NewIterativeImputer(NewRidge(1), 5).FitTransform(X)
	assert.Error(t, err)

	_, err = (&IterativeImputer{}).FitTransform(X)
	assert.Error(t, err)

	_, err = NewIterativeImputer(NewRidge(1), 5).Transform(X)
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestKFoldSplit(t *testing.T) {
	folds, err := KFold{NSplits: 3}.Split(7)
	require.NoError(t, err)
	require.Len(t, folds, 3)
	assert.Equal(t, []int{0, 1, 2}, folds[0].Test)
	assert.Equal(t, []int{3, 4}, folds[1].Test)
	assert.Equal(t, []int{5, 6}, folds[2].Test)
	assert.Equal(t, []int{0, 1, 2, 5, 6}, folds[1].Train)

	a, err := KFold{NSplits: 3, Shuffle: true, Seed: 42}.Split(10)
	require.NoError(t, err)
	b, err := KFold{NSplits: 3, Shuffle: true, Seed: 42}.Split(10)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	seen := make(map[int]int)
	for _, f := range a {
		for _, i := range f.Test {
			seen[i]++
		}
		assert.Len(t, f.Train, 10-len(f.Test))
	}
	assert.Len(t, seen, 10)

	_, err = KFold{NSplits: 1}.Split(10)
	assert.Error(t, err)
	_, err = KFold{NSplits: 5}.Split(3)
	assert.Error(t, err)
}

func TestScorers(t *testing.T) {
	assert.InDelta(t, 1.0, R2([]float64{1, 2, 3}, []float64{1, 2, 3}), 1e-12)
	assert.InDelta(t, 0.75, R2([]float64{1, 2, 3}, []float64{1.5, 2, 2.5}), 1e-12)
	assert.Equal(t, 0.0, R2([]float64{2, 2}, []float64{1, 3}))

	mse, err := ScorerByName(ScoreMSE)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, mse([]float64{1, 2}, []float64{2, 3}), 1e-12)

	mae, err := ScorerByName(ScoreMAE)
	require.NoError(t, err)
	assert.InDelta(t, -1.5, mae([]float64{0, 0}, []float64{1, -2}), 1e-12)

	assert.InDelta(t, 0.5, Accuracy([]float64{0, 1}, []float64{0.2, 0.4}), 1e-12)

	_, err = ScorerByName("f1")
	assert.Error(t, err)
}

func TestScoreStrategies(t *testing.T) {
	n := 30
	data := make([]float64, 0, n*3)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a := float64(i)
		b := float64(i%7) + 0.5*a
		if i%4 == 1 {
			b = nan
		}
		data = append(data, a, b)
		y[i] = 3*a + 1
	}
	X := mat.NewDense(n, 2, data)

	cv := KFold{NSplits: 5, Shuffle: true, Seed: 7}
	res, err := ScoreStrategies(X, y, []Estimator{NewRidge(0.1), NewKNNRegressor(3)}, []string{StrategyMean, StrategyMedian}, 5, cv, R2)
	require.NoError(t, err)

	var names []string
	for _, r := range res {
		names = append(names, r.Name)
		assert.Len(t, r.Scores, 5)
		for _, s := range r.Scores {
			assert.False(t, math.IsNaN(s), r.Name)
		}
	}
	assert.Equal(t, []string{
		"SimpleImputer/mean",
		"SimpleImputer/median",
		"IterativeImputer/Ridge",
		"IterativeImputer/KNNRegressor",
	}, names)

	_, err = ScoreStrategies(X, y, nil, nil, 5, cv, R2)
	assert.Error(t, err)
}
