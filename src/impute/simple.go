// simple.go
package impute

import (
	"fmt"
	"math"
	"sort"

	istats "TitanicEDA/src/stats"

	"gonum.org/v1/gonum/mat"
)

// 单变量插补策略
const (
	StrategyMean         = "mean"
	StrategyMedian       = "median"
	StrategyMostFrequent = "most_frequent"
	StrategyConstant     = "constant"
)

// SimpleImputer 按列统计量填充 NaN
type SimpleImputer struct {
	Strategy string
	Fill     float64 // StrategyConstant 时使用

	stats []float64
}

func NewSimpleImputer(strategy string) *SimpleImputer {
	return &SimpleImputer{Strategy: strategy}
}

// Fit 计算每列的填充值, 全缺失的列填充值为 NaN
func (s *SimpleImputer) Fit(X mat.Matrix) error {
	n, p := X.Dims()
	fill := make([]float64, p)
	col := make([]float64, 0, n)
	for j := 0; j < p; j++ {
		col = col[:0]
		for i := 0; i < n; i++ {
			if v := X.At(i, j); !math.IsNaN(v) {
				col = append(col, v)
			}
		}
		v, err := s.statistic(col)
		if err != nil {
			return err
		}
		fill[j] = v
	}
	s.stats = fill
	return nil
}

func (s *SimpleImputer) statistic(col []float64) (float64, error) {
	if s.Strategy == StrategyConstant {
		return s.Fill, nil
	}
	if len(col) == 0 {
		return math.NaN(), nil
	}
	switch s.Strategy {
	case StrategyMean, "":
		return istats.Mean(col), nil
	case StrategyMedian:
		sorted := append([]float64(nil), col...)
		sort.Float64s(sorted)
		n := len(sorted)
		if n%2 == 1 {
			return sorted[n/2], nil
		}
		return (sorted[n/2-1] + sorted[n/2]) / 2, nil
	case StrategyMostFrequent:
		// 频数相同时取较小值
		sorted := append([]float64(nil), col...)
		sort.Float64s(sorted)
		mode, best := sorted[0], 0
		for i := 0; i < len(sorted); {
			j := i
			for j < len(sorted) && sorted[j] == sorted[i] {
				j++
			}
			if j-i > best {
				mode, best = sorted[i], j-i
			}
			i = j
		}
		return mode, nil
	default:
		return 0, fmt.Errorf("未知的插补策略: %s", s.Strategy)
	}
}

// Transform 返回填充后的副本
func (s *SimpleImputer) Transform(X mat.Matrix) (*mat.Dense, error) {
	if s.stats == nil {
		return nil, ErrNotFitted
	}
	_, p := X.Dims()
	if p != len(s.stats) {
		return nil, fmt.Errorf("特征数不一致: %d != %d", p, len(s.stats))
	}
	out := mat.DenseCopyOf(X)
	out.Apply(func(i, j int, v float64) float64 {
		if math.IsNaN(v) {
			return s.stats[j]
		}
		return v
	}, out)
	return out, nil
}

func (s *SimpleImputer) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}
