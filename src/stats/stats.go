// Package stats 提供描述性统计与假设检验
package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"

	moremath "github.com/aclements/go-moremath/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// 相关系数方法
const (
	Pearson  = "pearson"
	Spearman = "spearman"
	Kendall  = "kendall"
)

// ErrZeroVariance 两个样本方差都为零, p 值无定义
var ErrZeroVariance = errors.New("样本方差为零")

// TTestResult 独立双样本 t 检验结果
type TTestResult struct {
	T   float64
	DoF float64
	P   float64
}

// DropNaN 返回去掉 NaN 后的副本
func DropNaN(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

// Mean 忽略 NaN 的均值, 没有有效值时返回 NaN
func Mean(xs []float64) float64 {
	v := DropNaN(xs)
	if len(v) == 0 {
		return math.NaN()
	}
	return stat.Mean(v, nil)
}

// TwoSampleTTest 合并方差的独立双样本 t 检验(双侧)
func TwoSampleTTest(a, b []float64) (TTestResult, error) {
	res, err := moremath.TwoSampleTTest(&moremath.Sample{Xs: a}, &moremath.Sample{Xs: b}, moremath.LocationDiffers)
	if errors.Is(err, moremath.ErrZeroVariance) {
		return TTestResult{T: math.NaN(), DoF: float64(len(a) + len(b) - 2), P: math.NaN()}, ErrZeroVariance
	}
	if err != nil {
		return TTestResult{}, fmt.Errorf("t 检验失败: %w", err)
	}
	return TTestResult{T: res.T, DoF: res.DoF, P: res.P}, nil
}

// Correlation 成对去除缺失值后计算相关系数
func Correlation(x, y []float64, method string) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("长度不一致: %d != %d", len(x), len(y))
	}
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 {
		return math.NaN(), nil
	}

	switch method {
	case Pearson:
		return stat.Correlation(xs, ys, nil), nil
	case Spearman:
		return stat.Correlation(Rank(xs), Rank(ys), nil), nil
	case Kendall:
		return kendallTauB(xs, ys), nil
	default:
		return 0, fmt.Errorf("未知的相关系数方法: %s", method)
	}
}

// CorrelationMatrix 按列计算相关矩阵
func CorrelationMatrix(columns [][]float64, method string) (*mat.SymDense, error) {
	n := len(columns)
	m := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			r, err := Correlation(columns[i], columns[j], method)
			if err != nil {
				return nil, err
			}
			if i == j && !math.IsNaN(r) {
				r = 1
			}
			m.SetSym(i, j, r)
		}
	}
	return m, nil
}

// Rank 平均秩, 从 1 开始
func Rank(xs []float64) []float64 {
	n := len(xs)
	sorted := make([]float64, n)
	copy(sorted, xs)
	idx := make([]int, n)
	floats.Argsort(sorted, idx)

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && sorted[j+1] == sorted[i] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

// kendallTauB 带并列修正的 Kendall tau-b
func kendallTauB(x, y []float64) float64 {
	var concordant, discordant, tiesX, tiesY float64
	for i := 0; i < len(x); i++ {
		for j := i + 1; j < len(x); j++ {
			dx := x[i] - x[j]
			dy := y[i] - y[j]
			switch {
			case dx == 0 && dy == 0:
			case dx == 0:
				tiesX++
			case dy == 0:
				tiesY++
			case dx*dy > 0:
				concordant++
			default:
				discordant++
			}
		}
	}
	denom := math.Sqrt((concordant + discordant + tiesX) * (concordant + discordant + tiesY))
	if denom == 0 {
		return math.NaN()
	}
	return (concordant - discordant) / denom
}

// ValueCount 单个取值的频数
type ValueCount struct {
	Value string
	Count float64 // normalize 时为比例
}

// ValueCounts 统计频数, 按频数降序, 相同频数按首次出现顺序, 缺失值不计入
func ValueCounts(values []string, isNA []bool, normalize bool) []ValueCount {
	counts := make(map[string]int)
	var order []string
	total := 0
	for i, v := range values {
		if isNA != nil && isNA[i] {
			continue
		}
		if _, ok := counts[v]; !ok {
			order = append(order, v)
		}
		counts[v]++
		total++
	}

	out := make([]ValueCount, len(order))
	for i, v := range order {
		c := float64(counts[v])
		if normalize && total > 0 {
			c /= float64(total)
		}
		out[i] = ValueCount{Value: v, Count: c}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
