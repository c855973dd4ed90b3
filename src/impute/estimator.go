// Package impute 提供缺失值插补与交叉验证评分
package impute

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ErrNotFitted 模型未训练
var ErrNotFitted = errors.New("模型尚未训练")

// Estimator 可训练、可预测的回归/分类模型
type Estimator interface {
	Fit(X mat.Matrix, y []float64) error
	Predict(X mat.Matrix) ([]float64, error)
}

// Cloner 返回相同超参数、未训练的副本
type Cloner interface {
	Clone() Estimator
}

// Namer 用于评分结果中的模型名称
type Namer interface {
	Name() string
}

// EstimatorName 优先使用 Name(), 否则取类型名
func EstimatorName(e Estimator) string {
	if n, ok := e.(Namer); ok {
		return n.Name()
	}
	name := fmt.Sprintf("%T", e)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Ridge 带截距的岭回归, Alpha 为 0 时退化为最小二乘
type Ridge struct {
	Alpha float64

	coef      *mat.VecDense
	intercept float64
}

func NewRidge(alpha float64) *Ridge { return &Ridge{Alpha: alpha} }

func (r *Ridge) Name() string     { return "Ridge" }
func (r *Ridge) Clone() Estimator { return &Ridge{Alpha: r.Alpha} }

// Fit 求解 (XcᵀXc + αI)β = Xcᵀyc, Xc/yc 为中心化后的数据
func (r *Ridge) Fit(X mat.Matrix, y []float64) error {
	n, p := X.Dims()
	if n != len(y) {
		return fmt.Errorf("样本数不一致: %d != %d", n, len(y))
	}
	if n == 0 {
		return errors.New("没有训练样本")
	}

	xMean := make([]float64, p)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			xMean[j] += X.At(i, j)
		}
		xMean[j] /= float64(n)
	}
	var yMean float64
	for _, v := range y {
		yMean += v
	}
	yMean /= float64(n)

	xc := mat.NewDense(n, p, nil)
	xc.Apply(func(i, j int, v float64) float64 { return X.At(i, j) - xMean[j] }, xc)
	yc := mat.NewVecDense(n, nil)
	for i, v := range y {
		yc.SetVec(i, v-yMean)
	}

	var a mat.Dense
	a.Mul(xc.T(), xc)
	for j := 0; j < p; j++ {
		a.Set(j, j, a.At(j, j)+r.Alpha)
	}
	var b mat.VecDense
	b.MulVec(xc.T(), yc)

	coef := mat.NewVecDense(p, nil)
	if err := coef.SolveVec(&a, &b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return fmt.Errorf("岭回归求解失败: %w", err)
		}
	}

	r.coef = coef
	r.intercept = yMean - mat.Dot(coef, mat.NewVecDense(p, xMean))
	return nil
}

func (r *Ridge) Predict(X mat.Matrix) ([]float64, error) {
	if r.coef == nil {
		return nil, ErrNotFitted
	}
	n, p := X.Dims()
	if p != r.coef.Len() {
		return nil, fmt.Errorf("特征数不一致: %d != %d", p, r.coef.Len())
	}
	var out mat.VecDense
	out.MulVec(X, r.coef)
	pred := make([]float64, n)
	for i := range pred {
		pred[i] = out.AtVec(i) + r.intercept
	}
	return pred, nil
}

// KNNRegressor 取 K 个欧氏距离最近样本的均值
type KNNRegressor struct {
	K int

	x *mat.Dense
	y []float64
}

func NewKNNRegressor(k int) *KNNRegressor { return &KNNRegressor{K: k} }

func (k *KNNRegressor) Name() string     { return "KNNRegressor" }
func (k *KNNRegressor) Clone() Estimator { return &KNNRegressor{K: k.K} }

func (k *KNNRegressor) Fit(X mat.Matrix, y []float64) error {
	n, _ := X.Dims()
	if n != len(y) {
		return fmt.Errorf("样本数不一致: %d != %d", n, len(y))
	}
	if n == 0 {
		return errors.New("没有训练样本")
	}
	if k.K <= 0 {
		return fmt.Errorf("K 必须为正数: %d", k.K)
	}
	k.x = mat.DenseCopyOf(X)
	k.y = append([]float64(nil), y...)
	return nil
}

func (k *KNNRegressor) Predict(X mat.Matrix) ([]float64, error) {
	if k.x == nil {
		return nil, ErrNotFitted
	}
	n, p := X.Dims()
	m, q := k.x.Dims()
	if p != q {
		return nil, fmt.Errorf("特征数不一致: %d != %d", p, q)
	}
	kk := min(k.K, m)

	type neighbor struct {
		dist float64
		y    float64
	}
	out := make([]float64, n)
	neighbors := make([]neighbor, m)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			var d float64
			for c := 0; c < p; c++ {
				diff := X.At(i, c) - k.x.At(j, c)
				d += diff * diff
			}
			neighbors[j] = neighbor{dist: math.Sqrt(d), y: k.y[j]}
		}
		sort.SliceStable(neighbors, func(a, b int) bool { return neighbors[a].dist < neighbors[b].dist })
		var sum float64
		for _, nb := range neighbors[:kk] {
			sum += nb.y
		}
		out[i] = sum / float64(kk)
	}
	return out, nil
}
