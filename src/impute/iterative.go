// iterative.go
package impute

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// 默认参数
const (
	DefaultMaxIter = 10
	DefaultTol     = 1e-3
)

// IterativeImputer 轮询式多变量插补
//
// 先用均值填充, 再按缺失数量从少到多依次把每个含缺失值的列
// 作为目标, 用其余列训练 Estimator 并预测缺失位置, 重复 MaxIter 轮。
// 一轮内最大绝对变化小于 Tol*max|观测值| 时提前结束。
type IterativeImputer struct {
	Estimator Estimator
	MaxIter   int
	Tol       float64

	NIter int // 实际执行的轮数

	initial *SimpleImputer
	steps   []imputeStep
	fitted  bool
}

type imputeStep struct {
	feature int
	others  []int
	model   Estimator // 不支持 Clone 时为 nil
}

func NewIterativeImputer(est Estimator, maxIter int) *IterativeImputer {
	return &IterativeImputer{Estimator: est, MaxIter: maxIter, Tol: DefaultTol}
}

// FitTransform 训练并返回插补后的副本, 输入中的 NaN 视为缺失
func (it *IterativeImputer) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if it.Estimator == nil {
		return nil, errors.New("未设置 Estimator")
	}
	n, p := X.Dims()
	missing := make([][]int, p) // 每列缺失的行号
	var maxAbs float64
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			v := X.At(i, j)
			if math.IsNaN(v) {
				missing[j] = append(missing[j], i)
				continue
			}
			maxAbs = math.Max(maxAbs, math.Abs(v))
		}
		if len(missing[j]) == n {
			return nil, fmt.Errorf("第 %d 列没有观测值", j)
		}
	}

	it.initial = NewSimpleImputer(StrategyMean)
	xt, err := it.initial.FitTransform(X)
	if err != nil {
		return nil, err
	}
	it.steps = nil
	it.NIter = 0
	it.fitted = true

	order := make([]int, 0, p)
	for j := 0; j < p; j++ {
		if len(missing[j]) > 0 {
			order = append(order, j)
		}
	}
	sort.SliceStable(order, func(a, b int) bool { return len(missing[order[a]]) < len(missing[order[b]]) })
	// 单列时没有可用的特征, 只做均值填充
	if p < 2 || len(order) == 0 {
		return xt, nil
	}

	maxIter := it.MaxIter
	if maxIter <= 0 {
		maxIter = DefaultMaxIter
	}
	tol := it.Tol
	if tol <= 0 {
		tol = DefaultTol
	}
	normTol := tol * maxAbs

	_, cloneable := it.Estimator.(Cloner)
	prev := mat.NewDense(n, p, nil)
	for round := 0; round < maxIter; round++ {
		prev.Copy(xt)
		steps := make([]imputeStep, 0, len(order))
		for _, j := range order {
			model := it.Estimator
			if cloneable {
				model = it.Estimator.(Cloner).Clone()
			}
			step := imputeStep{feature: j, others: otherColumns(p, j)}
			if err := fitStep(model, xt, step, missing[j]); err != nil {
				return nil, err
			}
			if err := predictStep(model, xt, step, missing[j]); err != nil {
				return nil, err
			}
			if cloneable {
				step.model = model
			}
			steps = append(steps, step)
		}
		it.steps = steps
		it.NIter = round + 1

		var change float64
		for i := 0; i < n; i++ {
			for j := 0; j < p; j++ {
				change = math.Max(change, math.Abs(xt.At(i, j)-prev.At(i, j)))
			}
		}
		if change < normTol {
			break
		}
	}
	return xt, nil
}

// Transform 用最后一轮的模型插补新数据, 需要 Estimator 支持 Clone
func (it *IterativeImputer) Transform(X mat.Matrix) (*mat.Dense, error) {
	if !it.fitted {
		return nil, ErrNotFitted
	}
	xt, err := it.initial.Transform(X)
	if err != nil {
		return nil, err
	}
	n, p := X.Dims()
	for _, step := range it.steps {
		if step.model == nil {
			return nil, fmt.Errorf("%s 不支持 Clone, 无法插补新数据", EstimatorName(it.Estimator))
		}
		var rows []int
		for i := 0; i < n; i++ {
			if math.IsNaN(X.At(i, step.feature)) {
				rows = append(rows, i)
			}
		}
		if len(rows) == 0 || len(step.others) != p-1 {
			continue
		}
		if err := predictStep(step.model, xt, step, rows); err != nil {
			return nil, err
		}
	}
	return xt, nil
}

// fitStep 用 feature 列观测到的行训练模型
func fitStep(model Estimator, xt *mat.Dense, step imputeStep, missingRows []int) error {
	n, _ := xt.Dims()
	isMissing := make(map[int]bool, len(missingRows))
	for _, i := range missingRows {
		isMissing[i] = true
	}
	rows := make([]int, 0, n-len(missingRows))
	for i := 0; i < n; i++ {
		if !isMissing[i] {
			rows = append(rows, i)
		}
	}
	y := make([]float64, len(rows))
	for k, i := range rows {
		y[k] = xt.At(i, step.feature)
	}
	if err := model.Fit(subMatrix(xt, rows, step.others), y); err != nil {
		return fmt.Errorf("训练第 %d 列的插补模型失败: %w", step.feature, err)
	}
	return nil
}

func predictStep(model Estimator, xt *mat.Dense, step imputeStep, rows []int) error {
	pred, err := model.Predict(subMatrix(xt, rows, step.others))
	if err != nil {
		return fmt.Errorf("预测第 %d 列失败: %w", step.feature, err)
	}
	for k, i := range rows {
		xt.Set(i, step.feature, pred[k])
	}
	return nil
}

func otherColumns(p, skip int) []int {
	cols := make([]int, 0, p-1)
	for j := 0; j < p; j++ {
		if j != skip {
			cols = append(cols, j)
		}
	}
	return cols
}

// subMatrix 按行号和列号取子矩阵的副本, rows 和 cols 不能为空
func subMatrix(x mat.Matrix, rows, cols []int) *mat.Dense {
	out := mat.NewDense(len(rows), len(cols), nil)
	for a, i := range rows {
		for b, j := range cols {
			out.Set(a, b, x.At(i, j))
		}
	}
	return out
}
