// crossval.go
package impute

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Transformer 可训练的数据变换, 如插补器
type Transformer interface {
	FitTransform(X mat.Matrix) (*mat.Dense, error)
	Transform(X mat.Matrix) (*mat.Dense, error)
}

// Fold 一次划分的训练/测试行号
type Fold struct {
	Train []int
	Test  []int
}

// KFold K 折划分, 前 n%K 折多一行
type KFold struct {
	NSplits int
	Shuffle bool
	Seed    uint64
}

func (k KFold) Split(n int) ([]Fold, error) {
	if k.NSplits < 2 {
		return nil, fmt.Errorf("折数至少为 2: %d", k.NSplits)
	}
	if n < k.NSplits {
		return nil, fmt.Errorf("样本数 %d 少于折数 %d", n, k.NSplits)
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	if k.Shuffle {
		r := rand.New(rand.NewPCG(k.Seed, k.Seed^0x9e3779b97f4a7c15))
		r.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	}

	folds := make([]Fold, 0, k.NSplits)
	start := 0
	for f := 0; f < k.NSplits; f++ {
		size := n / k.NSplits
		if f < n%k.NSplits {
			size++
		}
		test := append([]int(nil), idx[start:start+size]...)
		train := make([]int, 0, n-size)
		train = append(train, idx[:start]...)
		train = append(train, idx[start+size:]...)
		folds = append(folds, Fold{Train: train, Test: test})
		start += size
	}
	return folds, nil
}

// Scorer 越大越好
type Scorer func(yTrue, yPred []float64) float64

// 评分方法
const (
	ScoreR2  = "r2"
	ScoreMSE = "neg_mean_squared_error"
	ScoreMAE = "neg_mean_absolute_error"
	ScoreAcc = "accuracy"
)

// ScorerByName 按名称返回评分函数
func ScorerByName(name string) (Scorer, error) {
	switch name {
	case ScoreR2, "":
		return R2, nil
	case ScoreMSE:
		return func(t, p []float64) float64 { return -meanSquaredError(t, p) }, nil
	case ScoreMAE:
		return func(t, p []float64) float64 { return -meanAbsoluteError(t, p) }, nil
	case ScoreAcc:
		return Accuracy, nil
	default:
		return nil, fmt.Errorf("未知的评分方法: %s", name)
	}
}

// R2 决定系数, y 为常数时预测完全正确返回 1, 否则返回 0
func R2(yTrue, yPred []float64) float64 {
	var mean float64
	for _, v := range yTrue {
		mean += v
	}
	mean /= float64(len(yTrue))
	var ssRes, ssTot float64
	for i, v := range yTrue {
		ssRes += (v - yPred[i]) * (v - yPred[i])
		ssTot += (v - mean) * (v - mean)
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

// Accuracy 预测值四舍五入后与真实值相等的比例
func Accuracy(yTrue, yPred []float64) float64 {
	var hit float64
	for i, v := range yTrue {
		if math.Round(yPred[i]) == v {
			hit++
		}
	}
	return hit / float64(len(yTrue))
}

func meanSquaredError(yTrue, yPred []float64) float64 {
	var s float64
	for i, v := range yTrue {
		s += (v - yPred[i]) * (v - yPred[i])
	}
	return s / float64(len(yTrue))
}

func meanAbsoluteError(yTrue, yPred []float64) float64 {
	var s float64
	for i, v := range yTrue {
		s += math.Abs(v - yPred[i])
	}
	return s / float64(len(yTrue))
}

// Pipeline 先插补(可选)再拟合模型
type Pipeline struct {
	Imputer   Transformer
	Estimator Estimator
}

func (p Pipeline) fitPredict(xTrain *mat.Dense, yTrain []float64, xTest *mat.Dense) ([]float64, error) {
	est := p.Estimator
	if c, ok := est.(Cloner); ok {
		est = c.Clone()
	}
	if p.Imputer != nil {
		var err error
		if xTrain, err = p.Imputer.FitTransform(xTrain); err != nil {
			return nil, err
		}
		if xTest, err = p.Imputer.Transform(xTest); err != nil {
			return nil, err
		}
	}
	if err := est.Fit(xTrain, yTrain); err != nil {
		return nil, err
	}
	return est.Predict(xTest)
}

// CrossValScore 每折一个得分
func CrossValScore(p Pipeline, X mat.Matrix, y []float64, cv KFold, scorer Scorer) ([]float64, error) {
	n, c := X.Dims()
	if n != len(y) {
		return nil, fmt.Errorf("样本数不一致: %d != %d", n, len(y))
	}
	folds, err := cv.Split(n)
	if err != nil {
		return nil, err
	}
	cols := make([]int, c)
	for j := range cols {
		cols[j] = j
	}

	scores := make([]float64, 0, len(folds))
	for f, fold := range folds {
		yTrain := pick(y, fold.Train)
		yTest := pick(y, fold.Test)
		pred, err := p.fitPredict(subMatrix(X, fold.Train, cols), yTrain, subMatrix(X, fold.Test, cols))
		if err != nil {
			return nil, fmt.Errorf("第 %d 折: %w", f+1, err)
		}
		scores = append(scores, scorer(yTest, pred))
	}
	return scores, nil
}

func pick(y []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for k, i := range rows {
		out[k] = y[i]
	}
	return out
}

// StrategyScore 一种插补策略在各折的得分
type StrategyScore struct {
	Name   string
	Scores []float64
}

// ScoreStrategies 依次对 simple 策略和每个迭代插补模型做交叉验证, 最终模型均为 estimators[0]
func ScoreStrategies(X mat.Matrix, y []float64, estimators []Estimator, simple []string, maxIter int, cv KFold, scorer Scorer) ([]StrategyScore, error) {
	if len(estimators) == 0 {
		return nil, fmt.Errorf("至少需要一个模型")
	}
	base := estimators[0]
	var out []StrategyScore

	for _, strategy := range simple {
		scores, err := CrossValScore(Pipeline{Imputer: NewSimpleImputer(strategy), Estimator: base}, X, y, cv, scorer)
		if err != nil {
			return nil, fmt.Errorf("SimpleImputer/%s: %w", strategy, err)
		}
		out = append(out, StrategyScore{Name: "SimpleImputer/" + strategy, Scores: scores})
	}
	for _, est := range estimators {
		name := "IterativeImputer/" + EstimatorName(est)
		scores, err := CrossValScore(Pipeline{Imputer: NewIterativeImputer(est, maxIter), Estimator: base}, X, y, cv, scorer)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, StrategyScore{Name: name, Scores: scores})
	}
	return out, nil
}
