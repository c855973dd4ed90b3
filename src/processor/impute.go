// impute.go
package processor

import (
	"fmt"
	"math"

	"TitanicEDA/src/impute"
	"TitanicEDA/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// FullDataColumn ScoreImputeStrategies 结果中不做插补的基线列
const FullDataColumn = "Original/Full Data"

// numericMatrix 取出 columns 组成矩阵, 缺失值为 NaN
func (t *Titanic) numericMatrix(op string, columns []string) (*mat.Dense, error) {
	n := t.data.Nrow()
	if n == 0 {
		return nil, invalidArgument(op, "数据表为空")
	}
	m := mat.NewDense(n, len(columns), nil)
	for j, name := range columns {
		if !utils.HasColumn(*t.data, name) {
			return nil, invalidArgument(op, "列 %q 不存在", name)
		}
		s := t.data.Col(name)
		if !utils.IsNumeric(s) {
			return nil, invalidArgument(op, "列 %q 不是数值列", name)
		}
		m.SetCol(j, utils.Floats(s))
	}
	return m, nil
}

// ImputeValues 用迭代插补填充 column 的缺失值, 结果写入 <column>_Impute
// 参数:
//
//	estimator: 每轮对单列建模使用的模型
//	column: 要插补的列, 必须在 columns 中
//	columns: 参与插补的数值列
//	maxIter: 最大轮数, 不大于 0 时使用配置值
//	drop: 是否删除原列
func (t *Titanic) ImputeValues(estimator impute.Estimator, column string, columns []string, maxIter int, drop bool) error {
	const op = "ImputeValues"
	if t.data == nil {
		return invalidState(op)
	}
	if estimator == nil {
		return invalidArgument(op, "estimator 不能为空")
	}
	pos := -1
	for i, c := range columns {
		if c == column {
			pos = i
			break
		}
	}
	if pos < 0 {
		return invalidArgument(op, "列 %q 不在插补列 %v 中", column, columns)
	}
	x, err := t.numericMatrix(op, columns)
	if err != nil {
		return err
	}
	if maxIter <= 0 {
		maxIter = t.cfg.Impute.MaxIter
	}

	imp := impute.NewIterativeImputer(estimator, maxIter)
	filled, err := imp.FitTransform(x)
	if err != nil {
		return fmt.Errorf("插补列 %s 失败: %w", column, err)
	}

	df := t.data.Mutate(series.New(mat.Col(nil, pos, filled), series.Float, column+ImputeSuffix))
	if drop {
		df = df.Drop(column)
	}
	if df.Err != nil {
		return fmt.Errorf("写入插补结果失败: %w", df.Err)
	}
	t.data = &df
	t.logger.Info("迭代插补完成", zap.String("column", column), zap.Strings("columns", columns),
		zap.String("estimator", impute.EstimatorName(estimator)), zap.Int("rounds", imp.NIter))
	return nil
}

// ScoreImputeStrategies 用 K 折交叉验证比较不同插补策略
// 参数:
//
//	impTarget: 基线只使用该列不缺失的行
//	columns: columns[0] 为模型的结果列, 其余为特征列
//	estimators: estimators[0] 为最终模型, 每个模型都作为一次迭代插补的模型
//	scorer: r2 / neg_mean_squared_error / neg_mean_absolute_error / accuracy
//	nSplits, maxIter: 不大于 0 时使用配置值
//	simple: 单变量插补策略, 为空时为 mean 和 median
//
// 返回值:
//
//	每种策略一列, 每折一行; 结果列缺失的行不参与任何策略
func (t *Titanic) ScoreImputeStrategies(impTarget string, columns []string, estimators []impute.Estimator,
	scorer string, nSplits, maxIter int, simple []string) (dataframe.DataFrame, error) {
	const op = "ScoreImputeStrategies"
	if t.data == nil {
		return dataframe.DataFrame{}, invalidState(op)
	}
	if len(columns) < 2 {
		return dataframe.DataFrame{}, invalidArgument(op, "至少需要结果列和一个特征列")
	}
	if len(estimators) == 0 {
		return dataframe.DataFrame{}, invalidArgument(op, "至少需要一个模型")
	}
	if !utils.HasColumn(*t.data, impTarget) {
		return dataframe.DataFrame{}, invalidArgument(op, "列 %q 不存在", impTarget)
	}
	score, err := impute.ScorerByName(scorer)
	if err != nil {
		return dataframe.DataFrame{}, invalidArgument(op, "%v", err)
	}
	if nSplits <= 0 {
		nSplits = t.cfg.Impute.NSplits
	}
	if maxIter <= 0 {
		maxIter = t.cfg.Impute.MaxIter
	}
	if nSplits < 2 {
		return dataframe.DataFrame{}, invalidArgument(op, "折数至少为 2: %d", nSplits)
	}
	if len(simple) == 0 {
		simple = []string{impute.StrategyMean, impute.StrategyMedian}
	}

	all, err := t.numericMatrix(op, columns)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	targetNA := utils.NAMask(t.data.Col(impTarget))

	var rows, fullRows []int
	n, p := all.Dims()
	for i := 0; i < n; i++ {
		if math.IsNaN(all.At(i, 0)) {
			continue
		}
		rows = append(rows, i)
		complete := !targetNA[i]
		for j := 1; j < p && complete; j++ {
			complete = !math.IsNaN(all.At(i, j))
		}
		if complete {
			fullRows = append(fullRows, i)
		}
	}
	if len(fullRows) < nSplits {
		return dataframe.DataFrame{}, invalidArgument(op, "完整数据只有 %d 行, 少于折数 %d", len(fullRows), nSplits)
	}

	cv := impute.KFold{NSplits: nSplits, Shuffle: true, Seed: t.cfg.Impute.Seed}
	xFull, yFull := split(all, fullRows)
	full, err := impute.CrossValScore(impute.Pipeline{Estimator: estimators[0]}, xFull, yFull, cv, score)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%s: %w", FullDataColumn, err)
	}
	xMissing, yMissing := split(all, rows)
	results, err := impute.ScoreStrategies(xMissing, yMissing, estimators, simple, maxIter, cv, score)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	cols := []series.Series{series.New(full, series.Float, FullDataColumn)}
	for _, r := range results {
		cols = append(cols, series.New(r.Scores, series.Float, r.Name))
	}
	df := dataframe.New(cols...)
	if df.Err != nil {
		return dataframe.DataFrame{}, df.Err
	}
	t.logger.Info("插补策略评分完成", zap.String("target", columns[0]), zap.String("scorer", scorer), zap.Int("strategies", df.Ncol()))
	return df, nil
}

// split 取出 rows 行, 第 0 列作为 y, 其余列作为 X
func split(all *mat.Dense, rows []int) (*mat.Dense, []float64) {
	_, p := all.Dims()
	x := mat.NewDense(len(rows), p-1, nil)
	y := make([]float64, len(rows))
	for k, i := range rows {
		y[k] = all.At(i, 0)
		for j := 1; j < p; j++ {
			x.Set(k, j-1, all.At(i, j))
		}
	}
	return x, y
}
