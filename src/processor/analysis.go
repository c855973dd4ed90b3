// analysis.go
package processor

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"

	"TitanicEDA/src/plot"
	"TitanicEDA/src/stats"
	"TitanicEDA/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// TargetMean 结果列的均值, Group 为空表示全部行
type TargetMean struct {
	Group string
	Mean  float64
	Count int
}

// GetTargetCorrelation 按 varName 分组计算 target 的均值
// 参数:
//
//	varName: 分组列, 为空时返回全部行的均值; 不能是浮点列
//	target: 结果列, 为空时使用配置中的 Target
//
// 返回值:
//
//	每组一个均值, 按分组取值排序; varName 或 target 为缺失的行不参与计算
func (t *Titanic) GetTargetCorrelation(varName, target string) ([]TargetMean, error) {
	const op = "GetTargetCorrelation"
	if t.data == nil {
		return nil, invalidState(op)
	}
	if target == "" {
		target = t.cfg.Target
	}
	if !utils.HasColumn(*t.data, target) {
		return nil, invalidArgument(op, "结果列 %q 不存在", target)
	}
	if !utils.IsNumeric(t.data.Col(target)) {
		return nil, invalidArgument(op, "结果列 %q 不是数值列", target)
	}

	if varName == "" {
		y := utils.Floats(t.data.Col(target))
		return []TargetMean{{Mean: stats.Mean(y), Count: len(stats.DropNaN(y))}}, nil
	}
	if !utils.HasColumn(*t.data, varName) {
		return nil, invalidArgument(op, "列 %q 不存在", varName)
	}
	varType := t.data.Col(varName).Type()
	if varType == series.Float {
		return nil, invalidArgument(op, "列 %q 是连续变量, 只能按离散变量分组", varName)
	}

	// 去掉分组列或结果列缺失的行
	sub := t.data.Select([]string{varName, target}).Filter(
		dataframe.F{
			Colname:    varName,
			Comparator: series.CompFunc,
			Comparando: func(el series.Element) bool { return !el.IsNA() },
		},
	).Filter(
		dataframe.F{
			Colname:    target,
			Comparator: series.CompFunc,
			Comparando: func(el series.Element) bool { return !el.IsNA() },
		},
	)
	if sub.Err != nil {
		return nil, fmt.Errorf("筛选数据失败: %w", sub.Err)
	}
	if sub.Nrow() == 0 {
		return []TargetMean{}, nil
	}

	groups := sub.GroupBy(varName)
	if groups.Err != nil {
		return nil, fmt.Errorf("分组失败: %w", groups.Err)
	}
	out := make([]TargetMean, 0)
	for _, g := range groups.GetGroups() {
		y := utils.Floats(g.Col(target))
		out = append(out, TargetMean{
			Group: g.Col(varName).Elem(0).String(),
			Mean:  stats.Mean(y),
			Count: len(y),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if varType == series.Int {
			a, _ := strconv.Atoi(out[i].Group)
			b, _ := strconv.Atoi(out[j].Group)
			return a < b
		}
		return out[i].Group < out[j].Group
	})
	return out, nil
}

// GetValueCounts 按频数降序统计取值, 不含缺失值
func (t *Titanic) GetValueCounts(column string, normalize bool) ([]stats.ValueCount, error) {
	const op = "GetValueCounts"
	if t.data == nil {
		return nil, invalidState(op)
	}
	if !utils.HasColumn(*t.data, column) {
		return nil, invalidArgument(op, "列 %q 不存在", column)
	}
	s := t.data.Col(column)
	return stats.ValueCounts(s.Records(), utils.NAMask(s), normalize), nil
}

// GetCorrelationHeatmap 计算相关矩阵并返回热力图, 上三角(不含对角线)不显示
// 参数:
//
//	columns: 参与计算的数值列, 为空时使用全部数值列
//	method: pearson / spearman / kendall, 为空时为 pearson
//	annot: 是否在格子中写数值
//	cmap: 颜色映射, 为空时为 coolwarm
func (t *Titanic) GetCorrelationHeatmap(columns []string, method string, annot bool, cmap string) (*plot.Heatmap, error) {
	const op = "GetCorrelationHeatmap"
	if t.data == nil {
		return nil, invalidState(op)
	}
	if method == "" {
		method = stats.Pearson
	}
	switch method {
	case stats.Pearson, stats.Spearman, stats.Kendall:
	default:
		return nil, invalidArgument(op, "未知的相关系数方法 %q", method)
	}
	if !plot.ValidCmap(cmap) {
		return nil, invalidArgument(op, "未知的颜色映射 %q", cmap)
	}

	if len(columns) == 0 {
		for _, name := range t.data.Names() {
			if utils.IsNumeric(t.data.Col(name)) {
				columns = append(columns, name)
			}
		}
	}
	if len(columns) == 0 {
		return nil, invalidArgument(op, "没有数值列")
	}

	data := make([][]float64, len(columns))
	for i, name := range columns {
		if !utils.HasColumn(*t.data, name) {
			return nil, invalidArgument(op, "列 %q 不存在", name)
		}
		s := t.data.Col(name)
		if !utils.IsNumeric(s) {
			return nil, invalidArgument(op, "列 %q 不是数值列", name)
		}
		data[i] = utils.Floats(s)
	}

	m, err := stats.CorrelationMatrix(data, method)
	if err != nil {
		return nil, err
	}
	n := len(columns)
	values := make([][]float64, n)
	for i := range values {
		values[i] = make([]float64, n)
		for j := range values[i] {
			values[i][j] = m.At(i, j)
		}
	}

	h := plot.NewHeatmap(append([]string(nil), columns...), values, plot.UpperTriangleMask(n), annot, cmap)
	h.Title = fmt.Sprintf("Correlation (%s)", method)
	return h, nil
}

// PlotMissingData 每列缺失值个数的柱状图
func (t *Titanic) PlotMissingData() (*plot.BarFigure, error) {
	if t.data == nil {
		return nil, invalidState("PlotMissingData")
	}
	n := t.data.Nrow()
	bars := make([]plot.Bar, 0, t.data.Ncol())
	for _, name := range t.data.Names() {
		var missing int
		for _, na := range utils.NAMask(t.data.Col(name)) {
			if na {
				missing++
			}
		}
		bars = append(bars, plot.Bar{Label: name, Value: float64(missing), Annotation: percent(float64(missing), float64(n))})
	}
	return plot.NewBarFigure("Missing values per column", bars), nil
}

// PlotMissingMatrix 缺失值矩阵图
func (t *Titanic) PlotMissingMatrix() (*plot.MatrixFigure, error) {
	if t.data == nil {
		return nil, invalidState("PlotMissingMatrix")
	}
	names := t.data.Names()
	mask := make([][]bool, len(names))
	for i, name := range names {
		mask[i] = utils.NAMask(t.data.Col(name))
	}
	return plot.NewMatrixFigure(names, mask), nil
}

// PlotValueCounts 单列取值频数的柱状图, 标签后附百分比
func (t *Titanic) PlotValueCounts(column string) (*plot.BarFigure, error) {
	if t.data == nil {
		return nil, invalidState("PlotValueCounts")
	}
	counts, err := t.GetValueCounts(column, false)
	if err != nil {
		return nil, err
	}
	var total float64
	for _, c := range counts {
		total += c.Count
	}
	bars := make([]plot.Bar, len(counts))
	for i, c := range counts {
		bars[i] = plot.Bar{Label: c.Value, Value: c.Count, Annotation: percent(c.Count, total)}
	}
	return plot.NewBarFigure(column, bars), nil
}

func percent(part, total float64) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", math.Round(part/total*1000)/10)
}

// SaveToExcel 把索引和当前数据表写入 xlsx
func (t *Titanic) SaveToExcel(path string) error {
	if t.data == nil {
		return invalidState("SaveToExcel")
	}
	return utils.SaveToExcel(*t.data, t.index, path)
}

// SaveToCSV 把索引和当前数据表写入 csv, 缺失值写为 NaN
func (t *Titanic) SaveToCSV(path string) error {
	if t.data == nil {
		return invalidState("SaveToCSV")
	}
	df := *t.data
	if t.index != nil {
		df = dataframe.New(*t.index).CBind(df)
	}
	if df.Err != nil {
		return fmt.Errorf("拼接索引失败: %w", df.Err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := df.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	return f.Close()
}
