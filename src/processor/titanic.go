// titanic.go
package processor

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"TitanicEDA/src/config"
	"TitanicEDA/src/datasource/file"
	"TitanicEDA/src/stats"
	"TitanicEDA/src/storage"
	"TitanicEDA/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"go.uber.org/zap"
)

// 派生列后缀
const (
	CodeSuffix   = "_Code"
	ImputeSuffix = "_Impute"
	TitleColumn  = "Title"
)

// Titanic 持有一张泰坦尼克数据表及其辅助状态, 非并发安全
type Titanic struct {
	cfg    *config.Config
	logger *storage.Logger

	source string         // 已绑定的数据集标识
	index  *series.Series // 行索引(PassengerId)
	data   *dataframe.DataFrame

	decode         map[string]map[int]string // 原列名 -> 编码 -> 标签
	missingColumns []string                  // GetMissingColumns 的缓存
}

// New 创建数据集对象, cfg 为 nil 时使用默认配置, logger 为 nil 时不记录日志
func New(cfg *config.Config, logger *storage.Logger) *Titanic {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = storage.NewNopLogger()
	}
	return &Titanic{
		cfg:    cfg,
		logger: logger,
		decode: make(map[string]map[int]string),
	}
}

// FromDataFrame 直接使用已有的数据表, 不绑定数据集标识
func FromDataFrame(cfg *config.Config, logger *storage.Logger, index *series.Series, df dataframe.DataFrame) (*Titanic, error) {
	if df.Err != nil {
		return nil, df.Err
	}
	if index != nil && index.Len() != df.Nrow() {
		return nil, fmt.Errorf("索引长度 %d 与行数 %d 不一致", index.Len(), df.Nrow())
	}
	t := New(cfg, logger)
	data := df.Copy()
	t.data = &data
	if index != nil {
		idx := index.Copy()
		t.index = &idx
	}
	return t, nil
}

// Source 已绑定的数据集标识, 未绑定时为空
func (t *Titanic) Source() string { return t.source }

// Data 返回当前数据表的副本
func (t *Titanic) Data() (dataframe.DataFrame, error) {
	if t.data == nil {
		return dataframe.DataFrame{}, invalidState("Data")
	}
	return t.data.Copy(), nil
}

// Index 返回行索引的副本
func (t *Titanic) Index() (series.Series, bool) {
	if t.index == nil {
		return series.Series{}, false
	}
	return t.index.Copy(), true
}

// GetData 读取 train 或 test 数据集
// 参数:
//
//	identifier: 数据集标识, 大小写和首尾空白不敏感
//
// 返回值:
//
//	读取后的数据表副本; 标识未知或与已绑定的标识不同返回 InvalidArgument
func (t *Titanic) GetData(identifier string) (dataframe.DataFrame, error) {
	name := config.NormalizeSource(identifier)
	path, ok := t.cfg.SourcePath(name)
	if !ok {
		return dataframe.DataFrame{}, invalidArgument("GetData", "未知的数据集 %q", identifier)
	}
	if t.source != "" && t.source != name {
		return dataframe.DataFrame{}, invalidArgument("GetData", "已绑定数据集 %q, 不能改为 %q", t.source, name)
	}

	tbl, err := file.ReadTable(path, t.cfg.Schema, t.cfg.Index, t.cfg.Encoding)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("加载数据集 %s 失败: %w", name, err)
	}
	for _, col := range tbl.Skipped {
		t.logger.Warning("数据文件缺少声明的列", zap.String("source", name), zap.String("column", col))
	}

	t.source = name
	t.data = &tbl.Data
	t.index = nil
	if t.cfg.Index != "" {
		idx := tbl.Index
		t.index = &idx
	}
	// 新表替换旧表, 旧的编码记录不再对应任何列
	t.decode = make(map[string]map[int]string)
	t.missingColumns = nil

	t.logger.Info("数据集加载完成", zap.String("source", name), zap.String("path", path),
		zap.Int("rows", tbl.Data.Nrow()), zap.Int("columns", tbl.Data.Ncol()))
	return t.data.Copy(), nil
}

// DropColumn 删除列, 列不存在时不做任何事
func (t *Titanic) DropColumn(name string) error {
	if t.data == nil {
		return invalidState("DropColumn")
	}
	if !utils.HasColumn(*t.data, name) {
		t.logger.Debug("列不存在, 跳过删除", zap.String("column", name))
		return nil
	}
	df := t.data.Drop(name)
	if df.Err != nil {
		return fmt.Errorf("删除列 %s 失败: %w", name, df.Err)
	}
	t.data = &df
	t.logger.Debug("删除列", zap.String("column", name))
	return nil
}

// CleanData 删除配置中的低价值列(默认 Ticket 和 Cabin)
func (t *Titanic) CleanData() error {
	if t.data == nil {
		return invalidState("CleanData")
	}
	for _, col := range t.cfg.DropCols {
		if err := t.DropColumn(col); err != nil {
			return err
		}
	}
	return nil
}

// naLabel 缺失值参与编码时的标签
const naLabel = "nan"

// labelOf 与 pandas astype(str) 一致: 缺失为 nan, 整数值的浮点数保留一位小数
func labelOf(e series.Element) string {
	if e.IsNA() {
		return naLabel
	}
	if e.Type() != series.Float {
		return e.String()
	}
	v := e.Float()
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case v == math.Trunc(v):
		return strconv.FormatFloat(v, 'f', -1, 64) + ".0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// EncodeLabels 将列的取值按字典序编码为 0..k-1, 写入 <column>_Code
// 缺失值按 "nan" 参与编码
func (t *Titanic) EncodeLabels(column string, drop bool) error {
	const op = "EncodeLabels"
	if t.data == nil {
		return invalidState(op)
	}
	if !utils.HasColumn(*t.data, column) {
		return invalidArgument(op, "列 %q 不存在", column)
	}

	s := t.data.Col(column)
	values := make([]string, s.Len())
	distinct := make(map[string]bool)
	for i := range values {
		values[i] = labelOf(s.Elem(i))
		distinct[values[i]] = true
	}
	labels := make([]string, 0, len(distinct))
	for l := range distinct {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	codeOf := make(map[string]int, len(labels))
	mapping := make(map[int]string, len(labels))
	for code, l := range labels {
		codeOf[l] = code
		mapping[code] = l
	}
	codes := make([]int, len(values))
	for i, v := range values {
		codes[i] = codeOf[v]
	}

	df := t.data.Mutate(series.New(codes, series.Int, column+CodeSuffix))
	if drop {
		df = df.Drop(column)
	}
	if df.Err != nil {
		return fmt.Errorf("编码列 %s 失败: %w", column, df.Err)
	}
	t.data = &df
	t.decode[column] = mapping
	t.logger.Debug("标签编码", zap.String("column", column), zap.Strings("labels", labels), zap.Bool("drop", drop))
	return nil
}

// DecodeMap 返回列的编码表副本
func (t *Titanic) DecodeMap(column string) (map[int]string, bool) {
	m, ok := t.decode[column]
	if !ok {
		return nil, false
	}
	out := make(map[int]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out, true
}

// DecodeLabels 用编码表把 <column>_Code 还原成标签列
func (t *Titanic) DecodeLabels(column string) (series.Series, error) {
	const op = "DecodeLabels"
	if t.data == nil {
		return series.Series{}, invalidState(op)
	}
	mapping, ok := t.decode[column]
	if !ok {
		return series.Series{}, invalidArgument(op, "列 %q 没有编码记录", column)
	}
	if !utils.HasColumn(*t.data, column+CodeSuffix) {
		return series.Series{}, invalidArgument(op, "列 %q 不存在", column+CodeSuffix)
	}
	codes, err := t.data.Col(column + CodeSuffix).Int()
	if err != nil {
		return series.Series{}, fmt.Errorf("读取编码列失败: %w", err)
	}
	labels := make([]string, len(codes))
	for i, c := range codes {
		l, ok := mapping[c]
		if !ok {
			return series.Series{}, invalidArgument(op, "第 %d 行的编码 %d 不在编码表中", i, c)
		}
		if l == naLabel {
			l = file.NA
		}
		labels[i] = l
	}
	return series.New(labels, series.String, column), nil
}

// GetMissingColumns 返回含缺失值的列(按表中顺序)并缓存
func (t *Titanic) GetMissingColumns() ([]string, error) {
	if t.data == nil {
		return nil, invalidState("GetMissingColumns")
	}
	var cols []string
	for _, name := range t.data.Names() {
		if utils.Contains(utils.NAMask(t.data.Col(name)), true) {
			cols = append(cols, name)
		}
	}
	t.missingColumns = cols
	return append([]string(nil), cols...), nil
}

// InvalidateMissingColumns 清空缓存; 删除或编码列之后缓存不会自动刷新
func (t *Titanic) InvalidateMissingColumns() {
	t.missingColumns = nil
}

// MCARResult 对 column 做简化的 MCAR 检验并返回 t 检验结果
//
// 样本 A 为全部行的结果列, 样本 B 为 column 不缺失的行的结果列,
// 两个样本都不含结果列缺失的行。这是启发式检验, 不是 Little 检验。
func (t *Titanic) MCARResult(column string) (stats.TTestResult, error) {
	const op = "TestForMCAR"
	if t.data == nil {
		return stats.TTestResult{}, invalidState(op)
	}
	if len(t.missingColumns) == 0 {
		if _, err := t.GetMissingColumns(); err != nil {
			return stats.TTestResult{}, err
		}
	}
	if !utils.Contains(t.missingColumns, column) {
		return stats.TTestResult{}, invalidArgument(op, "列 %q 不在缺失列中", column)
	}
	target := t.cfg.Target
	if !utils.HasColumn(*t.data, target) {
		return stats.TTestResult{}, invalidArgument(op, "结果列 %q 不存在", target)
	}
	if !utils.HasColumn(*t.data, column) {
		// 缓存过期, 列已被删除
		return stats.TTestResult{}, invalidArgument(op, "列 %q 已不在表中", column)
	}

	outcome := utils.Floats(t.data.Col(target))
	missing := utils.NAMask(t.data.Col(column))
	var a, b []float64
	for i, v := range outcome {
		if math.IsNaN(v) {
			continue
		}
		a = append(a, v)
		if !missing[i] {
			b = append(b, v)
		}
	}
	return stats.TwoSampleTTest(a, b)
}

// TestForMCAR p 值大于 alpha 时返回 true(不能拒绝 MCAR); 两个样本方差都为零时返回 false
func (t *Titanic) TestForMCAR(column string, alpha float64) (bool, error) {
	res, err := t.MCARResult(column)
	if errors.Is(err, stats.ErrZeroVariance) {
		t.logger.Warning("样本方差为零, p 值无定义", zap.String("column", column))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	t.logger.Debug("MCAR 检验", zap.String("column", column), zap.Float64("t", res.T), zap.Float64("p", res.P))
	return res.P > alpha, nil
}

// ExtractTitle 从 Name 中提取称谓写入 Title 列, 例如 "Braund, Mr. Owen Harris" -> "Mr"
func (t *Titanic) ExtractTitle() error {
	const op = "ExtractTitle"
	if t.data == nil {
		return invalidState(op)
	}
	if !utils.HasColumn(*t.data, "Name") {
		return invalidArgument(op, "列 %q 不存在", "Name")
	}
	names := t.data.Col("Name")
	titles := make([]string, names.Len())
	for i := range titles {
		titles[i] = file.NA
		if e := names.Elem(i); !e.IsNA() {
			if title, ok := parseTitle(e.String()); ok {
				titles[i] = title
			}
		}
	}
	df := t.data.Mutate(series.New(titles, series.String, TitleColumn))
	if df.Err != nil {
		return fmt.Errorf("写入 Title 失败: %w", df.Err)
	}
	t.data = &df
	return nil
}

// parseTitle 取第一个 ", " 之后(到下一个 ", " 为止)的部分, 再取第一个 "." 之前的部分
func parseTitle(name string) (string, bool) {
	parts := strings.Split(name, ", ")
	if len(parts) < 2 {
		return "", false
	}
	title, _, _ := strings.Cut(parts[1], ".")
	return title, true
}
