// reader.go
package file

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"TitanicEDA/src/config"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// NA 缺失值在字符串列中的表示
const NA = "NaN"

// 读取时视为缺失的原始取值
var naValues = []string{"", "NA", "NaN", "<nil>"}

// Table 读取结果，索引列与数据列分开保存
type Table struct {
	Index   series.Series
	Data    dataframe.DataFrame
	Skipped []string // schema 中声明但文件里没有的列
}

// ReadTable 按 schema 读取 csv/xlsx 文件
// 参数:
//
//	path: 文件路径, 以 .xlsx 结尾时按 Excel 读取
//	schema: 列声明, 只读取声明过的列
//	index: 索引列名, 必须存在
//	charset: 源文件字符集, 空值或 utf-8 不做转换
func ReadTable(path string, schema config.Schema, index, charset string) (*Table, error) {
	var df dataframe.DataFrame
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		records, err := ReadXLSXRecords(path)
		if err != nil {
			return nil, err
		}
		df = dataframe.LoadRecords(records, loadOptions(schema)...)
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("打开数据文件失败: %w", err)
		}
		defer f.Close()

		r, err := decodeReader(f, charset)
		if err != nil {
			return nil, err
		}
		df = dataframe.ReadCSV(r, loadOptions(schema)...)
	}
	if df.Err != nil {
		return nil, fmt.Errorf("解析数据文件 %s 失败: %w", path, df.Err)
	}
	return applySchema(df, schema, index)
}

func loadOptions(schema config.Schema) []dataframe.LoadOption {
	return []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithTypes(SeriesTypes(schema)),
		dataframe.NaNValues(naValues),
	}
}

// SeriesTypes 将声明类型映射为 gota 的列类型
func SeriesTypes(schema config.Schema) map[string]series.Type {
	types := make(map[string]series.Type, len(schema))
	for _, c := range schema {
		switch c.Type {
		case config.TypeInt:
			types[c.Name] = series.Int
		case config.TypeFloat:
			types[c.Name] = series.Float
		default:
			types[c.Name] = series.String
		}
	}
	return types
}

// applySchema 只保留声明列, 分类列中不在取值范围内的值置为缺失
func applySchema(df dataframe.DataFrame, schema config.Schema, index string) (*Table, error) {
	present := make(map[string]bool, df.Ncol())
	for _, n := range df.Names() {
		present[n] = true
	}

	t := &Table{}
	var keep []string
	for _, c := range schema {
		if !present[c.Name] {
			if c.Name == index {
				return nil, fmt.Errorf("数据文件缺少索引列 %q", index)
			}
			t.Skipped = append(t.Skipped, c.Name)
			continue
		}
		keep = append(keep, c.Name)
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("数据文件中没有任何声明的列")
	}
	df = df.Select(keep)

	for _, c := range schema {
		if c.Type != config.TypeCategory || !present[c.Name] {
			continue
		}
		df = df.Mutate(restrictCategories(df.Col(c.Name), c.Categories))
	}

	if index != "" {
		t.Index = df.Col(index)
		df = df.Drop(index)
	}
	if df.Err != nil {
		return nil, df.Err
	}
	t.Data = df
	return t, nil
}

func restrictCategories(s series.Series, categories []string) series.Series {
	allowed := make(map[string]bool, len(categories))
	for _, c := range categories {
		allowed[c] = true
	}
	values := make([]string, s.Len())
	for i := 0; i < s.Len(); i++ {
		el := s.Elem(i)
		if el.IsNA() || !allowed[el.String()] {
			values[i] = NA
			continue
		}
		values[i] = el.String()
	}
	return series.New(values, series.String, s.Name)
}

// decodeReader 把非 utf-8 的源文件转成 utf-8
func decodeReader(r io.Reader, charset string) (io.Reader, error) {
	cs := strings.ToLower(strings.TrimSpace(charset))
	if cs == "" || cs == "utf-8" || cs == "utf8" {
		return r, nil
	}
	enc, err := htmlindex.Get(cs)
	if err != nil {
		return nil, fmt.Errorf("不支持的字符集 %s: %w", charset, err)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// ReadXLSXRecords 读取第一个工作表, 第一行为标题行
func ReadXLSXRecords(filePath string) ([][]string, error) {
	// 1. 使用tealeg/xlsx打开Excel文件
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("xlsx open file false: %w", err)
	}

	// 2. 获取第一个工作表
	if len(xlFile.Sheets) == 0 {
		return nil, fmt.Errorf("excel文件中没有工作表: %s", filePath)
	}
	sheet := xlFile.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, fmt.Errorf("工作表 %s 为空", sheet.Name)
	}

	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, cell.String())
	}

	// 3. 填充数据(从第二行开始), 短行补空值
	records := [][]string{headers}
	for _, row := range sheet.Rows[1:] {
		rec := make([]string, len(headers))
		empty := true
		for i, cell := range row.Cells {
			if i < len(headers) { // 确保不超出列数范围
				rec[i] = cell.String()
				if rec[i] != "" {
					empty = false
				}
			}
		}
		if !empty {
			records = append(records, rec)
		}
	}
	return records, nil
}
