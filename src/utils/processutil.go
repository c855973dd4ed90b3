package utils

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
)

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// IsNumeric 整型或浮点列
func IsNumeric(s series.Series) bool {
	return s.Type() == series.Int || s.Type() == series.Float
}

// Floats 返回列的浮点值, 缺失为 NaN
func Floats(s series.Series) []float64 {
	out := make([]float64, s.Len())
	for i := range out {
		e := s.Elem(i)
		if e.IsNA() {
			out[i] = math.NaN()
			continue
		}
		out[i] = e.Float()
	}
	return out
}

// NAMask 每行是否缺失
func NAMask(s series.Series) []bool {
	out := make([]bool, s.Len())
	for i := range out {
		out[i] = s.Elem(i).IsNA()
	}
	return out
}

// SaveToExcel 把 index(可为 nil) 和 df 写到 Sheet1, 缺失值留空
func SaveToExcel(df dataframe.DataFrame, index *series.Series, filePath string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Sheet1"

	cols := make([]series.Series, 0, df.Ncol()+1)
	if index != nil {
		cols = append(cols, *index)
	}
	for _, name := range df.Names() {
		cols = append(cols, df.Col(name))
	}

	// 写入列名
	for i, s := range cols {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, s.Name); err != nil {
			return err
		}
	}

	// 写入数据
	for colIdx, s := range cols {
		for rowIdx := 0; rowIdx < s.Len(); rowIdx++ {
			e := s.Elem(rowIdx)
			if e.IsNA() {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, e.Val()); err != nil {
				return err
			}
		}
	}

	// 保存文件
	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}
