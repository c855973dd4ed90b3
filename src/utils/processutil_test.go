package utils

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleFrame() dataframe.DataFrame {
	return dataframe.New(
		series.New([]interface{}{0, 1, nil}, series.Int, "Survived"),
		series.New([]interface{}{22.0, nil, 26.0}, series.Float, "Age"),
		series.New([]string{"S", "C", "S"}, series.String, "Embarked"),
	)
}

func TestColumnHelpers(t *testing.T) {
	df := sampleFrame()
	assert.True(t, HasColumn(df, "Age"))
	assert.False(t, HasColumn(df, "Cabin"))
	assert.True(t, Contains([]string{"a", "b"}, "b"))

	assert.True(t, IsNumeric(df.Col("Survived")))
	assert.True(t, IsNumeric(df.Col("Age")))
	assert.False(t, IsNumeric(df.Col("Embarked")))

	age := Floats(df.Col("Age"))
	assert.Equal(t, 22.0, age[0])
	assert.True(t, math.IsNaN(age[1]))
	assert.Equal(t, []bool{false, false, true}, NAMask(df.Col("Survived")))
}

func TestSaveToExcel(t *testing.T) {
	df := sampleFrame()
	index := series.New([]int{1, 2, 3}, series.Int, "PassengerId")
	path := filepath.Join(t.TempDir(), "train_clean.xlsx")
	require.NoError(t, SaveToExcel(df, &index, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"PassengerId", "Survived", "Age", "Embarked"}, rows[0])
	assert.Equal(t, []string{"1", "0", "22", "S"}, rows[1])
	// 缺失值留空
	v, err := f.GetCellValue("Sheet1", "C3")
	require.NoError(t, err)
	assert.Equal(t, "", v)
	v, err = f.GetCellValue("Sheet1", "B4")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, SaveToExcel(df, nil, path))
}
