// matrix.go
package plot

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"strconv"

	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	colorPresent = color.RGBA{64, 64, 64, 255}
	colorMissing = color.RGBA{255, 255, 255, 255}
)

// twoTone 0 为不缺失, 1 为缺失
type twoTone []color.Color

func (p twoTone) Colors() []color.Color { return p }

// MatrixFigure 缺失值矩阵, 每列一条竖带, 缺失的行画成白色
type MatrixFigure struct {
	Title   string
	Columns []string
	Missing [][]bool // Missing[c][r]
	Width   vg.Length
	Height  vg.Length
}

func NewMatrixFigure(columns []string, missing [][]bool) *MatrixFigure {
	width := max(vg.Length(len(columns))*0.6*vg.Inch, 4*vg.Inch)
	return &MatrixFigure{Title: "Missing values", Columns: columns, Missing: missing, Width: width, Height: 5 * vg.Inch}
}

// grid 缺失为 1, 否则为 0
func (m *MatrixFigure) grid() (*grid, error) {
	if len(m.Columns) == 0 {
		return nil, errors.New("缺失值矩阵没有列")
	}
	if len(m.Missing) != len(m.Columns) {
		return nil, fmt.Errorf("列数 %d 与缺失标记 %d 不一致", len(m.Columns), len(m.Missing))
	}
	rows := len(m.Missing[0])
	if rows == 0 {
		return nil, errors.New("缺失值矩阵没有行")
	}
	cols := len(m.Columns)
	data := make([]float64, rows*cols)
	for c := range m.Missing {
		if len(m.Missing[c]) != rows {
			return nil, fmt.Errorf("第 %d 列行数不一致", c)
		}
		for r, na := range m.Missing[c] {
			if na {
				data[r*cols+c] = 1
			}
		}
	}
	return newGrid(rows, cols, data), nil
}

func (m *MatrixFigure) Render(w io.Writer) error {
	g, err := m.grid()
	if err != nil {
		return err
	}
	_, rows := g.Dims()

	hm := plotter.NewHeatMap(g, twoTone{colorPresent, colorMissing})
	hm.Min, hm.Max = 0, 1
	hm.Rasterized = true

	p := gplot.New()
	p.Title.Text = m.Title
	p.Add(hm)
	p.X.Tick.Marker = categoryTicks(m.Columns, false)
	rotateTickLabels(&p.X)
	// 只标第一行和最后一行
	p.Y.Tick.Marker = gplot.ConstantTicks{
		{Value: float64(rows - 1), Label: "1"},
		{Value: 0, Label: strconv.Itoa(rows)},
	}
	p.X.Padding, p.Y.Padding = 0, 0

	width, height := m.Width, m.Height
	if width <= 0 || height <= 0 {
		width, height = 6*vg.Inch, 5*vg.Inch
	}
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
