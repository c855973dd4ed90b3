// Package plot 把分析结果画成 PNG 图
package plot

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/gonum/mat"
	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/text"
)

// Figure 可渲染的图
type Figure interface {
	Render(w io.Writer) error
}

// SavePNG 渲染到文件
func SavePNG(f Figure, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.Render(file); err != nil {
		file.Close()
		return fmt.Errorf("渲染 %s 失败: %w", path, err)
	}
	return file.Close()
}

// Bar 柱状图中的一根柱子, Annotation 非空时附在标签后面
type Bar struct {
	Label      string
	Value      float64
	Annotation string
}

// BarFigure 柱状图
type BarFigure struct {
	Title  string
	Bars   []Bar
	Width  int
	Height int
}

func NewBarFigure(title string, bars []Bar) *BarFigure {
	return &BarFigure{Title: title, Bars: bars, Width: 800, Height: 480}
}

func (f *BarFigure) Render(w io.Writer) error {
	if len(f.Bars) == 0 {
		return errors.New("柱状图没有数据")
	}

	values := make([]chart.Value, 0, len(f.Bars))
	var maxV float64
	for _, b := range f.Bars {
		label := b.Label
		if b.Annotation != "" {
			label = fmt.Sprintf("%s (%s)", b.Label, b.Annotation)
		}
		values = append(values, chart.Value{
			Label: label,
			Value: b.Value,
			Style: chart.Style{FillColor: drawing.ColorFromHex("4c72b0"), StrokeColor: drawing.ColorFromHex("4c72b0")},
		})
		maxV = max(maxV, b.Value)
	}
	// 全为 0 时 go-chart 的数值范围为空
	yRange := &chart.ContinuousRange{Min: 0, Max: maxV * 1.1}
	if maxV <= 0 {
		yRange = &chart.ContinuousRange{Min: 0, Max: 1}
	}

	barWidth := 40
	if n := len(values); n > 0 && f.Width/n < 60 {
		barWidth = max(f.Width/n-10, 4)
	}
	ch := chart.BarChart{
		Title:      f.Title,
		Width:      f.Width,
		Height:     f.Height,
		BarWidth:   barWidth,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		YAxis:      chart.YAxis{Range: yRange},
		Bars:       values,
	}
	return ch.Render(chart.PNG, w)
}

// grid 以 mat.Dense 存放的格子, 第 0 行画在最上面
type grid struct {
	m *mat.Dense
}

func newGrid(rows, cols int, data []float64) *grid {
	return &grid{m: mat.NewDense(rows, cols, data)}
}

func (g *grid) Dims() (c, r int) {
	r, c = g.m.Dims()
	return c, r
}

// Z 纵轴向上, 所以行号倒过来取
func (g *grid) Z(c, r int) float64 {
	rows, _ := g.m.Dims()
	return g.m.At(rows-1-r, c)
}

func (g *grid) X(c int) float64 { return float64(c) }
func (g *grid) Y(r int) float64 { return float64(r) }

// categoryTicks 每个格子一个刻度; reversed 时第 0 个标签在最上面
func categoryTicks(labels []string, reversed bool) gplot.ConstantTicks {
	ticks := make([]gplot.Tick, len(labels))
	for i, l := range labels {
		v := float64(i)
		if reversed {
			v = float64(len(labels) - 1 - i)
		}
		ticks[i] = gplot.Tick{Value: v, Label: l}
	}
	return ticks
}

func rotateTickLabels(a *gplot.Axis) {
	a.Tick.Label.Rotation = math.Pi / 4
	a.Tick.Label.XAlign = text.XRight
	a.Tick.Label.YAlign = text.YCenter
}
