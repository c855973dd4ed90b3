// heatmap.go
package plot

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// 颜色映射
const (
	CmapCoolwarm  = "coolwarm"
	CmapKindlmann = "kindlmann"
	CmapBlackBody = "blackbody"
)

var colormaps = map[string]func() palette.ColorMap{
	CmapCoolwarm:  func() palette.ColorMap { return moreland.SmoothBlueRed() },
	CmapKindlmann: moreland.Kindlmann,
	CmapBlackBody: moreland.BlackBody,
}

// ValidCmap 是否为支持的颜色映射, 空字符串表示默认 coolwarm
func ValidCmap(name string) bool {
	if name == "" {
		return true
	}
	_, ok := colormaps[name]
	return ok
}

// colorMap 值域设为 [min, max]
func colorMap(name string, min, max float64) palette.ColorMap {
	newMap, ok := colormaps[name]
	if !ok {
		newMap = colormaps[CmapCoolwarm]
	}
	cm := newMap()
	cm.SetMax(max)
	cm.SetMin(min)
	return cm
}

const paletteSize = 255

// colorBarWidth 右侧色条占的宽度
const colorBarWidth = vg.Inch

// Heatmap 相关系数热力图, Mask 为 true 的格子不画
type Heatmap struct {
	Title  string
	Labels []string
	Values [][]float64
	Mask   [][]bool
	Annot  bool
	Cmap   string
	Min    float64
	Max    float64
	Width  vg.Length
	Height vg.Length
}

// NewHeatmap 值域为 [-1, 1]
func NewHeatmap(labels []string, values [][]float64, mask [][]bool, annot bool, cmap string) *Heatmap {
	if cmap == "" {
		cmap = CmapCoolwarm
	}
	return &Heatmap{
		Labels: labels, Values: values, Mask: mask, Annot: annot, Cmap: cmap,
		Min: -1, Max: 1, Width: 7 * vg.Inch, Height: 6 * vg.Inch,
	}
}

// UpperTriangleMask 严格上三角为 true, 对角线保留
func UpperTriangleMask(n int) [][]bool {
	mask := make([][]bool, n)
	for i := range mask {
		mask[i] = make([]bool, n)
		for j := i + 1; j < n; j++ {
			mask[i][j] = true
		}
	}
	return mask
}

func (h *Heatmap) masked(i, j int) bool {
	return h.Mask != nil && i < len(h.Mask) && j < len(h.Mask[i]) && h.Mask[i][j]
}

// grid 遮罩的格子为 NaN
func (h *Heatmap) grid() (*grid, error) {
	n := len(h.Labels)
	if n == 0 {
		return nil, errors.New("热力图没有数据")
	}
	if len(h.Values) != n {
		return nil, fmt.Errorf("标签数 %d 与矩阵行数 %d 不一致", n, len(h.Values))
	}
	data := make([]float64, 0, n*n)
	for i, row := range h.Values {
		if len(row) != n {
			return nil, fmt.Errorf("第 %d 行长度 %d 与标签数 %d 不一致", i, len(row), n)
		}
		for j, v := range row {
			if h.masked(i, j) {
				v = math.NaN()
			}
			data = append(data, v)
		}
	}
	return newGrid(n, n, data), nil
}

func (h *Heatmap) Render(w io.Writer) error {
	g, err := h.grid()
	if err != nil {
		return err
	}
	cm := colorMap(h.Cmap, h.Min, h.Max)
	pal := cm.Palette(paletteSize).Colors()

	hm := plotter.NewHeatMap(g, cm.Palette(paletteSize))
	hm.Min, hm.Max = h.Min, h.Max
	hm.NaN = color.Transparent
	hm.Underflow = pal[0]
	hm.Overflow = pal[len(pal)-1]

	p := gplot.New()
	p.Title.Text = h.Title
	p.Add(hm)
	p.X.Tick.Marker = categoryTicks(h.Labels, false)
	p.Y.Tick.Marker = categoryTicks(h.Labels, true)
	rotateTickLabels(&p.X)
	p.X.Padding, p.Y.Padding = 0, 0

	if h.Annot {
		labels, err := h.annotations(g, cm)
		if err != nil {
			return err
		}
		if labels != nil {
			p.Add(labels)
		}
	}

	bar := gplot.New()
	bar.HideX()
	bar.Add(&plotter.ColorBar{ColorMap: cm, Vertical: true})
	bar.Y.Padding = 0

	width, height := h.Width, h.Height
	if width <= colorBarWidth || height <= 0 {
		width, height = 7*vg.Inch, 6*vg.Inch
	}
	img := vgimg.New(width, height)
	dc := draw.New(img)
	p.Draw(draw.Crop(dc, 0, -colorBarWidth, 0, 0))
	bar.Draw(draw.Crop(dc, width-colorBarWidth, 0, 0, 0))

	_, err = vgimg.PngCanvas{Canvas: img}.WriteTo(w)
	return err
}

// annotations 每个未遮罩的格子中央写两位小数, 深色格子用白字
func (h *Heatmap) annotations(g *grid, cm palette.ColorMap) (*plotter.Labels, error) {
	var (
		xys    plotter.XYs
		labels []string
		colors []color.Color
	)
	cols, rows := g.Dims()
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			v := g.Z(c, r)
			if math.IsNaN(v) {
				continue
			}
			xys = append(xys, plotter.XY{X: g.X(c), Y: g.Y(r)})
			labels = append(labels, fmt.Sprintf("%.2f", v))
			bg, err := cm.At(math.Max(h.Min, math.Min(h.Max, v)))
			if err != nil {
				return nil, err
			}
			colors = append(colors, textColor(bg))
		}
	}
	if len(xys) == 0 {
		return nil, nil
	}
	l, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return nil, err
	}
	for i := range l.TextStyle {
		l.TextStyle[i].XAlign = text.XCenter
		l.TextStyle[i].YAlign = text.YCenter
		l.TextStyle[i].Color = colors[i]
	}
	return l, nil
}

// textColor 深色背景用白字
func textColor(bg color.Color) color.Color {
	r, g, b, _ := bg.RGBA()
	lum := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
	if lum < 128 {
		return color.White
	}
	return color.Black
}
