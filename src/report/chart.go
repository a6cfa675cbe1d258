package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-gota/gota/dataframe"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	chartHeight   = 512
	barWidth      = 40
	barSpacing    = 12
	minChartWidth = 640
)

// ChartReporter 把分类计数和直方图画成 PNG 柱状图
type ChartReporter struct {
	dir   string
	color drawing.Color

	mu    sync.Mutex
	files []string
}

// NewChartReporter 图片写到 dir，color 形如 "#4287f5"
func NewChartReporter(dir, color string) (*ChartReporter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建图表目录失败: %w", err)
	}
	return &ChartReporter{
		dir:   dir,
		color: drawing.ColorFromHex(strings.TrimPrefix(color, "#")),
	}, nil
}

// Files 已生成的图片路径
func (c *ChartReporter) Files() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.files))
	copy(out, c.files)
	return out
}

func (c *ChartReporter) RenderCategoryCounts(title, column string, counts []CategoryCount) error {
	bars := make([]chart.Value, 0, len(counts))
	for _, cc := range counts {
		bars = append(bars, chart.Value{Label: cc.Label, Value: float64(cc.Count)})
	}
	return c.render(fileName(column, "counts"), title, bars)
}

func (c *ChartReporter) RenderHistogram(title, column string, bins []HistogramBin) error {
	bars := make([]chart.Value, 0, len(bins))
	for _, b := range bins {
		bars = append(bars, chart.Value{Label: fmt.Sprintf("%.0f", b.Lower), Value: float64(b.Count)})
	}
	return c.render(fileName(column, "hist"), title, bars)
}

// PrintExtrema 图表不输出极值行
func (c *ChartReporter) PrintExtrema(string, dataframe.DataFrame) error { return nil }

func (c *ChartReporter) render(name, title string, bars []chart.Value) error {
	if len(bars) == 0 {
		return fmt.Errorf("%s: 没有可绘制的数据", title)
	}

	peak := 0.0
	for i := range bars {
		bars[i].Style = chart.Style{
			FillColor:   c.color,
			StrokeColor: c.color,
			StrokeWidth: 1,
		}
		if bars[i].Value > peak {
			peak = bars[i].Value
		}
	}
	if peak == 0 {
		peak = 1
	}

	width := len(bars)*(barWidth+barSpacing) + 120
	if width < minChartWidth {
		width = minChartWidth
	}

	graph := chart.BarChart{
		Title: title,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 60},
		},
		Width:      width,
		Height:     chartHeight,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		XAxis:      chart.Style{TextRotationDegrees: 45.0},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: peak * 1.1},
		},
		Bars: bars,
	}

	path := filepath.Join(c.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建图表文件失败: %w", err)
	}
	defer f.Close()

	if err := graph.Render(chart.PNG, f); err != nil {
		return fmt.Errorf("绘制 %s 失败: %w", title, err)
	}

	c.mu.Lock()
	c.files = append(c.files, path)
	c.mu.Unlock()
	return nil
}

func fileName(column, kind string) string {
	return strings.ToLower(column) + "_" + kind + ".png"
}
