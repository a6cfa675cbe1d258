package report

import (
	"fmt"
	"math"
	"sort"

	"MovieInsight/src/processor"
	"MovieInsight/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/floats"
)

// ExtremumKind 取最大值还是最小值
type ExtremumKind int

const (
	Max ExtremumKind = iota
	Min
)

func (k ExtremumKind) String() string {
	if k == Min {
		return "min"
	}
	return "max"
}

// ValueCounts 分类列每个值的出现次数，按次数降序，次数相同按标签升序
func ValueCounts(df dataframe.DataFrame, col string) ([]CategoryCount, error) {
	if !utils.HasColumn(df, col) {
		return nil, fmt.Errorf("%w: %s", processor.ErrMissingColumn, col)
	}
	return CategoryCounts(processor.NewCategorical(df.Col(col))), nil
}

// CategoryCounts 与 ValueCounts 相同，输入为已构造好的分类列
func CategoryCounts(cat processor.Categorical) []CategoryCount {
	levels, counts := cat.Levels(), cat.Counts()

	total := 0
	for _, c := range counts {
		total += c
	}

	out := make([]CategoryCount, len(levels))
	for i, level := range levels {
		out[i] = CategoryCount{Label: level, Count: counts[i]}
		if total > 0 {
			out[i].Share = float64(counts[i]) / float64(total)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// DescribeCategorical 分类列的 count / unique / top / freq
func DescribeCategorical(df dataframe.DataFrame, col string) (CategoricalSummary, error) {
	counts, err := ValueCounts(df, col)
	if err != nil {
		return CategoricalSummary{}, err
	}
	return summarize(col, counts), nil
}

func summarize(col string, counts []CategoryCount) CategoricalSummary {
	summary := CategoricalSummary{Column: col, Unique: len(counts)}
	for _, c := range counts {
		summary.Count += c.Count
	}
	if len(counts) > 0 {
		summary.Top = counts[0].Label
		summary.Freq = counts[0].Count
	}
	return summary
}

// DescribeNumeric 数值列的描述统计(gota Describe)
func DescribeNumeric(df dataframe.DataFrame, cols ...string) (dataframe.DataFrame, error) {
	if missing := utils.MissingColumns(df, cols...); len(missing) > 0 {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %v", processor.ErrMissingColumn, missing)
	}
	sub := df
	if len(cols) > 0 {
		sub = df.Select(cols)
	}
	out := sub.Describe()
	if out.Err != nil {
		return dataframe.DataFrame{}, out.Err
	}
	return out, nil
}

// Extrema 返回 col 列等于全局最大(或最小)值的所有行
func Extrema(df dataframe.DataFrame, col string, kind ExtremumKind) (dataframe.DataFrame, error) {
	if !utils.HasColumn(df, col) {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %s", processor.ErrMissingColumn, col)
	}

	values := nonNaN(df.Col(col).Float())
	if len(values) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("%s 列没有可比较的值", col)
	}

	target := floats.Max(values)
	if kind == Min {
		target = floats.Min(values)
	}

	out := df.Filter(dataframe.F{
		Colname:    col,
		Comparator: series.CompFunc,
		Comparando: func(el series.Element) bool {
			return !el.IsNA() && el.Float() == target
		},
	})
	if out.Err != nil {
		return dataframe.DataFrame{}, out.Err
	}
	return out, nil
}

// Histogram 等宽分箱计数，区间为 [min, max]，最后一个区间包含 max
// 所有值相同时区间取 [v-0.5, v+0.5]
func Histogram(values []float64, bins int) ([]HistogramBin, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("bins must be positive, got %d", bins)
	}
	values = nonNaN(values)
	if len(values) == 0 {
		return nil, fmt.Errorf("no values for histogram")
	}

	lo, hi := floats.Min(values), floats.Max(values)
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	width := (hi - lo) / float64(bins)

	out := make([]HistogramBin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[bins-1].Upper = hi

	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		out[idx].Count++
	}
	return out, nil
}

// TopValue 整数列中出现次数最多的值，次数相同取较小的值
func TopValue(df dataframe.DataFrame, col string) (value, count int, err error) {
	if !utils.HasColumn(df, col) {
		return 0, 0, fmt.Errorf("%w: %s", processor.ErrMissingColumn, col)
	}
	ints, err := df.Col(col).Int()
	if err != nil {
		return 0, 0, fmt.Errorf("%s 列不是整数: %w", col, err)
	}
	freq := make(map[int]int)
	for _, v := range ints {
		freq[v]++
	}
	for v, c := range freq {
		if c > count || (c == count && v < value) {
			value, count = v, c
		}
	}
	return value, count, nil
}

func nonNaN(values []float64) []float64 {
	out := values[:0:0]
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
