package processor

import (
	"fmt"
	"math"
	"sort"

	"MovieInsight/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/floats"
)

// Edges 分箱边界: 最小值、25%、中位数、75%、最大值
type Edges [5]float64

// QuantileEdges 计算分位边界
// 百分位按 rank = p*(n-1) 在相邻两个值之间线性插值
func QuantileEdges(values []float64) (Edges, error) {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return Edges{}, fmt.Errorf("%w: no values to bin", ErrDegenerateDistribution)
	}

	min, max := floats.Min(clean), floats.Max(clean)
	if min == max {
		return Edges{}, fmt.Errorf("%w: all values equal %v", ErrDegenerateDistribution, min)
	}

	sort.Float64s(clean)
	return Edges{
		min,
		percentile(clean, 0.25),
		percentile(clean, 0.50),
		percentile(clean, 0.75),
		max,
	}, nil
}

// percentile sorted 必须已排序
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	rank := p * float64(n-1)
	lower := int(rank)
	upper := lower + 1
	if upper >= n {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Bin 返回 v 所在分箱的标签
// 第 k 个分箱为 (edges[k], edges[k+1]]，第一个有效分箱左侧闭合。
// 两端相同的分箱被合并掉，其标签不会被使用。
func Bin(v float64, edges Edges, labels []VoteCategory) VoteCategory {
	if math.IsNaN(v) {
		return VoteUnlabeled
	}
	closedLeft := true
	for k := 0; k < len(edges)-1; k++ {
		lo, hi := edges[k], edges[k+1]
		if lo == hi {
			continue
		}
		if v <= hi && (v > lo || (closedLeft && v == lo)) {
			return labels[k]
		}
		closedLeft = false
	}
	return VoteUnlabeled
}

// CategorizeColumn 按分位边界把数值列 col 替换为标签列
// 未落入任何分箱的行写入 NaN，调用方需随后调用 DropUnlabeled。
func CategorizeColumn(df dataframe.DataFrame, col string, labels []VoteCategory) (dataframe.DataFrame, Edges, error) {
	if len(labels) != len(Edges{})-1 {
		return dataframe.DataFrame{}, Edges{}, fmt.Errorf("%w: need %d labels, got %d", ErrLabelCount, len(Edges{})-1, len(labels))
	}
	for _, l := range labels {
		if !l.Valid() {
			return dataframe.DataFrame{}, Edges{}, fmt.Errorf("%w: invalid label %d", ErrLabelCount, int(l))
		}
	}
	if !utils.HasColumn(df, col) {
		return dataframe.DataFrame{}, Edges{}, fmt.Errorf("%w: %s", ErrMissingColumn, col)
	}

	values := df.Col(col).Float()
	edges, err := QuantileEdges(values)
	if err != nil {
		return dataframe.DataFrame{}, Edges{}, fmt.Errorf("%s: %w", col, err)
	}

	names := make([]string, len(values))
	for i, v := range values {
		names[i] = Bin(v, edges, labels).String()
	}

	out := df.Mutate(series.New(names, series.String, col))
	if out.Err != nil {
		return dataframe.DataFrame{}, Edges{}, fmt.Errorf("替换 %s 列失败: %w", col, out.Err)
	}
	return out, edges, nil
}

// DropUnlabeled 删除 col 列为 NaN 的行
func DropUnlabeled(df dataframe.DataFrame, col string) (dataframe.DataFrame, error) {
	if !utils.HasColumn(df, col) {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %s", ErrMissingColumn, col)
	}
	if df.Nrow() == 0 {
		return df, nil
	}
	out := df.Filter(dataframe.F{
		Colname:    col,
		Comparator: series.CompFunc,
		Comparando: func(el series.Element) bool {
			return !el.IsNA()
		},
	})
	if out.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("过滤 %s 列失败: %w", col, out.Err)
	}
	return out, nil
}

// VoteColumn 把标签列解析为 VoteCategory，出现集合外的值即报错
func VoteColumn(df dataframe.DataFrame, col string) ([]VoteCategory, error) {
	if !utils.HasColumn(df, col) {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
	}
	s := df.Col(col)
	out := make([]VoteCategory, s.Len())
	for i := 0; i < s.Len(); i++ {
		el := s.Elem(i)
		if el.IsNA() {
			continue
		}
		v, err := ParseVoteCategory(el.String())
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
