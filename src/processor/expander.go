package processor

import (
	"fmt"
	"strings"

	"MovieInsight/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// ExplodeColumn 按 sep 拆分 col 列，每个值单独成行，其余列原样复制
// 每个拆分结果去掉首尾空白；空值和纯空白值保留为空字符串行。
// 第 i 行展开的所有行都排在第 i+1 行之前。
func ExplodeColumn(df dataframe.DataFrame, col, sep string) (dataframe.DataFrame, error) {
	if sep == "" {
		return dataframe.DataFrame{}, fmt.Errorf("explode %s: empty separator", col)
	}
	if !utils.HasColumn(df, col) {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %s", ErrMissingColumn, col)
	}
	if df.Nrow() == 0 {
		return df, nil
	}

	s := df.Col(col)
	indices := make([]int, 0, s.Len())
	tokens := make([]string, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		el := s.Elem(i)
		if el.IsNA() {
			indices = append(indices, i)
			tokens = append(tokens, "NaN")
			continue
		}
		for _, tok := range strings.Split(el.String(), sep) {
			indices = append(indices, i)
			tokens = append(tokens, strings.TrimSpace(tok))
		}
	}

	out := df.Subset(indices)
	if out.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("复制行失败: %w", out.Err)
	}
	out = out.Mutate(series.New(tokens, series.String, col))
	if out.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("替换 %s 列失败: %w", col, out.Err)
	}
	return out, nil
}

// GenreCategories 展开后的 Genre 列作为分类列
func GenreCategories(df dataframe.DataFrame) (Categorical, error) {
	if !utils.HasColumn(df, ColGenre) {
		return Categorical{}, fmt.Errorf("%w: %s", ErrMissingColumn, ColGenre)
	}
	return NewCategorical(df.Col(ColGenre)), nil
}
