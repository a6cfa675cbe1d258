package processor

import (
	"fmt"

	"MovieInsight/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// 数据集中的列名
const (
	ColReleaseDate      = "Release_Date"
	ColTitle            = "Title"
	ColOverview         = "Overview"
	ColPopularity       = "Popularity"
	ColVoteCount        = "Vote_Count"
	ColVoteAverage      = "Vote_Average"
	ColOriginalLanguage = "Original_Language"
	ColGenre            = "Genre"
	ColPosterURL        = "Poster_Url"
)

// DroppedColumns 不参与分析的文本列
var DroppedColumns = []string{ColOverview, ColOriginalLanguage, ColPosterURL}

// NormalizeColumns 日期列转为年份，并删除不参与分析的列
func NormalizeColumns(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	df, err := ToYear(df, ColReleaseDate)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	return DropColumns(df, DroppedColumns...)
}

// ToYear 将 col 列的日期字符串替换为整数年份
func ToYear(df dataframe.DataFrame, col string) (dataframe.DataFrame, error) {
	if !utils.HasColumn(df, col) {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %s", ErrMissingColumn, col)
	}

	s := df.Col(col)
	years := make([]int, s.Len())
	for i := 0; i < s.Len(); i++ {
		el := s.Elem(i)
		if el.IsNA() {
			return dataframe.DataFrame{}, fmt.Errorf("%w: row %d of %s is empty", ErrInvalidDate, i, col)
		}
		t, err := utils.ParseDate(el.String())
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("%w: row %d of %s: %v", ErrInvalidDate, i, col, err)
		}
		years[i] = t.Year()
	}

	out := df.Mutate(series.New(years, series.Int, col))
	if out.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("替换 %s 列失败: %w", col, out.Err)
	}
	return out, nil
}

// DropColumns 按列名删除，任何一列不存在都视为输入错误
func DropColumns(df dataframe.DataFrame, cols ...string) (dataframe.DataFrame, error) {
	if missing := utils.MissingColumns(df, cols...); len(missing) > 0 {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %v", ErrMissingColumn, missing)
	}
	out := df.Drop(cols)
	if out.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("删除列失败: %w", out.Err)
	}
	return out, nil
}
