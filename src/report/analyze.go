package report

import (
	"fmt"
	"strings"

	"MovieInsight/src/processor"
	"MovieInsight/src/utils"

	"github.com/go-gota/gota/dataframe"
)

// 图表标题的键，与 dataconfig.json 的 chart_titles 对应
const (
	TitleGenre   = "genre"
	TitleVote    = "vote"
	TitleRelease = "release"
	TitleMax     = "max"
	TitleMin     = "min"
)

// Options 报告选项
type Options struct {
	Titles        map[string]string
	HistogramBins int
}

func (o Options) title(key, fallback string) string {
	if t, ok := o.Titles[key]; ok && t != "" {
		return t
	}
	return fallback
}

// Result 一次分析的全部结论
type Result struct {
	Rows          int
	GenreSummary  CategoricalSummary
	GenreCounts   []CategoryCount
	VoteCounts    []CategoryCount
	MostPopular   dataframe.DataFrame
	LeastPopular  dataframe.DataFrame
	YearHistogram []HistogramBin
	PeakYear      int
	PeakYearCount int
}

// Analyze 对清洗后的表依次回答：
// 最常见的类型、投票分类分布、最热门与最冷门的电影、上映年份分布
func Analyze(df dataframe.DataFrame, r Reporter, opts Options) (*Result, error) {
	if opts.HistogramBins <= 0 {
		opts.HistogramBins = 10
	}
	res := &Result{Rows: df.Nrow()}

	genres, err := processor.GenreCategories(df)
	if err != nil {
		return nil, err
	}
	res.GenreCounts = CategoryCounts(genres)
	res.GenreSummary = summarize(processor.ColGenre, res.GenreCounts)
	if sp, ok := r.(SummaryPrinter); ok {
		if err := sp.PrintSummary(processor.ColGenre, res.GenreSummary); err != nil {
			return nil, err
		}
	}

	if err := r.RenderCategoryCounts(opts.title(TitleGenre, "Genre"), processor.ColGenre, res.GenreCounts); err != nil {
		return nil, err
	}

	if res.VoteCounts, err = ValueCounts(df, processor.ColVoteAverage); err != nil {
		return nil, err
	}
	if err := r.RenderCategoryCounts(opts.title(TitleVote, "Vote_Average"), processor.ColVoteAverage, res.VoteCounts); err != nil {
		return nil, err
	}

	if res.MostPopular, err = Extrema(df, processor.ColPopularity, Max); err != nil {
		return nil, err
	}
	if err := r.PrintExtrema(opts.title(TitleMax, "Max Popularity"), res.MostPopular); err != nil {
		return nil, err
	}

	if res.LeastPopular, err = Extrema(df, processor.ColPopularity, Min); err != nil {
		return nil, err
	}
	if err := r.PrintExtrema(opts.title(TitleMin, "Min Popularity"), res.LeastPopular); err != nil {
		return nil, err
	}

	if res.YearHistogram, err = Histogram(df.Col(processor.ColReleaseDate).Float(), opts.HistogramBins); err != nil {
		return nil, fmt.Errorf("%s: %w", processor.ColReleaseDate, err)
	}
	if err := r.RenderHistogram(opts.title(TitleRelease, "Release_Date"), processor.ColReleaseDate, res.YearHistogram); err != nil {
		return nil, err
	}
	if res.PeakYear, res.PeakYearCount, err = TopValue(df, processor.ColReleaseDate); err != nil {
		return nil, err
	}

	return res, nil
}

// Titles 极值行中去重后的电影名
func Titles(rows dataframe.DataFrame) []string {
	if rows.Err != nil || !utils.HasColumn(rows, processor.ColTitle) {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, t := range rows.Col(processor.ColTitle).Records() {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Markdown 用于钉钉和邮件的结论摘要
func (r *Result) Markdown(title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n\n", title)
	fmt.Fprintf(&b, "- 展开后共 %d 行\n", r.Rows)
	if r.GenreSummary.Top != "" {
		fmt.Fprintf(&b, "- 最常见的类型: **%s** (%d 行, 共 %d 种类型)\n",
			r.GenreSummary.Top, r.GenreSummary.Freq, r.GenreSummary.Unique)
	}
	for _, vc := range r.VoteCounts {
		fmt.Fprintf(&b, "- %s: %d (%.1f%%)\n", vc.Label, vc.Count, vc.Share*100)
	}
	if titles := Titles(r.MostPopular); len(titles) > 0 {
		fmt.Fprintf(&b, "- 最热门: %s\n", strings.Join(titles, ", "))
	}
	if titles := Titles(r.LeastPopular); len(titles) > 0 {
		fmt.Fprintf(&b, "- 最冷门: %s\n", strings.Join(titles, ", "))
	}
	if r.PeakYearCount > 0 {
		fmt.Fprintf(&b, "- 上映最多的年份: %d (%d 行)\n", r.PeakYear, r.PeakYearCount)
	}
	return b.String()
}
