package report

import (
	"bytes"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"MovieInsight/src/processor"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

// recorder 记录每次调用，不产生任何输出
type recorder struct {
	calls     []string
	counts    map[string][]CategoryCount
	histogram map[string][]HistogramBin
	extrema   map[string]dataframe.DataFrame
	summaries []CategoricalSummary
}

func newRecorder() *recorder {
	return &recorder{
		counts:    map[string][]CategoryCount{},
		histogram: map[string][]HistogramBin{},
		extrema:   map[string]dataframe.DataFrame{},
	}
}

func (r *recorder) RenderCategoryCounts(title, column string, counts []CategoryCount) error {
	r.calls = append(r.calls, "counts:"+column)
	r.counts[column] = counts
	return nil
}

func (r *recorder) RenderHistogram(title, column string, bins []HistogramBin) error {
	r.calls = append(r.calls, "hist:"+column)
	r.histogram[column] = bins
	return nil
}

func (r *recorder) PrintExtrema(title string, rows dataframe.DataFrame) error {
	r.calls = append(r.calls, "extrema:"+title)
	r.extrema[title] = rows
	return nil
}

func (r *recorder) PrintSummary(title string, s CategoricalSummary) error {
	r.calls = append(r.calls, "summary:"+title)
	r.summaries = append(r.summaries, s)
	return nil
}

// cleaned 清洗后的表：年份为整数，投票为分类标签，类型已展开
func cleaned() dataframe.DataFrame {
	return dataframe.New(
		series.New([]int{2021, 2021, 2021, 2022, 2022, 2022, 2019}, series.Int, processor.ColReleaseDate),
		series.New([]string{"Spider-Man", "Spider-Man", "Spider-Man", "The Batman", "The Batman", "No Exit", "Quiet"},
			series.String, processor.ColTitle),
		series.New([]float64{5083.9, 5083.9, 5083.9, 3827.6, 3827.6, 2618.1, 13.3}, series.Float, processor.ColPopularity),
		series.New([]int{8940, 8940, 8940, 1151, 1151, 122, 5}, series.Int, processor.ColVoteCount),
		series.New([]string{"popular", "popular", "popular", "average", "average", "below_average", "not_popular"},
			series.String, processor.ColVoteAverage),
		series.New([]string{"Action", "Adventure", "Science Fiction", "Crime", "Thriller", "Thriller", "Drama"},
			series.String, processor.ColGenre),
	)
}

func TestValueCounts(t *testing.T) {
	counts, err := ValueCounts(cleaned(), processor.ColGenre)
	require.NoError(t, err)

	require.Len(t, counts, 6)
	assert.Equal(t, CategoryCount{Label: "Thriller", Count: 2, Share: 2.0 / 7}, counts[0])
	// 次数相同按标签排序
	labels := make([]string, 0, len(counts))
	for _, c := range counts[1:] {
		labels = append(labels, c.Label)
	}
	assert.Equal(t, []string{"Action", "Adventure", "Crime", "Drama", "Science Fiction"}, labels)

	_, err = ValueCounts(cleaned(), "Tags")
	assert.True(t, errors.Is(err, processor.ErrMissingColumn))
}

func TestDescribeCategorical(t *testing.T) {
	s, err := DescribeCategorical(cleaned(), processor.ColVoteAverage)
	require.NoError(t, err)
	assert.Equal(t, CategoricalSummary{
		Column: processor.ColVoteAverage,
		Count:  7,
		Unique: 4,
		Top:    "popular",
		Freq:   3,
	}, s)
}

func TestExtremaReturnsAllTies(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"a", "b", "c", "d"}, series.String, processor.ColTitle),
		series.New([]float64{5, 9, 9, 1}, series.Float, processor.ColPopularity),
	)

	top, err := Extrema(df, processor.ColPopularity, Max)
	require.NoError(t, err)
	assert.Equal(t, 2, top.Nrow())
	assert.Equal(t, []string{"b", "c"}, top.Col(processor.ColTitle).Records())
	assert.Equal(t, []float64{9, 9}, top.Col(processor.ColPopularity).Float())

	bottom, err := Extrema(df, processor.ColPopularity, Min)
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, bottom.Col(processor.ColTitle).Records())

	assert.Equal(t, 4, df.Nrow())

	_, err = Extrema(df, "Budget", Max)
	assert.True(t, errors.Is(err, processor.ErrMissingColumn))
}

func TestHistogram(t *testing.T) {
	bins, err := Histogram([]float64{1, 2, 2, 3, 4, 5}, 4)
	require.NoError(t, err)
	require.Len(t, bins, 4)

	assert.Equal(t, 1.0, bins[0].Lower)
	assert.Equal(t, 5.0, bins[3].Upper)
	assert.Equal(t, []int{1, 2, 1, 2}, []int{bins[0].Count, bins[1].Count, bins[2].Count, bins[3].Count})

	same, err := Histogram([]float64{2021, 2021}, 2)
	require.NoError(t, err)
	assert.Equal(t, 2020.5, same[0].Lower)
	assert.Equal(t, 2, same[0].Count+same[1].Count)

	_, err = Histogram(nil, 10)
	assert.Error(t, err)
	_, err = Histogram([]float64{1}, 0)
	assert.Error(t, err)
}

func TestTopValue(t *testing.T) {
	year, count, err := TopValue(cleaned(), processor.ColReleaseDate)
	require.NoError(t, err)
	assert.Equal(t, 2021, year)
	assert.Equal(t, 3, count)
}

func TestDescribeNumeric(t *testing.T) {
	desc, err := DescribeNumeric(cleaned(), processor.ColPopularity, processor.ColVoteCount)
	require.NoError(t, err)
	assert.Equal(t, []string{"column", processor.ColPopularity, processor.ColVoteCount}, desc.Names())

	_, err = DescribeNumeric(cleaned(), "Budget")
	assert.Error(t, err)
}

func TestAnalyze(t *testing.T) {
	rec := newRecorder()
	df := cleaned()

	res, err := Analyze(df, rec, Options{
		Titles:        map[string]string{TitleMax: "Most popular"},
		HistogramBins: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"summary:" + processor.ColGenre,
		"counts:" + processor.ColGenre,
		"counts:" + processor.ColVoteAverage,
		"extrema:Most popular",
		"extrema:Min Popularity",
		"hist:" + processor.ColReleaseDate,
	}, rec.calls)

	assert.Equal(t, 3, rec.extrema["Most popular"].Nrow())
	assert.Equal(t, []string{"Spider-Man"}, Titles(res.MostPopular))
	assert.Equal(t, []string{"Quiet"}, Titles(res.LeastPopular))
	assert.Equal(t, "popular", res.VoteCounts[0].Label)
	assert.Len(t, rec.histogram[processor.ColReleaseDate], 3)
	assert.Equal(t, 2021, res.PeakYear)
	assert.Equal(t, 7, df.Nrow())

	md := res.Markdown("电影数据分析报告")
	assert.Contains(t, md, "### 电影数据分析报告")
	assert.Contains(t, md, "**Thriller**")
	assert.Contains(t, md, "最热门: Spider-Man")
}

func TestAnalyzeGenreCategories(t *testing.T) {
	df := cleaned()
	genres, err := processor.GenreCategories(df)
	require.NoError(t, err)

	res, err := Analyze(df, newRecorder(), Options{})
	require.NoError(t, err)

	assert.Equal(t, CategoryCounts(genres), res.GenreCounts)
	assert.Equal(t, len(genres.Levels()), res.GenreSummary.Unique)
	assert.Equal(t, 7, res.GenreSummary.Count)
	assert.Equal(t, "Thriller", res.GenreSummary.Top)
	assert.Equal(t, 2, res.GenreSummary.Freq)

	counts, err := ValueCounts(df, processor.ColGenre)
	require.NoError(t, err)
	assert.Equal(t, counts, res.GenreCounts)
}

func TestAnalyzeMissingColumn(t *testing.T) {
	df := cleaned().Drop(processor.ColGenre)
	_, err := Analyze(df, newRecorder(), Options{})
	assert.True(t, errors.Is(err, processor.ErrMissingColumn))
}

func TestConsoleReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf, language.English)

	require.NoError(t, r.RenderCategoryCounts("Votes", processor.ColVoteAverage, []CategoryCount{
		{Label: "popular", Count: 12345, Share: 0.5},
	}))
	require.NoError(t, r.RenderHistogram("Years", processor.ColReleaseDate, []HistogramBin{
		{Lower: 2000, Upper: 2010, Count: 4},
		{Lower: 2010, Upper: 2020, Count: 2},
	}))
	top, err := Extrema(cleaned(), processor.ColPopularity, Max)
	require.NoError(t, err)
	require.NoError(t, r.PrintExtrema("Most popular", top))

	out := buf.String()
	assert.Contains(t, out, "== Votes ==")
	assert.Contains(t, out, "12,345")
	assert.Contains(t, out, "50.00%")
	assert.Contains(t, out, "[2010.0, 2020.0]")
	assert.Contains(t, out, "(3 rows)")
	assert.Contains(t, out, "Science Fiction")
}

func TestMultiReporter(t *testing.T) {
	a, b := newRecorder(), newRecorder()
	m := MultiReporter{a, b}

	require.NoError(t, m.RenderCategoryCounts("t", processor.ColGenre, nil))
	require.NoError(t, m.PrintSummary("t", CategoricalSummary{}))
	assert.Equal(t, a.calls, b.calls)
	assert.Len(t, a.calls, 2)
}

func TestChartReporter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	r, err := NewChartReporter(dir, "#4287f5")
	require.NoError(t, err)

	require.NoError(t, r.RenderCategoryCounts("Genre", processor.ColGenre, []CategoryCount{
		{Label: "Drama", Count: 3},
		{Label: "Action", Count: 2},
	}))
	require.NoError(t, r.RenderHistogram("Years", processor.ColReleaseDate, []HistogramBin{
		{Lower: 2000, Upper: 2010, Count: 5},
		{Lower: 2010, Upper: 2020, Count: 7},
	}))
	require.NoError(t, r.PrintExtrema("ignored", cleaned()))

	files := r.Files()
	require.Equal(t, []string{
		filepath.Join(dir, "genre_counts.png"),
		filepath.Join(dir, "release_date_hist.png"),
	}, files)
	for _, f := range files {
		fh, err := os.Open(f)
		require.NoError(t, err)
		_, err = png.Decode(fh)
		fh.Close()
		assert.NoError(t, err)
	}

	assert.Error(t, r.RenderCategoryCounts("empty", processor.ColGenre, nil))
}
