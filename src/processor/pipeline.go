package processor

import (
	"fmt"
	"time"

	"MovieInsight/src/storage"

	"github.com/go-gota/gota/dataframe"
	"go.uber.org/zap"
)

// GenreSeparator Genre 列的分隔符
const GenreSeparator = ","

// Stage 流水线中的一个步骤，输入完整的表并返回新的表
type Stage struct {
	Name  string
	Apply func(dataframe.DataFrame) (dataframe.DataFrame, error)
}

// Pipeline 按顺序执行的步骤序列
type Pipeline struct {
	stages []Stage
	logger *storage.Logger
}

func NewPipeline(logger *storage.Logger, stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, logger: logger}
}

// Stages 返回步骤名称，按执行顺序
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, st := range p.stages {
		names[i] = st.Name
	}
	return names
}

// Run 依次执行所有步骤，遇到第一个错误即停止
func (p *Pipeline) Run(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("输入数据无效: %w", df.Err)
	}

	for _, st := range p.stages {
		start := time.Now()
		next, err := st.Apply(df)
		if err == nil && next.Err != nil {
			err = next.Err
		}
		if err != nil {
			p.log(storage.ERROR, "步骤执行失败", zap.String("stage", st.Name), zap.Error(err))
			return dataframe.DataFrame{}, fmt.Errorf("%s: %w", st.Name, err)
		}

		p.log(storage.INFO, "步骤完成",
			zap.String("stage", st.Name),
			zap.Int("rows", next.Nrow()),
			zap.Int("cols", next.Ncol()),
			zap.Duration("elapsed", time.Since(start)),
		)
		df = next
	}
	return df, nil
}

func (p *Pipeline) log(level storage.LogLevel, msg string, fields ...zap.Field) {
	if p.logger != nil {
		p.logger.Log(level, msg, fields...)
	}
}

// NewMoviePipeline 电影数据的清洗流程：
// 日期转年份并删列 -> Vote_Average 分箱 -> 删除未分箱的行 -> 展开 Genre
func NewMoviePipeline(logger *storage.Logger) *Pipeline {
	p := NewPipeline(logger)
	p.stages = []Stage{
		{Name: "normalize", Apply: NormalizeColumns},
		{Name: "categorize", Apply: func(df dataframe.DataFrame) (dataframe.DataFrame, error) {
			out, edges, err := CategorizeColumn(df, ColVoteAverage, VoteLabels())
			if err != nil {
				return out, err
			}
			p.log(storage.DEBUG, "分位边界", zap.String("column", ColVoteAverage), zap.Float64s("edges", edges[:]))
			return out, nil
		}},
		{Name: "dropna", Apply: func(df dataframe.DataFrame) (dataframe.DataFrame, error) {
			return DropUnlabeled(df, ColVoteAverage)
		}},
		{Name: "explode", Apply: func(df dataframe.DataFrame) (dataframe.DataFrame, error) {
			return ExplodeColumn(df, ColGenre, GenreSeparator)
		}},
	}
	return p
}
