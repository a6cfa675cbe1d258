// Package report 统计清洗后的表并输出文字与图表，不修改输入的表。
package report

import (
	"errors"

	"github.com/go-gota/gota/dataframe"
)

// CategoryCount 某个分类的出现次数和占比
type CategoryCount struct {
	Label string
	Count int
	Share float64 // 0~1
}

// HistogramBin 直方图的一个区间 [Lower, Upper)，最后一个区间右侧闭合
type HistogramBin struct {
	Lower float64
	Upper float64
	Count int
}

// CategoricalSummary 分类列的描述统计
type CategoricalSummary struct {
	Column string
	Count  int
	Unique int
	Top    string
	Freq   int
}

// Reporter 报告输出接口
type Reporter interface {
	// RenderCategoryCounts 输出分类计数(柱状图或表格)
	RenderCategoryCounts(title, column string, counts []CategoryCount) error
	// RenderHistogram 输出数值列的分布
	RenderHistogram(title, column string, bins []HistogramBin) error
	// PrintExtrema 输出极值所在的行
	PrintExtrema(title string, rows dataframe.DataFrame) error
}

// SummaryPrinter 可选接口，能输出描述统计的 Reporter 实现它
type SummaryPrinter interface {
	PrintSummary(title string, summary CategoricalSummary) error
}

// MultiReporter 依次调用多个 Reporter，收集所有错误
type MultiReporter []Reporter

func (m MultiReporter) RenderCategoryCounts(title, column string, counts []CategoryCount) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RenderCategoryCounts(title, column, counts))
	}
	return errors.Join(errs...)
}

func (m MultiReporter) RenderHistogram(title, column string, bins []HistogramBin) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RenderHistogram(title, column, bins))
	}
	return errors.Join(errs...)
}

func (m MultiReporter) PrintExtrema(title string, rows dataframe.DataFrame) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.PrintExtrema(title, rows))
	}
	return errors.Join(errs...)
}

func (m MultiReporter) PrintSummary(title string, summary CategoricalSummary) error {
	var errs []error
	for _, r := range m {
		if sp, ok := r.(SummaryPrinter); ok {
			errs = append(errs, sp.PrintSummary(title, summary))
		}
	}
	return errors.Join(errs...)
}
