package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/go-gota/gota/dataframe"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ConsoleReporter 把统计结果以文字表格写到 w
type ConsoleReporter struct {
	w io.Writer
	p *message.Printer
}

// NewConsoleReporter 数字按 lang 的千分位格式输出
func NewConsoleReporter(w io.Writer, lang language.Tag) *ConsoleReporter {
	return &ConsoleReporter{w: w, p: message.NewPrinter(lang)}
}

func (c *ConsoleReporter) heading(title string) {
	c.p.Fprintf(c.w, "\n== %s ==\n", title)
}

func (c *ConsoleReporter) RenderCategoryCounts(title, column string, counts []CategoryCount) error {
	c.heading(title)
	tw := tabwriter.NewWriter(c.w, 0, 4, 2, ' ', 0)
	c.p.Fprintf(tw, "%s\tcount\tshare\n", column)
	for _, cc := range counts {
		c.p.Fprintf(tw, "%s\t%d\t%.2f%%\n", cc.Label, cc.Count, cc.Share*100)
	}
	return tw.Flush()
}

func (c *ConsoleReporter) RenderHistogram(title, column string, bins []HistogramBin) error {
	c.heading(title)
	tw := tabwriter.NewWriter(c.w, 0, 4, 2, ' ', 0)
	c.p.Fprintf(tw, "%s\tcount\t\n", column)
	peak := 0
	for _, b := range bins {
		if b.Count > peak {
			peak = b.Count
		}
	}
	for i, b := range bins {
		closing := ")"
		if i == len(bins)-1 {
			closing = "]"
		}
		span := fmt.Sprintf("[%.1f, %.1f%s", b.Lower, b.Upper, closing)
		c.p.Fprintf(tw, "%s\t%d\t%s\n", span, b.Count, bar(b.Count, peak, 40))
	}
	return tw.Flush()
}

func (c *ConsoleReporter) PrintExtrema(title string, rows dataframe.DataFrame) error {
	c.heading(title)
	if err := c.table(rows); err != nil {
		return err
	}
	c.p.Fprintf(c.w, "(%d rows)\n", rows.Nrow())
	return nil
}

// table 第一行是列名
func (c *ConsoleReporter) table(df dataframe.DataFrame) error {
	if df.Err != nil {
		return df.Err
	}
	tw := tabwriter.NewWriter(c.w, 0, 4, 2, ' ', 0)
	for _, record := range df.Records() {
		fmt.Fprintln(tw, strings.Join(record, "\t"))
	}
	return tw.Flush()
}

func (c *ConsoleReporter) PrintSummary(title string, s CategoricalSummary) error {
	c.heading(title)
	tw := tabwriter.NewWriter(c.w, 0, 4, 2, ' ', 0)
	c.p.Fprintf(tw, "count\t%d\n", s.Count)
	c.p.Fprintf(tw, "unique\t%d\n", s.Unique)
	c.p.Fprintf(tw, "top\t%s\n", s.Top)
	c.p.Fprintf(tw, "freq\t%d\n", s.Freq)
	return tw.Flush()
}

// PrintNumeric 输出 DescribeNumeric 的结果
func (c *ConsoleReporter) PrintNumeric(title string, desc dataframe.DataFrame) error {
	c.heading(title)
	return c.table(desc)
}

func bar(n, peak, width int) string {
	if peak == 0 {
		return ""
	}
	return strings.Repeat("#", n*width/peak)
}
