package processor

import (
	"fmt"

	"github.com/go-gota/gota/series"
)

// VoteCategory Vote_Average 分箱后的有序标签
type VoteCategory int

const (
	VoteUnlabeled VoteCategory = iota // 未落入任何分箱
	NotPopular
	BelowAverage
	Average
	Popular
)

var voteCategoryNames = map[VoteCategory]string{
	NotPopular:   "not_popular",
	BelowAverage: "below_average",
	Average:      "average",
	Popular:      "popular",
}

// VoteLabels 返回固定的四个标签，顺序即分箱顺序
func VoteLabels() []VoteCategory {
	return []VoteCategory{NotPopular, BelowAverage, Average, Popular}
}

func (v VoteCategory) String() string {
	if name, ok := voteCategoryNames[v]; ok {
		return name
	}
	return "NaN"
}

// Valid 是否属于固定标签集合
func (v VoteCategory) Valid() bool {
	_, ok := voteCategoryNames[v]
	return ok
}

// ParseVoteCategory 将标签名解析为 VoteCategory
func ParseVoteCategory(s string) (VoteCategory, error) {
	for v, name := range voteCategoryNames {
		if name == s {
			return v, nil
		}
	}
	return VoteUnlabeled, fmt.Errorf("未知的投票分类 %q", s)
}

// Categorical 分类列：去重后的取值(按首次出现顺序)加上每行的编码
type Categorical struct {
	name   string
	levels []string
	index  map[string]int
	codes  []int
}

// NewCategorical 从 series 构建分类列，NaN 行编码为 -1
func NewCategorical(s series.Series) Categorical {
	c := Categorical{
		name:  s.Name,
		index: make(map[string]int),
		codes: make([]int, s.Len()),
	}
	for i := 0; i < s.Len(); i++ {
		el := s.Elem(i)
		if el.IsNA() {
			c.codes[i] = -1
			continue
		}
		v := el.String()
		code, ok := c.index[v]
		if !ok {
			code = len(c.levels)
			c.index[v] = code
			c.levels = append(c.levels, v)
		}
		c.codes[i] = code
	}
	return c
}

func (c Categorical) Name() string { return c.name }
func (c Categorical) Len() int     { return len(c.codes) }

// Levels 所有不同的分类值
func (c Categorical) Levels() []string {
	out := make([]string, len(c.levels))
	copy(out, c.levels)
	return out
}

// Code 第 i 行的编码
func (c Categorical) Code(i int) int { return c.codes[i] }

// Value 第 i 行的分类值，NaN 行返回空字符串
func (c Categorical) Value(i int) string {
	if c.codes[i] < 0 {
		return ""
	}
	return c.levels[c.codes[i]]
}

// Has 是否包含某个分类
func (c Categorical) Has(level string) bool {
	_, ok := c.index[level]
	return ok
}

// Counts 每个分类出现的次数，下标与 Levels 对应
func (c Categorical) Counts() []int {
	counts := make([]int, len(c.levels))
	for _, code := range c.codes {
		if code >= 0 {
			counts[code]++
		}
	}
	return counts
}
