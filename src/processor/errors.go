package processor

import "errors"

var (
	// ErrMissingColumn 缺少预期的列
	ErrMissingColumn = errors.New("missing column")
	// ErrInvalidDate 日期无法解析
	ErrInvalidDate = errors.New("invalid date")
	// ErrDegenerateDistribution 分位边界全部重合，无法分箱
	ErrDegenerateDistribution = errors.New("degenerate distribution")
	// ErrLabelCount 标签数量与分箱数量不一致
	ErrLabelCount = errors.New("label count mismatch")
)
