// reader.go
package file

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"MovieInsight/src/processor"
	"MovieInsight/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
)

// ErrMissingColumn 与 processor.ErrMissingColumn 相同
var ErrMissingColumn = processor.ErrMissingColumn

// ExpectedColumns 数据集固定的 9 列
var ExpectedColumns = []string{
	processor.ColReleaseDate,
	processor.ColTitle,
	processor.ColOverview,
	processor.ColPopularity,
	processor.ColVoteCount,
	processor.ColVoteAverage,
	processor.ColOriginalLanguage,
	processor.ColGenre,
	processor.ColPosterURL,
}

// ColumnTypes 加载时各列的类型，日期列先按字符串读入
var ColumnTypes = map[string]series.Type{
	processor.ColReleaseDate:      series.String,
	processor.ColTitle:            series.String,
	processor.ColOverview:         series.String,
	processor.ColPopularity:       series.Float,
	processor.ColVoteCount:        series.Int,
	processor.ColVoteAverage:      series.Float,
	processor.ColOriginalLanguage: series.String,
	processor.ColGenre:            series.String,
	processor.ColPosterURL:        series.String,
}

// LoadTable 根据扩展名读取 csv 或 xlsx 数据集
func LoadTable(path, sheetName string) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return ReadCSVToDataFrame(path)
	case ".xlsx":
		return ReadXLSXToDataFrame(path, sheetName)
	default:
		return dataframe.DataFrame{}, fmt.Errorf("不支持的数据文件类型: %s", path)
	}
}

// ReadCSVToDataFrame 读取 csv 文件
func ReadCSVToDataFrame(path string) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer f.Close()

	df, err := ReadCSV(f)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%s: %w", path, err)
	}
	return df, nil
}

// ReadCSV 从 reader 读取 csv，首行为表头
// 行尾的 \r\n 与 \n 等价；引号内的 \r 按原样保留为字段内容。
func ReadCSV(r io.Reader) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.WithLazyQuotes(true),
		dataframe.WithTypes(ColumnTypes),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("解析csv失败: %w", df.Err)
	}
	if err := ValidateColumns(df); err != nil {
		return dataframe.DataFrame{}, err
	}
	return df, nil
}

// ReadCSVBytes 从内存中的 csv 数据读取
func ReadCSVBytes(data []byte) (dataframe.DataFrame, error) {
	return ReadCSV(bytes.NewReader(data))
}

// ValidateColumns 检查固定列是否齐全
func ValidateColumns(df dataframe.DataFrame) error {
	if missing := utils.MissingColumns(df, ExpectedColumns...); len(missing) > 0 {
		return fmt.Errorf("%w: %v", processor.ErrMissingColumn, missing)
	}
	return nil
}

// ReadXLSXToDataFrame 读取 xlsx 文件，sheetName 为空时取第一个工作表
func ReadXLSXToDataFrame(filePath, sheetName string) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to open xlsx file: %w", err)
	}
	return sheetToDataFrame(xlFile, sheetName)
}

// ReadXLSXBytes 从内存中的 xlsx 数据读取(例如邮件附件)
func ReadXLSXBytes(data []byte, sheetName string) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to open xlsx data: %w", err)
	}
	return sheetToDataFrame(xlFile, sheetName)
}

func sheetToDataFrame(xlFile *xlsx.File, sheetName string) (dataframe.DataFrame, error) {
	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("excel文件中没有工作表")
	}

	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		s, ok := xlFile.Sheet[sheetName]
		if !ok {
			return dataframe.DataFrame{}, fmt.Errorf("工作表 %q 不存在", sheetName)
		}
		sheet = s
	}

	df := convertSheetToDataFrame(sheet)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("转换为dataframe失败: %w", df.Err)
	}
	if err := ValidateColumns(df); err != nil {
		return dataframe.DataFrame{}, err
	}
	return df, nil
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame
// 第一行是标题行，之后每行一条记录，缺失的单元格补空字符串
func convertSheetToDataFrame(sheet *xlsx.Sheet) dataframe.DataFrame {
	if len(sheet.Rows) == 0 {
		return dataframe.DataFrame{Err: fmt.Errorf("工作表 %s 为空", sheet.Name)}
	}

	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, strings.TrimSpace(cell.String()))
	}

	records := make([][]string, 0, len(sheet.Rows))
	records = append(records, headers)
	for _, row := range sheet.Rows[1:] {
		if row == nil {
			continue
		}
		record := make([]string, len(headers))
		empty := true
		for i, cell := range row.Cells {
			if i >= len(headers) { // 确保不超出列数范围
				break
			}
			record[i] = cell.String()
			if record[i] != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		records = append(records, record)
	}

	return dataframe.LoadRecords(records, dataframe.WithTypes(ColumnTypes))
}
