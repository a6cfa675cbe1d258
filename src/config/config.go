package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// 数据来源
const (
	SourceFile  = "file"
	SourceEmail = "email"
)

// Config 结构体定义了应用程序的配置结构
type Config struct {
	Source     string   `json:"source"`      // 数据来源: file / email
	DataPath   string   `json:"data_path"`   // 数据集路径(csv 或 xlsx)
	SheetName  string   `json:"sheet_name"`  // xlsx 工作表名，为空取第一个
	DataDir    string   `json:"data_dir"`    // 邮件附件保存目录
	ChartDir   string   `json:"chart_dir"`   // 图表输出目录
	ExportPath string   `json:"export_path"` // 清洗结果导出路径，为空不导出
	LogName    string   `json:"log_name"`
	LogMaxSize string   `json:"log_max_size"`
	Schedule   Duration `json:"schedule"` // 定时重跑间隔，0 只运行一次
	Watch      bool     `json:"watch"`    // 数据集变化时重跑
	LogAddr    string   `json:"log_addr"` // 实时日志 HTTP 地址(如":8080")，为空不启动

	Email struct {
		Server        string   `json:"server"`         // 邮件服务器地址
		Username      string   `json:"username"`       // 邮箱用户名
		Password      string   `json:"password"`       // 邮箱密码
		TargetSubject string   `json:"target_subject"` // 需要匹配的邮件主题
		CheckInterval Duration `json:"check_interval"` // 检查新邮件的间隔时间
	} `json:"email"`

	SendEmail struct {
		Server   string   `json:"server"`   // SMTP服务器地址
		Username string   `json:"username"` // 发件人
		Password string   `json:"password"` // 密码/授权码
		To       []string `json:"to"`       // 收件人
		Subject  string   `json:"subject"`  // 报告邮件主题
	} `json:"send_email"`

	DingTalk struct {
		Webhook string `json:"webhook"` // 机器人 webhook，为空不推送
		Secret  string `json:"secret"`  // 加签密钥
	} `json:"dingtalk"`
}

// DataConfig 图表与报告相关的配置
type DataConfig struct {
	ChartTitles   map[string]string `json:"chart_titles"`
	BarColor      string            `json:"bar_color"`
	HistogramBins int               `json:"histogram_bins"`
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	mu                 sync.RWMutex
)

func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	var err error
	once.Do(func() {
		instance, dataConfigInstance, err = loadConfigs(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, err
}

func loadConfigs(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	dataConfigData, err := readFile(dataConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	cfg.applyDefaults()
	dcfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, dcfg, nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	var dcfg DataConfig
	if err := json.Unmarshal(data, &dcfg); err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	resultChan <- &dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg    *Config
		dcfg   *DataConfig
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

// applyDefaults 为空字段填充默认值
func (c *Config) applyDefaults() {
	if c.Source == "" {
		c.Source = SourceFile
	}
	if c.DataPath == "" {
		c.DataPath = "mymoviedb.csv"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.ChartDir == "" {
		c.ChartDir = "charts"
	}
	if c.LogName == "" {
		c.LogName = "app.log"
	}
	if c.LogMaxSize == "" {
		c.LogMaxSize = "10 * 1024 * 1024"
	}
	if c.SendEmail.Subject == "" {
		c.SendEmail.Subject = "电影数据分析报告"
	}
	// email 数据源未配置 schedule 时按检查间隔轮询邮箱
	if c.Source == SourceEmail && c.Schedule == 0 {
		c.Schedule = c.Email.CheckInterval
	}
}

// Validate 检查配置的合法性
func (c *Config) Validate() error {
	switch c.Source {
	case SourceFile:
	case SourceEmail:
		if c.Email.Server == "" || c.Email.TargetSubject == "" {
			return fmt.Errorf("email 数据源需要配置 email.server 和 email.target_subject")
		}
	default:
		return fmt.Errorf("未知的数据来源: %q", c.Source)
	}
	if c.Schedule < 0 {
		return fmt.Errorf("schedule 不能为负数: %v", time.Duration(c.Schedule))
	}
	return nil
}

func (dc *DataConfig) applyDefaults() {
	if dc.ChartTitles == nil {
		dc.ChartTitles = map[string]string{}
	}
	defaults := map[string]string{
		"genre":   "Genre column distribution",
		"vote":    "Votes distribution",
		"release": "Release date column distribution",
		"max":     "Most popular movie",
		"min":     "Least popular movie",
	}
	for k, v := range defaults {
		if _, ok := dc.ChartTitles[k]; !ok {
			dc.ChartTitles[k] = v
		}
	}
	if dc.BarColor == "" {
		dc.BarColor = "#4287f5"
	}
	if dc.HistogramBins <= 0 {
		dc.HistogramBins = 10
	}
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
// 用于从JSON字符串解析Duration
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
// 用于将Duration序列化为JSON字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Title 读取图表标题
func (dc *DataConfig) Title(key string) string {
	mu.RLock()
	defer mu.RUnlock()
	return dc.ChartTitles[key]
}

// Titles 图表标题的副本
func (dc *DataConfig) Titles() map[string]string {
	mu.RLock()
	defer mu.RUnlock()
	out := make(map[string]string, len(dc.ChartTitles))
	for k, v := range dc.ChartTitles {
		out[k] = v
	}
	return out
}
