package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"MovieInsight/src/config"
	"MovieInsight/src/datapush"
	"MovieInsight/src/datasource/email"
	"MovieInsight/src/datasource/file"
	"MovieInsight/src/processor"
	"MovieInsight/src/report"
	"MovieInsight/src/storage"
	"MovieInsight/src/utils"
)

// errNoDataset 邮箱中还没有数据集
var errNoDataset = errors.New("没有可用的数据集")

// app 一次或多次分析运行共享的状态
type app struct {
	cfg    *config.Config
	dcfg   *config.DataConfig
	logger *storage.Logger
	out    io.Writer

	mailService email.MailService
	mailHandler email.EmailHandler
	pusher      *datapush.DingTalkPusher

	mu       sync.Mutex // 同一时间只有一次运行
	dataPath string     // 最近一次使用的数据集
}

func newApp(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger, out io.Writer) *app {
	a := &app{
		cfg:      cfg,
		dcfg:     dcfg,
		logger:   logger,
		out:      out,
		dataPath: cfg.DataPath,
	}
	if cfg.Source == config.SourceEmail {
		a.mailService = email.NewEmailClient(cfg.Email.Server, cfg.Email.Username, cfg.Email.Password, logger)
		a.mailHandler = email.NewDatasetAttachmentHandler(cfg.Email.TargetSubject, cfg.DataDir, logger)
		a.dataPath = ""
	}
	if cfg.DingTalk.Webhook != "" {
		a.pusher = datapush.NewDingTalkPusher(cfg.DingTalk.Webhook, cfg.DingTalk.Secret, logger)
	}
	return a
}

func main() {
	jsonFolder := "./config"
	jsonFile := "config.json"
	dataJsonFile := "dataconfig.json"
	cfg, dcfg, err := config.LoadConfig(jsonFolder, jsonFile, dataJsonFile)
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}

	a := newApp(cfg, dcfg, logger, os.Stdout)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.run(ctx); err != nil {
		logger.Fatal("分析失败", zap.Error(err))
		logger.Close()
		os.Exit(1)
	}

	if cfg.Schedule <= 0 && !cfg.Watch {
		logger.Close()
		return
	}

	if cfg.LogAddr != "" {
		go startWebUI(cfg.LogAddr, logger)
	}

	if cfg.Schedule > 0 {
		c := cron.New()
		cronSpec := fmt.Sprintf("@every %s", time.Duration(cfg.Schedule))
		if err := c.AddFunc(cronSpec, func() { a.runLogged(ctx, "cron") }); err != nil {
			logger.Fatal("创建定时任务失败", zap.Error(err))
			logger.Close()
			os.Exit(1)
		}
		c.Start()
		defer c.Stop()
		logger.Info("定时分析已启动", zap.String("spec", cronSpec))
	}

	if cfg.Watch {
		if err := a.watch(ctx); err != nil {
			logger.Fatal("监听数据集失败", zap.Error(err))
			logger.Close()
			os.Exit(1)
		}
	}

	waitForShutdown(logger, cfg.LogName)
}

// watch 数据集文件变化时重跑，只对 file 数据源生效
func (a *app) watch(ctx context.Context) error {
	if a.cfg.Source != config.SourceFile {
		a.logger.Warning("watch 只支持 file 数据源", zap.String("source", a.cfg.Source))
		return nil
	}
	monitor, err := file.NewFileMonitor(a.cfg.DataPath)
	if err != nil {
		return err
	}
	go func() {
		defer monitor.Close()
		if err := monitor.Watch(ctx, func(string) { a.runLogged(ctx, "watch") }); err != nil {
			a.logger.Error("数据集监听中断", zap.Error(err))
		}
	}()
	a.logger.Info("开始监听数据集", zap.String("path", a.cfg.DataPath))
	return nil
}

// runLogged 重跑失败只记录，不退出
func (a *app) runLogged(ctx context.Context, trigger string) {
	a.logger.Info("开始重新分析", zap.String("trigger", trigger))
	if err := a.run(ctx); err != nil {
		a.logger.Error("分析失败", zap.String("trigger", trigger), zap.Error(err))
	}
}

// run 获取数据集、清洗、输出报告并推送
func (a *app) run(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	defer func() {
		if err := a.logger.CheckRotate(a.cfg.LogMaxSize); err != nil {
			a.logger.Error("日志轮转失败", zap.Error(err))
		}
	}()

	path, fresh, err := a.acquire()
	if err != nil {
		return err
	}
	if !fresh {
		a.logger.Info("没有新数据集，跳过本次分析")
		return nil
	}

	res, charts, err := a.analyze(path)
	if err != nil {
		return err
	}
	a.logger.Info("分析完成",
		zap.String("dataset", path),
		zap.Int("rows", res.Rows),
		zap.Strings("charts", charts),
		zap.Duration("elapsed", time.Since(start)),
	)

	a.deliver(ctx, res, charts)
	return nil
}

// acquire 返回本次要分析的数据集路径
// email 数据源没有新邮件时沿用上一次的数据集，fresh 为 false
func (a *app) acquire() (path string, fresh bool, err error) {
	if a.cfg.Source != config.SourceEmail {
		return a.dataPath, true, nil
	}

	path, err = email.FetchLatestDataset(a.mailService, a.mailHandler, a.cfg.Email.TargetSubject, a.logger)
	if err != nil {
		return "", false, err
	}
	if path != "" {
		a.dataPath = path
		return path, true, nil
	}
	if a.dataPath == "" {
		return "", false, errNoDataset
	}
	return a.dataPath, false, nil
}

// analyze 加载、清洗并输出报告，返回结论和生成的图表
func (a *app) analyze(path string) (*report.Result, []string, error) {
	df, err := file.LoadTable(path, a.cfg.SheetName)
	if err != nil {
		return nil, nil, err
	}
	a.logger.Info("数据集已加载", zap.String("path", path), zap.Int("rows", df.Nrow()), zap.Int("cols", df.Ncol()))

	cleaned, err := processor.NewMoviePipeline(a.logger).Run(df)
	if err != nil {
		return nil, nil, err
	}

	if a.cfg.ExportPath != "" {
		if err := utils.SaveToExcel(cleaned, a.cfg.ExportPath); err != nil {
			a.logger.Error("导出清洗结果失败", zap.String("path", a.cfg.ExportPath), zap.Error(err))
		} else {
			a.logger.Info("清洗结果已导出", zap.String("path", a.cfg.ExportPath))
		}
	}

	console := report.NewConsoleReporter(a.out, language.English)
	desc, err := report.DescribeNumeric(cleaned, processor.ColPopularity, processor.ColVoteCount)
	if err != nil {
		return nil, nil, err
	}
	if err := console.PrintNumeric("Popularity / Vote_Count", desc); err != nil {
		return nil, nil, err
	}

	charts, err := report.NewChartReporter(a.cfg.ChartDir, a.dcfg.BarColor)
	if err != nil {
		return nil, nil, err
	}

	res, err := report.Analyze(cleaned, report.MultiReporter{console, charts}, report.Options{
		Titles:        a.dcfg.Titles(),
		HistogramBins: a.dcfg.HistogramBins,
	})
	if err != nil {
		return nil, nil, err
	}
	return res, charts.Files(), nil
}

// deliver 推送钉钉和发送报告邮件，失败只记录
func (a *app) deliver(ctx context.Context, res *report.Result, charts []string) {
	body := res.Markdown(a.cfg.SendEmail.Subject)

	if a.pusher != nil {
		if err := a.pusher.PushMarkdown(ctx, a.cfg.SendEmail.Subject, body); err != nil {
			a.logger.Error("钉钉推送失败", zap.Error(err))
		}
	}

	if a.cfg.SendEmail.Server != "" && len(a.cfg.SendEmail.To) > 0 {
		if err := email.SendReport(a.cfg, body, charts, a.logger); err != nil {
			a.logger.Error("报告邮件发送失败", zap.Error(err))
		}
	}
}

// startWebUI 在 addr 上提供 /logs，实时输出日志
func startWebUI(addr string, logger *storage.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/logs", logsHandler(logger))

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("日志服务退出", zap.String("addr", addr), zap.Error(err))
	}
}

// logsHandler 订阅日志并持续写给客户端，直到客户端断开
func logsHandler(logger *storage.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		logChan := logger.Subscribe()
		defer logger.Unsubscribe(logChan)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		for {
			select {
			case msg := <-logChan:
				if _, err := fmt.Fprint(w, msg); err != nil {
					return
				}
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
			case <-r.Context().Done():
				return
			}
		}
	}
}

// waitForShutdown 等待退出信号，SIGHUP 时重新打开日志文件(配合外部 logrotate)
func waitForShutdown(logger *storage.Logger, logName string) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			reopenLog(logger, logName)
			continue
		}
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		logger.Close()
		return
	}
}

// reopenLog 重新打开日志文件，失败时继续写原文件
func reopenLog(logger *storage.Logger, logName string) {
	if err := logger.Reopen(logName); err != nil {
		logger.Error("重新打开日志失败", zap.String("path", logName), zap.Error(err))
		return
	}
	logger.Info("日志文件已重新打开", zap.String("path", logName))
}
