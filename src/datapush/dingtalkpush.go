package datapush

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"MovieInsight/src/storage"
)

// 常量定义
const (
	RETRY_TIMES     = 5
	RETRY_INTERVAL  = 2 * time.Second
	REQUEST_TIMEOUT = 10 * time.Second
)

// 钉钉 API 响应结构体
type DingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// markdownMessage 机器人 markdown 消息
type markdownMessage struct {
	MsgType  string `json:"msgtype"`
	Markdown struct {
		Title string `json:"title"`
		Text  string `json:"text"`
	} `json:"markdown"`
}

// DingTalkPusher 通过群机器人 webhook 推送分析结论
type DingTalkPusher struct {
	webhook       string
	secret        string // 加签密钥，为空不加签
	client        *http.Client
	logger        *storage.Logger
	retryTimes    int
	retryInterval time.Duration
	now           func() time.Time
}

func NewDingTalkPusher(webhook, secret string, logger *storage.Logger) *DingTalkPusher {
	return &DingTalkPusher{
		webhook:       webhook,
		secret:        secret,
		client:        &http.Client{Timeout: REQUEST_TIMEOUT},
		logger:        logger,
		retryTimes:    RETRY_TIMES,
		retryInterval: RETRY_INTERVAL,
		now:           time.Now,
	}
}

// PushMarkdown 发送 markdown 消息，失败按固定间隔重试
func (p *DingTalkPusher) PushMarkdown(ctx context.Context, title, text string) error {
	var msg markdownMessage
	msg.MsgType = "markdown"
	msg.Markdown.Title = title
	msg.Markdown.Text = text

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化请求体失败: %v", err)
	}

	attempt := 0
	err = retry(func() error {
		attempt++
		err := p.send(ctx, payload)
		if err != nil {
			p.logger.Warning("钉钉推送失败", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}, p.retryTimes, p.retryInterval)
	if err != nil {
		return err
	}
	p.logger.Info("钉钉推送成功", zap.String("title", title))
	return nil
}

func (p *DingTalkPusher) send(ctx context.Context, payload []byte) error {
	target, err := p.signedURL()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("创建请求失败: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, respBody)
	}

	var result DingTalkResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("解析响应失败: %v", err)
	}
	if result.ErrCode != 0 {
		return fmt.Errorf("发送消息失败(%d): %s", result.ErrCode, result.ErrMsg)
	}
	return nil
}

// signedURL 在 webhook 上附加 timestamp 和 sign
func (p *DingTalkPusher) signedURL() (string, error) {
	if p.secret == "" {
		return p.webhook, nil
	}
	u, err := url.Parse(p.webhook)
	if err != nil {
		return "", fmt.Errorf("webhook 地址无效: %v", err)
	}
	timestamp := p.now().UnixMilli()
	q := u.Query()
	q.Set("timestamp", strconv.FormatInt(timestamp, 10))
	q.Set("sign", sign(timestamp, p.secret))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// sign HmacSHA256(timestamp + "\n" + secret) 后 base64
func sign(timestamp int64, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10) + "\n" + secret))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// 重试函数
func retry(fn func() error, times int, interval time.Duration) error {
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < times-1 {
			time.Sleep(interval)
		}
	}
	return fmt.Errorf("重试 %d 次后失败: %w", times, err)
}
