// sender.go
package email

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"os"

	"github.com/jordan-wright/email"
	"go.uber.org/zap"

	"MovieInsight/src/config"
	"MovieInsight/src/storage"
)

const defaultSMTPPort = "465" // SSL

// NewReport 构造报告邮件，body 为 markdown 文本，不存在的附件跳过
func NewReport(c *config.Config, body string, attachments []string, logger *storage.Logger) *email.Email {
	e := email.NewEmail()
	e.From = fmt.Sprintf("MovieInsight <%s>", c.SendEmail.Username)
	e.To = c.SendEmail.To
	e.Subject = c.SendEmail.Subject
	e.Text = []byte(body)

	for _, path := range attachments {
		if _, err := os.Stat(path); err != nil {
			logger.Warning("附件文件不存在", zap.String("path", path))
			continue
		}
		if _, err := e.AttachFile(path); err != nil {
			logger.Warning("附件添加失败", zap.String("path", path), zap.Error(err))
		}
	}
	return e
}

// SendReport 通过 SMTP(隐式 TLS) 发送分析报告
func SendReport(c *config.Config, body string, attachments []string, logger *storage.Logger) error {
	if len(c.SendEmail.To) == 0 {
		return fmt.Errorf("没有配置收件人")
	}

	e := NewReport(c, body, attachments, logger)

	addr, host := smtpAddr(c.SendEmail.Server)
	err := e.SendWithTLS(
		addr,
		smtp.PlainAuth("", c.SendEmail.Username, c.SendEmail.Password, host),
		&tls.Config{ServerName: host},
	)
	if err != nil {
		return fmt.Errorf("邮件发送失败(%s): %w", addr, err)
	}
	logger.Info("报告邮件发送成功", zap.Strings("to", c.SendEmail.To), zap.Int("attachments", len(e.Attachments)))
	return nil
}

// smtpAddr 没有端口时补上默认端口
func smtpAddr(server string) (addr, host string) {
	host, port, err := net.SplitHostPort(server)
	if err != nil {
		return net.JoinHostPort(server, defaultSMTPPort), server
	}
	return net.JoinHostPort(host, port), host
}
