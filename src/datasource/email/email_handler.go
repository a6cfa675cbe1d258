// email_handler.go
package email

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"MovieInsight/src/storage"
)

// ====================== 邮件处理器实现 ======================

// DatasetAttachmentHandler 把邮件中的数据集附件保存到 DataDir
type DatasetAttachmentHandler struct {
	TargetSubject string // 目标邮件主题关键词
	DataDir       string // 附件保存目录
	logger        *storage.Logger
	processedUIDs map[uint32]bool // 已处理邮件UID记录
	mu            sync.RWMutex
}

func NewDatasetAttachmentHandler(subject, dataDir string, logger *storage.Logger) *DatasetAttachmentHandler {
	return &DatasetAttachmentHandler{
		TargetSubject: subject,
		DataDir:       dataDir,
		logger:        logger,
		processedUIDs: make(map[uint32]bool),
	}
}

// isProcessed 检查邮件是否已处理过
func (h *DatasetAttachmentHandler) isProcessed(uid uint32) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.processedUIDs[uid]
}

// markAsProcessed 标记邮件为已处理
func (h *DatasetAttachmentHandler) markAsProcessed(uid uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processedUIDs[uid] = true
}

// Handle 保存第一个 csv/xlsx 附件，返回保存路径
// 已处理过或主题不匹配的邮件返回空路径
func (h *DatasetAttachmentHandler) Handle(email *Email) (string, error) {
	if h.isProcessed(email.UID) {
		return "", nil
	}

	if !strings.Contains(email.Subject, h.TargetSubject) {
		h.logger.Debug("跳过主题不匹配的邮件", zap.String("subject", email.Subject))
		return "", nil
	}

	h.logger.Info("处理邮件",
		zap.String("subject", email.Subject),
		zap.String("from", email.From),
		zap.Time("date", email.Date),
	)

	for _, attachment := range email.Attachments {
		if !attachment.IsDataset() {
			continue
		}

		if err := os.MkdirAll(h.DataDir, 0755); err != nil {
			return "", fmt.Errorf("创建目录失败: %w", err)
		}

		// 附件名可能带目录，只取文件名
		filePath := filepath.Join(h.DataDir, filepath.Base(attachment.Filename))
		if err := os.WriteFile(filePath, attachment.Content, 0644); err != nil {
			return "", fmt.Errorf("保存附件失败: %w", err)
		}

		h.logger.Info("附件已保存", zap.String("path", filePath), zap.Int("bytes", len(attachment.Content)))
		h.markAsProcessed(email.UID)
		return filePath, nil
	}

	return "", nil
}
