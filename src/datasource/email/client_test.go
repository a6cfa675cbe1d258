package email

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"MovieInsight/src/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMailService 内存中的邮箱
type fakeMailService struct {
	emails       []*Email
	connectErr   error
	fetchErr     error
	connected    bool
	disconnected bool
}

func (f *fakeMailService) Connect() error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeMailService) Disconnect() { f.disconnected = true }

func (f *fakeMailService) FetchUnreadEmails() ([]*Email, error) {
	return f.emails, f.fetchErr
}

func rawMessage(subject, filename, content string) string {
	lines := []string{
		"From: Data Team <data@example.com>",
		"To: analyst@example.com",
		"Subject: " + subject,
		"Date: Mon, 02 Sep 2024 10:00:00 +0800",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="XYZ"`,
		"",
		"--XYZ",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"see attached",
		"--XYZ",
		"Content-Type: text/csv",
		`Content-Disposition: attachment; filename="` + filename + `"`,
		"",
		content,
		"--XYZ--",
		"",
	}
	return strings.Join(lines, "\r\n")
}

func TestDecodeHeader(t *testing.T) {
	assert.Equal(t, "电影", decodeHeader("=?GBK?B?tefTsA==?="))
	assert.Equal(t, "电影数据", decodeHeader("=?gb2312?B?tefTsMr9vt0=?="))
	assert.Equal(t, "电影数据", decodeHeader("=?UTF-8?B?55S15b2x5pWw5o2u?="))
	assert.Equal(t, "plain subject", decodeHeader("plain subject"))
}

func TestParseMessage(t *testing.T) {
	raw := rawMessage("=?UTF-8?B?55S15b2x5pWw5o2u?= 2024", "mymoviedb.csv", "Release_Date,Title\r\n2021-12-15,Spider-Man")

	msg, err := ParseMessage(strings.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "电影数据 2024", msg.Subject)
	assert.Contains(t, msg.From, "data@example.com")
	assert.Equal(t, 2024, msg.Date.Year())
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "mymoviedb.csv", msg.Attachments[0].Filename)
	assert.True(t, msg.Attachments[0].IsDataset())
	assert.Contains(t, string(msg.Attachments[0].Content), "2021-12-15,Spider-Man")
}

func TestFilterLatestTargetEmail(t *testing.T) {
	now := time.Now()
	csv := &Attachment{Filename: "movies.csv"}
	pdf := &Attachment{Filename: "notes.pdf"}
	emails := []*Email{
		{UID: 1, Subject: "电影数据 旧", Date: now.Add(-2 * time.Hour), Attachments: []*Attachment{csv}},
		{UID: 2, Subject: "电影数据 新", Date: now, Attachments: []*Attachment{csv}},
		{UID: 3, Subject: "电影数据 更新", Date: now.Add(time.Hour), Attachments: []*Attachment{pdf}},
		{UID: 4, Subject: "周报", Date: now.Add(2 * time.Hour), Attachments: []*Attachment{csv}},
	}

	got := filterLatestTargetEmail(emails, "电影数据")
	require.NotNil(t, got)
	assert.Equal(t, uint32(2), got.UID)

	assert.Nil(t, filterLatestTargetEmail(emails, "航班"))
}

func TestDatasetAttachmentHandler(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	h := NewDatasetAttachmentHandler("电影数据", dir, nil)

	msg := &Email{
		UID:     7,
		Subject: "电影数据 2024",
		Attachments: []*Attachment{
			{Filename: "readme.txt", Content: []byte("ignore")},
			{Filename: "../mymoviedb.xlsx", Content: []byte("xlsx bytes")},
		},
	}

	path, err := h.Handle(msg)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mymoviedb.xlsx"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "xlsx bytes", string(data))

	// 同一封邮件只处理一次
	path, err = h.Handle(msg)
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = h.Handle(&Email{UID: 8, Subject: "周报", Attachments: msg.Attachments})
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestFetchLatestDataset(t *testing.T) {
	dir := t.TempDir()
	svc := &fakeMailService{emails: []*Email{
		{UID: 1, Subject: "电影数据", Date: time.Now(), Attachments: []*Attachment{
			{Filename: "mymoviedb.csv", Content: []byte("a,b\n1,2\n")},
		}},
	}}

	path, err := FetchLatestDataset(svc, NewDatasetAttachmentHandler("电影数据", dir, nil), "电影数据", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mymoviedb.csv"), path)
	assert.True(t, svc.connected)
	assert.True(t, svc.disconnected)

	empty := &fakeMailService{}
	path, err = FetchLatestDataset(empty, NewDatasetAttachmentHandler("电影数据", dir, nil), "电影数据", nil)
	require.NoError(t, err)
	assert.Empty(t, path)

	boom := errors.New("refused")
	_, err = FetchLatestDataset(&fakeMailService{connectErr: boom}, NewDatasetAttachmentHandler("电影数据", dir, nil), "电影数据", nil)
	assert.True(t, errors.Is(err, boom))

	failing := &fakeMailService{fetchErr: boom}
	_, err = FetchLatestDataset(failing, NewDatasetAttachmentHandler("电影数据", dir, nil), "电影数据", nil)
	assert.True(t, errors.Is(err, boom))
	assert.True(t, failing.disconnected)
}

func TestNewReport(t *testing.T) {
	dir := t.TempDir()
	chart := filepath.Join(dir, "genre_counts.png")
	require.NoError(t, os.WriteFile(chart, []byte("png"), 0644))

	var c config.Config
	c.SendEmail.Username = "bot@example.com"
	c.SendEmail.To = []string{"analyst@example.com"}
	c.SendEmail.Subject = "电影数据分析报告"

	e := NewReport(&c, "### 报告", []string{chart, filepath.Join(dir, "missing.png")}, nil)
	assert.Equal(t, "MovieInsight <bot@example.com>", e.From)
	assert.Equal(t, []string{"analyst@example.com"}, e.To)
	assert.Equal(t, "电影数据分析报告", e.Subject)
	assert.Equal(t, "### 报告", string(e.Text))
	assert.Len(t, e.Attachments, 1)

	assert.Error(t, SendReport(&config.Config{}, "", nil, nil))
}

func TestSMTPAddr(t *testing.T) {
	addr, host := smtpAddr("smtp.qq.com")
	assert.Equal(t, "smtp.qq.com:465", addr)
	assert.Equal(t, "smtp.qq.com", host)

	addr, host = smtpAddr("smtp.qq.com:587")
	assert.Equal(t, "smtp.qq.com:587", addr)
	assert.Equal(t, "smtp.qq.com", host)
}
