package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigs(t *testing.T, cfg, dcfg string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(cfg), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dataconfig.json"), []byte(dcfg), 0644))
	return dir
}

func TestLoadConfigs(t *testing.T) {
	dir := writeConfigs(t,
		`{"data_path":"movies.csv","schedule":"30m","chart_dir":"out","send_email":{"to":["a@b.c"]}}`,
		`{"chart_titles":{"genre":"Genres"},"histogram_bins":12}`)

	cfg, dcfg, err := loadConfigs(dir, "config.json", "dataconfig.json")
	require.NoError(t, err)

	assert.Equal(t, SourceFile, cfg.Source)
	assert.Equal(t, "movies.csv", cfg.DataPath)
	assert.Equal(t, "out", cfg.ChartDir)
	assert.Equal(t, "app.log", cfg.LogName)
	assert.Equal(t, 30*time.Minute, time.Duration(cfg.Schedule))
	assert.Equal(t, []string{"a@b.c"}, cfg.SendEmail.To)

	assert.Equal(t, "Genres", dcfg.Title("genre"))
	assert.Equal(t, "Votes distribution", dcfg.Title("vote"))
	assert.Equal(t, "#4287f5", dcfg.BarColor)
	assert.Equal(t, 12, dcfg.HistogramBins)
}

func TestLoadConfigsErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, _, err := loadConfigs(t.TempDir(), "config.json", "dataconfig.json")
		assert.Error(t, err)
	})

	t.Run("both files broken", func(t *testing.T) {
		dir := writeConfigs(t, `{`, `[`)
		_, _, err := loadConfigs(dir, "config.json", "dataconfig.json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "解析Config失败")
		assert.Contains(t, err.Error(), "解析DataConfig失败")
	})

	t.Run("unknown source", func(t *testing.T) {
		dir := writeConfigs(t, `{"source":"ftp"}`, `{}`)
		_, _, err := loadConfigs(dir, "config.json", "dataconfig.json")
		assert.Error(t, err)
	})

	t.Run("email source without server", func(t *testing.T) {
		dir := writeConfigs(t, `{"source":"email"}`, `{}`)
		_, _, err := loadConfigs(dir, "config.json", "dataconfig.json")
		assert.Error(t, err)
	})
}

func TestDurationJSON(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1h30m"`), &d))
	assert.Equal(t, 90*time.Minute, time.Duration(d))

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"1h30m0s"`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
}

func TestEmailCheckIntervalAsSchedule(t *testing.T) {
	email := `"email":{"server":"imap.example.com:993","target_subject":"mymoviedb","check_interval":"5m"}`

	dir := writeConfigs(t, `{"source":"email",`+email+`}`, `{}`)
	cfg, _, err := loadConfigs(dir, "config.json", "dataconfig.json")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, time.Duration(cfg.Schedule))

	// 显式配置的 schedule 优先
	dir = writeConfigs(t, `{"source":"email","schedule":"1h",`+email+`}`, `{}`)
	cfg, _, err = loadConfigs(dir, "config.json", "dataconfig.json")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, time.Duration(cfg.Schedule))

	// file 数据源不使用检查间隔
	dir = writeConfigs(t, `{"source":"file",`+email+`}`, `{}`)
	cfg, _, err = loadConfigs(dir, "config.json", "dataconfig.json")
	require.NoError(t, err)
	assert.Zero(t, cfg.Schedule)
}
