// monitor.go
package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileMonitor 监听数据集文件，文件被写入或重新创建时回调
type FileMonitor struct {
	watchDir string
	target   string // 目标文件名，空表示目录下任意文件
	watcher  *fsnotify.Watcher
	lastFile string
	lastMod  time.Time
	mu       sync.Mutex
}

// NewFileMonitor 监听 path 所在目录；path 为目录时监听目录下所有文件
func NewFileMonitor(path string) (*FileMonitor, error) {
	dir, target := path, ""
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		dir, target = filepath.Dir(path), filepath.Base(path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	return &FileMonitor{
		watchDir: dir,
		target:   target,
		watcher:  watcher,
	}, nil
}

// Watch 阻塞直到 ctx 结束或 watcher 关闭
// handler 在当前 goroutine 中同步执行，两次运行不会重叠。
func (m *FileMonitor) Watch(ctx context.Context, handler func(string)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if m.target != "" && filepath.Base(event.Name) != m.target {
				continue
			}
			if m.changed(event.Name) {
				handler(event.Name)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (m *FileMonitor) changed(name string) bool {
	info, err := os.Stat(name)
	if err != nil || info.IsDir() {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if name == m.lastFile && !info.ModTime().After(m.lastMod) {
		return false
	}
	m.lastMod = info.ModTime()
	m.lastFile = name
	return true
}

// Close 停止监听
func (m *FileMonitor) Close() error {
	return m.watcher.Close()
}
