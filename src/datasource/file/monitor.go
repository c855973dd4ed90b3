// monitor.go
package file

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileMonitor 监听数据文件的写入, 文件更新后回调
type FileMonitor struct {
	watcher  *fsnotify.Watcher
	targets  map[string]bool // 关注的文件(绝对路径)
	debounce time.Duration
	timers   map[string]*time.Timer // 每个文件一个, 静止 debounce 后触发
	stopped  bool
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// NewFileMonitor 监听 files 所在目录, 只对 files 本身的变化触发回调
func NewFileMonitor(debounce time.Duration, files ...string) (*FileMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	m := &FileMonitor{
		watcher:  watcher,
		targets:  make(map[string]bool),
		debounce: debounce,
		timers:   make(map[string]*time.Timer),
	}
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			watcher.Close()
			return nil, err
		}
		m.targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, err
		}
	}
	return m, nil
}

// Watch 阻塞直到 ctx 结束或 watcher 出错; 返回前取消未触发的回调并等待正在执行的回调
func (m *FileMonitor) Watch(ctx context.Context, handler func(string)) error {
	defer m.watcher.Close()
	defer m.stop()
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
			if abs, ok := m.target(event.Name); ok {
				m.schedule(abs, handler)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// target 过滤无关文件
func (m *FileMonitor) target(name string) (string, bool) {
	abs, err := filepath.Abs(name)
	if err != nil || !m.targets[abs] {
		return "", false
	}
	return abs, true
}

// schedule 每次写入都重新计时, 文件静止 debounce 之后回调一次
func (m *FileMonitor) schedule(name string, handler func(string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	if t, ok := m.timers[name]; ok && t.Stop() {
		t.Reset(m.debounce)
		return
	}

	var t *time.Timer
	m.wg.Add(1)
	t = time.AfterFunc(m.debounce, func() {
		defer m.wg.Done()
		m.mu.Lock()
		if m.stopped {
			m.mu.Unlock()
			return
		}
		if m.timers[name] == t {
			delete(m.timers, name)
		}
		m.mu.Unlock()
		handler(name)
	})
	m.timers[name] = t
}

func (m *FileMonitor) stop() {
	m.mu.Lock()
	m.stopped = true
	for name, t := range m.timers {
		if t.Stop() {
			m.wg.Done()
		}
		delete(m.timers, name)
	}
	m.mu.Unlock()
	m.wg.Wait()
}
