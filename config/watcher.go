// 配置文件变更监听器实现。
//
// 轮询文件的修改时间与大小，变化稳定后回调一次。
package config

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FileWatcher 轮询单个配置文件
type FileWatcher struct {
	mu sync.Mutex

	path          string
	interval      time.Duration
	debounceDelay time.Duration

	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	onChange func(path string)
	logger   *zap.Logger
}

// WatcherOption 配置 FileWatcher
type WatcherOption func(*FileWatcher)

// WithPollInterval 设置轮询间隔
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *FileWatcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithDebounceDelay 连续写入时等待文件稳定的时长
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *FileWatcher) {
		w.debounceDelay = d
	}
}

// WithWatcherLogger 设置日志
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *FileWatcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewFileWatcher 创建监听器；文件暂不存在时会等待其出现
func NewFileWatcher(path string, onChange func(path string), opts ...WatcherOption) *FileWatcher {
	w := &FileWatcher{
		path:          path,
		interval:      time.Second,
		debounceDelay: 100 * time.Millisecond,
		onChange:      onChange,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path 被监听的文件
func (w *FileWatcher) Path() string { return w.path }

// Start 启动轮询协程
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("watcher already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	w.running = true
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.loop(ctx, w.done)

	w.logger.Info("config watcher started",
		zap.String("path", w.path),
		zap.Duration("interval", w.interval))
	return nil
}

// Stop 停止轮询并等待协程退出；可重复调用
func (w *FileWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done
	w.logger.Info("config watcher stopped")
}

// IsRunning 是否在运行
func (w *FileWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

type fileStamp struct {
	exists  bool
	modTime time.Time
	size    int64
}

func stat(path string) fileStamp {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{exists: true, modTime: info.ModTime(), size: info.Size()}
}

func (w *FileWatcher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	last := stat(w.path)
	var pendingSince time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			cur := stat(w.path)
			if cur != last {
				last = cur
				pendingSince = now
				continue
			}
			// 文件删除不触发重载，保留当前配置
			if pendingSince.IsZero() || !cur.exists || now.Sub(pendingSince) < w.debounceDelay {
				continue
			}
			pendingSince = time.Time{}

			w.logger.Debug("config file changed", zap.String("path", w.path))
			if w.onChange != nil {
				w.onChange(w.path)
			}
		}
	}
}
