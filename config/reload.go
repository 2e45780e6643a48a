// 配置热重载。
//
// 文件变化后重新走一遍 Loader，校验通过才替换当前配置；
// 失败时保留旧配置。数据库 URL 的变化在下一次建连时生效。
package config

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReloadCallback 配置替换后调用；changed 为发生变化的顶层段名（如 "Log"）
type ReloadCallback func(oldConfig, newConfig *Config, changed []string)

// Reloader 持有当前生效的配置
type Reloader struct {
	mu        sync.RWMutex
	loader    *Loader
	current   *Config
	version   int
	callbacks []ReloadCallback

	watcher *FileWatcher
	logger  *zap.Logger
}

// NewReloader 以已加载的配置为初始版本
func NewReloader(loader *Loader, initial *Config, logger *zap.Logger) *Reloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reloader{
		loader:  loader,
		current: initial,
		version: 1,
		logger:  logger.With(zap.String("component", "config_reloader")),
	}
}

// Current 当前配置；调用方不得修改返回值
func (r *Reloader) Current() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Version 成功替换的次数加一
func (r *Reloader) Version() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// OnReload 注册回调
func (r *Reloader) OnReload(cb ReloadCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, cb)
}

// Reload 立即重新加载；无变化时不回调
func (r *Reloader) Reload() error {
	next, err := r.loader.Load()
	if err != nil {
		r.logger.Warn("config reload failed, keeping current config", zap.Error(err))
		return err
	}
	if err := next.Validate(); err != nil {
		r.logger.Warn("reloaded config is invalid, keeping current config", zap.Error(err))
		return err
	}

	r.mu.Lock()
	old := r.current
	changed := changedSections(old, next)
	if len(changed) == 0 {
		r.mu.Unlock()
		return nil
	}
	r.current = next
	r.version++
	callbacks := make([]ReloadCallback, len(r.callbacks))
	copy(callbacks, r.callbacks)
	r.mu.Unlock()

	r.logger.Info("config reloaded", zap.Strings("changed", changed))
	for _, cb := range callbacks {
		r.notify(cb, old, next, changed)
	}
	return nil
}

func (r *Reloader) notify(cb ReloadCallback, old, next *Config, changed []string) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("config reload callback panicked", zap.Any("panic", p))
		}
	}()
	cb(old, next, changed)
}

// Watch 监听配置文件；未指定配置文件时返回错误
func (r *Reloader) Watch(ctx context.Context, interval time.Duration) error {
	if r.loader.ConfigPath() == "" {
		return errors.New("no config file to watch")
	}

	r.mu.Lock()
	if r.watcher != nil {
		r.mu.Unlock()
		return errors.New("reloader already watching")
	}
	r.watcher = NewFileWatcher(r.loader.ConfigPath(), func(string) {
		_ = r.Reload()
	}, WithPollInterval(interval), WithWatcherLogger(r.logger))
	w := r.watcher
	r.mu.Unlock()

	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start config watcher: %w", err)
	}
	return nil
}

// Stop 停止监听
func (r *Reloader) Stop() {
	r.mu.RLock()
	w := r.watcher
	r.mu.RUnlock()
	if w != nil {
		w.Stop()
	}
}

// changedSections 比较两份配置的顶层段
func changedSections(a, b *Config) []string {
	av := reflect.ValueOf(a).Elem()
	bv := reflect.ValueOf(b).Elem()
	t := av.Type()

	var changed []string
	for i := 0; i < t.NumField(); i++ {
		if !reflect.DeepEqual(av.Field(i).Interface(), bv.Field(i).Interface()) {
			changed = append(changed, t.Field(i).Name)
		}
	}
	return changed
}
