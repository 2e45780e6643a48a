package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/loanflow/config"
	"github.com/BaSui01/loanflow/internal/tlsutil"
)

// =============================================================================
// 💾 缓存管理器
// =============================================================================

var (
	// ErrCacheMiss 缓存未命中
	ErrCacheMiss = errors.New("cache miss")
	// ErrClosed 管理器已关闭
	ErrClosed = errors.New("cache manager is closed")
)

// IsCacheMiss 判断是否为缓存未命中
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// Observer 接收命中/未命中（指标上报）
type Observer interface {
	ObserveCache(namespace string, hit bool)
}

// Manager 基于 Redis 的 JSON 缓存，键统一加 namespace 前缀
type Manager struct {
	redis      *redis.Client
	prefix     string
	defaultTTL time.Duration
	logger     *zap.Logger
	observer   Observer

	mu     sync.RWMutex
	closed bool
}

// NewManager 创建缓存管理器并 Ping 一次
func NewManager(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*Manager, error) {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = tlsutil.ClientTLSConfig(cfg.Addr)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewManagerWithClient(client, cfg.DefaultTTL, logger), nil
}

// NewManagerWithClient 包装已有客户端
func NewManagerWithClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	m := &Manager{
		redis:      client,
		prefix:     "loanflow:",
		defaultTTL: ttl,
		logger:     logger.With(zap.String("component", "cache")),
	}
	m.logger.Info("cache manager initialized", zap.String("addr", client.Options().Addr))
	return m
}

// WithObserver 设置观察者
func (m *Manager) WithObserver(o Observer) *Manager {
	m.observer = o
	return m
}

func (m *Manager) key(namespace, key string) string {
	return m.prefix + namespace + ":" + key
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// GetJSON 读取并解码；未命中返回 ErrCacheMiss
func (m *Manager) GetJSON(ctx context.Context, namespace, key string, dest any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}

	val, err := m.redis.Get(ctx, m.key(namespace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		m.observe(namespace, false)
		return ErrCacheMiss
	}
	if err != nil {
		m.logger.Error("cache get failed", zap.String("namespace", namespace), zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache get failed: %w", err)
	}
	if err := json.Unmarshal(val, dest); err != nil {
		// 旧格式条目按未命中处理，回源后覆盖
		m.observe(namespace, false)
		return ErrCacheMiss
	}
	m.observe(namespace, true)
	return nil
}

// SetJSON 编码后写入；ttl 为 0 时使用默认值
func (m *Manager) SetJSON(ctx context.Context, namespace, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	if ttl == 0 {
		ttl = m.defaultTTL
	}
	if err := m.redis.Set(ctx, m.key(namespace, key), data, ttl).Err(); err != nil {
		m.logger.Error("cache set failed", zap.String("namespace", namespace), zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Invalidate 删除 namespace 下的全部键
func (m *Manager) Invalidate(ctx context.Context, namespace string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}

	var keys []string
	iter := m.redis.Scan(ctx, 0, m.key(namespace, "*"), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan failed: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := m.redis.Del(ctx, keys...).Err(); err != nil {
		m.logger.Error("cache invalidate failed", zap.String("namespace", namespace), zap.Error(err))
		return fmt.Errorf("cache delete failed: %w", err)
	}
	m.logger.Debug("cache invalidated", zap.String("namespace", namespace), zap.Int("keys", len(keys)))
	return nil
}

// Ping 检查 Redis 连接
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return m.redis.Ping(ctx).Err()
}

// Close 关闭缓存管理器，重复调用安全
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.logger.Info("closing cache manager")
	return m.redis.Close()
}

func (m *Manager) observe(namespace string, hit bool) {
	if m.observer != nil {
		m.observer.ObserveCache(namespace, hit)
	}
}
