package database

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// =============================================================================
// 🔌 连接管理器
// =============================================================================

// Connector 数据库连接的唯一对外入口
type Connector interface {
	// Acquire 返回共享连接，不存在时按需建立
	Acquire(ctx context.Context) (*gorm.DB, error)
	// HealthCheck 探测数据库是否可达，从不返回错误
	HealthCheck(ctx context.Context) bool
	// Release 关闭连接并回到无连接状态，可重复调用
	Release(ctx context.Context) error
}

// State 连接状态
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Settings 建连时读取的进程配置
type Settings struct {
	URL string
	Env string
}

// IsDevelopment 开发环境输出 SQL 日志
func (s Settings) IsDevelopment() bool {
	return strings.EqualFold(strings.TrimSpace(s.Env), "development")
}

// SettingsFunc 在每次建连时读取配置
type SettingsFunc func() Settings

// StaticSettings 固定配置
func StaticSettings(url, env string) SettingsFunc {
	return func() Settings { return Settings{URL: url, Env: env} }
}

// Observer 接收建连与健康检查事件（指标上报）
type Observer interface {
	ObserveConnectAttempt(attempt int, err error, d time.Duration)
	ObserveHealthCheck(ok bool, d time.Duration)
}

// DialectorFunc 根据配置构造 Dialector
type DialectorFunc func(Settings) (gorm.Dialector, error)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
	defaultPingTimeout = 5 * time.Second
)

// Manager 持有进程内唯一的数据库连接
type Manager struct {
	settings    SettingsFunc
	dialector   DialectorFunc
	maxAttempts int
	baseDelay   time.Duration
	pingTimeout time.Duration
	pool        PoolConfig
	logger      *zap.Logger
	observer    Observer
	sleep       func(time.Duration)

	group singleflight.Group

	mu       sync.RWMutex
	db       *gorm.DB
	state    State
	attempts int
	// 每次 Release 递增；初始化完成时若代数变化则丢弃新连接
	generation uint64
}

// Option 管理器选项
type Option func(*Manager)

// WithMaxAttempts 设置最大建连次数
func WithMaxAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

// WithBaseDelay 设置退避基数，第 i 次失败后等待 base·2^i
func WithBaseDelay(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.baseDelay = d
		}
	}
}

// WithPingTimeout 设置单次 ping 超时
func WithPingTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.pingTimeout = d
		}
	}
}

// WithPoolConfig 设置连接池参数
func WithPoolConfig(c PoolConfig) Option {
	return func(m *Manager) { m.pool = c }
}

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithObserver 设置事件观察者
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithSleep 替换退避等待函数（测试用）
func WithSleep(fn func(time.Duration)) Option {
	return func(m *Manager) {
		if fn != nil {
			m.sleep = fn
		}
	}
}

// WithDialector 替换 Dialector 构造（测试用）
func WithDialector(fn DialectorFunc) Option {
	return func(m *Manager) {
		if fn != nil {
			m.dialector = fn
		}
	}
}

// NewManager 创建连接管理器。不会立即建连。
func NewManager(settings SettingsFunc, opts ...Option) *Manager {
	m := &Manager{
		settings:    settings,
		dialector:   func(s Settings) (gorm.Dialector, error) { return DialectorFor(s.URL) },
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		pingTimeout: defaultPingTimeout,
		pool:        DefaultPoolConfig(),
		logger:      zap.NewNop(),
		sleep:       time.Sleep,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(zap.String("component", "database"))
	return m
}

// Acquire 返回共享连接。并发的首次调用共享同一次初始化。
// ctx 仅控制调用方的等待；进行中的重试不会被取消。
func (m *Manager) Acquire(ctx context.Context) (*gorm.DB, error) {
	if db := m.current(); db != nil {
		return db, nil
	}

	// key 带上代数：Release 之后到达的调用不会加入已过期的初始化
	m.mu.RLock()
	gen := m.generation
	m.mu.RUnlock()
	key := fmt.Sprintf("connect-%d", gen)

	ch := m.group.DoChan(key, func() (db any, err error) {
		// singleflight 在独立 goroutine 中重新抛出 panic，这里转为错误
		defer func() {
			if r := recover(); r != nil {
				m.setStateFor(gen, StateDisconnected)
				err = fmt.Errorf("database initialization panicked: %v", r)
			}
		}()
		return m.connect(context.WithoutCancel(ctx), gen)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*gorm.DB), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) current() *gorm.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

// connect 为第 gen 代建立连接，带指数退避重试
func (m *Manager) connect(ctx context.Context, gen uint64) (*gorm.DB, error) {
	m.mu.Lock()
	if m.db != nil {
		db := m.db
		m.mu.Unlock()
		return db, nil
	}
	if m.generation != gen {
		m.mu.Unlock()
		return nil, ErrReleased
	}
	m.state = StateConnecting
	m.attempts = 0
	m.mu.Unlock()

	var settings Settings
	if m.settings != nil {
		settings = m.settings()
	}
	if strings.TrimSpace(settings.URL) == "" {
		m.setStateFor(gen, StateDisconnected)
		err := &ConfigurationError{Key: "DATABASE_URL", Reason: "connection target is not configured"}
		m.logger.Error("database configuration missing", zap.Error(err))
		return nil, err
	}

	dialector, err := m.dialector(settings)
	if err != nil {
		m.setStateFor(gen, StateDisconnected)
		m.logger.Error("database configuration invalid", zap.Error(err))
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableAutomaticPing: true,
		Logger:               m.gormLogger(settings),
	})
	if err != nil {
		m.setStateFor(gen, StateDisconnected)
		cfgErr := &ConfigurationError{Key: "DATABASE_URL", Reason: "cannot open database", Cause: err}
		m.logger.Error("database open failed", zap.Error(cfgErr))
		return nil, cfgErr
	}

	sqlDB, err := db.DB()
	if err != nil {
		m.setStateFor(gen, StateDisconnected)
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		m.mu.Lock()
		if m.generation == gen {
			m.attempts = attempt
		}
		m.mu.Unlock()

		start := time.Now()
		pingCtx, cancel := context.WithTimeout(ctx, m.pingTimeout)
		lastErr = sqlDB.PingContext(pingCtx)
		cancel()
		elapsed := time.Since(start)

		if m.observer != nil {
			m.observer.ObserveConnectAttempt(attempt, lastErr, elapsed)
		}
		if lastErr == nil {
			break
		}

		m.logger.Warn("database connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", m.maxAttempts),
			zap.Error(lastErr),
		)
		if attempt < m.maxAttempts {
			m.sleep(m.backoff(attempt - 1))
		}
	}

	if lastErr != nil {
		_ = sqlDB.Close()
		m.setStateFor(gen, StateDisconnected)
		connErr := &ConnectionError{Attempts: m.maxAttempts, Cause: lastErr}
		m.logger.Error("database connection failed", zap.Error(connErr))
		return nil, connErr
	}

	m.pool.apply(sqlDB)

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		_ = sqlDB.Close()
		m.logger.Info("database connection discarded after release")
		return nil, ErrReleased
	}
	m.db = db
	m.state = StateConnected
	attempts := m.attempts
	m.mu.Unlock()

	m.logger.Info("database connection established",
		zap.Int("attempts", attempts),
		zap.Int("max_open_conns", m.pool.MaxOpenConns),
	)
	return db, nil
}

// backoff 第 i 次（从 0 计）失败后的等待时长：baseDelay * 2^i
func (m *Manager) backoff(i int) time.Duration {
	return m.baseDelay * time.Duration(1<<uint(i))
}

// setStateFor 仅当代数未变时更新状态，过期的初始化不覆盖新的
func (m *Manager) setStateFor(gen uint64, s State) {
	m.mu.Lock()
	if m.generation == gen {
		m.state = s
	}
	m.mu.Unlock()
}

func (m *Manager) gormLogger(s Settings) gormlogger.Interface {
	level := gormlogger.Error
	if s.IsDevelopment() {
		level = gormlogger.Info
	}
	return gormlogger.New(zap.NewStdLog(m.logger.Named("gorm")), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// HealthCheck 建连（如需要）并执行 SELECT 1
func (m *Manager) HealthCheck(ctx context.Context) (ok bool) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("database health check panicked", zap.Any("panic", r))
			ok = false
		}
		if m.observer != nil {
			m.observer.ObserveHealthCheck(ok, time.Since(start))
		}
	}()

	db, err := m.Acquire(ctx)
	if err != nil {
		m.logger.Warn("database health check failed", zap.Error(err))
		return false
	}
	if err := db.WithContext(ctx).Exec("SELECT 1").Error; err != nil {
		m.logger.Warn("database health check failed", zap.Error(err))
		return false
	}
	return true
}

// Release 关闭连接。没有连接时为空操作。
func (m *Manager) Release(ctx context.Context) error {
	m.mu.Lock()
	db := m.db
	m.db = nil
	m.state = StateDisconnected
	m.attempts = 0
	m.generation++
	m.mu.Unlock()

	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		m.logger.Error("database close failed", zap.Error(err))
		return fmt.Errorf("close database: %w", err)
	}
	m.logger.Info("database connection closed")
	return nil
}

// State 当前连接状态
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Stats 返回连接状态与连接池统计
func (m *Manager) Stats() PoolStats {
	m.mu.RLock()
	db, state, attempts := m.db, m.state, m.attempts
	m.mu.RUnlock()

	if db == nil {
		return PoolStats{State: state.String(), Attempts: attempts}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return PoolStats{State: state.String(), Attempts: attempts}
	}
	return newPoolStats(state, attempts, sqlDB.Stats())
}

// WatchHealth 周期性健康检查，直到 ctx 结束
func (m *Manager) WatchHealth(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, m.pingTimeout)
			ok := m.HealthCheck(checkCtx)
			cancel()
			if ok != healthy {
				if ok {
					m.logger.Info("database health recovered")
				} else {
					m.logger.Warn("database became unhealthy")
				}
				healthy = ok
			}
		}
	}
}

var _ Connector = (*Manager)(nil)
