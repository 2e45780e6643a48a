package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/loanflow/api/handlers"
	"github.com/BaSui01/loanflow/api/validators"
	"github.com/BaSui01/loanflow/config"
	"github.com/BaSui01/loanflow/internal/audit"
	"github.com/BaSui01/loanflow/internal/auth"
	"github.com/BaSui01/loanflow/internal/cache"
	"github.com/BaSui01/loanflow/internal/database"
	"github.com/BaSui01/loanflow/internal/metrics"
	"github.com/BaSui01/loanflow/internal/server"
	"github.com/BaSui01/loanflow/internal/telemetry"
	"github.com/BaSui01/loanflow/internal/tlsutil"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Deps serve 命令预先建立的依赖
type Deps struct {
	DB        *database.Manager
	Collector *metrics.Collector
	Telemetry *telemetry.Providers
	Reloader  *config.Reloader
}

// Server 是 LoanFlow 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	deps   Deps

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 可选依赖
	cache    *cache.Manager
	recorder *audit.Recorder

	authn     *auth.Authenticator
	validator *handlers.Validator

	// 后台任务（限流清理、健康巡检、连接池指标）
	bgCancel context.CancelFunc
	wg       sync.WaitGroup

	shutdownOnce sync.Once
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, deps Deps) *Server {
	return &Server{cfg: cfg, logger: logger, deps: deps}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 初始化依赖并启动 API 与指标服务器
func (s *Server) Start(ctx context.Context) error {
	bgCtx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if err := s.initComponents(ctx); err != nil {
		return err
	}

	// HTTP 服务器
	if err := s.startHTTPServer(bgCtx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// Metrics 服务器
	if s.cfg.Server.MetricsPort > 0 {
		if err := s.startMetricsServer(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	// 数据库健康巡检与连接池指标
	s.startBackground(bgCtx)

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("cache_enabled", s.cache != nil),
		zap.Bool("audit_enabled", s.recorder != nil),
	)
	return nil
}

// initComponents 创建认证、缓存、审计与校验组件
func (s *Server) initComponents(ctx context.Context) error {
	authn, err := auth.NewAuthenticator(s.cfg.JWT, s.logger)
	if err != nil {
		return fmt.Errorf("failed to init authenticator: %w", err)
	}
	s.authn = authn

	// Redis 不可用时列表直接回源
	if s.cfg.Redis.Enabled {
		c, err := cache.NewManager(ctx, s.cfg.Redis, s.logger)
		if err != nil {
			s.logger.Warn("redis unavailable, list cache disabled", zap.Error(err))
		} else {
			s.cache = c.WithObserver(s.deps.Collector)
		}
	}

	if s.cfg.Audit.Enabled {
		s.recorder = audit.NewRecorder(s.deps.DB, s.cfg.Audit.Workers, s.cfg.Audit.QueueSize, s.logger).
			WithObserver(s.deps.Collector)
	}

	s.validator = handlers.NewValidator(validators.Default(), s.logger).WithObserver(s.deps.Collector)
	return nil
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// routes 注册全部路由
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// 健康检查
	health := handlers.NewHealthHandler(s.logger)
	health.RegisterCheck(handlers.NewDatabaseHealthCheck(s.deps.DB))
	if s.cache != nil {
		health.RegisterCheck(handlers.NewRedisHealthCheck(s.cache.Ping))
	}
	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /ping", health.HandlePing)
	mux.HandleFunc("GET /ready", health.HandleReady)
	mux.HandleFunc("GET /version", health.HandleVersion(Version, BuildTime, GitCommit))

	db := s.deps.DB
	var listCache handlers.ListCache
	if s.cache != nil {
		listCache = s.cache
	}

	authH := handlers.NewAuthHandler(db, s.authn.Issuer(s.cfg.JWT.AccessTokenTTL), s.logger)
	loanTypes := handlers.NewLoanTypeHandler(db, listCache, s.logger)
	branches := handlers.NewBranchHandler(db, s.logger)
	customers := handlers.NewCustomerHandler(db, s.logger)
	users := handlers.NewUserHandler(db, s.logger)
	audits := handlers.NewAuditHandler(db, s.logger)

	// 公开接口
	s.public(mux, "POST /api/v1/auth/login", validators.AuthLogin, authH.HandleLogin)
	s.public(mux, "POST /api/v1/auth/register", validators.AuthRegister, authH.HandleRegister, s.track("User", audit.ActionCreate))

	// 当前用户
	s.api(mux, "GET /api/v1/auth/me", "", authH.HandleMe, auth.RequireStaff)
	s.api(mux, "PUT /api/v1/auth/change-password", validators.AuthChangePassword, authH.HandleChangePassword,
		auth.RequireStaff, s.track("User", "CHANGE_PASSWORD"))

	// 贷款产品
	s.api(mux, "GET /api/v1/loan-types", "", loanTypes.HandleList, auth.RequireStaff)
	s.api(mux, "GET /api/v1/loan-types/{id}", validators.LoanTypeByID, loanTypes.HandleGet, auth.RequireStaff)
	s.api(mux, "POST /api/v1/loan-types/{id}/quote", validators.LoanTypeQuote, loanTypes.HandleQuote, auth.RequireStaff)
	s.api(mux, "POST /api/v1/loan-types", validators.LoanTypeCreate, loanTypes.HandleCreate,
		auth.RequireAdmin, s.track("LoanType", audit.ActionCreate))
	s.api(mux, "PUT /api/v1/loan-types/{id}", validators.LoanTypeUpdate, loanTypes.HandleUpdate,
		auth.RequireAdmin, s.track("LoanType", audit.ActionUpdate))
	s.api(mux, "PUT /api/v1/loan-types/{id}/toggle-status", validators.LoanTypeByID, loanTypes.HandleToggleStatus,
		auth.RequireAdmin, s.track("LoanType", audit.ActionToggle))
	s.api(mux, "DELETE /api/v1/loan-types/{id}", validators.LoanTypeByID, loanTypes.HandleDelete,
		auth.RequireAdmin, s.track("LoanType", audit.ActionDelete))

	// 分支机构
	s.api(mux, "GET /api/v1/branches", "", branches.HandleList, auth.RequireStaff)
	s.api(mux, "GET /api/v1/branches/{id}", validators.BranchByID, branches.HandleGet, auth.RequireStaff)
	s.api(mux, "POST /api/v1/branches", validators.BranchCreate, branches.HandleCreate,
		auth.RequireAdmin, s.track("Branch", audit.ActionCreate))
	s.api(mux, "PUT /api/v1/branches/{id}", validators.BranchUpdate, branches.HandleUpdate,
		auth.RequireAdmin, s.track("Branch", audit.ActionUpdate))

	// 客户
	s.api(mux, "GET /api/v1/customers", validators.CustomerList, customers.HandleList, auth.RequireStaff)
	s.api(mux, "GET /api/v1/customers/{id}", validators.CustomerByID, customers.HandleGet, auth.RequireStaff)
	s.api(mux, "POST /api/v1/customers", validators.CustomerCreate, customers.HandleCreate,
		auth.RequireStaff, s.track("Customer", audit.ActionCreate))
	s.api(mux, "PUT /api/v1/customers/{id}", validators.CustomerUpdate, customers.HandleUpdate,
		auth.RequireStaff, s.track("Customer", audit.ActionUpdate))
	s.api(mux, "POST /api/v1/customers/{id}/reassign", validators.CustomerReassign, customers.HandleReassign,
		auth.RequireSupervisor, s.track("Customer", audit.ActionAssign))

	// 用户
	s.api(mux, "GET /api/v1/users", validators.UserList, users.HandleList, auth.RequireSupervisor)
	s.api(mux, "POST /api/v1/users", validators.UserCreate, users.HandleCreate,
		auth.RequireAdmin, s.track("User", audit.ActionCreate))
	s.api(mux, "PUT /api/v1/users/{id}", validators.UserUpdate, users.HandleUpdate,
		auth.RequireAdminOrSelf("id"), s.track("User", audit.ActionUpdate))

	// 审计日志
	s.api(mux, "GET /api/v1/audit-logs", validators.AuditLogList, audits.HandleList, auth.RequireAdmin)

	return mux
}

// public 注册无需登录的路由
func (s *Server) public(mux *http.ServeMux, pattern, schema string, h http.HandlerFunc, mw ...Middleware) {
	mux.Handle(pattern, Chain(s.validated(schema, h), mw...))
}

// api 注册需要登录的路由：认证 → 角色 → 审计 → 校验 → handler
func (s *Server) api(mux *http.ServeMux, pattern, schema string, h http.HandlerFunc, mw ...Middleware) {
	chain := append([]Middleware{s.authn.Authenticate}, mw...)
	mux.Handle(pattern, Chain(s.validated(schema, h), chain...))
}

func (s *Server) validated(schema string, h http.HandlerFunc) http.Handler {
	if schema == "" {
		return h
	}
	return s.validator.Wrap(schema, h)
}

// track 审计关闭时直接透传
func (s *Server) track(entity, action string) Middleware {
	if s.recorder == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return s.recorder.Track(entity, action)
}

// startHTTPServer 启动 API 服务器
func (s *Server) startHTTPServer(bgCtx context.Context) error {
	handler := Chain(s.routes(),
		Recovery(s.logger),
		RequestID(),
		OTelTracing(),
		SecurityHeaders(s.cfg.Server.TLSCertFile != ""),
		MetricsMiddleware(s.deps.Collector),
		RequestLogger(s.logger),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(bgCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
		MaxBodyBytes(s.cfg.Server.MaxBodyBytes),
	)

	serverConfig := server.Config{
		Name:            "api",
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}
	if s.cfg.Server.TLSCertFile != "" {
		tlsCfg, err := tlsutil.ServerTLSConfig(s.cfg.Server.TLSCertFile, s.cfg.Server.TLSKeyFile)
		if err != nil {
			return err
		}
		serverConfig.TLSConfig = tlsCfg
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	return s.httpManager.Start()
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.deps.Collector.Handler())

	s.metricsManager = server.NewManager(mux, server.Config{
		Name:            "metrics",
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}, s.logger)
	return s.metricsManager.Start()
}

// startBackground 启动数据库巡检与连接池指标采集
func (s *Server) startBackground(ctx context.Context) {
	if interval := s.cfg.Database.HealthCheckInterval; interval > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.deps.DB.WatchHealth(ctx, interval)
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.deps.Collector.RecordDBStats(s.deps.DB.Stats())
			}
		}
	}()
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待信号或服务器异常退出，然后优雅关闭
func (s *Server) WaitForShutdown(ctx context.Context) {
	var metricsErrs <-chan error
	if s.metricsManager != nil {
		metricsErrs = s.metricsManager.Errors()
	}

	select {
	case <-ctx.Done():
		s.logger.Info("Shutdown signal received")
	case err := <-s.httpManager.Errors():
		s.logger.Error("HTTP server failed", zap.Error(err))
	case err := <-metricsErrs:
		s.logger.Error("Metrics server failed", zap.Error(err))
	}

	s.Shutdown()
}

// Shutdown 按顺序关闭：HTTP → Metrics → 审计队列 → 数据库 → Redis → 遥测
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(s.shutdown)
}

func (s *Server) shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// 0. 停止配置监听与后台任务
	if s.deps.Reloader != nil {
		s.deps.Reloader.Stop()
	}
	if s.bgCancel != nil {
		s.bgCancel()
	}

	// 1. 关闭 HTTP 服务器
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 2. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	s.wg.Wait()

	// 3. 写完已排队的审计记录
	if s.recorder != nil {
		if err := s.recorder.Close(ctx); err != nil {
			s.logger.Error("Audit recorder shutdown error", zap.Error(err))
		}
	}

	// 4. 释放数据库
	if s.deps.DB != nil {
		if err := s.deps.DB.Release(ctx); err != nil {
			s.logger.Error("Database release error", zap.Error(err))
		}
	}

	// 5. 关闭 Redis
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Error("Redis close error", zap.Error(err))
		}
	}

	// 6. 刷新遥测
	if err := s.deps.Telemetry.Shutdown(ctx); err != nil {
		s.logger.Error("Telemetry shutdown error", zap.Error(err))
	}

	s.logger.Info("Graceful shutdown completed")
}
