// =============================================================================
// LoanFlow 主入口
// =============================================================================
// 完整服务入口点，包含 HTTP API、健康检查、Prometheus 指标与数据库迁移
//
// 使用方法:
//
//	loanflow serve                       # 启动服务
//	loanflow serve --config config.yaml  # 指定配置文件
//	loanflow version                     # 显示版本信息
//	loanflow health                      # 健康检查
//	loanflow migrate up                  # 运行数据库迁移
//	loanflow migrate status              # 查看迁移状态
//	loanflow seed --email admin@x.com    # 创建首个管理员与默认分支
// =============================================================================

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"github.com/BaSui01/loanflow/config"
	"github.com/BaSui01/loanflow/internal/auth/password"
	"github.com/BaSui01/loanflow/internal/database"
	"github.com/BaSui01/loanflow/internal/metrics"
	"github.com/BaSui01/loanflow/internal/migration"
	"github.com/BaSui01/loanflow/internal/models"
	"github.com/BaSui01/loanflow/internal/telemetry"
	"github.com/BaSui01/loanflow/internal/tlsutil"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "seed":
		runSeed(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// loadConfig 加载并校验配置
func loadConfig(configPath string) (*config.Loader, *config.Config, error) {
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return loader, cfg, nil
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	_ = fs.Parse(args)

	loader, cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, level := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting LoanFlow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("env", cfg.App.Env),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelProviders, err := telemetry.Init(ctx, cfg.Telemetry, cfg.App.Env, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	// 配置热重载：日志级别立即生效，数据库 URL 在下一次建连时生效
	reloader := config.NewReloader(loader, cfg, logger)
	reloader.OnReload(func(_, next *config.Config, changed []string) {
		for _, section := range changed {
			switch section {
			case "Log":
				level.SetLevel(parseLevel(next.Log.Level))
			case "Database", "App":
			default:
				logger.Warn("config section changed, restart required", zap.String("section", section))
			}
		}
	})
	if *configPath != "" {
		if err := reloader.Watch(ctx, 2*time.Second); err != nil {
			logger.Warn("config hot reload disabled", zap.Error(err))
		}
	}

	collector := metrics.NewCollector("loanflow", logger)
	db := newDatabaseManager(cfg, settingsFrom(reloader), collector, logger)

	// 先拿到数据库连接：配置错误与连接失败都直接退出
	if _, err := db.Acquire(ctx); err != nil {
		switch {
		case database.IsConfigurationError(err):
			logger.Error("database is not configured", zap.Error(err))
		case database.IsConnectionError(err):
			logger.Error("database is unreachable", zap.Error(err))
		default:
			logger.Error("database initialization failed", zap.Error(err))
		}
		_ = logger.Sync()
		os.Exit(1)
	}

	if cfg.Database.AutoMigrate {
		if err := applyMigrations(ctx, cfg.Database.URL, logger); err != nil {
			logger.Error("auto-migrate failed", zap.Error(err))
			_ = db.Release(context.Background())
			_ = logger.Sync()
			os.Exit(1)
		}
	}

	srv := NewServer(cfg, logger, Deps{
		DB:        db,
		Collector: collector,
		Telemetry: otelProviders,
		Reloader:  reloader,
	})
	if err := srv.Start(ctx); err != nil {
		logger.Error("Failed to start server", zap.Error(err))
		srv.Shutdown()
		_ = logger.Sync()
		os.Exit(1)
	}

	srv.WaitForShutdown(ctx)
	logger.Info("LoanFlow stopped")
}

// settingsFrom 每次建连时读取当前生效的配置
func settingsFrom(r *config.Reloader) database.SettingsFunc {
	return func() database.Settings {
		cfg := r.Current()
		return database.Settings{URL: cfg.Database.URL, Env: cfg.App.Env}
	}
}

func newDatabaseManager(cfg *config.Config, settings database.SettingsFunc, observer database.Observer, logger *zap.Logger) *database.Manager {
	return database.NewManager(settings,
		database.WithMaxAttempts(cfg.Database.ConnectAttempts),
		database.WithBaseDelay(cfg.Database.ConnectBaseDelay),
		database.WithPoolConfig(database.PoolConfig{
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		}),
		database.WithLogger(logger),
		database.WithObserver(observer),
	)
}

// applyMigrations 执行全部未应用的迁移
func applyMigrations(ctx context.Context, dbURL string, logger *zap.Logger) error {
	m, err := migration.NewMigratorFromURL(dbURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(ctx); err != nil {
		return err
	}
	version, dirty, err := m.Version(ctx)
	if err != nil {
		return err
	}
	logger.Info("database schema is up to date", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// =============================================================================
// 🌱 seed 命令
// =============================================================================

func runSeed(args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	email := fs.String("email", "", "Admin email")
	pass := fs.String("password", "", "Admin password (defaults to $LOANFLOW_SEED_PASSWORD)")
	branchName := fs.String("branch", "Head Office", "Default branch name")
	_ = fs.Parse(args)

	if *pass == "" {
		*pass = os.Getenv("LOANFLOW_SEED_PASSWORD")
	}
	if *email == "" || len(*pass) < 8 {
		fmt.Fprintln(os.Stderr, "seed requires --email and a password of at least 8 characters")
		os.Exit(1)
	}

	_, cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, _ := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	mgr := newDatabaseManager(cfg, database.StaticSettings(cfg.Database.URL, cfg.App.Env), nil, logger)
	defer func() { _ = mgr.Release(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	created, err := seedAdmin(ctx, mgr, strings.ToLower(strings.TrimSpace(*email)), *pass, *branchName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Seed failed: %v\n", err)
		os.Exit(1)
	}
	if !created {
		fmt.Println("Users already exist, nothing to seed")
		return
	}
	fmt.Println("Admin user and default branch created")
}

// seedAdmin 库中没有用户时创建默认分支与管理员
func seedAdmin(ctx context.Context, conn database.Connector, email, plain, branchName string) (bool, error) {
	db, err := conn.Acquire(ctx)
	if err != nil {
		return false, err
	}
	hash, err := password.Hash(plain)
	if err != nil {
		return false, err
	}

	created := false
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var users int64
		if err := tx.Unscoped().Model(&models.User{}).Count(&users).Error; err != nil {
			return err
		}
		if users > 0 {
			return nil
		}

		branch := models.Branch{Name: branchName, Code: "HQ001", IsActive: true}
		if err := tx.Create(&branch).Error; err != nil {
			return fmt.Errorf("create branch: %w", err)
		}
		admin := models.User{
			Email:        email,
			PasswordHash: hash,
			Role:         models.RoleAdmin,
			FirstName:    "System",
			LastName:     "Admin",
			BranchID:     &branch.ID,
			IsActive:     true,
		}
		if err := tx.Create(&admin).Error; err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		created = true
		return nil
	})
	return created, err
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:5000", "Server address")
	path := fs.String("path", "/health", "Probe path (/health or /ready)")
	_ = fs.Parse(args)

	if err := probe(tlsutil.SecureHTTPClient(5*time.Second), *addr+*path); err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK")
}

func probe(client *http.Client, url string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("LoanFlow %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`LoanFlow - Loan management API server

Usage:
  loanflow <command> [options]

Commands:
  serve     Start the API server
  migrate   Database migration commands
  seed      Create the first admin user and a default branch
  version   Show version information
  health    Check server health
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML)

Migration subcommands:
  migrate up        Apply all pending migrations
  migrate down      Rollback the last migration
  migrate status    Show migration status
  migrate version   Show current migration version
  migrate goto <v>  Migrate to a specific version
  migrate force <v> Force set migration version
  migrate reset     Rollback all migrations

Examples:
  loanflow serve
  loanflow serve --config /etc/loanflow/config.yaml
  loanflow migrate up
  loanflow seed --email admin@example.com
  loanflow health --addr http://localhost:5000 --path /ready
  loanflow version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// initLogger 返回 logger 及其可调级别（供热重载调整）
func initLogger(cfg config.LogConfig) (*zap.Logger, zap.AtomicLevel) {
	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoding = "console"
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             level,
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
		return logger, level
	}
	return logger, level
}
