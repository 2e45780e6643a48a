package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/BaSui01/loanflow/internal/database"
)

// =============================================================================
// 📦 内嵌迁移文件
// =============================================================================

//go:embed migrations/postgres/*.sql migrations/mysql/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// =============================================================================
// 🏷️ 类型
// =============================================================================

// MigrationStatus 单个迁移的状态
type MigrationStatus struct {
	Version uint
	Name    string
	// Tables 该迁移建表或建索引涉及的业务表（排序去重）
	Tables  []string
	Applied bool
	Dirty   bool
}

// MigrationInfo 当前迁移状态汇总
type MigrationInfo struct {
	CurrentVersion    uint
	Dirty             bool
	TotalMigrations   int
	AppliedMigrations int
	PendingMigrations int
}

// Config 迁移器配置
type Config struct {
	// DatabaseURL 与连接管理器使用同一个 URL（postgres://、mysql://、sqlite://）
	DatabaseURL string

	// TableName 版本表名，默认 schema_migrations
	TableName string

	// LockTimeout 获取迁移锁的超时
	LockTimeout time.Duration
}

// Migrator 数据库迁移接口
type Migrator interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	DownAll(ctx context.Context) error
	// Steps 正数前进，负数回滚
	Steps(ctx context.Context, n int) error
	Goto(ctx context.Context, version uint) error
	Force(ctx context.Context, version int) error
	Version(ctx context.Context) (uint, bool, error)
	Status(ctx context.Context) ([]MigrationStatus, error)
	Info(ctx context.Context) (*MigrationInfo, error)
	Close() error
}

// =============================================================================
// 🛠️ 默认实现（golang-migrate）
// =============================================================================

// DefaultMigrator 基于 golang-migrate 的 Migrator 实现
type DefaultMigrator struct {
	config  Config
	driver  database.Driver
	migrate *migrate.Migrate
	db      *sql.DB
}

// NewMigrator 创建迁移器并连接数据库
func NewMigrator(cfg *Config) (*DefaultMigrator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, errors.New("database URL is required")
	}

	c := *cfg
	if c.TableName == "" {
		c.TableName = "schema_migrations"
	}
	if c.LockTimeout == 0 {
		c.LockTimeout = 15 * time.Second
	}

	driver, dsn, err := database.DSNFromURL(c.DatabaseURL)
	if err != nil {
		return nil, err
	}

	m := &DefaultMigrator{config: c, driver: driver}
	if err := m.init(dsn); err != nil {
		return nil, fmt.Errorf("failed to initialize migrator: %w", err)
	}
	return m, nil
}

// Driver 数据库类型
func (m *DefaultMigrator) Driver() database.Driver { return m.driver }

func (m *DefaultMigrator) init(dsn string) error {
	db, err := openDatabase(m.driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	m.db = db

	dbDriver, err := m.databaseDriver()
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	src, err := sourceDriver(m.driver)
	if err != nil {
		_ = dbDriver.Close()
		return fmt.Errorf("failed to create source driver: %w", err)
	}

	m.migrate, err = migrate.NewWithInstance("iofs", src, string(m.driver), dbDriver)
	if err != nil {
		_ = dbDriver.Close()
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.migrate.LockTimeout = m.config.LockTimeout
	return nil
}

// openDatabase 打开迁移专用连接
//
// postgres 由 lib/pq 注册 "postgres"；mysql 需要 multiStatements；
// sqlite 使用纯 Go 的 modernc 驱动（驱动名 "sqlite"）。
func openDatabase(driver database.Driver, dsn string) (*sql.DB, error) {
	var driverName string
	switch driver {
	case database.DriverPostgres:
		driverName = "postgres"
	case database.DriverMySQL:
		driverName = "mysql"
		if !strings.Contains(dsn, "multiStatements=") {
			dsn += "&multiStatements=true"
		}
	case database.DriverSQLite:
		driverName = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported database type: %s", driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func (m *DefaultMigrator) databaseDriver() (migratedb.Driver, error) {
	switch m.driver {
	case database.DriverPostgres:
		return postgres.WithInstance(m.db, &postgres.Config{MigrationsTable: m.config.TableName})
	case database.DriverMySQL:
		return mysql.WithInstance(m.db, &mysql.Config{MigrationsTable: m.config.TableName})
	case database.DriverSQLite:
		return sqlite.WithInstance(m.db, &sqlite.Config{MigrationsTable: m.config.TableName})
	default:
		return nil, fmt.Errorf("unsupported database type: %s", m.driver)
	}
}

func sourceDriver(driver database.Driver) (source.Driver, error) {
	return iofs.New(migrationsFS, MigrationsPath(driver))
}

// Up 执行全部未应用的迁移
func (m *DefaultMigrator) Up(ctx context.Context) error {
	if err := m.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Down 回滚最近一个迁移
func (m *DefaultMigrator) Down(ctx context.Context) error {
	if err := m.migrate.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// DownAll 回滚全部迁移
func (m *DefaultMigrator) DownAll(ctx context.Context) error {
	if err := m.migrate.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down all failed: %w", err)
	}
	return nil
}

// Steps 前进或回滚 n 个迁移
func (m *DefaultMigrator) Steps(ctx context.Context, n int) error {
	if err := m.migrate.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration steps failed: %w", err)
	}
	return nil
}

// Goto 迁移到指定版本
func (m *DefaultMigrator) Goto(ctx context.Context, version uint) error {
	if err := m.migrate.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration goto failed: %w", err)
	}
	return nil
}

// Force 只改版本号，不执行迁移（用于修复 dirty 状态）
func (m *DefaultMigrator) Force(ctx context.Context, version int) error {
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("migration force failed: %w", err)
	}
	return nil
}

// Version 当前版本；未执行过任何迁移时返回 0
func (m *DefaultMigrator) Version(ctx context.Context) (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get version: %w", err)
	}
	return version, dirty, nil
}

// Status 全部迁移的状态
func (m *DefaultMigrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	current, dirty, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	files, err := availableMigrations(m.driver)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(files))
	for _, f := range files {
		statuses = append(statuses, MigrationStatus{
			Version: f.version,
			Name:    f.name,
			Tables:  f.tables,
			Applied: f.version <= current,
			Dirty:   dirty && f.version == current,
		})
	}
	return statuses, nil
}

// Info 迁移状态汇总
func (m *DefaultMigrator) Info(ctx context.Context) (*MigrationInfo, error) {
	current, dirty, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	files, err := availableMigrations(m.driver)
	if err != nil {
		return nil, err
	}

	applied := 0
	for _, f := range files {
		if f.version <= current {
			applied++
		}
	}
	return &MigrationInfo{
		CurrentVersion:    current,
		Dirty:             dirty,
		TotalMigrations:   len(files),
		AppliedMigrations: applied,
		PendingMigrations: len(files) - applied,
	}, nil
}

// Close 关闭迁移器
func (m *DefaultMigrator) Close() error {
	if m.migrate == nil {
		return nil
	}
	sourceErr, dbErr := m.migrate.Close()
	if err := errors.Join(sourceErr, dbErr); err != nil {
		return fmt.Errorf("failed to close migrator: %w", err)
	}
	return nil
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

type migrationFile struct {
	version uint
	name    string
	tables  []string
}

var (
	createTablePattern = regexp.MustCompile("(?i)\\bCREATE\\s+TABLE\\s+(?:IF\\s+NOT\\s+EXISTS\\s+)?[`\"]?(\\w+)")
	createIndexPattern = regexp.MustCompile("(?i)\\bCREATE\\s+(?:UNIQUE\\s+)?INDEX\\s+(?:IF\\s+NOT\\s+EXISTS\\s+)?\\w+\\s+ON\\s+[`\"]?(\\w+)")
)

// touchedTables 从 up 脚本中提取 CREATE TABLE 与 CREATE INDEX ... ON 的表名
func touchedTables(script string) []string {
	seen := make(map[string]bool)
	var tables []string
	for _, re := range []*regexp.Regexp{createTablePattern, createIndexPattern} {
		for _, m := range re.FindAllStringSubmatch(script, -1) {
			name := strings.ToLower(m[1])
			if !seen[name] {
				seen[name] = true
				tables = append(tables, name)
			}
		}
	}
	sort.Strings(tables)
	return tables
}

// availableMigrations 按版本排序的内嵌迁移
func availableMigrations(driver database.Driver) ([]migrationFile, error) {
	entries, err := fs.ReadDir(migrationsFS, MigrationsPath(driver))
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	seen := make(map[uint]bool)
	var files []migrationFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		// 000001_init_schema.up.sql
		parts := strings.SplitN(name, "_", 2)
		if len(parts) < 2 {
			continue
		}
		version, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil || seen[uint(version)] {
			continue
		}
		seen[uint(version)] = true

		script, err := fs.ReadFile(migrationsFS, path.Join(MigrationsPath(driver), name))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		files = append(files, migrationFile{
			version: uint(version),
			name:    strings.TrimSuffix(parts[1], ".up.sql"),
			tables:  touchedTables(string(script)),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}

// MigrationsPath 内嵌文件系统中某类数据库的迁移目录
func MigrationsPath(driver database.Driver) string {
	return path.Join("migrations", string(driver))
}
