package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/BaSui01/loanflow/internal/models"
)

// NewTestDB 每个测试独立的内存 SQLite（纯 Go 驱动），已建好全部表
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	// 共享缓存的内存库在多连接并发写时会报 table is locked
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// Connector 固定返回同一个连接的 database.Connector
type Connector struct {
	DB  *gorm.DB
	Err error
}

// NewConnector 包装测试库
func NewConnector(db *gorm.DB) *Connector {
	return &Connector{DB: db}
}

// Acquire 返回 DB，或预设的错误
func (c *Connector) Acquire(context.Context) (*gorm.DB, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return c.DB, nil
}

// HealthCheck Err 为空即健康
func (c *Connector) HealthCheck(context.Context) bool {
	return c.Err == nil && c.DB != nil
}

// Release 测试库由 t.Cleanup 关闭
func (c *Connector) Release(context.Context) error { return nil }
