package migration

import (
	"fmt"

	appconfig "github.com/BaSui01/loanflow/config"
)

// NewMigratorFromConfig 使用应用配置中的 DATABASE_URL 创建迁移器
func NewMigratorFromConfig(cfg *appconfig.Config) (*DefaultMigrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	return NewMigratorFromURL(cfg.Database.URL)
}

// NewMigratorFromURL 使用数据库 URL 创建迁移器
func NewMigratorFromURL(dbURL string) (*DefaultMigrator, error) {
	return NewMigrator(&Config{
		DatabaseURL: dbURL,
		TableName:   "schema_migrations",
	})
}
