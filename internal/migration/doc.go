// Copyright (c) LoanFlow Authors.
// Licensed under the MIT License.

/*
包 migration 管理数据库 Schema 版本，基于 golang-migrate，
支持 PostgreSQL、MySQL 与 SQLite。

迁移文件通过 embed.FS 内嵌（migrations/<driver>/*.sql），
数据库类型由 DATABASE_URL 的前缀决定，与连接管理器一致。

# 核心类型

  - Migrator / DefaultMigrator：Up、Down、Steps、Goto、Force、
    Version、Status、Info 等操作。
  - CLI：供 loanflow migrate 子命令使用。每次变更前后对比 Status，
    逐条报告应用或回滚的迁移（如 000001_init_schema）及其建表涉及的
    业务表，表名从内嵌的 up 脚本中提取。
  - NewMigratorFromConfig / NewMigratorFromURL：工厂函数。

SQLite 迁移使用纯 Go 的 modernc 驱动，不依赖 CGO。
*/
package migration
