// Package models 定义 LoanFlow 的 GORM 表模型与领域枚举（角色、期限单位）。
//
// 表结构由 internal/migration 中的 SQL 迁移维护；AutoMigrate 仅用于测试。
package models
