// Package config 提供 LoanFlow 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → LOANFLOW_* 环境变量 的顺序叠加，
// 并兼容部署平台常用的 DATABASE_URL、APP_ENV、JWT_SECRET 裸变量。
//
// Reloader 持有当前生效的配置快照。FileWatcher 轮询配置文件的
// 修改时间与大小，变化稳定后触发 Reloader.Reload；新配置校验失败时
// 保留旧快照。回调收到发生变化的顶层分区名，由调用方决定哪些分区
// 可以即时生效（日志级别、下一次数据库连接），哪些需要重启。
package config
