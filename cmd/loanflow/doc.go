// Copyright (c) LoanFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 LoanFlow 服务端程序入口。

# 概述

cmd/loanflow 是贷款管理 API 的可执行入口，提供 HTTP API 服务、
数据库迁移、首个管理员初始化、健康检查和版本查询等子命令。
程序支持 YAML 配置文件与 LOANFLOW_* 环境变量、结构化日志（zap）、
Prometheus 指标、OpenTelemetry 追踪以及配置文件热重载。

# 核心类型

  - Server      — 主服务器，管理 API 与 Metrics 双端口及优雅关闭
  - Deps        — serve 命令预先建立的数据库、指标、遥测与配置依赖
  - Middleware  — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、migrate、seed、version、health
  - 启动顺序：先获取数据库连接，配置缺失或无法连接时以退出码 1 结束
  - 中间件链：Recovery、RequestID、OTelTracing、SecurityHeaders、
    MetricsMiddleware、RequestLogger、CORS、RateLimiter（按 IP）、MaxBodyBytes
  - 路由：/api/v1 下的认证、贷款产品、分支、客户、用户与审计日志，
    依次经过 JWT 认证、角色校验、审计记录与请求校验
  - 优雅关闭：HTTP → Metrics → 审计队列 → 数据库 → Redis → 遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
