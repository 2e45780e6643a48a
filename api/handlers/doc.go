// Copyright (c) LoanFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 LoanFlow HTTP API 的请求处理器实现。

# 概述

handlers 包实现了贷款产品、分支机构、客户、员工账号、认证与审计日志的
全部端点，以及健康检查和统一的响应/错误处理。所有 Handler 均遵循标准
net/http 接口，数据库连接一律通过 database.Connector 按请求获取。

# 核心类型

  - Validator         — 按 Schema 名称校验 body/query/params，失败时一次返回全部字段问题
  - LoanTypeHandler   — 贷款产品 CRUD、启停与额度试算，列表走 Redis 缓存
  - BranchHandler     — 分支机构，未给出代码时自动生成
  - CustomerHandler   — 客户，按调用方角色限定可见范围，支持改派
  - UserHandler       — 员工账号，非管理员只能修改本人资料
  - AuthHandler       — 登录、个人信息、改密与首个管理员注册
  - AuditHandler      — 审计日志查询
  - HealthHandler     — 存活与就绪探针（/health, /ready）
  - Response          — 统一 JSON 响应结构（success + data + error + errors + timestamp）

# 主要能力

  - 统一响应格式：WriteSuccess / WriteCreated / WriteError / WriteValidationError
  - 领域错误映射：ToAPIError 把 gorm 与 database 错误转换为 types.Error
  - 写接口通过 X-Resource-ID 响应头把被操作记录的 id 交给审计中间件
*/
package handlers
