// Package api 汇总 LoanFlow HTTP API 的约定。
//
// 具体实现位于两个子包：
//
//   - api/handlers   — 各资源的 HTTP handler、统一响应信封与请求校验中间件
//   - api/validators — 按名称注册的请求 schema（body、query、params）
//
// # API 概览
//
// 所有业务接口位于 /api/v1 下：
//   - 认证：login、register（仅在尚无用户时开放）、me、change-password
//   - 贷款产品：列表（Redis 缓存）、详情、创建、更新、启停、软删除、试算
//   - 分支机构、客户（按角色限定可见范围）、员工账号与审计日志
//
// 运维端点 /health、/ready、/ping、/version 不需要认证；
// Prometheus 指标在独立端口的 /metrics 上暴露。
//
// # 认证
//
// 除 login 与 register 外，请求需要携带访问令牌：
//
//	Authorization: Bearer <token>
//
// # 响应信封
//
// 成功：
//
//	{"success": true, "message": "...", "data": {...}, "timestamp": "..."}
//
// 校验失败（400）会列出全部字段问题：
//
//	{"success": false, "message": "Validation failed",
//	 "errors": [{"field": "email", "message": "Invalid email"}]}
//
// 其他错误：
//
//	{"success": false, "error": {"code": "NOT_FOUND", "message": "Customer not found"}}
package api
