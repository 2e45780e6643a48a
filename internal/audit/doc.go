// Copyright (c) LoanFlow Authors.
// Licensed under the MIT License.

// Package audit 把写操作异步记录到 audit_logs 表。
//
// Recorder.Track 作为路由中间件使用：handler 返回 2xx 后，
// 记录动作、实体、记录 id、操作人、IP 与 User-Agent。
// 写入在后台任务池中完成，失败只记日志。
package audit
