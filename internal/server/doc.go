// Copyright (c) LoanFlow Authors.
// Licensed under the MIT License.

/*
Package server 提供 HTTP/HTTPS 服务器生命周期管理。

# 概述

Manager 封装 net/http.Server，负责监听、后台服务、优雅关闭与错误传播。
cmd/loanflow 为 API 与 metrics 各创建一个 Manager，信号处理与关闭顺序
由调用方编排。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务；Config.TLSConfig
    非空时使用 TLS 监听。
  - 优雅关闭：Shutdown 在 ShutdownTimeout 内排空进行中的请求，可重复调用。
  - 错误传播：Errors() 返回异步错误通道。
  - 状态查询：Addr 返回实际监听地址（便于 :0 端口测试），IsRunning 查询状态。
*/
package server
