// Copyright (c) LoanFlow Authors.
// Licensed under the MIT License.

/*
Package metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP、数据库、
请求校验、审计与缓存。

# 概述

Collector 使用独立的 prometheus.Registry（同时注册 Go 运行时与进程指标），
通过 Handler 暴露在单独的 metrics 端口上。所有指标按 namespace 隔离，
测试中可以并行创建多个 Collector。

# 观察者

Collector 同时实现以下接口，由 cmd/loanflow 装配:

  - database.Observer：建连尝试与健康检查
  - handlers.ValidationObserver：每次请求校验的结果与问题数
  - audit.Observer：审计写入结果（ok / error / dropped）
  - cache.Observer：缓存命中与未命中
*/
package metrics
