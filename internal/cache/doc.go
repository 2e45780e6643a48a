// Copyright (c) LoanFlow Authors.
// Licensed under the MIT License.

/*
Package cache 提供基于 Redis 的 JSON 缓存，用于贷款产品等读多写少的列表。

# 核心类型

  - Manager：持有 go-redis 客户端，按 namespace 组织键
    （loanflow:<namespace>:<key>），提供 GetJSON / SetJSON / Invalidate。
  - Observer：命中与未命中回调，由 metrics 包实现。

# 错误语义

  - 未命中返回 ErrCacheMiss，调用方回源数据库。
  - 无法解码的条目同样视为未命中。
  - 关闭后所有操作返回 ErrClosed。
*/
package cache
