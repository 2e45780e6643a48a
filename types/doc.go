// Copyright (c) LoanFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 LoanFlow 服务的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 api、internal 与 cmd
等上层模块提供统一的错误码与 Context 传播约定，以避免循环依赖。

# 核心类型

  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码、Retryable 与 Details
  - contextKey        — 私有的 Context 键类型

# 主要能力

  - Context 传播：WithTraceID / WithRequestID / WithUserID / WithRole / WithBranchID
  - 错误工具链：AsError / GetErrorCode / IsRetryable
  - 常用错误构造：NotFound / BadRequest / Internal
*/
package types
