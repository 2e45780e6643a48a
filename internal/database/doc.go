// Copyright (c) LoanFlow Authors.
// Licensed under the MIT License.

/*
包 database 管理进程内唯一的数据库连接：按需建连、指数退避重试、
健康检查与显式释放。

# 核心类型

  - Connector：对外接口，只有 Acquire、HealthCheck、Release 三个操作。
  - Manager：Connector 的实现。首次 Acquire 时读取 Settings，
    最多尝试 MaxAttempts 次，第 i 次失败后等待 base·2^i。
    并发的首次调用经 singleflight 合并为一次初始化。
  - ConfigurationError：缺少或无法识别连接目标，不重试。
  - ConnectionError：所有尝试均失败，携带尝试次数。
  - PoolConfig / PoolStats：连接池参数与运行统计。

# 其他能力

  - DialectorFor：根据 URL 前缀选择 postgres、mysql 或 sqlite 驱动。
  - WithTransaction / WithTransactionRetry：在共享连接上执行事务，
    死锁、序列化失败等可重试错误按指数退避重试。
  - WatchHealth：后台周期性健康检查，状态变化时输出日志。
*/
package database
