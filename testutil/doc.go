// Copyright (c) LoanFlow Authors.
// Licensed under the MIT License.

/*
Package testutil 提供 LoanFlow 测试的共享工具。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext
  - 断言工具: AssertJSONEqual / AssertEventuallyTrue / WaitFor
  - HTTP 辅助: JSONRequest 构造请求，DecodeEnvelope 解码统一响应
  - 数据库: NewTestDB 返回已建表的内存 SQLite（纯 Go 驱动），
    Connector 把它包装成 database.Connector

# 子包

  - testutil/fixtures: 分支、用户、贷款产品、客户等样例数据

testutil 不依赖迁移包：两者使用的纯 Go SQLite 驱动注册了相同的驱动名，
不能链接进同一个测试二进制。
*/
package testutil
