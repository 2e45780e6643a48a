/*
包 validation 提供声明式的请求载荷校验。

# 概述

一个 Schema 描述一个请求面（body / query / params）的期望结构。每个分区是
一个 ObjectRule：有序的字段规则加上有序的跨字段约束（Refinement）。
Validate 一次遍历收集全部违规，返回的 Result 要么携带规范化数据，
要么携带违规列表，绝不同时携带两者。

# 核心类型

  - Rule：字段规则接口，Apply 返回规范化值或 Issue。
  - StringRule / NumberRule / EnumRule / DateRule / OneOfRule：内置规则。
  - Bool / BoolLike / NullableRef / Literal：布尔与受控联合表示。
  - ObjectRule：有序字段 + Refinement，可选 Strict 模式拒绝未知字段。
  - Schema / Registry：命名 Schema 与按名称校验。
  - Violation / ValidationError：字段级违规，路径形如 body.maxAmount。

# 规范化

  - BoolLike："true" / "false" 与 true / false 得到相同的 bool。
  - NullableRef：null、"null"、"" 统一为 nil。
  - Number().Int()：规范化为 int64；其余数字为 float64。
  - Date()：规范化为 time.Time。

校验是纯计算：不做 I/O，不依赖共享可变状态，同一输入总是得到同一结果。
*/
package validation
