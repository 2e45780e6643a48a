// Copyright (c) LoanFlow Authors.
// Licensed under the MIT License.

// Package auth 校验 Bearer JWT（HS256），并按角色限制路由访问。
// Sign 与 Issuer 供登录接口签发访问令牌。
package auth
