// Copyright (c) LoanFlow Authors.
// Licensed under the MIT License.

// Package password 封装员工密码的 bcrypt 哈希与校验。
package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrMismatch 密码与哈希不匹配
var ErrMismatch = errors.New("password does not match")

// Cost bcrypt 计算强度；测试中可调低
var Cost = bcrypt.DefaultCost

// Hash 生成密码哈希
func Hash(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), Cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify 校验密码；不匹配返回 ErrMismatch
func Verify(hash, plain string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	return err
}
