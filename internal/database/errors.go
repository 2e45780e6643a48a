package database

import (
	"errors"
	"fmt"
)

// ErrReleased 初始化尚未完成时连接已被 Release
var ErrReleased = errors.New("database connection released during initialization")

// ConfigurationError 缺少或无法识别连接参数。致命，不重试。
type ConfigurationError struct {
	Key    string
	Reason string
	Cause  error
}

// Error 实现 error
func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("database configuration error: %s: %s", e.Key, e.Reason)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap 返回底层错误
func (e *ConfigurationError) Unwrap() error { return e.Cause }

// ConnectionError 所有建连尝试均失败
type ConnectionError struct {
	Attempts int
	Cause    error
}

// Error 实现 error
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to database after %d attempts: %v", e.Attempts, e.Cause)
}

// Unwrap 返回最后一次尝试的错误
func (e *ConnectionError) Unwrap() error { return e.Cause }

// IsConfigurationError 判断错误链中是否有 ConfigurationError
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsConnectionError 判断错误链中是否有 ConnectionError
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
