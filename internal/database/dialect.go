package database

import (
	"net/url"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Driver 数据库类型
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

// DriverFromURL 根据 URL 前缀判断数据库类型
//
//	postgres://、postgresql://  → postgres
//	mysql://                    → mysql（去掉前缀后按 go-sql-driver DSN 解析）
//	sqlite://、sqlite:、file:    → sqlite
func DriverFromURL(raw string) (Driver, error) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DriverPostgres, nil
	case strings.HasPrefix(lower, "mysql://"):
		return DriverMySQL, nil
	case strings.HasPrefix(lower, "sqlite:"), strings.HasPrefix(lower, "file:"):
		return DriverSQLite, nil
	}

	scheme := lower
	if u, err := url.Parse(lower); err == nil && u.Scheme != "" {
		scheme = u.Scheme
	}
	return "", &ConfigurationError{Key: "DATABASE_URL", Reason: "unsupported scheme " + quote(scheme)}
}

func quote(s string) string { return "\"" + s + "\"" }

// DSNFromURL 返回驱动可直接使用的 DSN
func DSNFromURL(raw string) (Driver, string, error) {
	raw = strings.TrimSpace(raw)
	driver, err := DriverFromURL(raw)
	if err != nil {
		return "", "", err
	}

	switch driver {
	case DriverMySQL:
		dsn := raw[len("mysql://"):]
		if !strings.Contains(dsn, "parseTime=") {
			if strings.Contains(dsn, "?") {
				dsn += "&parseTime=true"
			} else {
				dsn += "?parseTime=true"
			}
		}
		return driver, dsn, nil
	case DriverSQLite:
		switch {
		case strings.HasPrefix(raw, "sqlite://"):
			return driver, raw[len("sqlite://"):], nil
		case strings.HasPrefix(raw, "sqlite:"):
			return driver, raw[len("sqlite:"):], nil
		}
		return driver, raw, nil
	default:
		return driver, raw, nil
	}
}

// DialectorFor 为连接 URL 构造 GORM Dialector
func DialectorFor(raw string) (gorm.Dialector, error) {
	driver, dsn, err := DSNFromURL(raw)
	if err != nil {
		return nil, err
	}
	switch driver {
	case DriverMySQL:
		return mysql.New(mysql.Config{DSN: dsn, SkipInitializeWithVersion: true}), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return postgres.Open(dsn), nil
	}
}
