package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- DefaultConfig aggregate ---

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.NotEqual(t, AppConfig{}, cfg.App)
	assert.NotEqual(t, ServerConfig{}.HTTPPort, cfg.Server.HTTPPort)
	assert.NotEqual(t, DatabaseConfig{}, cfg.Database)
	assert.NotEqual(t, RedisConfig{}, cfg.Redis)
	assert.NotEqual(t, AuditConfig{}, cfg.Audit)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)
	// JWT 密钥必须由部署方提供
	assert.Empty(t, cfg.JWT.Secret)
	assert.Equal(t, "loanflow", cfg.JWT.Issuer)
	assert.Equal(t, 8*time.Hour, cfg.JWT.AccessTokenTTL)
}

// --- Individual Default*Config functions ---

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.Equal(t, 5000, cfg.HTTPPort)
	assert.Equal(t, 9091, cfg.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.Len(t, cfg.CORSAllowedOrigins, 2)
	// 15 分钟窗口 100 次请求
	assert.InDelta(t, 100.0/900.0, cfg.RateLimitRPS, 1e-9)
	assert.Equal(t, 100, cfg.RateLimitBurst)
}

func TestDefaultDatabaseConfig(t *testing.T) {
	cfg := DefaultDatabaseConfig()
	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
	assert.Equal(t, 3, cfg.ConnectAttempts)
	assert.Equal(t, time.Second, cfg.ConnectBaseDelay)
	assert.False(t, cfg.AutoMigrate)
}

func TestDefaultAuditConfig(t *testing.T) {
	cfg := DefaultAuditConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 256, cfg.QueueSize)
}

func TestDefaultTelemetryConfig(t *testing.T) {
	cfg := DefaultTelemetryConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "loanflow", cfg.ServiceName)
	assert.InDelta(t, 0.1, cfg.SampleRate, 1e-9)
}

func TestAppConfig_IsDevelopment(t *testing.T) {
	assert.True(t, AppConfig{Env: "development"}.IsDevelopment())
	assert.True(t, AppConfig{Env: "Development"}.IsDevelopment())
	assert.False(t, AppConfig{Env: "production"}.IsDevelopment())
	assert.False(t, AppConfig{}.IsDevelopment())
}
