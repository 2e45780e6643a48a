package database

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPoolConfig(t *testing.T) {
	cfg := DefaultPoolConfig()

	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
	assert.Equal(t, 10*time.Minute, cfg.ConnMaxIdleTime)
	assert.NoError(t, cfg.Validate())
}

func TestPoolConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     PoolConfig
		wantErr bool
	}{
		{"valid", PoolConfig{MaxOpenConns: 10, MaxIdleConns: 2}, false},
		{"idle equals open", PoolConfig{MaxOpenConns: 3, MaxIdleConns: 3}, false},
		{"zero open", PoolConfig{MaxOpenConns: 0}, true},
		{"negative idle", PoolConfig{MaxOpenConns: 5, MaxIdleConns: -1}, true},
		{"idle exceeds open", PoolConfig{MaxOpenConns: 2, MaxIdleConns: 4}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewPoolStats(t *testing.T) {
	stats := newPoolStats(StateConnected, 2, sql.DBStats{
		MaxOpenConnections: 10,
		OpenConnections:    4,
		InUse:              3,
		Idle:               1,
		WaitCount:          7,
		WaitDuration:       time.Second,
	})

	assert.Equal(t, "connected", stats.State)
	assert.Equal(t, 2, stats.Attempts)
	assert.Equal(t, 10, stats.MaxOpenConnections)
	assert.Equal(t, 4, stats.OpenConnections)
	assert.Equal(t, 3, stats.InUse)
	assert.Equal(t, 1, stats.Idle)
	assert.Equal(t, int64(7), stats.WaitCount)
	assert.Equal(t, time.Second, stats.WaitDuration)
}
