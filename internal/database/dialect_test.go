package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
)

func TestDSNFromURL(t *testing.T) {
	tests := []struct {
		url    string
		driver Driver
		dsn    string
	}{
		{"postgres://u:p@db:5432/loans?sslmode=disable", DriverPostgres, "postgres://u:p@db:5432/loans?sslmode=disable"},
		{"postgresql://u@db/loans", DriverPostgres, "postgresql://u@db/loans"},
		{"mysql://u:p@tcp(db:3306)/loans", DriverMySQL, "u:p@tcp(db:3306)/loans?parseTime=true"},
		{"mysql://u:p@tcp(db:3306)/loans?charset=utf8mb4", DriverMySQL, "u:p@tcp(db:3306)/loans?charset=utf8mb4&parseTime=true"},
		{"mysql://u@tcp(db)/loans?parseTime=false", DriverMySQL, "u@tcp(db)/loans?parseTime=false"},
		{"sqlite://loanflow.db", DriverSQLite, "loanflow.db"},
		{"sqlite::memory:", DriverSQLite, ":memory:"},
		{"file:loanflow.db?cache=shared", DriverSQLite, "file:loanflow.db?cache=shared"},
		{"  postgres://trimmed  ", DriverPostgres, "postgres://trimmed"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			driver, dsn, err := DSNFromURL(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.driver, driver)
			assert.Equal(t, tt.dsn, dsn)
		})
	}
}

func TestDriverFromURL_Unsupported(t *testing.T) {
	for _, raw := range []string{"redis://localhost", "mongodb://db/loans", "loans.db"} {
		_, err := DriverFromURL(raw)
		require.Error(t, err, raw)
		assert.True(t, IsConfigurationError(err), raw)
	}
}

func TestDialectorFor(t *testing.T) {
	d, err := DialectorFor("postgres://u@db/loans")
	require.NoError(t, err)
	assert.IsType(t, &postgres.Dialector{}, d)

	d, err = DialectorFor("mysql://u@tcp(db)/loans")
	require.NoError(t, err)
	assert.IsType(t, &mysql.Dialector{}, d)

	d, err = DialectorFor("sqlite://loans.db")
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Dialector{}, d)

	_, err = DialectorFor("oracle://db")
	assert.Error(t, err)
}

func TestErrors_Messages(t *testing.T) {
	cfgErr := &ConfigurationError{Key: "DATABASE_URL", Reason: "connection target is not configured"}
	assert.Equal(t, "database configuration error: DATABASE_URL: connection target is not configured", cfgErr.Error())

	connErr := &ConnectionError{Attempts: 3, Cause: assert.AnError}
	assert.Contains(t, connErr.Error(), "failed to connect to database after 3 attempts")
	assert.ErrorIs(t, connErr, assert.AnError)
	assert.True(t, IsConnectionError(connErr))
	assert.False(t, IsConfigurationError(connErr))
}
