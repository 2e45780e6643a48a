package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func connectedManager(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	mock, _, dial, _ := mockDialector(t)
	mock.ExpectPing()

	m := NewManager(testSettings, WithDialector(dial))
	_, err := m.Acquire(context.Background())
	require.NoError(t, err)
	return m, mock
}

func TestWithTransaction_Commit(t *testing.T) {
	m, mock := connectedManager(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE loan_types").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectClose()

	err := WithTransaction(context.Background(), m, func(tx *gorm.DB) error {
		return tx.Exec("UPDATE loan_types SET is_active = false").Error
	})
	require.NoError(t, err)

	require.NoError(t, m.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_Rollback(t *testing.T) {
	m, mock := connectedManager(t)
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectClose()

	boom := errors.New("boom")
	err := WithTransaction(context.Background(), m, func(*gorm.DB) error { return boom })
	assert.ErrorIs(t, err, boom)

	require.NoError(t, m.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_AcquireFailure(t *testing.T) {
	m := NewManager(StaticSettings("", ""))
	called := false
	err := WithTransaction(context.Background(), m, func(*gorm.DB) error {
		called = true
		return nil
	})
	assert.True(t, IsConfigurationError(err))
	assert.False(t, called)
}

func TestWithTransactionRetry_RetriesDeadlock(t *testing.T) {
	m, mock := connectedManager(t)
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectClose()

	attempts := 0
	err := WithTransactionRetry(context.Background(), m, 3, nil, func(*gorm.DB) error {
		attempts++
		if attempts == 1 {
			return &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	require.NoError(t, m.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransactionRetry_StopsOnPermanentError(t *testing.T) {
	m, mock := connectedManager(t)
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectClose()

	attempts := 0
	err := WithTransactionRetry(context.Background(), m, 3, nil, func(*gorm.DB) error {
		attempts++
		return &pgconn.PgError{Code: "23505", Message: "duplicate key value"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	require.NoError(t, m.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad conn", fmt.Errorf("query: %w", driver.ErrBadConn), true},
		{"pg serialization", &pgconn.PgError{Code: "40001"}, true},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"pg lock not available", &pgconn.PgError{Code: "55P03"}, true},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"mysql deadlock", &mysqldriver.MySQLError{Number: 1213}, true},
		{"mysql lock wait", &mysqldriver.MySQLError{Number: 1205}, true},
		{"mysql duplicate", &mysqldriver.MySQLError{Number: 1062}, false},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"other", errors.New("syntax error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableError(tt.err))
		})
	}
}
