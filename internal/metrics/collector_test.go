package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/loanflow/internal/database"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector_IndependentRegistries(t *testing.T) {
	// 相同 namespace 的两个 Collector 不会冲突
	a := NewCollector("loanflow", zap.NewNop())
	b := NewCollector("loanflow", zap.NewNop())
	assert.NotSame(t, a.Registry(), b.Registry())
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	c := NewCollector(nextTestNamespace(), zap.NewNop())

	c.RecordHTTPRequest("GET", "/api/v1/loan-types", 200, 100*time.Millisecond, 0, 2048)
	c.RecordHTTPRequest("GET", "/api/v1/loan-types", 201, 50*time.Millisecond, 0, 1024)
	c.RecordHTTPRequest("POST", "/api/v1/loan-types", 400, 10*time.Millisecond, 512, 128)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/api/v1/loan-types", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/api/v1/loan-types", "4xx")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.httpRequestDuration))
}

func TestCollector_DatabaseObserver(t *testing.T) {
	c := NewCollector(nextTestNamespace(), zap.NewNop())
	var _ database.Observer = c

	c.ObserveConnectAttempt(1, errors.New("refused"), 10*time.Millisecond)
	c.ObserveConnectAttempt(2, nil, 5*time.Millisecond)
	c.ObserveHealthCheck(true, time.Millisecond)
	c.ObserveHealthCheck(false, time.Millisecond)
	c.ObserveHealthCheck(false, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.dbConnectAttempts.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.dbConnectAttempts.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.dbConnectionAttempts))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.dbHealthChecks.WithLabelValues("failure")))

	c.RecordDBStats(database.PoolStats{OpenConnections: 4, Idle: 3, InUse: 1})
	assert.Equal(t, 4.0, testutil.ToFloat64(c.dbConnectionsOpen))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.dbConnectionsIdle))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.dbConnectionsInUse))
}

func TestCollector_ValidationAuditCache(t *testing.T) {
	c := NewCollector(nextTestNamespace(), zap.NewNop())

	c.ObserveValidation("loanType.create", false, 3)
	c.ObserveValidation("loanType.create", true, 0)
	c.ObserveAudit("ok")
	c.ObserveAudit("dropped")
	c.ObserveCache("loan-types", true)
	c.ObserveCache("loan-types", false)
	c.ObserveCache("loan-types", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.validationsTotal.WithLabelValues("loanType.create", "failure")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.validationIssues.WithLabelValues("loanType.create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.auditEntriesTotal.WithLabelValues("dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheHits.WithLabelValues("loan-types")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheMisses.WithLabelValues("loan-types")))
}

func TestCollector_Handler(t *testing.T) {
	ns := nextTestNamespace()
	c := NewCollector(ns, zap.NewNop())
	c.ObserveAudit("ok")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, ns+`_audit_entries_total{result="ok"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{503, "5xx"},
		{100, "unknown_100"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusCode(tt.code))
	}
}
