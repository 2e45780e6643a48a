package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/loanflow/internal/database"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器，持有独立的 Registry
type Collector struct {
	registry *prometheus.Registry

	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 数据库指标
	dbConnectAttempts    *prometheus.CounterVec
	dbConnectDuration    prometheus.Histogram
	dbHealthChecks       *prometheus.CounterVec
	dbHealthDuration     prometheus.Histogram
	dbConnectionsOpen    prometheus.Gauge
	dbConnectionsIdle    prometheus.Gauge
	dbConnectionsInUse   prometheus.Gauge
	dbConnectionAttempts prometheus.Gauge

	// 校验指标
	validationsTotal *prometheus.CounterVec
	validationIssues *prometheus.CounterVec

	// 审计指标
	auditEntriesTotal *prometheus.CounterVec

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 数据库指标
	c.dbConnectAttempts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_connect_attempts_total",
			Help:      "Database connection attempts by result",
		},
		[]string{"result"},
	)

	c.dbConnectDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_connect_attempt_duration_seconds",
			Help:      "Duration of a single database connection attempt",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
	)

	c.dbHealthChecks = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_health_checks_total",
			Help:      "Database health checks by result",
		},
		[]string{"result"},
	)

	c.dbHealthDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_health_check_duration_seconds",
			Help:      "Database health check duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	c.dbConnectionsOpen = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections_open",
		Help:      "Number of open database connections",
	})
	c.dbConnectionsIdle = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections_idle",
		Help:      "Number of idle database connections",
	})
	c.dbConnectionsInUse = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections_in_use",
		Help:      "Number of database connections in use",
	})
	c.dbConnectionAttempts = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_last_connect_attempts",
		Help:      "Attempts used by the last successful connection",
	})

	// 校验指标
	c.validationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Request validations by schema and result",
		},
		[]string{"schema", "result"},
	)

	c.validationIssues = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_violations_total",
			Help:      "Field violations reported by schema",
		},
		[]string{"schema"},
	)

	// 审计指标
	c.auditEntriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_entries_total",
			Help:      "Audit entries by write result",
		},
		[]string{"result"},
	)

	// 缓存指标
	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// Registry 返回底层 Registry
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler 暴露 /metrics
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// ObserveConnectAttempt 实现 database.Observer
func (c *Collector) ObserveConnectAttempt(attempt int, err error, d time.Duration) {
	c.dbConnectAttempts.WithLabelValues(result(err == nil)).Inc()
	c.dbConnectDuration.Observe(d.Seconds())
	if err == nil {
		c.dbConnectionAttempts.Set(float64(attempt))
	}
}

// ObserveHealthCheck 实现 database.Observer
func (c *Collector) ObserveHealthCheck(ok bool, d time.Duration) {
	c.dbHealthChecks.WithLabelValues(result(ok)).Inc()
	c.dbHealthDuration.Observe(d.Seconds())
}

// RecordDBStats 记录连接池快照
func (c *Collector) RecordDBStats(s database.PoolStats) {
	c.dbConnectionsOpen.Set(float64(s.OpenConnections))
	c.dbConnectionsIdle.Set(float64(s.Idle))
	c.dbConnectionsInUse.Set(float64(s.InUse))
}

// =============================================================================
// 🛡️ 校验 / 审计 / 缓存
// =============================================================================

// ObserveValidation 实现 handlers.ValidationObserver
func (c *Collector) ObserveValidation(schema string, ok bool, violations int) {
	c.validationsTotal.WithLabelValues(schema, result(ok)).Inc()
	if violations > 0 {
		c.validationIssues.WithLabelValues(schema).Add(float64(violations))
	}
}

// ObserveAudit 实现 audit.Observer
func (c *Collector) ObserveAudit(res string) {
	c.auditEntriesTotal.WithLabelValues(res).Inc()
}

// ObserveCache 实现 cache.Observer
func (c *Collector) ObserveCache(namespace string, hit bool) {
	if hit {
		c.cacheHits.WithLabelValues(namespace).Inc()
		return
	}
	c.cacheMisses.WithLabelValues(namespace).Inc()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown_" + strconv.Itoa(code)
	}
}
