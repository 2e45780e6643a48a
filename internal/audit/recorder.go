package audit

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/loanflow/api/handlers"
	"github.com/BaSui01/loanflow/internal/database"
	"github.com/BaSui01/loanflow/internal/models"
	"github.com/BaSui01/loanflow/internal/pool"
	"github.com/BaSui01/loanflow/types"
)

// ResourceIDHeader handler 通过该响应头告知被操作记录的 id
const ResourceIDHeader = "X-Resource-ID"

// 审计动作
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
	ActionToggle = "TOGGLE_STATUS"
	ActionAssign = "REASSIGN"
)

// Entry 一条待写入的审计记录
type Entry struct {
	ActorUserID string
	Action      string
	EntityName  string
	EntityID    string
	Metadata    map[string]any
	IPAddress   string
	UserAgent   string
}

// Observer 接收写入结果（指标上报）
type Observer interface {
	ObserveAudit(result string)
}

// Recorder 异步写审计日志。写入失败只记日志，不影响请求。
type Recorder struct {
	db       database.Connector
	pool     *pool.Pool
	logger   *zap.Logger
	observer Observer
	timeout  time.Duration
}

// NewRecorder 创建记录器
func NewRecorder(db database.Connector, workers, queueSize int, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "audit"))
	return &Recorder{
		db: db,
		pool: pool.New(pool.Config{
			Workers:      workers,
			QueueSize:    queueSize,
			PanicHandler: func(r any) { logger.Error("audit task panicked", zap.Any("panic", r)) },
		}),
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

// WithObserver 设置观察者
func (r *Recorder) WithObserver(o Observer) *Recorder {
	r.observer = o
	return r
}

// Record 排队写入一条记录
func (r *Recorder) Record(e Entry) {
	err := r.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return r.write(ctx, e)
	})
	if err != nil {
		r.observe("dropped")
		r.logger.Warn("audit entry dropped",
			zap.String("action", e.Action),
			zap.String("entity", e.EntityName),
			zap.Error(err),
		)
	}
}

func (r *Recorder) write(ctx context.Context, e Entry) error {
	db, err := r.db.Acquire(ctx)
	if err != nil {
		r.observe("error")
		r.logger.Error("audit write failed", zap.Error(err))
		return err
	}

	row := models.AuditLog{
		Action:     e.Action,
		EntityName: e.EntityName,
		EntityID:   e.EntityID,
		IPAddress:  e.IPAddress,
		UserAgent:  e.UserAgent,
	}
	if e.ActorUserID != "" {
		actor := e.ActorUserID
		row.ActorUserID = &actor
	}
	if len(e.Metadata) > 0 {
		if raw, err := json.Marshal(e.Metadata); err == nil {
			row.Metadata = string(raw)
		}
	}

	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		r.observe("error")
		r.logger.Error("audit write failed", zap.String("action", e.Action), zap.Error(err))
		return err
	}
	r.observe("ok")
	return nil
}

func (r *Recorder) observe(result string) {
	if r.observer != nil {
		r.observer.ObserveAudit(result)
	}
}

// Close 等待队列写完
func (r *Recorder) Close(ctx context.Context) error {
	return r.pool.Close(ctx)
}

// Stats 任务池统计
func (r *Recorder) Stats() pool.Stats { return r.pool.Stats() }

// Track 在 2xx 响应后记录一次操作。
// 记录 id 取自 X-Resource-ID 响应头，缺省时取路径参数 id。
func (r *Recorder) Track(entity, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			rw := handlers.NewResponseWriter(w)
			next.ServeHTTP(rw, req)

			if rw.StatusCode < 200 || rw.StatusCode >= 300 {
				return
			}

			entityID := rw.Header().Get(ResourceIDHeader)
			if entityID == "" {
				entityID = req.PathValue("id")
			}
			actor, _ := types.UserID(req.Context())
			meta := map[string]any{
				"method": req.Method,
				"path":   req.URL.Path,
				"status": rw.StatusCode,
			}
			if id, ok := types.RequestID(req.Context()); ok {
				meta["requestId"] = id
			}

			r.Record(Entry{
				ActorUserID: actor,
				Action:      action,
				EntityName:  entity,
				EntityID:    entityID,
				Metadata:    meta,
				IPAddress:   ClientIP(req),
				UserAgent:   req.UserAgent(),
			})
		})
	}
}

// ClientIP 优先取 X-Forwarded-For 的第一个地址
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
