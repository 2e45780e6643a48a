package handlers

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/loanflow/internal/database"
	"github.com/BaSui01/loanflow/internal/validation"
	"github.com/BaSui01/loanflow/types"
)

// =============================================================================
// 🔧 请求数据读取
// =============================================================================

// validated 取出 Wrap 写入的规范化数据；未经 Wrap 的路由返回空数据
func validated(r *http.Request) *validation.Data {
	if d, ok := ValidatedData(r.Context()); ok {
		return d
	}
	return &validation.Data{}
}

// pathID 优先取校验后的 params.id
func pathID(r *http.Request) string {
	if id, ok := stringField(validated(r).Params, "id"); ok {
		return id
	}
	return r.PathValue("id")
}

func stringField(m map[string]any, key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok
}

func floatField(m map[string]any, key string) (float64, bool) {
	f, ok := m[key].(float64)
	return f, ok
}

func intField(m map[string]any, key string) (int, bool) {
	n, ok := m[key].(int64)
	return int(n), ok
}

func boolField(m map[string]any, key string) (bool, bool) {
	b, ok := m[key].(bool)
	return b, ok
}

func timeField(m map[string]any, key string) (time.Time, bool) {
	t, ok := m[key].(time.Time)
	return t, ok
}

// refField 可空引用：键存在且值为 nil 表示清空
func refField(m map[string]any, key string) (ref *string, present bool) {
	v, present := m[key]
	if !present {
		return nil, false
	}
	if s, ok := v.(string); ok && s != "" {
		return &s, true
	}
	return nil, true
}

// =============================================================================
// 📄 分页
// =============================================================================

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Page 分页参数
type Page struct {
	Page  int
	Limit int
}

// Offset 查询偏移量
func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

// Pagination 分页元信息
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// ListResult 分页列表
type ListResult[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

func newListResult[T any](items []T, p Page, total int64) ListResult[T] {
	if items == nil {
		items = []T{}
	}
	return ListResult[T]{
		Items: items,
		Pagination: Pagination{
			Page:       p.Page,
			Limit:      p.Limit,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(p.Limit))),
		},
	}
}

// pageFromQuery 非法或缺省的 page/limit 回落到默认值，limit 上限 100
func pageFromQuery(q map[string]any) Page {
	p := Page{Page: 1, Limit: defaultPageSize}
	if s, ok := stringField(q, "page"); ok {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			p.Page = n
		}
	}
	if s, ok := stringField(q, "limit"); ok {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			p.Limit = min(n, maxPageSize)
		}
	}
	return p
}

// likePattern 小写后包成 %s%，配合 LOWER(col) LIKE ? 使用
func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

// =============================================================================
// 🗄️ 数据库访问
// =============================================================================

// acquire 获取连接；失败时已写出错误响应
func acquire(w http.ResponseWriter, r *http.Request, conn database.Connector, logger *zap.Logger) (*gorm.DB, bool) {
	db, err := conn.Acquire(r.Context())
	if err != nil {
		HandleError(w, r, err, logger)
		return nil, false
	}
	return db.WithContext(r.Context()), true
}

// caller 当前调用方
type caller struct {
	UserID   string
	Role     string
	BranchID string
}

func callerFrom(r *http.Request) caller {
	ctx := r.Context()
	var c caller
	c.UserID, _ = types.UserID(ctx)
	c.Role, _ = types.Role(ctx)
	c.BranchID, _ = types.BranchID(ctx)
	return c
}

// setResourceID 告知审计中间件被操作记录的 id
func setResourceID(w http.ResponseWriter, id string) {
	w.Header().Set("X-Resource-ID", id)
}
