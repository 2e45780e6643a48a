package handlers

import (
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/loanflow/internal/database"
	"github.com/BaSui01/loanflow/internal/models"
)

// AuditHandler 审计日志查询（管理员）
type AuditHandler struct {
	conn   database.Connector
	logger *zap.Logger
}

// NewAuditHandler 创建处理器
func NewAuditHandler(conn database.Connector, logger *zap.Logger) *AuditHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditHandler{conn: conn, logger: logger.With(zap.String("handler", "audit"))}
}

// HandleList GET /audit-logs?action=&entityName=&actorUserId=&page=&limit=
func (h *AuditHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	query := validated(r).Query
	page := pageFromQuery(query)

	db, ok := acquire(w, r, h.conn, h.logger)
	if !ok {
		return
	}

	q := db.Model(&models.AuditLog{})
	for param, column := range map[string]string{
		"action":      "action",
		"entityName":  "entity_name",
		"actorUserId": "actor_user_id",
	} {
		if v, ok := stringField(query, param); ok && v != "" {
			q = q.Where(column+" = ?", v)
		}
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		HandleError(w, r, err, h.logger)
		return
	}
	var logs []models.AuditLog
	if err := q.Order("created_at DESC").Offset(page.Offset()).Limit(page.Limit).Find(&logs).Error; err != nil {
		HandleError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, newListResult(logs, page, total))
}
