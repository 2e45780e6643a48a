package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/loanflow/internal/cache"
	"github.com/BaSui01/loanflow/internal/database"
	"github.com/BaSui01/loanflow/internal/models"
	"github.com/BaSui01/loanflow/internal/validation"
	"github.com/BaSui01/loanflow/types"
)

// =============================================================================
// 💰 贷款产品 Handler
// =============================================================================

// ListCache 列表缓存；cache.Manager 实现该接口
type ListCache interface {
	GetJSON(ctx context.Context, namespace, key string, dest any) error
	SetJSON(ctx context.Context, namespace, key string, value any, ttl time.Duration) error
	Invalidate(ctx context.Context, namespace string) error
}

const loanTypeCacheNamespace = "loan-types"

// LoanTypeHandler 贷款产品处理器
type LoanTypeHandler struct {
	conn   database.Connector
	cache  ListCache
	logger *zap.Logger
}

// NewLoanTypeHandler 创建处理器；cache 为 nil 时列表直接查库
func NewLoanTypeHandler(conn database.Connector, cache ListCache, logger *zap.Logger) *LoanTypeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoanTypeHandler{
		conn:   conn,
		cache:  cache,
		logger: logger.With(zap.String("handler", "loan_type")),
	}
}

// Quote 本金与期限的可接受性
type Quote struct {
	LoanTypeID string   `json:"loanTypeId"`
	Amount     float64  `json:"amount"`
	Term       *int     `json:"term,omitempty"`
	Eligible   bool     `json:"eligible"`
	Reasons    []string `json:"reasons,omitempty"`
}

// HandleList GET /loan-types[?active=true]
func (h *LoanTypeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	key := "all"
	if activeOnly {
		key = "active"
	}

	var items []models.LoanType
	if h.cache != nil {
		err := h.cache.GetJSON(r.Context(), loanTypeCacheNamespace, key, &items)
		if err == nil {
			WriteSuccess(w, r, items)
			return
		}
		if !cache.IsCacheMiss(err) {
			h.logger.Warn("loan type cache read failed", zap.Error(err))
		}
	}

	db, ok := acquire(w, r, h.conn, h.logger)
	if !ok {
		return
	}
	q := db.Order("name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&items).Error; err != nil {
		HandleError(w, r, err, h.logger)
		return
	}
	if items == nil {
		items = []models.LoanType{}
	}

	if h.cache != nil {
		if err := h.cache.SetJSON(r.Context(), loanTypeCacheNamespace, key, items, 0); err != nil {
			h.logger.Warn("loan type cache write failed", zap.Error(err))
		}
	}
	WriteSuccess(w, r, items)
}

// HandleGet GET /loan-types/{id}
func (h *LoanTypeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	db, ok := acquire(w, r, h.conn, h.logger)
	if !ok {
		return
	}
	lt, err := findLoanType(db, pathID(r))
	if err != nil {
		HandleError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, lt)
}

// HandleCreate POST /loan-types
func (h *LoanTypeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	body := validated(r).Body
	lt := models.LoanType{IsActive: true}
	applyLoanTypeFields(&lt, body)

	db, ok := acquire(w, r, h.conn, h.logger)
	if !ok {
		return
	}
	if err := ensureLoanTypeNameFree(db, lt.Name, ""); err != nil {
		HandleError(w, r, err, h.logger)
		return
	}
	if err := db.Create(&lt).Error; err != nil {
		HandleError(w, r, err, h.logger)
		return
	}

	h.invalidate(r.Context())
	setResourceID(w, lt.ID)
	WriteCreated(w, r, "Loan type created successfully", lt)
}

// HandleUpdate PUT /loan-types/{id}。
// 只给出区间一端时，与库中另一端合并后再检查。
func (h *LoanTypeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	body := validated(r).Body

	db, ok := acquire(w, r, h.conn, h.logger)
	if !ok {
		return
	}

	var updated models.LoanType
	err := db.Transaction(func(tx *gorm.DB) error {
		lt, err := findLoanType(tx, pathID(r))
		if err != nil {
			return err
		}
		applyLoanTypeFields(lt, body)
		if err := lt.CheckRange(); err != nil {
			return rangeViolation(err)
		}
		if _, renamed := body["name"]; renamed {
			if err := ensureLoanTypeNameFree(tx, lt.Name, lt.ID); err != nil {
				return err
			}
		}
		if err := tx.Save(lt).Error; err != nil {
			return err
		}
		updated = *lt
		return nil
	})
	if err != nil {
		HandleError(w, r, err, h.logger)
		return
	}

	h.invalidate(r.Context())
	WriteMessage(w, r, "Loan type updated successfully", updated)
}

// HandleToggleStatus PUT /loan-types/{id}/toggle-status
func (h *LoanTypeHandler) HandleToggleStatus(w http.ResponseWriter, r *http.Request) {
	db, ok := acquire(w, r, h.conn, h.logger)
	if !ok {
		return
	}

	var updated models.LoanType
	err := db.Transaction(func(tx *gorm.DB) error {
		lt, err := findLoanType(tx, pathID(r))
		if err != nil {
			return err
		}
		lt.IsActive = !lt.IsActive
		if err := tx.Model(lt).Update("is_active", lt.IsActive).Error; err != nil {
			return err
		}
		updated = *lt
		return nil
	})
	if err != nil {
		HandleError(w, r, err, h.logger)
		return
	}

	h.invalidate(r.Context())
	msg := "Loan type deactivated successfully"
	if updated.IsActive {
		msg = "Loan type activated successfully"
	}
	WriteMessage(w, r, msg, updated)
}

// HandleDelete DELETE /loan-types/{id}（软删除）
func (h *LoanTypeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	db, ok := acquire(w, r, h.conn, h.logger)
	if !ok {
		return
	}
	lt, err := findLoanType(db, pathID(r))
	if err != nil {
		HandleError(w, r, err, h.logger)
		return
	}
	if err := db.Delete(lt).Error; err != nil {
		HandleError(w, r, err, h.logger)
		return
	}

	h.invalidate(r.Context())
	WriteMessage(w, r, "Loan type deleted successfully", nil)
}

// HandleQuote POST /loan-types/{id}/quote：检查本金与期限是否落在产品区间内
func (h *LoanTypeHandler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	body := validated(r).Body

	db, ok := acquire(w, r, h.conn, h.logger)
	if !ok {
		return
	}
	lt, err := findLoanType(db, pathID(r))
	if err != nil {
		HandleError(w, r, err, h.logger)
		return
	}

	amount, _ := floatField(body, "amount")
	quote := Quote{LoanTypeID: lt.ID, Amount: amount, Eligible: true}
	if !lt.IsActive {
		quote.Reasons = append(quote.Reasons, "Loan type is inactive")
	}
	if err := lt.AcceptsPrincipal(amount); err != nil {
		quote.Reasons = append(quote.Reasons, err.Error())
	}
	if term, ok := intField(body, "term"); ok {
		quote.Term = &term
		if err := lt.AcceptsTerm(term); err != nil {
			quote.Reasons = append(quote.Reasons, err.Error())
		}
	}
	quote.Eligible = len(quote.Reasons) == 0
	WriteSuccess(w, r, quote)
}

func (h *LoanTypeHandler) invalidate(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, loanTypeCacheNamespace); err != nil {
		h.logger.Warn("loan type cache invalidation failed", zap.Error(err))
	}
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// rangeViolation 把合并后的区间错误转成与 Schema 一致的字段问题
func rangeViolation(err error) error {
	var re *models.RangeError
	if !errors.As(err, &re) {
		return err
	}
	return &validation.ValidationError{Violations: []validation.Violation{
		{Section: validation.SectionBody, Field: re.Field, Message: re.Message},
	}}
}

func findLoanType(db *gorm.DB, id string) (*models.LoanType, error) {
	var lt models.LoanType
	if err := db.First(&lt, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("Loan type")
		}
		return nil, err
	}
	return &lt, nil
}

func ensureLoanTypeNameFree(db *gorm.DB, name, exceptID string) error {
	q := db.Model(&models.LoanType{}).Where("LOWER(name) = LOWER(?)", name)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return types.NewError(types.ErrConflict, "Loan type with this name already exists")
	}
	return nil
}

// applyLoanTypeFields 只覆盖请求中出现的字段
func applyLoanTypeFields(lt *models.LoanType, body map[string]any) {
	if v, ok := stringField(body, "name"); ok {
		lt.Name = v
	}
	if v, ok := stringField(body, "description"); ok {
		lt.Description = v
	}
	if v, ok := floatField(body, "minAmount"); ok {
		lt.MinAmount = v
	}
	if v, ok := floatField(body, "maxAmount"); ok {
		lt.MaxAmount = v
	}
	if v, ok := stringField(body, "termUnit"); ok {
		lt.TermUnit = models.TermUnit(v)
	}
	if v, ok := intField(body, "minTerm"); ok {
		lt.MinTerm = v
	}
	if v, ok := intField(body, "maxTerm"); ok {
		lt.MaxTerm = v
	}
	if v, ok := boolField(body, "isActive"); ok {
		lt.IsActive = v
	}
}
