package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/loanflow/internal/database"
	"github.com/BaSui01/loanflow/internal/models"
	"github.com/BaSui01/loanflow/types"
)

// =============================================================================
// 🏢 分支机构 Handler
// =============================================================================

// BranchHandler 分支机构处理器
type BranchHandler struct {
	conn   database.Connector
	logger *zap.Logger
}

// NewBranchHandler 创建处理器
func NewBranchHandler(conn database.Connector, logger *zap.Logger) *BranchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BranchHandler{conn: conn, logger: logger.With(zap.String("handler", "branch"))}
}

// HandleList GET /branches
func (h *BranchHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	db, ok := acquire(w, r, h.conn, h.logger)
	if !ok {
		return
	}
	var branches []models.Branch
	if err := db.Order("name ASC").Find(&branches).Error; err != nil {
		HandleError(w, r, err, h.logger)
		return
	}
	if branches == nil {
		branches = []models.Branch{}
	}
	WriteSuccess(w, r, branches)
}

// HandleGet GET /branches/{id}
func (h *BranchHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	db, ok := acquire(w, r, h.conn, h.logger)
	if !ok {
		return
	}
	b, err := findBranch(db, pathID(r))
	if err != nil {
		HandleError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, b)
}

// HandleCreate POST /branches；未给出 code 时由名称生成
func (h *BranchHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	body := validated(r).Body
	b := models.Branch{IsActive: true}
	b.Name, _ = stringField(body, "name")
	if code, ok := stringField(body, "code"); ok {
		b.Code = strings.ToUpper(code)
	}
	if ref, ok := refField(body, "managerId"); ok {
		b.ManagerID = ref
	}

	db, ok := acquire(w, r, h.conn, h.logger)
	if !ok {
		return
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if b.Code == "" {
			code, err := nextBranchCode(tx, b.Name)
			if err != nil {
				return err
			}
			b.Code = code
		}
		if err := ensureBranchCodeFree(tx, b.Code, ""); err != nil {
			return err
		}
		if err := ensureManager(tx, b.ManagerID); err != nil {
			return err
		}
		return tx.Create(&b).Error
	})
	if err != nil {
		HandleError(w, r, err, h.logger)
		return
	}

	setResourceID(w, b.ID)
	WriteCreated(w, r, "Branch created successfully", b)
}

// HandleUpdate PUT /branches/{id}
func (h *BranchHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	body := validated(r).Body

	db, ok := acquire(w, r, h.conn, h.logger)
	if !ok {
		return
	}

	var updated models.Branch
	err := db.Transaction(func(tx *gorm.DB) error {
		b, err := findBranch(tx, pathID(r))
		if err != nil {
			return err
		}
		if v, ok := stringField(body, "name"); ok {
			b.Name = v
		}
		if v, ok := stringField(body, "code"); ok {
			b.Code = strings.ToUpper(v)
			if err := ensureBranchCodeFree(tx, b.Code, b.ID); err != nil {
				return err
			}
		}
		if ref, ok := refField(body, "managerId"); ok {
			if err := ensureManager(tx, ref); err != nil {
				return err
			}
			b.ManagerID = ref
		}
		if v, ok := boolField(body, "isActive"); ok {
			b.IsActive = v
		}
		if err := tx.Save(b).Error; err != nil {
			return err
		}
		updated = *b
		return nil
	})
	if err != nil {
		HandleError(w, r, err, h.logger)
		return
	}
	WriteMessage(w, r, "Branch updated successfully", updated)
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func findBranch(db *gorm.DB, id string) (*models.Branch, error) {
	var b models.Branch
	if err := db.First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("Branch")
		}
		return nil, err
	}
	return &b, nil
}

func ensureBranchCodeFree(db *gorm.DB, code, exceptID string) error {
	q := db.Unscoped().Model(&models.Branch{}).Where("code = ?", code)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return types.NewError(types.ErrConflict, "Branch code already exists")
	}
	return nil
}

// ensureManager 管理者必须是启用的主管或管理员
func ensureManager(db *gorm.DB, managerID *string) error {
	if managerID == nil {
		return nil
	}
	var u models.User
	if err := db.First(&u, "id = ?", *managerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.NotFound("Manager")
		}
		return err
	}
	if !u.IsActive || u.Role == models.RoleCreditOfficer {
		return types.BadRequest("Branch manager must be an active supervisor or admin")
	}
	return nil
}

// nextBranchCode 取名称前三个字母加序号，例如 KIG001
func nextBranchCode(db *gorm.DB, name string) (string, error) {
	prefix := branchCodePrefix(name)
	var n int64
	if err := db.Unscoped().Model(&models.Branch{}).Where("code LIKE ?", prefix+"%").Count(&n).Error; err != nil {
		return "", err
	}
	for i := n + 1; ; i++ {
		code := prefix + fmt.Sprintf("%03d", i)
		if err := ensureBranchCodeFree(db, code, ""); err == nil {
			return code, nil
		} else if types.GetErrorCode(err) != types.ErrConflict {
			return "", err
		}
	}
}

func branchCodePrefix(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
			if b.Len() == 3 {
				break
			}
		}
	}
	for b.Len() < 3 {
		b.WriteByte('X')
	}
	return b.String()
}
