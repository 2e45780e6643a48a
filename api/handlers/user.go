package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/loanflow/internal/auth/password"
	"github.com/BaSui01/loanflow/internal/database"
	"github.com/BaSui01/loanflow/internal/models"
	"github.com/BaSui01/loanflow/types"
)

// =============================================================================
// 🧑‍💼 员工 Handler
// =============================================================================

// UserHandler 员工账号处理器
type UserHandler struct {
	conn   database.Connector
	logger *zap.Logger
}

// NewUserHandler 创建处理器
func NewUserHandler(conn database.Connector, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{conn: conn, logger: logger.With(zap.String("handler", "user"))}
}

// HandleList GET /users（主管只看到本分支员工）
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	query := validated(r).Query
	page := pageFromQuery(query)
	c := callerFrom(r)

	db, ok := acquire(w, r, h.conn, h.logger)
	if !ok {
		return
	}

	q := db.Model(&models.User{})
	if c.Role == string(models.RoleSupervisor) {
		q = q.Where("branch_id = ?", c.BranchID)
	} else if v, ok := stringField(query, "branchId"); ok && v != "" {
		q = q.Where("branch_id = ?", v)
	}
	if v, ok := stringField(query, "role"); ok && v != "" {
		q = q.Where("role = ?", strings.ToUpper(v))
	}
	if v, ok := stringField(query, "isActive"); ok {
		switch strings.ToLower(v) {
		case "true":
			q = q.Where("is_active = ?", true)
		case "false":
			q = q.Where("is_active = ?", false)
		}
	}
	if v, ok := stringField(query, "search"); ok && v != "" {
		like := likePattern(v)
		q = q.Where("LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", like, like, like)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		HandleError(w, r, err, h.logger)
		return
	}
	var users []models.User
	if err := q.Order("created_at DESC").Offset(page.Offset()).Limit(page.Limit).Find(&users).Error; err != nil {
		HandleError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, newListResult(users, page, total))
}

// HandleCreate POST /users（管理员）
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	body := validated(r).Body

	u := models.User{IsActive: true}
	email, _ := stringField(body, "email")
	u.Email = normalizeEmail(email)
	role, _ := stringField(body, "role")
	u.Role = models.Role(role)
	u.FirstName, u.LastName = userNames(body)
	u.Phone, _ = stringField(body, "phone")
	u.Address, _ = stringField(body, "address")
	if v, ok := boolField(body, "isActive"); ok {
		u.IsActive = v
	}
	if v, ok := stringField(body, "branchId"); ok && v != "" {
		u.BranchID = &v
	}
	if u.Role != models.RoleAdmin && u.BranchID == nil {
		HandleError(w, r, types.BadRequest("Branch is required for non-admin users"), h.logger)
		return
	}

	plain, _ := stringField(body, "password")
	hash, err := password.Hash(plain)
	if err != nil {
		HandleError(w, r, types.Internal("Failed to hash password", err), h.logger)
		return
	}
	u.PasswordHash = hash

	db, ok := acquire(w, r, h.conn, h.logger)
	if !ok {
		return
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := ensureEmailFree(tx, u.Email, ""); err != nil {
			return err
		}
		if u.BranchID != nil {
			if _, err := findBranch(tx, *u.BranchID); err != nil {
				return err
			}
		}
		return tx.Create(&u).Error
	})
	if err != nil {
		HandleError(w, r, err, h.logger)
		return
	}

	setResourceID(w, u.ID)
	WriteCreated(w, r, "User created successfully", u)
}

// HandleUpdate PUT /users/{id}（管理员或本人）。
// 非管理员不能修改角色、启用状态与所属分支。
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	body := validated(r).Body
	c := callerFrom(r)
	isAdmin := c.Role == string(models.RoleAdmin)

	if !isAdmin {
		for _, key := range []string{"role", "isActive", "branchId"} {
			if _, ok := body[key]; ok {
				HandleError(w, r, forbidden("Only admins can change role, status or branch"), h.logger)
				return
			}
		}
	}

	db, ok := acquire(w, r, h.conn, h.logger)
	if !ok {
		return
	}

	var updated models.User
	err := db.Transaction(func(tx *gorm.DB) error {
		u, err := findUser(tx, pathID(r))
		if err != nil {
			return err
		}
		if v, ok := stringField(body, "email"); ok {
			v = normalizeEmail(v)
			if v != u.Email {
				if err := ensureEmailFree(tx, v, u.ID); err != nil {
					return err
				}
				u.Email = v
			}
		}
		if v, ok := stringField(body, "role"); ok {
			u.Role = models.Role(v)
		}
		if v, ok := boolField(body, "isActive"); ok {
			if !v && u.ID == c.UserID {
				return types.BadRequest("You cannot deactivate your own account")
			}
			u.IsActive = v
		}
		if ref, ok := refField(body, "branchId"); ok {
			if ref != nil {
				if _, err := findBranch(tx, *ref); err != nil {
					return err
				}
			}
			u.BranchID = ref
		}
		if v, ok := stringField(body, "firstName"); ok {
			u.FirstName = v
		}
		if v, ok := stringField(body, "lastName"); ok {
			u.LastName = v
		}
		if v, ok := stringField(body, "phone"); ok {
			u.Phone = v
		}
		if v, ok := stringField(body, "address"); ok {
			u.Address = v
		}
		if v, ok := stringField(body, "profileImage"); ok {
			u.ProfileImage = v
		}
		if remove, _ := boolField(body, "removeProfileImage"); remove {
			u.ProfileImage = ""
		}
		if err := tx.Save(u).Error; err != nil {
			return err
		}
		updated = *u
		return nil
	})
	if err != nil {
		HandleError(w, r, err, h.logger)
		return
	}
	WriteMessage(w, r, "User updated successfully", updated)
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func findUser(db *gorm.DB, id string) (*models.User, error) {
	var u models.User
	if err := db.First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("User")
		}
		return nil, err
	}
	return &u, nil
}

// ensureEmailFree 已删除账号的邮箱同样占用
func ensureEmailFree(db *gorm.DB, email, exceptID string) error {
	q := db.Unscoped().Model(&models.User{}).Where("email = ?", email)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return types.NewError(types.ErrConflict, "Email already exists")
	}
	return nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// userNames firstName/lastName 优先，否则按第一个空格拆分 name
func userNames(body map[string]any) (first, last string) {
	first, _ = stringField(body, "firstName")
	last, _ = stringField(body, "lastName")
	if first != "" || last != "" {
		return first, last
	}
	name, _ := stringField(body, "name")
	first, last, _ = strings.Cut(strings.TrimSpace(name), " ")
	return first, strings.TrimSpace(last)
}
