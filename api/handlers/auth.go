package handlers

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/loanflow/internal/auth/password"
	"github.com/BaSui01/loanflow/internal/database"
	"github.com/BaSui01/loanflow/internal/models"
	"github.com/BaSui01/loanflow/types"
)

// =============================================================================
// 🔐 认证 Handler
// =============================================================================

// TokenIssuer 为登录成功的用户签发访问令牌
type TokenIssuer interface {
	Issue(u *models.User) (token string, expiresAt time.Time, err error)
}

// AuthHandler 登录、个人资料与改密
type AuthHandler struct {
	conn   database.Connector
	issuer TokenIssuer
	logger *zap.Logger
}

// NewAuthHandler 创建处理器
func NewAuthHandler(conn database.Connector, issuer TokenIssuer, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{conn: conn, issuer: issuer, logger: logger.With(zap.String("handler", "auth"))}
}

// LoginResponse 登录结果
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

var errInvalidCredentials = types.NewError(types.ErrUnauthorized, "Invalid credentials").WithHTTPStatus(http.StatusUnauthorized)

// HandleLogin POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	body := validated(r).Body
	email, _ := stringField(body, "email")
	plain, _ := stringField(body, "password")

	db, ok := acquire(w, r, h.conn, h.logger)
	if !ok {
		return
	}

	var u models.User
	if err := db.First(&u, "email = ?", normalizeEmail(email)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteError(w, r, errInvalidCredentials, h.logger)
			return
		}
		HandleError(w, r, err, h.logger)
		return
	}
	if !u.IsActive {
		WriteError(w, r, forbidden("Account is inactive"), h.logger)
		return
	}
	if err := password.Verify(u.PasswordHash, plain); err != nil {
		if !errors.Is(err, password.ErrMismatch) {
			h.logger.Warn("stored password hash unreadable", zap.String("user_id", u.ID), zap.Error(err))
		}
		WriteError(w, r, errInvalidCredentials, h.logger)
		return
	}

	token, expires, err := h.issuer.Issue(&u)
	if err != nil {
		HandleError(w, r, types.Internal("Failed to issue token", err), h.logger)
		return
	}

	now := time.Now()
	if err := db.Model(&u).UpdateColumn("last_login_at", now).Error; err != nil {
		h.logger.Warn("record last login failed", zap.String("user_id", u.ID), zap.Error(err))
	}
	u.LastLoginAt = &now

	setResourceID(w, u.ID)
	WriteMessage(w, r, "Login successful", LoginResponse{Token: token, ExpiresAt: expires, User: &u})
}

// HandleMe GET /auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	db, ok := acquire(w, r, h.conn, h.logger)
	if !ok {
		return
	}
	u, err := findUser(db, callerFrom(r).UserID)
	if err != nil {
		HandleError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, u)
}

// HandleChangePassword POST /auth/change-password
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	body := validated(r).Body
	current, _ := stringField(body, "currentPassword")
	next, _ := stringField(body, "newPassword")
	if current == next {
		HandleError(w, r, types.BadRequest("New password must be different from the current password"), h.logger)
		return
	}

	db, ok := acquire(w, r, h.conn, h.logger)
	if !ok {
		return
	}
	u, err := findUser(db, callerFrom(r).UserID)
	if err != nil {
		HandleError(w, r, err, h.logger)
		return
	}
	if err := password.Verify(u.PasswordHash, current); err != nil {
		HandleError(w, r, types.BadRequest("Current password is incorrect"), h.logger)
		return
	}

	hash, err := password.Hash(next)
	if err != nil {
		HandleError(w, r, types.Internal("Failed to hash password", err), h.logger)
		return
	}
	if err := db.Model(u).Update("password_hash", hash).Error; err != nil {
		HandleError(w, r, err, h.logger)
		return
	}
	setResourceID(w, u.ID)
	WriteMessage(w, r, "Password changed successfully", nil)
}

// HandleRegister POST /auth/register。
// 仅在系统中尚无任何账号时可用，用于创建首个管理员。
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	body := validated(r).Body
	email, _ := stringField(body, "email")
	plain, _ := stringField(body, "password")

	hash, err := password.Hash(plain)
	if err != nil {
		HandleError(w, r, types.Internal("Failed to hash password", err), h.logger)
		return
	}
	u := models.User{Email: normalizeEmail(email), PasswordHash: hash, Role: models.RoleAdmin, IsActive: true}

	db, ok := acquire(w, r, h.conn, h.logger)
	if !ok {
		return
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Unscoped().Model(&models.User{}).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return forbidden("Registration is closed")
		}
		return tx.Create(&u).Error
	})
	if err != nil {
		HandleError(w, r, err, h.logger)
		return
	}

	setResourceID(w, u.ID)
	WriteCreated(w, r, "Admin registered successfully", u)
}
