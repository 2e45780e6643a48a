package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/BaSui01/loanflow/api/handlers"
	"github.com/BaSui01/loanflow/config"
	"github.com/BaSui01/loanflow/internal/models"
	"github.com/BaSui01/loanflow/types"
)

// =============================================================================
// 🔐 JWT 认证
// =============================================================================

// Principal 已认证的调用方
type Principal struct {
	UserID   string
	Email    string
	Role     models.Role
	BranchID string
}

// Claims 令牌载荷
type Claims struct {
	UserID   string `json:"userId"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
	BranchID string `json:"branchId,omitempty"`
	jwt.RegisteredClaims
}

type principalKey struct{}

// WithPrincipal 把调用方写入 ctx，同时写入 types 中的用户、角色与分支
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	ctx = context.WithValue(ctx, principalKey{}, p)
	ctx = types.WithUserID(ctx, p.UserID)
	ctx = types.WithRole(ctx, string(p.Role))
	if p.BranchID != "" {
		ctx = types.WithBranchID(ctx, p.BranchID)
	}
	return ctx
}

// FromContext 取出调用方
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Authenticator 校验 HS256 令牌
type Authenticator struct {
	secret []byte
	opts   []jwt.ParserOption
	issuer string
	aud    string
	logger *zap.Logger
}

// NewAuthenticator 创建认证器；密钥为空时返回错误
func NewAuthenticator(cfg config.JWTConfig, logger *zap.Logger) (*Authenticator, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &Authenticator{
		secret: []byte(cfg.Secret),
		opts:   opts,
		issuer: cfg.Issuer,
		aud:    cfg.Audience,
		logger: logger.With(zap.String("component", "auth")),
	}, nil
}

// Parse 校验令牌并返回调用方
func (a *Authenticator) Parse(tokenStr string) (Principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, a.opts...)
	if err != nil {
		return Principal{}, err
	}

	role := models.Role(claims.Role)
	if claims.UserID == "" || !role.Valid() {
		return Principal{}, fmt.Errorf("token is missing user id or role")
	}
	return Principal{
		UserID:   claims.UserID,
		Email:    claims.Email,
		Role:     role,
		BranchID: claims.BranchID,
	}, nil
}

// Sign 签发令牌（种子账号与测试使用）
func (a *Authenticator) Sign(p Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   p.UserID,
		Email:    p.Email,
		Role:     string(p.Role),
		BranchID: p.BranchID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if a.aud != "" {
		claims.Audience = jwt.ClaimStrings{a.aud}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Authenticate 要求 Authorization: Bearer <token>
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			unauthorized(w, r)
			return
		}

		p, err := a.Parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			a.logger.Debug("token rejected", zap.Error(err))
			unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	handlers.WriteErrorMessage(w, r, http.StatusUnauthorized, types.ErrUnauthorized, "Unauthorized", nil)
}

func forbidden(w http.ResponseWriter, r *http.Request) {
	handlers.WriteErrorMessage(w, r, http.StatusForbidden, types.ErrForbidden, "Forbidden: Insufficient permissions", nil)
}

// Issuer 按固定有效期为用户签发令牌（登录接口使用）
type Issuer struct {
	a   *Authenticator
	ttl time.Duration
}

// Issuer 创建签发器；ttl 非正数时使用 8 小时
func (a *Authenticator) Issuer(ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Issuer{a: a, ttl: ttl}
}

// Issue 实现 handlers.TokenIssuer
func (i *Issuer) Issue(u *models.User) (string, time.Time, error) {
	p := Principal{UserID: u.ID, Email: u.Email, Role: u.Role}
	if u.BranchID != nil {
		p.BranchID = *u.BranchID
	}
	expires := time.Now().Add(i.ttl)
	token, err := i.a.Sign(p, i.ttl)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expires, nil
}
