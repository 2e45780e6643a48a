package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/BaSui01/loanflow/api/validators"
	"github.com/BaSui01/loanflow/internal/auth/password"
	"github.com/BaSui01/loanflow/internal/models"
	"github.com/BaSui01/loanflow/testutil"
	"github.com/BaSui01/loanflow/types"
)

// testEnv 内存数据库加上全部请求 Schema
type testEnv struct {
	db        *gorm.DB
	conn      *testutil.Connector
	validator *Validator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	password.Cost = bcrypt.MinCost
	db := testutil.NewTestDB(t)
	return &testEnv{
		db:        db,
		conn:      testutil.NewConnector(db),
		validator: NewValidator(validators.NewRegistry(), zap.NewNop()),
	}
}

// route 描述一次请求：pattern 供 ServeMux 解析路径参数，schema 为空时跳过校验
type route struct {
	pattern string
	schema  string
	handler http.HandlerFunc
}

// as 以给定调用方身份执行请求
func (e *testEnv) as(t *testing.T, who *models.User, rt route, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	h := rt.handler
	if rt.schema != "" {
		h = e.validator.Wrap(rt.schema, rt.handler)
	}
	mux := http.NewServeMux()
	mux.HandleFunc(rt.pattern, h)

	if who != nil {
		req = req.WithContext(withCaller(req.Context(), who))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func withCaller(ctx context.Context, u *models.User) context.Context {
	ctx = types.WithUserID(ctx, u.ID)
	ctx = types.WithRole(ctx, string(u.Role))
	if u.BranchID != nil {
		ctx = types.WithBranchID(ctx, *u.BranchID)
	}
	return ctx
}

func strPtr(s string) *string { return &s }
