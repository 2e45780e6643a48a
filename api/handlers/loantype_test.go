package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/loanflow/api/validators"
	"github.com/BaSui01/loanflow/internal/cache"
	"github.com/BaSui01/loanflow/internal/models"
	"github.com/BaSui01/loanflow/testutil"
	"github.com/BaSui01/loanflow/testutil/fixtures"
)

func newLoanTypeHandler(t *testing.T, env *testEnv) (*LoanTypeHandler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.NewManagerWithClient(client, time.Minute, zap.NewNop())
	t.Cleanup(func() { _ = c.Close() })
	return NewLoanTypeHandler(env.conn, c, zap.NewNop()), mr
}

func TestLoanTypeHandler_Create(t *testing.T) {
	env := newTestEnv(t)
	h, _ := newLoanTypeHandler(t, env)
	admin := fixtures.User(t, env.db, "admin@example.com", models.RoleAdmin, nil)
	create := route{"POST /loan-types", validators.LoanTypeCreate, h.HandleCreate}

	valid := map[string]any{
		"name": "Salary Advance", "minAmount": 1000, "maxAmount": 50000,
		"termUnit": "MONTH", "minTerm": 1, "maxTerm": 12,
	}

	rec := env.as(t, admin, create, testutil.JSONRequest(http.MethodPost, "/loan-types", valid))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var lt models.LoanType
	out := testutil.DecodeEnvelope(t, rec, &lt)
	assert.Equal(t, "Loan type created successfully", out.Message)
	assert.True(t, lt.IsActive)
	assert.Equal(t, 12, lt.MaxTerm)
	assert.Equal(t, lt.ID, rec.Header().Get("X-Resource-ID"))

	t.Run("duplicate name ignores case", func(t *testing.T) {
		dup := map[string]any{
			"name": "salary advance", "minAmount": 10, "maxAmount": 20,
			"termUnit": "DAY", "minTerm": 1, "maxTerm": 2,
		}
		rec := env.as(t, admin, create, testutil.JSONRequest(http.MethodPost, "/loan-types", dup))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "Loan type with this name already exists", testutil.DecodeEnvelope(t, rec, nil).Message)
	})

	t.Run("inverted range rejected before handler", func(t *testing.T) {
		bad := map[string]any{
			"name": "Bad Range", "minAmount": 500, "maxAmount": 100,
			"termUnit": "WEEK", "minTerm": 6, "maxTerm": 3,
		}
		rec := env.as(t, admin, create, testutil.JSONRequest(http.MethodPost, "/loan-types", bad))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		out := testutil.DecodeEnvelope(t, rec, nil)
		require.Len(t, out.Errors, 2)
		assert.Equal(t, "body.maxAmount", out.Errors[0].Field)
		assert.Equal(t, "body.maxTerm", out.Errors[1].Field)
	})
}

func TestLoanTypeHandler_UpdateMergesStoredRange(t *testing.T) {
	env := newTestEnv(t)
	h, _ := newLoanTypeHandler(t, env)
	admin := fixtures.User(t, env.db, "admin@example.com", models.RoleAdmin, nil)
	lt := fixtures.LoanType(t, env.db, "Group Loan", 1000, 5000, 3, 6)
	update := route{"PUT /loan-types/{id}", validators.LoanTypeUpdate, h.HandleUpdate}

	rec := env.as(t, admin, update, testutil.JSONRequest(http.MethodPut, "/loan-types/"+lt.ID, map[string]any{"minAmount": 6000}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	out := testutil.DecodeEnvelope(t, rec, nil)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "body.maxAmount", out.Errors[0].Field)
	assert.Equal(t, "Maximum amount must be greater than minimum amount", out.Errors[0].Message)

	rec = env.as(t, admin, update, testutil.JSONRequest(http.MethodPut, "/loan-types/"+lt.ID, map[string]any{"maxTerm": 24, "description": "Updated"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var stored models.LoanType
	require.NoError(t, env.db.First(&stored, "id = ?", lt.ID).Error)
	assert.Equal(t, 24, stored.MaxTerm)
	assert.Equal(t, 3, stored.MinTerm)
	assert.Equal(t, "Updated", stored.Description)
}

func TestLoanTypeHandler_ListUsesCache(t *testing.T) {
	env := newTestEnv(t)
	h, mr := newLoanTypeHandler(t, env)
	officer := fixtures.User(t, env.db, "officer@example.com", models.RoleCreditOfficer, nil)
	active := fixtures.LoanType(t, env.db, "Active Loan", 100, 200, 1, 2)
	inactive := fixtures.LoanType(t, env.db, "Dormant Loan", 100, 200, 1, 2)
	require.NoError(t, env.db.Model(inactive).Update("is_active", false).Error)

	list := route{"GET /loan-types", "", h.HandleList}

	rec := env.as(t, officer, list, testutil.JSONRequest(http.MethodGet, "/loan-types?active=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var items []models.LoanType
	testutil.DecodeEnvelope(t, rec, &items)
	require.Len(t, items, 1)
	assert.Equal(t, active.ID, items[0].ID)
	assert.True(t, mr.Exists("loanflow:loan-types:active"))

	// 直接改库后，缓存仍返回旧列表，直到写接口失效缓存
	require.NoError(t, env.db.Model(inactive).Update("is_active", true).Error)
	rec = env.as(t, officer, list, testutil.JSONRequest(http.MethodGet, "/loan-types?active=true", nil))
	testutil.DecodeEnvelope(t, rec, &items)
	assert.Len(t, items, 1)

	admin := fixtures.User(t, env.db, "admin@example.com", models.RoleAdmin, nil)
	toggle := route{"PUT /loan-types/{id}/toggle-status", validators.LoanTypeByID, h.HandleToggleStatus}
	rec = env.as(t, admin, toggle, testutil.JSONRequest(http.MethodPut, "/loan-types/"+active.ID+"/toggle-status", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Loan type deactivated successfully", testutil.DecodeEnvelope(t, rec, nil).Message)
	assert.False(t, mr.Exists("loanflow:loan-types:active"))

	rec = env.as(t, officer, list, testutil.JSONRequest(http.MethodGet, "/loan-types?active=true", nil))
	testutil.DecodeEnvelope(t, rec, &items)
	require.Len(t, items, 1)
	assert.Equal(t, inactive.ID, items[0].ID)
}

func TestLoanTypeHandler_WithoutCache(t *testing.T) {
	env := newTestEnv(t)
	h := NewLoanTypeHandler(env.conn, nil, nil)
	fixtures.LoanType(t, env.db, "Plain Loan", 100, 200, 1, 2)

	rec := env.as(t, nil, route{"GET /loan-types", "", h.HandleList}, testutil.JSONRequest(http.MethodGet, "/loan-types", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var items []models.LoanType
	testutil.DecodeEnvelope(t, rec, &items)
	assert.Len(t, items, 1)
}

func TestLoanTypeHandler_DeleteAndGet(t *testing.T) {
	env := newTestEnv(t)
	h, _ := newLoanTypeHandler(t, env)
	admin := fixtures.User(t, env.db, "admin@example.com", models.RoleAdmin, nil)
	lt := fixtures.LoanType(t, env.db, "Short Loan", 100, 200, 1, 2)

	get := route{"GET /loan-types/{id}", validators.LoanTypeByID, h.HandleGet}
	del := route{"DELETE /loan-types/{id}", validators.LoanTypeByID, h.HandleDelete}

	rec := env.as(t, admin, get, testutil.JSONRequest(http.MethodGet, "/loan-types/"+lt.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.as(t, admin, del, testutil.JSONRequest(http.MethodDelete, "/loan-types/"+lt.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.as(t, admin, get, testutil.JSONRequest(http.MethodGet, "/loan-types/"+lt.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Loan type not found", testutil.DecodeEnvelope(t, rec, nil).Message)
}

func TestLoanTypeHandler_Quote(t *testing.T) {
	env := newTestEnv(t)
	h, _ := newLoanTypeHandler(t, env)
	officer := fixtures.User(t, env.db, "officer@example.com", models.RoleCreditOfficer, nil)
	lt := fixtures.LoanType(t, env.db, "Quote Loan", 1000, 5000, 3, 12)
	quote := route{"POST /loan-types/{id}/quote", validators.LoanTypeQuote, h.HandleQuote}

	tests := []struct {
		name     string
		body     map[string]any
		eligible bool
		reasons  int
	}{
		{"inside range", map[string]any{"amount": 2500, "term": 6}, true, 0},
		{"amount only", map[string]any{"amount": 1000}, true, 0},
		{"too much", map[string]any{"amount": 9000, "term": 6}, false, 1},
		{"both out", map[string]any{"amount": 10, "term": 24}, false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.as(t, officer, quote, testutil.JSONRequest(http.MethodPost, "/loan-types/"+lt.ID+"/quote", tt.body))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var q Quote
			testutil.DecodeEnvelope(t, rec, &q)
			assert.Equal(t, tt.eligible, q.Eligible)
			assert.Len(t, q.Reasons, tt.reasons)
		})
	}
}
