package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/loanflow/config"
	"github.com/BaSui01/loanflow/internal/auth"
	"github.com/BaSui01/loanflow/internal/database"
	"github.com/BaSui01/loanflow/internal/metrics"
	"github.com/BaSui01/loanflow/internal/models"
)

const testJWTSecret = "server-test-secret-server-test-secret"

// newUnconfiguredServer 数据库未配置 URL，所有查库请求都会得到 503
func newUnconfiguredServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.JWT.Secret = testJWTSecret
	cfg.Audit.Enabled = false

	db := database.NewManager(database.StaticSettings("", "test"), database.WithMaxAttempts(1))
	s := NewServer(cfg, zap.NewNop(), Deps{
		DB:        db,
		Collector: metrics.NewCollector("loanflow", zap.NewNop()),
	})
	require.NoError(t, s.initComponents(context.Background()))
	return s, s.routes()
}

func bearer(t *testing.T, s *Server, role models.Role) string {
	t.Helper()
	tok, err := s.authn.Sign(auth.Principal{UserID: "u-1", Role: role, BranchID: "b-1"}, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestRoutes_HealthEndpoints(t *testing.T) {
	_, mux := newUnconfiguredServer(t)

	tests := []struct {
		path   string
		status int
	}{
		{"/health", http.StatusOK},
		{"/ping", http.StatusOK},
		{"/version", http.StatusOK},
		{"/ready", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRoutes_Guards(t *testing.T) {
	s, mux := newUnconfiguredServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		role   models.Role
		status int
	}{
		{"no token", http.MethodGet, "/api/v1/customers", "", "", http.StatusUnauthorized},
		{"officer on admin route", http.MethodGet, "/api/v1/audit-logs", "", models.RoleCreditOfficer, http.StatusForbidden},
		{"supervisor creating loan type", http.MethodPost, "/api/v1/loan-types", `{}`, models.RoleSupervisor, http.StatusForbidden},
		{"officer reassigning", http.MethodPost, "/api/v1/customers/c-1/reassign", `{}`, models.RoleCreditOfficer, http.StatusForbidden},
		{"officer updating another user", http.MethodPut, "/api/v1/users/u-2", `{}`, models.RoleCreditOfficer, http.StatusForbidden},
		{"invalid body rejected before database", http.MethodPost, "/api/v1/loan-types", `{"name":""}`, models.RoleAdmin, http.StatusBadRequest},
		{"database unavailable", http.MethodGet, "/api/v1/branches", "", models.RoleAdmin, http.StatusServiceUnavailable},
		{"login validation", http.MethodPost, "/api/v1/auth/login", `{"email":"nope"}`, "", http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/api/v1/loans", "", models.RoleAdmin, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r *http.Request
			if tt.body != "" {
				r = httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
				r.Header.Set("Content-Type", "application/json")
			} else {
				r = httptest.NewRequest(tt.method, tt.path, nil)
			}
			if tt.role != "" {
				r.Header.Set("Authorization", bearer(t, s, tt.role))
			}

			w := httptest.NewRecorder()
			mux.ServeHTTP(w, r)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestRoutes_DatabaseUnavailableCode(t *testing.T) {
	s, mux := newUnconfiguredServer(t)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/loan-types", nil)
	r.Header.Set("Authorization", bearer(t, s, models.RoleCreditOfficer))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "DATABASE_UNAVAILABLE", errorCode(t, w))
}

func TestServer_ShutdownWithoutStart(t *testing.T) {
	s, _ := newUnconfiguredServer(t)
	s.Shutdown()
	s.Shutdown()
}

func TestSettingsFrom_ReadsCurrentConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.URL = "postgres://a/loanflow"
	cfg.App.Env = "production"

	settings := settingsFrom(config.NewReloader(config.NewLoader(), cfg, nil))
	got := settings()
	assert.Equal(t, "postgres://a/loanflow", got.URL)
	assert.False(t, got.IsDevelopment())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "debug", parseLevel("DEBUG").String())
	assert.Equal(t, "warn", parseLevel("warn").String())
	assert.Equal(t, "error", parseLevel("error").String())
	assert.Equal(t, "info", parseLevel("verbose").String())
}

func TestProbe(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))
	defer ok.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) }))
	defer down.Close()

	assert.NoError(t, probe(ok.Client(), ok.URL))
	assert.EqualError(t, probe(down.Client(), down.URL), "status 503")
}
