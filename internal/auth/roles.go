package auth

import (
	"net/http"
	"slices"

	"github.com/BaSui01/loanflow/internal/models"
)

// RequireRole 只放行指定角色
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok {
				unauthorized(w, r)
				return
			}
			if !slices.Contains(roles, p.Role) {
				forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin 仅管理员
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(models.RoleAdmin)(next)
}

// RequireSupervisor 主管及以上
func RequireSupervisor(next http.Handler) http.Handler {
	return RequireRole(models.RoleAdmin, models.RoleSupervisor)(next)
}

// RequireStaff 任意员工角色
func RequireStaff(next http.Handler) http.Handler {
	return RequireRole(models.RoleAdmin, models.RoleSupervisor, models.RoleCreditOfficer)(next)
}

// RequireAdminOrSelf 管理员，或路径参数 id 等于调用方本人
func RequireAdminOrSelf(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok {
				unauthorized(w, r)
				return
			}
			if p.Role != models.RoleAdmin && r.PathValue(param) != p.UserID {
				forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
