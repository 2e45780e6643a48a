// Package validators 汇集 LoanFlow 各接口的请求 Schema。
package validators

import (
	"regexp"
	"unicode"

	"github.com/BaSui01/loanflow/internal/models"
	v "github.com/BaSui01/loanflow/internal/validation"
)

// Schema 名称
const (
	LoanTypeCreate = "loanType.create"
	LoanTypeUpdate = "loanType.update"
	LoanTypeByID   = "loanType.byId"
	LoanTypeQuote  = "loanType.quote"

	BranchCreate = "branch.create"
	BranchUpdate = "branch.update"
	BranchByID   = "branch.byId"

	CustomerCreate   = "customer.create"
	CustomerUpdate   = "customer.update"
	CustomerReassign = "customer.reassign"
	CustomerByID     = "customer.byId"
	CustomerList     = "customer.list"

	UserCreate = "user.create"
	UserUpdate = "user.update"
	UserList   = "user.list"

	AuthLogin          = "auth.login"
	AuthChangePassword = "auth.changePassword"
	AuthRegister       = "auth.register"

	AuditLogList = "auditLog.list"
)

// idParams 路径参数 id
func idParams() *v.ObjectRule {
	return v.Object(v.Field("id", v.String().Min(1, "Id is required")))
}

// optionalString 可缺省的任意字符串
func optionalString(name string) v.FieldSpec {
	return v.Field(name, v.String()).Optional()
}

// =============================================================================
// 💰 贷款产品
// =============================================================================

var (
	amountRefinement = v.Refinement{
		Path:     "maxAmount",
		Requires: []string{"minAmount", "maxAmount"},
		Message:  "Maximum amount must be greater than minimum amount",
		Check: func(d map[string]any) bool {
			maxAmount, _ := v.AsFloat(d["maxAmount"])
			minAmount, _ := v.AsFloat(d["minAmount"])
			return maxAmount > minAmount
		},
	}
	termRefinement = v.Refinement{
		Path:     "maxTerm",
		Requires: []string{"minTerm", "maxTerm"},
		Message:  "Maximum term must be greater than or equal to minimum term",
		// 字段约束失败时取值可能仍是小数，按数值比较
		Check: func(d map[string]any) bool {
			maxTerm, _ := v.AsFloat(d["maxTerm"])
			minTerm, _ := v.AsFloat(d["minTerm"])
			return maxTerm >= minTerm
		},
	}
)

func loanTypeCreate() *v.Schema {
	body := v.Object(
		v.Field("name", v.String().Min(3, "Loan type name must be at least 3 characters")),
		optionalString("description"),
		v.Field("minAmount", v.Number().Positive("Minimum amount must be positive")),
		v.Field("maxAmount", v.Number().Positive("Maximum amount must be positive")),
		v.Field("termUnit", v.Enum(models.TermUnitNames()...).Message("Term unit must be DAY, WEEK, or MONTH")),
		v.Field("minTerm", v.Number().Int("").Min(1, "Minimum term must be at least 1")),
		v.Field("maxTerm", v.Number().Int("").Min(1, "Maximum term must be at least 1")),
	).Refine(amountRefinement).Refine(termRefinement)

	return v.NewSchema(LoanTypeCreate).Body(body)
}

// loanTypeUpdate 所有字段可缺省；同时给出的区间两端在这里检查，
// 与库中旧值合并后的区间由 handler 再检查一次。
func loanTypeUpdate() *v.Schema {
	body := v.Object(
		v.Field("name", v.String().Min(3, "")).Optional(),
		optionalString("description"),
		v.Field("minAmount", v.Number().Positive("")).Optional(),
		v.Field("maxAmount", v.Number().Positive("")).Optional(),
		v.Field("termUnit", v.Enum(models.TermUnitNames()...)).Optional(),
		v.Field("minTerm", v.Number().Int("").Min(1, "")).Optional(),
		v.Field("maxTerm", v.Number().Int("").Min(1, "")).Optional(),
		v.Field("isActive", v.Bool()).Optional(),
	).Refine(amountRefinement).Refine(termRefinement)

	return v.NewSchema(LoanTypeUpdate).Body(body).Params(idParams())
}

func loanTypeQuote() *v.Schema {
	body := v.Object(
		v.Field("amount", v.Number().Positive("Amount must be positive")),
		v.Field("term", v.Number().Int("").Min(1, "Term must be at least 1")).Optional(),
	)
	return v.NewSchema(LoanTypeQuote).Body(body).Params(idParams())
}

// =============================================================================
// 🏢 分支机构
// =============================================================================

func branchCreate() *v.Schema {
	body := v.Object(
		v.Field("name", v.String().Min(3, "Branch name must be at least 3 characters")),
		v.Field("code", v.String().Min(2, "").Max(10, "")).Optional(),
		v.Field("managerId", v.NullableRef()).Optional(),
	)
	return v.NewSchema(BranchCreate).Body(body)
}

func branchUpdate() *v.Schema {
	body := v.Object(
		v.Field("name", v.String().Min(3, "")).Optional(),
		v.Field("code", v.String().Min(2, "").Max(10, "")).Optional(),
		v.Field("managerId", v.NullableRef()).Optional(),
		v.Field("isActive", v.BoolLike("")).Optional(),
	)
	return v.NewSchema(BranchUpdate).Body(body).Params(idParams())
}

// =============================================================================
// 👥 客户
// =============================================================================

const minCustomerAge = 16

func dateOfBirth() v.FieldSpec {
	return v.Field("dateOfBirth", v.Date().MinAge(minCustomerAge, "")).Optional()
}

// emailOrEmpty 合法邮箱或空串
func emailOrEmpty() v.FieldSpec {
	return v.Field("email", v.OneOf(v.String().Email("Invalid email address"), v.Literal(""))).Optional()
}

// minOrEmpty 满足最短长度的字符串或空串
func minOrEmpty(name string, min int, msg string) v.FieldSpec {
	return v.Field(name, v.OneOf(v.String().Min(min, msg), v.Literal(""))).Optional()
}

var customerFreeText = []string{
	"address", "gender", "maritalStatus", "profession", "company",
	"city", "state", "country", "zipCode", "note",
}

func customerCreate() *v.Schema {
	fields := []v.FieldSpec{
		v.Field("firstName", v.String().Min(2, "First name must be at least 2 characters")),
		v.Field("lastName", v.String().Min(2, "Last name must be at least 2 characters")),
		v.Field("phone", v.String().Min(1, "Phone number is required")),
		emailOrEmpty(),
		dateOfBirth(),
	}
	for _, name := range customerFreeText {
		fields = append(fields, optionalString(name))
	}
	fields = append(fields,
		v.Field("branchId", v.String().Min(1, "Branch is required")),
		optionalString("currentOfficerId"),
	)
	return v.NewSchema(CustomerCreate).Body(v.Object(fields...))
}

func customerUpdate() *v.Schema {
	fields := []v.FieldSpec{
		minOrEmpty("firstName", 2, ""),
		minOrEmpty("lastName", 2, ""),
		minOrEmpty("phone", 1, "Phone number is required"),
		emailOrEmpty(),
		dateOfBirth(),
	}
	for _, name := range customerFreeText {
		fields = append(fields, optionalString(name))
	}
	fields = append(fields, optionalString("branchId"), optionalString("currentOfficerId"))
	return v.NewSchema(CustomerUpdate).Body(v.Object(fields...)).Params(idParams())
}

func customerReassign() *v.Schema {
	body := v.Object(
		optionalString("newBranchId"),
		optionalString("newOfficerId"),
		optionalString("reason"),
	).Refine(v.Refinement{
		Path:    "newBranchId",
		Message: "Either a new branch or a new officer is required",
		Check: func(d map[string]any) bool {
			_, branch := d["newBranchId"]
			_, officer := d["newOfficerId"]
			return branch || officer
		},
	})
	return v.NewSchema(CustomerReassign).Body(body).Params(idParams())
}

func customerList() *v.Schema {
	query := v.Object(
		optionalString("page"),
		optionalString("limit"),
		optionalString("branchId"),
		optionalString("officerId"),
		optionalString("search"),
	)
	return v.NewSchema(CustomerList).Query(query)
}

// =============================================================================
// 🧑‍💼 用户
// =============================================================================

func userCreate() *v.Schema {
	body := v.Object(
		v.Field("email", v.String().Email("Invalid email address")),
		v.Field("password", v.String().Min(8, "Password must be at least 8 characters")),
		v.Field("role", v.Enum(models.RoleNames()...)),
		optionalString("branchId"),
		optionalString("name"),
		optionalString("firstName"),
		optionalString("lastName"),
		optionalString("phone"),
		optionalString("address"),
		v.Field("isActive", v.Bool()).Optional(),
	)
	return v.NewSchema(UserCreate).Body(body)
}

// userUpdate 仪表盘以 multipart 表单提交，布尔与空引用都可能以字符串到达
func userUpdate() *v.Schema {
	body := v.Object(
		v.Field("email", v.String().Email("Invalid email address")).Optional(),
		v.Field("role", v.Enum(models.RoleNames()...)).Optional(),
		v.Field("branchId", v.NullableRef()).Optional(),
		v.Field("isActive", v.BoolLike("Invalid boolean value")).Optional(),
		optionalString("firstName"),
		optionalString("lastName"),
		optionalString("phone"),
		optionalString("address"),
		optionalString("profileImage"),
		v.Field("removeProfileImage", v.BoolLike("")).Optional(),
	)
	return v.NewSchema(UserUpdate).Body(body).Params(idParams())
}

func userList() *v.Schema {
	query := v.Object(
		optionalString("page"),
		optionalString("limit"),
		optionalString("role"),
		optionalString("branchId"),
		optionalString("isActive"),
		optionalString("search"),
	)
	return v.NewSchema(UserList).Query(query)
}

// =============================================================================
// 🔐 认证
// =============================================================================

const passwordComplexityMessage = "Password must contain at least one uppercase letter, one lowercase letter, one number, and one special character"

var passwordCharset = regexp.MustCompile(`^[A-Za-z\d@$!%*?&]`)

// complexPassword 至少包含大写、小写、数字与 @$!%*?& 中的一个
func complexPassword(s string) bool {
	var upper, lower, digit, special bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r) && r < unicode.MaxASCII:
			upper = true
		case unicode.IsLower(r) && r < unicode.MaxASCII:
			lower = true
		case unicode.IsDigit(r) && r < unicode.MaxASCII:
			digit = true
		case r == '@' || r == '$' || r == '!' || r == '%' || r == '*' || r == '?' || r == '&':
			special = true
		}
	}
	return upper && lower && digit && special
}

func authLogin() *v.Schema {
	body := v.Object(
		v.Field("email", v.String().Email("Invalid email address")),
		v.Field("password", v.String().Min(1, "Password is required")),
	)
	return v.NewSchema(AuthLogin).Body(body)
}

func authChangePassword() *v.Schema {
	body := v.Object(
		v.Field("currentPassword", v.String().Min(1, "Current password is required")),
		v.Field("newPassword", v.String().Min(8, "Password must be at least 8 characters")),
	)
	return v.NewSchema(AuthChangePassword).Body(body)
}

func authRegister() *v.Schema {
	body := v.Object(
		v.Field("email", v.String().Email("Invalid email address")),
		v.Field("password", v.String().
			Min(8, "Password must be at least 8 characters").
			Check(complexPassword, passwordComplexityMessage).
			Matches(passwordCharset, passwordComplexityMessage)),
		v.Field("confirmPassword", v.String().Min(1, "Password confirmation is required")),
	).Refine(v.Refinement{
		Path:     "confirmPassword",
		Requires: []string{"password", "confirmPassword"},
		Message:  "Passwords don't match",
		Check: func(d map[string]any) bool {
			return d["password"] == d["confirmPassword"]
		},
	})
	return v.NewSchema(AuthRegister).Body(body)
}

// =============================================================================
// 📜 审计
// =============================================================================

func auditLogList() *v.Schema {
	query := v.Object(
		optionalString("page"),
		optionalString("limit"),
		optionalString("action"),
		optionalString("entityName"),
		optionalString("actorUserId"),
	)
	return v.NewSchema(AuditLogList).Query(query)
}

// =============================================================================
// 📚 注册表
// =============================================================================

// NewRegistry 构建包含全部 Schema 的注册表
func NewRegistry() *v.Registry {
	return v.NewRegistry().MustRegister(
		loanTypeCreate(), loanTypeUpdate(), v.NewSchema(LoanTypeByID).Params(idParams()), loanTypeQuote(),
		branchCreate(), branchUpdate(), v.NewSchema(BranchByID).Params(idParams()),
		customerCreate(), customerUpdate(), customerReassign(), v.NewSchema(CustomerByID).Params(idParams()), customerList(),
		userCreate(), userUpdate(), userList(),
		authLogin(), authChangePassword(), authRegister(),
		auditLogList(),
	)
}

var defaultRegistry = NewRegistry()

// Default 进程级共享注册表（Schema 不可变，可并发使用）
func Default() *v.Registry { return defaultRegistry }

// MustGet 取出 Schema，名称未注册时 panic（用于路由装配）
func MustGet(name string) *v.Schema {
	s, ok := defaultRegistry.Get(name)
	if !ok {
		panic("validators: unknown schema " + name)
	}
	return s
}
