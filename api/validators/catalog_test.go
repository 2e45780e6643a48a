package validators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	v "github.com/BaSui01/loanflow/internal/validation"
)

func loanTypeBody() map[string]any {
	return map[string]any{
		"name":      "Biz Loan",
		"minAmount": 100.0,
		"maxAmount": 500.0,
		"termUnit":  "MONTH",
		"minTerm":   1.0,
		"maxTerm":   12.0,
	}
}

func validate(t *testing.T, name string, in v.Input) v.Result {
	t.Helper()
	res, err := Default().Validate(name, in)
	require.NoError(t, err)
	return res
}

func TestRegistry_ContainsEverySchema(t *testing.T) {
	names := Default().Names()
	for _, want := range []string{
		LoanTypeCreate, LoanTypeUpdate, LoanTypeByID, LoanTypeQuote,
		BranchCreate, BranchUpdate, BranchByID,
		CustomerCreate, CustomerUpdate, CustomerReassign, CustomerByID, CustomerList,
		UserCreate, UserUpdate, UserList,
		AuthLogin, AuthChangePassword, AuthRegister,
		AuditLogList,
	} {
		assert.Contains(t, names, want)
	}
	assert.Panics(t, func() { MustGet("nope") })
}

// --- 贷款产品 ---

func TestLoanTypeCreate_AmountRangeScenario(t *testing.T) {
	body := loanTypeBody()
	body["maxAmount"] = 50.0

	res := validate(t, LoanTypeCreate, v.Input{Body: body})

	require.False(t, res.OK())
	require.Len(t, res.Violations(), 1)
	assert.Equal(t, "body.maxAmount", res.Violations()[0].Path())
	assert.Equal(t, "Maximum amount must be greater than minimum amount", res.Violations()[0].Message)
}

func TestLoanTypeCreate_TermRangeScenario(t *testing.T) {
	body := loanTypeBody()
	body["minTerm"] = 12.0
	body["maxTerm"] = 1.0

	res := validate(t, LoanTypeCreate, v.Input{Body: body})

	require.Len(t, res.Violations(), 1)
	assert.Equal(t, "body.maxTerm", res.Violations()[0].Path())
	assert.Equal(t, "Maximum term must be greater than or equal to minimum term", res.Violations()[0].Message)
}

func TestLoanTypeCreate_WellFormedScenario(t *testing.T) {
	body := loanTypeBody()
	body["description"] = "Working capital"

	res := validate(t, LoanTypeCreate, v.Input{Body: body})

	require.True(t, res.OK())
	assert.Empty(t, res.Violations())
	assert.Equal(t, map[string]any{
		"name":        "Biz Loan",
		"description": "Working capital",
		"minAmount":   100.0,
		"maxAmount":   500.0,
		"termUnit":    "MONTH",
		"minTerm":     int64(1),
		"maxTerm":     int64(12),
	}, res.Data().Body)
}

func TestLoanTypeCreate_EqualTermsAllowed(t *testing.T) {
	body := loanTypeBody()
	body["minTerm"] = 6.0
	body["maxTerm"] = 6.0
	assert.True(t, validate(t, LoanTypeCreate, v.Input{Body: body}).OK())
}

func TestLoanTypeCreate_FieldMessages(t *testing.T) {
	res := validate(t, LoanTypeCreate, v.Input{Body: map[string]any{
		"name":      "Bz",
		"minAmount": 0.0,
		"maxAmount": -1.0,
		"termUnit":  "YEAR",
		"minTerm":   0.0,
		"maxTerm":   1.5,
	}})

	var got []string
	for _, viol := range res.Violations() {
		got = append(got, viol.String())
	}
	// 金额区间约束在两端类型正确时仍会执行，排在字段违规之后
	assert.Equal(t, []string{
		"body.name: Loan type name must be at least 3 characters",
		"body.minAmount: Minimum amount must be positive",
		"body.maxAmount: Maximum amount must be positive",
		"body.termUnit: Term unit must be DAY, WEEK, or MONTH",
		"body.minTerm: Minimum term must be at least 1",
		"body.maxTerm: Expected integer, received float",
		"body.maxAmount: Maximum amount must be greater than minimum amount",
	}, got)
}

func TestLoanTypeCreate_TermRangeCheckedDespiteFractionalTerm(t *testing.T) {
	body := loanTypeBody()
	body["minTerm"] = 5.5
	body["maxTerm"] = 2.0

	res := validate(t, LoanTypeCreate, v.Input{Body: body})

	var got []string
	for _, viol := range res.Violations() {
		got = append(got, viol.String())
	}
	assert.Equal(t, []string{
		"body.minTerm: Expected integer, received float",
		"body.maxTerm: Maximum term must be greater than or equal to minimum term",
	}, got)
}

func TestLoanTypeCreate_TermOutOfIntegerRange(t *testing.T) {
	body := loanTypeBody()
	body["maxTerm"] = 1e20

	res := validate(t, LoanTypeCreate, v.Input{Body: body})

	// 超大值只报字段违规，不会被截断成负数而误报区间错误
	require.Len(t, res.Violations(), 1)
	assert.Equal(t, "body.maxTerm: Integer out of range", res.Violations()[0].String())
}

// 只要 maxAmount ≤ minAmount，maxAmount 上总有违规
func TestProperty_LoanTypeMaxAmountNotAboveMin(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		minAmount := rapid.Float64Range(-1e6, 1e6).Draw(rt, "min")
		maxAmount := rapid.Float64Range(-1e6, minAmount).Draw(rt, "max")
		body := loanTypeBody()
		body["minAmount"] = minAmount
		body["maxAmount"] = maxAmount
		if rapid.Bool().Draw(rt, "breakName") {
			body["name"] = "x"
		}

		res, err := Default().Validate(LoanTypeCreate, v.Input{Body: body})
		require.NoError(rt, err)
		require.False(rt, res.OK())

		onMax := false
		for _, viol := range res.Violations() {
			if viol.Path() == "body.maxAmount" {
				onMax = true
			}
		}
		require.True(rt, onMax, "violations: %v", res.Violations())
	})
}

func TestProperty_LoanTypeMaxTermBelowMin(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		minTerm := rapid.IntRange(2, 360).Draw(rt, "minTerm")
		maxTerm := rapid.IntRange(1, minTerm-1).Draw(rt, "maxTerm")
		body := loanTypeBody()
		body["minTerm"] = float64(minTerm)
		body["maxTerm"] = float64(maxTerm)

		res, err := Default().Validate(LoanTypeCreate, v.Input{Body: body})
		require.NoError(rt, err)
		require.Len(rt, res.Violations(), 1)
		require.Equal(rt, "body.maxTerm", res.Violations()[0].Path())
	})
}

func TestLoanTypeUpdate(t *testing.T) {
	params := map[string]any{"id": "lt-1"}

	res := validate(t, LoanTypeUpdate, v.Input{Body: map[string]any{"isActive": false}, Params: params})
	require.True(t, res.OK())
	assert.Equal(t, map[string]any{"isActive": false}, res.Data().Body)

	// 只给一端时不检查区间
	res = validate(t, LoanTypeUpdate, v.Input{Body: map[string]any{"maxAmount": 10.0}, Params: params})
	assert.True(t, res.OK())

	res = validate(t, LoanTypeUpdate, v.Input{Body: map[string]any{"minAmount": 10.0, "maxAmount": 5.0}, Params: params})
	require.Len(t, res.Violations(), 1)
	assert.Equal(t, "body.maxAmount", res.Violations()[0].Path())

	res = validate(t, LoanTypeUpdate, v.Input{Body: map[string]any{}})
	require.Len(t, res.Violations(), 1)
	assert.Equal(t, "params.id", res.Violations()[0].Path())
}

// --- 用户 ---

func TestUserUpdate_UnionNormalization(t *testing.T) {
	params := map[string]any{"id": "u-1"}

	tests := []struct {
		name         string
		body         map[string]any
		wantActive   any
		wantBranch   any
		branchInBody bool
	}{
		{name: "string true", body: map[string]any{"isActive": "true"}, wantActive: true},
		{name: "bool true", body: map[string]any{"isActive": true}, wantActive: true},
		{name: "string false", body: map[string]any{"isActive": "false"}, wantActive: false},
		{name: "null branch", body: map[string]any{"branchId": nil}, wantBranch: nil, branchInBody: true},
		{name: "sentinel branch", body: map[string]any{"branchId": "null"}, wantBranch: nil, branchInBody: true},
		{name: "empty branch", body: map[string]any{"branchId": ""}, wantBranch: nil, branchInBody: true},
		{name: "real branch", body: map[string]any{"branchId": "b-9"}, wantBranch: "b-9", branchInBody: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := validate(t, UserUpdate, v.Input{Body: tt.body, Params: params})
			require.True(t, res.OK(), "%v", res.Violations())
			if _, ok := tt.body["isActive"]; ok {
				assert.Equal(t, tt.wantActive, res.Data().Body["isActive"])
			}
			if tt.branchInBody {
				got, present := res.Data().Body["branchId"]
				assert.True(t, present)
				assert.Equal(t, tt.wantBranch, got)
			}
		})
	}

	res := validate(t, UserUpdate, v.Input{Body: map[string]any{"isActive": "yes"}, Params: params})
	require.Len(t, res.Violations(), 1)
	assert.Equal(t, "body.isActive", res.Violations()[0].Path())
	assert.Equal(t, "Invalid boolean value", res.Violations()[0].Message)
}

func TestUserCreate(t *testing.T) {
	res := validate(t, UserCreate, v.Input{Body: map[string]any{
		"email":    "officer@example.com",
		"password": "longenough",
		"role":     "CREDIT_OFFICER",
	}})
	require.True(t, res.OK())

	res = validate(t, UserCreate, v.Input{Body: map[string]any{
		"email":    "bad",
		"password": "short",
		"role":     "ROOT",
	}})
	assert.Len(t, res.Violations(), 3)
}

// --- 客户 ---

func TestCustomerCreate(t *testing.T) {
	body := map[string]any{
		"firstName":   "Ada",
		"lastName":    "Obi",
		"phone":       "+2348000000000",
		"email":       "",
		"dateOfBirth": "1990-05-01",
		"branchId":    "b-1",
		"city":        "Lagos",
	}
	res := validate(t, CustomerCreate, v.Input{Body: body})
	require.True(t, res.OK(), "%v", res.Violations())
	assert.Equal(t, "", res.Data().Body["email"])
	assert.Equal(t, time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC), res.Data().Body["dateOfBirth"])

	young := time.Now().AddDate(-10, 0, 0).Format("2006-01-02")
	body["dateOfBirth"] = young
	body["email"] = "not-an-email"
	res = validate(t, CustomerCreate, v.Input{Body: body})
	got := map[string]string{}
	for _, viol := range res.Violations() {
		got[viol.Path()] = viol.Message
	}
	assert.Equal(t, map[string]string{
		"body.email":       "Invalid email address",
		"body.dateOfBirth": "Must be at least 16 years old",
	}, got)
}

func TestCustomerUpdate_MinOrEmpty(t *testing.T) {
	params := map[string]any{"id": "c-1"}

	res := validate(t, CustomerUpdate, v.Input{Body: map[string]any{"firstName": "", "phone": ""}, Params: params})
	assert.True(t, res.OK())

	res = validate(t, CustomerUpdate, v.Input{Body: map[string]any{"firstName": "A"}, Params: params})
	require.Len(t, res.Violations(), 1)
	assert.Equal(t, "String must contain at least 2 character(s)", res.Violations()[0].Message)
}

func TestCustomerReassign(t *testing.T) {
	params := map[string]any{"id": "c-1"}

	res := validate(t, CustomerReassign, v.Input{Body: map[string]any{"reason": "moved"}, Params: params})
	require.Len(t, res.Violations(), 1)
	assert.Equal(t, "body.newBranchId", res.Violations()[0].Path())

	res = validate(t, CustomerReassign, v.Input{Body: map[string]any{"newOfficerId": "u-2"}, Params: params})
	assert.True(t, res.OK())
}

// --- 分支机构 ---

func TestBranchSchemas(t *testing.T) {
	res := validate(t, BranchCreate, v.Input{Body: map[string]any{"name": "HQ"}})
	require.Len(t, res.Violations(), 1)
	assert.Equal(t, "Branch name must be at least 3 characters", res.Violations()[0].Message)

	res = validate(t, BranchUpdate, v.Input{
		Body:   map[string]any{"code": "TOOLONGCODE1", "managerId": "null"},
		Params: map[string]any{"id": "b-1"},
	})
	require.Len(t, res.Violations(), 1)
	assert.Equal(t, "body.code", res.Violations()[0].Path())
}

// --- 认证 ---

func TestAuthRegister(t *testing.T) {
	ok := map[string]any{"email": "a@b.co", "password": "Str0ng!pw", "confirmPassword": "Str0ng!pw"}
	assert.True(t, validate(t, AuthRegister, v.Input{Body: ok}).OK())

	mismatch := map[string]any{"email": "a@b.co", "password": "Str0ng!pw", "confirmPassword": "other"}
	res := validate(t, AuthRegister, v.Input{Body: mismatch})
	require.Len(t, res.Violations(), 1)
	assert.Equal(t, "body.confirmPassword", res.Violations()[0].Path())
	assert.Equal(t, "Passwords don't match", res.Violations()[0].Message)

	weak := map[string]any{"email": "a@b.co", "password": "alllowercase", "confirmPassword": "alllowercase"}
	res = validate(t, AuthRegister, v.Input{Body: weak})
	require.Len(t, res.Violations(), 1)
	assert.Equal(t, "body.password", res.Violations()[0].Path())
	assert.Equal(t, passwordComplexityMessage, res.Violations()[0].Message)
}

func TestComplexPassword(t *testing.T) {
	assert.True(t, complexPassword("Aa1@aaaa"))
	assert.False(t, complexPassword("Aa1aaaaa"))
	assert.False(t, complexPassword("aa1@aaaa"))
	assert.False(t, complexPassword("ÄÄ1@aaaa"))
}
