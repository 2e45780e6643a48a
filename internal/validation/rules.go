package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// =============================================================================
// 🧩 字段规则
// =============================================================================

// Issue 单条规则失败
//
// TypeMismatch 为 true 表示值的类型不在规则接受的表示集合内；
// 为 false 表示类型正确但约束未满足。OneOf 依此选择要报告的消息。
// 约束失败时 Value 携带已规范化的值，跨字段约束仍可据此执行。
type Issue struct {
	Message      string
	TypeMismatch bool
	Value        any
}

// Rule 对单个字段值进行校验并返回规范化后的值
type Rule interface {
	Apply(value any) (any, *Issue)
}

// RuleFunc 函数适配器
type RuleFunc func(value any) (any, *Issue)

// Apply 实现 Rule
func (f RuleFunc) Apply(value any) (any, *Issue) { return f(value) }

func mismatch(expected string, value any) *Issue {
	return &Issue{
		Message:      fmt.Sprintf("Expected %s, received %s", expected, kindOf(value)),
		TypeMismatch: true,
	}
}

func failed(msg string) *Issue {
	return &Issue{Message: msg}
}

// kindOf 返回用于错误消息的值类型名称
func kindOf(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "number"
	case time.Time:
		return "date"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}

// -----------------------------------------------------------------------------
// 字符串
// -----------------------------------------------------------------------------

type stringCheck func(s string) *Issue

// StringRule 字符串规则
type StringRule struct {
	checks []stringCheck
}

// String 创建字符串规则
func String() *StringRule {
	return &StringRule{}
}

func (r *StringRule) with(c stringCheck) *StringRule {
	checks := make([]stringCheck, len(r.checks), len(r.checks)+1)
	copy(checks, r.checks)
	return &StringRule{checks: append(checks, c)}
}

// Min 最少 n 个字符
func (r *StringRule) Min(n int, msg string) *StringRule {
	if msg == "" {
		msg = fmt.Sprintf("String must contain at least %d character(s)", n)
	}
	return r.with(func(s string) *Issue {
		if utf8.RuneCountInString(s) < n {
			return failed(msg)
		}
		return nil
	})
}

// Max 最多 n 个字符
func (r *StringRule) Max(n int, msg string) *StringRule {
	if msg == "" {
		msg = fmt.Sprintf("String must contain at most %d character(s)", n)
	}
	return r.with(func(s string) *Issue {
		if utf8.RuneCountInString(s) > n {
			return failed(msg)
		}
		return nil
	})
}

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9_'+\-.]*[A-Za-z0-9_+\-]@([A-Za-z0-9][A-Za-z0-9\-]*\.)+[A-Za-z]{2,}$`)

// isEmail 拒绝以点开头或含连续点的本地部分（RE2 不支持前瞻）
func isEmail(s string) bool {
	if strings.HasPrefix(s, ".") || strings.Contains(s, "..") {
		return false
	}
	return emailPattern.MatchString(s)
}

// Email 邮箱格式
func (r *StringRule) Email(msg string) *StringRule {
	if msg == "" {
		msg = "Invalid email"
	}
	return r.with(func(s string) *Issue {
		if !isEmail(s) {
			return failed(msg)
		}
		return nil
	})
}

// Matches 正则匹配
func (r *StringRule) Matches(re *regexp.Regexp, msg string) *StringRule {
	if msg == "" {
		msg = "Invalid"
	}
	return r.with(func(s string) *Issue {
		if !re.MatchString(s) {
			return failed(msg)
		}
		return nil
	})
}

// Check 自定义谓词，用于正则表达不了的约束（RE2 不支持前瞻）
func (r *StringRule) Check(ok func(s string) bool, msg string) *StringRule {
	return r.with(func(s string) *Issue {
		if !ok(s) {
			return failed(msg)
		}
		return nil
	})
}

// Apply 实现 Rule；按声明顺序报告第一条失败
func (r *StringRule) Apply(value any) (any, *Issue) {
	s, ok := value.(string)
	if !ok {
		return nil, mismatch("string", value)
	}
	for _, c := range r.checks {
		if issue := c(s); issue != nil {
			issue.Value = s
			return nil, issue
		}
	}
	return s, nil
}

// -----------------------------------------------------------------------------
// 数字
// -----------------------------------------------------------------------------

type numberCheck func(f float64) *Issue

// NumberRule 数字规则。接受 JSON 数字（float64 / json.Number）与 Go 整数类型，
// 规范化为 float64；声明 Int 后规范化为 int64。
type NumberRule struct {
	checks  []numberCheck
	integer bool
}

// Number 创建数字规则
func Number() *NumberRule {
	return &NumberRule{}
}

func (r *NumberRule) with(c numberCheck) *NumberRule {
	checks := make([]numberCheck, len(r.checks), len(r.checks)+1)
	copy(checks, r.checks)
	return &NumberRule{checks: append(checks, c), integer: r.integer}
}

// Positive 必须大于 0
func (r *NumberRule) Positive(msg string) *NumberRule {
	if msg == "" {
		msg = "Number must be greater than 0"
	}
	return r.with(func(f float64) *Issue {
		if f <= 0 {
			return failed(msg)
		}
		return nil
	})
}

// Int 必须为整数
func (r *NumberRule) Int(msg string) *NumberRule {
	if msg == "" {
		msg = "Expected integer, received float"
	}
	next := r.with(func(f float64) *Issue {
		if f != math.Trunc(f) {
			return failed(msg)
		}
		if f >= maxInt64Float || f < -maxInt64Float {
			return failed("Integer out of range")
		}
		return nil
	})
	next.integer = true
	return next
}

// maxInt64Float 2^63，float64 可精确表示；超出 int64 的整数无法规范化
const maxInt64Float = float64(1 << 63)

// Min 最小值（含）
func (r *NumberRule) Min(n float64, msg string) *NumberRule {
	if msg == "" {
		msg = fmt.Sprintf("Number must be greater than or equal to %v", n)
	}
	return r.with(func(f float64) *Issue {
		if f < n {
			return failed(msg)
		}
		return nil
	})
}

// Max 最大值（含）
func (r *NumberRule) Max(n float64, msg string) *NumberRule {
	if msg == "" {
		msg = fmt.Sprintf("Number must be less than or equal to %v", n)
	}
	return r.with(func(f float64) *Issue {
		if f > n {
			return failed(msg)
		}
		return nil
	})
}

// Apply 实现 Rule
func (r *NumberRule) Apply(value any) (any, *Issue) {
	f, ok := toFloat(value)
	if !ok {
		return nil, mismatch("number", value)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &Issue{Message: "Expected number, received nan", TypeMismatch: true}
	}
	for _, c := range r.checks {
		if issue := c(f); issue != nil {
			issue.Value = r.normalize(f)
			return nil, issue
		}
	}
	return r.normalize(f), nil
}

// normalize 整数规则下可安全转换的值转为 int64，其余保留 float64
func (r *NumberRule) normalize(f float64) any {
	if r.integer && f == math.Trunc(f) && f < maxInt64Float && f >= -maxInt64Float {
		return int64(f)
	}
	return f
}

// AsFloat 把规范化后的数字（float64 / int64 等）转为 float64，
// 供跨字段约束比较使用
func AsFloat(value any) (float64, bool) {
	return toFloat(value)
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// -----------------------------------------------------------------------------
// 布尔与受控联合表示
// -----------------------------------------------------------------------------

// Bool 仅接受真正的布尔值
func Bool() Rule {
	return RuleFunc(func(value any) (any, *Issue) {
		b, ok := value.(bool)
		if !ok {
			return nil, mismatch("boolean", value)
		}
		return b, nil
	})
}

// BoolLike 接受 true / false / "true" / "false"，统一规范化为 bool；
// 其它任何值（包括 "1"、"yes"、大小写变体）都拒绝。
func BoolLike(msg string) Rule {
	if msg == "" {
		msg = "Invalid boolean value"
	}
	return RuleFunc(func(value any) (any, *Issue) {
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			switch v {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
			return nil, failed(msg)
		default:
			return nil, &Issue{Message: msg, TypeMismatch: true}
		}
	})
}

// NullableRef 可空引用：实际的 null、字符串 "null" 与空串都规范化为 nil，
// 其它字符串原样保留。
func NullableRef() Rule {
	return RuleFunc(func(value any) (any, *Issue) {
		switch v := value.(type) {
		case nil:
			return nil, nil
		case string:
			if v == "" || v == "null" {
				return nil, nil
			}
			return v, nil
		default:
			return nil, mismatch("string", value)
		}
	})
}

// -----------------------------------------------------------------------------
// 枚举 / 字面量 / 联合
// -----------------------------------------------------------------------------

// EnumRule 枚举规则
type EnumRule struct {
	values []string
	msg    string
}

// Enum 创建枚举规则
func Enum(values ...string) *EnumRule {
	return &EnumRule{values: append([]string(nil), values...)}
}

// Message 覆盖默认消息
func (r *EnumRule) Message(msg string) *EnumRule {
	return &EnumRule{values: r.values, msg: msg}
}

// Values 返回允许的取值
func (r *EnumRule) Values() []string {
	return append([]string(nil), r.values...)
}

func (r *EnumRule) expected() string {
	quoted := make([]string, len(r.values))
	for i, v := range r.values {
		quoted[i] = "'" + v + "'"
	}
	return strings.Join(quoted, " | ")
}

// Apply 实现 Rule
func (r *EnumRule) Apply(value any) (any, *Issue) {
	s, ok := value.(string)
	if !ok {
		if r.msg != "" {
			return nil, &Issue{Message: r.msg, TypeMismatch: true}
		}
		return nil, mismatch(r.expected(), value)
	}
	for _, v := range r.values {
		if s == v {
			return s, nil
		}
	}
	if r.msg != "" {
		return nil, failed(r.msg)
	}
	return nil, failed(fmt.Sprintf("Invalid enum value. Expected %s, received '%s'", r.expected(), s))
}

// Literal 仅接受与 want 相等的值
func Literal(want any) Rule {
	return RuleFunc(func(value any) (any, *Issue) {
		switch value.(type) {
		case map[string]any, []any:
			return nil, mismatch(kindOf(want), value)
		}
		if value != want {
			return nil, &Issue{
				Message:      fmt.Sprintf("Invalid literal value, expected %q", fmt.Sprint(want)),
				TypeMismatch: kindOf(value) != kindOf(want),
			}
		}
		return value, nil
	})
}

// OneOfRule 联合规则
type OneOfRule struct {
	options []Rule
	msg     string
}

// OneOf 依次尝试各规则，第一个通过者的规范化结果生效。
// 全部失败时优先报告第一个“类型正确但约束失败”的消息，
// 否则报告 "Invalid input"（可用 Message 覆盖）。
func OneOf(options ...Rule) *OneOfRule {
	return &OneOfRule{options: append([]Rule(nil), options...)}
}

// Message 覆盖全部类型不匹配时的消息
func (r *OneOfRule) Message(msg string) *OneOfRule {
	return &OneOfRule{options: r.options, msg: msg}
}

// Apply 实现 Rule
func (r *OneOfRule) Apply(value any) (any, *Issue) {
	var constraint *Issue
	for _, opt := range r.options {
		out, issue := opt.Apply(value)
		if issue == nil {
			return out, nil
		}
		if !issue.TypeMismatch && constraint == nil {
			constraint = issue
		}
	}
	if constraint != nil {
		return nil, constraint
	}
	msg := r.msg
	if msg == "" {
		msg = "Invalid input"
	}
	return nil, &Issue{Message: msg, TypeMismatch: true}
}

// -----------------------------------------------------------------------------
// 日期
// -----------------------------------------------------------------------------

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// DateRule 日期规则：接受 time.Time 或可解析的日期字符串，规范化为 time.Time
type DateRule struct {
	minAge    int
	minAgeMsg string
	now       func() time.Time
}

// Date 创建日期规则
func Date() *DateRule {
	return &DateRule{now: time.Now}
}

// MinAge 要求到当前时间为止已满 years 周岁
func (r *DateRule) MinAge(years int, msg string) *DateRule {
	if msg == "" {
		msg = fmt.Sprintf("Must be at least %d years old", years)
	}
	return &DateRule{minAge: years, minAgeMsg: msg, now: r.now}
}

// Clock 替换时间源
func (r *DateRule) Clock(now func() time.Time) *DateRule {
	return &DateRule{minAge: r.minAge, minAgeMsg: r.minAgeMsg, now: now}
}

// Apply 实现 Rule
func (r *DateRule) Apply(value any) (any, *Issue) {
	var t time.Time
	switch v := value.(type) {
	case time.Time:
		t = v
	case string:
		parsed, ok := parseDate(v)
		if !ok {
			return nil, failed("Invalid date")
		}
		t = parsed
	default:
		return nil, mismatch("date", value)
	}

	if r.minAge > 0 && ageAt(t, r.now()) < r.minAge {
		issue := failed(r.minAgeMsg)
		issue.Value = t
		return nil, issue
	}
	return t, nil
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ageAt 计算 birth 在 now 时刻的周岁
func ageAt(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}
