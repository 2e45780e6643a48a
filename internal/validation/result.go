package validation

import (
	"fmt"
	"strings"
)

// =============================================================================
// 📋 校验结果
// =============================================================================

// Violation 单条字段级违规
type Violation struct {
	Section Section `json:"-"`
	Field   string  `json:"-"`
	Message string  `json:"message"`
}

// Path 返回以分区开头的点分路径，例如 body.maxAmount
func (v Violation) Path() string {
	if v.Field == "" {
		return string(v.Section)
	}
	return string(v.Section) + "." + v.Field
}

// String 实现 fmt.Stringer
func (v Violation) String() string {
	return v.Path() + ": " + v.Message
}

// Data 规范化后的载荷；未在 Schema 中声明的分区为 nil
type Data struct {
	Body   map[string]any
	Query  map[string]any
	Params map[string]any
}

func (d *Data) set(section Section, values map[string]any) {
	switch section {
	case SectionBody:
		d.Body = values
	case SectionQuery:
		d.Query = values
	case SectionParams:
		d.Params = values
	}
}

// Result 要么携带规范化数据，要么携带违规列表，二者不会同时存在
type Result struct {
	data       *Data
	violations []Violation
}

// OK 是否通过
func (r Result) OK() bool { return len(r.violations) == 0 && r.data != nil }

// Data 返回规范化数据；未通过时为 nil
func (r Result) Data() *Data { return r.data }

// Violations 返回违规列表（副本）；通过时为空
func (r Result) Violations() []Violation {
	return append([]Violation(nil), r.violations...)
}

// Err 未通过时返回 *ValidationError，通过时返回 nil
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &ValidationError{Violations: r.Violations()}
}

// ValidationError 携带一次校验收集到的全部违规
type ValidationError struct {
	Violations []Violation
}

// Error 实现 error
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}

// Fields 返回违规字段路径（顺序与违规一致）
func (e *ValidationError) Fields() []string {
	paths := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		paths[i] = v.Path()
	}
	return paths
}
