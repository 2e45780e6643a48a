package validation

import (
	"fmt"
	"sort"
)

// =============================================================================
// 📐 对象与 Schema
// =============================================================================

// Section 请求载荷分区
type Section string

const (
	SectionBody   Section = "body"
	SectionQuery  Section = "query"
	SectionParams Section = "params"
)

// FieldSpec 单个字段的声明
type FieldSpec struct {
	name     string
	rule     Rule
	optional bool
}

// Field 声明必填字段
func Field(name string, rule Rule) FieldSpec {
	return FieldSpec{name: name, rule: rule}
}

// Optional 将字段标记为可缺省；缺省的字段不会出现在规范化结果中
func (f FieldSpec) Optional() FieldSpec {
	f.optional = true
	return f
}

// Name 字段名
func (f FieldSpec) Name() string { return f.name }

// Refinement 跨字段约束
//
// Requires 列出约束依赖的字段：这些字段都存在且类型被接受时 Check 即执行，
// 即使其中某个字段的取值约束（最小值、整数等）失败。
// Requires 为空时，要求整个对象的字段规则全部通过。
// Check 接收已规范化的数据；返回 false 时把 Message 挂到 Path 字段上。
type Refinement struct {
	Path     string
	Requires []string
	Message  string
	Check    func(data map[string]any) bool
}

// ObjectRule 对象规则：有序字段 + 有序跨字段约束
type ObjectRule struct {
	fields      []FieldSpec
	refinements []Refinement
	strict      bool
}

// Object 创建对象规则
func Object(fields ...FieldSpec) *ObjectRule {
	return &ObjectRule{fields: append([]FieldSpec(nil), fields...)}
}

func (o *ObjectRule) clone() *ObjectRule {
	return &ObjectRule{
		fields:      append([]FieldSpec(nil), o.fields...),
		refinements: append([]Refinement(nil), o.refinements...),
		strict:      o.strict,
	}
}

// Refine 追加跨字段约束
func (o *ObjectRule) Refine(r Refinement) *ObjectRule {
	next := o.clone()
	next.refinements = append(next.refinements, r)
	return next
}

// Strict 拒绝未声明的字段（默认静默丢弃）
func (o *ObjectRule) Strict() *ObjectRule {
	next := o.clone()
	next.strict = true
	return next
}

// Fields 返回字段名（声明顺序）
func (o *ObjectRule) Fields() []string {
	names := make([]string, len(o.fields))
	for i, f := range o.fields {
		names[i] = f.name
	}
	return names
}

// fieldIssue 对象内部的失败，field 为空表示对象本身
type fieldIssue struct {
	field   string
	message string
}

// validate 校验一个对象，返回规范化数据或问题列表
func (o *ObjectRule) validate(value any) (map[string]any, []fieldIssue) {
	if value == nil {
		return nil, []fieldIssue{{message: "Required"}}
	}
	input, ok := value.(map[string]any)
	if !ok {
		return nil, []fieldIssue{{message: fmt.Sprintf("Expected object, received %s", kindOf(value))}}
	}

	var issues []fieldIssue
	out := make(map[string]any, len(o.fields))
	// 约束失败但类型正确的字段值，只供跨字段约束读取
	refinable := make(map[string]any)

	for _, f := range o.fields {
		raw, present := input[f.name]
		if !present {
			if f.optional {
				continue
			}
			issues = append(issues, fieldIssue{field: f.name, message: "Required"})
			continue
		}
		normalized, issue := f.rule.Apply(raw)
		if issue != nil {
			issues = append(issues, fieldIssue{field: f.name, message: issue.Message})
			if !issue.TypeMismatch && issue.Value != nil {
				refinable[f.name] = issue.Value
			}
			continue
		}
		out[f.name] = normalized
	}

	if o.strict {
		var unknown []string
		for key := range input {
			if !o.declares(key) {
				unknown = append(unknown, key)
			}
		}
		sort.Strings(unknown)
		for _, key := range unknown {
			issues = append(issues, fieldIssue{field: key, message: "Unrecognized key"})
		}
	}

	fieldsOK := len(issues) == 0
	refData := out
	if len(refinable) > 0 {
		refData = make(map[string]any, len(out)+len(refinable))
		for k, v := range out {
			refData[k] = v
		}
		for k, v := range refinable {
			refData[k] = v
		}
	}
	for _, r := range o.refinements {
		if !r.ready(refData, fieldsOK) {
			continue
		}
		if !r.Check(refData) {
			issues = append(issues, fieldIssue{field: r.Path, message: r.Message})
		}
	}

	if len(issues) > 0 {
		return nil, issues
	}
	return out, nil
}

func (o *ObjectRule) declares(key string) bool {
	for _, f := range o.fields {
		if f.name == key {
			return true
		}
	}
	return false
}

// ready 判断约束的前置字段是否都已就绪。
// data 只含通过的字段与约束失败但类型正确的字段，缺省或类型错误的字段不在其中。
func (r Refinement) ready(data map[string]any, fieldsOK bool) bool {
	if len(r.Requires) == 0 {
		return fieldsOK
	}
	for _, name := range r.Requires {
		if _, present := data[name]; !present {
			return false
		}
	}
	return true
}

// Apply 使 ObjectRule 可以作为嵌套字段规则使用；
// 嵌套时只报告第一条问题。
func (o *ObjectRule) Apply(value any) (any, *Issue) {
	out, issues := o.validate(value)
	if len(issues) > 0 {
		msg := issues[0].message
		if issues[0].field != "" {
			msg = issues[0].field + ": " + msg
		}
		_, isObject := value.(map[string]any)
		return nil, &Issue{Message: msg, TypeMismatch: !isObject}
	}
	return out, nil
}

// Schema 一个请求面的完整声明（body / query / params 各自可选）
type Schema struct {
	name     string
	sections map[Section]*ObjectRule
}

// sectionOrder 违规信息按此顺序输出
var sectionOrder = []Section{SectionBody, SectionQuery, SectionParams}

// NewSchema 创建 Schema
func NewSchema(name string) *Schema {
	return &Schema{name: name, sections: make(map[Section]*ObjectRule)}
}

func (s *Schema) with(section Section, o *ObjectRule) *Schema {
	next := &Schema{name: s.name, sections: make(map[Section]*ObjectRule, len(s.sections)+1)}
	for k, v := range s.sections {
		next.sections[k] = v
	}
	next.sections[section] = o
	return next
}

// Body 声明 body 分区
func (s *Schema) Body(o *ObjectRule) *Schema { return s.with(SectionBody, o) }

// Query 声明 query 分区
func (s *Schema) Query(o *ObjectRule) *Schema { return s.with(SectionQuery, o) }

// Params 声明 params 分区
func (s *Schema) Params(o *ObjectRule) *Schema { return s.with(SectionParams, o) }

// Name Schema 名称
func (s *Schema) Name() string { return s.name }

// Section 返回分区的对象规则，未声明时为 nil
func (s *Schema) Section(section Section) *ObjectRule { return s.sections[section] }

// Input 原始请求载荷
type Input struct {
	Body   any
	Query  map[string]any
	Params map[string]any
}

func (in Input) section(section Section) any {
	switch section {
	case SectionBody:
		return in.Body
	case SectionQuery:
		if in.Query == nil {
			return map[string]any{}
		}
		return in.Query
	case SectionParams:
		if in.Params == nil {
			return map[string]any{}
		}
		return in.Params
	}
	return nil
}

// Validate 校验载荷。纯函数：不做 I/O，不修改入参，也不持有请求状态。
func (s *Schema) Validate(in Input) Result {
	var (
		data       Data
		violations []Violation
	)

	for _, section := range sectionOrder {
		obj, ok := s.sections[section]
		if !ok {
			continue
		}
		out, issues := obj.validate(in.section(section))
		for _, is := range issues {
			violations = append(violations, Violation{Section: section, Field: is.field, Message: is.message})
		}
		data.set(section, out)
	}

	if len(violations) > 0 {
		return Result{violations: violations}
	}
	return Result{data: &data}
}
