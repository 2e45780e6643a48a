package validation

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestProperty_Determinism 同一 Schema 与同一载荷的两次校验结果完全一致
func TestProperty_Determinism(t *testing.T) {
	schema := rangeSchema()

	rapid.Check(t, func(rt *rapid.T) {
		body := map[string]any{}
		if rapid.Bool().Draw(rt, "hasLabel") {
			body["label"] = rapid.String().Draw(rt, "label")
		}
		if rapid.Bool().Draw(rt, "hasLow") {
			body["low"] = rapid.Float64Range(-1e6, 1e6).Draw(rt, "low")
		}
		if rapid.Bool().Draw(rt, "highIsString") {
			body["high"] = rapid.String().Draw(rt, "highStr")
		} else {
			body["high"] = rapid.Float64Range(-1e6, 1e6).Draw(rt, "high")
		}
		in := Input{Body: body, Params: map[string]any{"id": rapid.String().Draw(rt, "id")}}

		first := schema.Validate(in)
		second := schema.Validate(in)

		require.Equal(rt, first.OK(), second.OK())
		require.Equal(rt, first.Violations(), second.Violations())
		if first.OK() {
			require.True(rt, reflect.DeepEqual(first.Data(), second.Data()))
		}
		// 结果要么有数据，要么有违规
		require.True(rt, first.OK() == (first.Data() != nil))
		require.True(rt, first.OK() == (len(first.Violations()) == 0))
	})
}

// TestProperty_MissingRequiredFieldNamed 缺少任意必填字段时，违规中一定包含该字段路径
func TestProperty_MissingRequiredFieldNamed(t *testing.T) {
	schema := rangeSchema()
	required := []string{"label", "low", "high"}

	rapid.Check(t, func(rt *rapid.T) {
		missing := rapid.SampledFrom(required).Draw(rt, "missing")
		in := validInput()
		body := map[string]any{}
		for k, v := range in.Body.(map[string]any) {
			if k != missing {
				body[k] = v
			}
		}
		in.Body = body

		res := schema.Validate(in)
		require.False(rt, res.OK())

		found := false
		for _, v := range res.Violations() {
			if v.Path() == "body."+missing && v.Message == "Required" {
				found = true
			}
		}
		require.True(rt, found, "missing %s not reported: %v", missing, res.Violations())
	})
}

// TestProperty_BoolLikeNormalization 字符串形式与布尔形式规范化为同一值，其它字符串一律拒绝
func TestProperty_BoolLikeNormalization(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	rule := BoolLike("")

	properties.Property("string and boolean forms agree", prop.ForAll(
		func(b bool) bool {
			fromBool, issue1 := rule.Apply(b)
			fromString, issue2 := rule.Apply(fmt.Sprintf("%t", b))
			return issue1 == nil && issue2 == nil && fromBool == b && fromString == b
		},
		gen.Bool(),
	))

	properties.Property("any other string is rejected", prop.ForAll(
		func(s string) bool {
			if s == "true" || s == "false" {
				return true
			}
			out, issue := rule.Apply(s)
			return out == nil && issue != nil && issue.Message == "Invalid boolean value"
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// TestProperty_NullableRefSentinels 三种空表示都规范化为 nil，其它字符串原样保留
func TestProperty_NullableRefSentinels(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)
	rule := NullableRef()

	properties.Property("non-sentinel strings pass through", prop.ForAll(
		func(s string) bool {
			out, issue := rule.Apply(s)
			if issue != nil {
				return false
			}
			if s == "" || s == "null" {
				return out == nil
			}
			return out == s
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
