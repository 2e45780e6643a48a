package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  plain  ", "plain"},
		{"<b>Bold</b> name", "Bold name"},
		{"<script>alert('x')</script>Ada", "Ada"},
		{"Tom & Jerry", "Tom & Jerry"},
		{"1 < 2", "1 < 2"},
		{`<a href="javascript:evil()">link</a>`, "link"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeString(tt.in), tt.in)
	}
}

func TestSanitize_Recursive(t *testing.T) {
	in := map[string]any{
		"name":  " <i>Biz</i> Loan ",
		"tags":  []any{"<b>a</b>", 1.0},
		"inner": map[string]any{"x": "<p>y</p>"},
		"n":     3.0,
		"flag":  true,
	}

	got := Sanitize(in).(map[string]any)

	assert.Equal(t, "Biz Loan", got["name"])
	assert.Equal(t, []any{"a", 1.0}, got["tags"])
	assert.Equal(t, map[string]any{"x": "y"}, got["inner"])
	assert.Equal(t, 3.0, got["n"])
	assert.Equal(t, true, got["flag"])
	// 入参不被修改
	assert.Equal(t, " <i>Biz</i> Loan ", in["name"])
}

func TestSanitize_KeepsPasswords(t *testing.T) {
	in := map[string]any{
		"email":           " admin@example.com ",
		"password":        " <Secret1&> ",
		"confirmPassword": "<b>x</b>",
	}

	got := Sanitize(in).(map[string]any)

	assert.Equal(t, "admin@example.com", got["email"])
	assert.Equal(t, " <Secret1&> ", got["password"])
	assert.Equal(t, "<b>x</b>", got["confirmPassword"])
}
