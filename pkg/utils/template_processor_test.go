package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessTemplate(t *testing.T) {
	variables := map[string]interface{}{
		"name": "Ada",
		"input": map[string]interface{}{
			"count": 42,
		},
		"result": map[string]interface{}{
			"tool_calls": []interface{}{
				map[string]interface{}{
					"function": map[string]interface{}{
						"arguments": `{"query":"test query"}`,
					},
				},
			},
		},
	}

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "Simple variable",
			template: "Hi {{name}}",
			expected: "Hi Ada",
		},
		{
			name:     "Nested path",
			template: "Got: {{input.count}}",
			expected: "Got: 42",
		},
		{
			name:     "Array index",
			template: "Args: {{result.tool_calls[0].function.arguments}}",
			expected: `Args: {"query":"test query"}`,
		},
		{
			name:     "With fromjson function",
			template: "Query: {{result.tool_calls[0].function.arguments | fromjson | .query}}",
			expected: "Query: test query",
		},
		{
			name:     "No placeholders",
			template: "plain text",
			expected: "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ProcessTemplate(tt.template, variables)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestProcessTemplateUndefinedVariable(t *testing.T) {
	_, err := ProcessTemplate("Hi {{missing}}", map[string]interface{}{"name": "Ada"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestProcessTemplateUndefinedNestedPath(t *testing.T) {
	variables := map[string]interface{}{
		"input": map[string]interface{}{"count": 42},
	}
	_, err := ProcessTemplate("{{input.total}}", variables)
	require.Error(t, err)
}

func TestProcessTemplateBadIndex(t *testing.T) {
	variables := map[string]interface{}{
		"items": []interface{}{"a"},
	}
	_, err := ProcessTemplate("{{items[3]}}", variables)
	require.Error(t, err)
}

func TestProcessTemplateMapValueRendersAsJSON(t *testing.T) {
	variables := map[string]interface{}{
		"obj": map[string]interface{}{"k": "v"},
	}
	result, err := ProcessTemplate("{{obj}}", variables)
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"v"}`, result)
}

func TestTemplateVariables(t *testing.T) {
	template := "{{a.b}} then {{c[0] | fromjson}} and {{a.b}} again"
	assert.Equal(t, []string{"a.b", "c[0]"}, TemplateVariables(template))
	assert.Empty(t, TemplateVariables("no placeholders"))
}
