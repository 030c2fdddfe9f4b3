package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]any
	}{
		{
			name:  "bare object",
			input: `{"one_liner_en": "short"}`,
			want:  map[string]any{"one_liner_en": "short"},
		},
		{
			name:  "surrounded by prose",
			input: "Sure! Here is the JSON:\n{\"a\": 1}\nHope this helps.",
			want:  map[string]any{"a": float64(1)},
		},
		{
			name:  "code fence",
			input: "```json\n{\"tags\": [\"x\", \"y\"]}\n```",
			want:  map[string]any{"tags": []any{"x", "y"}},
		},
		{
			name:  "nested objects use outermost braces",
			input: `note {"outer": {"inner": true}} end`,
			want:  map[string]any{"outer": map[string]any{"inner": true}},
		},
		{
			name:  "missing opening quote on key",
			input: `{"a": "x", b": "y"}`,
			want:  map[string]any{"a": "x", "b": "y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractJSONObject_Failures(t *testing.T) {
	t.Run("no braces", func(t *testing.T) {
		_, err := ExtractJSONObject("I cannot summarize this paper.")
		assert.ErrorIs(t, err, ErrNoJSONObject)
	})

	t.Run("closing before opening", func(t *testing.T) {
		_, err := ExtractJSONObject("} nothing {")
		assert.ErrorIs(t, err, ErrNoJSONObject)
	})

	t.Run("broken span", func(t *testing.T) {
		_, err := ExtractJSONObject(`{"a": [1, 2}`)
		assert.ErrorIs(t, err, ErrMalformedJSON)
	})

	t.Run("two objects", func(t *testing.T) {
		_, err := ExtractJSONObject(`{"a": 1} and {"b": 2}`)
		assert.ErrorIs(t, err, ErrMalformedJSON)
	})
}

func TestRepairJSON(t *testing.T) {
	assert.Equal(t, `{"type": "x"}`, repairJSON(`{type": "x"}`))
	assert.Equal(t, `{"a": 1, "b_2": 2}`, repairJSON(`{"a": 1, b_2": 2}`))
	// Commas inside string values are left alone.
	assert.Equal(t, `{"a": "x, y"}`, repairJSON(`{"a": "x, y"}`))
}
