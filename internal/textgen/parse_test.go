package textgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseObject(t *testing.T) {
	t.Run("strict object", func(t *testing.T) {
		obj, ok := ParseObject(`{"wins":["a"],"stumbles":[]}`)
		require.True(t, ok)
		assert.Equal(t, []any{"a"}, obj["wins"])
	})

	t.Run("object wrapped in prose", func(t *testing.T) {
		obj, ok := ParseObject("Sure! Here it is:\n```json\n{\"wins\": [\"x\"]}\n```")
		require.True(t, ok)
		assert.Equal(t, []any{"x"}, obj["wins"])
	})

	t.Run("trailing commas", func(t *testing.T) {
		obj, ok := ParseObject(`{"wins": ["a", "b",], "patterns": [],}`)
		require.True(t, ok)
		assert.Len(t, obj["wins"], 2)
	})

	t.Run("missing closing brace is balanced", func(t *testing.T) {
		obj, ok := ParseObject(`{"wins": ["a"], "meta": {"n": 1}`)
		require.True(t, ok)
		assert.Equal(t, []any{"a"}, obj["wins"])
	})

	t.Run("cut inside a string stays unparsed", func(t *testing.T) {
		_, ok := ParseObject(`{"wins": ["a"], "meta": {"n": "x}`)
		assert.False(t, ok)
	})

	t.Run("array is not an object", func(t *testing.T) {
		_, ok := ParseObject(`["a", "b"]`)
		assert.False(t, ok)
	})

	t.Run("no braces", func(t *testing.T) {
		_, ok := ParseObject("I cannot help with that.")
		assert.False(t, ok)
	})

	t.Run("empty", func(t *testing.T) {
		_, ok := ParseObject("   ")
		assert.False(t, ok)
	})
}

func TestRepairJSON(t *testing.T) {
	assert.Equal(t, `{"a": [1, 2]}`, RepairJSON(`{"a": [1, 2,]}`))
	assert.Equal(t, `{"a": {"b": [1]}}`, RepairJSON(`{"a": {"b": [1]}`))
	assert.Equal(t, `{"a": [1]}`, RepairJSON(`{"a": [1]`))

	// odd quote count: cut inside a string, no closers appended
	assert.Equal(t, `{"a": "unterminated}`, RepairJSON(`{"a": "unterminated}`))
}

func TestCoercion(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, StringList([]any{" a ", "", 3.0, "b", nil}))
	assert.Equal(t, []string{}, StringList("not a list"))

	assert.Equal(t, "5", String(5.0))
	assert.Equal(t, "x", String("x"))
	assert.Equal(t, "", String(nil))

	assert.Equal(t, 5, Int(5.0, 1))
	assert.Equal(t, 7, Int("7", 1))
	assert.Equal(t, 1, Int("seven", 1))
	assert.Equal(t, 1, Int(nil, 1))
}
