package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleArgs struct {
	Query    string  `json:"query" description:"Search query"`
	Count    *int    `json:"count,omitempty" description:"Max results"`
	Strict   bool    `json:"strict"`
	Score    float64 `json:"score,omitempty"`
	hidden   string
	Skipped  string  `json:"-"`
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(sampleArgs{})

	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "query")
	assert.Contains(t, props, "count")
	assert.Contains(t, props, "strict")
	assert.NotContains(t, props, "hidden", "unexported fields are skipped")
	assert.NotContains(t, props, "Skipped", "json dash fields are skipped")

	query, _ := props["query"].(map[string]any)
	assert.Equal(t, "string", query["type"])
	assert.Equal(t, "Search query", query["description"])

	count, _ := props["count"].(map[string]any)
	assert.Equal(t, "integer", count["type"])

	assert.ElementsMatch(t, []string{"query", "strict"}, schema["required"])
}

func TestValidateParameters(t *testing.T) {
	schema := CreateSchema(sampleArgs{})

	t.Run("valid", func(t *testing.T) {
		err := ValidateParameters(map[string]any{"query": "golang", "strict": true, "count": float64(3)}, schema)
		assert.NoError(t, err)
	})

	t.Run("missing required", func(t *testing.T) {
		err := ValidateParameters(map[string]any{"query": "golang"}, schema)

		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "strict", ve.Field)
	})

	t.Run("wrong type", func(t *testing.T) {
		err := ValidateParameters(map[string]any{"query": 42, "strict": true}, schema)

		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "query", ve.Field)
	})

	t.Run("json float accepted as integer when whole", func(t *testing.T) {
		assert.NoError(t, ValidateParameters(map[string]any{"query": "x", "strict": false, "count": float64(5)}, schema))

		err := ValidateParameters(map[string]any{"query": "x", "strict": false, "count": 5.5}, schema)
		assert.Error(t, err)
	})

	t.Run("extra fields allowed", func(t *testing.T) {
		assert.NoError(t, ValidateParameters(map[string]any{"query": "x", "strict": false, "extra": "y"}, schema))
	})

	t.Run("required as []any", func(t *testing.T) {
		s := map[string]any{
			"type":       "object",
			"properties": map[string]any{"a": map[string]any{"type": "string"}},
			"required":   []any{"a"},
		}
		assert.Error(t, ValidateParameters(map[string]any{}, s))
		assert.NoError(t, ValidateParameters(map[string]any{"a": "x"}, s))
	})
}
