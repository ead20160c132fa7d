// File path: internal/docstore/docstore_test.go
package docstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterMatches(t *testing.T) {
	doc := Document{"plan_id": "ABCD1234", "count": json.Number("2")}
	assert.True(t, Eq("plan_id", "ABCD1234").Matches(doc))
	assert.False(t, Eq("plan_id", "abcd1234").Matches(doc))
	assert.True(t, Eq("count", 2).Matches(doc))
	assert.False(t, Eq("missing", nil).Matches(doc))
}

func TestFilterValidate(t *testing.T) {
	assert.NoError(t, Eq("plan_id", "x").Validate())
	assert.Error(t, Eq("plan_id'); DROP", "x").Validate())
	assert.Error(t, Eq("", "x").Validate())
}

func TestApplySetReportsModification(t *testing.T) {
	doc := Document{"title": "A", "section": map[string]any{"k": "v"}}

	assert.False(t, ApplySet(doc, Document{"title": "A", "section": map[string]any{"k": "v"}}))
	assert.True(t, ApplySet(doc, Document{"title": "B"}))
	assert.Equal(t, "B", doc["title"])
	assert.True(t, ApplySet(doc, Document{"new_field": 1}))
}

func TestUnmarshalKeepsNumbers(t *testing.T) {
	doc, err := Unmarshal([]byte(`{"n": 12345678901234567890, "nested": {"f": 1.50}}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("12345678901234567890"), doc["n"])
	assert.Equal(t, json.Number("1.50"), doc["nested"].(map[string]any)["f"])

	_, err = Unmarshal([]byte(`null`))
	assert.Error(t, err)
	_, err = Unmarshal([]byte(`[1]`))
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	doc, err := Normalize(Document{"rows": [][]string{{"a", ""}}, "n": 3})
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{"a", ""}}, doc["rows"])
	assert.Equal(t, json.Number("3"), doc["n"])
}
