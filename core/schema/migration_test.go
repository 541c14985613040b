package schema

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_AppliesRulesInOrder(t *testing.T) {
	doc := mustDecode(t, `{
		"definitions": {"v1": {"properties": {"id": {}}}},
		"examples": [{"definitions": {"untouched": {}}}]
	}`)

	renameDefinitions := func(node Document) {
		if defs, ok := node["definitions"]; ok {
			node["$defs"] = defs
			delete(node, "definitions")
		}
	}
	typeProperties := func(node Document) {
		if _, ok := node["properties"]; ok {
			node["type"] = "object"
		}
	}

	Migrate(doc, renameDefinitions, typeProperties)

	assert.NotContains(t, doc, "definitions")
	v1 := doc["$defs"].(map[string]any)["v1"].(map[string]any)
	assert.Equal(t, "object", v1["type"])

	example := doc["examples"].([]any)[0].(map[string]any)
	assert.Contains(t, example, "definitions")
}

func TestRewriteRefs(t *testing.T) {
	doc := mustDecode(t, `{
		"properties": {
			"a": {"$ref": "#/definitions/a"},
			"b": {"$ref": "https://example.org/drop.json"}
		},
		"definitions": {"a": {"type": "string"}}
	}`)

	RewriteRefs(doc, func(ref string) string {
		if strings.HasPrefix(ref, "#/definitions/") {
			return "#/$defs/" + strings.TrimPrefix(ref, "#/definitions/")
		}
		return ""
	})

	props := doc["properties"].(map[string]any)
	assert.Equal(t, "#/$defs/a", props["a"].(map[string]any)["$ref"])
	assert.NotContains(t, props["b"].(map[string]any), "$ref")
}

func TestRefs(t *testing.T) {
	doc := mustDecode(t, `{
		"allOf": [
			{"$ref": "https://formats.openag.io/test/b.schema.json"},
			{"$ref": "https://formats.openag.io/test/b.schema.json"},
			{"$ref": "#/$defs/x"}
		],
		"$defs": {"x": {"type": "string"}}
	}`)

	assert.Equal(t, []string{
		"https://formats.openag.io/test/b.schema.json",
		"#/$defs/x",
	}, Refs(doc))
}

func TestExternalRefs(t *testing.T) {
	doc := mustDecode(t, `{
		"properties": {
			"link": {"$ref": "../link/v1.schema.json"},
			"self": {"$ref": "#/$defs/a"},
			"remote": {"$ref": "https://example.org/schemas/x.json#/$defs/y"},
			"sameDoc": {"$ref": "v1.schema.json#/$defs/a"}
		}
	}`)

	got := ExternalRefs(doc, "https://formats.openag.io/oada/bookmarks/v1.schema.json")
	assert.ElementsMatch(t, []string{
		"https://formats.openag.io/oada/link/v1.schema.json",
		"https://example.org/schemas/x.json",
	}, got)
}

func TestDecodeYAML(t *testing.T) {
	doc, err := DecodeYAML(bytes.NewBufferString(`
$id: https://formats.openag.io/test/y.schema.json
type: object
properties:
  count:
    type: integer
    minimum: 1
`))
	require.NoError(t, err)
	assert.Equal(t, "https://formats.openag.io/test/y.schema.json", doc.ID())

	jsonDoc := mustDecode(t, `{
		"$id": "https://formats.openag.io/test/y.schema.json",
		"type": "object",
		"properties": {"count": {"type": "integer", "minimum": 1}}
	}`)
	assert.Equal(t, jsonDoc, doc)
}

func TestDecode_RejectsNonObject(t *testing.T) {
	_, err := Decode(strings.NewReader(`[1, 2]`))
	assert.Error(t, err)

	_, err = Decode(strings.NewReader(`{"broken": `))
	assert.Error(t, err)
}

func TestSplitKey(t *testing.T) {
	doc, frag := SplitKey("https://formats.openag.io/test/bar.schema.json#/$defs/v1")
	assert.Equal(t, "https://formats.openag.io/test/bar.schema.json", doc)
	assert.Equal(t, "/$defs/v1", frag)

	doc, frag = SplitKey("https://formats.openag.io/test/bar.schema.json")
	assert.Equal(t, "https://formats.openag.io/test/bar.schema.json", doc)
	assert.Empty(t, frag)

	assert.Equal(t, "a#/b", JoinKey("a", "/b"))
	assert.Equal(t, "a", JoinKey("a", ""))
}

func TestDocumentID(t *testing.T) {
	assert.Equal(t, "https://json-schema.org/draft/2019-09/schema",
		Document{"$id": "https://json-schema.org/draft/2019-09/schema#"}.ID())
	assert.Empty(t, Document{}.ID())
}
