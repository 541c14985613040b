package schemas

import (
	"context"
	"io/fs"
	"testing"

	"github.com/OADA/formats-sub000/core/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetaSchema(t *testing.T) {
	doc, err := MetaSchema()
	require.NoError(t, err)
	assert.Equal(t, MetaSchemaID, doc.ID())
	assert.Contains(t, doc, "$vocabulary")

	// Each call decodes a fresh copy.
	doc["title"] = "changed"
	again, err := MetaSchema()
	require.NoError(t, err)
	assert.NotEqual(t, "changed", again["title"])
}

func TestBundle_Layout(t *testing.T) {
	var files []string
	err := fs.WalkDir(Bundle(), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"oada/bookmarks.schema.json",
		"oada/link/v1.schema.json",
		"oada/trellis/v1.schema.yaml",
	}, files)
}

func TestBundle_IDsMatchKeys(t *testing.T) {
	set, err := resolver.NewLocalSet(Bundle(), nil)
	require.NoError(t, err)

	for _, key := range set.Keys() {
		t.Run(key, func(t *testing.T) {
			doc, err := set.Fetch(context.Background(), key)
			require.NoError(t, err)
			assert.Equal(t, key, doc.ID())
		})
	}
}
