// Package schemas bundles the OADA format schemas shipped with the module
// and the JSON Schema meta-schema they are written against.
//
// The bundle mirrors the formats.openag.io tree: the file
// oada/bookmarks.schema.json is the document published as
// https://formats.openag.io/oada/bookmarks.schema.json. Documents may be
// authored in YAML; they are served under their .json key.
package schemas

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"

	"github.com/OADA/formats-sub000/core/schema"
)

//go:embed bundle
var bundleFS embed.FS

//go:embed meta/draft2019-09.schema.json
var metaSchema []byte

// MetaSchemaID is the $id of the bundled meta-schema.
const MetaSchemaID = "https://json-schema.org/draft/2019-09/schema"

// Bundle returns the bundled schema tree, rooted so that paths match the
// path part of each schema's key.
func Bundle() fs.FS {
	sub, err := fs.Sub(bundleFS, "bundle")
	if err != nil {
		panic(fmt.Sprintf("schemas: invalid embedded bundle: %v", err))
	}
	return sub
}

// MetaSchema decodes a fresh copy of the draft 2019-09 meta-schema.
func MetaSchema() (schema.Document, error) {
	doc, err := schema.Decode(bytes.NewReader(metaSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to decode meta-schema: %w", err)
	}
	return doc, nil
}
