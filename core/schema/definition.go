// Package schema models JSON Schema documents as decoded JSON and provides a
// keyword-aware traversal engine for normalizing and migrating them.
package schema

import "strings"

// Document is a decoded JSON Schema object, as authored.
type Document map[string]any

// ID returns the document's declared $id with any empty trailing fragment
// removed, or "" when none is declared.
func (d Document) ID() string {
	id, _ := d["$id"].(string)
	return strings.TrimSuffix(id, "#")
}

// Ref returns the node's $ref value, if any.
func (d Document) Ref() (string, bool) {
	ref, ok := d["$ref"].(string)
	return ref, ok
}

// SplitKey separates a schema key into its document key and JSON-pointer
// fragment. The fragment is returned without the leading '#'.
func SplitKey(key string) (document, fragment string) {
	if i := strings.IndexByte(key, '#'); i >= 0 {
		return key[:i], key[i+1:]
	}
	return key, ""
}

// JoinKey builds a schema key from a document key and a JSON pointer.
func JoinKey(document, pointer string) string {
	if pointer == "" {
		return document
	}
	return document + "#" + pointer
}
