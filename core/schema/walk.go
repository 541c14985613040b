package schema

import (
	"slices"
	"strconv"

	"github.com/OADA/formats-sub000/utils"
)

// Visitor is called once for every schema node. It may mutate node in place;
// schema-shaped values it adds are walked afterwards.
type Visitor func(node Document)

// PointerVisitor is a Visitor that also receives the node's JSON pointer
// relative to the walked root ("" for the root itself).
type PointerVisitor func(pointer string, node Document)

// Walk calls visit on doc and then, depth first, on every sub-schema of doc.
// A node is visited before its children, and its keywords are classified
// only after visit returns. Keywords are visited in sorted order.
func Walk(doc Document, visit Visitor) {
	if doc == nil || visit == nil {
		return
	}
	walk(doc, "", func(_ string, node Document) { visit(node) })
}

// WalkPointers is Walk with the JSON pointer of every visited node.
func WalkPointers(doc Document, visit PointerVisitor) {
	if doc == nil || visit == nil {
		return
	}
	walk(doc, "", visit)
}

func walk(node Document, pointer string, visit PointerVisitor) {
	visit(pointer, node)

	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		value, ok := node[k]
		if !ok {
			continue
		}
		at := pointer + "/" + utils.EscapePointerToken(k)

		switch Classify(k) {
		case ClassSkip:
		case ClassSchemaMap:
			walkMap(value, at, visit)
		case ClassSchemaArray:
			if items, ok := value.([]any); ok {
				for i, item := range items {
					if sub, ok := asDocument(item); ok {
						walk(sub, at+"/"+strconv.Itoa(i), visit)
					}
				}
				continue
			}
			if sub, ok := asDocument(value); ok {
				walk(sub, at, visit)
			}
		default:
			if sub, ok := asDocument(value); ok {
				walk(sub, at, visit)
			}
		}
	}
}

func walkMap(value any, pointer string, visit PointerVisitor) {
	m, ok := asDocument(value)
	if !ok {
		return
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if sub, ok := asDocument(m[name]); ok {
			walk(sub, pointer+"/"+utils.EscapePointerToken(name), visit)
		}
	}
}

func asDocument(v any) (Document, bool) {
	switch m := v.(type) {
	case Document:
		return m, m != nil
	case map[string]any:
		return Document(m), m != nil
	default:
		return nil, false
	}
}
