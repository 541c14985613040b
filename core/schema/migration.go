package schema

import (
	"net/url"
	"slices"
)

// Migrate applies rules, in order, to every schema node of doc in a single
// walk. Rules run on a node before any of its children are visited.
func Migrate(doc Document, rules ...Visitor) {
	Walk(doc, func(node Document) {
		for _, rule := range rules {
			rule(node)
		}
	})
}

// RewriteRefs replaces every $ref in doc with fn's result. An empty result
// removes the $ref.
func RewriteRefs(doc Document, fn func(ref string) string) {
	Walk(doc, func(node Document) {
		ref, ok := node.Ref()
		if !ok {
			return
		}
		if next := fn(ref); next != "" {
			node["$ref"] = next
		} else {
			delete(node, "$ref")
		}
	})
}

// Refs lists the distinct $ref values of doc in visiting order.
func Refs(doc Document) []string {
	var refs []string
	Walk(doc, func(node Document) {
		if ref, ok := node.Ref(); ok && !slices.Contains(refs, ref) {
			refs = append(refs, ref)
		}
	})
	return refs
}

// ExternalRefs resolves doc's $refs against base and returns the distinct
// document keys, other than base itself, that they point into. Unparseable
// references are ignored.
func ExternalRefs(doc Document, base string) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}
	self, _ := SplitKey(base)

	var keys []string
	for _, ref := range Refs(doc) {
		refURL, err := url.Parse(ref)
		if err != nil {
			continue
		}
		target, _ := SplitKey(baseURL.ResolveReference(refURL).String())
		if target == "" || target == self || slices.Contains(keys, target) {
			continue
		}
		keys = append(keys, target)
	}
	return keys
}
