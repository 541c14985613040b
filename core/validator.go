// Package core holds the contract shared by the resolver and the registry: the
// compiled validator abstraction and the error taxonomy for schema resolution.
package core

// Validator is a compiled schema. Validate returns nil when the instance
// conforms and a descriptive error otherwise. Instances are expected to be
// decoded JSON values (maps, slices, strings, json.Number, float64, bool, nil).
type Validator interface {
	Validate(instance any) error
}

// Accepts reports whether v validates instance without error.
func Accepts(v Validator, instance any) bool {
	if v == nil {
		return false
	}
	return v.Validate(instance) == nil
}
