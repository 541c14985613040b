package schema

// Class describes how the traversal engine treats a keyword's value.
type Class int

const (
	// ClassUnknown keywords are walked only when their value is an object.
	ClassUnknown Class = iota
	// ClassSchemaMap keywords hold an object whose every value is a schema.
	ClassSchemaMap
	// ClassSchemaArray keywords hold an array of schemas. An object value is
	// walked as a single schema.
	ClassSchemaArray
	// ClassSkip keywords never hold schemas, whatever their value looks like.
	ClassSkip
)

func (c Class) String() string {
	switch c {
	case ClassSchemaMap:
		return "schema-map"
	case ClassSchemaArray:
		return "schema-array"
	case ClassSkip:
		return "skip"
	default:
		return "unknown"
	}
}

var keywordClasses = map[string]Class{
	// Each property value is a schema.
	"$defs":             ClassSchemaMap,
	"definitions":       ClassSchemaMap,
	"properties":        ClassSchemaMap,
	"patternProperties": ClassSchemaMap,
	"dependentSchemas":  ClassSchemaMap,
	"dependencies":      ClassSchemaMap,

	// Each array element is a schema.
	"allOf":       ClassSchemaArray,
	"anyOf":       ClassSchemaArray,
	"oneOf":       ClassSchemaArray,
	"items":       ClassSchemaArray,
	"prefixItems": ClassSchemaArray,

	// Data, identifiers and annotations.
	"$id":               ClassSkip,
	"$schema":           ClassSkip,
	"$ref":              ClassSkip,
	"$recursiveRef":     ClassSkip,
	"$recursiveAnchor":  ClassSkip,
	"$dynamicRef":       ClassSkip,
	"$dynamicAnchor":    ClassSkip,
	"$anchor":           ClassSkip,
	"$vocabulary":       ClassSkip,
	"$comment":          ClassSkip,
	"title":             ClassSkip,
	"description":       ClassSkip,
	"examples":          ClassSkip,
	"default":           ClassSkip,
	"enum":              ClassSkip,
	"const":             ClassSkip,
	"required":          ClassSkip,
	"dependentRequired": ClassSkip,
	"type":              ClassSkip,
	"format":            ClassSkip,
	"pattern":           ClassSkip,
	"contentMediaType":  ClassSkip,
	"contentEncoding":   ClassSkip,
	"deprecated":        ClassSkip,
	"readOnly":          ClassSkip,
	"writeOnly":         ClassSkip,
}

// Classify returns the traversal class of keyword.
func Classify(keyword string) Class {
	return keywordClasses[keyword]
}
