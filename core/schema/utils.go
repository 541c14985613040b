package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Decode reads a single JSON schema object from r. Numbers decode as
// json.Number so that the compiler sees them exactly as authored.
func Decode(r io.Reader) (Document, error) {
	v, err := jsonschema.UnmarshalJSON(r)
	if err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return asSchemaObject(v)
}

// DecodeYAML reads a schema authored as YAML and returns it in the same shape
// Decode would produce for the equivalent JSON.
func DecodeYAML(r io.Reader) (Document, error) {
	var v any
	if err := yaml.NewDecoder(r).Decode(&v); err != nil {
		return nil, fmt.Errorf("decode yaml schema: %w", err)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("convert yaml schema to json: %w", err)
	}
	return Decode(bytes.NewReader(b))
}

func asSchemaObject(v any) (Document, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("schema document must be an object, got %T", v)
	}
	return Document(m), nil
}
