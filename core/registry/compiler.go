package registry

import (
	"github.com/OADA/formats-sub000/core"
	"github.com/OADA/formats-sub000/core/schema"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Loader returns the raw document for a URL the compiler needs. URLs carry
// no fragment.
type Loader func(url string) (any, error)

// Compilation is the result of compiling one schema document. Fragment
// compiles a sub-schema of the same document, reusing everything that was
// already loaded; load is consulted for documents not yet seen and may be
// nil to keep the previous loader.
type Compilation interface {
	Root() core.Validator
	Fragment(pointer string, load Loader) (core.Validator, error)
}

// Compiler turns a schema document, and everything it references, into a
// validator. The registry calls Compile at most once per document key at a
// time.
type Compiler interface {
	Compile(key string, load Loader) (Compilation, error)
}

// CompilerOptions configures the default JSON Schema compiler.
type CompilerOptions struct {
	// Draft is used for documents that do not declare $schema.
	Draft *jsonschema.Draft

	// AssertFormat makes "format" an assertion instead of an annotation.
	AssertFormat bool

	// AssertContent makes contentEncoding and contentMediaType assertions.
	AssertContent bool
}

// DefaultCompilerOptions returns options for draft 2019-09 with format and
// content treated as annotations.
func DefaultCompilerOptions() *CompilerOptions {
	return &CompilerOptions{
		Draft: jsonschema.Draft2019,
	}
}

// JSONSchemaCompiler is the default Compiler, backed by
// github.com/santhosh-tekuri/jsonschema/v6.
type JSONSchemaCompiler struct {
	options *CompilerOptions
}

// Ensure JSONSchemaCompiler implements the Compiler interface.
var _ Compiler = (*JSONSchemaCompiler)(nil)

// NewJSONSchemaCompiler creates the default compiler. A nil options uses
// DefaultCompilerOptions.
func NewJSONSchemaCompiler(options *CompilerOptions) *JSONSchemaCompiler {
	if options == nil {
		options = DefaultCompilerOptions()
	}
	if options.Draft == nil {
		options.Draft = jsonschema.Draft2019
	}
	return &JSONSchemaCompiler{options: options}
}

// Compile compiles key with a fresh jsonschema.Compiler whose every URL load
// goes through load.
func (c *JSONSchemaCompiler) Compile(key string, load Loader) (Compilation, error) {
	jc := jsonschema.NewCompiler()
	jc.DefaultDraft(c.options.Draft)
	if c.options.AssertFormat {
		jc.AssertFormat()
	}
	if c.options.AssertContent {
		jc.AssertContent()
	}

	loader := &swappableLoader{load: load}
	jc.UseLoader(loader)

	sch, err := jc.Compile(key)
	if err != nil {
		return nil, err
	}
	return &jsonSchemaCompilation{
		key:      key,
		compiler: jc,
		loader:   loader,
		root:     sch,
	}, nil
}

type jsonSchemaCompilation struct {
	key      string
	compiler *jsonschema.Compiler
	loader   *swappableLoader
	root     *jsonschema.Schema
}

func (c *jsonSchemaCompilation) Root() core.Validator {
	return c.root
}

func (c *jsonSchemaCompilation) Fragment(pointer string, load Loader) (core.Validator, error) {
	if load != nil {
		c.loader.load = load
	}
	sch, err := c.compiler.Compile(schema.JoinKey(c.key, pointer))
	if err != nil {
		return nil, err
	}
	return sch, nil
}

// swappableLoader adapts a Loader to jsonschema.URLLoader. The registry
// replaces load when a later fragment compilation runs under a new context.
type swappableLoader struct {
	load Loader
}

func (l *swappableLoader) Load(url string) (any, error) {
	return l.load(url)
}
