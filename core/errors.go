package core

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaNotFound is matched by every SchemaNotFoundError.
	ErrSchemaNotFound = errors.New("schema not found")
	// ErrAlreadyCompiled is returned when a different document is registered
	// under a key whose validator has already been handed out.
	ErrAlreadyCompiled = errors.New("schema already compiled")
	// ErrCompilationInFlight is returned when a document is registered under a
	// key that is currently being compiled.
	ErrCompilationInFlight = errors.New("schema compilation in flight")
	// ErrMetaSchemaNotRegistered is returned by compilation before the
	// meta-schema has been registered.
	ErrMetaSchemaNotRegistered = errors.New("meta-schema not registered")
	// ErrMetaSchemaRegistered is returned when a second meta-schema is registered.
	ErrMetaSchemaRegistered = errors.New("meta-schema already registered")
	// ErrMissingID is returned when a document without $id is registered
	// without an explicit key.
	ErrMissingID = errors.New("schema document has no $id")
	// ErrFragmentKey is returned when a document is registered under a key
	// that carries a fragment.
	ErrFragmentKey = errors.New("schema documents cannot be registered under a fragment key")
)

// SchemaNotFoundError reports that no document is available for Key.
type SchemaNotFoundError struct {
	Key string
	Err error
}

func (e *SchemaNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("schema %q not found: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("schema %q not found", e.Key)
}

func (e *SchemaNotFoundError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrSchemaNotFound) hold for every SchemaNotFoundError.
func (e *SchemaNotFoundError) Is(target error) bool { return target == ErrSchemaNotFound }

// SchemaFetchError reports a failed remote retrieval. StatusCode is zero when
// no HTTP response was received.
type SchemaFetchError struct {
	Key        string
	StatusCode int
	Err        error
}

func (e *SchemaFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch schema %q: status %d: %v", e.Key, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch schema %q: %v", e.Key, e.Err)
}

func (e *SchemaFetchError) Unwrap() error { return e.Err }

// SchemaCompilationError reports that Key, or one of its transitive
// references, could not be compiled.
type SchemaCompilationError struct {
	Key string
	Err error
}

func (e *SchemaCompilationError) Error() string {
	return fmt.Sprintf("compile schema %q: %v", e.Key, e.Err)
}

func (e *SchemaCompilationError) Unwrap() error { return e.Err }
