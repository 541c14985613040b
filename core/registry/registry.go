// Package registry stores schema documents by key, compiles them lazily into
// validators exactly once per key, and answers content-type queries against
// the compiled set.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/OADA/formats-sub000/core"
	"github.com/OADA/formats-sub000/core/mediatype"
	"github.com/OADA/formats-sub000/core/resolver"
	"github.com/OADA/formats-sub000/core/schema"
	"github.com/OADA/formats-sub000/utils"
	"github.com/asaidimu/go-events"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Options configures a Registry.
type Options struct {
	// Compiler turns documents into validators. Defaults to a
	// JSONSchemaCompiler with DefaultCompilerOptions.
	Compiler Compiler

	// Concurrency bounds parallel work during Bootstrap and prefetching.
	Concurrency int

	// Prefetch fetches the external references of a document concurrently
	// before compiling it.
	Prefetch bool

	// FetchTimeout bounds a shared document fetch. A fetch outlives the
	// cancellation of the caller that started it; each caller stops waiting
	// when its own context ends.
	FetchTimeout time.Duration

	// Logger receives registry diagnostics.
	Logger *zap.Logger
}

// DefaultOptions returns options with the default compiler, prefetching
// enabled, a concurrency of 8 and a 30 second fetch timeout.
func DefaultOptions() *Options {
	return &Options{
		Compiler:    NewJSONSchemaCompiler(nil),
		Concurrency:  8,
		Prefetch:     true,
		FetchTimeout: 30 * time.Second,
		Logger:       zap.NewNop(),
	}
}

// Registry maps schema keys to documents and compiled validators. A Registry
// is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	validators map[string]core.Validator
	metaKey    string

	resolver resolver.Resolver
	compiler Compiler
	fetches  singleflight.Group
	options  *Options
	logger   *zap.Logger

	bus           *events.TypedEventBus[Event]
	subscriptions map[string]*SubscriptionInfo
	subMu         sync.RWMutex
}

// New creates an empty Registry. res resolves documents that were never
// registered; it may be nil, in which case such keys are reported as not
// found. A nil options uses DefaultOptions.
func New(res resolver.Resolver, options *Options) (*Registry, error) {
	defaults := DefaultOptions()
	if options == nil {
		options = defaults
	}
	if options.Compiler == nil {
		options.Compiler = defaults.Compiler
	}
	if options.Concurrency <= 0 {
		options.Concurrency = defaults.Concurrency
	}
	if options.FetchTimeout <= 0 {
		options.FetchTimeout = defaults.FetchTimeout
	}
	if options.Logger == nil {
		options.Logger = defaults.Logger
	}

	bus, err := events.NewTypedEventBus[Event](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}

	return &Registry{
		entries:       make(map[string]*entry),
		validators:    make(map[string]core.Validator),
		resolver:      res,
		compiler:      options.Compiler,
		options:       options,
		logger:        options.Logger,
		bus:           bus,
		subscriptions: make(map[string]*SubscriptionInfo),
	}, nil
}

// Register stores doc under key, or under the document's $id when key is
// empty. Registering over a failed entry makes it eligible for another
// compilation. Registering over a compiled entry fails with
// core.ErrAlreadyCompiled unless doc equals the compiled document, in which
// case the call is a no-op.
func (r *Registry) Register(doc schema.Document, key string) error {
	if doc == nil {
		return errors.New("schema document cannot be nil")
	}
	if key == "" {
		if key = doc.ID(); key == "" {
			return core.ErrMissingID
		}
	}
	if _, fragment := schema.SplitKey(key); fragment != "" {
		return fmt.Errorf("%w: %q", core.ErrFragmentKey, key)
	}

	doc = utils.DeepCopyMap(doc)

	r.mu.Lock()
	err := r.storeLocked(key, doc)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	r.logger.Debug("Registered schema", zap.String("key", key))
	r.emit(createEvent(SchemaRegistered, key, nil, time.Time{}))
	return nil
}

// RegisterMetaSchema registers the JSON Schema meta-schema under its $id. It
// must be called once, before the first EnsureCompiled.
//
// The document gates compilation and records the dialect the registry serves;
// it is kept like any other registered document. Schemas are not validated
// against it: the default JSONSchemaCompiler checks them against the copy of
// the draft built into jsonschema, selected by $schema or CompilerOptions.Draft.
func (r *Registry) RegisterMetaSchema(doc schema.Document) error {
	if doc == nil {
		return errors.New("meta-schema document cannot be nil")
	}
	key := doc.ID()
	if key == "" {
		return core.ErrMissingID
	}
	doc = utils.DeepCopyMap(doc)

	r.mu.Lock()
	if r.metaKey != "" {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", core.ErrMetaSchemaRegistered, r.metaKey)
	}
	if err := r.storeLocked(key, doc); err != nil {
		r.mu.Unlock()
		return err
	}
	r.metaKey = key
	r.mu.Unlock()

	r.logger.Debug("Registered meta-schema", zap.String("key", key))
	r.emit(createEvent(SchemaRegistered, key, nil, time.Time{}))
	return nil
}

// MetaSchemaKey returns the key of the registered meta-schema, or "".
func (r *Registry) MetaSchemaKey() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metaKey
}

func (r *Registry) storeLocked(key string, doc schema.Document) error {
	e := r.entries[key]
	if e == nil {
		r.entries[key] = &entry{key: key, state: StateDocumentKnown, doc: doc}
		return nil
	}

	switch e.state {
	case StateCompiled:
		if utils.Equal(e.doc, doc) {
			return nil
		}
		return fmt.Errorf("%w: %q", core.ErrAlreadyCompiled, key)
	case StateCompiling:
		return fmt.Errorf("%w: %q", core.ErrCompilationInFlight, key)
	}

	e.state = StateDocumentKnown
	e.doc = doc
	e.err = nil
	return nil
}

// adoptLocked stores a fetched document unless one is already known for key,
// and returns the document the registry will use.
func (r *Registry) adoptLocked(key string, doc schema.Document) schema.Document {
	e := r.entries[key]
	switch {
	case e == nil:
		r.entries[key] = &entry{key: key, state: StateDocumentKnown, doc: doc}
		return doc
	case e.doc == nil:
		e.doc = doc
		return doc
	default:
		return e.doc
	}
}

// Lookup returns the compiled validator for key, or nil. It never compiles
// or fetches anything.
func (r *Registry) Lookup(key string) core.Validator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.validators[key]
}

// ResolveByContentType returns the validator for mediaType. The media type is
// first tried as a literal key, then each candidate key from
// mediatype.Candidates in order. It returns nil when nothing compiled matches
// and never triggers compilation.
func (r *Registry) ResolveByContentType(mediaType string) core.Validator {
	if v := r.Lookup(mediaType); v != nil {
		return v
	}
	for key := range mediatype.Candidates(mediaType) {
		if v := r.Lookup(key); v != nil {
			return v
		}
	}
	return nil
}

// State reports the lifecycle stage of the document behind key.
func (r *Registry) State(key string) State {
	docKey, _ := schema.SplitKey(key)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e := r.entries[docKey]; e != nil {
		return e.state
	}
	return StateUnregistered
}

// Keys returns the document keys known to the registry, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	r.mu.RUnlock()
	slices.Sort(keys)
	return keys
}

// Document returns a copy of the raw document stored under key.
func (r *Registry) Document(key string) (schema.Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e := r.entries[key]
	if e == nil || e.doc == nil {
		return nil, false
	}
	return utils.DeepCopyMap(e.doc), true
}
