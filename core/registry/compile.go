package registry

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/OADA/formats-sub000/core"
	"github.com/OADA/formats-sub000/core/schema"
	"github.com/OADA/formats-sub000/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// chainKey carries the document keys being compiled by the current call
// stack.
type chainKey struct{}

type chain struct {
	key    string
	parent *chain
}

func withChain(ctx context.Context, key string) context.Context {
	parent, _ := ctx.Value(chainKey{}).(*chain)
	return context.WithValue(ctx, chainKey{}, &chain{key: key, parent: parent})
}

func inChain(ctx context.Context, key string) bool {
	for c, _ := ctx.Value(chainKey{}).(*chain); c != nil; c = c.parent {
		if c.key == key {
			return true
		}
	}
	return false
}

// EnsureCompiled returns the validator for key, compiling it first if needed.
//
// At most one compilation per document key is in flight: concurrent callers
// wait for the same result. Unregistered documents are fetched through the
// registry's resolver. Every document the compiler references is itself
// compiled through EnsureCompiled, so a referenced schema that fails to
// compile fails its dependents too. A failed key keeps returning its
// *core.SchemaCompilationError until the document is registered again.
//
// Keys with a fragment compile their document and then the addressed
// sub-schema.
func (r *Registry) EnsureCompiled(ctx context.Context, key string) (core.Validator, error) {
	docKey, fragment := schema.SplitKey(key)

	for {
		r.mu.Lock()
		if r.metaKey == "" {
			r.mu.Unlock()
			return nil, core.ErrMetaSchemaNotRegistered
		}
		if v, ok := r.validators[key]; ok {
			r.mu.Unlock()
			return v, nil
		}

		e := r.entries[docKey]
		if e == nil {
			e = &entry{key: docKey, state: StateUnregistered}
			r.entries[docKey] = e
		}

		switch e.state {
		case StateCompiled:
			r.mu.Unlock()
			return r.compileFragment(ctx, e, key, fragment)

		case StateFailed:
			err := e.err
			r.mu.Unlock()
			return nil, err

		case StateCompiling:
			done := e.done
			r.mu.Unlock()
			select {
			case <-done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}

		default:
			e.state = StateCompiling
			e.done = make(chan struct{})
			r.mu.Unlock()

			if err := r.compile(ctx, e); err != nil {
				return nil, err
			}
		}
	}
}

// compile runs the compiler for an entry the caller has moved to
// StateCompiling, and always leaves the entry in a settled state.
func (r *Registry) compile(ctx context.Context, e *entry) error {
	start := time.Now()
	ctx = withChain(ctx, e.key)
	r.emit(createEvent(CompileStart, e.key, nil, time.Time{}))
	r.logger.Debug("Compiling schema", zap.String("key", e.key))

	doc, err := r.document(ctx, e.key)
	if err != nil {
		r.revert(e)
		r.emit(createEvent(CompileFailed, e.key, err, start))
		r.logger.Warn("Failed to resolve schema document", zap.String("key", e.key), zap.Error(err))
		return err
	}

	if r.options.Prefetch {
		r.prefetch(ctx, e.key, doc)
	}

	var interrupted atomic.Bool
	load := r.loader(ctx, &interrupted)
	compilation, err := r.compiler.Compile(e.key, load)
	if err != nil {
		if ctx.Err() != nil || interrupted.Load() || isInterruption(err) {
			r.revert(e)
			r.emit(createEvent(CompileFailed, e.key, err, start))
			r.logger.Debug("Schema compilation interrupted", zap.String("key", e.key), zap.Error(err))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		cerr := &core.SchemaCompilationError{Key: e.key, Err: err}
		r.settle(e, func() {
			e.state = StateFailed
			e.err = cerr
		})
		r.emit(createEvent(CompileFailed, e.key, cerr, start))
		r.logger.Error("Failed to compile schema", zap.String("key", e.key), zap.Error(err))
		return cerr
	}

	validators := map[string]core.Validator{e.key: compilation.Root()}
	for _, keyword := range []string{"$defs", "definitions"} {
		defs, ok := doc[keyword].(map[string]any)
		if !ok {
			continue
		}
		for name := range defs {
			pointer := "/" + keyword + "/" + utils.EscapePointerToken(name)
			v, err := compilation.Fragment(pointer, load)
			if err != nil {
				r.logger.Warn("Failed to compile sub-definition",
					zap.String("key", e.key), zap.String("pointer", pointer), zap.Error(err))
				continue
			}
			validators[schema.JoinKey(e.key, pointer)] = v
		}
	}

	r.settle(e, func() {
		e.state = StateCompiled
		e.validator = compilation.Root()
		e.compilation = compilation
		for k, v := range validators {
			r.validators[k] = v
		}
	})
	r.emit(createEvent(CompileSuccess, e.key, nil, start))
	r.logger.Debug("Compiled schema", zap.String("key", e.key), zap.Int("validators", len(validators)))
	return nil
}

// settle applies update under the registry lock and releases waiters.
func (r *Registry) settle(e *entry, update func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	update()
	close(e.done)
	e.done = nil
}

// revert returns an entry to where it was before compilation started, so
// transient failures (cancellation, unreachable documents) are not recorded.
func (r *Registry) revert(e *entry) {
	r.settle(e, func() {
		if e.doc != nil {
			e.state = StateDocumentKnown
			return
		}
		if r.entries[e.key] == e {
			delete(r.entries, e.key)
		}
	})
}

func (r *Registry) compileFragment(ctx context.Context, e *entry, key, fragment string) (core.Validator, error) {
	if fragment == "" {
		return e.validator, nil
	}

	e.fragMu.Lock()
	defer e.fragMu.Unlock()

	if v := r.Lookup(key); v != nil {
		return v, nil
	}

	v, err := e.compilation.Fragment(fragment, r.loader(withChain(ctx, e.key), nil))
	if err != nil {
		return nil, &core.SchemaCompilationError{Key: key, Err: err}
	}

	r.mu.Lock()
	r.validators[key] = v
	r.mu.Unlock()
	return v, nil
}

// loader returns the compiler's view of the registry. Referenced documents
// are compiled through EnsureCompiled unless they are already being compiled,
// by this call chain or another one; those are handed over raw so reference
// cycles never wait on themselves. Cancellations and timeouts seen while
// loading are recorded in interrupted, when set.
func (r *Registry) loader(ctx context.Context, interrupted *atomic.Bool) Loader {
	return func(url string) (any, error) {
		key, _ := schema.SplitKey(url)
		doc, err := r.load(ctx, key)
		if err != nil {
			if interrupted != nil && isInterruption(err) {
				interrupted.Store(true)
			}
			return nil, err
		}
		return map[string]any(doc), nil
	}
}

func (r *Registry) load(ctx context.Context, key string) (schema.Document, error) {
	if !inChain(ctx, key) && !r.isCompiling(key) {
		if _, err := r.EnsureCompiled(ctx, key); err != nil {
			return nil, err
		}
	}
	return r.document(ctx, key)
}

// isInterruption reports whether err comes from a cancelled or timed out
// context rather than from the document itself.
func isInterruption(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (r *Registry) isCompiling(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e := r.entries[key]
	return e != nil && e.state == StateCompiling
}

// document returns the raw document for key, fetching it at most once at a
// time through the resolver. The fetch runs detached from ctx, bounded by
// FetchTimeout, so that one caller giving up does not fail the others
// waiting on it.
func (r *Registry) document(ctx context.Context, key string) (schema.Document, error) {
	if doc := r.knownDocument(key); doc != nil {
		return doc, nil
	}

	ch := r.fetches.DoChan(key, func() (any, error) {
		if doc := r.knownDocument(key); doc != nil {
			return doc, nil
		}
		if r.resolver == nil {
			return nil, &core.SchemaNotFoundError{Key: key, Err: errors.New("no resolver configured")}
		}

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.options.FetchTimeout)
		defer cancel()

		doc, err := r.resolver.Fetch(fetchCtx, key)
		if err != nil {
			return nil, err
		}
		doc = utils.DeepCopyMap(doc)

		r.mu.Lock()
		doc = r.adoptLocked(key, doc)
		r.mu.Unlock()

		r.emit(createEvent(SchemaFetched, key, nil, time.Time{}))
		r.logger.Debug("Fetched schema document", zap.String("key", key))
		return doc, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(schema.Document), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Registry) knownDocument(key string) schema.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e := r.entries[key]; e != nil {
		return e.doc
	}
	return nil
}

// prefetch warms the documents doc references so that the compiler's
// sequential loads find them in memory. Failures are left for the compiler
// to report.
func (r *Registry) prefetch(ctx context.Context, key string, doc schema.Document) {
	base := doc.ID()
	if base == "" {
		base = key
	}

	var g errgroup.Group
	g.SetLimit(r.options.Concurrency)
	for _, target := range schema.ExternalRefs(doc, base) {
		if target == key || r.knownDocument(target) != nil {
			continue
		}
		g.Go(func() error {
			if _, err := r.document(ctx, target); err != nil {
				r.logger.Debug("Prefetch failed", zap.String("key", target), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}
