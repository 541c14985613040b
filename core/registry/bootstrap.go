package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/OADA/formats-sub000/core"
	"github.com/OADA/formats-sub000/core/schema"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Bootstrap loads a known set of schemas. It registers meta unless a
// meta-schema is already registered, fetches every key through the
// registry's resolver and registers it under its $id (or the key itself when
// the document declares none), then compiles them all concurrently. Every
// document is registered before the first compilation starts.
//
// A key that fails does not stop the others. The returned error combines
// every failure, so a non-nil result means the registry is only partially
// loaded; schemas that compiled are available through Lookup either way.
func (r *Registry) Bootstrap(ctx context.Context, meta schema.Document, keys []string) error {
	if r.MetaSchemaKey() == "" {
		if err := r.RegisterMetaSchema(meta); err != nil && !errors.Is(err, core.ErrMetaSchemaRegistered) {
			return fmt.Errorf("could not register meta-schema: %w", err)
		}
	}
	if r.resolver == nil && len(keys) > 0 {
		return errors.New("bootstrap requires a resolver")
	}

	var (
		mu   sync.Mutex
		errs error
	)
	fail := func(key, stage string, err error) {
		r.logger.Error("Bootstrap failed for schema",
			zap.String("key", key), zap.String("stage", stage), zap.Error(err))
		mu.Lock()
		errs = multierr.Append(errs, fmt.Errorf("%s %q: %w", stage, key, err))
		mu.Unlock()
	}

	ids := make([]string, len(keys))
	var fetch errgroup.Group
	fetch.SetLimit(r.options.Concurrency)
	for i, key := range keys {
		fetch.Go(func() error {
			doc, err := r.resolver.Fetch(ctx, key)
			if err != nil {
				fail(key, "fetch", err)
				return nil
			}
			id := doc.ID()
			if id == "" {
				id = key
			}
			if err := r.Register(doc, id); err != nil {
				fail(id, "register", err)
				return nil
			}
			ids[i] = id
			return nil
		})
	}
	_ = fetch.Wait()

	var compile errgroup.Group
	compile.SetLimit(r.options.Concurrency)
	for _, id := range ids {
		if id == "" {
			continue
		}
		compile.Go(func() error {
			if _, err := r.EnsureCompiled(ctx, id); err != nil {
				fail(id, "compile", err)
			}
			return nil
		})
	}
	_ = compile.Wait()

	r.logger.Info("Bootstrapped schema registry",
		zap.Int("requested", len(keys)),
		zap.Int("failed", len(multierr.Errors(errs))))
	return errs
}
