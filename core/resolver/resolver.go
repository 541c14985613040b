// Package resolver fetches raw schema documents by key. Keys under the
// canonical formats root are served from a bundled, local schema set; every
// other key is fetched over HTTP.
package resolver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/OADA/formats-sub000/core/mediatype"
	"github.com/OADA/formats-sub000/core/schema"
	"go.uber.org/zap"
)

// Resolver produces the raw document for a schema key. Any fragment on the
// key is ignored.
type Resolver interface {
	Fetch(ctx context.Context, key string) (schema.Document, error)
}

// Cache stores raw bodies of remotely fetched documents.
type Cache interface {
	Get(ctx context.Context, key string) (body []byte, ok bool, err error)
	Put(ctx context.Context, key string, body []byte) error
}

// Options configures a Router and its HTTP fetcher.
type Options struct {
	// Root is the URI prefix routed to the local schema set.
	Root string

	// Timeout bounds a single remote fetch, including reading the body.
	Timeout time.Duration

	// Client performs remote fetches. When nil a client with Timeout is used.
	Client *http.Client

	// Cache, when set, is consulted before and filled after remote fetches.
	Cache Cache

	// Logger receives debug output for routing decisions and fetches.
	Logger *zap.Logger
}

// DefaultOptions returns options routing the canonical formats root locally,
// with a 30 second remote timeout and no cache.
func DefaultOptions() *Options {
	return &Options{
		Root:    mediatype.Root,
		Timeout: 30 * time.Second,
		Logger:  zap.NewNop(),
	}
}

func (o *Options) withDefaults() *Options {
	d := DefaultOptions()
	if o == nil {
		return d
	}
	out := *o
	if out.Root == "" {
		out.Root = d.Root
	}
	if out.Timeout <= 0 {
		out.Timeout = d.Timeout
	}
	if out.Logger == nil {
		out.Logger = d.Logger
	}
	return &out
}

// Router sends keys under Root to the local set and everything else to the
// remote resolver.
type Router struct {
	root   string
	local  Resolver
	remote Resolver
	logger *zap.Logger
}

// Ensure Router implements the Resolver interface.
var _ Resolver = (*Router)(nil)

// NewRouter creates a Router. A nil remote gets an HTTPFetcher built from the
// same options.
func NewRouter(local *LocalSet, remote Resolver, options *Options) *Router {
	options = options.withDefaults()
	if remote == nil {
		remote = NewHTTPFetcher(options)
	}
	r := &Router{
		root:   options.Root,
		remote: remote,
		logger: options.Logger,
	}
	if local != nil {
		r.local = local
	}
	return r
}

// IsLocal reports whether key is served from the local schema set.
func (r *Router) IsLocal(key string) bool {
	return strings.HasPrefix(key, r.root)
}

// Fetch resolves key through the local set or the remote resolver.
func (r *Router) Fetch(ctx context.Context, key string) (schema.Document, error) {
	if r.IsLocal(key) {
		if r.local == nil {
			return nil, notFound(key, "no local schema set")
		}
		r.logger.Debug("Resolving schema locally", zap.String("key", key))
		return r.local.Fetch(ctx, key)
	}
	r.logger.Debug("Resolving schema remotely", zap.String("key", key))
	return r.remote.Fetch(ctx, key)
}
