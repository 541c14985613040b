package resolver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/OADA/formats-sub000/core"
	"github.com/OADA/formats-sub000/core/schema"
	"go.uber.org/zap"
)

// maxBodySize caps how much of a remote response is read.
const maxBodySize = 8 << 20

// HTTPFetcher retrieves schema documents with a plain GET.
type HTTPFetcher struct {
	client *http.Client
	cache  Cache
	logger *zap.Logger
}

// Ensure HTTPFetcher implements the Resolver interface.
var _ Resolver = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher from options. A nil options uses DefaultOptions.
func NewHTTPFetcher(options *Options) *HTTPFetcher {
	options = options.withDefaults()
	client := options.Client
	if client == nil {
		client = &http.Client{Timeout: options.Timeout}
	}
	return &HTTPFetcher{
		client: client,
		cache:  options.Cache,
		logger: options.Logger,
	}
}

// Fetch downloads key and decodes the body as a JSON schema object. Any
// failure is reported as a *core.SchemaFetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, key string) (schema.Document, error) {
	url, _ := schema.SplitKey(key)

	if f.cache != nil {
		body, ok, err := f.cache.Get(ctx, url)
		if err != nil {
			f.logger.Warn("Schema cache read failed", zap.String("key", url), zap.Error(err))
		} else if ok {
			doc, err := schema.Decode(bytes.NewReader(body))
			if err == nil {
				f.logger.Debug("Schema served from cache", zap.String("key", url))
				return doc, nil
			}
			f.logger.Warn("Discarding malformed cached schema", zap.String("key", url), zap.Error(err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &core.SchemaFetchError{Key: key, Err: err}
	}
	req.Header.Set("Accept", "application/schema+json, application/json")

	f.logger.Debug("Fetching remote schema", zap.String("url", url))
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &core.SchemaFetchError{Key: key, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &core.SchemaFetchError{
			Key:        key,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response %q", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &core.SchemaFetchError{Key: key, StatusCode: resp.StatusCode, Err: err}
	}

	doc, err := schema.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, &core.SchemaFetchError{Key: key, StatusCode: resp.StatusCode, Err: err}
	}

	if f.cache != nil {
		if err := f.cache.Put(ctx, url, body); err != nil {
			f.logger.Warn("Schema cache write failed", zap.String("key", url), zap.Error(err))
		}
	}
	return doc, nil
}
