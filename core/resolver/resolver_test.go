package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/OADA/formats-sub000/core"
	"github.com/OADA/formats-sub000/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"test/foo/v1.schema.json": {Data: []byte(`{
			"$id": "https://formats.openag.io/test/foo/v1.schema.json",
			"enum": ["x"]
		}`)},
		"test/bar.schema.json": {Data: []byte(`{"$defs": {"v1": {"enum": ["x"]}}}`)},
		"test/yaml/v2.schema.yaml": {Data: []byte("type: string\nminLength: 1\n")},
		"test/README.md":           {Data: []byte("not a schema")},
		"test/broken.schema.json":  {Data: []byte(`{"enum": [`)},
	}
}

func TestLocalSet_KeysAndFetch(t *testing.T) {
	set, err := NewLocalSet(testFS(), nil)
	require.NoError(t, err)

	assert.Equal(t, 4, set.Len())
	assert.Equal(t, []string{
		"https://formats.openag.io/test/bar.schema.json",
		"https://formats.openag.io/test/broken.schema.json",
		"https://formats.openag.io/test/foo/v1.schema.json",
		"https://formats.openag.io/test/yaml/v2.schema.json",
	}, set.Keys())

	doc, err := set.Fetch(context.Background(), "https://formats.openag.io/test/foo/v1.schema.json")
	require.NoError(t, err)
	assert.Equal(t, "https://formats.openag.io/test/foo/v1.schema.json", doc.ID())

	doc, err = set.Fetch(context.Background(), "https://formats.openag.io/test/bar.schema.json#/$defs/v1")
	require.NoError(t, err)
	assert.Contains(t, doc, "$defs")
}

func TestLocalSet_YAMLUnderJSONKey(t *testing.T) {
	set, err := NewLocalSet(testFS(), nil)
	require.NoError(t, err)

	doc, err := set.Fetch(context.Background(), "https://formats.openag.io/test/yaml/v2.schema.json")
	require.NoError(t, err)
	assert.Equal(t, "string", doc["type"])
}

func TestLocalSet_NotFound(t *testing.T) {
	set, err := NewLocalSet(testFS(), nil)
	require.NoError(t, err)

	for _, key := range []string{
		"https://formats.openag.io/test/missing.schema.json",
		"https://formats.openag.io/test/README.md",
		"https://example.org/test/foo/v1.schema.json",
	} {
		_, err := set.Fetch(context.Background(), key)
		var nf *core.SchemaNotFoundError
		require.ErrorAs(t, err, &nf, key)
		assert.Equal(t, key, nf.Key)
		assert.ErrorIs(t, err, core.ErrSchemaNotFound)
	}
}

func TestLocalSet_MalformedDocument(t *testing.T) {
	set, err := NewLocalSet(testFS(), nil)
	require.NoError(t, err)

	_, err = set.Fetch(context.Background(), "https://formats.openag.io/test/broken.schema.json")
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrSchemaNotFound)
}

func TestLocalSet_DuplicateCanonicalPath(t *testing.T) {
	_, err := NewLocalSet(fstest.MapFS{
		"a.schema.json": {Data: []byte(`{}`)},
		"a.schema.yaml": {Data: []byte(`{}`)},
	}, nil)
	assert.Error(t, err)
}

func TestLocalSet_CustomRoot(t *testing.T) {
	set, err := NewLocalSet(testFS(), &Options{Root: "https://schemas.example.org/"})
	require.NoError(t, err)

	_, err = set.Fetch(context.Background(), "https://schemas.example.org/test/bar.schema.json")
	assert.NoError(t, err)
}

type stubResolver struct {
	calls atomic.Int32
	doc   schema.Document
	err   error
}

func (s *stubResolver) Fetch(ctx context.Context, key string) (schema.Document, error) {
	s.calls.Add(1)
	return s.doc, s.err
}

func TestRouter_Routing(t *testing.T) {
	set, err := NewLocalSet(testFS(), nil)
	require.NoError(t, err)
	remote := &stubResolver{doc: schema.Document{"type": "string"}}
	router := NewRouter(set, remote, nil)

	assert.True(t, router.IsLocal("https://formats.openag.io/test/bar.schema.json"))
	assert.False(t, router.IsLocal("https://example.org/x.json"))

	_, err = router.Fetch(context.Background(), "https://formats.openag.io/test/bar.schema.json")
	require.NoError(t, err)
	assert.Equal(t, int32(0), remote.calls.Load())

	doc, err := router.Fetch(context.Background(), "https://example.org/x.json")
	require.NoError(t, err)
	assert.Equal(t, "string", doc["type"])
	assert.Equal(t, int32(1), remote.calls.Load())
}

func TestRouter_LocalMissDoesNotGoRemote(t *testing.T) {
	set, err := NewLocalSet(testFS(), nil)
	require.NoError(t, err)
	remote := &stubResolver{doc: schema.Document{}}
	router := NewRouter(set, remote, nil)

	_, err = router.Fetch(context.Background(), "https://formats.openag.io/test/nope.schema.json")
	assert.ErrorIs(t, err, core.ErrSchemaNotFound)
	assert.Equal(t, int32(0), remote.calls.Load())
}

func TestRouter_NoLocalSet(t *testing.T) {
	router := NewRouter(nil, &stubResolver{}, nil)
	_, err := router.Fetch(context.Background(), "https://formats.openag.io/test/bar.schema.json")
	assert.ErrorIs(t, err, core.ErrSchemaNotFound)
}

func TestHTTPFetcher_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/schemas/x.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/schema+json")
		_, _ = w.Write([]byte(`{"type": "number", "minimum": 1.5}`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(nil)
	doc, err := f.Fetch(context.Background(), srv.URL+"/schemas/x.json#/whatever")
	require.NoError(t, err)
	assert.Equal(t, "number", doc["type"])
}

func TestHTTPFetcher_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing.json":
			http.NotFound(w, r)
		case "/malformed.json":
			_, _ = w.Write([]byte(`{"type": `))
		case "/array.json":
			_, _ = w.Write([]byte(`[]`))
		case "/slow.json":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(&Options{Timeout: 50 * time.Millisecond})

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"non-2xx", "/missing.json", http.StatusNotFound},
		{"malformed body", "/malformed.json", http.StatusOK},
		{"non-object body", "/array.json", http.StatusOK},
		{"timeout", "/slow.json", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := srv.URL + tt.path
			_, err := f.Fetch(context.Background(), key)
			var fe *core.SchemaFetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, key, fe.Key)
			assert.Equal(t, tt.status, fe.StatusCode)
		})
	}
}

func TestHTTPFetcher_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/gone.json"
	srv.Close()

	_, err := NewHTTPFetcher(nil).Fetch(context.Background(), url)
	var fe *core.SchemaFetchError
	require.ErrorAs(t, err, &fe)
	assert.Zero(t, fe.StatusCode)
}

type memoryCache struct {
	mu     sync.Mutex
	bodies map[string][]byte
	getErr error
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	b, ok := c.bodies[key]
	return b, ok, nil
}

func (c *memoryCache) Put(ctx context.Context, key string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bodies[key] = body
	return nil
}

func TestHTTPFetcher_Cache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"type": "boolean"}`))
	}))
	defer srv.Close()

	cache := &memoryCache{bodies: map[string][]byte{}}
	f := NewHTTPFetcher(&Options{Cache: cache})

	for i := 0; i < 3; i++ {
		doc, err := f.Fetch(context.Background(), srv.URL+"/b.json")
		require.NoError(t, err)
		assert.Equal(t, "boolean", doc["type"])
	}
	assert.Equal(t, int32(1), hits.Load())
	assert.Contains(t, cache.bodies, srv.URL+"/b.json")
}

func TestHTTPFetcher_CacheErrorFallsBackToNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"type": "null"}`))
	}))
	defer srv.Close()

	cache := &memoryCache{bodies: map[string][]byte{}, getErr: errors.New("disk on fire")}
	doc, err := NewHTTPFetcher(&Options{Cache: cache}).Fetch(context.Background(), srv.URL+"/n.json")
	require.NoError(t, err)
	assert.Equal(t, "null", doc["type"])
}
