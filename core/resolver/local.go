package resolver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/OADA/formats-sub000/core"
	"github.com/OADA/formats-sub000/core/schema"
	"go.uber.org/zap"
)

// LocalSet is an inventory of bundled schema documents. It is built once by
// walking a file system; afterwards lookups are map reads.
//
// Documents are indexed by their path with the file extension dropped, so a
// key ending in "bookmarks/v1.schema.json" finds "bookmarks/v1.schema.json"
// as well as "bookmarks/v1.schema.yaml".
type LocalSet struct {
	fsys   fs.FS
	root   string
	index  map[string]string
	logger *zap.Logger
}

// Ensure LocalSet implements the Resolver interface.
var _ Resolver = (*LocalSet)(nil)

var localExtensions = []string{".json", ".yaml", ".yml"}

// NewLocalSet inventories every JSON or YAML document in fsys. Paths in fsys
// mirror the path part of their keys under options.Root.
func NewLocalSet(fsys fs.FS, options *Options) (*LocalSet, error) {
	options = options.withDefaults()
	set := &LocalSet{
		fsys:   fsys,
		root:   strings.TrimSuffix(options.Root, "/"),
		index:  make(map[string]string),
		logger: options.Logger,
	}

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := path.Ext(p)
		if !slices.Contains(localExtensions, ext) {
			return nil
		}
		canonical := strings.TrimSuffix(p, ext)
		if prev, ok := set.index[canonical]; ok {
			return fmt.Errorf("local schemas %q and %q map to the same key", prev, p)
		}
		set.index[canonical] = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to inventory local schemas: %w", err)
	}

	set.logger.Debug("Inventoried local schemas", zap.Int("count", len(set.index)))
	return set, nil
}

// Keys returns the canonical key of every document in the set, sorted.
func (s *LocalSet) Keys() []string {
	keys := make([]string, 0, len(s.index))
	for canonical := range s.index {
		keys = append(keys, s.root+"/"+canonical+".json")
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of documents in the set.
func (s *LocalSet) Len() int {
	return len(s.index)
}

// Fetch decodes the local document addressed by key.
func (s *LocalSet) Fetch(ctx context.Context, key string) (schema.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, ok := s.lookup(key)
	if !ok {
		return nil, notFound(key, "")
	}

	b, err := fs.ReadFile(s.fsys, file)
	if err != nil {
		return nil, &core.SchemaNotFoundError{Key: key, Err: err}
	}

	var doc schema.Document
	if path.Ext(file) == ".json" {
		doc, err = schema.Decode(bytes.NewReader(b))
	} else {
		doc, err = schema.DecodeYAML(bytes.NewReader(b))
	}
	if err != nil {
		return nil, fmt.Errorf("local schema %q: %w", key, err)
	}
	return doc, nil
}

func (s *LocalSet) lookup(key string) (string, bool) {
	docKey, _ := schema.SplitKey(key)
	rel, ok := strings.CutPrefix(docKey, s.root+"/")
	if !ok {
		return "", false
	}
	file, ok := s.index[strings.TrimSuffix(rel, ".json")]
	return file, ok
}

func notFound(key, reason string) error {
	if reason == "" {
		return &core.SchemaNotFoundError{Key: key}
	}
	return &core.SchemaNotFoundError{Key: key, Err: errors.New(reason)}
}
