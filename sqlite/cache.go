// Package sqlite provides a SQLite-backed cache for remotely fetched schema
// documents, so that repeated process starts do not refetch every remote
// reference.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OADA/formats-sub000/core/resolver"
	"go.uber.org/zap"
)

// dbRunner abstracts the methods shared by *sql.DB and *sql.Tx so the cache can
// run inside a caller's transaction.
type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CacheOptions configures the document cache table.
type CacheOptions struct {
	// TableName is the table holding cached bodies.
	TableName string

	// MaxAge makes entries older than this invisible to Get. Zero keeps
	// entries forever.
	MaxAge time.Duration

	// DropIfExists drops the table before creating it.
	DropIfExists bool
}

// DefaultCacheOptions returns options for a "schema_documents" table whose
// entries never expire.
func DefaultCacheOptions() *CacheOptions {
	return &CacheOptions{
		TableName: "schema_documents",
	}
}

// DocumentCache implements resolver.Cache on top of a SQLite database.
type DocumentCache struct {
	db      *sql.DB
	tx      *sql.Tx
	logger  *zap.Logger
	options *CacheOptions
	now     func() time.Time
}

// Ensure DocumentCache implements the resolver.Cache interface.
var _ resolver.Cache = (*DocumentCache)(nil)

// NewDocumentCache creates the cache table if needed and returns a cache bound
// to db.
func NewDocumentCache(ctx context.Context, db *sql.DB, logger *zap.Logger, options *CacheOptions) (*DocumentCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = DefaultCacheOptions()
	}
	if options.TableName == "" {
		return nil, errors.New("cache table name cannot be empty")
	}

	c := &DocumentCache{
		db:      db,
		logger:  logger,
		options: options,
		now:     time.Now,
	}

	if options.DropIfExists {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+c.table()); err != nil {
			return nil, fmt.Errorf("failed to drop cache table: %w", err)
		}
	}

	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	key TEXT PRIMARY KEY,
	body BLOB NOT NULL,
	fetched_at INTEGER NOT NULL
)`, c.table())
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}
	return c, nil
}

// WithTx returns a cache that runs its statements inside tx.
func (c *DocumentCache) WithTx(tx *sql.Tx) *DocumentCache {
	cp := *c
	cp.tx = tx
	return &cp
}

func (c *DocumentCache) runner() dbRunner {
	if c.tx != nil {
		return c.tx
	}
	return c.db
}

// quoteIdentifier quotes a table name for safe interpolation.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (c *DocumentCache) table() string {
	return quoteIdentifier(c.options.TableName)
}

// Get returns the cached body for key. Expired entries report ok == false.
func (c *DocumentCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := "SELECT body, fetched_at FROM " + c.table() + " WHERE key = ?"
	c.logger.Debug("Executing SQL SELECT", zap.String("sql", query), zap.String("key", key))

	var (
		body      []byte
		fetchedAt int64
	)
	err := c.runner().QueryRowContext(ctx, query, key).Scan(&body, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		c.logger.Error("Failed to read cached schema", zap.Error(err), zap.String("key", key))
		return nil, false, fmt.Errorf("failed to read cached schema %q: %w", key, err)
	}

	if c.options.MaxAge > 0 && c.now().Sub(time.UnixMilli(fetchedAt)) > c.options.MaxAge {
		return nil, false, nil
	}
	return body, true, nil
}

// Put stores body for key, replacing any previous entry.
func (c *DocumentCache) Put(ctx context.Context, key string, body []byte) error {
	query := "INSERT INTO " + c.table() + ` (key, body, fetched_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at`
	c.logger.Debug("Executing SQL INSERT", zap.String("sql", query), zap.String("key", key))

	if _, err := c.runner().ExecContext(ctx, query, key, body, c.now().UnixMilli()); err != nil {
		c.logger.Error("Failed to write cached schema", zap.Error(err), zap.String("key", key))
		return fmt.Errorf("failed to write cached schema %q: %w", key, err)
	}
	return nil
}

// Delete removes key from the cache.
func (c *DocumentCache) Delete(ctx context.Context, key string) error {
	if _, err := c.runner().ExecContext(ctx, "DELETE FROM "+c.table()+" WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete cached schema %q: %w", key, err)
	}
	return nil
}

// Purge removes every entry older than MaxAge and returns how many were
// removed. With no MaxAge nothing is removed.
func (c *DocumentCache) Purge(ctx context.Context) (int64, error) {
	if c.options.MaxAge <= 0 {
		return 0, nil
	}
	cutoff := c.now().Add(-c.options.MaxAge).UnixMilli()
	res, err := c.runner().ExecContext(ctx, "DELETE FROM "+c.table()+" WHERE fetched_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge schema cache: %w", err)
	}
	return res.RowsAffected()
}
