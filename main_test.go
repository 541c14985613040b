package main

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func countCached(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_documents").Scan(&n))
	return n
}

func TestOpenCache_PurgesStaleEntries(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	cache, err := openCache(ctx, db, zap.NewNop(), 0)
	require.NoError(t, err)
	require.NoError(t, cache.Put(ctx, "https://example.com/fresh.json", []byte(`{}`)))
	_, err = db.Exec(`INSERT INTO schema_documents (key, body, fetched_at) VALUES (?, ?, 0)`,
		"https://example.com/stale.json", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 2, countCached(t, db))

	cache, err = openCache(ctx, db, zap.NewNop(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, countCached(t, db))

	body, ok, err := cache.Get(ctx, "https://example.com/fresh.json")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte(`{}`), body)
}

func TestOpenCache_ZeroMaxAgeKeepsEntries(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := openCache(ctx, db, zap.NewNop(), 0)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO schema_documents (key, body, fetched_at) VALUES (?, ?, 0)`,
		"https://example.com/stale.json", []byte(`{}`))
	require.NoError(t, err)

	_, err = openCache(ctx, db, zap.NewNop(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, countCached(t, db))
}
