package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/OADA/formats-sub000/core"
	"github.com/OADA/formats-sub000/core/mediatype"
	"github.com/OADA/formats-sub000/core/registry"
	"github.com/OADA/formats-sub000/core/resolver"
	"github.com/OADA/formats-sub000/schemas"
	"github.com/OADA/formats-sub000/sqlite"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <content-type> <document.json>\n\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	cachePath := flag.String("cache", "formats-cache.db", "SQLite file caching remote schema documents")
	cacheMaxAge := flag.Duration("cache-max-age", 7*24*time.Hour, "drop cached remote schemas older than this (0 keeps them)")
	verbose := flag.Bool("v", false, "log registry activity")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 2 {
		usage()
		os.Exit(2)
	}
	contentType, documentPath := flag.Arg(0), flag.Arg(1)

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction(zap.IncreaseLevel(zap.WarnLevel))
	}
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := sql.Open("sqlite3", *cachePath)
	if err != nil {
		logger.Fatal("Failed to open schema cache", zap.String("path", *cachePath), zap.Error(err))
	}
	defer func() {
		if cErr := db.Close(); cErr != nil {
			logger.Warn("Error closing schema cache", zap.Error(cErr))
		}
	}()

	cache, err := openCache(ctx, db, logger, *cacheMaxAge)
	if err != nil {
		logger.Fatal("Failed to initialize schema cache", zap.Error(err))
	}

	resolverOptions := resolver.DefaultOptions()
	resolverOptions.Cache = cache
	resolverOptions.Logger = logger

	local, err := resolver.NewLocalSet(schemas.Bundle(), resolverOptions)
	if err != nil {
		logger.Fatal("Failed to load bundled schemas", zap.Error(err))
	}

	registryOptions := registry.DefaultOptions()
	registryOptions.Logger = logger
	reg, err := registry.New(resolver.NewRouter(local, nil, resolverOptions), registryOptions)
	if err != nil {
		logger.Fatal("Failed to create schema registry", zap.Error(err))
	}
	reg.RegisterSubscription(registry.RegisterSubscriptionOptions{
		Event: registry.CompileFailed,
		Callback: func(ctx context.Context, event registry.Event) error {
			logger.Warn("Schema did not compile", zap.String("key", event.Key), zap.Stringp("error", event.Error))
			return nil
		},
	})

	meta, err := schemas.MetaSchema()
	if err != nil {
		logger.Fatal("Failed to load meta-schema", zap.Error(err))
	}
	if err := reg.Bootstrap(ctx, meta, local.Keys()); err != nil {
		logger.Warn("Some bundled schemas are unavailable", zap.Error(err))
	}

	validator, err := validatorFor(ctx, reg, contentType)
	if err != nil {
		logger.Fatal("No schema for content type", zap.String("contentType", contentType), zap.Error(err))
	}

	f, err := os.Open(documentPath)
	if err != nil {
		logger.Fatal("Failed to open document", zap.String("path", documentPath), zap.Error(err))
	}
	instance, err := jsonschema.UnmarshalJSON(f)
	f.Close()
	if err != nil {
		logger.Fatal("Failed to parse document", zap.String("path", documentPath), zap.Error(err))
	}

	if err := validator.Validate(instance); err != nil {
		fmt.Printf("%s is not a valid %s:\n%v\n", documentPath, contentType, err)
		os.Exit(1)
	}
	fmt.Printf("%s is a valid %s\n", documentPath, contentType)
}

// openCache prepares the remote schema cache in db and drops entries older
// than maxAge.
func openCache(ctx context.Context, db *sql.DB, logger *zap.Logger, maxAge time.Duration) (*sqlite.DocumentCache, error) {
	options := sqlite.DefaultCacheOptions()
	options.MaxAge = maxAge

	cache, err := sqlite.NewDocumentCache(ctx, db, logger, options)
	if err != nil {
		return nil, err
	}
	if maxAge > 0 {
		purged, err := cache.Purge(ctx)
		if err != nil {
			return nil, fmt.Errorf("purge schema cache: %w", err)
		}
		if purged > 0 {
			logger.Info("Purged stale cached schemas", zap.Int64("count", purged))
		}
	}
	return cache, nil
}

// validatorFor answers from the compiled set first and otherwise compiles the
// candidate keys for contentType in order, returning the first that succeeds.
func validatorFor(ctx context.Context, reg *registry.Registry, contentType string) (core.Validator, error) {
	if v := reg.ResolveByContentType(contentType); v != nil {
		return v, nil
	}

	var errs error
	for key := range mediatype.Candidates(contentType) {
		v, err := reg.EnsureCompiled(ctx, key)
		if err == nil {
			return v, nil
		}
		errs = multierr.Append(errs, err)
	}
	if errs == nil {
		return nil, fmt.Errorf("%q is not an OADA vendor media type", contentType)
	}
	return nil, errs
}
