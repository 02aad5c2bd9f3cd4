package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/labface/internal/config"
	"github.com/kozaktomas/labface/internal/database"
	"github.com/kozaktomas/labface/internal/database/mariadb"
	"github.com/kozaktomas/labface/internal/database/postgres"
	"github.com/kozaktomas/labface/internal/enrollment"
	"github.com/kozaktomas/labface/internal/index"
	"github.com/kozaktomas/labface/internal/matcher"
)

// openStore connects to the configured database backend.
func openStore(ctx context.Context, cfg *config.Config) (database.EmbeddingStore, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	switch cfg.Database.Backend {
	case config.BackendPostgres:
		fmt.Printf("Connecting to PostgreSQL database...\n")
		store, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		return store, nil
	case config.BackendMariaDB:
		fmt.Printf("Connecting to MariaDB database...\n")
		store, err := mariadb.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported DATABASE_BACKEND %q (expected %s or %s)",
			cfg.Database.Backend, config.BackendPostgres, config.BackendMariaDB)
	}
}

// engine bundles the in-memory side of the service.
type engine struct {
	index       *index.Index
	matcher     *matcher.Matcher
	coordinator *enrollment.Coordinator
}

// newEngine builds the index, matcher and coordinator for the configured model and
// loads the index from the store.
func newEngine(ctx context.Context, cfg *config.Config, store database.EmbeddingStore) (*engine, error) {
	modelName := cfg.Matching.ModelName
	idx := index.New(modelName, cfg.ModelDim(modelName))
	coordinator := enrollment.NewCoordinator(store, idx, cfg.ModelDims())

	var opts []matcher.Option
	if cfg.Matching.HNSWMinSize > 0 {
		opts = append(opts, matcher.WithApproximateSearch(cfg.Matching.HNSWMinSize, cfg.Matching.HNSWCandidates))
	}

	start := time.Now()
	result, err := coordinator.Reload(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading embeddings: %w", err)
	}
	fmt.Printf("Loaded %d subjects for model %s in %s", result.Size, modelName, time.Since(start).Round(time.Millisecond))
	if result.Skipped > 0 {
		fmt.Printf(" (%d rows skipped)", result.Skipped)
	}
	fmt.Println()

	return &engine{
		index:       idx,
		matcher:     matcher.New(idx, opts...),
		coordinator: coordinator,
	}, nil
}
