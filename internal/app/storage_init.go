package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vendaro/commerce-engine/internal/domain"
	"github.com/vendaro/commerce-engine/internal/storage/memory"
	"github.com/vendaro/commerce-engine/internal/storage/postgres"
)

// runtimeDependencies — репозитории, собранные под выбранный драйвер хранилища.
type runtimeDependencies struct {
	stores          domain.StoreRepository
	catalog         domain.CatalogRepository
	carts           domain.CartRepository
	outboxRepo      domain.OutboxRepository
	idempotencyRepo domain.IdempotencyRepository

	// pgStore != nil только для драйвера postgres.
	pgStore *postgres.Store
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		stores := memory.NewStoreRepository()
		catalog := memory.NewCatalogRepository()
		if cfg.MemoryDemoSeed {
			seedDemoCatalog(stores, catalog)
			logger.Info("in-memory хранилище наполнено демо-каталогом")
		}
		return runtimeDependencies{
			stores:          stores,
			catalog:         catalog,
			carts:           memory.NewCartRepository(catalog),
			outboxRepo:      memory.NewOutboxRepository(),
			idempotencyRepo: memory.NewIdempotencyRepository(),
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return runtimeDependencies{}, fmt.Errorf("postgres storage driver requires a DSN")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return runtimeDependencies{}, fmt.Errorf("open postgres store: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return runtimeDependencies{}, fmt.Errorf("ensure postgres schema: %w", err)
			}
		}
		logger.Info("postgres storage initialized")
		return runtimeDependencies{
			stores:          postgres.NewStoreRepository(store),
			catalog:         postgres.NewCatalogRepository(store),
			carts:           postgres.NewCartRepository(store),
			outboxRepo:      postgres.NewOutboxRepository(store),
			idempotencyRepo: postgres.NewIdempotencyRepository(store),
			pgStore:         store,
		}, nil

	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver: %q", cfg.StorageDriver)
	}
}

func (d runtimeDependencies) close(logger *log.Entry) {
	if d.pgStore == nil {
		return
	}
	if err := d.pgStore.Close(); err != nil {
		logger.WithError(err).Warn("close postgres store")
	}
}
