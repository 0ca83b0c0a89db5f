package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"fleetwatch/pkg/config"
	"fleetwatch/pkg/interfaces"
	"fleetwatch/pkg/logger"
	"fleetwatch/pkg/store/memory"
	"fleetwatch/pkg/store/mysql"
)

// Storage an opened persistence backend
type Storage struct {
	Driver       string
	Repositories interfaces.Repositories
	ping         func(ctx context.Context) error
	close        func() error
}

// Ping checks the backend is reachable
func (s *Storage) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases the backend's connections
func (s *Storage) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// StorageFactory opens a storage backend
type StorageFactory func(ctx context.Context, cfg *config.Config) (*Storage, error)

var storageFactories = map[string]StorageFactory{}

// RegisterStorage registers a storage backend factory under name
func RegisterStorage(name string, factory StorageFactory) {
	if name == "" || factory == nil {
		return
	}
	storageFactories[strings.ToLower(name)] = factory
}

func init() {
	RegisterStorage(config.StorageMySQL, newMySQLStorage)
	RegisterStorage(config.StorageMemory, newMemoryStorage)
}

// StorageDrivers lists the registered driver names
func StorageDrivers() []string {
	names := make([]string, 0, len(storageFactories))
	for name := range storageFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenStorage opens the backend selected by storage.driver
func OpenStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	factory, ok := storageFactories[strings.ToLower(cfg.Storage.Driver)]
	if !ok {
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Storage.Driver)
	}
	return factory(ctx, cfg)
}

func newMySQLStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	repo, err := mysql.NewRepository(cfg.MySQL.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql: %w", err)
	}
	if cfg.MySQL.AutoMigrate {
		if err := repo.AutoMigrate(ctx); err != nil {
			_ = repo.Close()
			return nil, err
		}
		logger.InfoCtx(ctx, "mysql schema migrated")
	}
	return &Storage{
		Driver:       config.StorageMySQL,
		Repositories: repo.Repositories(),
		ping:         repo.GetDatastore().Ping,
		close:        repo.Close,
	}, nil
}

func newMemoryStorage(ctx context.Context, _ *config.Config) (*Storage, error) {
	logger.WarnCtx(ctx, "using in-memory storage, data is lost on restart")
	return &Storage{
		Driver:       config.StorageMemory,
		Repositories: memory.NewStore().Repositories(),
	}, nil
}
