package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"stmap/internal/bootstrap/config"
	"stmap/internal/bootstrap/database"
	"stmap/internal/bootstrap/logging"
	domainmapping "stmap/internal/domain/mapping"
	"stmap/internal/errs"
	"stmap/internal/infrastructure/kv"
	"stmap/internal/ports"
	"stmap/internal/usecase/mapping"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(provideKVStore),
	fx.Provide(provideMappingService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	return config.Load(logging.WithComponent(p.Ctx, "bootstrap.fx"), p.ConfigFile)
}

// provideDatabase returns a nil handle for the file storage backend.
func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	if cfg.Storage.Backend != config.StorageSQLite {
		return nil, nil
	}

	logCtx := logging.WithComponent(ctx, "bootstrap.fx")

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	if cfg.Database.AutoMigrate {
		app := &App{Config: cfg, DB: db}
		if err := app.InitSchema(logCtx); err != nil {
			return nil, err
		}
	}

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideKVStore(ctx context.Context, cfg config.Config, db *gorm.DB) (ports.KVStore, error) {
	logCtx := logging.WithComponent(ctx, "bootstrap.fx")

	if cfg.Storage.Backend == config.StorageFile {
		store, err := kv.NewFileStore(cfg.Storage.FilePath)
		if err != nil {
			return nil, errs.Wrap(err, "create file kv store")
		}
		logging.Info(logCtx, "kv store ready", slog.String("backend", config.StorageFile), slog.String("path", store.Path()))
		return store, nil
	}

	logging.Info(logCtx, "kv store ready", slog.String("backend", config.StorageSQLite), slog.String("dsn", cfg.Database.DSN))
	return kv.NewSQLiteStore(db), nil
}

// provideMappingService builds the service only. The persisted list is read on the first
// operation, so init-db can run against a database without the kv table.
func provideMappingService(cfg config.Config, store ports.KVStore) (*mapping.Service, error) {
	loc, err := cfg.Export.Location()
	if err != nil {
		return nil, err
	}

	return mapping.NewService(store, mapping.Options{
		StorageKey: cfg.Storage.Key,
		TimeFormat: domainmapping.TimeFormat{Layout: cfg.Export.TimeLayout, Location: loc},
	}), nil
}
