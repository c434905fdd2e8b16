package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"stmap/internal/bootstrap/config"
	"stmap/internal/bootstrap/logging"
	"stmap/internal/errs"
	"stmap/internal/infrastructure/persistence/sqlite/model"
)

// App carries the loaded configuration and, for the sqlite storage backend, the
// database handle. DB is nil when mappings live in a file.
type App struct {
	Config config.Config
	DB     *gorm.DB
}

func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if a.DB == nil {
		return errors.New("schema migration requires the sqlite storage backend")
	}

	logCtx := logging.WithComponent(ctx, "bootstrap.app")
	logging.Info(logCtx, "start schema migration")

	if err := a.DB.WithContext(ctx).AutoMigrate(&model.KVEntry{}); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}

	logging.Info(logCtx, "schema migration completed", slog.String("table", model.KVEntry{}.TableName()))
	return nil
}

// StorageLocation describes where the mapping list is persisted, for user-facing output.
func (a *App) StorageLocation() string {
	if a.Config.Storage.Backend == config.StorageFile {
		return a.Config.Storage.FilePath
	}
	return a.Config.Database.DSN
}
