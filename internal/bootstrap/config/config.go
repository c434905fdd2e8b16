package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"stmap/internal/bootstrap/logging"
	"stmap/internal/errs"
)

const (
	StorageSQLite = "sqlite"
	StorageFile   = "file"

	EnvPrefix = "STMAP"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Export   ExportConfig   `mapstructure:"export"`
	Server   ServerConfig   `mapstructure:"server"`
	Watch    WatchConfig    `mapstructure:"watch"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StorageConfig selects the key-value backend holding the serialized mapping list.
type StorageConfig struct {
	Backend  string `mapstructure:"backend"`
	Key      string `mapstructure:"key"`
	FilePath string `mapstructure:"file_path"`
}

type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type ExportConfig struct {
	TimeLayout string `mapstructure:"time_layout"`
	Timezone   string `mapstructure:"timezone"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// Location resolves the export timezone. An empty name means the local zone.
func (c ExportConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errs.Wrapf(err, "load export timezone %q", name)
	}
	return loc, nil
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithComponent(ctx, "bootstrap.config")

	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, errs.Wrap(err, "load .env file")
		}
	} else {
		logging.Debug(logCtx, "loaded .env file")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, "stmap"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			logging.Debug(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("storage_backend", cfg.Storage.Backend),
	)

	return cfg, nil
}

func (c *Config) validate() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	switch c.Storage.Backend {
	case StorageSQLite:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("database.dsn is required for the sqlite storage backend")
		}
	case StorageFile:
		if strings.TrimSpace(c.Storage.FilePath) == "" {
			return errors.New("storage.file_path is required for the file storage backend")
		}
	default:
		return fmt.Errorf("unsupported storage.backend %q (expected: sqlite or file)", c.Storage.Backend)
	}

	if strings.TrimSpace(c.Storage.Key) == "" {
		return errors.New("storage.key is required")
	}
	if strings.TrimSpace(c.Export.TimeLayout) == "" {
		return errors.New("export.time_layout is required")
	}
	if _, err := c.Export.Location(); err != nil {
		return err
	}
	if c.Watch.Debounce < 0 {
		return errors.New("watch.debounce must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	dataDir := filepath.Join(xdg.DataHome, "stmap")

	v.SetDefault("app.name", "stmap")
	v.SetDefault("app.env", "local")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("storage.backend", StorageSQLite)
	v.SetDefault("storage.key", "mappings")
	v.SetDefault("storage.file_path", filepath.Join(dataDir, "mappings.toml"))
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", filepath.Join(dataDir, "mappings.sqlite"))
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("export.time_layout", "2006-01-02 15:04:05")
	v.SetDefault("export.timezone", "Local")
	v.SetDefault("server.addr", ":8088")
	v.SetDefault("watch.debounce", "500ms")
}
