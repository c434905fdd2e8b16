package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(context.Background(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.Backend != StorageSQLite {
		t.Fatalf("storage.backend = %q, want %q", cfg.Storage.Backend, StorageSQLite)
	}
	if cfg.Storage.Key != "mappings" {
		t.Fatalf("storage.key = %q, want mappings", cfg.Storage.Key)
	}
	if !strings.HasSuffix(cfg.Database.DSN, filepath.Join("stmap", "mappings.sqlite")) {
		t.Fatalf("database.dsn = %q, want xdg data path", cfg.Database.DSN)
	}
	if cfg.Export.TimeLayout != "2006-01-02 15:04:05" {
		t.Fatalf("export.time_layout = %q", cfg.Export.TimeLayout)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Fatalf("watch.debounce = %s, want 500ms", cfg.Watch.Debounce)
	}
	if !cfg.Database.AutoMigrate {
		t.Fatal("database.auto_migrate = false, want true")
	}
}

func TestLoadConfigFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	configPath := filepath.Join(dir, "stmap.yaml")
	content := `
storage:
  backend: file
  file_path: ./state/mappings.toml
export:
  timezone: UTC
watch:
  debounce: 2s
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("STMAP_STORAGE_KEY", "sales_mappings")

	cfg, err := Load(context.Background(), configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.Backend != StorageFile {
		t.Fatalf("storage.backend = %q, want file", cfg.Storage.Backend)
	}
	if cfg.Storage.FilePath != "./state/mappings.toml" {
		t.Fatalf("storage.file_path = %q", cfg.Storage.FilePath)
	}
	if cfg.Storage.Key != "sales_mappings" {
		t.Fatalf("storage.key = %q, want env override", cfg.Storage.Key)
	}
	if cfg.Watch.Debounce != 2*time.Second {
		t.Fatalf("watch.debounce = %s, want 2s", cfg.Watch.Debounce)
	}

	loc, err := cfg.Export.Location()
	if err != nil {
		t.Fatalf("Location() error = %v", err)
	}
	if loc != time.UTC {
		t.Fatalf("location = %v, want UTC", loc)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("STMAP_APP_ENV=staging\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("STMAP_APP_ENV") })

	cfg, err := Load(context.Background(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.Env != "staging" {
		t.Fatalf("app.env = %q, want staging", cfg.App.Env)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "unknown backend", env: map[string]string{"STMAP_STORAGE_BACKEND": "redis"}, want: "unsupported storage.backend"},
		{name: "bad timezone", env: map[string]string{"STMAP_EXPORT_TIMEZONE": "Mars/Olympus"}, want: "export timezone"},
		{name: "empty key", env: map[string]string{"STMAP_STORAGE_KEY": " "}, want: "storage.key is required"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for key, value := range testCase.env {
				t.Setenv(key, value)
			}

			_, err := Load(context.Background(), "")
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if !strings.Contains(err.Error(), testCase.want) {
				t.Fatalf("Load() error = %v, want contains %q", err, testCase.want)
			}
		})
	}
}

func TestLoadMissingExplicitConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := Load(context.Background(), "missing.yaml"); err == nil {
		t.Fatal("Load() error = nil, want error for missing explicit file")
	}
}
