package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"stmap/internal/bootstrap/config"
	domainmapping "stmap/internal/domain/mapping"
	"stmap/internal/usecase/mapping"
)

func writeConfig(t *testing.T, dir string, body string) string {
	t.Helper()

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func startModule(t *testing.T, configFile string) (*App, *mapping.Service, *fxtest.App) {
	t.Helper()

	var app *App
	var svc *mapping.Service
	fxApp := fxtest.New(
		t,
		Module,
		fx.NopLogger,
		fx.Provide(func() context.Context { return context.Background() }),
		fx.Provide(
			fx.Annotate(
				func() string { return configFile },
				fx.ResultTags(`name:"configFile"`),
			),
		),
		fx.Populate(&app, &svc),
	)
	fxApp.RequireStart()
	return app, svc, fxApp
}

func TestModulePersistsAcrossRestartsForEachBackend(t *testing.T) {
	testCases := []struct {
		name    string
		backend string
		config  func(dir string) string
	}{
		{
			name:    "sqlite",
			backend: config.StorageSQLite,
			config: func(dir string) string {
				return fmt.Sprintf("database:\n  dsn: %q\n", filepath.Join(dir, "db", "mappings.sqlite"))
			},
		},
		{
			name:    "file",
			backend: config.StorageFile,
			config: func(dir string) string {
				return fmt.Sprintf("storage:\n  backend: file\n  file_path: %q\n", filepath.Join(dir, "mappings.toml"))
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)
			configFile := writeConfig(t, dir, testCase.config(dir))

			app, svc, fxApp := startModule(t, configFile)
			if app.Config.Storage.Backend != testCase.backend {
				t.Fatalf("backend = %q, want %q", app.Config.Storage.Backend, testCase.backend)
			}
			if (app.DB != nil) != (testCase.backend == config.StorageSQLite) {
				t.Fatalf("DB presence mismatch for backend %q", testCase.backend)
			}

			added, err := svc.Add(context.Background(), domainmapping.Fields{
				TargetTable: "dim_customer",
				TargetField: "customer_name",
				SourceTable: "stg_customers",
				SourceField: "cust_name",
			})
			if err != nil {
				t.Fatalf("Add() error = %v", err)
			}
			fxApp.RequireStop()

			_, reloaded, restarted := startModule(t, configFile)
			defer restarted.RequireStop()

			got, err := reloaded.Get(context.Background(), added.ID)
			if err != nil {
				t.Fatalf("Get() after restart error = %v", err)
			}
			if got.TargetTable != "DIM_CUSTOMER" {
				t.Fatalf("target table = %q, want DIM_CUSTOMER", got.TargetTable)
			}
		})
	}
}

func TestInitSchemaRequiresDatabase(t *testing.T) {
	app := &App{Config: config.Config{Storage: config.StorageConfig{Backend: config.StorageFile, FilePath: "x.toml"}}}

	if err := app.InitSchema(context.Background()); err == nil {
		t.Fatal("InitSchema() error = nil, want error without database")
	}
	if got := app.StorageLocation(); got != "x.toml" {
		t.Fatalf("StorageLocation() = %q, want x.toml", got)
	}
}
