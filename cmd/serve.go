package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stmap/internal/api"
	"stmap/internal/bootstrap"
	"stmap/internal/bootstrap/logging"
	"stmap/internal/errs"
	"stmap/internal/usecase/mapping"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the mapping store over HTTP",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *mapping.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		addr, _ := cmd.Flags().GetString("addr")
		addr = strings.TrimSpace(addr)
		if addr == "" {
			addr = app.Config.Server.Addr
		}

		server := &http.Server{
			Addr:              addr,
			Handler:           api.NewRouter(ctx, svc),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serveErr := make(chan error, 1)
		go func() {
			serveErr <- server.ListenAndServe()
		}()

		logging.Info(ctx, "mapping api server started", slog.String("addr", addr), slog.String("storage", app.StorageLocation()))

		select {
		case err := <-serveErr:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error(ctx, "mapping api server failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "serve mapping api")
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errs.Wrap(err, "shutdown mapping api")
		}
		logging.Info(ctx, "mapping api server stopped")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default server.addr from config)")
}
