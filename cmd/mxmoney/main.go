package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"mxmoney/internal/backend"
	"mxmoney/internal/cli"
	apphttp "mxmoney/internal/http"
	applog "mxmoney/internal/log"
)

func main() {
	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	app, err := backend.NewApp(context.Background(), cfg, logger.Logger)
	if err != nil {
		logger.Error("Failed to initialize application", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer app.Close()

	app.Caches.StartCleanup(10 * time.Minute)
	defer app.Caches.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, app, apphttp.Options{
		CORSOrigins:    cfg.CORSOrigins,
		TrustedProxies: cfg.TrustedProxies,
		Logger:         logger.WithComponent(applog.ComponentHTTP),
	})

	_, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting mxmoney server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
