package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/freekieb7/poolhttp/config"
	"github.com/freekieb7/poolhttp/filesystem"
	"github.com/freekieb7/poolhttp/http"
	"github.com/freekieb7/poolhttp/telemetry"
)

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.Server.Version,
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
		LogLevel:       cfg.LogLevel,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			log.Println(err)
		}
	}()

	logger := tel.Logger
	slog.SetDefault(logger)

	assets := filesystem.NewLocalFileSystem(cfg.Server.AssetRoot)
	checkAssets(logger, assets)

	server, err := http.NewServer(cfg.Server, http.Options{
		Logger:         logger,
		TracerProvider: tel.TracerProvider,
		MeterProvider:  tel.MeterProvider,
		Filesystem:     assets,
	})
	if err != nil {
		return err
	}

	serverErrorChannel := make(chan error, 1)
	go func() {
		serverErrorChannel <- server.ListenAndServe(ctx)
	}()

	select {
	case err := <-serverErrorChannel:
		// The listener failed before any shutdown was requested.
		shutdownErr := server.Shutdown(context.Background())
		return errors.Join(err, shutdownErr)
	case <-ctx.Done():
		stop()
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-serverErrorChannel; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	logger.Info("server stopped")
	return nil
}

// checkAssets warns about missing pages. The server still starts; the
// handlers fall back to the built-in not found response.
func checkAssets(logger *slog.Logger, assets filesystem.Filesystem) {
	exists, err := assets.DirectoryExists(".")
	if err != nil || !exists {
		logger.Warn("asset root not found", "root", assets.Root(), "error", err)
		return
	}

	for _, name := range []string{http.IndexFile, http.NotFoundFile} {
		if exists, err := assets.FileExists(name); err != nil || !exists {
			logger.Warn("asset missing", "root", assets.Root(), "file", name, "error", err)
		}
	}
}
