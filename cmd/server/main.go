package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kdimtricp/elbowtrack/internal/api"
	"github.com/kdimtricp/elbowtrack/internal/config"
	"github.com/kdimtricp/elbowtrack/internal/database"
	"github.com/kdimtricp/elbowtrack/internal/pose"
	"github.com/kdimtricp/elbowtrack/internal/storage"
	"github.com/kdimtricp/elbowtrack/internal/tracking"
	"github.com/kdimtricp/elbowtrack/web"
)

func main() {
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := config.NewLogger(os.Stderr, cfg.Log)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	localStorage, err := storage.NewLocalStorage(cfg.StorageDir)
	if err != nil {
		return err
	}

	db, err := database.NewDB(database.Config{
		Type:       cfg.Database.Type,
		Host:       cfg.Database.Host,
		Port:       cfg.Database.Port,
		User:       cfg.Database.User,
		Password:   cfg.Database.Password,
		Name:       cfg.Database.Name,
		SQLitePath: cfg.Database.Path,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("Running database migrations", "path", cfg.Database.MigrationsPath)
	if err := db.RunMigrations(cfg.Database.MigrationsPath); err != nil {
		return err
	}

	templates, err := web.Templates()
	if err != nil {
		return err
	}

	service := tracking.NewService(database.NewSessionRepository(db), pose.DefaultOptions())
	app := &api.App{
		Service:       service,
		Storage:       localStorage,
		Templates:     templates,
		MaxUploadSize: cfg.MaxUploadSize,
		Logger:        logger,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			"port", cfg.Port,
			"storage_dir", cfg.StorageDir,
			"database", db.Type(),
			"max_upload_size", cfg.MaxUploadSize)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// ends live sessions first so open event streams return
	service.Shutdown(shutdownCtx)
	return srv.Shutdown(shutdownCtx)
}
