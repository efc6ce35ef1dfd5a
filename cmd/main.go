package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Dosada05/elo-arena/brackets"
	"github.com/Dosada05/elo-arena/config"
	"github.com/Dosada05/elo-arena/db"
	"github.com/Dosada05/elo-arena/handlers"
	"github.com/Dosada05/elo-arena/matchmaking"
	"github.com/Dosada05/elo-arena/middleware"
	"github.com/Dosada05/elo-arena/models"
	"github.com/Dosada05/elo-arena/repositories"
	api "github.com/Dosada05/elo-arena/routes"
	"github.com/Dosada05/elo-arena/services"
	"github.com/Dosada05/elo-arena/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("storage_driver", cfg.StorageDriver),
		slog.Duration("lock_timeout", cfg.LockTimeout),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Хранилище проектов
	backend, closeBackend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open project storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeBackend()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store := repositories.NewStore(backend, repositories.StoreConfig{
		LockTimeout: cfg.LockTimeout,
		Logger:      logger,
		Metrics:     repositories.NewStoreMetrics(registry),
	})

	// Архив экспорта в Cloudflare R2 (необязателен)
	uploader, err := storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	})
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		logger.Info("Cloudflare R2 not configured, ranking archives disabled")
		uploader = nil
	case err != nil:
		logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
		os.Exit(1)
	default:
		logger.Info("Cloudflare R2 uploader initialized", slog.String("bucket", cfg.R2BucketName))
	}

	// Инициализация WebSocket Hub
	wsHub := brackets.NewHub(logger)
	go wsHub.Run(ctx)
	logger.Info("WebSocket Hub started")

	// Инициализация сервисов
	metrics := services.NewMetrics(registry)
	projectService := services.NewProjectService(store, models.ProjectSettings{
		KFactor:       cfg.DefaultKFactor,
		DefaultRating: cfg.DefaultRating,
	}, logger)
	battleService := services.NewBattleService(store, matchmaking.NewSelector(), wsHub, metrics, logger)
	tournamentService := services.NewTournamentService(store, wsHub, metrics, logger)
	exportService := services.NewExportService(store, uploader, metrics, logger)
	logger.Info("Services initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Project:    handlers.NewProjectHandler(projectService, logger),
		Battle:     handlers.NewBattleHandler(battleService, logger),
		Tournament: handlers.NewTournamentHandler(tournamentService, logger),
		Export:     handlers.NewExportHandler(exportService, logger),
		WebSocket:  handlers.NewWebSocketHandler(wsHub, projectService, tournamentService, cfg.AllowedOrigins, logger),
	}, api.Options{
		JWTSecret:      []byte(cfg.JWTSecretKey),
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		HTTPMetrics:    middleware.NewHTTPMetrics(registry),
		Logger:         logger,
	})
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			stop()
			closeBackend()
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		} else {
			logger.Info("server shutdown complete")
		}
	}

	// закрывает websocket клиентов
	stop()
	logger.Info("application exited")
}

// openBackend builds the document backend selected by STORAGE_DRIVER.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repositories.DocumentBackend, func(), error) {
	if cfg.StorageDriver == config.DriverFile {
		backend, err := repositories.NewFileBackend(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("file storage ready", slog.String("dir", cfg.DataDir))
		return backend, func() {}, nil
	}

	dbConn, err := db.Connect(cfg.StorageDriver, cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return nil, nil, err
	}
	closeDB := closeOnce(dbConn, logger)

	dialect := repositories.DialectPostgres
	if cfg.StorageDriver == config.DriverSQLite {
		dialect = repositories.DialectSQLite
	}
	backend := repositories.NewSQLBackend(dbConn, dialect)
	if err := backend.EnsureSchema(ctx); err != nil {
		closeDB()
		return nil, nil, err
	}
	logger.Info("database connection established", slog.String("driver", cfg.StorageDriver))
	return backend, closeDB, nil
}

func closeOnce(dbConn *sql.DB, logger *slog.Logger) func() {
	closed := false
	return func() {
		if closed {
			return
		}
		closed = true
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
			return
		}
		logger.Info("database connection closed")
	}
}
