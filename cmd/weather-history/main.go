package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	httpapi "github.com/i474232898/weather-history/internal/api/http"
	"github.com/i474232898/weather-history/internal/config"
	"github.com/i474232898/weather-history/internal/export"
	"github.com/i474232898/weather-history/internal/logging"
	"github.com/i474232898/weather-history/internal/metrics"
	"github.com/i474232898/weather-history/internal/scheduler"
	"github.com/i474232898/weather-history/internal/store"
	"github.com/i474232898/weather-history/internal/weather"
	"github.com/i474232898/weather-history/internal/weather/providers"
)

const serviceName = "weather-history"

func main() {
	// Load configuration (.env, optional YAML file, environment).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, logCloser, err := logging.New(logging.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		File:    cfg.LogFile,
		Service: serviceName,
	})
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, logger *slog.Logger) error {
	m := metrics.New()

	// Shared HTTP client for outbound provider calls.
	httpCfg := providers.HTTPClientConfig{
		Client: &http.Client{Timeout: cfg.HTTPTimeout},
		Backoff: providers.BackoffConfig{
			MaxRetries:      cfg.UpstreamMaxRetries,
			InitialInterval: cfg.UpstreamRetryInterval,
			MaxInterval:     providers.DefaultBackoff.MaxInterval,
		},
		Recorder: m,
	}

	owm := providers.NewOpenWeatherProvider(httpCfg, cfg.OpenWeatherAPIKey)

	var historical weather.HistoricalProvider
	switch cfg.HistoricalProvider {
	case "openmeteo":
		historical = providers.NewOpenMeteoProvider(httpCfg)
	case "weatherapi":
		historical = providers.NewWeatherAPIProvider(httpCfg, cfg.WeatherAPIKey)
	default:
		historical = weather.NewSyntheticHistory()
	}

	var videos weather.VideoProvider
	if cfg.YouTubeAPIKey != "" {
		videos = providers.NewYouTubeProvider(httpCfg, cfg.YouTubeAPIKey)
	}

	openCtx, cancelOpen := context.WithTimeout(context.Background(), 15*time.Second)
	repo, err := store.Open(openCtx, store.Config{
		Driver:          cfg.StoreDriver,
		SQLitePath:      cfg.SQLitePath,
		MongoURI:        cfg.MongoURI,
		MongoDatabase:   cfg.MongoDatabase,
		MongoCollection: cfg.MongoCollection,
	})
	cancelOpen()
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("failed to close store", slog.Any("error", err))
		}
	}()

	// Core service orchestrating providers and store.
	service := weather.NewService(weather.ServiceConfig{
		Geocoder:   owm,
		Current:    owm,
		Historical: historical,
		Videos:     videos,
		Maps:       providers.NewGoogleMaps(cfg.MapsAPIKey),
		Repository: repo,
		Recorder:   m,
		Logger:     logger,
		VideoLimit: cfg.VideoLimit,
	})

	exportFormat, err := export.ParseFormat(cfg.ExportFormat)
	if err != nil {
		return err
	}
	sched := scheduler.New(scheduler.Config{
		Interval: cfg.ExportInterval,
		Path:     cfg.ExportPath,
		Format:   exportFormat,
	}, service, logger)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.RequestTimeout + 5*time.Second,
		ErrorHandler:          httpapi.NewErrorHandler(logger),
	})

	// Global middleware
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		if err := service.Ping(ctx); err != nil {
			logger.Warn("health check failed", slog.Any("error", err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":  "degraded",
				"service": serviceName,
				"store":   cfg.StoreDriver,
			})
		}
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
			"store":   cfg.StoreDriver,
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	httpapi.RegisterRoutes(app, service, httpapi.Options{RequestTimeout: cfg.RequestTimeout})

	// Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			slog.String("addr", cfg.Addr()),
			slog.String("store", cfg.StoreDriver),
			slog.String("historical_provider", historical.Name()),
		)
		errCh <- app.Listen(cfg.Addr())
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down")
	return app.ShutdownWithContext(shutdownCtx)
}
