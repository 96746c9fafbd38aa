package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-diary-sync/internal/api/http"
	"github.com/i474232898/weather-diary-sync/internal/config"
	"github.com/i474232898/weather-diary-sync/internal/cryptobox"
	"github.com/i474232898/weather-diary-sync/internal/diary"
	"github.com/i474232898/weather-diary-sync/internal/diary/hybrid"
	"github.com/i474232898/weather-diary-sync/internal/diary/local"
	"github.com/i474232898/weather-diary-sync/internal/diary/remote"
	"github.com/i474232898/weather-diary-sync/internal/geo"
	"github.com/i474232898/weather-diary-sync/internal/identity"
	"github.com/i474232898/weather-diary-sync/internal/scheduler"
	"github.com/i474232898/weather-diary-sync/internal/state"
	"github.com/i474232898/weather-diary-sync/internal/translate"
	"github.com/i474232898/weather-diary-sync/internal/weather"
	"github.com/i474232898/weather-diary-sync/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Durable state behind both engines.
	states, err := state.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open state store: %v", err)
	}
	defer states.Close()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}

	clock := weather.SystemClock
	clock.ForceNight = cfg.ForceNight

	translator := translate.New(httpClient)

	// Providers with resilience (backoff + circuit breaker), ordered by
	// preference per region.
	amap := providers.NewAmapProvider(httpClient, cfg.AmapAPIKey, "", clock)
	qweather := providers.NewQWeatherProvider(httpClient, cfg.QWeatherAPIKey, "", "", clock)
	wttr := providers.NewWttrProvider(httpClient, "", clock, translator)

	domestic := []weather.Provider{amap, qweather, wttr}
	roaming := []weather.Provider{wttr, qweather}

	resolver := geo.NewResolver(nil, states)
	cache := weather.NewCache(states, cfg.WeatherCacheTTL)
	router := weather.NewRouter(resolver, cache, domestic, roaming, clock, states)

	// Diary stores and the reconciliation engine.
	ids := identity.NewManager(states)
	userID, err := ids.UserID()
	if err != nil {
		log.Fatalf("failed to resolve user id: %v", err)
	}

	localStore := local.NewStore(states)
	var remoteClient hybrid.Remote
	if cfg.RemoteBaseURL != "" {
		remoteClient = remote.NewClient(cfg.RemoteBaseURL, userID, cryptobox.New())
	}
	engine := hybrid.NewEngine(localStore, remoteClient, states, hybrid.Mode(cfg.StorageMode))

	engine.OnUpdate(func(entries []diary.Entry) {
		log.Printf("sync: %d entries after background update", len(entries))
	})

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	engine.Initialize(initCtx)
	cancelInit()
	defer engine.Cleanup()

	// Scheduler that periodically reconciles the two stores.
	sched := scheduler.New(engine, cfg.SyncInterval)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-diary-sync",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-diary-sync",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, router, engine)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
